package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/centrosedu/centros/engine/record"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

const (
	defaultTerminalWidth = 80
	minCellWidth         = 6
	maxCellWidth         = 40
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	loadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// viewState is what the user currently sees.
type viewState struct {
	Records []record.Record
	Schema  *record.Schema
	Error   string
	Loading bool
	Page    int
	HasPrev bool
	HasNext bool
}

// pageView records what the controller renders so commands and the browser
// can draw it.
type pageView struct {
	mu    sync.Mutex
	state viewState
}

func (v *pageView) Render(records []record.Record, schema *record.Schema) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Records = records
	v.state.Schema = schema
	v.state.Error = ""
}

func (v *pageView) RenderError(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Error = message
}

func (v *pageView) SetLoadingVisible(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Loading = visible
}

func (v *pageView) RenderPagination(page int, hasPrev, hasNext bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Page = page
	v.state.HasPrev = hasPrev
	v.state.HasNext = hasNext
}

func (v *pageView) snapshot() viewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return defaultTerminalWidth
}

// columnWidth splits the available width evenly between n columns.
func columnWidth(width, n int) int {
	if n == 0 {
		return maxCellWidth
	}
	return max(minCellWidth, min(maxCellWidth, (width-n-1)/n))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// headers returns the schema fields, or nil when there is nothing to show.
func headers(state viewState) []string {
	if state.Schema == nil {
		return nil
	}
	return state.Schema.Fields()
}

func rows(state viewState, cell int) [][]string {
	out := make([][]string, 0, len(state.Records))
	for _, r := range state.Records {
		values := state.Schema.Row(r)
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = truncate(v.Raw(), cell)
		}
		out = append(out, row)
	}
	return out
}

func paginationLine(state viewState) string {
	prev, next := "← previous", "next →"
	if !state.HasPrev {
		prev = mutedStyle.Render(prev)
	}
	if !state.HasNext {
		next = mutedStyle.Render(next)
	}
	return fmt.Sprintf("Page %d   %s   %s", max(state.Page, 1), prev, next)
}

// formatTable draws the page as a bordered table fitted to width.
func formatTable(state viewState, width int) string {
	var b strings.Builder
	if state.Error != "" {
		b.WriteString(errorStyle.Render(state.Error))
		b.WriteString("\n")
	}
	fields := headers(state)
	switch {
	case len(state.Records) == 0:
		b.WriteString(mutedStyle.Render("No centers match the current filters."))
		b.WriteString("\n")
	case len(fields) > 0:
		cell := columnWidth(width, len(fields)) - 2
		t := ltable.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(borderStyle).
			Headers(fields...).
			Rows(rows(state, cell)...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == ltable.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		b.WriteString(t.Render())
		b.WriteString("\n")
	}
	b.WriteString(paginationLine(state))
	b.WriteString("\n")
	return b.String()
}

type jsonPage struct {
	Page    int             `json:"page"`
	HasPrev bool            `json:"has_prev"`
	HasNext bool            `json:"has_next"`
	Fields  []string        `json:"fields"`
	Centers []record.Record `json:"centros"`
	Error   string          `json:"error,omitempty"`
}

func formatJSON(state viewState) ([]byte, error) {
	fields := headers(state)
	if fields == nil {
		fields = []string{}
	}
	records := state.Records
	if records == nil {
		records = []record.Record{}
	}
	data, err := json.MarshalIndent(jsonPage{
		Page:    max(state.Page, 1),
		HasPrev: state.HasPrev,
		HasNext: state.HasNext,
		Fields:  fields,
		Centers: records,
		Error:   state.Error,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format JSON response: %w", err)
	}
	return data, nil
}

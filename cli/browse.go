package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/centrosedu/centros/engine/controller"
	"github.com/centrosedu/centros/engine/query"
	"github.com/centrosedu/centros/pkg/logger"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	// Lines taken by the title, status, pagination and help rows.
	browseChromeHeight = 7
	minTableHeight     = 3
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")).MarginBottom(1)

// BrowseCmd opens the interactive centers browser.
func BrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse centers interactively",
		Long:  "Browse centers page by page, sorting by any column, with cached and prefetched pages.",
		Args:  cobra.NoArgs,
		RunE:  runBrowse,
	}
	addQueryFlags(cmd)
	return cmd
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("browse requires an interactive terminal; use the list command instead")
	}
	form, err := parseFormFromFlags(cmd)
	if err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	view := &pageView{}
	ctrl, err := a.controller(view)
	if err != nil {
		return err
	}
	model := newBrowseModel(ctx, ctrl, view, form)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	log.Debug("Starting centers browser", "mode", ctrl.Mode())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI program: %w", err)
	}
	ctrl.Wait()
	log.Debug("Centers browser closed", "cache", a.cache.Stats())
	return nil
}

// browseKeyMap defines key bindings for the browser
type browseKeyMap struct {
	NextPage key.Binding
	PrevPage key.Binding
	Sort     key.Binding
	Refresh  key.Binding
	Reload   key.Binding
	Quit     key.Binding
}

func defaultBrowseKeyMap() browseKeyMap {
	return browseKeyMap{
		NextPage: key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next page")),
		PrevPage: key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "prev page")),
		Sort: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "sort by column"),
		),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Reload:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reload")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextPage, k.PrevPage, k.Sort, k.Refresh, k.Reload, k.Quit}
}

func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// renderedMsg reports that a controller action finished rendering.
type renderedMsg struct{}

type browseModel struct {
	ctx     context.Context
	ctrl    *controller.Controller
	view    *pageView
	form    controller.Form
	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    browseKeyMap
	state   viewState
	fields  []string
	width   int
	height  int
}

func newBrowseModel(
	ctx context.Context,
	ctrl *controller.Controller,
	view *pageView,
	form controller.Form,
) *browseModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = loadingStyle
	t := table.New(table.WithFocused(true), table.WithHeight(10))
	t.SetStyles(browseTableStyles())
	return &browseModel{
		ctx:     ctx,
		ctrl:    ctrl,
		view:    view,
		form:    form,
		table:   t,
		spinner: s,
		help:    help.New(),
		keys:    defaultBrowseKeyMap(),
		width:   terminalWidth(),
	}
}

func browseTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("69"))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}

func (m *browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.submit())
}

func (m *browseModel) submit() tea.Cmd {
	form := m.form
	return m.do(func(ctx context.Context) { m.ctrl.Submit(ctx, form) })
}

// do runs a controller action off the UI loop and reports back when the
// view has been rendered.
func (m *browseModel) do(action func(context.Context)) tea.Cmd {
	m.state.Loading = true
	ctx := m.ctx
	return func() tea.Msg {
		action(ctx)
		return renderedMsg{}
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	case renderedMsg:
		m.state = m.view.snapshot()
		m.refreshTable()
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.refreshTable()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *browseModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.NextPage):
		return m.do(m.ctrl.Next), true
	case key.Matches(msg, m.keys.PrevPage):
		return m.do(m.ctrl.Previous), true
	case key.Matches(msg, m.keys.Refresh):
		return m.do(m.ctrl.Refresh), true
	case key.Matches(msg, m.keys.Reload):
		return m.do(m.ctrl.Reload), true
	case key.Matches(msg, m.keys.Sort):
		field := m.sortField(msg.String())
		if field == "" {
			return nil, true
		}
		return m.do(func(ctx context.Context) { m.ctrl.ToggleSort(ctx, field) }), true
	}
	return nil, false
}

// sortField maps a digit key to the schema column it selects.
func (m *browseModel) sortField(k string) string {
	if len(k) != 1 || k[0] < '1' || k[0] > '9' || m.state.Schema == nil {
		return ""
	}
	return m.state.Schema.Field(int(k[0] - '1'))
}

func (m *browseModel) refreshTable() {
	fields := headers(m.state)
	sortSpec := m.ctrl.State().Form.Sort
	cell := columnWidth(m.width, max(len(fields), 1))
	columns := make([]table.Column, len(fields))
	for i, f := range fields {
		title := f
		if f == sortSpec.Field {
			title += sortIndicator(sortSpec.Direction)
		}
		columns[i] = table.Column{Title: truncate(title, cell), Width: cell}
	}
	m.table.SetRows(nil)
	m.table.SetColumns(columns)
	if len(fields) > 0 {
		out := rows(m.state, cell)
		tableRows := make([]table.Row, len(out))
		for i, r := range out {
			tableRows[i] = r
		}
		m.table.SetRows(tableRows)
	}
	m.fields = fields
	if m.height > 0 {
		m.table.SetHeight(max(minTableHeight, m.height-browseChromeHeight))
	}
}

func sortIndicator(dir query.Direction) string {
	if dir == query.Desc {
		return " ▼"
	}
	return " ▲"
}

func (m *browseModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Educational centers (%s mode)", m.ctrl.Mode())))
	b.WriteString("\n")
	switch {
	case len(m.fields) == 0 && !m.state.Loading:
		b.WriteString(mutedStyle.Render("No centers match the current filters."))
	case len(m.fields) > 0:
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")
	if m.state.Error != "" {
		b.WriteString(errorStyle.Render(m.state.Error))
		b.WriteString("\n")
	}
	status := paginationLine(m.state)
	if m.state.Loading {
		status += "   " + m.spinner.View() + loadingStyle.Render("loading")
	}
	b.WriteString(status)
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

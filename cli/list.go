package cli

import (
	"fmt"

	"github.com/centrosedu/centros/pkg/logger"
	"github.com/spf13/cobra"
)

// ListCmd prints one page of centers.
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List centers",
		Long:  "List one page of centers with optional filtering and sorting.",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	addQueryFlags(cmd)
	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Bool("json", false, "Print the page as JSON")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	form, err := parseFormFromFlags(cmd)
	if err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}
	page, err := cmd.Flags().GetInt("page")
	if err != nil {
		return fmt.Errorf("failed to get page flag: %w", err)
	}
	if page < 1 {
		return fmt.Errorf("page must be at least 1, got: %d", page)
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
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
	ctrl.Open(ctx, form, page)
	ctrl.Wait()

	state := view.snapshot()
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := formatJSON(state)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, formatTable(state, terminalWidth()))
	}
	log.Debug("Centers listed", "page", state.Page, "count", len(state.Records), "json", asJSON)
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// TypesCmd prints the center types offered by the type filter.
func TypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List center types",
		Args:  cobra.NoArgs,
		RunE:  runTypes,
	}
	cmd.Flags().Bool("json", false, "Print the types as a JSON array")
	return cmd
}

func runTypes(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	ctrl, err := a.controller(&pageView{})
	if err != nil {
		return err
	}
	types := ctrl.LoadCenterTypes(ctx)
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.Marshal(types)
		if err != nil {
			return fmt.Errorf("failed to format JSON response: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	if len(types) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No center types available."))
		return nil
	}
	for _, t := range types {
		fmt.Fprintln(out, t)
	}
	return nil
}

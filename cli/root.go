package cli

import (
	"context"
	"fmt"

	"github.com/centrosedu/centros/pkg/config"
	"github.com/centrosedu/centros/pkg/logger"
	"github.com/centrosedu/centros/pkg/version"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "centros",
		Short:         "Search and browse educational centers",
		Long:          "Query the educational centers API with filters, sorting and cached pagination.",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupCommand(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file")
	pf.String("env-file", ".env", "Path to a .env file")
	pf.String("base-url", "", "Base URL of the centers API")
	pf.Duration("timeout", 0, "HTTP request timeout")
	pf.Int("retries", 0, "Retries on transport failures and 5xx responses")
	pf.Duration("cache-ttl", 0, "How long a cached page stays fresh")
	pf.String("log-level", "", "Log level (debug, info, warn, error, disabled)")
	pf.Bool("log-json", false, "Emit logs as JSON")
	pf.Bool("log-source", false, "Include source locations in logs")

	root.AddCommand(
		ListCmd(),
		BrowseCmd(),
		TypesCmd(),
	)
	return root
}

// setupCommand loads the configuration and stores it, with the logger it
// configures, in the command context.
func setupCommand(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	envFile, err := resolveEnvFile(cmd)
	if err != nil {
		return err
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	flags := make(map[string]any)
	extractCLIFlags(cmd, flags)

	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	cfg, err := loader.Load(ctx,
		config.NewYAMLProvider(cfgFile),
		config.NewEnvProvider(),
		config.NewCLIProvider(flags),
	)
	if err != nil {
		return err
	}

	log := logger.SetupLogger(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Source)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	log.Debug("Command configured", "command", cmd.Name(), "base_url", cfg.API.BaseURL, "mode", cfg.Query.Mode)
	return nil
}

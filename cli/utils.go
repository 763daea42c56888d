package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/centrosedu/centros/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// extractCLIFlags collects the changed flags that map onto configuration keys.
func extractCLIFlags(cmd *cobra.Command, flags map[string]any) {
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if _, ok := config.CLIFlagPath(f.Name); !ok {
			return
		}
		if value, err := flagValue(cmd.Flags(), f); err == nil {
			flags[f.Name] = value
		}
	})
}

func flagValue(fs *pflag.FlagSet, f *pflag.Flag) (any, error) {
	switch f.Value.Type() {
	case "int":
		return fs.GetInt(f.Name)
	case "bool":
		return fs.GetBool(f.Name)
	case "duration":
		return fs.GetDuration(f.Name)
	case "stringSlice":
		return fs.GetStringSlice(f.Name)
	default:
		return f.Value.String(), nil
	}
}

// resolveEnvFile returns the absolute path of the env-file flag, relative
// paths being resolved against the working directory.
func resolveEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" || filepath.IsAbs(envFile) {
		return envFile, nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return filepath.Clean(filepath.Join(pwd, envFile)), nil
}

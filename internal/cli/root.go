// Package cli implements the prefchain command line.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/prefchain/internal/genericeditor"
	"github.com/dshills/prefchain/internal/logging"
)

// Version is the prefchain version.
const Version = "0.1.0"

// ContributionsSubdir is the contributions directory under the config dir
// used when --contrib is not given.
const ContributionsSubdir = "contributions"

// NewRootCmd returns the prefchain command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prefchain",
		Short: "Per-content-type editor preference resolution",
		Long: `prefchain resolves the editor preferences that apply to a file.

Preference store providers are contributed through manifest files in the
contributions directory. Each provider targets a content type and may be
restricted by a Lua enabledWhen expression. The stores of matching providers
are chained in front of the generic editor and text editor defaults.`,
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: user config dir/prefchain)")
	rootCmd.PersistentFlags().String("contrib", "", "contributions directory (default: <config>/"+ContributionsSubdir+")")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml)")

	rootCmd.AddCommand(
		newResolveCmd(),
		newProvidersCmd(),
		newContentTypesCmd(),
		newPreferencesCmd(),
		newWatchCmd(),
	)
	return rootCmd
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// openPlugin creates the plugin from the global flags.
func openPlugin(cmd *cobra.Command) (*genericeditor.Plugin, *logging.Logger, error) {
	configDir, _ := cmd.Flags().GetString("config")
	contribDir, _ := cmd.Flags().GetString("contrib")
	level, _ := cmd.Flags().GetString("log-level")

	if configDir == "" {
		configDir = genericeditor.DefaultConfigDir()
	}
	if contribDir == "" {
		contribDir = filepath.Join(configDir, ContributionsSubdir)
	}

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(level),
		Output: cmd.ErrOrStderr(),
		Prefix: "prefchain",
	})

	p, err := genericeditor.New(
		genericeditor.WithConfigDir(configDir),
		genericeditor.WithContributionsDir(contribDir),
		genericeditor.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing: %w", err)
	}
	return p, logger, nil
}

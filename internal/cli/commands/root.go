// Package commands implements the entityorm command line interface.
package commands

import (
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/entityorm/internal/cli/ui"
	"github.com/conduit-lang/entityorm/internal/config"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by all commands
type globalOptions struct {
	configPath string
	noColor    bool
}

func (o *globalOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "entityorm",
		Short: "Entity based object relational mapping toolkit",
		Long: color.CyanString(`entityorm - entity definitions, conditions and CRUD

Inspect the demo domain definitions, render conditions for a SQL dialect
and run the demo against a configured database.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./entityorm.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand(opts))
	rootCmd.AddCommand(NewSchemaCommand(opts))
	rootCmd.AddCommand(NewRenderCommand(opts))
	rootCmd.AddCommand(NewDemoCommand(opts))

	return rootCmd
}

// Execute runs the root command with args, writing failures to stderr.
// It returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		ui.WriteError(stderr, err, noColor)
		return 1
	}
	return 0
}

// NewVersionCommand creates the version command
func NewVersionCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			table := ui.NewKeyValueTable(cmd.OutOrStdout(), opts.noColor)
			table.AddRow("entityorm version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", runtime.Version())
			table.Render()
		},
	}
}

package cli

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/graphmut/internal/app"
	"github.com/spf13/cobra"
)

// Version is reported by --version.
var Version = "dev"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

type options struct {
	configPaths  []string
	logFormat    string
	logLevel     string
	snapshotPath string
	listen       string
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var result *app.Config
	root := newRootCommand(&result)
	// cobra reads os.Args when given a nil slice.
	root.SetArgs(append([]string{}, args...))
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if result == nil {
		slog.Debug("No command to run, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", result)
	return result, false, nil
}

func newRootCommand(result **app.Config) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "graphmut",
		Short: "A concurrent, undoable property graph service",
		Long: `graphmut keeps a typed property graph in memory and mutates it through
commands that can be undone, redone and grouped into transactions. The graph
is served over HTTP and can be seeded from HCL files.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log output format. Options: 'text' or 'json'. Overrides the config files.")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Logging level. Options: 'debug', 'info', 'warn', 'error'. Overrides the config files.")
	root.PersistentFlags().StringVar(&opts.snapshotPath, "snapshot", "", "Directory of the graph snapshot database. Overrides the config files.")
	root.PersistentFlags().StringSliceVarP(&opts.configPaths, "config", "c", nil, "Path to an .hcl file or a directory of .hcl files. Repeatable.")

	serve := &cobra.Command{
		Use:   "serve [CONFIG_PATH...]",
		Short: "Serve the graph API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd, app.ModeServe, opts, args, result)
		},
	}
	serve.Flags().StringVarP(&opts.listen, "listen", "l", "", "Address for the HTTP server, e.g. ':8080'. Overrides the config files.")

	check := &cobra.Command{
		Use:   "check [CONFIG_PATH...]",
		Short: "Validate configuration and the seed graph, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd, app.ModeCheck, opts, args, result)
		},
	}

	root.AddCommand(serve, check)
	return root
}

func build(cmd *cobra.Command, mode app.Mode, opts *options, args []string, result **app.Config) error {
	paths := append(append([]string{}, opts.configPaths...), args...)
	if len(paths) == 0 {
		slog.Debug("No config path provided, printing usage and exiting.")
		return cmd.Help()
	}

	cfg, err := app.NewConfig(app.Config{
		Mode:         mode,
		ConfigPaths:  paths,
		Listen:       opts.listen,
		LogFormat:    strings.ToLower(opts.logFormat),
		LogLevel:     strings.ToLower(opts.logLevel),
		SnapshotPath: opts.snapshotPath,
	})
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	*result = cfg
	return nil
}

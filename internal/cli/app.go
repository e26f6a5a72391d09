// Package cli is the wayfinder command line client. It drives the same
// query layer an application would, so cached reads and invalidations behave
// identically.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wayfinder/internal/config"
	"wayfinder/internal/di"
	apperrors "wayfinder/internal/errors"
	"wayfinder/internal/query"
	"wayfinder/internal/resources"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// Builder constructs the client container for a loaded configuration.
type Builder func(ctx context.Context, cfg *config.Config) (*di.Client, func(), error)

type globalOptions struct {
	configDir string
	apiURL    string
	token     string
	verbose   bool
}

// App is the CLI application.
type App struct {
	root    *cobra.Command
	stdout  io.Writer
	stderr  io.Writer
	build   Builder
	opts    globalOptions
	client  *di.Client
	cleanup func()
}

// New creates the CLI with its subcommands.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
		build:  di.InitializeClient,
	}

	app.root = &cobra.Command{
		Use:   "wayfinder",
		Short: "Query locations, reviews and community posts",
		Long: `wayfinder talks to the Wayfinder API through the typed query layer.

Reads are cached for the duration of a command and mutations invalidate the
reads they affect. Commands that need an account read the session token from
--token or WAYFINDER_TOKEN.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.connect,
		PersistentPostRun: func(*cobra.Command, []string) { app.disconnect() },
	}

	flags := app.root.PersistentFlags()
	flags.StringVar(&app.opts.configDir, "config-dir", os.Getenv("CONFIG_DIR"), "Directory holding the YAML configuration")
	flags.StringVar(&app.opts.apiURL, "api", "", "Override the API base URL")
	flags.StringVar(&app.opts.token, "token", os.Getenv("WAYFINDER_TOKEN"), "Session token")
	flags.BoolVarP(&app.opts.verbose, "verbose", "v", false, "Log at debug level")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newLocationCmd(),
		app.newSearchCmd(),
		app.newFeedCmd(),
		app.newPostCmd(),
		app.newMeCmd(),
		app.newCommentCmd(),
		app.newReviewCmd(),
		app.newVoteCmd(),
		app.newFollowCmd(),
		app.newRedeemCmd(),
	)
	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithBuilder replaces the container constructor.
func (a *App) WithBuilder(b Builder) *App {
	a.build = b
	return a
}

// Execute runs the CLI until it finishes or the process is interrupted.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer a.disconnect()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) connect(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" || a.client != nil {
		return nil
	}

	cfg, err := config.NewLoader(a.opts.configDir, config.CurrentEnvironment()).Load()
	if err != nil {
		return err
	}
	if a.opts.apiURL != "" {
		cfg.API.BaseURL = a.opts.apiURL
	}
	cfg.Logging.Level = "warn"
	if a.opts.verbose {
		cfg.Logging.Level = "debug"
	}

	client, cleanup, err := a.build(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}
	a.client, a.cleanup = client, cleanup

	if a.opts.token != "" {
		if _, err := client.Sessions.SignIn(a.opts.token); err != nil {
			return fmt.Errorf("sign in failed: %w", err)
		}
	}
	return nil
}

func (a *App) disconnect() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	a.client = nil
}

func (a *App) api() *resources.API {
	return a.client.API
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "wayfinder version %s (%s)\n", Version, GitCommit)
		},
	}
}

// unwrap turns a read result into a value or a printable error.
func unwrap[T any](what string, r query.Result[T]) (T, error) {
	if r.Idle() {
		var zero T
		return zero, fmt.Errorf("%s: %w", what, apperrors.ErrDisabled)
	}
	if r.Err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %s", what, apperrors.UserMessage(r.Err, r.Err.Error()))
	}
	return r.Data, nil
}

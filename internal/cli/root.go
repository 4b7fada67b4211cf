// Package cli implements repairctl, the command-line dashboard for the
// repair tracker.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/repair-tracker/internal/client/api"
	"github.com/cuongbtq/repair-tracker/internal/client/joblist"
	"github.com/cuongbtq/repair-tracker/internal/client/session"
	"github.com/cuongbtq/repair-tracker/internal/config"
	"github.com/cuongbtq/repair-tracker/shared/logger"
	"github.com/spf13/cobra"
)

// Options are the global flags
type Options struct {
	ConfigPath  string
	APIURL      string
	SessionPath string
	Timeout     time.Duration
	LogLevel    string
}

// App carries what every command needs once flags are parsed
type App struct {
	in  *bufio.Reader
	out io.Writer

	opts     Options
	cfg      *config.Config
	logger   *logger.Logger
	client   *api.Client
	store    *session.BoltStore
	provider *session.Provider
}

// Execute runs repairctl with args, reading prompts from in and writing
// results to out. The session file is released before it returns.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) (err error) {
	root, app := newRootCommand(in, out, errOut)
	root.SetArgs(args)
	defer func() {
		err = errors.Join(err, app.close())
	}()
	return root.ExecuteContext(ctx)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) (*cobra.Command, *App) {
	app := &App{
		in:  bufio.NewReader(in),
		out: out,
	}

	root := &cobra.Command{
		Use:           "repairctl",
		Short:         "Track device repair jobs from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&app.opts.ConfigPath, "config", "", "Path to configuration file")
	flags.StringVar(&app.opts.APIURL, "api-url", "", "API service base URL (default http://localhost:5000)")
	flags.StringVar(&app.opts.SessionPath, "session", "", "Path to the session file (default $HOME/.repairctl/session.db)")
	flags.DurationVar(&app.opts.Timeout, "timeout", 0, "HTTP request timeout (default 30s)")
	flags.StringVar(&app.opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCmd(app),
		newRegisterCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newJobsCmd(app),
	)

	return root, app
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.provider != nil {
		return nil
	}

	configPath := a.opts.ConfigPath
	if configPath == "" {
		configPath = os.Getenv(config.EnvClientConfig)
	}

	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.Client.APIURL = a.opts.APIURL
	}
	if flags.Changed("session") {
		cfg.Client.SessionPath = a.opts.SessionPath
	}
	if flags.Changed("timeout") {
		cfg.Client.Timeout = a.opts.Timeout
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.opts.LogLevel
	}

	if err := cfg.ValidateClientConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	a.logger, err = logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: time.TimeOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.store, err = session.OpenStore(cfg.Client.SessionPath)
	if err != nil {
		return err
	}

	a.client = api.NewClient(cfg.Client.APIURL, cfg.Client.Timeout, a.logger.Logger)
	a.provider = session.NewProvider(a.client, a.store, a.logger.Logger)

	if err := a.provider.Restore(cmd.Context()); err != nil {
		a.logger.Warn("Could not restore session", slog.Any("error", err))
	}
	return nil
}

func (a *App) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		a.logger.Close()
	}
	return err
}

// requireSession returns the active session or session.ErrSignedOut
func (a *App) requireSession() (*session.Session, error) {
	s := a.provider.Current()
	if s == nil {
		return nil, fmt.Errorf("%w: run `repairctl login` first", session.ErrSignedOut)
	}
	return s, nil
}

// manager returns a job list manager for the active session
func (a *App) manager() (*joblist.Manager, *session.Session, error) {
	s, err := a.requireSession()
	if err != nil {
		return nil, nil, err
	}
	return joblist.New(a.client, s, a.logger.Logger), s, nil
}

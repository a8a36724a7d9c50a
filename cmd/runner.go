package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunepipe/internal/auth"
	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/shared"
	"github.com/desertthunder/tunepipe/internal/ui"
	"github.com/urfave/cli/v3"
)

// cliSession is the session id the terminal commands use for both providers.
const cliSession = "cli"

// Prompter asks the user for a line of input.
type Prompter interface {
	Prompt(ctx context.Context, label, placeholder string, secret bool) (string, error)
}

// DialerFunc builds the Telegram dialer from configuration.
type DialerFunc func(cfg shared.TelegramConfig) (auth.Dialer, error)

type terminalPrompter struct{}

func (terminalPrompter) Prompt(ctx context.Context, label, placeholder string, secret bool) (string, error) {
	return ui.Prompt(ctx, label, placeholder, secret)
}

// mtprotoDialer is the default [DialerFunc].
func mtprotoDialer(cfg shared.TelegramConfig) (auth.Dialer, error) {
	if cfg.APIID == 0 || cfg.APIHash == "" {
		return nil, fmt.Errorf("%w: telegram api_id and api_hash must be set", shared.ErrMissingCredentials)
	}
	return services.NewMTProtoDialer(cfg.APIID, cfg.APIHash), nil
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger      *log.Logger
	output      io.Writer
	prompter    Prompter
	dialer      DialerFunc
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger      *log.Logger
	Output      io.Writer
	Prompter    Prompter
	Dialer      DialerFunc
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner, filling unset options with the terminal and network defaults.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Prompter == nil {
		opts.Prompter = terminalPrompter{}
	}
	if opts.Dialer == nil {
		opts.Dialer = mtprotoDialer
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		logger:      opts.Logger,
		output:      opts.Output,
		prompter:    opts.Prompter,
		dialer:      opts.Dialer,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){serveCommand, setupCommand, pipeCommand} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig bootstraps configuration from the --config flag, .env and the environment, and applies the log level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	config, err := shared.Bootstrap(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	shared.SetLogLevel(r.logger, config.Log.Level)
	return config, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

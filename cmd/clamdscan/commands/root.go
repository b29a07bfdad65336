// Package commands implements the clamdscan command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	clamd "github.com/DevHatRo/clamd-go"
	"github.com/DevHatRo/clamd-go/internal/logging"
)

// Version is the clamdscan version, set at build time.
var Version = "dev"

// ExitError carries the process exit code. Err, if set, is printed before exiting.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for an error returned by a command.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 2
}

// app holds the state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	logger     *logrus.Logger
}

// Execute runs the root command with a context canceled on SIGINT and SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the clamdscan command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	defaults := clamd.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "clamdscan",
		Short: "Scan data with a clamd daemon over the INSTREAM protocol",
		Long: `clamdscan streams files or standard input to a clamd daemon using the
INSTREAM command and reports the verdict. Settings are read from flags,
CLAMD_* environment variables and an optional configuration file, which is
watched for changes while scanning.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Configuration file path (yaml, toml or json)")
	flags.String("host", defaults.Host, "clamd host")
	flags.Int("port", defaults.Port, "clamd TCP port")
	flags.Duration("timeout", defaults.Timeout, "Connect and I/O timeout")
	flags.Int("chunk-length", defaults.ChunkLength, "Payload bytes per INSTREAM chunk")
	flags.String("log-level", string(logging.LevelWarn), "Logging level (trace, debug, info, warn, error)")
	flags.String("log-format", string(logging.FormatText), "Log format (text, json)")

	a.v.BindPFlag("host", flags.Lookup("host"))                 //nolint:errcheck
	a.v.BindPFlag("port", flags.Lookup("port"))                 //nolint:errcheck
	a.v.BindPFlag("timeout", flags.Lookup("timeout"))           //nolint:errcheck
	a.v.BindPFlag("chunk_length", flags.Lookup("chunk-length")) //nolint:errcheck
	a.v.BindPFlag("log_level", flags.Lookup("log-level"))       //nolint:errcheck
	a.v.BindPFlag("log_format", flags.Lookup("log-format"))     //nolint:errcheck

	a.v.SetEnvPrefix("CLAMD")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(newScanCommand(a))
	rootCmd.AddCommand(newPingCommand(a))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// setup reads the configuration file, if any, and creates the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", a.configFile, err)
		}
	}

	logger, err := logging.New(logging.Config{
		Level:  logging.Level(a.v.GetString("log_level")),
		Format: logging.Format(a.v.GetString("log_format")),
	}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// clamdConfig decodes and validates the clamd connection settings.
func (a *app) clamdConfig() (clamd.Config, error) {
	cfg := clamd.DefaultConfig()
	if err := a.v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, cfg.Validate()
}

// service returns a configured service. When a configuration file is in use
// the service is reconfigured whenever the file changes.
func (a *app) service(ctx context.Context) (*clamd.Service, error) {
	cfg, err := a.clamdConfig()
	if err != nil {
		return nil, err
	}

	svc := clamd.NewService(clamd.WithLogger(a.logger))
	if err := svc.Configure(ctx, cfg); err != nil {
		return nil, err
	}

	if a.configFile != "" {
		a.v.OnConfigChange(func(e fsnotify.Event) {
			a.reconfigure(ctx, svc, e.Name)
		})
		a.v.WatchConfig()
	}
	return svc, nil
}

// reconfigure applies the current settings to svc. Invalid settings are
// logged and the previous configuration stays in effect.
func (a *app) reconfigure(ctx context.Context, svc *clamd.Service, file string) {
	log := a.logger.WithField("file", file)

	cfg, err := a.clamdConfig()
	if err == nil {
		err = svc.Configure(ctx, cfg)
	}
	if err != nil {
		log.WithError(err).Error("ignoring changed configuration")
		return
	}
	log.WithField("addr", cfg.Address()).Info("configuration reloaded")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the clamdscan version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clamdscan %s\n", Version)
		},
	}
}

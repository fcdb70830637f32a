// Package main is the entry point for the undoledger command.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/dshills/undoledger/internal/config"
	"github.com/dshills/undoledger/internal/logging"
	"github.com/dshills/undoledger/internal/metrics"
	"github.com/dshills/undoledger/internal/orchestrator"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// cli holds the global flags and output streams.
type cli struct {
	configPath string
	capacity   int
	logLevel   string

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "undoledger",
		Short: "Replay undoable task and settings scripts",
		Long: `undoledger runs scripts of task-list and settings changes against
bounded undo/redo histories and prints the resulting state.

Examples:
  undoledger replay script.yaml
  undoledger replay --capacity 3 --output yaml script.yaml
  undoledger config --config undoledger.toml
  undoledger watch --config undoledger.toml`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to TOML configuration file")
	root.PersistentFlags().IntVar(&c.capacity, "capacity", 0, "Override the ledger capacity")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newReplayCmd(c), newConfigCmd(c), newWatchCmd(c))
	return root
}

// load resolves configuration and applies flag overrides.
func (c *cli) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("capacity") {
		cfg.Ledger.Capacity = c.capacity
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (c *cli) logger(cfg config.Config) *slog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: logging.Format(cfg.Logging.Format),
		Output: c.stderr,
	})
}

// session is what a command needs to build orchestrators.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func (c *cli) session(cmd *cobra.Command) (*session, error) {
	cfg, err := c.load(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: c.logger(cfg)}
	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		s.metrics = metrics.New(s.registry, cfg.Metrics.Namespace)
	}
	return s, nil
}

func (s *session) options(capacity int) []orchestrator.Option {
	if capacity <= 0 {
		capacity = s.cfg.Ledger.Capacity
	}
	return []orchestrator.Option{
		orchestrator.WithCapacity(capacity),
		orchestrator.WithLogger(s.logger),
		orchestrator.WithMetrics(s.metrics),
		orchestrator.WithVerifyOnRestore(s.cfg.Ledger.VerifyOnRestore),
	}
}

// writeMetrics dumps the registry in the Prometheus text format.
func (s *session) writeMetrics(w io.Writer) error {
	if s.registry == nil {
		return nil
	}
	families, err := s.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func newConfigCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			data, err := config.Encode(cfg)
			if err != nil {
				return err
			}
			_, err = c.stdout.Write(data)
			return err
		},
	}
}

func newWatchCmd(c *cli) *cobra.Command {
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the configuration every time the file changes",
		Long: `watch prints the configuration each time the file changes.

With --script the script is replayed once and its ledgers are kept. Every
reload then resizes them to the new ledger capacity and prints the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.configPath == "" {
				return fmt.Errorf("watch requires --config")
			}
			ctx := cmd.Context()
			s, err := c.session(cmd)
			if err != nil {
				return err
			}

			var held *replayed
			if scriptPath != "" {
				sc, err := readScript(scriptPath)
				if err != nil {
					return err
				}
				capacity := sc.Capacity
				if cmd.Flags().Changed("capacity") {
					capacity = 0
				}
				if held, err = replay(ctx, s, sc, capacity); err != nil {
					return err
				}
				if err := writeText(c.stdout, held.report()); err != nil {
					return err
				}
			}

			show := func(cfg config.Config) {
				data, err := config.Encode(cfg)
				if err != nil {
					s.logger.Error("encode config", slog.Any("error", err))
					return
				}
				fmt.Fprintf(c.stdout, "# %s\n%s\n", c.configPath, data)
			}
			show(s.cfg)

			w := config.NewWatcher(c.configPath, func(cfg config.Config) {
				show(cfg)
				if held == nil {
					return
				}
				if err := held.reload(ctx, c.stdout, cfg); err != nil {
					s.logger.Warn("resize failed", slog.Any("error", err))
				}
			}, config.WithErrorHandler(func(err error) {
				s.logger.Warn("config reload failed", slog.Any("error", err))
			}))
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "Replay this script and resize its ledgers on every reload")
	return cmd
}

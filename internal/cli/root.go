// Package cli implements the beacon command: enqueue records, drive
// delivery and inspect the durable queues from a terminal.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/asungur/beacon"
	"github.com/asungur/beacon/internal/config"
	"github.com/asungur/beacon/internal/logging"
	"github.com/asungur/beacon/redisstore"
	"github.com/asungur/beacon/sqlitestore"
	"github.com/spf13/cobra"
)

type app struct {
	cfgFile string
	output  string
	wait    time.Duration

	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "beacon",
		Short: "Telemetry beacon CLI",
		Long: `beacon enqueues telemetry events and logs into a durable local queue
and delivers them to the collector in batches.

Records survive restarts: anything not yet delivered is sent the next
time a beacon command runs against the same storage.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./beacon.yaml)")
	root.PersistentFlags().StringVar(&a.output, "output", "table", "output format: table, json, yaml")
	root.PersistentFlags().DurationVar(&a.wait, "wait", 0, "wait up to this long for pending records to be delivered")

	root.AddCommand(
		a.eventCommand(),
		a.economyCommand(),
		a.messageCommand(),
		a.logCommand(),
		a.flushCommand(),
		a.statusCommand(),
		a.seedCommand(),
		a.exportCommand(),
	)
	return root
}

// openStorage opens the backend named in the config.
func openStorage(cfg *config.Config) (beacon.Storage, error) {
	switch cfg.Storage.Backend {
	case "", "badger":
		return beacon.OpenBadgerStorage(cfg.Storage.Path)
	case "sqlite":
		return sqlitestore.Open(cfg.Storage.Path)
	case "redis":
		return redisstore.Open(cfg.Storage.RedisURL)
	case "memory":
		return beacon.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// withClient opens a client for the duration of fn, waits for delivery
// when --wait is set and closes everything afterwards.
func (a *app) withClient(fn func(*beacon.Client) error) error {
	return a.openClient(false, fn)
}

// inspectClient opens a client that neither sends nor enqueues automatic
// events, so fn sees the queues exactly as stored.
func (a *app) inspectClient(fn func(*beacon.Client) error) error {
	return a.openClient(true, fn)
}

func (a *app) openClient(readOnly bool, fn func(*beacon.Client) error) (err error) {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, a.stderr)

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close storage: %w", cerr)
		}
	}()

	cc := cfg.Client()
	cc.Storage = store
	cc.Logger = logger
	cc.ErrorSink = func(err error) {
		logger.Error("delivery error", "error", err)
	}
	if readOnly {
		cc.HoldDelivery = true
		cc.DisableAutoEvents = true
	}

	client, err := beacon.Open(cc)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := fn(client); err != nil {
		return err
	}
	if a.wait > 0 && !readOnly {
		a.drain(client, logger)
	}
	return nil
}

// drain flushes and polls until both queues are empty or --wait elapses.
func (a *app) drain(client *beacon.Client, logger *slog.Logger) {
	if err := client.Flush(); err != nil {
		logger.Warn("flush failed", "error", err)
		return
	}

	deadline := time.Now().Add(a.wait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		events, logs := client.Pending()
		if events == 0 && logs == 0 {
			return
		}
		if !client.IsReady() || time.Now().After(deadline) {
			logger.Warn("records still pending", "events", events, "logs", logs)
			return
		}
	}
}

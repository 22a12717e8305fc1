package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallybot/tally/internal/attribute"
	"github.com/tallybot/tally/internal/config"
	"github.com/tallybot/tally/internal/control"
	"github.com/tallybot/tally/internal/engine"
	"github.com/tallybot/tally/internal/notify"
	"github.com/tallybot/tally/internal/roster"
)

var (
	runConfigPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracker daemon",
	Long: `Run the tracker daemon: consume chat events from the stream, check off
achievements, announce progress, and serve control-plane requests.

The daemon is the single writer of the state file. Exactly one daemon should
run per instance.

Examples:
  # Run with the default config file
  tally run

  # Run with an explicit config file
  tally run --config /etc/tally/tally.yml`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "tally.yml", "Path to tally.yml")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	registry, err := attribute.BuiltinRegistry(cfg.Attributes, cfg.AnnounceOptions())
	if err != nil {
		return fmt.Errorf("failed to build attribute registry: %w", err)
	}

	store, err := roster.New(cfg.StateFile, registry, cfg.Users)
	if err != nil {
		return err
	}
	log.Printf("[INFO] Loaded state from %s: %d user(s)", cfg.StateFile, len(store.Users()))

	client, err := newStreamClient()
	if err != nil {
		return err
	}
	defer func() {
		log.Printf("[DEBUG] Closing stream client...")
		if err := client.Close(); err != nil {
			log.Printf("[ERROR] Error closing stream client: %v", err)
		}
	}()

	// Verify Redis connection
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	cancel()
	log.Printf("[INFO] Connected to Redis")

	notifier := notify.New(client)
	eng := engine.New(client, store, registry, notifier, engine.RemapRule{
		Sender:    cfg.Broadcast.Sender,
		Delimiter: cfg.Broadcast.Delimiter,
		Suffix:    cfg.Broadcast.Suffix,
	})
	loop := control.NewLoop(client, control.NewPort(store, registry, notifier))

	// Set up context for graceful shutdown
	daemonCtx, daemonCancel := context.WithCancel(context.Background())
	defer daemonCancel()

	// Set up signal handling for SIGINT and SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start consumer and control loop in background goroutines
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Start(daemonCtx)
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Start(daemonCtx)
	}()

	// Wait for shutdown signal or a loop error
	select {
	case sig := <-sigChan:
		log.Printf("[INFO] Received signal: %v", sig)
	case err := <-engineDone:
		if err != nil {
			return fmt.Errorf("event consumer error: %w", err)
		}
		log.Printf("[INFO] Event consumer exited")
		return nil
	case err := <-loopDone:
		if err != nil {
			return fmt.Errorf("control loop error: %w", err)
		}
		log.Printf("[INFO] Control loop exited")
		return nil
	}

	// Graceful shutdown: cancel, then wait for both loops. The in-flight
	// event or control request finishes (including its persistence write)
	// before the loops return.
	log.Printf("[INFO] Initiating graceful shutdown...")
	daemonCancel()

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()

	for pending := 2; pending > 0; {
		select {
		case err := <-engineDone:
			if err != nil {
				log.Printf("[ERROR] Event consumer shutdown error: %v", err)
			}
			pending--
		case err := <-loopDone:
			if err != nil {
				log.Printf("[ERROR] Control loop shutdown error: %v", err)
			}
			pending--
		case <-shutdownTimer.C:
			return fmt.Errorf("shutdown timeout - forcing exit")
		}
	}

	log.Printf("[INFO] Tally shutdown complete")
	return nil
}

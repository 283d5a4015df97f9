package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fakturo/fakturo/internal/sync"
	"github.com/fakturo/fakturo/internal/watchers/local"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the data directory in sync continuously",
	Long: `Run Fakturo as a foreground daemon.

A scheduler syncs on a fixed interval, and a filesystem watcher on the
data directory triggers an extra sync shortly after local edits settle.
Scheduled runs only happen while sync is enabled and a data source is
selected; use 'fakturo sync enable' first.

Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, cleanup, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	schedulerConfig := sync.DefaultSchedulerConfig()
	if interval := viper.GetDuration("sync.interval"); interval > 0 {
		schedulerConfig.Interval = interval
	}
	if attempts := viper.GetInt("sync.retry_attempts"); attempts > 0 {
		schedulerConfig.RetryAttempts = attempts
	}
	if delay := viper.GetDuration("sync.retry_delay"); delay > 0 {
		schedulerConfig.RetryDelay = delay
	}

	scheduler, err := sync.NewFakturoSyncScheduler(c.engine, c.state, schedulerConfig)
	if err != nil {
		return err
	}

	watcherConfig := local.DefaultWatcherConfig()
	if debounce := viper.GetDuration("watch.debounce"); debounce > 0 {
		watcherConfig.DebounceDelay = debounce
	}

	watcher, err := local.NewFakturoLocalWatcher(
		viper.GetString("data.dir"),
		watcherConfig,
		func() { scheduler.TriggerNow("watcher") },
	)
	if err != nil {
		return err
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Printf("👀 Watching %s\n", viper.GetString("data.dir"))
	fmt.Printf("🔄 Syncing with %s every %s\n", c.remote.Name(), schedulerConfig.Interval)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	// Sync once right away so startup does not wait a full interval
	scheduler.TriggerNow("startup")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Printf("\n🛑 Shutting down...\n")

	// Give an in-flight run a moment to finish
	deadline := time.Now().Add(10 * time.Second)
	for c.engine.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

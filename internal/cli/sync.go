package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fakturo/fakturo/internal/core/interfaces"
	"github.com/fakturo/fakturo/internal/database/repositories"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/fakturo/fakturo/pkg/models"
	"github.com/spf13/cobra"
)

// syncCmd represents the sync command for a one-time synchronization
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-time sync with the selected backend",
	Long: `Perform a single pull-merge-push cycle against the selected backend.

Unlike 'watch' which keeps syncing on a schedule, 'sync' performs one
cycle and exits. The command succeeds even when individual records fail
to transfer; inspect the summary and 'fakturo status' for details.`,
	RunE: runSyncOnce,
}

var syncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable scheduled syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSyncEnabled(true)
	},
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable scheduled syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSyncEnabled(false)
	},
}

func init() {
	syncCmd.AddCommand(syncEnableCmd)
	syncCmd.AddCommand(syncDisableCmd)
}

func runSyncOnce(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, cleanup, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("🔄 Syncing with %s...\n", c.remote.Name())

	unsubscribe := c.engine.Events().Subscribe(&consoleObserver{})
	defer unsubscribe()

	startTime := time.Now()
	result := c.engine.SyncWithRemote(ctx, "manual")
	duration := time.Since(startTime)

	fmt.Printf("\n")
	if result.Success {
		fmt.Printf("✅ Sync completed successfully!\n")
	} else {
		fmt.Printf("❌ Sync failed during %s: %s\n", result.Stage, result.ErrMessage)
	}

	fmt.Printf("📊 Summary:\n")
	fmt.Printf("   🔀 Merged: %d records\n", result.Stats.Merged)
	fmt.Printf("   ⚔️  Conflicts: %d\n", result.Stats.Conflicts)
	fmt.Printf("   💾 Saved locally: %d\n", result.Stats.Saved)
	fmt.Printf("   📤 Uploaded: %d\n", result.Stats.Uploaded)
	fmt.Printf("   ⏱️  Time taken: %s\n", duration.Round(time.Millisecond))

	if !result.Success {
		return fmt.Errorf("sync failed: %s", result.ErrMessage)
	}
	return nil
}

func setSyncEnabled(enabled bool) error {
	ctx := context.Background()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	state := repositories.NewStateRepository(db, fklogger.Get())
	state.Update(ctx, func(s *models.SyncState) {
		s.SyncEnabled = enabled
	})

	if enabled {
		fmt.Println("✅ Scheduled syncing enabled")
	} else {
		fmt.Println("✅ Scheduled syncing disabled")
	}
	return nil
}

// consoleObserver prints stage transitions during an interactive sync
type consoleObserver struct{}

func (o *consoleObserver) OnSyncStarted(info interfaces.RunInfo) {}

func (o *consoleObserver) OnSyncProgress(progress models.SyncProgress) {
	labels := map[models.SyncStage]string{
		models.StagePulling: "📥 Pulling remote data",
		models.StageMerging: "🔀 Merging changes",
		models.StagePushing: "📤 Pushing merged data",
	}
	if label, ok := labels[progress.Stage]; ok {
		fmt.Printf("   %s (%d/%d)\n", label, progress.Current, progress.Total)
	}
}

func (o *consoleObserver) OnSyncCompleted(result *models.SyncResult) {}

func (o *consoleObserver) OnSyncError(err error) {}

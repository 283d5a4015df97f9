package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fakturo/fakturo/internal/database/repositories"
	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and recent conflicts",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Int("conflicts", 10, "Number of recent conflicts to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conflictLimit, _ := cmd.Flags().GetInt("conflicts")

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	stateRepo := repositories.NewStateRepository(db, fklogger.Get())
	state := stateRepo.Load(ctx)

	fmt.Printf("📊 Fakturo Sync Status\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━\n")

	if state.DataSourceSelected {
		fmt.Printf("☁️  Data source:   %s\n", state.DataSource)
	} else {
		fmt.Printf("☁️  Data source:   none (run 'fakturo auth')\n")
	}

	if state.SyncEnabled {
		fmt.Printf("🔄 Scheduled sync: enabled\n")
	} else {
		fmt.Printf("🔄 Scheduled sync: disabled\n")
	}

	if state.LastSyncTime.IsZero() {
		fmt.Printf("🕐 Last sync:      never\n")
	} else {
		fmt.Printf("🕐 Last sync:      %s (%s ago)\n",
			state.LastSyncTime.Format(time.RFC3339),
			time.Since(state.LastSyncTime).Round(time.Second))
	}

	if state.IsPendingSync {
		fmt.Printf("⏳ Pending:        local changes waiting to sync\n")
	}

	conflictRepo := repositories.NewConflictRepository(db)
	conflicts, err := conflictRepo.Recent(ctx, conflictLimit)
	if err != nil {
		return fmt.Errorf("failed to read conflict log: %w", err)
	}

	if len(conflicts) == 0 {
		fmt.Printf("\n⚔️  No recorded conflicts\n")
		return nil
	}

	fmt.Printf("\n⚔️  Recent conflicts (%d):\n", len(conflicts))
	for _, entry := range conflicts {
		fmt.Printf("   %s %s/%s kept %s (local %s, remote %s)\n",
			entry.DetectedAt.Format("2006-01-02 15:04"),
			entry.EntityType,
			entry.EntityID,
			entry.Resolution,
			entry.LocalModified,
			entry.RemoteModified,
		)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Import all remote data into the local store",
	Long: `Download the full remote snapshot and import it locally.

Use this on a fresh machine to populate an empty data directory from a
previously synced backend. Nothing is uploaded; existing local records
are merged with the remote copy, newest timestamp winning.`,
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, cleanup, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	hasData, err := c.engine.HasRemoteData(ctx)
	if err != nil {
		return fmt.Errorf("failed to check remote: %w", err)
	}
	if !hasData {
		fmt.Printf("⚠️  No data found on %s, nothing to restore\n", c.remote.Name())
		return nil
	}

	fmt.Printf("📥 Restoring from %s...\n", c.remote.Name())

	result := c.engine.Restore(ctx)
	if !result.Success {
		return fmt.Errorf("restore failed: %s", result.ErrMessage)
	}

	fmt.Printf("✅ Restore complete!\n")
	fmt.Printf("   📄 Records imported: %d\n", result.Imported)
	fmt.Printf("   📊 Timesheets imported: %d\n", result.Timesheets)
	return nil
}

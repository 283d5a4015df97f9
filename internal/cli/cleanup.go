package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove empty duplicate folders from the remote",
	Long: `Reconcile duplicate folders on the remote backend.

Older versions could race folder creation and leave duplicate folders
behind. This removes the empty ones; folders with content are never
touched. WebDAV backends have nothing to clean.`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, cleanup, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("🧹 Scanning %s for duplicate folders...\n", c.remote.Name())

	deleted, err := c.remote.CleanupDuplicateFolders(ctx)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if deleted == 0 {
		fmt.Printf("✅ No empty duplicate folders found\n")
	} else {
		fmt.Printf("✅ Removed %d empty duplicate folder(s)\n", deleted)
	}
	return nil
}

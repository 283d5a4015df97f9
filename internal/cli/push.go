package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fakturo/fakturo/pkg/models"
	"github.com/spf13/cobra"
)

// pushCmd represents the push command
var pushCmd = &cobra.Command{
	Use:   "push <type> <id>",
	Short: "Upload a single record to the remote immediately",
	Long: `Push one record to the remote backend without waiting for the next
sync cycle.

Type is one of: invoices, customers, products, company_info,
tax_settings, timesheet. Collections take the record id, timesheets
take the file name, singletons take no id.

The upload overwrites whatever the remote holds for that record; it
does not merge. Use 'fakturo sync' for a full reconciling cycle.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, cleanup, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	kind := strings.ToLower(args[0])
	switch kind {
	case "timesheet", "timesheets":
		if len(args) < 2 {
			return fmt.Errorf("timesheet push requires a file name")
		}
		return pushTimesheet(ctx, c, args[1])
	case string(models.EntityCompanyInfo), string(models.EntityTaxSettings):
		return pushSingleton(ctx, c, models.EntityType(kind))
	case string(models.EntityInvoices), string(models.EntityCustomers), string(models.EntityProducts):
		if len(args) < 2 {
			return fmt.Errorf("%s push requires a record id", kind)
		}
		return pushEntity(ctx, c, models.EntityType(kind), args[1])
	default:
		return fmt.Errorf("unknown record type %q", args[0])
	}
}

func pushEntity(ctx context.Context, c *components, entityType models.EntityType, id string) error {
	entities, err := c.local.LoadAll(ctx, entityType)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", entityType, err)
	}

	for _, entity := range entities {
		if entity.ID() != id {
			continue
		}
		if err := c.remote.Upload(ctx, entityType, entity); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Printf("📤 Pushed %s %s to %s\n", entityType, id, c.remote.Name())
		return nil
	}
	return fmt.Errorf("no %s record with id %q", entityType, id)
}

func pushSingleton(ctx context.Context, c *components, entityType models.EntityType) error {
	entity, err := c.local.LoadSingleton(ctx, entityType)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", entityType, err)
	}
	if entity == nil {
		return fmt.Errorf("no local %s record", entityType)
	}

	if err := c.remote.Upload(ctx, entityType, entity); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Printf("📤 Pushed %s to %s\n", entityType, c.remote.Name())
	return nil
}

func pushTimesheet(ctx context.Context, c *components, name string) error {
	files, err := c.local.LoadTimesheets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load timesheets: %w", err)
	}

	for _, file := range files {
		if file.Name != name {
			continue
		}
		if err := c.remote.UploadTimesheet(ctx, file); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Printf("📤 Pushed timesheet %s to %s\n", name, c.remote.Name())
		return nil
	}
	return fmt.Errorf("no timesheet named %q", name)
}

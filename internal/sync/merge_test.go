package sync

import (
	"testing"
	"time"

	"github.com/fakturo/fakturo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func entityAt(id, stamp string, extra map[string]any) models.Entity {
	e := models.Entity{
		models.FieldID:           id,
		models.FieldLastModified: stamp,
		models.FieldIsDeleted:    false,
	}
	for k, v := range extra {
		e[k] = v
	}
	return e
}

func TestMergeEntitiesNewerRemoteWins(t *testing.T) {
	local := []models.Entity{entityAt("inv-1", "2026-01-01T10:00:00Z", map[string]any{"total": 100.0})}
	remote := []models.Entity{entityAt("inv-1", "2026-01-02T10:00:00Z", map[string]any{"total": 150.0})}

	outcome := MergeEntities(local, remote, models.EntityInvoices, fixedClock)

	require.Len(t, outcome.Merged, 1)
	assert.Equal(t, 150.0, outcome.Merged[0]["total"])

	require.Len(t, outcome.Conflicts, 1)
	assert.Equal(t, models.ResolutionRemote, outcome.Conflicts[0].Resolution)
	assert.Equal(t, "inv-1", outcome.Conflicts[0].EntityID)
	assert.Equal(t, models.EntityInvoices, outcome.Conflicts[0].EntityType)
	assert.Equal(t, fixedClock(), outcome.Conflicts[0].DetectedAt)
}

func TestMergeEntitiesNewerLocalWins(t *testing.T) {
	local := []models.Entity{entityAt("inv-1", "2026-01-02T10:00:00Z", map[string]any{"total": 100.0})}
	remote := []models.Entity{entityAt("inv-1", "2026-01-01T10:00:00Z", map[string]any{"total": 150.0})}

	outcome := MergeEntities(local, remote, models.EntityInvoices, fixedClock)

	require.Len(t, outcome.Merged, 1)
	assert.Equal(t, 100.0, outcome.Merged[0]["total"])

	require.Len(t, outcome.Conflicts, 1)
	assert.Equal(t, models.ResolutionLocal, outcome.Conflicts[0].Resolution)
}

func TestMergeEntitiesEqualTimestampsKeepLocalSilently(t *testing.T) {
	local := []models.Entity{entityAt("c-1", "2026-01-01T10:00:00Z", map[string]any{"name": "local name"})}
	remote := []models.Entity{entityAt("c-1", "2026-01-01T10:00:00Z", map[string]any{"name": "remote name"})}

	outcome := MergeEntities(local, remote, models.EntityCustomers, fixedClock)

	require.Len(t, outcome.Merged, 1)
	assert.Equal(t, "local name", outcome.Merged[0]["name"])
	assert.Empty(t, outcome.Conflicts, "ties must not produce conflict entries")
}

func TestMergeEntitiesUnionBothDirections(t *testing.T) {
	local := []models.Entity{entityAt("a", "2026-01-01T10:00:00Z", nil)}
	remote := []models.Entity{entityAt("b", "2026-01-01T11:00:00Z", nil)}

	outcome := MergeEntities(local, remote, models.EntityProducts, fixedClock)

	require.Len(t, outcome.Merged, 2)
	assert.Equal(t, "a", outcome.Merged[0].ID())
	assert.Equal(t, "b", outcome.Merged[1].ID())
	assert.Empty(t, outcome.Conflicts, "new records on either side are not conflicts")
}

func TestMergeEntitiesNoDuplicateIDs(t *testing.T) {
	local := []models.Entity{
		entityAt("a", "2026-01-01T10:00:00Z", nil),
		entityAt("b", "2026-01-01T10:00:00Z", nil),
	}
	remote := []models.Entity{
		entityAt("b", "2026-01-05T10:00:00Z", nil),
		entityAt("c", "2026-01-01T10:00:00Z", nil),
	}

	outcome := MergeEntities(local, remote, models.EntityInvoices, fixedClock)

	seen := map[string]int{}
	for _, entity := range outcome.Merged {
		seen[entity.ID()]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
}

func TestMergeEntitiesDedupesRepeatedLocalID(t *testing.T) {
	// A corrupted tree can load the same id twice, once from a legacy
	// id-named file and once from a renamed one
	local := []models.Entity{
		entityAt("inv-1", "2026-01-01T10:00:00Z", map[string]any{"total": 100.0}),
		entityAt("inv-1", "2026-01-03T10:00:00Z", map[string]any{"total": 120.0}),
		entityAt("inv-2", "2026-01-01T10:00:00Z", nil),
	}

	outcome := MergeEntities(local, nil, models.EntityInvoices, fixedClock)

	require.Len(t, outcome.Merged, 2)
	assert.Equal(t, "inv-1", outcome.Merged[0].ID())
	assert.Equal(t, 120.0, outcome.Merged[0]["total"], "newer duplicate wins")
	assert.Equal(t, "inv-2", outcome.Merged[1].ID())
	assert.Empty(t, outcome.Conflicts)
}

func TestMergeEntitiesTombstonePropagates(t *testing.T) {
	tombstone := entityAt("inv-9", "2026-01-03T10:00:00Z", nil)
	tombstone[models.FieldIsDeleted] = true

	local := []models.Entity{tombstone}
	remote := []models.Entity{entityAt("inv-9", "2026-01-01T10:00:00Z", map[string]any{"total": 50.0})}

	outcome := MergeEntities(local, remote, models.EntityInvoices, fixedClock)

	// The tombstone is newer so it survives the merge, stays in the
	// persisted set, and disappears from the active view
	require.Len(t, outcome.Merged, 1)
	assert.True(t, outcome.Merged[0].IsDeleted())
	assert.Empty(t, outcome.Active)
}

func TestMergeEntitiesResurrectionByNewerEdit(t *testing.T) {
	tombstone := entityAt("inv-9", "2026-01-01T10:00:00Z", nil)
	tombstone[models.FieldIsDeleted] = true

	local := []models.Entity{tombstone}
	remote := []models.Entity{entityAt("inv-9", "2026-01-02T10:00:00Z", map[string]any{"total": 50.0})}

	outcome := MergeEntities(local, remote, models.EntityInvoices, fixedClock)

	require.Len(t, outcome.Merged, 1)
	assert.False(t, outcome.Merged[0].IsDeleted())
	require.Len(t, outcome.Active, 1)
}

func TestMergeEntitiesMissingTimestampLosesToAnyTimestamp(t *testing.T) {
	local := []models.Entity{{models.FieldID: "x"}}
	remote := []models.Entity{entityAt("x", "2026-01-01T10:00:00Z", map[string]any{"name": "stamped"})}

	outcome := MergeEntities(local, remote, models.EntityCustomers, fixedClock)

	require.Len(t, outcome.Merged, 1)
	assert.Equal(t, "stamped", outcome.Merged[0]["name"])
}

func TestMergeEntitiesIsDeterministic(t *testing.T) {
	local := []models.Entity{
		entityAt("a", "2026-01-01T10:00:00Z", nil),
		entityAt("b", "2026-01-02T10:00:00Z", nil),
	}
	remote := []models.Entity{
		entityAt("b", "2026-01-03T10:00:00Z", nil),
		entityAt("c", "2026-01-01T10:00:00Z", nil),
	}

	first := MergeEntities(local, remote, models.EntityInvoices, fixedClock)
	second := MergeEntities(local, remote, models.EntityInvoices, fixedClock)

	assert.Equal(t, first.Merged, second.Merged)
	assert.Equal(t, first.Conflicts, second.Conflicts)
}

func TestMergeSingleton(t *testing.T) {
	older := entityAt("company_info", "2026-01-01T10:00:00Z", map[string]any{"name": "Old Co"})
	newer := entityAt("company_info", "2026-02-01T10:00:00Z", map[string]any{"name": "New Co"})

	assert.Equal(t, newer, MergeSingleton(older, newer))
	assert.Equal(t, newer, MergeSingleton(newer, older))
	assert.Equal(t, older, MergeSingleton(older, nil))
	assert.Equal(t, newer, MergeSingleton(nil, newer))
	assert.Nil(t, MergeSingleton(nil, nil))

	// Tie keeps local
	tie := entityAt("company_info", "2026-02-01T10:00:00Z", map[string]any{"name": "Local Co"})
	assert.Equal(t, tie, MergeSingleton(tie, newer))
}

func TestMergeTimesheetsNewerFileWins(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	local := []models.TimesheetFile{
		{Name: "january.xlsx", Content: []byte("local"), Modified: older},
		{Name: "local-only.xlsx", Content: []byte("x"), Modified: older},
	}
	remote := []models.TimesheetFile{
		{Name: "january.xlsx", Content: []byte("remote"), Modified: newer},
		{Name: "remote-only.xlsx", Content: []byte("y"), Modified: older},
	}

	merged := MergeTimesheets(local, remote)

	require.Len(t, merged, 3)
	byName := map[string][]byte{}
	for _, f := range merged {
		byName[f.Name] = f.Content
	}
	assert.Equal(t, []byte("remote"), byName["january.xlsx"])
	assert.Equal(t, []byte("x"), byName["local-only.xlsx"])
	assert.Equal(t, []byte("y"), byName["remote-only.xlsx"])
}

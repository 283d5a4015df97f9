package sync

import (
	"time"

	"github.com/fakturo/fakturo/pkg/models"
)

// MergeOutcome is the result of reconciling one entity collection.
//
// Merged is the tombstone-inclusive set: it is what gets persisted locally
// and uploaded, so tombstones keep propagating until the other replica has
// seen them. Active is Merged with tombstones filtered out, for
// consumer-facing views. Keeping both side by side makes it hard to persist
// the wrong one.
type MergeOutcome struct {
	Merged    []models.Entity
	Active    []models.Entity
	Conflicts []models.ConflictEntry
}

// MergeEntities reconciles a local and a remote collection of the same
// entity type by last-write-wins on lastModified.
//
// The result starts as the local set keyed by id. Remote entities not
// present locally are inserted as-is. For entities present on both sides
// the strictly newer timestamp wins and a conflict entry is recorded.
// Equal timestamps keep local silently. That is the tie-break rule, not
// an artifact of insertion order.
//
// Pure and deterministic; runs without I/O. Output order is local entities
// first (original order), then new remote entities (remote order). No id
// appears twice.
func MergeEntities(local, remote []models.Entity, entityType models.EntityType, now Clock) MergeOutcome {
	merged := make([]models.Entity, 0, len(local)+len(remote))
	index := make(map[string]int, len(local))

	for _, entity := range local {
		id := entity.ID()
		// A corrupted tree can hold the same id twice (a legacy id-named
		// file next to a renamed one); keep the newer copy
		if pos, exists := index[id]; exists {
			if entity.ModifiedTime().After(merged[pos].ModifiedTime()) {
				merged[pos] = entity
			}
			continue
		}
		index[id] = len(merged)
		merged = append(merged, entity)
	}

	var conflicts []models.ConflictEntry
	for _, remoteEntity := range remote {
		id := remoteEntity.ID()
		pos, exists := index[id]
		if !exists {
			// Genuinely new record: remote wins by default
			index[id] = len(merged)
			merged = append(merged, remoteEntity)
			continue
		}

		localEntity := merged[pos]
		localTime := localEntity.ModifiedTime()
		remoteTime := remoteEntity.ModifiedTime()

		switch {
		case remoteTime.After(localTime):
			merged[pos] = remoteEntity
			conflicts = append(conflicts, conflictEntry(entityType, id, localEntity, remoteEntity, models.ResolutionRemote, now))
		case localTime.After(remoteTime):
			conflicts = append(conflicts, conflictEntry(entityType, id, localEntity, remoteEntity, models.ResolutionLocal, now))
		default:
			// Equal timestamps: keep local, no conflict logged
		}
	}

	return MergeOutcome{
		Merged:    merged,
		Active:    filterActive(merged),
		Conflicts: conflicts,
	}
}

// MergeSingleton reconciles a singleton pair (CompanyInfo,
// PersonalTaxSettings) with the same two-timestamp comparison. Either side
// may be nil. Ties keep local.
func MergeSingleton(local, remote models.Entity) models.Entity {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remote.ModifiedTime().After(local.ModifiedTime()) {
		return remote
	}
	return local
}

// MergeTimesheets reconciles spreadsheet blobs by name, newer file
// modification time wins. Blobs are never algorithmically merged.
func MergeTimesheets(local, remote []models.TimesheetFile) []models.TimesheetFile {
	merged := make([]models.TimesheetFile, 0, len(local)+len(remote))
	index := make(map[string]int, len(local))

	for _, file := range local {
		index[file.Name] = len(merged)
		merged = append(merged, file)
	}

	for _, remoteFile := range remote {
		pos, exists := index[remoteFile.Name]
		if !exists {
			index[remoteFile.Name] = len(merged)
			merged = append(merged, remoteFile)
			continue
		}
		if remoteFile.Modified.After(merged[pos].Modified) {
			merged[pos] = remoteFile
		}
	}

	return merged
}

func conflictEntry(entityType models.EntityType, id string, local, remote models.Entity, resolution models.ConflictResolution, now Clock) models.ConflictEntry {
	detectedAt := time.Now()
	if now != nil {
		detectedAt = now()
	}
	return models.ConflictEntry{
		EntityType:     entityType,
		EntityID:       id,
		LocalModified:  local.LastModified(),
		RemoteModified: remote.LastModified(),
		Resolution:     resolution,
		DetectedAt:     detectedAt,
	}
}

func filterActive(entities []models.Entity) []models.Entity {
	active := make([]models.Entity, 0, len(entities))
	for _, entity := range entities {
		if !entity.IsDeleted() {
			active = append(active, entity)
		}
	}
	return active
}

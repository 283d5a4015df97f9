// Package utils provides small helpers shared across Fakturo
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/fakturo/fakturo/pkg/models"
)

// ContentHash returns a stable hash of an entity's payload, ignoring the
// envelope's volatile fields. Two records that differ only in their
// lastModified/updatedAt stamps hash identically, which is what lets the
// remote adapters skip uploads of unchanged objects.
func ContentHash(entity models.Entity) string {
	if entity == nil {
		return ""
	}
	scrubbed := make(map[string]any, len(entity))
	for k, v := range entity {
		if k == models.FieldLastModified || k == models.FieldUpdatedAt {
			continue
		}
		scrubbed[k] = v
	}
	// encoding/json sorts map keys, so the encoding is canonical
	data, err := json.Marshal(scrubbed)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BytesHash returns the hash of a raw blob (timesheet spreadsheets)
func BytesHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DataSetHash fingerprints a whole snapshot. Stored in the sync state
// record after a successful push.
func DataSetHash(data *models.DataSet) string {
	if data == nil {
		return ""
	}
	h := sha256.New()
	for _, entityType := range models.CollectionTypes {
		entities := append([]models.Entity(nil), data.Collection(entityType)...)
		sort.Slice(entities, func(i, j int) bool { return entities[i].ID() < entities[j].ID() })
		for _, entity := range entities {
			h.Write([]byte(entity.ID()))
			h.Write([]byte(ContentHash(entity)))
		}
	}
	h.Write([]byte(ContentHash(data.CompanyInfo)))
	h.Write([]byte(ContentHash(data.TaxSettings)))
	for _, ts := range data.Timesheets {
		h.Write([]byte(ts.Name))
		h.Write([]byte(BytesHash(ts.Content)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

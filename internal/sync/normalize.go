// Package sync implements Fakturo's bidirectional synchronization engine
package sync

import (
	"time"

	"github.com/fakturo/fakturo/pkg/models"
)

// Clock supplies the current time. Injected so normalization is
// deterministic under test.
type Clock func() time.Time

// NormalizeEntity returns a copy of the entity with canonical sync metadata
// backfilled, recursively through nested objects and arrays of objects
// (an invoice's embedded customer snapshot, line items, and so on).
//
// Per object level, independently:
//   - missing or empty lastModified is set from updatedAt when present,
//     else from the clock. Stamping legacy records with wall-clock time is
//     a known weak guarantee; it only applies to records that never carried
//     a timestamp.
//   - isDeleted defaults to false on any object carrying an id
//   - isRectified defaults to false on any object carrying an
//     invoice_number
//
// No other fields are altered. The input is never mutated.
func NormalizeEntity(entity models.Entity, now Clock) models.Entity {
	if entity == nil {
		return nil
	}
	return models.Entity(normalizeObject(map[string]any(entity.Clone()), now))
}

// NormalizeAll normalizes a whole collection
func NormalizeAll(entities []models.Entity, now Clock) []models.Entity {
	if entities == nil {
		return nil
	}
	out := make([]models.Entity, len(entities))
	for i, entity := range entities {
		out[i] = NormalizeEntity(entity, now)
	}
	return out
}

// NormalizeDataSet normalizes every JSON collection of a snapshot.
// Timesheet blobs are opaque and pass through untouched.
func NormalizeDataSet(data *models.DataSet, now Clock) *models.DataSet {
	if data == nil {
		return nil
	}
	return &models.DataSet{
		Invoices:    NormalizeAll(data.Invoices, now),
		Customers:   NormalizeAll(data.Customers, now),
		Products:    NormalizeAll(data.Products, now),
		CompanyInfo: NormalizeEntity(data.CompanyInfo, now),
		TaxSettings: NormalizeEntity(data.TaxSettings, now),
		Timesheets:  data.Timesheets,
	}
}

// normalizeObject applies the rules to one object level, then recurses.
// Operates in place on an already-copied map.
func normalizeObject(obj map[string]any, now Clock) map[string]any {
	lastModified, hasLastModified := obj[models.FieldLastModified].(string)
	if !hasLastModified || lastModified == "" {
		if updatedAt, ok := obj[models.FieldUpdatedAt].(string); ok && updatedAt != "" {
			obj[models.FieldLastModified] = updatedAt
		} else {
			obj[models.FieldLastModified] = now().UTC().Format(time.RFC3339)
		}
	}

	if _, hasID := obj[models.FieldID]; hasID {
		if _, ok := obj[models.FieldIsDeleted]; !ok {
			obj[models.FieldIsDeleted] = false
		}
	}

	if _, hasInvoiceNumber := obj[models.FieldInvoiceNumber]; hasInvoiceNumber {
		if _, ok := obj[models.FieldIsRectified]; !ok {
			obj[models.FieldIsRectified] = false
		}
	}

	for key, value := range obj {
		switch nested := value.(type) {
		case map[string]any:
			obj[key] = normalizeObject(nested, now)
		case []any:
			for i, element := range nested {
				if inner, ok := element.(map[string]any); ok {
					nested[i] = normalizeObject(inner, now)
				}
			}
		}
	}

	return obj
}

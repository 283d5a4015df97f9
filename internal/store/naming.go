package store

import (
	"time"

	"github.com/fakturo/fakturo/pkg/models"
	"github.com/fakturo/fakturo/pkg/utils"
)

// FileNameFor derives the human-readable file name for an entity: the
// invoice number for invoices, the sanitized name for customers and
// products. Falls back to the id when nothing usable exists. The returned
// name has no extension.
func FileNameFor(entityType models.EntityType, entity models.Entity) string {
	var key string
	switch entityType {
	case models.EntityInvoices:
		key, _ = entity[models.FieldInvoiceNumber].(string)
	case models.EntityCustomers, models.EntityProducts:
		key, _ = entity[models.FieldName].(string)
	}

	if sanitized := utils.SanitizeName(key); sanitized != "" {
		return sanitized
	}
	return entity.ID()
}

// InvoiceYear derives the year subdirectory for an invoice from its
// invoice date, falling back to the lastModified year, then to the
// current year for records carrying neither.
func InvoiceYear(entity models.Entity, now func() time.Time) string {
	if raw, ok := entity[models.FieldInvoiceDate].(string); ok && len(raw) >= 4 {
		if _, err := time.Parse("2006", raw[:4]); err == nil {
			return raw[:4]
		}
	}
	if t := entity.ModifiedTime(); !t.IsZero() {
		return t.Format("2006")
	}
	return now().Format("2006")
}

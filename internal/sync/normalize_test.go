package sync

import (
	"testing"

	"github.com/fakturo/fakturo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEntityBackfillsFromUpdatedAt(t *testing.T) {
	entity := models.Entity{
		models.FieldID:        "c-1",
		models.FieldUpdatedAt: "2025-06-01T09:00:00Z",
	}

	normalized := NormalizeEntity(entity, fixedClock)

	assert.Equal(t, "2025-06-01T09:00:00Z", normalized.LastModified())
	assert.Equal(t, false, normalized[models.FieldIsDeleted])
}

func TestNormalizeEntityBackfillsFromClock(t *testing.T) {
	entity := models.Entity{models.FieldID: "c-1"}

	normalized := NormalizeEntity(entity, fixedClock)

	assert.Equal(t, "2026-03-01T12:00:00Z", normalized.LastModified())
}

func TestNormalizeEntityPreservesExistingTimestamp(t *testing.T) {
	entity := models.Entity{
		models.FieldID:           "c-1",
		models.FieldLastModified: "2024-01-01T00:00:00Z",
		models.FieldUpdatedAt:    "2025-06-01T09:00:00Z",
	}

	normalized := NormalizeEntity(entity, fixedClock)

	assert.Equal(t, "2024-01-01T00:00:00Z", normalized.LastModified())
}

func TestNormalizeEntityEmptyTimestampTreatedAsMissing(t *testing.T) {
	entity := models.Entity{
		models.FieldID:           "c-1",
		models.FieldLastModified: "",
	}

	normalized := NormalizeEntity(entity, fixedClock)

	assert.Equal(t, "2026-03-01T12:00:00Z", normalized.LastModified())
}

func TestNormalizeEntityRectifiedDefaultsOnInvoices(t *testing.T) {
	invoice := models.Entity{
		models.FieldID:            "inv-1",
		models.FieldInvoiceNumber: "2026-001",
	}

	normalized := NormalizeEntity(invoice, fixedClock)

	assert.Equal(t, false, normalized[models.FieldIsRectified])

	// A record without an invoice number gains no rectification flag
	customer := NormalizeEntity(models.Entity{models.FieldID: "c-1"}, fixedClock)
	_, present := customer[models.FieldIsRectified]
	assert.False(t, present)
}

func TestNormalizeEntityRecursesIntoNestedObjects(t *testing.T) {
	invoice := models.Entity{
		models.FieldID:            "inv-1",
		models.FieldInvoiceNumber: "2026-001",
		"customer": map[string]any{
			models.FieldID: "c-1",
			"name":         "ACME",
		},
		"items": []any{
			map[string]any{models.FieldID: "item-1", "qty": 2.0},
			"free-form note",
		},
	}

	normalized := NormalizeEntity(invoice, fixedClock)

	customer, ok := normalized["customer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-03-01T12:00:00Z", customer[models.FieldLastModified])
	assert.Equal(t, false, customer[models.FieldIsDeleted])

	items, ok := normalized["items"].([]any)
	require.True(t, ok)
	item, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, item[models.FieldIsDeleted])
	assert.Equal(t, "free-form note", items[1])
}

func TestNormalizeEntityDoesNotMutateInput(t *testing.T) {
	original := models.Entity{
		models.FieldID: "c-1",
		"nested":       map[string]any{models.FieldID: "n-1"},
	}

	NormalizeEntity(original, fixedClock)

	_, stamped := original[models.FieldLastModified]
	assert.False(t, stamped)
	nested := original["nested"].(map[string]any)
	_, nestedStamped := nested[models.FieldLastModified]
	assert.False(t, nestedStamped)
}

func TestNormalizeEntityLeavesPayloadAlone(t *testing.T) {
	entity := models.Entity{
		models.FieldID: "p-1",
		"price":        19.99,
		"tags":         []any{"a", "b"},
	}

	normalized := NormalizeEntity(entity, fixedClock)

	assert.Equal(t, 19.99, normalized["price"])
	assert.Equal(t, []any{"a", "b"}, normalized["tags"])
}

func TestNormalizeDataSet(t *testing.T) {
	data := &models.DataSet{
		Invoices:    []models.Entity{{models.FieldID: "inv-1", models.FieldInvoiceNumber: "1"}},
		Customers:   []models.Entity{{models.FieldID: "c-1"}},
		CompanyInfo: models.Entity{models.FieldID: "company_info"},
		Timesheets:  []models.TimesheetFile{{Name: "jan.xlsx", Content: []byte{1, 2}}},
	}

	normalized := NormalizeDataSet(data, fixedClock)

	assert.NotEmpty(t, normalized.Invoices[0].LastModified())
	assert.NotEmpty(t, normalized.Customers[0].LastModified())
	assert.NotEmpty(t, normalized.CompanyInfo.LastModified())
	assert.Nil(t, normalized.TaxSettings)
	// Blobs pass through untouched
	assert.Equal(t, data.Timesheets, normalized.Timesheets)

	assert.Nil(t, NormalizeDataSet(nil, fixedClock))
}

// Package models defines the data types shared across Fakturo components
package models

import (
	"time"
)

// Envelope field names present on every syncable record. Payload fields
// beyond these are opaque to the sync engine.
const (
	FieldID            = "id"
	FieldLastModified  = "lastModified"
	FieldUpdatedAt     = "updatedAt"
	FieldIsDeleted     = "isDeleted"
	FieldIsRectified   = "isRectified"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldName          = "name"
)

// EntityType identifies a syncable collection
type EntityType string

const (
	// EntityInvoices invoice records, partitioned by year locally
	EntityInvoices EntityType = "invoices"
	// EntityCustomers customer records
	EntityCustomers EntityType = "customers"
	// EntityProducts product records
	EntityProducts EntityType = "products"
	// EntityCompanyInfo singleton company record
	EntityCompanyInfo EntityType = "company_info"
	// EntityTaxSettings singleton personal tax settings record
	EntityTaxSettings EntityType = "tax_settings"
	// EntityTimesheets binary spreadsheet blobs, excluded from the merge path
	EntityTimesheets EntityType = "timesheets"
)

// CollectionTypes lists the entity types merged as id-keyed collections
var CollectionTypes = []EntityType{EntityInvoices, EntityCustomers, EntityProducts}

// SingletonID returns the fixed well-known id used for a singleton type
func SingletonID(entityType EntityType) string {
	return string(entityType)
}

// Entity is a syncable record. The sync engine only interprets the envelope
// fields; everything else is carried through untouched.
type Entity map[string]any

// ID returns the entity id, or empty string if unset
func (e Entity) ID() string {
	return e.stringField(FieldID)
}

// LastModified returns the raw lastModified value
func (e Entity) LastModified() string {
	return e.stringField(FieldLastModified)
}

// ModifiedTime returns the parsed lastModified timestamp. Records with a
// missing or unparseable timestamp sort before everything else.
func (e Entity) ModifiedTime() time.Time {
	return ParseTimestamp(e.LastModified())
}

// IsDeleted reports whether the record carries a tombstone
func (e Entity) IsDeleted() bool {
	v, ok := e[FieldIsDeleted]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// SetLastModified stamps the record with an RFC 3339 timestamp
func (e Entity) SetLastModified(t time.Time) {
	e[FieldLastModified] = t.UTC().Format(time.RFC3339)
}

// MarkDeleted sets the tombstone flag and re-stamps lastModified
func (e Entity) MarkDeleted(now time.Time) {
	e[FieldIsDeleted] = true
	e.SetLastModified(now)
}

// Clone returns a deep copy of the entity
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Entity:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}

func (e Entity) stringField(key string) string {
	v, ok := e[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ParseTimestamp parses an ISO-8601 timestamp, returning the zero time
// when the value is empty or malformed
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TimesheetFile is a binary spreadsheet blob synced as-is, never merged.
// Last write wins by file modification time.
type TimesheetFile struct {
	Name     string    `json:"name"`
	Content  []byte    `json:"-"`
	Modified time.Time `json:"modified"`
}

// DataSet is a full snapshot of every syncable collection, as exchanged
// between the local store and a remote backend
type DataSet struct {
	Invoices    []Entity        `json:"invoices"`
	Customers   []Entity        `json:"customers"`
	Products    []Entity        `json:"products"`
	CompanyInfo Entity          `json:"company_info,omitempty"`
	TaxSettings Entity          `json:"tax_settings,omitempty"`
	Timesheets  []TimesheetFile `json:"timesheets,omitempty"`
}

// Collection returns the id-keyed collection for the given type
func (d *DataSet) Collection(entityType EntityType) []Entity {
	switch entityType {
	case EntityInvoices:
		return d.Invoices
	case EntityCustomers:
		return d.Customers
	case EntityProducts:
		return d.Products
	default:
		return nil
	}
}

// SetCollection replaces the id-keyed collection for the given type
func (d *DataSet) SetCollection(entityType EntityType, entities []Entity) {
	switch entityType {
	case EntityInvoices:
		d.Invoices = entities
	case EntityCustomers:
		d.Customers = entities
	case EntityProducts:
		d.Products = entities
	}
}

// IsEmpty reports whether the snapshot holds no data at all
func (d *DataSet) IsEmpty() bool {
	if d == nil {
		return true
	}
	return len(d.Invoices) == 0 &&
		len(d.Customers) == 0 &&
		len(d.Products) == 0 &&
		d.CompanyInfo == nil &&
		d.TaxSettings == nil &&
		len(d.Timesheets) == 0
}

// EntityCount returns the number of JSON entities in the snapshot,
// singletons included, timesheet blobs excluded
func (d *DataSet) EntityCount() int {
	if d == nil {
		return 0
	}
	n := len(d.Invoices) + len(d.Customers) + len(d.Products)
	if d.CompanyInfo != nil {
		n++
	}
	if d.TaxSettings != nil {
		n++
	}
	return n
}

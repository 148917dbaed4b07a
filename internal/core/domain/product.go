package domain

import (
	"encoding/json"
	"time"
)

// ProductRecord is a catalog entry as held by the relational product store.
// List and object typed fields are the raw serialized text stored in their columns.
type ProductRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	Tags          string    `json:"tags"`
	Advantages    string    `json:"advantages"`
	Disadvantages string    `json:"disadvantages"`
	PricingInfo   string    `json:"pricingInfo"`
	VideoURLs     string    `json:"videoUrls"`
	DetailInfo    string    `json:"detailInfo"`
	ImageURL      string    `json:"imageUrl"`
	ExternalURL   string    `json:"externalUrl"`
	HasTrial      bool      `json:"hasTrial"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SanitizedProduct is a product record with every structured field parsed
// (or replaced by its default). This is the element type of a snapshot.
type SanitizedProduct struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Price         float64         `json:"price"`
	Tags          []string        `json:"tags"`
	Advantages    []string        `json:"advantages"`
	Disadvantages []string        `json:"disadvantages"`
	PricingInfo   json.RawMessage `json:"pricingInfo"`
	VideoURLs     []string        `json:"videoUrls"`
	DetailInfo    string          `json:"detailInfo"`
	ImageURL      string          `json:"imageUrl"`
	ExternalURL   string          `json:"externalUrl"`
	HasTrial      bool            `json:"hasTrial"`
}

// StructuredField names a structured column of a product record.
type StructuredField string

const (
	FieldTags          StructuredField = "tags"
	FieldAdvantages    StructuredField = "advantages"
	FieldDisadvantages StructuredField = "disadvantages"
	FieldPricingInfo   StructuredField = "pricingInfo"
	FieldVideoURLs     StructuredField = "videoUrls"
)

// StructuredFields lists every structured field in export order.
var StructuredFields = []StructuredField{
	FieldTags,
	FieldAdvantages,
	FieldDisadvantages,
	FieldPricingInfo,
	FieldVideoURLs,
}

// FieldStatus is the outcome of sanitizing a single structured field.
type FieldStatus string

const (
	// FieldParsed means the stored text parsed into the expected shape
	FieldParsed FieldStatus = "parsed"
	// FieldEmpty means nothing was stored and the default was used
	FieldEmpty FieldStatus = "empty"
	// FieldMalformed means the stored text could not be parsed and the default was used
	FieldMalformed FieldStatus = "malformed"
)

// UsedDefault reports whether the field value is the default rather than stored data.
func (s FieldStatus) UsedDefault() bool {
	return s != FieldParsed
}

// FieldResult records how one structured field of one record was sanitized.
type FieldResult struct {
	ProductID string          `json:"productId"`
	Field     StructuredField `json:"field"`
	Status    FieldStatus     `json:"status"`
	Reason    string          `json:"reason,omitempty"`
}

// SanitizeReport aggregates field results over an export run.
type SanitizeReport struct {
	Records   int                     `json:"records"`
	Parsed    int                     `json:"parsed"`
	Empty     int                     `json:"empty"`
	Malformed map[StructuredField]int `json:"malformed"`
	// Offenders holds one entry per malformed field.
	Offenders []FieldResult `json:"offenders,omitempty"`
}

// NewSanitizeReport creates an empty report.
func NewSanitizeReport() *SanitizeReport {
	return &SanitizeReport{Malformed: make(map[StructuredField]int)}
}

// Add folds a field result into the report.
func (r *SanitizeReport) Add(res FieldResult) {
	switch res.Status {
	case FieldParsed:
		r.Parsed++
	case FieldEmpty:
		r.Empty++
	case FieldMalformed:
		r.Malformed[res.Field]++
		r.Offenders = append(r.Offenders, res)
	}
}

// MalformedTotal returns the number of malformed fields across all records.
func (r *SanitizeReport) MalformedTotal() int {
	total := 0
	for _, n := range r.Malformed {
		total += n
	}
	return total
}

// ProductRef is the product summary attached to a recommendation.
type ProductRef struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Website     string `json:"website,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

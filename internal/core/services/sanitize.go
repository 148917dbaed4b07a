package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

var emptyObject = json.RawMessage("{}")

// SanitizeProduct parses every structured field of p independently.
// A field that is missing or malformed is replaced by its default ([] or {});
// the record itself is always returned.
func SanitizeProduct(p *domain.ProductRecord) (*domain.SanitizedProduct, []domain.FieldResult) {
	out := &domain.SanitizedProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		DetailInfo:  p.DetailInfo,
		ImageURL:    p.ImageURL,
		ExternalURL: p.ExternalURL,
		HasTrial:    p.HasTrial,
	}

	results := make([]domain.FieldResult, 0, len(domain.StructuredFields))
	record := func(field domain.StructuredField, status domain.FieldStatus, reason string) {
		results = append(results, domain.FieldResult{
			ProductID: p.ID,
			Field:     field,
			Status:    status,
			Reason:    reason,
		})
	}

	var status domain.FieldStatus
	var reason string

	out.Tags, status, reason = parseStringList(p.Tags)
	record(domain.FieldTags, status, reason)

	out.Advantages, status, reason = parseStringList(p.Advantages)
	record(domain.FieldAdvantages, status, reason)

	out.Disadvantages, status, reason = parseStringList(p.Disadvantages)
	record(domain.FieldDisadvantages, status, reason)

	out.PricingInfo, status, reason = parseObject(p.PricingInfo)
	record(domain.FieldPricingInfo, status, reason)

	out.VideoURLs, status, reason = parseStringList(p.VideoURLs)
	record(domain.FieldVideoURLs, status, reason)

	return out, results
}

func isBlank(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || trimmed == "null"
}

// parseStringList expects a JSON array of strings.
func parseStringList(raw string) ([]string, domain.FieldStatus, string) {
	if isBlank(raw) {
		return []string{}, domain.FieldEmpty, ""
	}

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []string{}, domain.FieldMalformed, err.Error()
	}

	list := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return []string{}, domain.FieldMalformed, fmt.Sprintf("element %d is %T, not a string", i, item)
		}
		list = append(list, s)
	}
	return list, domain.FieldParsed, ""
}

// parseObject expects a JSON object of any nesting.
func parseObject(raw string) (json.RawMessage, domain.FieldStatus, string) {
	if isBlank(raw) {
		return emptyObject, domain.FieldEmpty, ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return emptyObject, domain.FieldMalformed, err.Error()
	}
	if obj == nil {
		return emptyObject, domain.FieldEmpty, ""
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return emptyObject, domain.FieldMalformed, err.Error()
	}
	return json.RawMessage(buf.Bytes()), domain.FieldParsed, ""
}

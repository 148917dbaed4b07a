package services

import (
	"strings"
	"unicode"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

const (
	defaultEstimatedCount = 5
	maxPreviewCategories  = 3
)

// keywordRule maps query keywords to a preview contribution.
// Single-word keywords match the start of a query word; phrases match anywhere.
type keywordRule struct {
	keywords []string
	value    string
	count    int
}

// Ordered by precedence: the first matching count rule wins.
var countRules = []keywordRule{
	{keywords: []string{"video", "youtube", "tiktok"}, count: 8},
	{keywords: []string{"email", "marketing", "newsletter"}, count: 12},
	{keywords: []string{"website", "web"}, count: 15},
	{keywords: []string{"automation", "workflow"}, count: 10},
	{keywords: []string{"chat", "customer", "support"}, count: 6},
	{keywords: []string{"seo"}, count: 7},
	{keywords: []string{"accounting", "invoice"}, count: 5},
	{keywords: []string{"design", "graphic"}, count: 9},
	{keywords: []string{"ai", "artificial intelligence"}, count: 11},
}

var categoryRules = []keywordRule{
	{keywords: []string{"video", "youtube"}, value: "Video Generation"},
	{keywords: []string{"email", "marketing"}, value: "Email Marketing"},
	{keywords: []string{"website", "web"}, value: "Website Builder"},
	{keywords: []string{"automation", "workflow"}, value: "Automation"},
	{keywords: []string{"accounting", "invoice"}, value: "Accounting"},
	{keywords: []string{"chat", "support"}, value: "Customer Service"},
	{keywords: []string{"seo"}, value: "SEO Tools"},
	{keywords: []string{"design", "graphic"}, value: "Design & Graphics"},
	{keywords: []string{"social"}, value: "Social Media"},
	{keywords: []string{"analytics"}, value: "Analytics"},
	{keywords: []string{"ai", "artificial intelligence"}, value: "AI Tools"},
}

// EstimatePreview returns the coarse preview shown before results arrive.
func EstimatePreview(query string) domain.Preview {
	lowered := strings.ToLower(query)
	words := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	preview := domain.Preview{
		EstimatedCount: defaultEstimatedCount,
		Categories:     []string{},
	}

	for _, rule := range countRules {
		if rule.matches(lowered, words) {
			preview.EstimatedCount = rule.count
			break
		}
	}

	for _, rule := range categoryRules {
		if len(preview.Categories) == maxPreviewCategories {
			break
		}
		if rule.matches(lowered, words) {
			preview.Categories = append(preview.Categories, rule.value)
		}
	}

	return preview
}

func (r keywordRule) matches(lowered string, words []string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lowered, kw) {
				return true
			}
			continue
		}
		for _, w := range words {
			if strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}

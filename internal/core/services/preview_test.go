package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEstimatePreview(t *testing.T) {
	tests := []struct {
		query      string
		count      int
		categories []string
	}{
		{"email automation", 12, []string{"Email Marketing", "Automation"}},
		{"YouTube video editing", 8, []string{"Video Generation"}},
		{"build websites fast", 15, []string{"Website Builder"}},
		{"customer support chat", 6, []string{"Customer Service"}},
		{"AI for invoices", 5, []string{"Accounting", "AI Tools"}},
		{"artificial intelligence", 11, []string{"AI Tools"}},
		{"something unrelated", 5, []string{}},
		{"", 5, []string{}},
		{"email web seo design social", 12, []string{"Email Marketing", "Website Builder", "SEO Tools"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := EstimatePreview(tt.query)
			if got.EstimatedCount != tt.count {
				t.Errorf("expected count %d, got %d", tt.count, got.EstimatedCount)
			}
			if diff := cmp.Diff(tt.categories, got.Categories); diff != "" {
				t.Errorf("categories mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEstimatePreview_NonNegativeAndBounded(t *testing.T) {
	for _, q := range []string{"x", "video email web automation chat seo accounting design ai social analytics"} {
		p := EstimatePreview(q)
		if p.EstimatedCount < 0 {
			t.Errorf("estimated count must be non-negative, got %d", p.EstimatedCount)
		}
		if len(p.Categories) > 3 {
			t.Errorf("expected at most 3 categories, got %v", p.Categories)
		}
	}
}

package discovery

import (
	"strings"
	"testing"

	"github.com/bazaarline/discovery/internal/domain"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "drops stopwords and short tokens",
			text: "show me the best running shoes",
			want: []string{"running", "shoe"},
		},
		{
			name: "singularizes long tokens",
			text: "leather wallets",
			want: []string{"leather", "wallet"},
		},
		{
			name: "keeps rupee symbol tokens",
			text: "sarees around ₹2000 budget",
			want: []string{"saree", "₹2000"},
		},
		{
			name: "deduplicates",
			text: "shoes shoes shoe",
			want: []string{"shoe"},
		},
		{
			name: "empty after filtering",
			text: "the best one",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractKeywords(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("extractKeywords(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("keyword[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildKeywordBoostQuery_RepeatsLongestKeyword(t *testing.T) {
	boosted := buildKeywordBoostQuery("need cheap running shoes")
	if boosted == "" {
		t.Fatal("expected non-empty boost query")
	}
	if n := strings.Count(boosted, "running"); n < 2 {
		t.Errorf("expected %q to repeat the dominant keyword, got %q", "running", boosted)
	}
	if !strings.HasSuffix(boosted, "need cheap running shoes") {
		t.Errorf("expected original text preserved at the end, got %q", boosted)
	}
}

func TestBuildKeywordBoostQuery_NoKeywords(t *testing.T) {
	if boosted := buildKeywordBoostQuery("the best one"); boosted != "" {
		t.Errorf("expected empty boost for keyword-less text, got %q", boosted)
	}
}

func TestKeywordOverlapCount(t *testing.T) {
	item := &domain.CatalogItem{
		Name:        "Trail Running Shoes",
		Category:    "Footwear",
		Description: "Lightweight shoes with excellent grip for trails",
	}

	tests := []struct {
		name     string
		keywords []string
		want     int
	}{
		{"two overlapping", []string{"running", "shoe"}, 2},
		{"plural query matches singular item token", []string{"shoes"}, 1},
		{"no overlap", []string{"saree", "cotton"}, 0},
		{"empty keywords", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keywordOverlapCount(tt.keywords, item); got != tt.want {
				t.Errorf("overlap(%v) = %d, want %d", tt.keywords, got, tt.want)
			}
		})
	}
}

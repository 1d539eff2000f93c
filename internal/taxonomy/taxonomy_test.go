package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoriesIncludeFallback(t *testing.T) {
	names := Categories()
	require.NotEmpty(t, names)
	assert.Contains(t, names, FallbackCategory)
	assert.Contains(t, names, "FOOD & GROCERIES")
}

func TestSubcategories(t *testing.T) {
	subs := Subcategories("TRAVEL")
	assert.Contains(t, subs, "Flights")

	assert.Nil(t, Subcategories("NOT A CATEGORY"))
}

func TestSubcategoriesReturnsACopy(t *testing.T) {
	subs := Subcategories("TRAVEL")
	subs[0] = "mutated"
	assert.Contains(t, Subcategories("TRAVEL"), "Flights")
}

func TestMatchCategory(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		matched bool
	}{
		{"exact", "TRAVEL", "TRAVEL", true},
		{"case insensitive", "travel", "TRAVEL", true},
		{"model output substring", "Food", "FOOD & GROCERIES", true},
		{"taxonomy name inside output", "Category: FOOD & GROCERIES", "FOOD & GROCERIES", true},
		{"unknown falls back", "CRYPTO", FallbackCategory, false},
		{"empty falls back", "  ", FallbackCategory, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := MatchCategory(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestMatchSubcategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		raw      string
		want     string
		matched  bool
	}{
		{"exact", "TRAVEL", "Flights", "Flights", true},
		{"case insensitive", "TRAVEL", "flights", "Flights", true},
		{"substring", "FOOD & GROCERIES", "restaurants", "Restaurants & Dining", true},
		{"unknown falls back to first", "TRAVEL", "Submarines", "Flights", false},
		{"empty falls back to first", "TRAVEL", "", "Flights", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := MatchSubcategory(tt.category, tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestMatchSubcategoryUnknownCategory(t *testing.T) {
	got, matched := MatchSubcategory("NOT A CATEGORY", "Flights")
	assert.Empty(t, got)
	assert.False(t, matched)
}

func TestTagsFor(t *testing.T) {
	assert.ElementsMatch(t, []string{"dining-out", "delivery"}, TagsFor("FOOD & GROCERIES", "Takeaway & Delivery"))
	assert.ElementsMatch(t, []string{"insurance", "travel"}, TagsFor("TRAVEL", "Travel Insurance"))
	// Travel tag applies once even for untagged subcategories.
	assert.Equal(t, []string{"travel"}, TagsFor("TRAVEL", "Activities"))
	assert.Empty(t, TagsFor("SHOPPING", "Clothing"))
}

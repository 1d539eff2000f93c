package categorize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/taxonomy"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{
			name:     "clean object",
			response: `{"category": "SHOPPING"}`,
		},
		{
			name:     "clean array",
			response: `[{"id": "1"}]`,
		},
		{
			name:     "object with surrounding prose",
			response: "Sure! Here is the result:\n{\"category\": \"SHOPPING\"}\nHope that helps.",
		},
		{
			name:     "array in markdown fence",
			response: "```json\n[{\"id\": \"1\", \"category\": \"TRAVEL\"}]\n```",
		},
		{
			name:     "no json at all",
			response: "I cannot categorize this transaction.",
			wantErr:  true,
		},
		{
			name:     "empty response",
			response: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			err := extractJSON(tt.response, &v)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseFullResponse(t *testing.T) {
	tests := []struct {
		name            string
		response        string
		wantCategory    string
		wantSubcategory string
		wantConfidence  float64
	}{
		{
			name:            "valid response",
			response:        `{"category": "FOOD & GROCERIES", "subcategory": "Groceries", "confidence": 0.95}`,
			wantCategory:    "FOOD & GROCERIES",
			wantSubcategory: "Groceries",
			wantConfidence:  0.95,
		},
		{
			name:            "case-insensitive category match",
			response:        `{"category": "transportation", "subcategory": "fuel", "confidence": 0.8}`,
			wantCategory:    "TRANSPORTATION",
			wantSubcategory: "Fuel",
			wantConfidence:  0.8,
		},
		{
			name:            "substring category match",
			response:        `{"category": "GROCERIES", "subcategory": "Groceries", "confidence": 0.7}`,
			wantCategory:    "FOOD & GROCERIES",
			wantSubcategory: "Groceries",
			wantConfidence:  0.7,
		},
		{
			name:            "unknown category falls back",
			response:        `{"category": "CRYPTO YOLO", "subcategory": "whatever", "confidence": 0.9}`,
			wantCategory:    taxonomy.FallbackCategory,
			wantSubcategory: taxonomy.FallbackSubcategory,
			wantConfidence:  0.9,
		},
		{
			name:            "missing confidence defaults",
			response:        `{"category": "SHOPPING", "subcategory": "Clothing"}`,
			wantCategory:    "SHOPPING",
			wantSubcategory: "Clothing",
			wantConfidence:  defaultConfidence,
		},
		{
			name:            "confidence clamped above one",
			response:        `{"category": "SHOPPING", "subcategory": "Clothing", "confidence": 1.7}`,
			wantCategory:    "SHOPPING",
			wantSubcategory: "Clothing",
			wantConfidence:  1,
		},
		{
			name:            "confidence clamped below zero",
			response:        `{"category": "SHOPPING", "subcategory": "Clothing", "confidence": -0.5}`,
			wantCategory:    "SHOPPING",
			wantSubcategory: "Clothing",
			wantConfidence:  0,
		},
		{
			name:            "garbage response falls back at zero confidence",
			response:        "no json here",
			wantCategory:    taxonomy.FallbackCategory,
			wantSubcategory: taxonomy.FallbackSubcategory,
			wantConfidence:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseFullResponse(tt.response)
			assert.Equal(t, tt.wantCategory, result.Category)
			assert.Equal(t, tt.wantSubcategory, result.Subcategory)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 0.001)
			assert.Equal(t, tt.response, result.RawResponse)
		})
	}
}

func TestParseBatchResponse(t *testing.T) {
	ids := []string{"a", "b", "c"}
	response := `[
		{"id": "a", "category": "FOOD & GROCERIES", "subcategory": "Groceries", "confidence": 0.9},
		{"id": "c", "category": "nonsense", "subcategory": "nonsense", "confidence": 0.2}
	]`

	results := parseBatchResponse(response, ids)
	require.Len(t, results, 3)

	assert.Equal(t, "FOOD & GROCERIES", results["a"].Category)
	assert.Equal(t, "Groceries", results["a"].Subcategory)

	// "b" was missing from the response.
	assert.Equal(t, taxonomy.FallbackCategory, results["b"].Category)
	assert.Zero(t, results["b"].Confidence)
	assert.Equal(t, model.ErrorTypeParse, results["b"].ErrorType)

	// Invalid names resolve to fallbacks but keep the model's confidence.
	assert.Equal(t, taxonomy.FallbackCategory, results["c"].Category)
	assert.InDelta(t, 0.2, results["c"].Confidence, 0.001)
}

func TestParseBatchResponseUnparseable(t *testing.T) {
	ids := []string{"x", "y"}
	results := parseBatchResponse("the model refused", ids)
	require.Len(t, results, 2)

	for _, id := range ids {
		assert.Equal(t, taxonomy.FallbackCategory, results[id].Category)
		assert.Equal(t, taxonomy.FallbackSubcategory, results[id].Subcategory)
		assert.Zero(t, results[id].Confidence)
		assert.Equal(t, model.ErrorTypeParse, results[id].ErrorType)
	}
}

func TestParseSubcategoryResponse(t *testing.T) {
	result := parseSubcategoryResponse(`{"subcategory": "Groceries", "confidence": 0.92}`, "FOOD & GROCERIES")
	assert.Equal(t, "FOOD & GROCERIES", result.Category)
	assert.Equal(t, "Groceries", result.Subcategory)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)

	// Parse failure keeps the category and picks the first subcategory at
	// reduced confidence.
	result = parseSubcategoryResponse("not json", "FOOD & GROCERIES")
	assert.Equal(t, "FOOD & GROCERIES", result.Category)
	assert.Equal(t, taxonomy.Subcategories("FOOD & GROCERIES")[0], result.Subcategory)
	assert.InDelta(t, 0.3, result.Confidence, 0.001)
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "sepa markers stripped",
			in:   "Albert Heijn/TRTP/SEPA OVERBOEKING/IBAN/NL12ABNA0123456789/BIC/ABNANL2A",
			want: "Albert Heijn",
		},
		{
			name: "wallet prefix stripped",
			in:   "BEA, Apple Pay Jumbo Amsterdam",
			want: "Jumbo Amsterdam",
		},
		{
			name: "pos reference and timestamp stripped",
			in:   "Shell Station, PAS223 NR:18061315, 31.12.25/12:38",
			want: "Shell Station",
		},
		{
			name: "tikkie id stripped",
			in:   "Tikkie ID 001151040331, Christmas dinner",
			want: "Christmas dinner",
		},
		{
			name: "long description truncated",
			in:   strings.Repeat("a", 150),
			want: strings.Repeat("a", 100) + "...",
		},
		{
			name: "truncation keeps multi-byte runes intact",
			in:   strings.Repeat("é", 150),
			want: strings.Repeat("é", 100) + "...",
		},
		{
			name: "clean description untouched",
			in:   "Spotify AB",
			want: "Spotify AB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanDescription(tt.in))
		})
	}
}

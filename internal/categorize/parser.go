package categorize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/taxonomy"
)

const defaultConfidence = 0.5

// jsonBlockPattern finds a JSON object or array embedded in surrounding
// prose, e.g. when the model adds an explanation despite instructions.
var jsonBlockPattern = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

// extractJSON parses the response directly, then falls back to the first
// JSON-looking block in the text.
func extractJSON(response string, v any) error {
	trimmed := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	if match := jsonBlockPattern.FindString(trimmed); match != "" {
		if err := json.Unmarshal([]byte(match), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no valid JSON found in response")
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

type batchItem struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Confidence  *float64 `json:"confidence"`
}

func confidenceOrDefault(c *float64) float64 {
	if c == nil {
		return defaultConfidence
	}
	return clampConfidence(*c)
}

// parseBatchResponse parses a batch categorization response into a map keyed
// by request ID. Every expected ID is always present in the result: items
// the model skipped, and wholly unparseable responses, produce fallback
// results at zero confidence.
func parseBatchResponse(response string, ids []string) map[string]model.CategorizationResult {
	results := make(map[string]model.CategorizationResult, len(ids))

	var items []batchItem
	if err := extractJSON(response, &items); err != nil {
		slog.Warn("failed to parse batch response", "error", err)
		for _, id := range ids {
			results[id] = fallbackResult(response, model.ErrorTypeParse)
		}
		return results
	}

	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}

		category, _ := taxonomy.MatchCategory(item.Category)
		subcategory, _ := taxonomy.MatchSubcategory(category, item.Subcategory)
		raw, _ := json.Marshal(item)

		results[id] = model.CategorizationResult{
			Category:    category,
			Subcategory: subcategory,
			Confidence:  confidenceOrDefault(item.Confidence),
			RawResponse: string(raw),
		}
	}

	for _, id := range ids {
		if _, ok := results[id]; !ok {
			slog.Warn("missing result in batch response", "id", id)
			results[id] = model.CategorizationResult{
				Category:    taxonomy.FallbackCategory,
				Subcategory: taxonomy.FallbackSubcategory,
				Confidence:  0,
				RawResponse: "missing from batch response",
				ErrorType:   model.ErrorTypeParse,
			}
		}
	}

	return results
}

type fullItem struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Confidence  *float64 `json:"confidence"`
}

// parseFullResponse parses a single-transaction response carrying both
// category and subcategory.
func parseFullResponse(response string) model.CategorizationResult {
	var item fullItem
	if err := extractJSON(response, &item); err != nil {
		slog.Warn("failed to parse full response", "error", err)
		return fallbackResult(response, model.ErrorTypeParse)
	}

	category, _ := taxonomy.MatchCategory(item.Category)
	subcategory, _ := taxonomy.MatchSubcategory(category, item.Subcategory)

	return model.CategorizationResult{
		Category:    category,
		Subcategory: subcategory,
		Confidence:  confidenceOrDefault(item.Confidence),
		RawResponse: response,
	}
}

// parseCategoryResponse parses a category-only response (two-step path,
// step one).
func parseCategoryResponse(response string) model.CategorizationResult {
	var item fullItem
	if err := extractJSON(response, &item); err != nil {
		slog.Warn("failed to parse category response", "error", err)
		return model.CategorizationResult{
			Category:    taxonomy.FallbackCategory,
			Confidence:  0,
			RawResponse: response,
			ErrorType:   model.ErrorTypeParse,
		}
	}

	category, _ := taxonomy.MatchCategory(item.Category)
	return model.CategorizationResult{
		Category:    category,
		Confidence:  confidenceOrDefault(item.Confidence),
		RawResponse: response,
	}
}

type subcategoryItem struct {
	Subcategory string   `json:"subcategory"`
	Confidence  *float64 `json:"confidence"`
}

// parseSubcategoryResponse parses a subcategory response (two-step path,
// step two) for an already determined category.
func parseSubcategoryResponse(response, category string) model.CategorizationResult {
	var item subcategoryItem
	if err := extractJSON(response, &item); err != nil {
		slog.Warn("failed to parse subcategory response", "error", err, "category", category)
		subcategory, _ := taxonomy.MatchSubcategory(category, "")
		return model.CategorizationResult{
			Category:    category,
			Subcategory: subcategory,
			Confidence:  0.3,
			RawResponse: response,
			ErrorType:   model.ErrorTypeParse,
		}
	}

	subcategory, _ := taxonomy.MatchSubcategory(category, item.Subcategory)
	return model.CategorizationResult{
		Category:    category,
		Subcategory: subcategory,
		Confidence:  confidenceOrDefault(item.Confidence),
		RawResponse: response,
	}
}

func fallbackResult(raw string, errorType model.CategorizationErrorType) model.CategorizationResult {
	return model.CategorizationResult{
		Category:    taxonomy.FallbackCategory,
		Subcategory: taxonomy.FallbackSubcategory,
		Confidence:  0,
		RawResponse: raw,
		ErrorType:   errorType,
	}
}

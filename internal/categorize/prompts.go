// Package categorize runs LLM-backed transaction categorization: prompt
// construction, response parsing with taxonomy validation, and batch
// orchestration with fallbacks.
package categorize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/taxonomy"
)

const maxDescriptionLength = 100

// Patterns stripped from raw bank descriptions before prompting. Dutch bank
// exports carry SEPA field markers, IBANs, POS terminal codes and timestamps
// that only waste tokens and confuse small models.
var (
	ibanPattern        = regexp.MustCompile(`\bNL\d{2}[A-Z]{4}\d+\b`)
	walletPrefix       = regexp.MustCompile(`^BEA,\s*(?:Google Pay|Apple Pay)\s+`)
	posReferencePattern = regexp.MustCompile(`,?\s*PAS\d+\s+NR:[A-Z0-9]+`)
	timestampPattern   = regexp.MustCompile(`,?\s*\d{2}\.\d{2}\.\d{2}/\d{2}:\d{2}`)
	countryPattern     = regexp.MustCompile(`,\s*Land:\s*[A-Z]{3}`)
	tikkieSenderSuffix = regexp.MustCompile(`,?\s*Van\s+[A-Z][a-z]+.*$`)
	tikkiePattern      = regexp.MustCompile(`Tikkie ID \d+,\s*(.+)`)
	multiSpace         = regexp.MustCompile(`\s{2,}`)
	doubleComma        = regexp.MustCompile(`,\s*,`)
)

var sepaMarkers = []string{
	"/TRTP/", "/IBAN/", "/BIC/", "/REMI/", "/EREF/", "/CSID/", "/NAME/", "/MARF/",
}

// cleanDescription strips technical bank data from a transaction description
// and truncates it, keeping only the merchant and purpose text.
func cleanDescription(desc string) string {
	if before, _, found := strings.Cut(desc, " - /"); found {
		desc = before
	}
	for _, marker := range sepaMarkers {
		desc, _, _ = strings.Cut(desc, marker)
	}
	desc, _, _ = strings.Cut(desc, " - from ")
	desc, _, _ = strings.Cut(desc, " - to ")

	if match := tikkiePattern.FindStringSubmatch(desc); match != nil {
		desc = match[1]
	}

	desc = ibanPattern.ReplaceAllString(desc, "")
	desc = walletPrefix.ReplaceAllString(desc, "")
	desc = posReferencePattern.ReplaceAllString(desc, "")
	desc = timestampPattern.ReplaceAllString(desc, "")
	desc = countryPattern.ReplaceAllString(desc, "")
	desc = tikkieSenderSuffix.ReplaceAllString(desc, "")

	desc = multiSpace.ReplaceAllString(desc, " ")
	desc = doubleComma.ReplaceAllString(desc, ",")
	desc = strings.Trim(desc, " ,")

	if runes := []rune(desc); len(runes) > maxDescriptionLength {
		desc = string(runes[:maxDescriptionLength]) + "..."
	}

	return strings.TrimSpace(desc)
}

// buildBatchPrompt builds a compact prompt asking for category, subcategory
// and confidence for every transaction in one call.
func buildBatchPrompt(requests []model.CategorizationRequest) string {
	var lines []string
	for _, req := range requests {
		lines = append(lines, fmt.Sprintf(`{"id":%q,"desc":%q,"amt":%s}`,
			req.ID, cleanDescription(req.Description), req.Amount))
	}

	count := len(requests)
	var b strings.Builder
	fmt.Fprintf(&b, "Categorize these %d transactions and return ONLY a JSON array with EXACTLY %d results. No other text.\n\n", count, count)
	fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(taxonomy.Categories(), ", "))
	fmt.Fprintf(&b, "Transactions (%d total):\n[\n%s\n]\n\n", count, strings.Join(lines, ",\n"))
	fmt.Fprintf(&b, "IMPORTANT: Return array with EXACTLY %d objects, each with:\n", count)
	b.WriteString(`- "id": transaction ID (string)
- "category": one of the categories above
- "subcategory": specific subcategory name
- "confidence": number between 0.0 and 1.0 (e.g., 0.85 for 85% confident)

Output (JSON array only):`)
	return b.String()
}

// buildCategoryPrompt is step one of two-step categorization: pick a
// top-level category.
func buildCategoryPrompt(req model.CategorizationRequest) string {
	var b strings.Builder
	b.WriteString("Categorize this transaction. Reply ONLY with JSON.\n\n")
	fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(taxonomy.Categories(), ", "))
	fmt.Fprintf(&b, "Transaction:\n- Date: %s\n- Description: %q\n- Amount: €%s\n\n",
		req.Date, req.Description, req.Amount)
	b.WriteString(`JSON format (no explanation):
{"category": "CATEGORY_NAME", "confidence": 0.95}

Example: {"category": "FOOD & GROCERIES", "confidence": 0.90}`)
	return b.String()
}

// buildSubcategoryPrompt is step two: pick a subcategory within an already
// determined category.
func buildSubcategoryPrompt(req model.CategorizationRequest, category string) string {
	subcategories := taxonomy.Subcategories(category)
	if len(subcategories) > 15 {
		subcategories = subcategories[:15]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Choose subcategory for this %s transaction. Reply ONLY with JSON.\n\n", category)
	fmt.Fprintf(&b, "Subcategories: %s\n\n", strings.Join(subcategories, ", "))
	fmt.Fprintf(&b, "Transaction: %q | Amount: €%s\n\n", req.Description, req.Amount)
	b.WriteString(`JSON format (no explanation):
{"subcategory": "Subcategory Name", "confidence": 0.90}

Example: {"subcategory": "Groceries", "confidence": 0.92}`)
	return b.String()
}

// buildFullPrompt asks for category and subcategory in a single call. Used
// as the per-transaction fallback when a batch call fails.
func buildFullPrompt(req model.CategorizationRequest) string {
	var pairs strings.Builder
	for _, cat := range taxonomy.Categories() {
		subcategories := taxonomy.Subcategories(cat)
		if len(subcategories) > 5 {
			subcategories = subcategories[:5]
		}
		fmt.Fprintf(&pairs, "- %s: %s\n", cat, strings.Join(subcategories, ", "))
	}

	var b strings.Builder
	b.WriteString("Categorize this transaction. Reply ONLY with JSON.\n\n")
	fmt.Fprintf(&b, "Categories and Subcategories:\n%s\n", pairs.String())
	fmt.Fprintf(&b, "Transaction:\n- Date: %s\n- Description: %q\n- Amount: €%s\n\n",
		req.Date, req.Description, req.Amount)
	b.WriteString(`JSON format (no explanation):
{"category": "CATEGORY", "subcategory": "Subcategory", "confidence": 0.90}

Example: {"category": "FOOD & GROCERIES", "subcategory": "Groceries", "confidence": 0.95}`)
	return b.String()
}

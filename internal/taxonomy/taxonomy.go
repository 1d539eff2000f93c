// Package taxonomy defines the fixed category structure used to validate
// AI categorization output, plus the auto-tagging rules derived from it.
package taxonomy

import "strings"

// FallbackCategory and FallbackSubcategory absorb everything the taxonomy
// cannot place.
const (
	FallbackCategory    = "Miscellaneous"
	FallbackSubcategory = "Uncategorized"
)

type category struct {
	name          string
	subcategories []string
}

// Category order matters: prompts list categories in this order, and
// substring matching scans in this order for determinism.
var categories = []category{
	{"FOOD & GROCERIES", []string{"Groceries", "Restaurants & Dining", "Takeaway & Delivery", "Coffee & Snacks", "Alcohol & Drinks"}},
	{"HOUSING & UTILITIES", []string{"Rent & Mortgage", "Electricity & Gas", "Water", "Internet & Phone", "Home Maintenance", "Furniture & Appliances"}},
	{"TRANSPORTATION", []string{"Public Transit", "Fuel", "Parking", "Taxi & Rideshare", "Car Maintenance", "Bike"}},
	{"HEALTH & WELLNESS", []string{"Pharmacy", "Doctor & Hospital", "Health Insurance", "Sports & Fitness", "Personal Care"}},
	{"SHOPPING", []string{"Clothing", "Electronics", "Books & Media", "Gifts", "General Merchandise"}},
	{"ENTERTAINMENT & LEISURE", []string{"Streaming & Subscriptions", "Events & Concerts", "Games", "Hobbies", "Movies & Theater"}},
	{"TRAVEL", []string{"Flights", "Accommodation", "Local Transport", "Travel Insurance", "Activities"}},
	{"FINANCIAL & FEES", []string{"Bank Fees", "Insurance", "Taxes", "Interest", "Transfers"}},
	{"INCOME", []string{"Salary", "Refunds & Reimbursements", "Interest Income", "Gifts Received", "Other Income"}},
	{"FAMILY & EDUCATION", []string{"Childcare", "School & Tuition", "Courses", "Pets"}},
	{"WORK & BUSINESS", []string{"Office Supplies", "Software & Tools", "Professional Services", "Work Meals"}},
	{FallbackCategory, []string{FallbackSubcategory, "Cash Withdrawal", "Unknown"}},
}

// Auto-tags applied by subcategory after categorization.
var subcategoryTags = map[string][]string{
	"Restaurants & Dining":     {"dining-out"},
	"Takeaway & Delivery":      {"dining-out", "delivery"},
	"Coffee & Snacks":          {"dining-out"},
	"Streaming & Subscriptions": {"subscription"},
	"Internet & Phone":         {"subscription"},
	"Health Insurance":         {"insurance"},
	"Travel Insurance":         {"insurance", "travel"},
	"Insurance":                {"insurance"},
	"Flights":                  {"travel"},
	"Accommodation":            {"travel"},
	"Salary":                   {"income"},
	"Refunds & Reimbursements": {"income", "reimbursement"},
	"Cash Withdrawal":          {"cash"},
}

// Categories returns the fixed list of category names, in prompt order.
func Categories() []string {
	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = cat.name
	}
	return names
}

// Subcategories returns the allowed subcategories for a category, or nil if
// the category is unknown.
func Subcategories(categoryName string) []string {
	for _, cat := range categories {
		if cat.name == categoryName {
			return append([]string(nil), cat.subcategories...)
		}
	}
	return nil
}

// MatchCategory resolves a raw category string against the taxonomy using
// three tiers: exact match, case-insensitive match, then substring match in
// either direction. Unresolvable input falls back to FallbackCategory.
func MatchCategory(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FallbackCategory, false
	}

	for _, cat := range categories {
		if raw == cat.name {
			return cat.name, true
		}
	}

	lower := strings.ToLower(raw)
	for _, cat := range categories {
		if lower == strings.ToLower(cat.name) {
			return cat.name, true
		}
	}

	for _, cat := range categories {
		catLower := strings.ToLower(cat.name)
		if strings.Contains(catLower, lower) || strings.Contains(lower, catLower) {
			return cat.name, true
		}
	}

	return FallbackCategory, false
}

// MatchSubcategory resolves a raw subcategory string against the category's
// allowed set with the same three-tier matching as MatchCategory. Empty or
// unresolvable input falls back to the category's first subcategory.
func MatchSubcategory(categoryName, raw string) (string, bool) {
	allowed := Subcategories(categoryName)
	if len(allowed) == 0 {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return allowed[0], false
	}

	for _, sub := range allowed {
		if raw == sub {
			return sub, true
		}
	}

	lower := strings.ToLower(raw)
	for _, sub := range allowed {
		if lower == strings.ToLower(sub) {
			return sub, true
		}
	}

	for _, sub := range allowed {
		subLower := strings.ToLower(sub)
		if strings.Contains(subLower, lower) || strings.Contains(lower, subLower) {
			return sub, true
		}
	}

	return allowed[0], false
}

// TagsFor returns the auto-tags for a category/subcategory pair.
func TagsFor(categoryName, subcategoryName string) []string {
	tags := append([]string(nil), subcategoryTags[subcategoryName]...)
	if categoryName == "TRAVEL" && !contains(tags, "travel") {
		tags = append(tags, "travel")
	}
	return tags
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aafontoura/budget-notion/internal/common"
	"github.com/aafontoura/budget-notion/internal/model"
)

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

// transactionToProperties maps a transaction to the Notion property payload.
// AI confidence is stored as a percentage because Notion renders it as a
// plain number column.
func transactionToProperties(txn model.Transaction) map[string]any {
	amount, _ := txn.Amount.Float64()
	props := map[string]any{
		"Description": map[string]any{
			"title": []map[string]any{{"text": map[string]any{"content": txn.Description}}},
		},
		"Transaction ID": map[string]any{
			"rich_text": []map[string]any{{"text": map[string]any{"content": txn.ID.String()}}},
		},
		"Date": map[string]any{
			"date": map[string]any{"start": txn.Date.UTC().Format(time.RFC3339)},
		},
		"Amount": map[string]any{"number": amount},
		"Category": map[string]any{
			"select": map[string]any{"name": txn.Category},
		},
		"Reviewed": map[string]any{"checkbox": txn.Reviewed},
		"Reimbursable": map[string]any{"checkbox": txn.Reimbursable},
		"Reimbursement Status": map[string]any{
			"select": map[string]any{"name": string(txn.ReimbursementStatus)},
		},
	}

	if txn.Subcategory != "" {
		props["Subcategory"] = map[string]any{
			"select": map[string]any{"name": txn.Subcategory},
		}
	}
	if txn.Account != "" {
		props["Account"] = map[string]any{
			"select": map[string]any{"name": txn.Account},
		}
	}
	if txn.Notes != "" {
		props["Notes"] = map[string]any{
			"rich_text": []map[string]any{{"text": map[string]any{"content": txn.Notes}}},
		}
	}
	if len(txn.Tags) > 0 {
		var options []map[string]any
		for _, tag := range txn.Tags {
			options = append(options, map[string]any{"name": tag})
		}
		props["Tags"] = map[string]any{"multi_select": options}
	}
	if txn.AIConfidence != nil {
		props["AI Confidence"] = map[string]any{"number": *txn.AIConfidence * 100}
	}
	if !txn.ExpectedReimbursement.IsZero() {
		expected, _ := txn.ExpectedReimbursement.Float64()
		props["Expected Reimbursement"] = map[string]any{"number": expected}
	}
	if !txn.ActualReimbursement.IsZero() {
		actual, _ := txn.ActualReimbursement.Float64()
		props["Actual Reimbursement"] = map[string]any{"number": actual}
	}

	return props
}

// Typed views of the Notion property variants we read.
type titleProp struct {
	Title []struct {
		Text struct {
			Content string `json:"content"`
		} `json:"text"`
	} `json:"title"`
}

type richTextProp struct {
	RichText []struct {
		Text struct {
			Content string `json:"content"`
		} `json:"text"`
	} `json:"rich_text"`
}

type dateProp struct {
	Date *struct {
		Start string `json:"start"`
	} `json:"date"`
}

type numberProp struct {
	Number *float64 `json:"number"`
}

type selectProp struct {
	Select *struct {
		Name string `json:"name"`
	} `json:"select"`
}

type multiSelectProp struct {
	MultiSelect []struct {
		Name string `json:"name"`
	} `json:"multi_select"`
}

type checkboxProp struct {
	Checkbox bool `json:"checkbox"`
}

// pageToTransaction maps a Notion page back to a transaction. CreatedAt and
// UpdatedAt come from Notion's own page metadata, which is what makes
// newest-wins conflict resolution work against pages edited by hand.
func pageToTransaction(page notionPage) (model.Transaction, error) {
	var txn model.Transaction

	idStr := extractRichText(page.Properties, "Transaction ID")
	if idStr == "" {
		return model.Transaction{}, fmt.Errorf("page %s has no transaction ID", page.ID)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("page %s has invalid transaction ID %q: %w", page.ID, idStr, err)
	}
	txn.ID = id

	txn.Description = extractTitle(page.Properties, "Description")
	if txn.Description == "" {
		return model.Transaction{}, fmt.Errorf("page %s has no description", page.ID)
	}

	var date dateProp
	if err := unmarshalProp(page.Properties, "Date", &date); err != nil || date.Date == nil {
		return model.Transaction{}, fmt.Errorf("page %s has no date", page.ID)
	}
	txn.Date, err = parseNotionDate(date.Date.Start)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("page %s has invalid date %q: %w", page.ID, date.Date.Start, err)
	}

	var amount numberProp
	if err := unmarshalProp(page.Properties, "Amount", &amount); err != nil || amount.Number == nil {
		return model.Transaction{}, fmt.Errorf("page %s has no amount", page.ID)
	}
	txn.Amount = decimal.NewFromFloat(*amount.Number)

	txn.Category = extractSelect(page.Properties, "Category")
	if txn.Category == "" {
		return model.Transaction{}, fmt.Errorf("page %s has no category", page.ID)
	}
	txn.Subcategory = extractSelect(page.Properties, "Subcategory")
	txn.Account = extractSelect(page.Properties, "Account")
	txn.Notes = extractRichText(page.Properties, "Notes")

	var reviewed checkboxProp
	_ = unmarshalProp(page.Properties, "Reviewed", &reviewed)
	txn.Reviewed = reviewed.Checkbox

	var reimbursable checkboxProp
	_ = unmarshalProp(page.Properties, "Reimbursable", &reimbursable)
	txn.Reimbursable = reimbursable.Checkbox

	var tags multiSelectProp
	_ = unmarshalProp(page.Properties, "Tags", &tags)
	for _, option := range tags.MultiSelect {
		if option.Name != "" {
			txn.Tags = append(txn.Tags, option.Name)
		}
	}
	txn.Tags = model.NormalizeTags(txn.Tags)

	var confidence numberProp
	_ = unmarshalProp(page.Properties, "AI Confidence", &confidence)
	if confidence.Number != nil {
		value := *confidence.Number / 100
		txn.AIConfidence = &value
	}

	txn.ExpectedReimbursement = extractDecimal(page.Properties, "Expected Reimbursement")
	txn.ActualReimbursement = extractDecimal(page.Properties, "Actual Reimbursement")
	if status := extractSelect(page.Properties, "Reimbursement Status"); status != "" {
		txn.ReimbursementStatus = model.ReimbursementStatus(status)
	} else {
		txn.ReimbursementStatus = model.ReimbursementNone
	}

	txn.CreatedAt = page.CreatedTime
	txn.UpdatedAt = page.LastEditedTime

	return txn, nil
}

func unmarshalProp(props map[string]json.RawMessage, name string, v any) error {
	raw, ok := props[name]
	if !ok {
		return fmt.Errorf("property %q not found", name)
	}
	return json.Unmarshal(raw, v)
}

func extractTitle(props map[string]json.RawMessage, name string) string {
	var prop titleProp
	if err := unmarshalProp(props, name, &prop); err != nil || len(prop.Title) == 0 {
		return ""
	}
	return prop.Title[0].Text.Content
}

func extractRichText(props map[string]json.RawMessage, name string) string {
	var prop richTextProp
	if err := unmarshalProp(props, name, &prop); err != nil || len(prop.RichText) == 0 {
		return ""
	}
	return prop.RichText[0].Text.Content
}

func extractSelect(props map[string]json.RawMessage, name string) string {
	var prop selectProp
	if err := unmarshalProp(props, name, &prop); err != nil || prop.Select == nil {
		return ""
	}
	return prop.Select.Name
}

func extractDecimal(props map[string]json.RawMessage, name string) decimal.Decimal {
	var prop numberProp
	if err := unmarshalProp(props, name, &prop); err != nil || prop.Number == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*prop.Number)
}

func parseNotionDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

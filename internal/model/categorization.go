package model

// CategorizationErrorType identifies the class of provider failure that
// produced a fallback result.
type CategorizationErrorType string

// Categorization error types.
const (
	ErrorTypeRateLimit CategorizationErrorType = "rate_limit"
	ErrorTypeTransient CategorizationErrorType = "transient"
	ErrorTypePermanent CategorizationErrorType = "permanent"
	ErrorTypeParse     CategorizationErrorType = "parse"
)

// CategorizationResult is the validated outcome of categorizing one
// transaction description. It is produced by the categorization pipeline and
// consumed immediately by import flows; it is never persisted on its own.
type CategorizationResult struct {
	Category    string
	Subcategory string
	RawResponse string
	ErrorType   CategorizationErrorType
	Confidence  float64
	RetryAfter  int
	Retriable   bool
}

// CategorizationRequest is one unit of work for the categorization pipeline.
// The ID is a caller-assigned correlation key, not a Transaction UUID.
type CategorizationRequest struct {
	ID          string
	Description string
	Amount      string
	Date        string
}

package llm

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entities holds the order-related values the model pulled out of a message.
// Zero values mean the entity was absent.
type Entities struct {
	CustomerID       int64  `json:"customer_id"`
	Email            string `json:"email"`
	ProductID        int64  `json:"product_id"`
	ProductName      string `json:"product_name"`
	Quantity         int    `json:"quantity"`
	ShippingAddress  string `json:"shipping_address"`
	ModificationType string `json:"modification_type"`
	Action           string `json:"action"`
}

// ExtractionResult is the structured reading of one user message. Parsed
// reports whether the model output was valid JSON; when false the caller must
// fall back to asking the user to rephrase rather than acting on the zero
// values.
type ExtractionResult struct {
	Intent                string   `json:"intent"`
	Entities              Entities `json:"entities"`
	RequiresClarification bool     `json:"requires_clarification"`
	SuggestedNextState    string   `json:"suggested_next_state"`
	Parsed                bool     `json:"-"`
}

// Unparsed returns the fail-open result used when model output cannot be
// interpreted.
func Unparsed() ExtractionResult {
	return ExtractionResult{RequiresClarification: true}
}

// StripFences removes a markdown code fence wrapper, with or without a
// language tag. Models add these despite instructions not to.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.ContainsAny(s[:idx], "{}[]") {
		// drop the language tag line (e.g. "json")
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseExtraction interprets raw model output as an ExtractionResult. Numeric
// entity values arrive as numbers or quoted strings depending on the model,
// so fields are coerced individually instead of decoded strictly.
func ParseExtraction(raw string) ExtractionResult {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return Unparsed()
	}
	var payload map[string]interface{}
	if err := json.UnmarshalFromString(cleaned, &payload); err != nil {
		return Unparsed()
	}
	result := ExtractionResult{
		Intent:                cast.ToString(payload["intent"]),
		RequiresClarification: cast.ToBool(payload["requires_clarification"]),
		SuggestedNextState:    cast.ToString(payload["suggested_next_state"]),
		Parsed:                true,
	}
	if ents, ok := payload["entities"].(map[string]interface{}); ok {
		result.Entities = Entities{
			CustomerID:       cast.ToInt64(ents["customer_id"]),
			Email:            cast.ToString(ents["email"]),
			ProductID:        cast.ToInt64(ents["product_id"]),
			ProductName:      cast.ToString(ents["product_name"]),
			Quantity:         cast.ToInt(ents["quantity"]),
			ShippingAddress:  cast.ToString(ents["shipping_address"]),
			ModificationType: cast.ToString(ents["modification_type"]),
			Action:           cast.ToString(ents["action"]),
		}
	}
	return result
}

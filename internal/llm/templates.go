package llm

import (
	"fmt"
	"strings"
	"sync"
)

const extractionSystemPrompt = `You are the intent-extraction component of an order-taking assistant.
Read the customer's message and return ONLY a JSON object, no prose and no code fences, with this shape:

{
  "intent": "<short snake_case label for what the customer wants>",
  "entities": {
    "customer_id": <number or 0>,
    "email": "<email or empty>",
    "product_id": <number or 0>,
    "product_name": "<name or empty>",
    "quantity": <number or 0>,
    "shipping_address": "<address or empty>",
    "modification_type": "<quantity|product|address|cancel or empty>",
    "action": "<confirm|deny|other or empty>"
  },
  "requires_clarification": <true if the message is ambiguous>,
  "suggested_next_state": "<state name or empty>"
}

Omit nothing. Use 0 or "" for values not present in the message.`

// stateInstructions maps a conversation state name to the extra guidance the
// extractor gets for messages received in that state. Built once on first
// use.
var (
	stateTplMu  sync.Mutex
	stateTplMap map[string]string
)

func stateInstructions(state string) string {
	stateTplMu.Lock()
	defer stateTplMu.Unlock()
	if stateTplMap == nil {
		stateTplMap = map[string]string{
			"init":                 "The customer is opening the conversation. Look for a customer id or email.",
			"greeting":             "The customer is opening the conversation. Look for a customer id or email.",
			"customer_selection":   "Expect a customer id (number) or an email address.",
			"product_selection":    "Expect a product name or product id, possibly with a quantity.",
			"quantity_input":       "Expect a quantity. Bare numbers mean quantity here.",
			"add_more_products":    "Expect a yes/no answer about adding more products. Set action to confirm or deny.",
			"shipping_address":     "Expect a shipping address, or agreement to reuse the one on file.",
			"special_instructions": "Expect delivery instructions, or a refusal such as no or none.",
			"price_confirmation":   "Expect confirmation or rejection of the quoted total. Set action to confirm or deny. If the customer wants to change something, set modification_type.",
			"order_confirmation":   "Expect final confirmation of the order. Set action to confirm or deny.",
			"order_processing":     "Expect final go-ahead to place the order. Set action to confirm or deny.",
			"clarification":        "The previous message was ambiguous. Extract whatever is now clear.",
		}
	}
	return stateTplMap[state]
}

// BuildExtractionPrompt assembles the system and user prompts for intent
// extraction. historyLines are prior turns formatted as "role: text", oldest
// first.
func BuildExtractionPrompt(state, contextSummary string, historyLines []string, message string) (system, user string) {
	var sb strings.Builder
	sb.WriteString(extractionSystemPrompt)
	if extra := stateInstructions(state); extra != "" {
		sb.WriteString("\n\nCurrent conversation state: ")
		sb.WriteString(state)
		sb.WriteString("\n")
		sb.WriteString(extra)
	}
	if contextSummary != "" {
		sb.WriteString("\n\nOrder so far:\n")
		sb.WriteString(contextSummary)
	}

	var ub strings.Builder
	if len(historyLines) > 0 {
		ub.WriteString("Recent conversation:\n")
		for _, line := range historyLines {
			ub.WriteString(line)
			ub.WriteString("\n")
		}
		ub.WriteString("\n")
	}
	fmt.Fprintf(&ub, "Customer message: %s", message)
	return sb.String(), ub.String()
}

// BuildReplyPrompt assembles prompts for free-form assistant replies, used
// when no canned response fits (open questions, small talk).
func BuildReplyPrompt(state, contextSummary, message string) (system, user string) {
	system = "You are a friendly order-taking assistant for an online store. " +
		"Answer briefly in the customer's language and steer the conversation back to their order. " +
		"Never invent prices or inventory numbers."
	if contextSummary != "" {
		system += "\n\nOrder so far:\n" + contextSummary
	}
	user = fmt.Sprintf("Conversation state: %s\nCustomer message: %s", state, message)
	return system, user
}

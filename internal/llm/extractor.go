package llm

import (
	"context"

	"go.uber.org/zap"
)

// Extractor turns free-text customer messages into structured extraction
// results and phrases free-form replies. It is a thin composition of the
// prompt templates and a Completer.
type Extractor struct {
	completer Completer
}

func NewExtractor(completer Completer) *Extractor {
	return &Extractor{completer: completer}
}

// ExtractIntent reads one message in the given conversation state. Request
// or parse failures degrade to the unparsed result; the conversation
// continues either way.
func (e *Extractor) ExtractIntent(ctx context.Context, state, contextSummary string, history []string, message string) ExtractionResult {
	system, user := BuildExtractionPrompt(state, contextSummary, history, message)
	raw, err := e.completer.Complete(ctx, system, user)
	if err != nil {
		zap.L().Warn("intent extraction request failed", zap.String("state", state), zap.Error(err))
		return Unparsed()
	}
	result := ParseExtraction(raw)
	if !result.Parsed {
		zap.L().Warn("intent extraction returned unparseable output", zap.String("state", state))
	}
	return result
}

// GenerateReply produces a free-text assistant reply for states without a
// scripted response.
func (e *Extractor) GenerateReply(ctx context.Context, state, contextSummary, message string) (string, error) {
	system, user := BuildReplyPrompt(state, contextSummary, message)
	return e.completer.Complete(ctx, system, user)
}

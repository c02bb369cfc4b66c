// Package parse turns raw LLM text output into validated question sets.
package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/oslerlabs/osler/internal/question"
)

// FormatError reports LLM output that did not decode into the expected
// question-list structure. The proxy surfaces it distinctly from provider
// failures so callers can tell a bad response from a failed call.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected response format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unexpected response format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// The model is instructed to emit raw JSON, but defensively strip fences
// anyway; models wrap output in ```json blocks often enough to matter.
var fenceRe = regexp.MustCompile("```json\\s*|```\\s*")

type envelope struct {
	Questions []question.Question `json:"questions"`
}

// Questions decodes raw LLM output into a question set and validates each
// question's structure. Surrounding markdown code fences are tolerated.
func Questions(raw string) (question.Set, error) {
	set, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, &FormatError{Reason: "invalid question", Err: err}
	}
	return set, nil
}

// Lenient decodes like Questions but skips per-question validation. The
// quality-check stage uses it: a structurally odd revision is discarded by
// the adoption rule rather than rejected here.
func Lenient(raw string) (question.Set, error) {
	return decode(raw)
}

func decode(raw string) (question.Set, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))

	var env envelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, &FormatError{Reason: "not valid JSON", Err: err}
	}
	if env.Questions == nil {
		return nil, &FormatError{Reason: "missing questions field"}
	}
	return question.Set(env.Questions), nil
}

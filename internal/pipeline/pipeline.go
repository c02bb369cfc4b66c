// Package pipeline drives the two-stage generate-then-review workflow and
// the independent single-question regeneration flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/oslerlabs/osler/internal/gateway"
	"github.com/oslerlabs/osler/internal/parse"
	"github.com/oslerlabs/osler/internal/prompt"
	"github.com/oslerlabs/osler/internal/question"
)

const (
	// generateMaxTokens bounds the initial generation and review calls.
	generateMaxTokens = 8000
	// regenerateMaxTokens bounds a single-question replacement call.
	regenerateMaxTokens = 2000
)

// Caller issues one LLM call and returns the model's text output.
// Implementations are the HTTP proxy client and the direct gateway caller.
type Caller interface {
	Call(ctx context.Context, messages []gateway.Message, maxTokens int, system string) (string, error)
}

// Result is the outcome of a full generation run. ReviewApplied and
// ReviewErr record whether the best-effort quality pass was adopted, so
// callers and tests can observe the fallback without log inspection.
type Result struct {
	Questions     question.Set
	ReviewApplied bool
	ReviewErr     error
}

// errLengthMismatch marks a review pass that returned a different number of
// questions than it was given.
var errLengthMismatch = errors.New("review returned a different number of questions")

// Orchestrator runs the generation flows against a Caller.
type Orchestrator struct {
	caller Caller
}

func New(caller Caller) *Orchestrator {
	return &Orchestrator{caller: caller}
}

// Generate runs the two-stage pipeline: generate, then attempt the quality
// review. The review is strictly best-effort — its result is adopted only
// when it parses and has exactly the same length as the original; any other
// outcome keeps the original set and is recorded on the Result, never
// returned as an error. A first-stage failure propagates: parse failures
// keep their FormatError identity so callers can distinguish them from
// provider failures.
func (o *Orchestrator) Generate(ctx context.Context, los string, numQuestions int, difficulty string) (Result, error) {
	genText, err := o.caller.Call(ctx, []gateway.Message{
		{Role: "user", Content: prompt.BuildGenerate(los, numQuestions, difficulty)},
	}, generateMaxTokens, prompt.System)
	if err != nil {
		return Result{}, err
	}

	generated, err := parse.Questions(genText)
	if err != nil {
		return Result{}, err
	}

	res := Result{Questions: generated}

	reviewed, err := o.review(ctx, generated)
	if err != nil {
		log.Printf("quality review pass failed, keeping original questions: %v", err)
		res.ReviewErr = err
		return res, nil
	}

	res.Questions = reviewed
	res.ReviewApplied = true
	return res, nil
}

// review runs the quality-check call over the generated set and applies the
// adoption rule.
func (o *Orchestrator) review(ctx context.Context, generated question.Set) (question.Set, error) {
	reviewMsg, err := prompt.BuildQualityCheck(generated)
	if err != nil {
		return nil, err
	}

	checkText, err := o.caller.Call(ctx, []gateway.Message{
		{Role: "user", Content: reviewMsg},
	}, generateMaxTokens, prompt.QualityCheck)
	if err != nil {
		return nil, err
	}

	checked, err := parse.Lenient(checkText)
	if err != nil {
		return nil, err
	}
	if len(checked) != len(generated) {
		return nil, fmt.Errorf("%w: got %d, want %d", errLengthMismatch, len(checked), len(generated))
	}
	return checked, nil
}

// Regenerate requests one replacement question covering the same learning
// objective as q, against the full objectives text. It parses exactly one
// question from the result. Failures are returned to the caller and affect
// nothing else.
func (o *Orchestrator) Regenerate(ctx context.Context, q question.Question, los string) (question.Question, error) {
	text, err := o.caller.Call(ctx, []gateway.Message{
		{Role: "user", Content: prompt.BuildRegenerate(q, los)},
	}, regenerateMaxTokens, prompt.System)
	if err != nil {
		return question.Question{}, err
	}

	replacement, err := parse.Questions(text)
	if err != nil {
		return question.Question{}, err
	}
	if len(replacement) == 0 {
		return question.Question{}, &parse.FormatError{Reason: "empty questions array"}
	}
	return replacement[0], nil
}

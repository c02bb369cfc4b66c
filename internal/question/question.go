// Package question holds the domain records produced by generation and the
// structural rules the LLM output must satisfy.
package question

import (
	"fmt"
	"sort"
)

// Letters are the five option keys, in display order.
var Letters = []string{"A", "B", "C", "D", "E"}

// Orders are the accepted cognitive-complexity tiers.
var Orders = map[string]bool{"1st": true, "2nd": true, "3rd": true}

// Question is one generated MCQ. Identity within a set is array position;
// regeneration replaces a question wholesale at its position.
type Question struct {
	Number                 int               `json:"number"`
	Order                  string            `json:"order"`
	MappedLO               string            `json:"mapped_lo"`
	Lecture                string            `json:"lecture"`
	ImageDescription       string            `json:"image_description,omitempty"`
	Vignette               string            `json:"vignette"`
	LeadIn                 string            `json:"lead_in"`
	Options                map[string]string `json:"options"`
	CorrectAnswer          string            `json:"correct_answer"`
	Explanation            string            `json:"explanation"`
	DistractorExplanations map[string]string `json:"distractor_explanations"`
}

// Set is an ordered sequence of questions. Order is meaningful: display and
// export follow it.
type Set []Question

// Validate checks the structural contract of a single question: exactly five
// options keyed A-E, a correct answer that is one of them, a distractor
// explanation for exactly the other four letters, and a known order tier.
func (q Question) Validate() error {
	if !Orders[q.Order] {
		return fmt.Errorf("order %q is not one of 1st, 2nd, 3rd", q.Order)
	}
	if len(q.Options) != len(Letters) {
		return fmt.Errorf("got %d options, want %d", len(q.Options), len(Letters))
	}
	for _, letter := range Letters {
		if _, ok := q.Options[letter]; !ok {
			return fmt.Errorf("missing option %q", letter)
		}
	}
	if _, ok := q.Options[q.CorrectAnswer]; !ok {
		return fmt.Errorf("correct answer %q is not an option key", q.CorrectAnswer)
	}
	if len(q.DistractorExplanations) != len(Letters)-1 {
		return fmt.Errorf("got %d distractor explanations, want %d", len(q.DistractorExplanations), len(Letters)-1)
	}
	for letter := range q.DistractorExplanations {
		if letter == q.CorrectAnswer {
			return fmt.Errorf("distractor explanation given for the correct answer %q", letter)
		}
		if _, ok := q.Options[letter]; !ok {
			return fmt.Errorf("distractor explanation for unknown option %q", letter)
		}
	}
	return nil
}

// Validate checks every question in the set.
func (s Set) Validate() error {
	for i, q := range s {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// OptionLetters returns the question's option keys in display order. Letters
// outside A-E (possible on unvalidated sets) sort after the standard five.
func (q Question) OptionLetters() []string {
	letters := make([]string, 0, len(q.Options))
	for letter := range q.Options {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	return letters
}

// Package bank persists saved question sets and flagged-question reports
// through the storage interface, newest first.
package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/question"
	"github.com/oslerlabs/osler/internal/storage"
)

const (
	setsKey  = "bank:sets"
	flagsKey = "bank:flags"

	excerptLen = 80
)

// SavedSet is one stored question set.
type SavedSet struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Date       time.Time    `json:"date"`
	Difficulty string       `json:"difficulty"`
	Questions  question.Set `json:"questions"`
}

// Flag is one flagged-question report. It stores a vignette excerpt rather
// than the whole question.
type Flag struct {
	Date    time.Time `json:"date"`
	Reason  string    `json:"reason"`
	Excerpt string    `json:"question"`
	LO      string    `json:"lo"`
	Lecture string    `json:"lecture"`
	Order   string    `json:"order"`
}

// Bank stores sets and flags on a storage backend.
type Bank struct {
	storage storage.Storage
	clock   clock.Clock
}

// New creates a bank on the given storage.
func New(st storage.Storage, clk clock.Clock) *Bank {
	return &Bank{storage: st, clock: clk}
}

// Save stores a question set under a generated ID. An empty name gets the
// default "<n> Questions — <date>" form.
func (b *Bank) Save(ctx context.Context, name, difficulty string, qs question.Set) (SavedSet, error) {
	now := b.clock.Now()
	if name == "" {
		name = fmt.Sprintf("%d Questions — %s", len(qs), now.Format("2006-01-02"))
	}
	set := SavedSet{
		ID:         uuid.NewString(),
		Name:       name,
		Date:       now,
		Difficulty: difficulty,
		Questions:  qs,
	}

	sets, err := b.List(ctx)
	if err != nil {
		return SavedSet{}, err
	}
	sets = append([]SavedSet{set}, sets...)
	if err := b.writeSets(ctx, sets); err != nil {
		return SavedSet{}, err
	}
	return set, nil
}

// List returns all saved sets, newest first.
func (b *Bank) List(ctx context.Context) ([]SavedSet, error) {
	data, err := b.storage.Get(ctx, setsKey)
	if err != nil {
		return nil, fmt.Errorf("loading saved sets: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var sets []SavedSet
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("decoding saved sets: %w", err)
	}
	return sets, nil
}

// Get returns the saved set with the given ID.
func (b *Bank) Get(ctx context.Context, id string) (SavedSet, error) {
	sets, err := b.List(ctx)
	if err != nil {
		return SavedSet{}, err
	}
	for _, s := range sets {
		if s.ID == id {
			return s, nil
		}
	}
	return SavedSet{}, fmt.Errorf("no saved set with id %q", id)
}

// Delete removes the saved set with the given ID. Unknown IDs are a no-op.
func (b *Bank) Delete(ctx context.Context, id string) error {
	sets, err := b.List(ctx)
	if err != nil {
		return err
	}
	kept := sets[:0]
	for _, s := range sets {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	return b.writeSets(ctx, kept)
}

func (b *Bank) writeSets(ctx context.Context, sets []SavedSet) error {
	data, err := json.Marshal(sets)
	if err != nil {
		return fmt.Errorf("encoding saved sets: %w", err)
	}
	if err := b.storage.Set(ctx, setsKey, data, 0); err != nil {
		return fmt.Errorf("storing saved sets: %w", err)
	}
	return nil
}

// AddFlag records a flagged-question report.
func (b *Bank) AddFlag(ctx context.Context, reason string, q question.Question) error {
	flags, err := b.Flags(ctx)
	if err != nil {
		return err
	}
	flags = append(flags, Flag{
		Date:    b.clock.Now(),
		Reason:  reason,
		Excerpt: excerpt(q.Vignette),
		LO:      q.MappedLO,
		Lecture: q.Lecture,
		Order:   q.Order,
	})

	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encoding flags: %w", err)
	}
	if err := b.storage.Set(ctx, flagsKey, data, 0); err != nil {
		return fmt.Errorf("storing flags: %w", err)
	}
	return nil
}

// Flags returns all flagged-question reports in insertion order.
func (b *Bank) Flags(ctx context.Context) ([]Flag, error) {
	data, err := b.storage.Get(ctx, flagsKey)
	if err != nil {
		return nil, fmt.Errorf("loading flags: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var flags []Flag
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("decoding flags: %w", err)
	}
	return flags, nil
}

// excerpt truncates on a rune boundary so stored flags stay valid UTF-8.
func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLen {
		return s
	}
	return string([]rune(s)[:excerptLen]) + "..."
}

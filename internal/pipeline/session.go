package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/question"
)

// Mode selects how answers behave: study reveals each result immediately,
// exam withholds results until graded.
type Mode string

const (
	ModeStudy Mode = "study"
	ModeExam  Mode = "exam"
)

// Session holds one generation session's questions and interactive state.
// Per-index state (selection, revealed result, explanation shown) is keyed by
// array position, matching question identity. Thread-safe: independent
// regenerations of different indices may run concurrently.
type Session struct {
	mu sync.Mutex

	orch *Orchestrator
	clk  clock.Clock

	mode       Mode
	objectives string

	questions        question.Set
	generation       uint64
	selected         map[int]string
	resultShown      map[int]bool
	explanationShown map[int]bool
	examGraded       bool

	elapsed    time.Duration
	timerStart time.Time
	timerOn    bool

	reviewApplied bool
	reviewErr     error
}

// NewSession creates a session bound to an orchestrator.
func NewSession(orch *Orchestrator, clk clock.Clock, mode Mode) *Session {
	return &Session{
		orch:             orch,
		clk:              clk,
		mode:             mode,
		selected:         make(map[int]string),
		resultShown:      make(map[int]bool),
		explanationShown: make(map[int]bool),
	}
}

// Generate runs the full pipeline and adopts its result. Entering generation
// resets every piece of per-session interactive state: a new generation fully
// supersedes the previous session.
func (s *Session) Generate(ctx context.Context, los string, numQuestions int, difficulty string) error {
	s.mu.Lock()
	s.reset()
	s.objectives = los
	s.mu.Unlock()

	res, err := s.orch.Generate(ctx, los, numQuestions, difficulty)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = res.Questions
	s.generation++
	s.reviewApplied = res.ReviewApplied
	s.reviewErr = res.ReviewErr
	if s.mode == ModeExam {
		s.startTimerLocked()
	}
	return nil
}

// reset clears questions and all interactive state. Caller holds s.mu.
func (s *Session) reset() {
	s.questions = nil
	s.selected = make(map[int]string)
	s.resultShown = make(map[int]bool)
	s.explanationShown = make(map[int]bool)
	s.examGraded = false
	s.elapsed = 0
	s.timerOn = false
	s.reviewApplied = false
	s.reviewErr = nil
}

// Regenerate replaces the question at idx with a fresh one covering the same
// learning objective, and clears only that index's interaction state. A
// failure leaves every question and all state untouched.
func (s *Session) Regenerate(ctx context.Context, idx int) error {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.questions) {
		s.mu.Unlock()
		return fmt.Errorf("question index %d out of range", idx)
	}
	q := s.questions[idx]
	los := s.objectives
	generation := s.generation
	s.mu.Unlock()

	replacement, err := s.orch.Regenerate(ctx, q, los)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		// Session was superseded while the call was in flight; the
		// replacement belongs to the old question set.
		return fmt.Errorf("question set changed during regeneration")
	}
	s.questions[idx] = replacement
	delete(s.selected, idx)
	delete(s.resultShown, idx)
	delete(s.explanationShown, idx)
	return nil
}

// SelectAnswer records the chosen letter for question idx. In study mode the
// result is revealed immediately.
func (s *Session) SelectAnswer(idx int, letter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.questions) {
		return
	}
	s.selected[idx] = letter
	if s.mode == ModeStudy {
		s.resultShown[idx] = true
	}
}

// GradeExam stops the timer, marks the exam graded and reveals every result.
func (s *Session) GradeExam() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.examGraded = true
	for i := range s.questions {
		s.resultShown[i] = true
	}
}

// ToggleExplanation flips the explanation visibility for question idx.
func (s *Session) ToggleExplanation(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explanationShown[idx] = !s.explanationShown[idx]
}

// Score returns the number answered correctly and the total question count.
func (s *Session) Score() (correct, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.questions {
		if s.selected[i] == q.CorrectAnswer {
			correct++
		}
	}
	return correct, len(s.questions)
}

// Questions returns a copy of the current question set.
func (s *Session) Questions() question.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(question.Set, len(s.questions))
	copy(out, s.questions)
	return out
}

// Selected returns the selection for idx and whether one exists.
func (s *Session) Selected(idx int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.selected[idx]
	return letter, ok
}

// ResultShown reports whether idx's result is revealed.
func (s *Session) ResultShown(idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultShown[idx]
}

// ExplanationShown reports whether idx's explanation is visible.
func (s *Session) ExplanationShown(idx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explanationShown[idx]
}

// ExamGraded reports whether the exam has been graded.
func (s *Session) ExamGraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.examGraded
}

// ReviewOutcome reports whether the quality pass was adopted, and the error
// that caused fallback when it was not.
func (s *Session) ReviewOutcome() (applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewApplied, s.reviewErr
}

// Elapsed returns the exam time accumulated so far.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timerOn {
		return s.elapsed + s.clk.Since(s.timerStart)
	}
	return s.elapsed
}

func (s *Session) startTimerLocked() {
	s.timerStart = s.clk.Now()
	s.timerOn = true
}

func (s *Session) stopTimerLocked() {
	if s.timerOn {
		s.elapsed += s.clk.Since(s.timerStart)
		s.timerOn = false
	}
}

package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/question"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleSet() question.Set {
	return question.Set{{
		Number:   1,
		Order:    "2nd",
		MappedLO: "Interpret arterial blood gases",
		Lecture:  "Pulmonology",
		Vignette: "A 70-year-old woman with COPD presents with worsening dyspnea.",
		LeadIn:   "Which of the following acid-base disturbances is most likely?",
		Options: map[string]string{
			"A": "Respiratory acidosis",
			"B": "Respiratory alkalosis",
			"C": "Metabolic acidosis",
			"D": "Metabolic alkalosis",
			"E": "Mixed disturbance",
		},
		CorrectAnswer: "A",
		Explanation:   "CO2 retention drives the pH down.",
		DistractorExplanations: map[string]string{
			"B": "Hyperventilation raises pH.",
			"C": "No anion gap or bicarbonate loss here.",
			"D": "No vomiting or diuretic use.",
			"E": "A single primary process explains the picture.",
		},
	}}
}

func TestAnswerKey_Content(t *testing.T) {
	r := NewTextRenderer(clock.NewVirtualClock(epoch))

	var b strings.Builder
	if err := r.AnswerKey(&b, sampleSet()); err != nil {
		t.Fatalf("AnswerKey error: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		"Answer Key — With Answers & Explanations",
		"Generated 2025-01-01 · 1 questions",
		"Question 1 [2nd Order]",
		"Lecture: Pulmonology",
		"LO: Interpret arterial blood gases",
		"A. Respiratory acidosis   ← CORRECT",
		"Explanation: CO2 retention drives the pH down.",
		"Why the others are wrong:",
		"B. Hyperventilation raises pH.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("answer key missing %q", want)
		}
	}
	if strings.Contains(out, "E. Mixed disturbance   ← CORRECT") {
		t.Error("only the correct option should be marked")
	}
}

func TestPractice_HidesAnswers(t *testing.T) {
	r := NewTextRenderer(clock.NewVirtualClock(epoch))

	var b strings.Builder
	if err := r.Practice(&b, sampleSet()); err != nil {
		t.Fatalf("Practice error: %v", err)
	}
	out := b.String()

	if !strings.Contains(out, "Student Version") {
		t.Error("practice document missing header")
	}
	if !strings.Contains(out, "Answer: ______") {
		t.Error("practice document missing the answer blank")
	}
	for _, leaked := range []string{"CORRECT", "Explanation:", "CO2 retention"} {
		if strings.Contains(out, leaked) {
			t.Errorf("practice document leaks %q", leaked)
		}
	}
}

func TestAnswerKey_OptionsInLetterOrder(t *testing.T) {
	r := NewTextRenderer(clock.NewVirtualClock(epoch))

	var b strings.Builder
	r.AnswerKey(&b, sampleSet())
	out := b.String()

	prev := -1
	for _, letter := range []string{"A. ", "B. ", "C. ", "D. ", "E. "} {
		i := strings.Index(out, letter)
		if i < 0 {
			t.Fatalf("option %q missing", letter)
		}
		if i < prev {
			t.Fatalf("option %q out of order", letter)
		}
		prev = i
	}
}

func TestAnswerKey_ImageDescription(t *testing.T) {
	set := sampleSet()
	set[0].ImageDescription = "Chest X-ray showing hyperinflation"

	r := NewTextRenderer(clock.NewVirtualClock(epoch))
	var b strings.Builder
	r.AnswerKey(&b, set)
	if !strings.Contains(b.String(), "[Clinical Image: Chest X-ray showing hyperinflation]") {
		t.Error("image description should be rendered when present")
	}

	b.Reset()
	r.AnswerKey(&b, sampleSet())
	if strings.Contains(b.String(), "[Clinical Image:") {
		t.Error("image block should be omitted when absent")
	}
}

func TestAnswerKey_EmptyLectureRendersDash(t *testing.T) {
	set := sampleSet()
	set[0].Lecture = ""

	r := NewTextRenderer(clock.NewVirtualClock(epoch))
	var b strings.Builder
	r.AnswerKey(&b, set)
	if !strings.Contains(b.String(), "Lecture: —") {
		t.Error("empty lecture should render as a dash")
	}
}

func TestFiles_WritesBothDocuments(t *testing.T) {
	dir := t.TempDir()
	r := NewTextRenderer(clock.NewVirtualClock(epoch))

	keyPath, practicePath, err := Files(r, dir, "cardio", sampleSet())
	if err != nil {
		t.Fatalf("Files error: %v", err)
	}
	if keyPath != filepath.Join(dir, "cardio_answer_key.txt") {
		t.Errorf("keyPath = %q", keyPath)
	}
	if practicePath != filepath.Join(dir, "cardio_practice.txt") {
		t.Errorf("practicePath = %q", practicePath)
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("reading answer key: %v", err)
	}
	if !strings.Contains(string(key), "← CORRECT") {
		t.Error("answer key file missing the marked answer")
	}
	practiceDoc, err := os.ReadFile(practicePath)
	if err != nil {
		t.Fatalf("reading practice doc: %v", err)
	}
	if strings.Contains(string(practiceDoc), "← CORRECT") {
		t.Error("practice file must not mark answers")
	}
}

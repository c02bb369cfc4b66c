package prompt

import (
	"strings"
	"testing"

	"github.com/oslerlabs/osler/internal/question"
)

func TestBuildGenerate_EmbedsInputs(t *testing.T) {
	los := "Pneumonia — community-acquired, diagnosis and treatment"
	p := BuildGenerate(los, 5, DifficultyMixed)

	if !strings.Contains(p, los) {
		t.Error("prompt should contain the objectives text verbatim")
	}
	if !strings.Contains(p, "generate 5 ") {
		t.Error("prompt should contain the question count")
	}
	if !strings.Contains(p, DifficultyOptions[DifficultyMixed]) {
		t.Error("prompt should contain the mixed-difficulty distribution description")
	}
}

func TestBuildGenerate_DifficultyVariants(t *testing.T) {
	for _, difficulty := range []string{DifficultyMixed, DifficultyEasy, DifficultyHard} {
		p := BuildGenerate("some objectives", 3, difficulty)
		if !strings.Contains(p, DifficultyOptions[difficulty]) {
			t.Errorf("prompt for %q should contain its distribution description", difficulty)
		}
	}
}

func TestValidDifficulty(t *testing.T) {
	for _, difficulty := range []string{"mixed", "easy", "hard"} {
		if !ValidDifficulty(difficulty) {
			t.Errorf("ValidDifficulty(%q) = false, want true", difficulty)
		}
	}
	if ValidDifficulty("brutal") {
		t.Error(`ValidDifficulty("brutal") = true, want false`)
	}
}

func TestBuildQualityCheck_ContainsQuestionJSON(t *testing.T) {
	set := question.Set{{
		Number:        1,
		Order:         "1st",
		MappedLO:      "Recognize subdural hematoma on imaging",
		Lecture:       "Neurology",
		Vignette:      "An 81-year-old man is brought in after a fall.",
		LeadIn:        "Which of the following is the most likely diagnosis?",
		Options:       map[string]string{"A": "Subdural hematoma", "B": "Epidural hematoma", "C": "Subarachnoid hemorrhage", "D": "Intracerebral hemorrhage", "E": "Cerebral contusion"},
		CorrectAnswer: "A",
	}}

	msg, err := BuildQualityCheck(set)
	if err != nil {
		t.Fatalf("BuildQualityCheck() error = %v", err)
	}
	if !strings.HasPrefix(msg, "Review and fix these questions:") {
		t.Error("review message should start with the fixed instruction")
	}
	if !strings.Contains(msg, `"questions"`) {
		t.Error("review message should embed the questions envelope")
	}
	if !strings.Contains(msg, "Recognize subdural hematoma on imaging") {
		t.Error("review message should embed the question content")
	}
}

func TestBuildRegenerate_EmbedsOriginalAndObjectives(t *testing.T) {
	q := question.Question{
		MappedLO: "Explain the mechanism of warfarin",
		Lecture:  "Pharmacology",
		Order:    "3rd",
	}
	los := "Anticoagulants: mechanisms and monitoring"

	p := BuildRegenerate(q, los)
	for _, want := range []string{q.MappedLO, q.Lecture, q.Order, los, `exactly 1 question`} {
		if !strings.Contains(p, want) {
			t.Errorf("regeneration prompt should contain %q", want)
		}
	}
}

func TestSystem_MandatesRawJSON(t *testing.T) {
	if !strings.Contains(System, "Generate ONLY valid JSON. No markdown fences, no preamble.") {
		t.Error("system prompt must mandate raw JSON output")
	}
	if !strings.Contains(System, `"questions"`) {
		t.Error("system prompt must specify the questions envelope")
	}
}

func TestQualityCheck_RequiresSameFormat(t *testing.T) {
	if !strings.Contains(QualityCheck, "Return the COMPLETE question set") {
		t.Error("review prompt must require the complete set back")
	}
}

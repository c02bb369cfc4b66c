package question

import (
	"strings"
	"testing"
)

func validQuestion() Question {
	return Question{
		Number:   1,
		Order:    "2nd",
		MappedLO: "Describe the management of community-acquired pneumonia",
		Lecture:  "Pulmonology",
		Vignette: "A 67-year-old man comes to the emergency department with fever and a productive cough for 3 days.",
		LeadIn:   "Which of the following is the most appropriate pharmacotherapy?",
		Options: map[string]string{
			"A": "Azithromycin", "B": "Ceftriaxone and azithromycin", "C": "Vancomycin",
			"D": "Piperacillin-tazobactam", "E": "Oseltamivir",
		},
		CorrectAnswer: "B",
		Explanation:   "Inpatient CAP is treated with a beta-lactam plus a macrolide.",
		DistractorExplanations: map[string]string{
			"A": "Monotherapy is inadequate for inpatients.",
			"C": "No MRSA risk factors.",
			"D": "No pseudomonal risk factors.",
			"E": "No influenza findings.",
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validQuestion().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_BadOrder(t *testing.T) {
	q := validQuestion()
	q.Order = "4th"
	if err := q.Validate(); err == nil {
		t.Error("expected error for unknown order")
	}
}

func TestValidate_WrongOptionCount(t *testing.T) {
	q := validQuestion()
	delete(q.Options, "E")
	if err := q.Validate(); err == nil {
		t.Error("expected error for 4 options")
	}
}

func TestValidate_NonStandardLetter(t *testing.T) {
	q := validQuestion()
	delete(q.Options, "E")
	q.Options["F"] = "Doxycycline"
	if err := q.Validate(); err == nil {
		t.Error("expected error for option keyed F")
	}
}

func TestValidate_CorrectAnswerNotAnOption(t *testing.T) {
	q := validQuestion()
	q.CorrectAnswer = "F"
	if err := q.Validate(); err == nil {
		t.Error("expected error for correct answer outside options")
	}
}

func TestValidate_DistractorCoverage(t *testing.T) {
	q := validQuestion()

	// Missing one distractor explanation.
	delete(q.DistractorExplanations, "C")
	if err := q.Validate(); err == nil {
		t.Error("expected error for 3 distractor explanations")
	}

	// Explanation given for the correct answer.
	q = validQuestion()
	delete(q.DistractorExplanations, "A")
	q.DistractorExplanations["B"] = "should not be here"
	if err := q.Validate(); err == nil {
		t.Error("expected error for distractor explanation on the correct answer")
	}
}

func TestSetValidate_NamesQuestionIndex(t *testing.T) {
	bad := validQuestion()
	bad.CorrectAnswer = "Z"
	s := Set{validQuestion(), bad}

	err := s.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "question 2") {
		t.Errorf("error %q should name question 2", err)
	}
}

func TestOptionLetters_Ordered(t *testing.T) {
	q := validQuestion()
	letters := q.OptionLetters()
	want := []string{"A", "B", "C", "D", "E"}
	if len(letters) != len(want) {
		t.Fatalf("got %d letters, want %d", len(letters), len(want))
	}
	for i := range want {
		if letters[i] != want[i] {
			t.Errorf("letters[%d] = %q, want %q", i, letters[i], want[i])
		}
	}
}

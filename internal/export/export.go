// Package export renders a finished question set into two documents: an
// answer-key version and a blank practice version, both in input order.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/question"
)

// Renderer produces the two downloadable documents for a question set.
type Renderer interface {
	// AnswerKey writes the version with the correct answer marked, the full
	// explanation and per-distractor rationale.
	AnswerKey(w io.Writer, qs question.Set) error
	// Practice writes the blank version: options only, with an answer line.
	Practice(w io.Writer, qs question.Set) error
}

const answerKeyTmpl = `USMLE-Style Practice Questions
Answer Key — With Answers & Explanations
Generated {{.Date}} · {{len .Questions}} questions

{{range $i, $q := .Questions}}
========================================
Question {{inc $i}} [{{$q.Order}} Order]
========================================
Lecture: {{orDash $q.Lecture}}
LO: {{$q.MappedLO}}
{{if $q.ImageDescription}}
[Clinical Image: {{$q.ImageDescription}}]
{{end}}
{{$q.Vignette}}

{{$q.LeadIn}}

{{range $letter := letters $q}}{{$letter}}. {{index $q.Options $letter}}{{if eq $letter $q.CorrectAnswer}}   ← CORRECT{{end}}
{{end}}
Explanation: {{$q.Explanation}}

Why the others are wrong:
{{range $letter := letters $q}}{{if ne $letter $q.CorrectAnswer}}  {{$letter}}. {{index $q.DistractorExplanations $letter}}
{{end}}{{end}}{{end}}`

const practiceTmpl = `USMLE-Style Practice Questions
Student Version
Generated {{.Date}} · {{len .Questions}} questions

{{range $i, $q := .Questions}}
========================================
Question {{inc $i}} [{{$q.Order}} Order]
========================================
{{if $q.ImageDescription}}
[Clinical Image: {{$q.ImageDescription}}]
{{end}}
{{$q.Vignette}}

{{$q.LeadIn}}

{{range $letter := letters $q}}{{$letter}}. {{index $q.Options $letter}}
{{end}}
Answer: ______
{{end}}`

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"letters": func(q question.Question) []string {
		return q.OptionLetters()
	},
	"orDash": func(s string) string {
		if s == "" {
			return "—"
		}
		return s
	},
}

var (
	answerKey = template.Must(template.New("answer_key").Funcs(funcs).Parse(answerKeyTmpl))
	practice  = template.Must(template.New("practice").Funcs(funcs).Parse(practiceTmpl))
)

// TextRenderer renders plain-text documents.
type TextRenderer struct {
	clock clock.Clock
}

// NewTextRenderer creates a renderer using the given clock for the header date.
func NewTextRenderer(clk clock.Clock) *TextRenderer {
	return &TextRenderer{clock: clk}
}

type docData struct {
	Date      string
	Questions question.Set
}

func (r *TextRenderer) data(qs question.Set) docData {
	return docData{
		Date:      r.clock.Now().Format("2006-01-02"),
		Questions: qs,
	}
}

func (r *TextRenderer) AnswerKey(w io.Writer, qs question.Set) error {
	return answerKey.Execute(w, r.data(qs))
}

func (r *TextRenderer) Practice(w io.Writer, qs question.Set) error {
	return practice.Execute(w, r.data(qs))
}

// Files writes both documents next to each other under dir with the given
// base name and returns the two paths, answer key first.
func Files(r Renderer, dir, base string, qs question.Set) (keyPath, practicePath string, err error) {
	keyPath = filepath.Join(dir, base+"_answer_key.txt")
	practicePath = filepath.Join(dir, base+"_practice.txt")

	if err := writeFile(keyPath, func(w io.Writer) error { return r.AnswerKey(w, qs) }); err != nil {
		return "", "", err
	}
	if err := writeFile(practicePath, func(w io.Writer) error { return r.Practice(w, qs) }); err != nil {
		return "", "", err
	}
	return keyPath, practicePath, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := render(f); err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return nil
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/pipeline"
	"github.com/oslerlabs/osler/internal/prompt"
	"github.com/oslerlabs/osler/internal/question"
)

func newQuizCmd() *cobra.Command {
	var (
		count      int
		difficulty string
		proxyURL   string
		mode       string
	)

	cmd := &cobra.Command{
		Use:   "quiz <objectives-file>",
		Short: "Generate a question set and work through it interactively",
		Long: `Runs the generation pipeline over a learning objectives file and then
steps through the questions on the terminal.

In study mode each answer reveals the result and explanation immediately.
In exam mode results are withheld and the attempt is timed; everything is
revealed together at the end.`,
		Example: `  osler quiz objectives.txt
  osler quiz objectives.txt --mode exam --count 10
  osler quiz objectives.txt --proxy http://localhost:8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m pipeline.Mode
			switch mode {
			case "study":
				m = pipeline.ModeStudy
			case "exam":
				m = pipeline.ModeExam
			default:
				return fmt.Errorf("unknown mode %q, must be study or exam", mode)
			}
			if !prompt.ValidDifficulty(difficulty) {
				return fmt.Errorf("unknown difficulty %q, must be one of: mixed, easy, hard", difficulty)
			}
			if count < 1 || count > 20 {
				return fmt.Errorf("count must be between 1 and 20, got %d", count)
			}

			los, err := readObjectives(args[0])
			if err != nil {
				return err
			}
			caller, err := createCaller(proxyURL)
			if err != nil {
				return err
			}

			sess := pipeline.NewSession(pipeline.New(caller), clock.NewRealClock(), m)
			log.Printf("generating %d questions (%s difficulty)...", count, difficulty)
			if err := sess.Generate(cmd.Context(), los, count, difficulty); err != nil {
				return err
			}
			if applied, reviewErr := sess.ReviewOutcome(); !applied {
				log.Printf("quality review skipped, using first-pass questions: %v", reviewErr)
			}

			return runQuiz(cmd.Context(), sess, m, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "number of questions to generate")
	cmd.Flags().StringVar(&difficulty, "difficulty", prompt.DifficultyMixed, "difficulty (mixed, easy, hard)")
	cmd.Flags().StringVar(&proxyURL, "proxy", "", "base URL of a running osler proxy; empty calls the provider directly")
	cmd.Flags().StringVar(&mode, "mode", "study", "session mode (study, exam)")

	return cmd
}

// runQuiz steps through the session's questions, reading commands from in.
// Answers are the option letters; "r" regenerates the current question, "x"
// toggles its explanation, an empty line skips it.
func runQuiz(ctx context.Context, sess *pipeline.Session, mode pipeline.Mode, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	total := len(sess.Questions())

	for i := 0; i < total; i++ {
		printQuestion(out, i, sess.Questions()[i])
		for {
			fmt.Fprint(out, "answer [A-E], r=regenerate, x=explanation, enter=skip > ")
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return err
				}
				break // input ended; leave the rest unanswered
			}
			input := strings.ToUpper(strings.TrimSpace(sc.Text()))
			if input == "" {
				break
			}
			if input == "R" {
				if err := sess.Regenerate(ctx, i); err != nil {
					fmt.Fprintf(out, "regeneration failed: %v\n", err)
					continue
				}
				printQuestion(out, i, sess.Questions()[i])
				continue
			}
			if input == "X" {
				sess.ToggleExplanation(i)
				if sess.ExplanationShown(i) {
					fmt.Fprintf(out, "Explanation: %s\n", sess.Questions()[i].Explanation)
				}
				continue
			}

			q := sess.Questions()[i]
			if _, ok := q.Options[input]; !ok {
				fmt.Fprintln(out, "unrecognized input")
				continue
			}
			sess.SelectAnswer(i, input)
			if sess.ResultShown(i) {
				printVerdict(out, q, input)
			}
			break
		}
	}

	if mode == pipeline.ModeExam {
		sess.GradeExam()
		fmt.Fprintln(out)
		for i, q := range sess.Questions() {
			letter, ok := sess.Selected(i)
			switch {
			case !ok:
				fmt.Fprintf(out, "Question %d: unanswered (correct: %s)\n", i+1, q.CorrectAnswer)
			case letter == q.CorrectAnswer:
				fmt.Fprintf(out, "Question %d: correct\n", i+1)
			default:
				fmt.Fprintf(out, "Question %d: %s is wrong (correct: %s)\n", i+1, letter, q.CorrectAnswer)
			}
		}
		fmt.Fprintf(out, "Time: %s\n", sess.Elapsed().Round(time.Second))
	}

	correct, totalQ := sess.Score()
	fmt.Fprintf(out, "Score: %d/%d\n", correct, totalQ)
	return nil
}

func printQuestion(w io.Writer, idx int, q question.Question) {
	fmt.Fprintf(w, "\nQuestion %d [%s Order]\n", idx+1, q.Order)
	if q.ImageDescription != "" {
		fmt.Fprintf(w, "[Clinical Image: %s]\n", q.ImageDescription)
	}
	fmt.Fprintf(w, "%s\n\n%s\n", q.Vignette, q.LeadIn)
	for _, letter := range q.OptionLetters() {
		fmt.Fprintf(w, "  %s. %s\n", letter, q.Options[letter])
	}
}

func printVerdict(w io.Writer, q question.Question, chosen string) {
	if chosen == q.CorrectAnswer {
		fmt.Fprintln(w, "Correct!")
	} else {
		fmt.Fprintf(w, "Incorrect. The answer is %s.\n", q.CorrectAnswer)
		if reason, ok := q.DistractorExplanations[chosen]; ok {
			fmt.Fprintf(w, "  %s: %s\n", chosen, reason)
		}
	}
	fmt.Fprintf(w, "Explanation: %s\n", q.Explanation)
}

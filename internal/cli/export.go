package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/export"
	"github.com/oslerlabs/osler/internal/question"
)

func newExportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export <questions-file>",
		Short: "Export a question set JSON file as documents",
		Long: `Reads a question set written by the generate command and renders the
answer-key and blank practice documents, in the same question order.`,
		Example: `  osler export objectives_questions.json
  osler export objectives_questions.json --out ./handouts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := loadQuestionSet(args[0])
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			base = strings.TrimSuffix(base, "_questions")

			renderer := export.NewTextRenderer(clock.NewRealClock())
			keyPath, practicePath, err := export.Files(renderer, outDir, base, qs)
			if err != nil {
				return err
			}
			log.Printf("wrote %s", keyPath)
			log.Printf("wrote %s", practicePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")

	return cmd
}

// loadQuestionSet reads and validates a question set written by the generate
// command (the {"questions": [...]} envelope).
func loadQuestionSet(path string) (question.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}

	var env struct {
		Questions question.Set `json:"questions"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing questions file: %w", err)
	}
	if len(env.Questions) == 0 {
		return nil, fmt.Errorf("%s contains no questions", path)
	}
	if err := env.Questions.Validate(); err != nil {
		return nil, fmt.Errorf("invalid question set: %w", err)
	}
	return env.Questions, nil
}

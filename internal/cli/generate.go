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
	"github.com/oslerlabs/osler/internal/config"
	"github.com/oslerlabs/osler/internal/export"
	"github.com/oslerlabs/osler/internal/gateway"
	"github.com/oslerlabs/osler/internal/pipeline"
	"github.com/oslerlabs/osler/internal/prompt"
)

func newGenerateCmd() *cobra.Command {
	var (
		count      int
		difficulty string
		proxyURL   string
		outDir     string
		docs       bool
	)

	cmd := &cobra.Command{
		Use:   "generate <objectives-file>",
		Short: "Generate a question set from a learning objectives file",
		Long: `Runs the two-stage pipeline over the learning objectives in the given
text file and writes the resulting question set as JSON.

With --proxy the calls go through a running osler proxy, which applies its
rate limit. Without it the provider is called directly using ` + config.APIKeyEnv + `.`,
		Example: `  osler generate objectives.txt
  osler generate objectives.txt --count 10 --difficulty hard
  osler generate objectives.txt --proxy http://localhost:8080 --docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			orch := pipeline.New(caller)
			log.Printf("generating %d questions (%s difficulty)...", count, difficulty)
			res, err := orch.Generate(cmd.Context(), los, count, difficulty)
			if err != nil {
				return err
			}
			if res.ReviewApplied {
				log.Printf("quality review applied")
			} else {
				log.Printf("quality review skipped, using first-pass questions: %v", res.ReviewErr)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			jsonPath := filepath.Join(outDir, base+"_questions.json")
			data, err := json.MarshalIndent(struct {
				Questions any `json:"questions"`
			}{Questions: res.Questions}, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
				return err
			}
			log.Printf("wrote %s", jsonPath)

			if docs {
				renderer := export.NewTextRenderer(clock.NewRealClock())
				keyPath, practicePath, err := export.Files(renderer, outDir, base, res.Questions)
				if err != nil {
					return err
				}
				log.Printf("wrote %s", keyPath)
				log.Printf("wrote %s", practicePath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "number of questions to generate")
	cmd.Flags().StringVar(&difficulty, "difficulty", prompt.DifficultyMixed, "difficulty (mixed, easy, hard)")
	cmd.Flags().StringVar(&proxyURL, "proxy", "", "base URL of a running osler proxy; empty calls the provider directly")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	cmd.Flags().BoolVar(&docs, "docs", false, "also export answer-key and practice documents")

	return cmd
}

func readObjectives(path string) (string, error) {
	objectives, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading objectives file: %w", err)
	}
	los := strings.TrimSpace(string(objectives))
	if los == "" {
		return "", fmt.Errorf("objectives file %s is empty", path)
	}
	return los, nil
}

func createCaller(proxyURL string) (pipeline.Caller, error) {
	if proxyURL != "" {
		return &pipeline.ProxyClient{BaseURL: proxyURL}, nil
	}
	key := config.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%s is not set; set it or use --proxy", config.APIKeyEnv)
	}
	return &pipeline.DirectCaller{Client: gateway.New(key, gateway.Options{})}, nil
}

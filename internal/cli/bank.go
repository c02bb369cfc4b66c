package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oslerlabs/osler/internal/bank"
	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/config"
	"github.com/oslerlabs/osler/internal/question"
)

func newBankCmd() *cobra.Command {
	var (
		configFile string
		backend    string
	)

	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage saved question sets and flagged questions",
		Long: `Stores question sets and flagged-question reports on the configured
storage backend. The memory backend lives only for one process; use the
redis backend to keep the bank across runs.`,
		Example: `  osler bank save objectives_questions.json --name "Cardio block 3"
  osler bank list --backend redis
  osler bank show 6b9f... > restored_questions.json
  osler bank flag objectives_questions.json --number 2 --reason "two defensible answers"
  osler bank flags`,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to JSON config file")
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "override storage backend (memory, redis)")

	openBank := func() (*bank.Bank, func(), error) {
		cfg := config.Default()
		if configFile != "" {
			loaded, err := config.LoadFile(configFile)
			if err != nil {
				return nil, nil, err
			}
			cfg = loaded
		}
		if backend != "" {
			cfg.Storage.Backend = backend
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		clk := clock.NewRealClock()
		st, err := createStorage(cfg, clk)
		if err != nil {
			return nil, nil, err
		}
		return bank.New(st, clk), func() { _ = st.Close() }, nil
	}

	var saveName, saveDifficulty string
	save := &cobra.Command{
		Use:   "save <questions-file>",
		Short: "Save a question set to the bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeBank, err := openBank()
			if err != nil {
				return err
			}
			defer closeBank()
			return runBankSave(cmd.Context(), b, args[0], saveName, saveDifficulty, cmd.OutOrStdout())
		},
	}
	save.Flags().StringVar(&saveName, "name", "", "set name (default: \"<n> Questions — <date>\")")
	save.Flags().StringVar(&saveDifficulty, "difficulty", "mixed", "difficulty label stored with the set")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved question sets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeBank, err := openBank()
			if err != nil {
				return err
			}
			defer closeBank()
			return runBankList(cmd.Context(), b, cmd.OutOrStdout())
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Write a saved set as questions JSON",
		Long: `Writes the saved set in the same {"questions": [...]} envelope the
generate command produces, so it can feed the export command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeBank, err := openBank()
			if err != nil {
				return err
			}
			defer closeBank()
			return runBankShow(cmd.Context(), b, args[0], cmd.OutOrStdout())
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved question set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeBank, err := openBank()
			if err != nil {
				return err
			}
			defer closeBank()
			return runBankDelete(cmd.Context(), b, args[0], cmd.OutOrStdout())
		},
	}

	var flagNumber int
	var flagReason string
	flag := &cobra.Command{
		Use:   "flag <questions-file>",
		Short: "Flag a question as problematic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeBank, err := openBank()
			if err != nil {
				return err
			}
			defer closeBank()
			return runBankFlag(cmd.Context(), b, args[0], flagNumber, flagReason, cmd.OutOrStdout())
		},
	}
	flag.Flags().IntVar(&flagNumber, "number", 1, "question number within the file, starting at 1")
	flag.Flags().StringVar(&flagReason, "reason", "", "why the question is being flagged")
	flag.MarkFlagRequired("reason")

	flags := &cobra.Command{
		Use:   "flags",
		Short: "List flagged-question reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeBank, err := openBank()
			if err != nil {
				return err
			}
			defer closeBank()
			return runBankFlags(cmd.Context(), b, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(save, list, show, del, flag, flags)
	return cmd
}

func runBankSave(ctx context.Context, b *bank.Bank, path, name, difficulty string, w io.Writer) error {
	qs, err := loadQuestionSet(path)
	if err != nil {
		return err
	}
	saved, err := b.Save(ctx, name, difficulty, qs)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %q (%d questions) as %s\n", saved.Name, len(saved.Questions), saved.ID)
	return nil
}

func runBankList(ctx context.Context, b *bank.Bank, w io.Writer) error {
	sets, err := b.List(ctx)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		fmt.Fprintln(w, "no saved sets")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tDIFFICULTY\tQUESTIONS")
	for _, s := range sets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Name, s.Date.Format("2006-01-02"), s.Difficulty, len(s.Questions))
	}
	return tw.Flush()
}

func runBankShow(ctx context.Context, b *bank.Bank, id string, w io.Writer) error {
	set, err := b.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(struct {
		Questions question.Set `json:"questions"`
	}{Questions: set.Questions}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func runBankDelete(ctx context.Context, b *bank.Bank, id string, w io.Writer) error {
	if err := b.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted %s\n", id)
	return nil
}

func runBankFlag(ctx context.Context, b *bank.Bank, path string, number int, reason string, w io.Writer) error {
	qs, err := loadQuestionSet(path)
	if err != nil {
		return err
	}
	if number < 1 || number > len(qs) {
		return fmt.Errorf("question number %d out of range 1-%d", number, len(qs))
	}
	if err := b.AddFlag(ctx, reason, qs[number-1]); err != nil {
		return err
	}
	fmt.Fprintf(w, "flagged question %d: %s\n", number, reason)
	return nil
}

func runBankFlags(ctx context.Context, b *bank.Bank, w io.Writer) error {
	flags, err := b.Flags(ctx)
	if err != nil {
		return err
	}
	if len(flags) == 0 {
		fmt.Fprintln(w, "no flagged questions")
		return nil
	}
	for _, f := range flags {
		fmt.Fprintf(w, "%s  [%s / %s / %s]\n", f.Date.Format("2006-01-02 15:04"), f.Lecture, f.LO, f.Order)
		fmt.Fprintf(w, "  reason: %s\n", f.Reason)
		fmt.Fprintf(w, "  %s\n", f.Excerpt)
	}
	return nil
}

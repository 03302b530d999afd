package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rhuss/twinbot/pkg/chatbot"
	"github.com/rhuss/twinbot/pkg/corpus"
)

var (
	trainCorpus []string
	trainAppend bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the statement store and exit",
	Long: `Load the configured corpora (or those given with --corpus) into the
statement store. Existing statements are replaced unless --append is set.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringSliceVar(&trainCorpus, "corpus", nil, "corpus file, directory or builtin:english (repeatable)")
	trainCmd.Flags().BoolVar(&trainAppend, "append", false, "keep existing statements")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	paths := cfg.Chatbot.Corpus
	if len(trainCorpus) > 0 {
		paths = trainCorpus
	}
	corpora, err := corpus.Load(paths...)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	trainer := chatbot.NewTrainer(store, slog.Default())
	train := trainer.Retrain
	if trainAppend {
		train = trainer.Train
	}
	n, err := train(ctx, corpora)
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "trained %d statements from %d corpora\n", n, len(corpora))
	return nil
}

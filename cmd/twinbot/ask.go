package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askVerbose bool

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Print the chatbot reply for text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "also print the matched input and confidence")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	bot, store, err := newBot(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	m := bot.Respond(ctx, strings.Join(args, " "))
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, m.Text)
	if askVerbose {
		fmt.Fprintf(out, "matched: %q\nconfidence: %.2f\ndefault: %t\n", m.Input, m.Confidence, m.Default)
	}
	return nil
}

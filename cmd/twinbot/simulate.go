package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the simulation once and print its result",
	Long: `Run the configured simulation command once and print the value that
would be returned as digitalTwin. Exits non-zero if the process failed.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res := newRunner(cfg.Simulation).Run(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), string(res.JSON()))
	if res.Failure != nil {
		return res.Failure
	}
	return nil
}

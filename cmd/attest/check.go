package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/attest/internal/checker"
	"github.com/dreamware/attest/internal/history"
	"github.com/dreamware/attest/internal/report"
)

var checkBudget time.Duration

var checkCmd = &cobra.Command{
	Use:   "check <history.jsonl>",
	Short: "Check a previously recorded history offline",
	Long: `Re-run the linearizability checker over a history JSONL written by a
previous run, without touching any cluster. Useful for raising the time
budget on a run that came back unknown.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().DurationVar(&checkBudget, "check-budget", checker.DefaultBudget, "per-key checker time budget")
}

func runCheck(_ *cobra.Command, args []string) error {
	ops, err := history.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := history.Validate(ops); err != nil {
		return fmt.Errorf("history is malformed: %w", err)
	}

	res := checker.Check(ops, checker.Options{Budget: checkBudget})
	fmt.Print(report.Render(report.Summarize(ops), res))
	exitForVerdict(res.Verdict)
	return nil
}

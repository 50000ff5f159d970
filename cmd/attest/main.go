// Command attest drives linearizability tests against an etcd-style
// replicated KV store: it generates a concurrent register workload,
// partitions the cluster while the workload runs, and checks the recorded
// operation history against a compare-and-swap register model.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attest",
	Short: "Linearizability test harness for etcd-style KV stores",
	Long: `attest runs a randomized read/write/cas workload against a cluster
while injecting network partitions, records every operation's invocation
and completion, and checks the history for linearizability per key.

Exit status: 0 when the history is valid, 1 when a violation was found,
2 when the checker's time budget ran out before a verdict.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getenv retrieves an environment variable with a default fallback
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/attest/internal/checker"
	"github.com/dreamware/attest/internal/cluster"
	"github.com/dreamware/attest/internal/control"
	"github.com/dreamware/attest/internal/lifecycle"
	"github.com/dreamware/attest/internal/nemesis"
	"github.com/dreamware/attest/internal/report"
)

var (
	runConfigPath     string
	runNodes          []string
	runKeys           int
	runWorkers        int
	runOps            int
	runMeanGap        time.Duration
	runCycleWait      time.Duration
	runTime           time.Duration
	runCheckBudget    time.Duration
	runRequestTimeout time.Duration
	runHistoryFile    string
	runReportDir      string
	runSeed           int64

	runPartitionCmd string
	runHealCmd      string

	runEtcdBinary string
	runWorkDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workload, faults and checker against a cluster",
	Long: `Run the full test: start the workload and the partition scheduler
against the configured cluster, then check and report on the recorded
history.

The cluster is external by default (already running at the conventional
ports). With --etcd-binary the harness starts and stops the daemons
itself. Partitions are injected through the --partition-cmd and
--heal-cmd hooks, typically iptables wrappers; the partition command
receives the two sides as comma-joined node lists.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	def := control.DefaultConfig()

	f := runCmd.Flags()
	f.StringVarP(&runConfigPath, "config", "c", getenv("ATTEST_CONFIG", ""), "YAML config file")
	f.StringSliceVar(&runNodes, "nodes", nil, "cluster node names")
	f.IntVar(&runKeys, "keys", def.KeyCount, "number of independent keys")
	f.IntVar(&runWorkers, "workers", def.WorkersPerKey, "worker processes per key")
	f.IntVar(&runOps, "ops", def.OpsPerKey, "operations per key")
	f.DurationVar(&runMeanGap, "mean-gap", def.MeanGap, "mean gap between a worker's operations")
	f.DurationVar(&runCycleWait, "cycle-wait", def.CycleWait, "pause between fault transitions")
	f.DurationVar(&runTime, "run-time", def.RunTime, "wall-clock limit for the whole run")
	f.DurationVar(&runCheckBudget, "check-budget", def.CheckBudget, "per-key checker time budget")
	f.DurationVar(&runRequestTimeout, "request-timeout", def.RequestTimeout, "store response-wait bound")
	f.StringVar(&runHistoryFile, "history", def.HistoryFile, "history JSONL output path")
	f.StringVar(&runReportDir, "report-dir", def.ReportDir, "report artifact directory")
	f.Int64Var(&runSeed, "seed", 0, "fault schedule random seed")

	f.StringVar(&runPartitionCmd, "partition-cmd", getenv("ATTEST_PARTITION_CMD", ""), "command that severs the two given sides")
	f.StringVar(&runHealCmd, "heal-cmd", getenv("ATTEST_HEAL_CMD", ""), "command that restores full connectivity")

	f.StringVar(&runEtcdBinary, "etcd-binary", "", "store binary; when set the harness manages the daemons")
	f.StringVar(&runWorkDir, "work-dir", "attest-data", "data, log and pid directory for managed daemons")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}
	if runPartitionCmd == "" || runHealCmd == "" {
		return errors.New("--partition-cmd and --heal-cmd are required")
	}

	deps := control.Deps{
		Partitioner: &nemesis.ExecPartitioner{
			PartitionCmd: runPartitionCmd,
			HealCmd:      runHealCmd,
		},
	}
	if runEtcdBinary != "" {
		deps.Lifecycle = &lifecycle.EtcdLifecycle{
			Nodes:   cfg.Nodes,
			Binary:  runEtcdBinary,
			DataDir: filepath.Join(runWorkDir, "data"),
			LogDir:  filepath.Join(runWorkDir, "log"),
			Runner:  lifecycle.NewExecRunner(filepath.Join(runWorkDir, "pid")),
		}
	}

	res, err := control.Run(cmd.Context(), cfg, deps)
	if err != nil {
		return err
	}
	fmt.Print(report.Render(res.Summary, res.Check))
	for _, aerr := range res.Aborted {
		fmt.Fprintf(os.Stderr, "worker aborted: %v\n", aerr)
	}
	exitForVerdict(res.Check.Verdict)
	return nil
}

// buildRunConfig layers the sources: defaults, then the YAML file, then
// any flag the user set explicitly, with ATTEST_NODES as a last-resort
// node list.
func buildRunConfig(cmd *cobra.Command) (control.Config, error) {
	cfg := control.DefaultConfig()
	if runConfigPath != "" {
		var err error
		if cfg, err = control.LoadConfig(runConfigPath); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("nodes") {
		cfg.Nodes = toNodes(runNodes)
	}
	if f.Changed("keys") {
		cfg.KeyCount = runKeys
	}
	if f.Changed("workers") {
		cfg.WorkersPerKey = runWorkers
	}
	if f.Changed("ops") {
		cfg.OpsPerKey = runOps
	}
	if f.Changed("mean-gap") {
		cfg.MeanGap = runMeanGap
	}
	if f.Changed("cycle-wait") {
		cfg.CycleWait = runCycleWait
	}
	if f.Changed("run-time") {
		cfg.RunTime = runTime
	}
	if f.Changed("check-budget") {
		cfg.CheckBudget = runCheckBudget
	}
	if f.Changed("request-timeout") {
		cfg.RequestTimeout = runRequestTimeout
	}
	if f.Changed("history") {
		cfg.HistoryFile = runHistoryFile
	}
	if f.Changed("report-dir") {
		cfg.ReportDir = runReportDir
	}
	if f.Changed("seed") {
		cfg.Seed = runSeed
	}

	if len(cfg.Nodes) == 0 {
		if env := getenv("ATTEST_NODES", ""); env != "" {
			cfg.Nodes = toNodes(strings.Split(env, ","))
		}
	}
	return cfg, cfg.Validate()
}

func toNodes(names []string) []cluster.Node {
	nodes := make([]cluster.Node, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, cluster.Node(n))
		}
	}
	return nodes
}

func exitForVerdict(v checker.Verdict) {
	switch v {
	case checker.Invalid:
		os.Exit(1)
	case checker.Unknown:
		os.Exit(2)
	}
}

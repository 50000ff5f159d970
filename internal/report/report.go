package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dreamware/attest/internal/checker"
	"github.com/dreamware/attest/internal/history"
)

// FuncStats counts completions by outcome for one operation kind.
type FuncStats struct {
	OK   int `json:"ok"`
	Fail int `json:"fail"`
	Info int `json:"info"`
}

// Summary is the run's performance roll-up.
type Summary struct {
	Duration    time.Duration
	Completed   int
	ByFunc      map[history.Func]*FuncStats
	LatencyMin  time.Duration
	LatencyMean time.Duration
	LatencyP99  time.Duration
	LatencyMax  time.Duration
	Throughput  float64 // completed client ops per second
}

// Summarize computes the performance summary from a recorded history.
func Summarize(ops []history.Op) Summary {
	sum := Summary{ByFunc: make(map[history.Func]*FuncStats)}
	if len(ops) == 0 {
		return sum
	}
	sum.Duration = time.Duration(ops[len(ops)-1].Time - ops[0].Time)

	pending := make(map[int]history.Op)
	var latencies []time.Duration
	for _, op := range ops {
		if !op.IsClientOp() {
			continue
		}
		if op.Type == history.Invoke {
			pending[op.Process] = op
			continue
		}
		inv, open := pending[op.Process]
		if !open {
			continue
		}
		delete(pending, op.Process)

		stats := sum.ByFunc[op.Func]
		if stats == nil {
			stats = &FuncStats{}
			sum.ByFunc[op.Func] = stats
		}
		switch op.Type {
		case history.OK:
			stats.OK++
		case history.Fail:
			stats.Fail++
		case history.Info:
			stats.Info++
		}
		sum.Completed++
		latencies = append(latencies, time.Duration(op.Time-inv.Time))
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		sum.LatencyMin = latencies[0]
		sum.LatencyMax = latencies[len(latencies)-1]
		sum.LatencyMean = total / time.Duration(len(latencies))
		sum.LatencyP99 = latencies[len(latencies)*99/100]
	}
	if sum.Duration > 0 {
		sum.Throughput = float64(sum.Completed) / sum.Duration.Seconds()
	}
	return sum
}

// Render formats the summary and verdicts as the human-readable run
// report.
func Render(sum Summary, res checker.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "verdict: %s\n\n", res.Verdict)

	fmt.Fprintf(&b, "per-key verdicts:\n")
	for _, kr := range res.Keys {
		fmt.Fprintf(&b, "  key %d: %s\n", kr.Key, kr.Verdict)
		for _, op := range kr.Witness {
			fmt.Fprintf(&b, "    witness: %s\n", describeOp(op))
		}
	}

	fmt.Fprintf(&b, "\nperformance:\n")
	fmt.Fprintf(&b, "  duration:   %s\n", sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  completed:  %d ops (%.1f ops/s)\n", sum.Completed, sum.Throughput)
	fmt.Fprintf(&b, "  latency:    min %s / mean %s / p99 %s / max %s\n",
		sum.LatencyMin.Round(time.Microsecond), sum.LatencyMean.Round(time.Microsecond),
		sum.LatencyP99.Round(time.Microsecond), sum.LatencyMax.Round(time.Microsecond))
	funcs := make([]string, 0, len(sum.ByFunc))
	for f := range sum.ByFunc {
		funcs = append(funcs, string(f))
	}
	sort.Strings(funcs)
	for _, f := range funcs {
		s := sum.ByFunc[history.Func(f)]
		fmt.Fprintf(&b, "  %-6s ok %d / fail %d / info %d\n", f+":", s.OK, s.Fail, s.Info)
	}
	return b.String()
}

func describeOp(op history.Op) string {
	var arg string
	switch op.Func {
	case history.FuncRead:
		if op.Type != history.Invoke && op.Value != nil {
			arg = fmt.Sprintf(" -> %d", *op.Value)
		} else if op.Type != history.Invoke {
			arg = " -> nil"
		}
	case history.FuncWrite:
		if op.Value != nil {
			arg = fmt.Sprintf("(%d)", *op.Value)
		}
	case history.FuncCAS:
		if op.Old != nil && op.New != nil {
			arg = fmt.Sprintf("(%d, %d)", *op.Old, *op.New)
		}
	}
	return fmt.Sprintf("process %d %s %s%s key %d [index %d]",
		op.Process, op.Type, op.Func, arg, op.Key, op.Index)
}

// Write produces the run's artifacts under dir: the text report, the raw
// verdicts, and a per-key timeline visualization.
func Write(dir string, sum Summary, res checker.Result, ops []history.Op) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte(Render(sum, res)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := WriteTimeline(filepath.Join(dir, "timeline.html"), ops); err != nil {
		return fmt.Errorf("write timeline: %w", err)
	}
	return nil
}

package control

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/attest/internal/checker"
	"github.com/dreamware/attest/internal/cluster"
	"github.com/dreamware/attest/internal/history"
	"github.com/dreamware/attest/internal/lifecycle"
	"github.com/dreamware/attest/internal/nemesis"
	"github.com/dreamware/attest/internal/report"
	"github.com/dreamware/attest/internal/store"
	"github.com/dreamware/attest/internal/workload"
)

// ClientFactory creates and opens a client bound to one node. Every
// worker process gets its own client; clients are never shared.
type ClientFactory func(node cluster.Node) (store.Client, error)

// Deps are the run's collaborators. Zero values get production defaults
// where they exist: an HTTP client factory and a no-op lifecycle.
type Deps struct {
	NewClient   ClientFactory
	Partitioner nemesis.Partitioner
	Lifecycle   lifecycle.Lifecycle
}

// Result is everything a run produced: the verdicts, the performance
// summary, the raw history, and the errors of any workers that hit fatal
// adapter failures and aborted their remaining schedule.
type Result struct {
	Check   checker.Result
	Summary report.Summary
	History []history.Op
	Aborted []error
}

// Run executes a full test: start the cluster, drive the concurrent
// per-key workload with the fault scheduler interleaved, then check the
// recorded history and write the artifacts. Teardown (heal plus daemon
// stop) is guaranteed on all exit paths once setup succeeded.
func Run(ctx context.Context, cfg Config, deps Deps) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.NewClient == nil {
		deps.NewClient = func(node cluster.Node) (store.Client, error) {
			c := store.NewHTTPClient(cfg.RequestTimeout)
			if err := c.Open(node); err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = lifecycle.Nop{}
	}
	if deps.Partitioner == nil {
		return nil, fmt.Errorf("control: a partitioner is required")
	}

	if err := deps.Lifecycle.Setup(ctx); err != nil {
		return nil, fmt.Errorf("cluster setup: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := deps.Lifecycle.Teardown(tctx); err != nil {
			log.Printf("control: teardown: %v", err)
		}
	}()

	rec := history.NewRecorder()
	topo := cluster.NewTopology(cfg.Nodes)

	runCtx, cancelRun := context.WithTimeout(ctx, cfg.RunTime)
	defer cancelRun()

	// Fault schedule on its own clock; Run heals before returning
	sched := nemesis.NewScheduler(topo, deps.Partitioner, rec, cfg.CycleWait, cfg.Seed)
	var nemesisDone sync.WaitGroup
	nemesisDone.Add(1)
	go func() {
		defer nemesisDone.Done()
		sched.Run(runCtx)
	}()

	// One worker per (key, process); a fatal adapter error aborts only
	// the owning worker, so the group must not cancel siblings
	var (
		g         errgroup.Group
		abortedMu sync.Mutex
		aborted   []error
	)
	for k := 0; k < cfg.KeyCount; k++ {
		wl := workload.NewKeyWorkload(k, cfg.OpsPerKey, cfg.WorkersPerKey, cfg.MeanGap)
		for i := 0; i < cfg.WorkersPerKey; i++ {
			proc := k*cfg.WorkersPerKey + i
			node := cfg.Nodes[proc%len(cfg.Nodes)]
			g.Go(func() error {
				if err := runWorker(runCtx, proc, node, wl, deps.NewClient, rec); err != nil {
					log.Printf("control: %v", err)
					abortedMu.Lock()
					aborted = append(aborted, err)
					abortedMu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	// Workload is done (budget spent or time limit); stop the fault
	// cycle and wait for its guaranteed heal
	cancelRun()
	nemesisDone.Wait()
	if topo.Partitioned() {
		log.Printf("control: warning: topology still partitioned after nemesis shutdown")
	}

	ops := rec.Ops()
	if err := history.Validate(ops); err != nil {
		return nil, fmt.Errorf("recorded history is malformed: %w", err)
	}
	if cfg.HistoryFile != "" {
		if err := history.WriteFile(cfg.HistoryFile, ops); err != nil {
			return nil, err
		}
	}

	log.Printf("control: run complete, %d ops recorded, checking", len(ops))
	res := &Result{
		Check:   checker.Check(ops, checker.Options{Budget: cfg.CheckBudget}),
		Summary: report.Summarize(ops),
		History: ops,
		Aborted: aborted,
	}
	if cfg.ReportDir != "" {
		if err := report.Write(cfg.ReportDir, res.Summary, res.Check, ops); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// runWorker drives one process's schedule: pace, invoke, record, repeat
// until the key's budget is spent or the run is over. In-flight
// operations complete (or time out) normally past the run's end; the
// client's own response-wait bound keeps that finite.
func runWorker(runCtx context.Context, proc int, node cluster.Node, wl *workload.KeyWorkload, newClient ClientFactory, rec *history.Recorder) error {
	client, err := newClient(node)
	if err != nil {
		return fmt.Errorf("process %d: open client for %s: %w", proc, node, err)
	}
	defer client.Close()

	rng := rand.New(rand.NewSource(int64(proc)*2654435761 + 1))
	for {
		if err := wl.Pace(runCtx, rng); err != nil {
			return nil // run is over
		}
		op, ok := wl.Next(rng)
		if !ok {
			return nil // key's budget is spent
		}

		inv := rec.Invoke(proc, op)
		outcome, value, err := client.Invoke(context.Background(), inv)
		if err != nil {
			// Unclassifiable failure: the dangling invocation stays in
			// the history as indeterminate and this process stops
			return fmt.Errorf("process %d: %s key %d: %w", proc, op.Func, op.Key, err)
		}
		rec.Complete(inv, outcome, value)

		if runCtx.Err() != nil {
			return nil
		}
	}
}

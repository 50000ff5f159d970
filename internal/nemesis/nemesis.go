package nemesis

import (
	"context"
	"log"
	"math/rand"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/attest/internal/cluster"
	"github.com/dreamware/attest/internal/history"
)

// DefaultCycleWait is the pause between fault transitions: the scheduler
// waits, partitions, waits, heals, so one full cycle is twice this.
const DefaultCycleWait = 5 * time.Second

// Partitioner is the external fault-injection collaborator: a primitive
// that severs and restores bidirectional reachability between two node
// subsets. Heal must restore full connectivity regardless of how much of
// a previous Partition call succeeded.
type Partitioner interface {
	Partition(ctx context.Context, a, b []cluster.Node) error
	Heal(ctx context.Context) error
}

// Bipartition splits nodes into two random balanced halves.
func Bipartition(rng *rand.Rand, nodes []cluster.Node) (a, b []cluster.Node) {
	shuffled := slices.Clone(nodes)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	half := len(shuffled) / 2
	return shuffled[:half], shuffled[half:]
}

// Scheduler drives the fault cycle on its own clock, fully decoupled from
// the workload: wait, partition the cluster into random halves, wait,
// heal, repeating until the run context ends. Every transition is
// recorded into the shared history under the nemesis process so the
// checker's artifacts can correlate faults with anomalies.
//
// Fault application is itself fault-tolerant: a partially applied
// partition is logged, the topology still flips to partitioned, and the
// next stop (or the guaranteed final heal) restores connectivity.
type Scheduler struct {
	topo *cluster.Topology
	part Partitioner
	rec  *history.Recorder
	wait time.Duration
	rng  *rand.Rand
}

// NewScheduler creates a scheduler over the topology. A zero wait means
// DefaultCycleWait.
func NewScheduler(topo *cluster.Topology, part Partitioner, rec *history.Recorder, wait time.Duration, seed int64) *Scheduler {
	if wait <= 0 {
		wait = DefaultCycleWait
	}
	return &Scheduler{
		topo: topo,
		part: part,
		rec:  rec,
		wait: wait,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Run executes the fault cycle until ctx is done. Before returning it
// always heals any open partition, so the cluster is never left split by
// a normally-terminating run.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.finalHeal()
	for {
		if !sleep(ctx, s.wait) {
			return
		}
		s.startPartition(ctx)
		if !sleep(ctx, s.wait) {
			return
		}
		s.stopPartition(ctx)
	}
}

// startPartition severs a random balanced bipartition.
func (s *Scheduler) startPartition(ctx context.Context) {
	a, b := Bipartition(s.rng, s.topo.Nodes())
	s.rec.Invoke(history.NemesisProcess, history.Op{Func: history.FuncStartPartition})

	// Flip the topology even when injection partially fails: a partial
	// partition must be healed on the next stop, not forgotten.
	s.topo.SetPartition(a, b)

	outcome := history.OK
	if err := s.part.Partition(ctx, a, b); err != nil {
		log.Printf("nemesis: partition %v | %v failed: %v", a, b, err)
		outcome = history.Info
	} else {
		log.Printf("nemesis: partitioned %v | %v", a, b)
	}
	s.rec.Append(history.Op{Process: history.NemesisProcess, Func: history.FuncStartPartition, Type: outcome})
}

// stopPartition restores full connectivity.
func (s *Scheduler) stopPartition(ctx context.Context) {
	s.rec.Invoke(history.NemesisProcess, history.Op{Func: history.FuncStopPartition})

	outcome := history.OK
	if err := s.part.Heal(ctx); err != nil {
		log.Printf("nemesis: heal failed: %v", err)
		outcome = history.Info
	} else {
		s.topo.ClearPartition()
		log.Printf("nemesis: healed")
	}
	s.rec.Append(history.Op{Process: history.NemesisProcess, Func: history.FuncStopPartition, Type: outcome})
}

// finalHeal is the guaranteed teardown step: if the run ended with a
// partition open, restore connectivity with a fresh context before the
// scheduler returns.
func (s *Scheduler) finalHeal() {
	if !s.topo.Partitioned() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.stopPartition(ctx)
	if s.topo.Partitioned() {
		// Heal failed; make the retry visible rather than looping forever
		log.Printf("nemesis: final heal failed, cluster may still be partitioned")
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

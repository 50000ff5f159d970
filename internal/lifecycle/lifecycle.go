package lifecycle

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/dreamware/attest/internal/cluster"
)

// Lifecycle manages the store daemons on the cluster's nodes. The harness
// core only needs two guarantees from it: Setup leaves N reachable nodes
// at the conventional URLs before the run starts, and Teardown stops them
// afterwards. LogFiles names the per-node daemon logs worth collecting
// after a run.
type Lifecycle interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
	LogFiles() []string
}

// Runner executes a command on a node, redirecting output to logPath.
// Implementations are expected to track the spawned process (pid file or
// equivalent) so Stop can find it later.
type Runner interface {
	Start(ctx context.Context, node cluster.Node, logPath string, name string, args ...string) error
	Stop(ctx context.Context, node cluster.Node) error
}

// EtcdLifecycle starts one store daemon per node, each told its own name,
// peer URL, client URL and the full bootstrap string.
type EtcdLifecycle struct {
	Nodes   []cluster.Node
	Binary  string // path to the store binary on each node
	DataDir string // per-node data directory
	LogDir  string // per-node daemon log directory
	Runner  Runner
}

// Setup starts the daemon on every node. Nodes must be started with the
// same initial-cluster string or they will not form one cluster.
func (l *EtcdLifecycle) Setup(ctx context.Context) error {
	bootstrap := cluster.InitialCluster(l.Nodes)
	for _, n := range l.Nodes {
		args := []string{
			"--name", string(n),
			"--listen-peer-urls", cluster.PeerURL(n),
			"--initial-advertise-peer-urls", cluster.PeerURL(n),
			"--listen-client-urls", cluster.ClientURL(n),
			"--advertise-client-urls", cluster.ClientURL(n),
			"--initial-cluster", bootstrap,
			"--initial-cluster-state", "new",
			"--data-dir", filepath.Join(l.DataDir, string(n)),
		}
		if err := l.Runner.Start(ctx, n, l.logFile(n), l.Binary, args...); err != nil {
			return fmt.Errorf("start daemon on %s: %w", n, err)
		}
		log.Printf("lifecycle: started daemon on %s", n)
	}
	return nil
}

// Teardown stops every daemon, continuing past per-node failures so one
// stuck node doesn't leave the rest running.
func (l *EtcdLifecycle) Teardown(ctx context.Context) error {
	var firstErr error
	for _, n := range l.Nodes {
		if err := l.Runner.Stop(ctx, n); err != nil {
			log.Printf("lifecycle: stop daemon on %s: %v", n, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Printf("lifecycle: stopped daemon on %s", n)
	}
	return firstErr
}

// LogFiles returns the daemon log path for every node.
func (l *EtcdLifecycle) LogFiles() []string {
	files := make([]string, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		files = append(files, l.logFile(n))
	}
	return files
}

func (l *EtcdLifecycle) logFile(n cluster.Node) string {
	return filepath.Join(l.LogDir, string(n)+".log")
}

// Nop is a Lifecycle for clusters managed outside the harness (already
// running, or in-process fakes in tests).
type Nop struct{}

func (Nop) Setup(context.Context) error    { return nil }
func (Nop) Teardown(context.Context) error { return nil }
func (Nop) LogFiles() []string             { return nil }

package nemesis

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dreamware/attest/internal/cluster"
)

// ExecPartitioner injects faults by shelling out to operator-supplied
// commands, typically scripts that drive iptables or a network namespace
// on the test hosts. The partition command is invoked with two extra
// arguments, the comma-joined node lists of each side; the heal command
// runs as given.
type ExecPartitioner struct {
	PartitionCmd string
	HealCmd      string
}

// Partition runs the partition command against the two sides.
func (p *ExecPartitioner) Partition(ctx context.Context, a, b []cluster.Node) error {
	return runCmd(ctx, p.PartitionCmd, joinNodes(a), joinNodes(b))
}

// Heal runs the heal command.
func (p *ExecPartitioner) Heal(ctx context.Context) error {
	return runCmd(ctx, p.HealCmd)
}

func runCmd(ctx context.Context, command string, extra ...string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("nemesis: empty command")
	}
	args := append(fields[1:], extra...)
	out, err := exec.CommandContext(ctx, fields[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("nemesis: %s: %w (%s)", fields[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func joinNodes(nodes []cluster.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = string(n)
	}
	return strings.Join(names, ",")
}

package cluster

import (
	"fmt"
	"strings"
)

// Fixed port conventions for the store under test. Every node serves its
// peer (raft) traffic and its client traffic on the same well-known ports.
const (
	PeerPort   = 2380
	ClientPort = 2379
)

// Node identifies one member of the cluster under test. The name doubles as
// the host the node is reachable at, matching how the store derives member
// names from hostnames.
type Node string

// PeerURL returns the HTTP endpoint the node's peers connect to.
func PeerURL(n Node) string {
	return fmt.Sprintf("http://%s:%d", n, PeerPort)
}

// ClientURL returns the HTTP endpoint clients issue requests against.
func ClientURL(n Node) string {
	return fmt.Sprintf("http://%s:%d", n, ClientPort)
}

// InitialCluster builds the bootstrap string each node is started with:
// a comma-joined list of name=peerURL entries in the given node order.
// Order only affects reproducibility of the string, not cluster semantics.
func InitialCluster(nodes []Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		parts = append(parts, fmt.Sprintf("%s=%s", n, PeerURL(n)))
	}
	return strings.Join(parts, ",")
}

package checker

import (
	"sort"
	"time"

	"github.com/dreamware/attest/internal/history"
)

// pairedOp is one client operation seen as a whole: its invocation, its
// outcome, and the real-time interval between them. Operations promoted
// from indeterminate completions have their interval extended to the end
// of the history (ret = maxTime).
type pairedOp struct {
	inv  history.Op
	out  Outcome
	call int64
	ret  int64
}

const maxTime = int64(^uint64(0) >> 1)

type entryKind bool

const (
	callEntry   entryKind = false
	returnEntry entryKind = true
)

// entry is one endpoint of an operation's interval.
type entry struct {
	kind entryKind
	id   uint
	time int64
}

// byInterval orders entries by time; at equal times, returns sort before
// calls so that touching intervals still count as non-overlapping.
type byInterval []entry

func (a byInterval) Len() int      { return len(a) }
func (a byInterval) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a byInterval) Less(i, j int) bool {
	if a[i].time != a[j].time {
		return a[i].time < a[j].time
	}
	return a[i].kind == returnEntry && a[j].kind == callEntry
}

// listNode is an element of the doubly linked entry list the search walks.
// Call nodes carry a match pointer to their return node; return nodes
// have a nil match.
type listNode struct {
	id    uint
	match *listNode
	next  *listNode
	prev  *listNode
}

func insertBefore(n, mark *listNode) *listNode {
	if mark != nil {
		before := mark.prev
		mark.prev = n
		n.next = mark
		if before != nil {
			n.prev = before
			before.next = n
		}
	}
	return n
}

// buildEntryList lays the operations' interval endpoints out as a linked
// list in real-time order.
func buildEntryList(ops []pairedOp) *listNode {
	entries := make([]entry, 0, 2*len(ops))
	for i, op := range ops {
		entries = append(entries, entry{callEntry, uint(i), op.call})
		entries = append(entries, entry{returnEntry, uint(i), op.ret})
	}
	sort.Sort(byInterval(entries))

	var root *listNode
	match := make(map[uint]*listNode)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		var n *listNode
		if e.kind == returnEntry {
			n = &listNode{id: e.id}
			match[e.id] = n
		} else {
			n = &listNode{id: e.id, match: match[e.id]}
		}
		insertBefore(n, root)
		root = n
	}
	return root
}

// lift removes a linearized operation's endpoints from the list.
func lift(n *listNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	m := n.match
	m.prev.next = m.next
	if m.next != nil {
		m.next.prev = m.prev
	}
}

// unlift restores an operation's endpoints on backtrack.
func unlift(n *listNode) {
	m := n.match
	m.prev.next = m
	if m.next != nil {
		m.next.prev = m
	}
	n.prev.next = n
	n.next.prev = n
}

type cacheEntry struct {
	linearized bitset
	state      State
}

func cacheContains(m Model, cache map[uint64][]cacheEntry, ce cacheEntry) bool {
	for _, existing := range cache[ce.linearized.hash()] {
		if ce.linearized.equals(existing.linearized) && m.Equal(ce.state, existing.state) {
			return true
		}
	}
	return false
}

type searchVerdict int

const (
	searchOK searchVerdict = iota
	searchIllegal
	searchDeadline
)

type searchFrame struct {
	node  *listNode
	state State
}

// searchLinearization decides whether ops admit a legal total order
// consistent with their real-time intervals: a depth-first search over
// candidate linearization points with a seen-state cache, backtracking
// whenever the next unlinearized operation's return is reached without a
// legal step. Worst case is exponential; the deadline turns an unfinished
// search into searchDeadline rather than a wrong answer.
func searchLinearization(m Model, ops []pairedOp, deadline time.Time) searchVerdict {
	if len(ops) == 0 {
		return searchOK
	}

	linearized := newBitset(uint(len(ops)))
	cache := make(map[uint64][]cacheEntry)
	var stack []searchFrame

	state := m.Init()
	root := buildEntryList(ops)
	head := insertBefore(&listNode{id: ^uint(0)}, root)
	cur := root

	steps := 0
	for head.next != nil {
		steps++
		if steps&1023 == 0 && !deadline.IsZero() && time.Now().After(deadline) {
			return searchDeadline
		}
		if cur.match != nil {
			// Call entry: try to linearize this operation here
			op := ops[cur.id]
			ok, next := m.Step(state, op.inv, op.out)
			if ok {
				newLinearized := linearized.clone().set(cur.id)
				ce := cacheEntry{newLinearized, next}
				if !cacheContains(m, cache, ce) {
					cache[newLinearized.hash()] = append(cache[newLinearized.hash()], ce)
					stack = append(stack, searchFrame{cur, state})
					state = next
					linearized.set(cur.id)
					lift(cur)
					cur = head.next
					continue
				}
			}
			cur = cur.next
		} else {
			// Return entry: every remaining choice at this depth is
			// exhausted, so backtrack
			if len(stack) == 0 {
				return searchIllegal
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cur = top.node
			state = top.state
			linearized.clear(cur.id)
			unlift(cur)
			cur = cur.next
		}
	}
	return searchOK
}

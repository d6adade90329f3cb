package flowlive

import (
	"strconv"
	"strings"
)

// RootBranch is the branch id of the path leaving the start node.
const RootBranch = "0"

// PathEnd records why a BranchPath stopped.
type PathEnd int

const (
	// EndReached means the path arrived at an end node.
	EndReached PathEnd = iota
	// EndLoop means the path came back to a node it had already visited.
	EndLoop
	// EndDeadEnd means the path ran out of outgoing edges before an end node.
	EndDeadEnd
)

// Complete reports whether a path with this ending counts as finished.
func (p PathEnd) Complete() bool { return p != EndDeadEnd }

// String returns a readable name.
func (p PathEnd) String() string {
	switch p {
	case EndReached:
		return "end"
	case EndLoop:
		return "loop"
	case EndDeadEnd:
		return "dead_end"
	default:
		return "unknown"
	}
}

// BranchStep is one node on a path together with the branch id it was
// reached on.
type BranchStep struct {
	BranchID string
	NodeID   string
}

// BranchPath is one root-to-leaf traversal from the start node.
type BranchPath struct {
	Steps []BranchStep
	End   PathEnd
}

// Last returns the final step of the path.
func (p BranchPath) Last() BranchStep {
	return p.Steps[len(p.Steps)-1]
}

// BranchTrace is the result of tracing every path from the start node.
type BranchTrace struct {
	Paths []BranchPath

	// forks maps a branch id to the node whose outgoing edges extend it
	// with one more segment.
	forks map[string]string
}

// ForkAt returns the node at which branchID splits into sub-branches.
func (t BranchTrace) ForkAt(branchID string) (string, bool) {
	id, ok := t.forks[branchID]
	return id, ok
}

// Visited returns the set of node ids that appear on any path.
func (t BranchTrace) Visited() map[string]bool {
	seen := make(map[string]bool)
	for _, p := range t.Paths {
		for _, s := range p.Steps {
			seen[s.NodeID] = true
		}
	}
	return seen
}

// TraceBranches walks the graph depth-first from start, following outgoing
// edges in stored order. A node with more than one outgoing edge is a fork:
// the i-th edge extends the branch id with "_i". A path ends at an end
// node, on returning to a node already on the same path, or when it runs
// out of edges. More than maxPaths paths yields ErrTooManyPaths.
func (g *Graph) TraceBranches(start string, maxPaths int) (BranchTrace, error) {
	t := &tracer{
		g:        g,
		maxPaths: maxPaths,
		onPath:   make(map[string]int),
		trace:    BranchTrace{forks: make(map[string]string)},
	}
	if !g.HasNode(start) {
		return t.trace, ErrNodeNotFound
	}
	if err := t.walk(start, RootBranch); err != nil {
		return t.trace, err
	}
	return t.trace, nil
}

type tracer struct {
	g        *Graph
	maxPaths int
	steps    []BranchStep
	onPath   map[string]int
	trace    BranchTrace
}

func (t *tracer) emit(end PathEnd) error {
	if t.maxPaths > 0 && len(t.trace.Paths) >= t.maxPaths {
		return ErrTooManyPaths
	}
	steps := make([]BranchStep, len(t.steps))
	copy(steps, t.steps)
	t.trace.Paths = append(t.trace.Paths, BranchPath{Steps: steps, End: end})
	return nil
}

func (t *tracer) walk(nodeID, branch string) error {
	t.steps = append(t.steps, BranchStep{BranchID: branch, NodeID: nodeID})
	t.onPath[nodeID]++
	defer func() {
		t.steps = t.steps[:len(t.steps)-1]
		if t.onPath[nodeID]--; t.onPath[nodeID] == 0 {
			delete(t.onPath, nodeID)
		}
	}()

	if t.g.nodeType(nodeID) == NodeEnd {
		return t.emit(EndReached)
	}

	out := t.g.out[nodeID]
	if len(out) == 0 {
		return t.emit(EndDeadEnd)
	}
	if len(out) > 1 {
		t.trace.forks[branch] = nodeID
	}

	for i, pos := range out {
		next := branch
		if len(out) > 1 {
			next = branch + "_" + strconv.Itoa(i)
		}
		target := t.g.edges[pos].Target
		if t.onPath[target] > 0 {
			if err := t.emit(EndLoop); err != nil {
				return err
			}
			continue
		}
		if err := t.walk(target, next); err != nil {
			return err
		}
	}
	return nil
}

// branchSegments splits a branch id into its segments.
func branchSegments(id string) []string {
	return strings.Split(id, "_")
}

// onSameLine reports whether one branch id is a segment prefix of the
// other, meaning both occurrences lie on a single root-to-leaf line.
func onSameLine(a, b string) bool {
	as, bs := branchSegments(a), branchSegments(b)
	if len(as) > len(bs) {
		as, bs = bs, as
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// divergence returns the longest common branch id of a and b and the
// segment each takes right after it. ok is false when they are on the
// same line.
func divergence(a, b string) (common string, ai, bi int, ok bool) {
	as, bs := branchSegments(a), branchSegments(b)
	n := min(len(as), len(bs))
	for i := 0; i < n; i++ {
		if as[i] == bs[i] {
			continue
		}
		if i == 0 {
			return "", 0, 0, false
		}
		x, errA := strconv.Atoi(as[i])
		y, errB := strconv.Atoi(bs[i])
		if errA != nil || errB != nil {
			return "", 0, 0, false
		}
		return strings.Join(as[:i], "_"), x, y, true
	}
	return "", 0, 0, false
}

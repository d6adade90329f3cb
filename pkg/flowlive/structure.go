package flowlive

// checkStructure runs the structural checks in order. The start checks
// short-circuit; the remaining checks all report.
func checkStructure(g *Graph, cfg checkConfig) []Issue {
	starts := g.StartNodes()
	if len(starts) != 1 {
		return []Issue{{Kind: IssueStartCount, Message: MsgStartCount, NodeIDs: starts}}
	}
	start := starts[0]

	if g.EdgeCount() == 0 {
		return []Issue{{Kind: IssueNoConnections, Message: MsgNoConnections, NodeIDs: []string{start}}}
	}
	if len(g.out[start]) == 0 {
		return []Issue{{Kind: IssueStartNotLinked, Message: MsgStartNotLinked, NodeIDs: []string{start}}}
	}

	var issues []Issue
	if len(g.in[start]) > 0 {
		issues = append(issues, Issue{Kind: IssueStartInbound, Message: MsgStartInbound, NodeIDs: []string{start}})
	}
	// Coverage, conflicts and completeness need the full trace. Condition
	// handles do not.
	if trace, err := g.TraceBranches(start, cfg.maxPaths); err != nil {
		issues = append(issues, Issue{Kind: IssueTooComplex, Message: MsgTooComplex})
	} else {
		issues = append(issues, checkCoverage(g, start, trace)...)
		issues = append(issues, checkParallel(g, trace, cfg)...)
		issues = append(issues, checkCompleteness(trace)...)
	}
	issues = append(issues, checkConditions(g, cfg)...)
	return issues
}

func checkCoverage(g *Graph, start string, trace BranchTrace) []Issue {
	visited := trace.Visited()
	var issues []Issue
	for _, n := range g.nodes {
		if n.ID == start || visited[n.ID] {
			continue
		}
		issues = append(issues, Issue{Kind: IssueUnconnectedNode, Message: MsgUnconnectedNode, NodeIDs: []string{n.ID}})
	}
	return issues
}

type occurrence struct {
	nodeID   string
	branchID string
}

// checkParallel reports pairs of exclusive nodes that sit on sibling
// branches of a parallel fork.
func checkParallel(g *Graph, trace BranchTrace, cfg checkConfig) []Issue {
	var occs []occurrence
	seen := make(map[occurrence]bool)
	for _, p := range trace.Paths {
		for _, s := range p.Steps {
			if !cfg.exclusive[g.nodeType(s.NodeID)] {
				continue
			}
			o := occurrence{nodeID: s.NodeID, branchID: s.BranchID}
			if !seen[o] {
				seen[o] = true
				occs = append(occs, o)
			}
		}
	}

	type pair struct{ a, b string }
	reported := make(map[pair]bool)
	var issues []Issue
	for i := range occs {
		for j := i + 1; j < len(occs); j++ {
			a, b := occs[i], occs[j]
			if a.nodeID == b.nodeID {
				continue
			}
			key := pair{a.nodeID, b.nodeID}
			if a.nodeID > b.nodeID {
				key = pair{b.nodeID, a.nodeID}
			}
			if reported[key] || !parallelSiblings(g, trace, cfg, a.branchID, b.branchID) {
				continue
			}
			reported[key] = true
			issues = append(issues, Issue{
				Kind:    IssueParallelConflict,
				Message: MsgParallelConflict,
				NodeIDs: []string{a.nodeID, b.nodeID},
			})
		}
	}
	return issues
}

// parallelSiblings reports whether branches a and b split at a fork whose
// two diverging edges both fire.
func parallelSiblings(g *Graph, trace BranchTrace, cfg checkConfig, a, b string) bool {
	if onSameLine(a, b) {
		return false
	}
	common, ai, bi, ok := divergence(a, b)
	if !ok {
		return false
	}
	forkID, ok := trace.ForkAt(common)
	if !ok {
		return false
	}
	if !cfg.exclusiveFor[g.nodeType(forkID)] {
		return true
	}
	if g.nodeType(forkID) != NodeCondition {
		return false
	}
	out := g.out[forkID]
	if ai >= len(out) || bi >= len(out) {
		return false
	}
	return g.edges[out[ai]].SourceHandle == g.edges[out[bi]].SourceHandle
}

func checkCompleteness(trace BranchTrace) []Issue {
	flagged := make(map[string]bool)
	var issues []Issue
	for _, p := range trace.Paths {
		if p.End.Complete() {
			continue
		}
		last := p.Last().NodeID
		if flagged[last] {
			continue
		}
		flagged[last] = true
		issues = append(issues, Issue{Kind: IssueMissingEnd, Message: MsgMissingEnd, NodeIDs: []string{last}})
	}
	return issues
}

// conditionHandles returns the output handles a condition node must
// connect, in declaration order.
func conditionHandles(n Node, implicitElse bool) []string {
	handles := make([]string, 0, len(n.Ports.Outputs)+1)
	hasElse := false
	for _, h := range n.Ports.Outputs {
		if h == ElseHandle {
			hasElse = true
		}
		handles = append(handles, h)
	}
	if implicitElse && !hasElse {
		handles = append(handles, ElseHandle)
	}
	return handles
}

func checkConditions(g *Graph, cfg checkConfig) []Issue {
	var issues []Issue
	for _, n := range g.nodes {
		if n.Type != NodeCondition {
			continue
		}
		counts := make(map[string]int)
		for _, pos := range g.out[n.ID] {
			counts[g.edges[pos].SourceHandle]++
		}
		var unconnected, duplicate bool
		for _, h := range conditionHandles(n, cfg.implicitElse) {
			switch c := counts[h]; {
			case c == 0:
				unconnected = true
			case c > 1:
				duplicate = true
			}
		}
		if unconnected {
			issues = append(issues, Issue{Kind: IssueConditionUnconnected, Message: MsgConditionUnconnected, NodeIDs: []string{n.ID}})
		}
		if duplicate {
			issues = append(issues, Issue{Kind: IssueConditionDuplicate, Message: MsgConditionDuplicate, NodeIDs: []string{n.ID}})
		}
	}
	return issues
}

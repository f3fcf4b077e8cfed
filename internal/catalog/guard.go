package catalog

// WouldCreateCycle reports whether recording "fromID requires candidateID"
// would close a cycle in g. A self edge is always a cycle. Unknown ids never
// form a cycle. The walk follows prerequisite edges from candidateID with an
// explicit stack and a visited set, so it terminates even on a graph that
// already contains a cycle.
func WouldCreateCycle(g Graph, fromID, candidateID string) bool {
	if fromID == candidateID {
		return true
	}
	if g == nil || !g.HasCourse(fromID) || !g.HasCourse(candidateID) {
		return false
	}

	visited := map[string]struct{}{candidateID: {}}
	stack := []string{candidateID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.Prerequisites(current) {
			if next == fromID {
				return true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return false
}

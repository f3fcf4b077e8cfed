package catalog

import "sort"

// Graph is a read-only view over the prerequisite relation.
type Graph interface {
	HasCourse(id string) bool
	Prerequisites(id string) []string
}

// Adjacency stores the prerequisite relation as two independent id sets per
// course: the forward prerequisites and the derived dependents. Every mutation
// goes through AddEdge, RemoveEdge, or RemoveCourse so both sides stay in lockstep.
//
// Adjacency is not safe for concurrent use; the owning store serialises access.
type Adjacency struct {
	prereqs    map[string]map[string]struct{}
	dependents map[string]map[string]struct{}
}

// NewAdjacency returns an empty adjacency.
func NewAdjacency() *Adjacency {
	return &Adjacency{
		prereqs:    make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
	}
}

// AddCourse registers a course id without edges. Adding an existing id is a no-op.
func (a *Adjacency) AddCourse(id string) {
	if _, ok := a.prereqs[id]; ok {
		return
	}
	a.prereqs[id] = make(map[string]struct{})
	a.dependents[id] = make(map[string]struct{})
}

// HasCourse reports whether id is registered.
func (a *Adjacency) HasCourse(id string) bool {
	_, ok := a.prereqs[id]
	return ok
}

// HasEdge reports whether courseID lists prereqID as a prerequisite.
func (a *Adjacency) HasEdge(courseID, prereqID string) bool {
	set, ok := a.prereqs[courseID]
	if !ok {
		return false
	}
	_, ok = set[prereqID]
	return ok
}

// AddEdge records that courseID requires prereqID. It reports false when either
// course is unknown or the edge is a self edge. Cycle checks are the caller's job.
func (a *Adjacency) AddEdge(courseID, prereqID string) bool {
	if courseID == prereqID || !a.HasCourse(courseID) || !a.HasCourse(prereqID) {
		return false
	}
	a.prereqs[courseID][prereqID] = struct{}{}
	a.dependents[prereqID][courseID] = struct{}{}
	return true
}

// RemoveEdge drops the edge courseID -> prereqID and reports whether it existed.
func (a *Adjacency) RemoveEdge(courseID, prereqID string) bool {
	if !a.HasEdge(courseID, prereqID) {
		return false
	}
	delete(a.prereqs[courseID], prereqID)
	delete(a.dependents[prereqID], courseID)
	return true
}

// RemoveCourse drops a course and its own prerequisite edges. It reports false
// when the course is unknown or still has dependents.
func (a *Adjacency) RemoveCourse(id string) bool {
	if !a.HasCourse(id) || len(a.dependents[id]) > 0 {
		return false
	}
	for prereqID := range a.prereqs[id] {
		delete(a.dependents[prereqID], id)
	}
	delete(a.prereqs, id)
	delete(a.dependents, id)
	return true
}

// Prerequisites returns the sorted prerequisite ids of a course.
func (a *Adjacency) Prerequisites(id string) []string {
	return sortedKeys(a.prereqs[id])
}

// Dependents returns the sorted ids of courses requiring id.
func (a *Adjacency) Dependents(id string) []string {
	return sortedKeys(a.dependents[id])
}

// Clone returns a deep copy.
func (a *Adjacency) Clone() *Adjacency {
	out := &Adjacency{
		prereqs:    make(map[string]map[string]struct{}, len(a.prereqs)),
		dependents: make(map[string]map[string]struct{}, len(a.dependents)),
	}
	for id, set := range a.prereqs {
		out.prereqs[id] = cloneSet(set)
	}
	for id, set := range a.dependents {
		out.dependents[id] = cloneSet(set)
	}
	return out
}

// EdgeSet is a Graph built from a flat edge list, as loaded from the database.
type EdgeSet struct {
	courses map[string]struct{}
	prereqs map[string][]string
}

// NewEdgeSet indexes the given course ids and edges.
func NewEdgeSet(courseIDs []string, edges [][2]string) *EdgeSet {
	es := &EdgeSet{
		courses: make(map[string]struct{}, len(courseIDs)),
		prereqs: make(map[string][]string),
	}
	for _, id := range courseIDs {
		es.courses[id] = struct{}{}
	}
	for _, e := range edges {
		es.prereqs[e[0]] = append(es.prereqs[e[0]], e[1])
	}
	return es
}

// HasCourse implements Graph.
func (e *EdgeSet) HasCourse(id string) bool {
	_, ok := e.courses[id]
	return ok
}

// Prerequisites implements Graph.
func (e *EdgeSet) Prerequisites(id string) []string {
	return e.prereqs[id]
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

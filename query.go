package isg

import (
	"sort"
	"time"
)

// GetNode returns a copy of the record stored under fp.
func (g *Graph) GetNode(fp Fingerprint) (EntityRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.store.lookup(fp)
	if !ok {
		return EntityRecord{}, nodeNotFound(fp)
	}
	return g.store.record(id), nil
}

// FindByName returns the fingerprints of every node currently named name.
// An unknown name yields an empty set, not an error.
func (g *Graph) FindByName(name string) FingerprintSet {
	start := time.Now()
	g.mu.RLock()
	set := g.store.byName[name]
	out := make(FingerprintSet, len(set))
	for fp := range set {
		out[fp] = struct{}{}
	}
	g.mu.RUnlock()

	recordQueryMetrics("find_by_name", start, len(out))
	return out
}

// FindByFile returns the fingerprints of every node whose record lives in path.
func (g *Graph) FindByFile(path string) FingerprintSet {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := g.store.byFile[path]
	out := make(FingerprintSet, len(set))
	for fp := range set {
		out[fp] = struct{}{}
	}
	return out
}

// Files returns every non-empty file path that has at least one node, sorted.
func (g *Graph) Files() []string {
	g.mu.RLock()
	out := make([]string, 0, len(g.store.byFile))
	for path := range g.store.byFile {
		if path != "" {
			out = append(out, path)
		}
	}
	g.mu.RUnlock()

	sort.Strings(out)
	return out
}

// FindImplementors returns the nodes with an Implements edge into traitFP.
func (g *Graph) FindImplementors(traitFP Fingerprint) ([]EntityRecord, error) {
	return g.incoming("find_implementors", traitFP, RelationImplements)
}

// FindCallers returns the nodes with a Calls edge into targetFP.
func (g *Graph) FindCallers(targetFP Fingerprint) ([]EntityRecord, error) {
	return g.incoming("find_callers", targetFP, RelationCalls)
}

// FindUsers returns the nodes with a Uses edge into targetFP.
func (g *Graph) FindUsers(targetFP Fingerprint) ([]EntityRecord, error) {
	return g.incoming("find_users", targetFP, RelationUses)
}

// FindCallees returns the nodes sourceFP has a Calls edge to.
func (g *Graph) FindCallees(sourceFP Fingerprint) ([]EntityRecord, error) {
	start := time.Now()
	g.mu.RLock()
	id, ok := g.store.lookup(sourceFP)
	if !ok {
		g.mu.RUnlock()
		return nil, nodeNotFound(sourceFP)
	}
	var out []EntityRecord
	for _, to := range g.store.slots[id.index].out {
		if g.store.edges[edgeKey{from: id, to: to}] == RelationCalls {
			out = append(out, g.store.record(to))
		}
	}
	g.mu.RUnlock()

	sortRecords(out)
	recordQueryMetrics("find_callees", start, len(out))
	return out, nil
}

// incoming collects the sources of kind-typed edges into target. Results are
// copied under the read lock and sorted after it is released.
func (g *Graph) incoming(queryType string, target Fingerprint, kind RelationKind) ([]EntityRecord, error) {
	start := time.Now()
	g.mu.RLock()
	id, ok := g.store.lookup(target)
	if !ok {
		g.mu.RUnlock()
		return nil, nodeNotFound(target)
	}
	var out []EntityRecord
	for _, from := range g.store.slots[id.index].in {
		if g.store.edges[edgeKey{from: from, to: id}] == kind {
			out = append(out, g.store.record(from))
		}
	}
	g.mu.RUnlock()

	sortRecords(out)
	recordQueryMetrics(queryType, start, len(out))
	return out, nil
}

// CalculateBlastRadius returns every node transitively reachable from
// startFP along outgoing edges of any kind: the entities impacted by a change
// to startFP. The start node itself is never part of the result, even when a
// cycle leads back to it.
func (g *Graph) CalculateBlastRadius(startFP Fingerprint) (FingerprintSet, error) {
	start := time.Now()
	g.mu.RLock()
	root, ok := g.store.lookup(startFP)
	if !ok {
		g.mu.RUnlock()
		return nil, nodeNotFound(startFP)
	}

	visited := map[nodeID]struct{}{root: {}}
	queue := []nodeID{root}
	out := make(FingerprintSet)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.store.slots[cur.index].out {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			out[g.store.record(next).Fingerprint] = struct{}{}
			queue = append(queue, next)
		}
	}
	g.mu.RUnlock()

	recordQueryMetrics("blast_radius", start, len(out))
	return out, nil
}

// outgoing lists the edges leaving fp, or nil when fp is unknown.
func (g *Graph) outgoing(fp Fingerprint) []Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.store.lookup(fp)
	if !ok {
		return nil
	}
	out := make([]Relation, 0, len(g.store.slots[id.index].out))
	for _, to := range g.store.slots[id.index].out {
		out = append(out, Relation{
			From: fp,
			To:   g.store.record(to).Fingerprint,
			Kind: g.store.edges[edgeKey{from: id, to: to}],
		})
	}
	return out
}

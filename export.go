package isg

import (
	"fmt"
	"sort"
	"time"
)

// Export enumerates every node and edge under a single read-lock
// acquisition. Nodes are ordered by fingerprint and edges by (from, to), so
// two exports of the same graph are byte-identical once serialized.
func (g *Graph) Export() Snapshot {
	start := time.Now()
	g.mu.RLock()
	snap := Snapshot{
		Nodes: make([]EntityRecord, 0, g.store.nodeCount()),
		Edges: make([]Relation, 0, g.store.edgeCount()),
	}
	for i := range g.store.slots {
		if g.store.slots[i].live {
			snap.Nodes = append(snap.Nodes, g.store.slots[i].record)
		}
	}
	for key, kind := range g.store.edges {
		snap.Edges = append(snap.Edges, Relation{
			From: g.store.record(key.from).Fingerprint,
			To:   g.store.record(key.to).Fingerprint,
			Kind: kind,
		})
	}
	g.mu.RUnlock()

	sort.Slice(snap.Nodes, func(i, j int) bool {
		return snap.Nodes[i].Fingerprint < snap.Nodes[j].Fingerprint
	})
	sort.Slice(snap.Edges, func(i, j int) bool {
		a, b := snap.Edges[i], snap.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	recordQueryMetrics("export", start, len(snap.Nodes))
	return snap
}

// Restore replays a snapshot as upserts: all nodes first, then all edges.
// The snapshot's own ordering does not matter. Restoring into a non-empty
// graph merges, with the snapshot winning on conflicts.
func (g *Graph) Restore(snap Snapshot) error {
	for _, rec := range snap.Nodes {
		g.UpsertNode(rec)
	}
	for _, e := range snap.Edges {
		if err := g.UpsertEdge(e.From, e.To, e.Kind); err != nil {
			return fmt.Errorf("restore edge %s->%s: %w", e.From, e.To, err)
		}
	}
	return nil
}

package isg

import (
	"log/slog"
	"time"
)

// UpsertNode inserts rec, or replaces the payload of the node that already
// carries rec.Fingerprint. On replacement the name and file indices move to
// the new values; edges attached to the node are left as they are.
// Upserting the same record twice is a no-op the second time.
func (g *Graph) UpsertNode(rec EntityRecord) {
	start := time.Now()
	g.mu.Lock()
	_, created := g.store.upsert(rec)
	g.mu.Unlock()
	recordMutationMetrics("upsert_node", start)

	if created {
		g.logger.Debug("node inserted",
			slog.String("fingerprint", rec.Fingerprint.String()),
			slog.String("name", rec.Name),
			slog.String("kind", rec.Kind.String()),
		)
	}
}

// UpsertEdge records a from→to relation of the given kind. Both endpoints
// must already be nodes; from is checked first. There is at most one edge
// per ordered pair: if one exists its kind is overwritten (last write wins),
// so a pair re-ingested as Calls after being Uses becomes Calls.
func (g *Graph) UpsertEdge(from, to Fingerprint, kind RelationKind) error {
	start := time.Now()
	defer recordMutationMetrics("upsert_edge", start)

	g.mu.Lock()
	defer g.mu.Unlock()

	fromID, ok := g.store.lookup(from)
	if !ok {
		return nodeNotFound(from)
	}
	toID, ok := g.store.lookup(to)
	if !ok {
		return nodeNotFound(to)
	}
	g.store.link(fromID, toID, kind)
	return nil
}

// RemoveEdge deletes the from→to relation, whatever its kind. It reports
// whether an edge existed. Endpoint checks match UpsertEdge.
func (g *Graph) RemoveEdge(from, to Fingerprint) (bool, error) {
	start := time.Now()
	defer recordMutationMetrics("remove_edge", start)

	g.mu.Lock()
	defer g.mu.Unlock()

	fromID, ok := g.store.lookup(from)
	if !ok {
		return false, nodeNotFound(from)
	}
	toID, ok := g.store.lookup(to)
	if !ok {
		return false, nodeNotFound(to)
	}
	return g.store.unlink(fromID, toID), nil
}

// RemoveNode deletes a node together with every edge that touches it. The
// node's slot is tombstoned; handles to other nodes stay valid.
func (g *Graph) RemoveNode(fp Fingerprint) error {
	start := time.Now()
	defer recordMutationMetrics("remove_node", start)

	g.mu.Lock()
	id, ok := g.store.lookup(fp)
	if !ok {
		g.mu.Unlock()
		return nodeNotFound(fp)
	}
	g.store.remove(id)
	g.mu.Unlock()

	g.logger.Debug("node removed", slog.String("fingerprint", fp.String()))
	return nil
}

// RetractFile removes every node whose record lives in path and returns
// their fingerprints in ascending order. An unknown path removes nothing.
func (g *Graph) RetractFile(path string) []Fingerprint {
	start := time.Now()
	defer recordMutationMetrics("retract_file", start)

	g.mu.Lock()
	set := g.store.byFile[path]
	removed := make(FingerprintSet, len(set))
	for fp := range set {
		removed[fp] = struct{}{}
	}
	for fp := range removed {
		if id, ok := g.store.lookup(fp); ok {
			g.store.remove(id)
		}
	}
	g.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}
	g.logger.Debug("file retracted", slog.String("path", path), slog.Int("nodes", len(removed)))
	return removed.Sorted()
}

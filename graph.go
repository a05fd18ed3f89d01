package isg

import (
	"log/slog"
	"sync"

	"github.com/jward/isg/internal/logging"
)

// Graph is the shared handle to one Interface Signature Graph. A single
// reader/writer lock guards the node arena, the edges and every index as one
// consistency unit: readers run concurrently, a writer excludes everyone,
// and a reader that starts after a write completes sees all of it.
//
// Pass the same *Graph to every subsystem that needs it (ingestion, queries,
// scripting, export). Copying the pointer shares state; nothing copies the
// graph itself.
type Graph struct {
	mu    sync.RWMutex
	store *graphStore

	cycleKinds [len(relationKindNames)]bool
	logger     *slog.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithCycleKinds selects the relation kinds FindCycles follows. The default
// is Calls and Uses; pass RelationImplements as well to let trait edges close
// cycles.
func WithCycleKinds(kinds ...RelationKind) GraphOption {
	return func(g *Graph) {
		g.cycleKinds = [len(relationKindNames)]bool{}
		for _, k := range kinds {
			if int(k) < len(g.cycleKinds) {
				g.cycleKinds[k] = true
			}
		}
	}
}

// WithLogger sets the logger used for debug tracing of mutations.
func WithLogger(l *slog.Logger) GraphOption {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates an empty graph.
func New(opts ...GraphOption) *Graph {
	g := &Graph{
		store:  newGraphStore(),
		logger: logging.Discard(),
	}
	g.cycleKinds[RelationCalls] = true
	g.cycleKinds[RelationUses] = true
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NodeCount returns the number of entities in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.nodeCount()
}

// EdgeCount returns the number of relations in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.edgeCount()
}

// CycleKinds returns the relation kinds FindCycles follows.
func (g *Graph) CycleKinds() []RelationKind {
	var out []RelationKind
	for _, k := range AllRelationKinds {
		if g.cycleKinds[k] {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks that the fingerprint, name and file indices agree with the
// node arena and that every edge joins two live nodes.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.validate()
}

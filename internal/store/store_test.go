package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/isg"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleGraph(t *testing.T) *isg.Graph {
	t.Helper()
	g := isg.New()
	records := []isg.EntityRecord{
		{Kind: isg.KindTrait, Name: "Shape", Signature: "rust:src:trait Shape", FilePath: "src/lib.rs", Line: 1},
		{Kind: isg.KindStruct, Name: "Square", Signature: "rust:src:struct Square", FilePath: "src/lib.rs", Line: 5},
		{Kind: isg.KindFunction, Name: "area", Signature: "rust:src:function <Square as Shape>::area(&self) -> f64", FilePath: "src/lib.rs", Line: 10},
		// lands in the upper half of the uint64 range
		{Kind: isg.KindFunction, Name: "big", Signature: "big", FilePath: "src/big.rs", Line: 1, Fingerprint: 0xfedcba9876543210},
	}
	for _, r := range records {
		if r.Fingerprint == 0 {
			r.Fingerprint = isg.FromSignature(r.Signature)
		}
		g.UpsertNode(r)
	}
	shape := isg.FromSignature("rust:src:trait Shape")
	square := isg.FromSignature("rust:src:struct Square")
	area := isg.FromSignature("rust:src:function <Square as Shape>::area(&self) -> f64")
	require.NoError(t, g.UpsertEdge(square, shape, isg.RelationImplements))
	require.NoError(t, g.UpsertEdge(area, square, isg.RelationUses))
	require.NoError(t, g.UpsertEdge(0xfedcba9876543210, area, isg.RelationCalls))
	return g
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"nodes", "edges", "metadata"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	// Running migrate again should not error.
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestNewStore_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := NewStore("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

// =============================================================================
// Snapshots
// =============================================================================

func TestLoadSnapshot_Empty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	snap, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Nodes)
	assert.Empty(t, snap.Edges)
}

func TestSnapshot_RoundTripMatchesExport(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	want := sampleGraph(t).Export()

	require.NoError(t, s.SaveSnapshot(ctx, want))
	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	restored := isg.New()
	require.NoError(t, restored.Restore(got))
	assert.Equal(t, want, restored.Export())
	require.NoError(t, restored.Validate())
}

func TestSaveSnapshot_Replaces(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleGraph(t).Export()))

	small := isg.New()
	small.UpsertNode(isg.EntityRecord{Fingerprint: 7, Kind: isg.KindFunction, Name: "only", FilePath: "a.go"})
	require.NoError(t, s.SaveSnapshot(ctx, small.Export()))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "only", got.Nodes[0].Name)
	assert.Empty(t, got.Edges)
}

func TestSaveSnapshot_DanglingEdgeRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	good := sampleGraph(t).Export()
	require.NoError(t, s.SaveSnapshot(ctx, good))

	bad := isg.Snapshot{
		Nodes: []isg.EntityRecord{{Fingerprint: 1, Kind: isg.KindFunction, Name: "a"}},
		Edges: []isg.Relation{{From: 1, To: 2, Kind: isg.RelationCalls}},
	}
	require.Error(t, s.SaveSnapshot(ctx, bad))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, got)
}

// =============================================================================
// Metadata
// =============================================================================

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("root")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("root", "/src/a"))
	require.NoError(t, s.SetMetadata("root", "/src/b"))
	v, err = s.GetMetadata("root")
	require.NoError(t, err)
	assert.Equal(t, "/src/b", v)
}

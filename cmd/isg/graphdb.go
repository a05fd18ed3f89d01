package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jward/isg"
	"github.com/jward/isg/internal/store"
)

const (
	metaRoot      = "root"
	metaIndexedAt = "indexed_at"
)

// storedGraph is a graph loaded from the database plus its metadata.
type storedGraph struct {
	graph     *isg.Graph
	dbPath    string
	root      string
	indexedAt string
}

// saveGraph writes g's snapshot to dbPath, creating the directory and
// schema as needed.
func saveGraph(ctx context.Context, dbPath string, g *isg.Graph, root string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		return err
	}
	if err := s.SaveSnapshot(ctx, g.Export()); err != nil {
		return fmt.Errorf("saving graph: %w", err)
	}
	if err := s.SetMetadata(metaRoot, root); err != nil {
		return err
	}
	return s.SetMetadata(metaIndexedAt, time.Now().UTC().Format(time.RFC3339))
}

// openGraph loads the graph for the repository containing the working
// directory.
func (c *cli) openGraph(ctx context.Context) (*storedGraph, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := c.resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'isg index' first)", dbPath)
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		return nil, err
	}
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	opts, err := c.graphOptions()
	if err != nil {
		return nil, err
	}
	g := isg.New(opts...)
	if err := g.Restore(snap); err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}

	sg := &storedGraph{graph: g, dbPath: dbPath}
	if sg.root, err = s.GetMetadata(metaRoot); err != nil {
		return nil, err
	}
	if sg.indexedAt, err = s.GetMetadata(metaIndexedAt); err != nil {
		return nil, err
	}
	c.logger.Debug("graph loaded", "db", dbPath, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return sg, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/isg"
	"github.com/jward/isg/internal/watch"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Index a repository and keep the database current as files change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runWatch(ctx, args)
		},
	}
}

func (c *cli) runWatch(ctx context.Context, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return c.outputError("watch", err)
	}
	dbPath := c.resolveDBPath(findRepoRoot(targetDir))

	gopts, err := c.graphOptions()
	if err != nil {
		return c.outputError("watch", err)
	}
	g := isg.New(gopts...)
	engine := isg.NewEngine(g, c.engineOptions()...)

	stats, err := engine.IndexDirectory(ctx, targetDir)
	if err != nil {
		c.logger.Warn("initial index completed with errors", "failed", stats.Failed, "error", err)
	}
	if err := saveGraph(ctx, dbPath, g, targetDir); err != nil {
		return c.outputError("watch", err)
	}
	c.logger.Info("initial index", "nodes", stats.Nodes, "edges", stats.Edges, "db", dbPath)

	w, err := watch.New(targetDir, func(ctx context.Context, changes []watch.Change) {
		c.applyChanges(ctx, engine, dbPath, changes)
	}, watch.Options{
		Debounce: c.cfg.Watch.Debounce,
		Ignore:   c.cfg.Ignore,
		Skip:     engine.Excluded,
		Logger:   c.logger,
	})
	if err != nil {
		return c.outputError("watch", err)
	}
	defer w.Close()

	fmt.Fprintf(c.stderr, "Watching %s (Ctrl-C to stop)\n", targetDir)
	if err := w.Run(ctx); err != nil {
		return c.outputError("watch", err)
	}
	return nil
}

// applyChanges feeds one debounced batch to the engine and persists the
// result. Removed and renamed paths are retracted; everything else is
// re-indexed, which skips files whose content did not change.
func (c *cli) applyChanges(ctx context.Context, engine *isg.Engine, dbPath string, changes []watch.Change) {
	var gone, changed []string
	for _, ch := range changes {
		if ch.Op.Gone() {
			gone = append(gone, ch.Path)
		} else {
			changed = append(changed, ch.Path)
		}
	}

	removed := engine.RemoveFiles(gone)
	stats, err := engine.IndexFiles(ctx, changed)
	if err != nil {
		c.logger.Warn("re-index completed with errors", "failed", stats.Failed, "error", err)
	}
	if removed == 0 && stats.Indexed == 0 && stats.Removed == 0 {
		return
	}
	if err := saveGraph(ctx, dbPath, engine.Graph(), engine.Root()); err != nil {
		c.logger.Error("saving graph", "error", err)
		return
	}
	c.logger.Info("graph updated",
		"changes", len(changes),
		"indexed", stats.Indexed,
		"removed_nodes", removed+stats.Removed,
		"nodes", engine.Graph().NodeCount(),
		"edges", engine.Graph().EdgeCount(),
	)
}

package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jward/isg"
)

func (c *cli) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the stored graph",
		Long:  "Run queries against an indexed codebase. Entities are addressed by hex fingerprint or by unique name.",
	}
	cmd.AddCommand(c.findCmd())
	cmd.AddCommand(c.nodeCmd())
	cmd.AddCommand(c.relationCmd("callers", "Entities that call the given function", (*isg.Graph).FindCallers))
	cmd.AddCommand(c.relationCmd("callees", "Entities the given function calls", (*isg.Graph).FindCallees))
	cmd.AddCommand(c.relationCmd("users", "Entities that use the given type", (*isg.Graph).FindUsers))
	cmd.AddCommand(c.relationCmd("implementors", "Entities that implement the given trait", (*isg.Graph).FindImplementors))
	cmd.AddCommand(c.blastRadiusCmd())
	cmd.AddCommand(c.cyclesCmd())
	cmd.AddCommand(c.statsCmd())
	return cmd
}

// runQuery loads the graph, runs fn and prints its result under command.
func (c *cli) runQuery(ctx context.Context, command string, fn func(*storedGraph) (any, error)) error {
	sg, err := c.openGraph(ctx)
	if err != nil {
		return c.outputError(command, err)
	}
	results, err := fn(sg)
	if err != nil {
		return c.outputError(command, err)
	}
	return c.outputResult(CLIResult{Command: command, Results: results})
}

func (c *cli) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>",
		Short: "List every entity with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), "find", func(sg *storedGraph) (any, error) {
				return collect(sg.graph, sg.graph.FindByName(args[0])), nil
			})
		},
	}
}

func (c *cli) nodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "node <entity>",
		Short: "Show one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), "node", func(sg *storedGraph) (any, error) {
				fp, err := sg.graph.Lookup(args[0])
				if err != nil {
					return nil, err
				}
				rec, err := sg.graph.GetNode(fp)
				if err != nil {
					return nil, err
				}
				return entityToCLI(rec), nil
			})
		},
	}
}

func (c *cli) relationCmd(name, short string, query func(*isg.Graph, isg.Fingerprint) ([]isg.EntityRecord, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <entity>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), name, func(sg *storedGraph) (any, error) {
				fp, err := sg.graph.Lookup(args[0])
				if err != nil {
					return nil, err
				}
				recs, err := query(sg.graph, fp)
				if err != nil {
					return nil, err
				}
				return entitiesToCLI(recs), nil
			})
		},
	}
}

func (c *cli) blastRadiusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blast-radius <entity>",
		Short: "Every entity reachable from the given one over any relation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), "blast-radius", func(sg *storedGraph) (any, error) {
				fp, err := sg.graph.Lookup(args[0])
				if err != nil {
					return nil, err
				}
				set, err := sg.graph.CalculateBlastRadius(fp)
				if err != nil {
					return nil, err
				}
				return collect(sg.graph, set), nil
			})
		},
	}
}

func (c *cli) cyclesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "List dependency cycles over the configured relation kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), "cycles", func(sg *storedGraph) (any, error) {
				return cyclesToCLI(sg.graph)
			})
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the stored graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), "stats", func(sg *storedGraph) (any, error) {
				return graphStats(sg), nil
			})
		},
	}
}

// collect materializes a fingerprint set as entities in the standard order:
// name, file, line, fingerprint.
func collect(g *isg.Graph, set isg.FingerprintSet) []CLIEntity {
	recs := make([]isg.EntityRecord, 0, set.Len())
	for _, fp := range set.Sorted() {
		if rec, err := g.GetNode(fp); err == nil {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.Line < b.Line
	})
	return entitiesToCLI(recs)
}

func cyclesToCLI(g *isg.Graph) ([]CLICycle, error) {
	comps := g.FindCycles()
	out := make([]CLICycle, 0, len(comps))
	for _, comp := range comps {
		cycle := CLICycle{Members: make([]CLIEntity, 0, len(comp))}
		for _, fp := range comp {
			rec, err := g.GetNode(fp)
			if err != nil {
				return nil, fmt.Errorf("cycle member: %w", err)
			}
			cycle.Members = append(cycle.Members, entityToCLI(rec))
		}
		out = append(out, cycle)
	}
	return out, nil
}

func graphStats(sg *storedGraph) CLIGraphStats {
	snap := sg.graph.Export()
	stats := CLIGraphStats{
		Root:      sg.root,
		IndexedAt: sg.indexedAt,
		Nodes:     len(snap.Nodes),
		Edges:     len(snap.Edges),
		Files:     len(sg.graph.Files()),
		Kinds:     make(map[string]int),
		Relations: make(map[string]int),
		Cycles:    len(sg.graph.FindCycles()),
	}
	for _, n := range snap.Nodes {
		stats.Kinds[n.Kind.String()]++
	}
	for _, e := range snap.Edges {
		stats.Relations[e.Kind.String()]++
	}
	return stats
}

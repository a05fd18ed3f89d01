// Package isg maintains an Interface Signature Graph: an in-memory, concurrent
// graph of a codebase's functions, structs, and traits (nodes) and the calls,
// uses, and implements relations between them (edges). It answers questions
// such as who calls a function, what implements a trait, and what a change
// could break, while an ingestion pipeline keeps mutating it.
//
// # Identity
//
// Every entity is keyed by a [Fingerprint], the xxHash64 of its canonical
// signature. The same signature always yields the same fingerprint, so
// re-indexing an unchanged declaration is an idempotent upsert.
//
// # Usage
//
// Create a Graph, index a source tree with an Engine, and query:
//
//	g := isg.New()
//	e := isg.NewEngine(g, isg.WithLanguages("go"))
//
//	ctx := context.Background()
//	stats, err := e.IndexDirectory(ctx, "path/to/project")
//
//	fp, err := g.Lookup("Handler")
//	impls, err := g.FindImplementors(fp)
//
// # Queries
//
// All queries take the read lock and return copies:
//
//   - [Graph.GetNode] and [Graph.FindByName] for point lookups.
//   - [Graph.FindCallers], [Graph.FindCallees], [Graph.FindUsers], and
//     [Graph.FindImplementors] for one-hop relations.
//   - [Graph.CalculateBlastRadius] for everything transitively reachable.
//   - [Graph.FindCycles] for strongly connected components.
//
// Multi-record results are sorted by name, then file, then line, then
// fingerprint.
//
// # Incremental Indexing
//
// [Engine.IndexFiles] detects unchanged files via content hashing and skips
// them. A changed file has its entities upserted, the ones it no longer
// declares removed, and its outgoing relations re-resolved. Deleted files are
// retracted with [Engine.RemoveFiles]. Use [WithLanguages] to restrict which
// languages the Engine processes.
//
// # Persistence
//
// [Graph.Export] produces a deterministic [Snapshot] and [Graph.Restore]
// replays one. The isg command stores snapshots in SQLite between runs.
package isg

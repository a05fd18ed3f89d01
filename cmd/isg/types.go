package main

import "github.com/jward/isg"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIEntity is a JSON-friendly entity representation. Fingerprints are
// hex so they can be pasted back into any command that takes an entity.
type CLIEntity struct {
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Signature   string `json:"signature"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line"`
}

// CLIRelation is one edge with both endpoint names resolved.
type CLIRelation struct {
	From     string `json:"from"`
	FromName string `json:"from_name,omitempty"`
	To       string `json:"to"`
	ToName   string `json:"to_name,omitempty"`
	Kind     string `json:"kind"`
}

// CLICycle is one strongly connected component.
type CLICycle struct {
	Members []CLIEntity `json:"members"`
}

// CLIIndexStats summarizes one index run.
type CLIIndexStats struct {
	Database   string `json:"database"`
	Files      int    `json:"files"`
	Indexed    int    `json:"indexed"`
	Unchanged  int    `json:"unchanged"`
	Removed    int    `json:"removed"`
	Failed     int    `json:"failed"`
	Nodes      int    `json:"nodes"`
	Edges      int    `json:"edges"`
	DurationMS int64  `json:"duration_ms"`
}

// CLIGraphStats summarizes a stored graph.
type CLIGraphStats struct {
	Root      string         `json:"root,omitempty"`
	IndexedAt string         `json:"indexed_at,omitempty"`
	Nodes     int            `json:"nodes"`
	Edges     int            `json:"edges"`
	Files     int            `json:"files"`
	Kinds     map[string]int `json:"kinds"`
	Relations map[string]int `json:"relations"`
	Cycles    int            `json:"cycles"`
}

// CLICheck reports whether the stored graph satisfies its invariants.
type CLICheck struct {
	OK      bool   `json:"ok"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
	Problem string `json:"problem,omitempty"`
}

func entityToCLI(rec isg.EntityRecord) CLIEntity {
	return CLIEntity{
		Fingerprint: rec.Fingerprint.String(),
		Name:        rec.Name,
		Kind:        rec.Kind.String(),
		Signature:   rec.Signature,
		File:        rec.FilePath,
		Line:        rec.Line,
	}
}

func entitiesToCLI(recs []isg.EntityRecord) []CLIEntity {
	out := make([]CLIEntity, len(recs))
	for i, rec := range recs {
		out[i] = entityToCLI(rec)
	}
	return out
}

func statsToCLI(stats isg.IndexStats, dbPath string) CLIIndexStats {
	return CLIIndexStats{
		Database:   dbPath,
		Files:      stats.Files,
		Indexed:    stats.Indexed,
		Unchanged:  stats.Unchanged,
		Removed:    stats.Removed,
		Failed:     stats.Failed,
		Nodes:      stats.Nodes,
		Edges:      stats.Edges,
		DurationMS: stats.Duration.Milliseconds(),
	}
}

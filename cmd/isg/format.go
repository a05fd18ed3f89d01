package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// CLIScriptValue wraps a script's final value so text output can print
// strings bare and everything else as JSON.
type CLIScriptValue struct {
	Value any
}

func (v CLIScriptValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Value)
}

// formatEntitiesText formats CLIEntity results as aligned columns.
func formatEntitiesText(w io.Writer, ents []CLIEntity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINGERPRINT\tNAME\tKIND\tFILE\tLINE")
	for _, e := range ents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.Fingerprint, e.Name, e.Kind, e.File, e.Line)
	}
	tw.Flush()
}

// formatEntityDetailText formats one entity with its full signature.
func formatEntityDetailText(w io.Writer, e CLIEntity) {
	fmt.Fprintf(w, "Name:        %s\n", e.Name)
	fmt.Fprintf(w, "Kind:        %s\n", e.Kind)
	fmt.Fprintf(w, "Fingerprint: %s\n", e.Fingerprint)
	fmt.Fprintf(w, "Signature:   %s\n", e.Signature)
	if e.File != "" {
		fmt.Fprintf(w, "Location:    %s:%d\n", e.File, e.Line)
	}
}

// formatCyclesText prints one line per cycle, members joined by arrows.
func formatCyclesText(w io.Writer, cycles []CLICycle) {
	for i, c := range cycles {
		names := make([]string, len(c.Members))
		for j, m := range c.Members {
			names[j] = m.Name
		}
		fmt.Fprintf(w, "cycle %d: %s\n", i+1, strings.Join(names, " -> "))
	}
}

// formatIndexStatsText formats an index run summary.
func formatIndexStatsText(w io.Writer, s CLIIndexStats) {
	fmt.Fprintf(w, "Database:  %s\n", s.Database)
	fmt.Fprintf(w, "Files:     %d (%d indexed, %d unchanged, %d removed, %d failed)\n",
		s.Files, s.Indexed, s.Unchanged, s.Removed, s.Failed)
	fmt.Fprintf(w, "Graph:     %d nodes, %d edges\n", s.Nodes, s.Edges)
	fmt.Fprintf(w, "Duration:  %dms\n", s.DurationMS)
}

// formatGraphStatsText formats a stored graph summary.
func formatGraphStatsText(w io.Writer, s CLIGraphStats) {
	fmt.Fprintln(w, "Graph Summary")
	fmt.Fprintln(w, "=============")
	if s.Root != "" {
		fmt.Fprintf(w, "Root: %s\n", s.Root)
	}
	if s.IndexedAt != "" {
		fmt.Fprintf(w, "Indexed: %s\n", s.IndexedAt)
	}
	fmt.Fprintf(w, "Nodes: %d\nEdges: %d\nFiles: %d\nCycles: %d\n", s.Nodes, s.Edges, s.Files, s.Cycles)
	writeCounts(w, "Entity Kinds:", s.Kinds)
	writeCounts(w, "Relation Kinds:", s.Relations)
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}

// formatCheckText reports the invariant check.
func formatCheckText(w io.Writer, c CLICheck) {
	if c.OK {
		fmt.Fprintf(w, "ok: %d nodes, %d edges\n", c.Nodes, c.Edges)
		return
	}
	fmt.Fprintf(w, "invalid: %s\n", c.Problem)
}

// formatScriptValueText prints strings bare and anything else as JSON.
func formatScriptValueText(w io.Writer, v CLIScriptValue) error {
	switch val := v.Value.(type) {
	case nil:
		return nil
	case string:
		fmt.Fprintln(w, val)
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(val)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIEntity:
		formatEntitiesText(w, v)
	case CLIEntity:
		formatEntityDetailText(w, v)
	case []CLICycle:
		formatCyclesText(w, v)
	case CLIIndexStats:
		formatIndexStatsText(w, v)
	case CLIGraphStats:
		formatGraphStatsText(w, v)
	case CLICheck:
		formatCheckText(w, v)
	case CLIScriptValue:
		return formatScriptValueText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputResult writes a CLIResult to stdout in the selected format.
func (c *cli) outputResult(result CLIResult) error {
	if c.flagFormat == "text" {
		return outputResultText(c.stdout, result)
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func (c *cli) outputError(command string, err error) error {
	c.errorHandled = true
	if c.flagFormat == "text" {
		fmt.Fprintf(c.stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

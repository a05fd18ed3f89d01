package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/isg"
)

var exportFormats = []string{"json", "dot", "mermaid"}

func (c *cli) exportCmd() *cobra.Command {
	var (
		as     string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole graph as JSON, Graphviz DOT or Mermaid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			write, err := exporterFor(as)
			if err != nil {
				return c.outputError("export", err)
			}
			sg, err := c.openGraph(cmd.Context())
			if err != nil {
				return c.outputError("export", err)
			}

			w := c.stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return c.outputError("export", fmt.Errorf("creating %s: %w", output, err))
				}
				defer f.Close()
				w = f
			}
			if err := write(w, sg.graph.Export()); err != nil {
				return c.outputError("export", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "json", "export format: "+strings.Join(exportFormats, "|"))
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func exporterFor(format string) (func(io.Writer, isg.Snapshot) error, error) {
	switch format {
	case "json":
		return writeJSON, nil
	case "dot":
		return writeDOT, nil
	case "mermaid":
		return writeMermaid, nil
	default:
		return nil, fmt.Errorf("invalid export format %q: must be one of %s", format, strings.Join(exportFormats, ", "))
	}
}

func writeJSON(w io.Writer, snap isg.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// DOT edge styles per relation kind.
var dotEdgeStyle = map[isg.RelationKind]string{
	isg.RelationCalls:      "solid",
	isg.RelationUses:       "dashed",
	isg.RelationImplements: "bold",
}

var dotNodeShape = map[isg.EntityKind]string{
	isg.KindFunction: "box",
	isg.KindStruct:   "ellipse",
	isg.KindTrait:    "diamond",
}

func writeDOT(w io.Writer, snap isg.Snapshot) error {
	var sb strings.Builder
	sb.WriteString("digraph ISG {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [fontname=\"Helvetica\"];\n")
	for _, n := range snap.Nodes {
		fmt.Fprintf(&sb, "    \"%s\" [label=\"%s\\n%s\", shape=%s];\n",
			n.Fingerprint, escapeDOTLabel(n.Name), n.Kind, dotNodeShape[n.Kind])
	}
	for _, e := range snap.Edges {
		fmt.Fprintf(&sb, "    \"%s\" -> \"%s\" [label=\"%s\", style=%s];\n",
			e.From, e.To, e.Kind, dotEdgeStyle[e.Kind])
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func escapeDOTLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func writeMermaid(w io.Writer, snap isg.Snapshot) error {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	for _, n := range snap.Nodes {
		open, close := "[", "]"
		switch n.Kind {
		case isg.KindStruct:
			open, close = "(", ")"
		case isg.KindTrait:
			open, close = "{{", "}}"
		}
		fmt.Fprintf(&sb, "    n%s%s\"%s\"%s\n", n.Fingerprint, open, escapeMermaidLabel(n.Name), close)
	}
	for _, e := range snap.Edges {
		arrow := "-->"
		switch e.Kind {
		case isg.RelationUses:
			arrow = "-.->"
		case isg.RelationImplements:
			arrow = "==>"
		}
		fmt.Fprintf(&sb, "    n%s %s|%s| n%s\n", e.From, arrow, e.Kind, e.To)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Mermaid has no escape for a double quote inside a quoted label; it takes
// the HTML entity instead.
func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

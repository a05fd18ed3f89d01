package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var errInvalidGraph = errors.New("graph failed consistency check")

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the stored graph's internal consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sg, err := c.openGraph(cmd.Context())
			if err != nil {
				return c.outputError("check", err)
			}
			result := CLICheck{
				OK:    true,
				Nodes: sg.graph.NodeCount(),
				Edges: sg.graph.EdgeCount(),
			}
			if err := sg.graph.Validate(); err != nil {
				result.OK = false
				result.Problem = err.Error()
			}
			if err := c.outputResult(CLIResult{Command: "check", Results: result}); err != nil {
				return err
			}
			if !result.OK {
				c.errorHandled = true
				return errInvalidGraph
			}
			return nil
		},
	}
}

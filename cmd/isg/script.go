package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/isg/internal/runtime"
	"github.com/jward/isg/scripts"
)

func (c *cli) scriptCmd() *cobra.Command {
	var (
		eval   string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "script [file|name]",
		Short: "Run a Risor script against the stored graph",
		Long: `Run a Risor script against the stored graph. The argument is a path to a
.risor file, or the name of a built-in query (hotspots, unimplemented,
summary). Parameters given with --arg key=value are visible to the script
as globals and through args.get(key, default).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if eval == "" && len(args) == 0 {
				return c.outputError("script", errScriptTarget)
			}
			sg, err := c.openGraph(cmd.Context())
			if err != nil {
				return c.outputError("script", err)
			}
			globals := parseScriptArgs(params)

			var out any
			switch {
			case eval != "":
				rt := runtime.NewRuntime(sg.graph, "", runtime.WithRuntimeLogger(c.logger))
				out, err = rt.RunSource(cmd.Context(), eval, globals)
			case isScriptFile(args[0]):
				path, absErr := filepath.Abs(args[0])
				if absErr != nil {
					return c.outputError("script", absErr)
				}
				rt := runtime.NewRuntime(sg.graph, filepath.Dir(path), runtime.WithRuntimeLogger(c.logger))
				out, err = rt.RunScript(cmd.Context(), filepath.Base(path), globals)
			default:
				rt := runtime.NewRuntime(sg.graph, "", runtime.WithRuntimeFS(scripts.FS), runtime.WithRuntimeLogger(c.logger))
				out, err = rt.RunScript(cmd.Context(), runtime.QueryScriptPath(args[0]), globals)
			}
			if err != nil {
				return c.outputError("script", err)
			}
			return c.outputResult(CLIResult{Command: "script", Results: CLIScriptValue{Value: out}})
		},
	}
	cmd.Flags().StringVarP(&eval, "eval", "e", "", "run inline Risor source instead of a file")
	cmd.Flags().StringArrayVar(&params, "arg", nil, "script parameter as key=value (repeatable)")
	return cmd
}

var errScriptTarget = errors.New("script: give a script file, a built-in query name, or --eval")

// isScriptFile reports whether arg names a file on disk rather than a
// built-in query.
func isScriptFile(arg string) bool {
	if strings.HasSuffix(arg, ".risor") || strings.ContainsRune(arg, os.PathSeparator) {
		return true
	}
	_, err := os.Stat(arg)
	return err == nil
}

// parseScriptArgs turns key=value pairs into globals. Integer-looking
// values become int64 so scripts can compare them numerically.
func parseScriptArgs(pairs []string) map[string]any {
	globals := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, _ := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		globals[key] = scriptValue(value)
	}
	return globals
}

func scriptValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// Package runtime embeds a Risor VM for ad-hoc graph analysis. Scripts see
// the graph through host functions (find, callers, blast_radius, ...) and
// their final expression is handed back to the caller.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/isg"
	"github.com/jward/isg/internal/logging"
)

// Runtime runs Risor scripts against one graph.
type Runtime struct {
	graph      *isg.Graph
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS makes the Runtime read scripts, and resolve their import
// statements, from fsys rather than the local disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the scripts' log object.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime over g. Relative script paths resolve against
// scriptsDir unless WithRuntimeFS is given.
func NewRuntime(g *isg.Graph, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		graph:      g,
		scriptsDir: scriptsDir,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. It returns the script's
// final value converted to plain Go values (nil, bool, int64, float64,
// string, []any, map[string]any).
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (any, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("run script", "script", label)
	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil || result == object.Nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// buildImporter lets scripts import siblings from wherever they were loaded.
// With no script source configured, imports are disabled.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	exts := []string{".risor"}

	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{GlobalNames: names, SourceFS: r.fsys, Extensions: exts})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{GlobalNames: names, SourceDir: r.scriptsDir, Extensions: exts})
	default:
		return nil
	}
}

// LoadScript returns the source of the script at path: inside the runtime's
// fs.FS when one is set, otherwise on disk relative to scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	var (
		data []byte
		err  error
		from string
	)
	if r.fsys != nil {
		from = strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err = fs.ReadFile(r.fsys, from)
	} else {
		from = path
		if !filepath.IsAbs(path) && r.scriptsDir != "" {
			from = filepath.Join(r.scriptsDir, path)
		}
		data, err = os.ReadFile(from)
	}
	if err != nil {
		return "", fmt.Errorf("runtime: load script %s: %w", from, err)
	}
	return string(data), nil
}

// QueryScriptPath returns the path of a canned query script.
func QueryScriptPath(name string) string {
	return filepath.ToSlash(filepath.Join("queries", name+".risor"))
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{logger: r.logger}),
	}

	// nil during some tests
	if r.graph != nil {
		g := r.graph
		globals["node_count"] = makeNodeCountFn(g)
		globals["edge_count"] = makeEdgeCountFn(g)
		globals["fingerprint"] = makeFingerprintFn()
		globals["lookup"] = makeLookupFn(g)
		globals["node"] = makeNodeFn(g)
		globals["nodes"] = makeNodesFn(g)
		globals["find"] = makeFindFn(g)
		globals["file_nodes"] = makeFileNodesFn(g)
		globals["files"] = makeFilesFn(g)
		globals["callers"] = makeRelationFn("callers", g, g.FindCallers)
		globals["callees"] = makeRelationFn("callees", g, g.FindCallees)
		globals["users"] = makeRelationFn("users", g, g.FindUsers)
		globals["implementors"] = makeRelationFn("implementors", g, g.FindImplementors)
		globals["blast_radius"] = makeBlastRadiusFn(g)
		globals["cycles"] = makeCyclesFn(g)
	}

	// args mirrors the caller's extras as one map so scripts can probe for
	// optional parameters with args.get(name, default).
	args := make(map[string]object.Object, len(extra))
	for k, v := range extra {
		globals[k] = v
		args[k] = object.FromGoType(v)
	}
	globals["args"] = object.NewMap(args)
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "script")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "script")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "script")
}

package isg

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/isg/internal/extract"
)

// Engine keeps a Graph in step with a source tree: it discovers files,
// detects content changes, extracts entities and references, and turns them
// into upserts and removals. Indexing runs are serialized; the graph itself
// stays readable by other goroutines throughout.
type Engine struct {
	graph     *Graph
	languages map[string]bool // nil means all languages
	ignore    *ignore.GitIgnore // WithIgnore patterns
	logger    *slog.Logger

	// useParallel enables the worker pool for extraction.
	useParallel bool
	workers     int

	mu        sync.Mutex
	root      string
	gitignore *ignore.GitIgnore       // root/.gitignore as of the last IndexDirectory
	files     map[string]*indexedFile // keyed by graph path
}

// indexedFile is the engine's memory of one extracted file.
type indexedFile struct {
	hash    string
	extract *extract.File
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	Files     int           `json:"files"`
	Indexed   int           `json:"indexed"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Failed    int           `json:"failed"`
	Nodes     int           `json:"nodes"`
	Edges     int           `json:"edges"`
	Duration  time.Duration `json:"duration"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithParallel controls parallel extraction. When true (default), files are
// parsed by a worker pool while a single writer applies results to the graph.
// Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers sets the worker pool size. Values below one mean NumCPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithIgnore adds gitignore-style patterns on top of the tree's .gitignore.
func WithIgnore(patterns ...string) Option {
	return func(e *Engine) {
		if len(patterns) > 0 {
			e.ignore = ignore.CompileIgnoreLines(patterns...)
		}
	}
}

// WithEngineLogger sets the engine's logger. Defaults to the graph's logger.
func WithEngineLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine that writes into g.
func NewEngine(g *Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:       g,
		logger:      g.logger,
		useParallel: true,
		files:       make(map[string]*indexedFile),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	if !e.useParallel {
		e.workers = 1
	}
	return e
}

// Graph returns the graph the engine writes into.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Root returns the directory of the last IndexDirectory run, or "".
func (e *Engine) Root() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// IndexDirectory indexes every supported file under root and retracts files
// the graph knows about that are no longer present. Graph paths are relative
// to root, slash-separated.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (IndexStats, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return IndexStats{}, fmt.Errorf("resolve root: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.root = abs

	gi, err := loadGitignore(abs)
	if err != nil {
		recordIndexMetrics(ctx, 0, false)
		return IndexStats{}, err
	}
	e.gitignore = gi

	paths, err := e.discover(abs)
	if err != nil {
		recordIndexMetrics(ctx, 0, false)
		return IndexStats{}, err
	}

	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[e.graphPath(p)] = true
	}
	var gone []string
	for _, p := range e.graph.Files() {
		if p != "" && !present[p] {
			gone = append(gone, p)
		}
	}
	return e.index(ctx, paths, gone)
}

// IndexFiles re-indexes the given files. Unchanged files are skipped, files
// that no longer exist are retracted, and files under the indexed root that
// IndexDirectory would not have picked up (see Excluded) are ignored.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (IndexStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index(ctx, paths, nil)
}

// RemoveFiles retracts every node declared in the given files and returns
// how many nodes were removed. A path naming a directory retracts every file
// beneath it, so a directory moved out of the tree leaves nothing behind.
func (e *Engine) RemoveFiles(paths []string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for _, p := range paths {
		rel := e.graphPath(p)
		removed += e.retract(rel)
		for _, nested := range e.filesUnder(rel) {
			removed += e.retract(nested)
		}
	}
	if removed > 0 {
		e.resolve()
	}
	return removed
}

// workItem is a file whose content changed since it was last extracted.
type workItem struct {
	path string // as given
	rel  string // graph path
	hash string
	src  []byte
}

type result struct {
	item workItem
	file *extract.File
	err  error
}

func (e *Engine) index(ctx context.Context, paths, gone []string) (IndexStats, error) {
	start := time.Now()
	stats := IndexStats{Files: len(paths)}
	var errs []error

	// Change detection.
	var items []workItem
	for _, path := range paths {
		if _, ok := e.languageFor(path); !ok {
			continue
		}
		rel, inRoot := e.relPath(path)
		if inRoot && e.excluded(rel, false) {
			e.logger.Debug("skip excluded file", "path", rel)
			continue
		}
		src, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			gone = append(gone, rel)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			stats.Failed++
			continue
		}
		hash := fmt.Sprintf("%x", sha256.Sum256(src))
		if prev, ok := e.files[rel]; ok && prev.hash == hash {
			stats.Unchanged++
			continue
		}
		items = append(items, workItem{path: path, rel: rel, hash: hash, src: src})
	}

	removedNodes := 0
	for _, rel := range gone {
		_, known := e.files[rel]
		n := e.retract(rel)
		if known || n > 0 {
			stats.Removed++
		}
		removedNodes += n
	}

	// Extraction.
	results := e.extractAll(ctx, items)
	var changed []*extract.File
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", res.item.path, res.err))
			stats.Failed++
			continue
		}
		e.files[res.item.rel] = &indexedFile{hash: res.item.hash, extract: res.file}
		changed = append(changed, res.file)
	}
	stats.Indexed = len(changed)

	// Phase 1: entities. Stale entities go before resolution so no relation
	// is resolved onto a declaration that no longer exists.
	declared := make([]FingerprintSet, len(changed))
	for i, f := range changed {
		declared[i] = make(FingerprintSet, len(f.Entities))
		for _, ent := range f.Entities {
			rec := entityRecord(f.Path, ent)
			e.graph.UpsertNode(rec)
			declared[i][rec.Fingerprint] = struct{}{}
		}
		stats.Nodes += len(declared[i])
	}
	for i, f := range changed {
		for fp := range e.graph.FindByFile(f.Path) {
			if !declared[i].Has(fp) {
				_ = e.graph.RemoveNode(fp)
				removedNodes++
			}
		}
	}

	// Phases 2 and 3: relations and stale outgoing edges.
	if len(changed) > 0 || removedNodes > 0 {
		stats.Edges = e.resolve()
	}

	stats.Duration = time.Since(start)
	recordIndexMetrics(ctx, stats.Indexed, len(errs) == 0)
	e.logger.Info("index run",
		"files", stats.Files,
		"indexed", stats.Indexed,
		"unchanged", stats.Unchanged,
		"removed", stats.Removed,
		"failed", stats.Failed,
		"duration", stats.Duration)

	if len(errs) > 0 {
		return stats, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, ctx.Err()
}

// extractAll parses items on the worker pool. Results come back in input
// order so the serial writer is deterministic.
func (e *Engine) extractAll(ctx context.Context, items []workItem) []result {
	results := make([]result, len(items))
	if len(items) == 0 {
		return results
	}

	numWorkers := min(e.workers, len(items))
	work := make(chan int, len(items))
	for i := range items {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				item := items[i]
				if err := ctx.Err(); err != nil {
					results[i] = result{item: item, err: err}
					continue
				}
				f, err := extract.Extract(ctx, item.rel, item.src)
				results[i] = result{item: item, file: f, err: err}
			}
		}()
	}
	wg.Wait()
	return results
}

// retract removes a file from the graph and the engine's cache.
func (e *Engine) retract(rel string) int {
	delete(e.files, rel)
	return len(e.graph.RetractFile(rel))
}

// graphPath maps a filesystem path onto the path stored in records: relative
// to the indexed root when inside it, slash-separated either way.
func (e *Engine) graphPath(path string) string {
	rel, _ := e.relPath(path)
	return rel
}

// relPath is graphPath that also reports whether path lies under the root.
func (e *Engine) relPath(path string) (string, bool) {
	if e.root != "" {
		abs, err := filepath.Abs(path)
		if err == nil {
			rel, err := filepath.Rel(e.root, abs)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return filepath.ToSlash(rel), true
			}
		}
	}
	return filepath.ToSlash(filepath.Clean(path)), false
}

// filesUnder lists the known graph paths strictly below dir.
func (e *Engine) filesUnder(dir string) []string {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if strings.HasPrefix(p, prefix) && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for p := range e.files {
		add(p)
	}
	for _, p := range e.graph.Files() {
		add(p)
	}
	sort.Strings(out)
	return out
}

func entityRecord(path string, ent extract.Entity) EntityRecord {
	return EntityRecord{
		Fingerprint: FromSignature(ent.Signature),
		Kind:        entityKind(ent.Kind),
		Name:        ent.Name,
		Signature:   ent.Signature,
		FilePath:    path,
		Line:        ent.Line,
	}
}

func entityKind(k extract.Kind) EntityKind {
	switch k {
	case extract.KindStruct:
		return KindStruct
	case extract.KindTrait:
		return KindTrait
	default:
		return KindFunction
	}
}

func relationKind(k extract.RelKind) RelationKind {
	switch k {
	case extract.RelImplements:
		return RelationImplements
	case extract.RelUses:
		return RelationUses
	default:
		return RelationCalls
	}
}

// relationRank orders kinds when one source reaches the same target in more
// than one way; the graph keeps a single kind per ordered pair.
var relationRank = [len(relationKindNames)]int{
	RelationUses:       0,
	RelationCalls:      1,
	RelationImplements: 2,
}

// sortedPaths returns the cached graph paths in order.
func (e *Engine) sortedPaths() []string {
	paths := make([]string, 0, len(e.files))
	for p := range e.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Package extract turns source files into entities and name-based
// references using tree-sitter. It knows nothing about the graph: the
// ingestion engine maps its output onto fingerprints and upserts.
package extract

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind is the entity kind as reported by an extractor.
type Kind string

const (
	KindFunction Kind = "function"
	KindStruct   Kind = "struct"
	KindTrait    Kind = "trait"
)

// RelKind is the relation kind as reported by an extractor.
type RelKind string

const (
	RelCalls      RelKind = "calls"
	RelUses       RelKind = "uses"
	RelImplements RelKind = "implements"
)

// Entity is one declaration found in a file.
type Entity struct {
	Kind      Kind
	Name      string
	Signature string // canonical signature, the input to fingerprinting
	Line      int    // 1-based

	// Receiver is the type a method is declared on (Go receiver, Rust impl
	// target). Empty for free functions and types.
	Receiver string

	// Methods lists the method names a trait or interface requires, sorted.
	Methods []string
}

// Reference is an unresolved relation. The source is either an entity of
// this file (From, by signature) or a named type declared anywhere
// (FromName, used for Rust impl blocks).
type Reference struct {
	From     string
	FromName string
	Target   string
	Kind     RelKind
	Line     int
}

// File is the extraction result for one source file.
type File struct {
	Path       string
	Language   string
	Package    string
	Entities   []Entity
	References []Reference
}

// Extract parses src as the language implied by path. path should be the
// portable (repository-relative, slash-separated) name of the file: it is
// embedded in every signature so identities survive checkouts in different
// locations.
func Extract(ctx context.Context, path string, src []byte) (*File, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("extract: unsupported file %s", path)
	}
	grammar, _ := ParserForLanguage(lang)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("extract: parse %s: %w", path, err)
	}
	defer tree.Close()

	b := newBuilder(path, lang, src)
	switch lang {
	case "go":
		extractGo(b, tree.RootNode())
	case "rust":
		extractRust(b, tree.RootNode(), rustFileModule(path))
	}
	return b.finish(), nil
}

// builder accumulates entities and de-duplicated references for one file.
type builder struct {
	file *File
	src  []byte
	dir  string
	seen map[refKey]struct{}
}

type refKey struct {
	from, fromName, target string
	kind                   RelKind
}

func newBuilder(p, lang string, src []byte) *builder {
	return &builder{
		file: &File{Path: p, Language: lang},
		src:  src,
		dir:  path.Dir(p),
		seen: make(map[refKey]struct{}),
	}
}

func (b *builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(b.src)
}

// signature composes "<lang>:<dir>:<kind> <qualified><shape>".
func (b *builder) signature(kind Kind, qualified, shape string) string {
	return b.file.Language + ":" + b.dir + ":" + string(kind) + " " + qualified + shape
}

func (b *builder) entity(e Entity) {
	b.file.Entities = append(b.file.Entities, e)
}

func (b *builder) ref(r Reference) {
	if r.Target == "" || r.Target == "_" {
		return
	}
	key := refKey{from: r.From, fromName: r.FromName, target: r.Target, kind: r.Kind}
	if _, ok := b.seen[key]; ok {
		return
	}
	b.seen[key] = struct{}{}
	b.file.References = append(b.file.References, r)
}

func (b *builder) finish() *File {
	sort.SliceStable(b.file.Entities, func(i, j int) bool {
		return b.file.Entities[i].Line < b.file.Entities[j].Line
	})
	return b.file
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// collapse squeezes runs of whitespace so formatting changes do not alter
// signatures.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// walk visits n and its named descendants depth-first. Returning false from
// fn skips the node's children.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}

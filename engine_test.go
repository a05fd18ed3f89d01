package isg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const animalSource = `package zoo

type Animal interface {
	Sound() string
}

type Dog struct{}

func (d *Dog) Sound() string { return bark() }

func bark() string { return "woof" }
`

const keeperSource = `package zoo

func Feed(a Animal) string {
	return a.Sound()
}
`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newZoo writes the two-file Go package used by most engine tests.
func newZoo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "zoo/animal.go", animalSource)
	writeFile(t, root, "zoo/keeper.go", keeperSource)
	return root
}

// only returns the fingerprint of the single node called name.
func only(t *testing.T, g *Graph, name string) Fingerprint {
	t.Helper()
	fps := g.FindByName(name).Sorted()
	require.Len(t, fps, 1, "nodes named %q", name)
	return fps[0]
}

func names(recs []EntityRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(New())
	assert.True(t, e.useParallel)
	assert.GreaterOrEqual(t, e.workers, 1)
	assert.Nil(t, e.languages)

	serial := NewEngine(New(), WithParallel(false), WithWorkers(8))
	assert.Equal(t, 1, serial.workers)
}

func TestWithLanguages(t *testing.T) {
	e := NewEngine(New(), WithLanguages("go"))
	assert.True(t, e.languages["go"])
	assert.False(t, e.languages["rust"])
}

func TestIndexDirectory_BuildsGraph(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)

	stats, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Indexed)
	assert.Equal(t, 5, stats.Nodes)
	assert.Equal(t, []string{"zoo/animal.go", "zoo/keeper.go"}, g.Files())

	dog := only(t, g, "Dog")
	rec, err := g.GetNode(dog)
	require.NoError(t, err)
	assert.Equal(t, KindStruct, rec.Kind)
	assert.Equal(t, "zoo/animal.go", rec.FilePath)
	assert.Equal(t, 7, rec.Line)

	implementors, err := g.FindImplementors(only(t, g, "Animal"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dog"}, names(implementors))

	callers, err := g.FindCallers(only(t, g, "bark"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sound"}, names(callers))

	callers, err = g.FindCallers(only(t, g, "Sound"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Feed"}, names(callers))

	users, err := g.FindUsers(only(t, g, "Animal"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Feed"}, names(users))

	radius, err := g.CalculateBlastRadius(only(t, g, "Feed"))
	require.NoError(t, err)
	assert.True(t, radius.Has(only(t, g, "bark")))
	assert.False(t, radius.Has(only(t, g, "Feed")))

	require.NoError(t, g.Validate())
}

func TestIndexDirectory_SkipsUnchangedFiles(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)

	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	before := g.Export()

	stats, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, 2, stats.Unchanged)
	assert.Equal(t, before, g.Export())
}

func TestIndexFiles_RemovesStaleEntities(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	path := writeFile(t, root, "zoo/animal.go", `package zoo

type Animal interface {
	Sound() string
}

type Dog struct{}

func (d *Dog) Sound() string { return "woof" }
`)
	stats, err := e.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)

	assert.Equal(t, 0, g.FindByName("bark").Len())
	callees, err := g.FindCallees(only(t, g, "Sound"))
	require.NoError(t, err)
	assert.Empty(t, callees)

	// relations from untouched files survive
	callers, err := g.FindCallers(only(t, g, "Sound"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Feed"}, names(callers))
	require.NoError(t, g.Validate())
}

func TestIndexFiles_ChangedSignatureReplacesNode(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	old := only(t, g, "Feed")

	path := writeFile(t, root, "zoo/keeper.go", `package zoo

func Feed(a Animal, times int) string {
	return a.Sound()
}
`)
	_, err = e.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)

	updated := only(t, g, "Feed")
	assert.NotEqual(t, old, updated)
	_, err = g.GetNode(old)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	callers, err := g.FindCallers(only(t, g, "Sound"))
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, updated, callers[0].Fingerprint)
}

func TestIndexFiles_ResolvesAgainstNewDeclarations(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/main.go", `package app

func Run() { helper() }
`)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	callees, err := g.FindCallees(only(t, g, "Run"))
	require.NoError(t, err)
	assert.Empty(t, callees)

	helper := writeFile(t, root, "app/helper.go", `package app

func helper() {}
`)
	_, err = e.IndexFiles(context.Background(), []string{helper})
	require.NoError(t, err)

	callees, err = g.FindCallees(only(t, g, "Run"))
	require.NoError(t, err)
	assert.Equal(t, []string{"helper"}, names(callees))
}

func TestIndexDirectory_RetractsDeletedFiles(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "zoo", "keeper.go")))
	stats, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	assert.Equal(t, 0, g.FindByName("Feed").Len())
	assert.Equal(t, []string{"zoo/animal.go"}, g.Files())
	require.NoError(t, g.Validate())
}

func TestIndexFiles_MissingFileIsRetracted(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	path := filepath.Join(root, "zoo", "keeper.go")
	require.NoError(t, os.Remove(path))
	stats, err := e.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 0, g.FindByName("Feed").Len())
}

func TestRemoveFiles(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	removed := e.RemoveFiles([]string{filepath.Join(root, "zoo", "keeper.go")})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, g.FindByName("Feed").Len())

	users, err := g.FindUsers(only(t, g, "Animal"))
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.Equal(t, 0, e.RemoveFiles([]string{filepath.Join(root, "zoo", "nope.go")}))
}

func TestIndexFiles_NeverIndexedMissingFileIsNotCounted(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	stats, err := e.IndexFiles(context.Background(), []string{filepath.Join(root, "zoo", "ghost.go")})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Removed)
}

func TestRemoveFiles_Directory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() { pkg.Helper() }\n")
	writeFile(t, root, "pkg/h.go", "package pkg\n\nfunc Helper() {}\n")
	writeFile(t, root, "pkg/inner/i.go", "package inner\n\nfunc Inner() {}\n")
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 1, g.FindByName("Helper").Len())

	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.RemoveAll(dir))
	assert.Equal(t, 2, e.RemoveFiles([]string{dir}))

	assert.Equal(t, 0, g.FindByName("Helper").Len())
	assert.Equal(t, 0, g.FindByName("Inner").Len())
	assert.Equal(t, []string{"main.go"}, g.Files())
	require.NoError(t, g.Validate())

	// A sibling sharing the prefix is not a child.
	writeFile(t, root, "pkgx/x.go", "package pkgx\n\nfunc X() {}\n")
	_, err = e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, e.RemoveFiles([]string{dir}))
	assert.Equal(t, 1, g.FindByName("X").Len())
}

func TestIndexDirectory_SkipsIgnoredAndHiddenPaths(t *testing.T) {
	root := newZoo(t)
	writeFile(t, root, ".gitignore", "gen/\n*_generated.go\n")
	writeFile(t, root, "gen/out.go", "package gen\nfunc Generated() {}\n")
	writeFile(t, root, "zoo/types_generated.go", "package zoo\nfunc AlsoGenerated() {}\n")
	writeFile(t, root, "vendor/lib/lib.go", "package lib\nfunc Vendored() {}\n")
	writeFile(t, root, ".hidden/h.go", "package hidden\nfunc Hidden() {}\n")
	writeFile(t, root, "build/b.go", "package build\nfunc Built() {}\n")
	writeFile(t, root, "zoo/notes.txt", "not code")

	g := New()
	e := NewEngine(g, WithIgnore("build/"))
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"zoo/animal.go", "zoo/keeper.go"}, g.Files())
}

func TestIndexFiles_SkipsExcludedPaths(t *testing.T) {
	root := newZoo(t)
	writeFile(t, root, ".gitignore", "gen/\n")
	g := New()
	e := NewEngine(g, WithIgnore("build/"))
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	before := g.NodeCount()

	paths := []string{
		writeFile(t, root, "vendor/dep/dep.go", "package dep\nfunc Vendored() {}\n"),
		writeFile(t, root, "gen/g.go", "package gen\nfunc Generated() {}\n"),
		writeFile(t, root, "build/b.go", "package build\nfunc Built() {}\n"),
		writeFile(t, root, ".cache/c.go", "package cache\nfunc Cached() {}\n"),
	}
	stats, err := e.IndexFiles(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Indexed)
	assert.Equal(t, before, g.NodeCount())
	for _, name := range []string{"Vendored", "Generated", "Built", "Cached"} {
		assert.Equal(t, 0, g.FindByName(name).Len(), name)
	}
	assert.Equal(t, []string{"zoo/animal.go", "zoo/keeper.go"}, g.Files())
}

func TestEngine_Excluded(t *testing.T) {
	root := newZoo(t)
	writeFile(t, root, ".gitignore", "gen/\n*_generated.go\n")
	e := NewEngine(New(), WithIgnore("build/"))
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	assert.False(t, e.Excluded(filepath.Join(root, "zoo", "animal.go")))
	assert.False(t, e.Excluded(filepath.Join(root, "zoo")))
	assert.False(t, e.Excluded(root))
	assert.True(t, e.Excluded(filepath.Join(root, "vendor", "dep", "dep.go")))
	assert.True(t, e.Excluded(filepath.Join(root, "web", "node_modules", "x.go")))
	assert.True(t, e.Excluded(filepath.Join(root, "gen", "g.go")))
	assert.True(t, e.Excluded(filepath.Join(root, "zoo", "types_generated.go")))
	assert.True(t, e.Excluded(filepath.Join(root, "build", "b.go")))
	assert.True(t, e.Excluded(filepath.Join(root, ".git", "HEAD")))
	assert.False(t, e.Excluded(filepath.Join(filepath.Dir(root), "elsewhere.go")))
}

func TestIndexDirectory_UnreadableGitignoreFails(t *testing.T) {
	root := newZoo(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".gitignore"), 0o755))

	g := New()
	_, err := NewEngine(g).IndexDirectory(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".gitignore")
	assert.Equal(t, 0, g.NodeCount())
}

func TestIndexDirectory_LanguageFilter(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g, WithLanguages("rust"))
	stats, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
	assert.Equal(t, 0, g.NodeCount())
}

func TestIndexDirectory_Rust(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/lib.rs", `pub trait Shape {
    fn area(&self) -> f64;
}

pub struct Square {
    side: f64,
}

impl Shape for Square {
    fn area(&self) -> f64 {
        scale(self.side)
    }
}

fn scale(x: f64) -> f64 {
    x * x
}
`)
	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	implementors, err := g.FindImplementors(only(t, g, "Shape"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Square"}, names(implementors))

	callers, err := g.FindCallers(only(t, g, "scale"))
	require.NoError(t, err)
	assert.Equal(t, []string{"area"}, names(callers))
}

func TestIndexDirectory_RustSiblingModules(t *testing.T) {
	src := "pub fn parse() {}\n\nmod tests {\n    fn setup() {}\n}\n"
	root := t.TempDir()
	writeFile(t, root, "src/lexer.rs", src)
	parser := writeFile(t, root, "src/parser.rs", src)

	g := New()
	e := NewEngine(g)
	_, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, g.FindByName("parse").Len())
	assert.Equal(t, 2, g.FindByName("setup").Len())
	require.NoError(t, g.Validate())

	require.NoError(t, os.Remove(parser))
	_, err = e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	rec, err := g.GetNode(only(t, g, "parse"))
	require.NoError(t, err)
	assert.Equal(t, "src/lexer.rs", rec.FilePath)
	rec, err = g.GetNode(only(t, g, "setup"))
	require.NoError(t, err)
	assert.Equal(t, "src/lexer.rs", rec.FilePath)
	require.NoError(t, g.Validate())
}

func TestIndexDirectory_SerialMatchesParallel(t *testing.T) {
	root := newZoo(t)
	writeFile(t, root, "util/strings.go", `package util

type Builder struct{ parts []string }

func (b *Builder) Add(s string) *Builder { b.parts = append(b.parts, s); return b }

func Join(parts ...string) string {
	b := &Builder{}
	for _, p := range parts {
		b.Add(p)
	}
	return ""
}
`)

	parallel := New()
	_, err := NewEngine(parallel, WithWorkers(4)).IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	serial := New()
	_, err = NewEngine(serial, WithParallel(false)).IndexDirectory(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, serial.Export(), parallel.Export())
}

func TestIndexDirectory_CancelledRunRecovers(t *testing.T) {
	root := newZoo(t)
	g := New()
	e := NewEngine(g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.IndexDirectory(ctx, root)
	require.Error(t, err)

	// a fresh run recovers everything the cancelled one skipped
	stats, err := e.IndexDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)
}

package isg

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden test format. Every listed item must be present in the graph built
// from the fixture's src/ directory; the graph may hold more.
type goldenFile struct {
	Definitions     []goldenDef  `json:"definitions,omitempty"`
	Implementations []goldenImpl `json:"implementations,omitempty"`
	Calls           []goldenCall `json:"calls,omitempty"`
	Uses            []goldenUse  `json:"uses,omitempty"`
}

type goldenDef struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file,omitempty"`
	Line int    `json:"line"`
}

type goldenImpl struct {
	Type      string `json:"type"`
	Interface string `json:"interface"`
}

type goldenCall struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

type goldenUse struct {
	User string `json:"user"`
	Used string `json:"used"`
}

// TestGolden walks testdata/{language}/ directories and checks the graph of
// every fixture that carries a golden.json.
func TestGolden(t *testing.T) {
	langDirs, err := os.ReadDir("testdata")
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, langDir := range langDirs {
		if !langDir.IsDir() {
			continue
		}
		lang := langDir.Name()
		langRoot := filepath.Join("testdata", lang)
		levels, err := os.ReadDir(langRoot)
		if err != nil {
			continue
		}

		for _, level := range levels {
			if !level.IsDir() {
				continue
			}
			testDir := filepath.Join(langRoot, level.Name())
			data, err := os.ReadFile(filepath.Join(testDir, "golden.json"))
			if err != nil {
				continue
			}
			var golden goldenFile
			require.NoError(t, json.Unmarshal(data, &golden), testDir)

			t.Run(lang+"/"+level.Name(), func(t *testing.T) {
				t.Parallel()
				runGolden(t, lang, filepath.Join(testDir, "src"), golden)
			})
		}
	}
}

func runGolden(t *testing.T, lang, srcDir string, golden goldenFile) {
	g := New()
	stats, err := NewEngine(g, WithLanguages(lang)).IndexDirectory(context.Background(), srcDir)
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
	require.NoError(t, g.Validate())

	// byName collects every record called name.
	byName := func(name string) []EntityRecord {
		var out []EntityRecord
		for _, fp := range g.FindByName(name).Sorted() {
			rec, err := g.GetNode(fp)
			require.NoError(t, err)
			out = append(out, rec)
		}
		require.NotEmpty(t, out, "no node named %q", name)
		return out
	}

	for _, def := range golden.Definitions {
		found := false
		for _, rec := range byName(def.Name) {
			if rec.Kind.String() == def.Kind && rec.Line == def.Line &&
				(def.File == "" || rec.FilePath == def.File) {
				found = true
			}
		}
		assert.True(t, found, "definition %s %s at line %d", def.Kind, def.Name, def.Line)
	}

	// related reports whether some node called name appears in the result of
	// query for some node called target.
	related := func(query func(Fingerprint) ([]EntityRecord, error), target, name string) bool {
		for _, rec := range byName(target) {
			got, err := query(rec.Fingerprint)
			require.NoError(t, err)
			for _, r := range got {
				if r.Name == name {
					return true
				}
			}
		}
		return false
	}

	for _, impl := range golden.Implementations {
		assert.True(t, related(g.FindImplementors, impl.Interface, impl.Type),
			"%s should implement %s", impl.Type, impl.Interface)
	}
	for _, call := range golden.Calls {
		assert.True(t, related(g.FindCallers, call.Callee, call.Caller),
			"%s should call %s", call.Caller, call.Callee)
	}
	for _, use := range golden.Uses {
		assert.True(t, related(g.FindUsers, use.Used, use.User),
			"%s should use %s", use.User, use.Used)
	}
}

package isg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/isg/internal/extract"
)

// skipDirs are directory names never descended into during discovery.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
}

// loadGitignore compiles root/.gitignore. A missing file yields nil.
func loadGitignore(root string) (*ignore.GitIgnore, error) {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}
	return gi, nil
}

// discover walks root and returns the supported source files it contains,
// sorted. Everything excluded reports is left out, as are symlinks.
func (e *Engine) discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if e.excludedName(d.Name(), rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 || e.excludedName(d.Name(), rel, false) {
			return nil
		}
		if _, ok := e.languageFor(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Excluded reports whether IndexDirectory would leave path out: a hidden
// segment, a vendor, node_modules, or target directory, or a match against
// the root .gitignore or WithIgnore patterns. Paths outside the indexed root
// are never excluded. The watcher uses this to drop events early.
func (e *Engine) Excluded(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	rel, inRoot := e.relPath(path)
	if !inRoot || rel == "." {
		return false
	}
	info, err := os.Stat(path)
	return e.excluded(rel, err == nil && info.IsDir())
}

// excluded applies the discovery rules to a root-relative slash path,
// checking every ancestor directory so files inside a skipped directory are
// caught without a walk. Callers hold e.mu.
func (e *Engine) excluded(rel string, isDir bool) bool {
	segs := strings.Split(rel, "/")
	for i := range segs[:len(segs)-1] {
		if e.excludedName(segs[i], strings.Join(segs[:i+1], "/"), true) {
			return true
		}
	}
	return e.excludedName(segs[len(segs)-1], rel, isDir)
}

// excludedName applies the discovery rules to a single entry.
func (e *Engine) excludedName(name, rel string, isDir bool) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if isDir {
		return skipDirs[name] || e.ignored(rel+"/")
	}
	return e.ignored(rel)
}

func (e *Engine) ignored(rel string) bool {
	if e.gitignore != nil && e.gitignore.MatchesPath(rel) {
		return true
	}
	return e.ignore != nil && e.ignore.MatchesPath(rel)
}

// languageFor reports the language of path if it is supported and enabled.
func (e *Engine) languageFor(path string) (string, bool) {
	lang, ok := extract.LanguageForFile(path)
	if !ok {
		return "", false
	}
	if e.languages != nil && !e.languages[lang] {
		return "", false
	}
	return lang, true
}

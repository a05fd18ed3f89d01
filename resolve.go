package isg

import (
	"path"

	"github.com/jward/isg/internal/extract"
)

// candidate is a declaration a reference may resolve to.
type candidate struct {
	fp   Fingerprint
	kind extract.Kind
	file string
	dir  string
	lang string
}

// symbolTable indexes the declarations of every extracted file by name.
type symbolTable struct {
	byName map[string][]candidate
}

func (e *Engine) symbols() *symbolTable {
	t := &symbolTable{byName: make(map[string][]candidate)}
	for _, p := range e.sortedPaths() {
		f := e.files[p].extract
		for _, ent := range f.Entities {
			t.byName[ent.Name] = append(t.byName[ent.Name], candidate{
				fp:   FromSignature(ent.Signature),
				kind: ent.Kind,
				file: f.Path,
				dir:  path.Dir(f.Path),
				lang: f.Language,
			})
		}
	}
	return t
}

// lookup resolves name from a reference site. Only candidates of the same
// language and an acceptable kind qualify; of those, the ones in the same
// file win, then the ones in the same directory, else all of them.
func (t *symbolTable) lookup(name, lang, file string, kinds ...extract.Kind) []Fingerprint {
	var sameFile, sameDir, all []Fingerprint
	dir := path.Dir(file)
	for _, c := range t.byName[name] {
		if c.lang != lang || !kindIn(c.kind, kinds) {
			continue
		}
		all = append(all, c.fp)
		if c.dir == dir {
			sameDir = append(sameDir, c.fp)
		}
		if c.file == file {
			sameFile = append(sameFile, c.fp)
		}
	}
	switch {
	case len(sameFile) > 0:
		return sameFile
	case len(sameDir) > 0:
		return sameDir
	default:
		return all
	}
}

func kindIn(k extract.Kind, kinds []extract.Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// targetKinds lists the entity kinds a relation may point at.
func targetKinds(k extract.RelKind) []extract.Kind {
	switch k {
	case extract.RelCalls:
		return []extract.Kind{extract.KindFunction}
	case extract.RelImplements:
		return []extract.Kind{extract.KindTrait}
	default:
		return []extract.Kind{extract.KindStruct, extract.KindTrait}
	}
}

// desiredEdges maps source → target → kind.
type desiredEdges map[Fingerprint]map[Fingerprint]RelationKind

func (d desiredEdges) add(from, to Fingerprint, kind RelationKind) {
	if from == to && kind != RelationCalls {
		return
	}
	targets, ok := d[from]
	if !ok {
		targets = make(map[Fingerprint]RelationKind)
		d[from] = targets
	}
	if prev, ok := targets[to]; ok && relationRank[prev] >= relationRank[kind] {
		return
	}
	targets[to] = kind
}

// resolve recomputes the relations of every extracted file and brings the
// graph's outgoing edges of those files' entities in line with them: missing
// edges are upserted and edges no longer produced are removed. Returns the
// number of edges upserted.
func (e *Engine) resolve() int {
	table := e.symbols()
	want := make(desiredEdges)

	for _, p := range e.sortedPaths() {
		f := e.files[p].extract
		for _, ref := range f.References {
			kind := relationKind(ref.Kind)
			targets := table.lookup(ref.Target, f.Language, f.Path, targetKinds(ref.Kind)...)
			if len(targets) == 0 {
				continue
			}
			var sources []Fingerprint
			if ref.From != "" {
				sources = []Fingerprint{FromSignature(ref.From)}
			} else {
				sources = table.lookup(ref.FromName, f.Language, f.Path, extract.KindStruct)
			}
			for _, from := range sources {
				for _, to := range targets {
					want.add(from, to, kind)
				}
			}
		}
	}
	e.structuralImplements(want)

	upserted := 0
	applied := make(FingerprintSet)
	for _, p := range e.sortedPaths() {
		for _, ent := range e.files[p].extract.Entities {
			from := FromSignature(ent.Signature)
			if applied.Has(from) {
				continue
			}
			applied[from] = struct{}{}
			targets := want[from]
			for _, rel := range e.graph.outgoing(from) {
				if _, keep := targets[rel.To]; !keep {
					_, _ = e.graph.RemoveEdge(from, rel.To)
				}
			}
			for to, kind := range targets {
				if err := e.graph.UpsertEdge(from, to, kind); err != nil {
					e.logger.Warn("drop relation", "from", from, "to", to, "kind", kind, "error", err)
					continue
				}
				upserted++
			}
		}
	}
	return upserted
}

// structuralImplements adds Implements edges for Go, where implementation is
// implicit: a named type implements an interface declared in the same
// directory when its methods cover every method the interface requires.
func (e *Engine) structuralImplements(want desiredEdges) {
	type goDir struct {
		methods map[string]map[string]bool // receiver → method names
		types   []extract.Entity
		traits  []extract.Entity
	}
	dirs := make(map[string]*goDir)

	for _, p := range e.sortedPaths() {
		f := e.files[p].extract
		if f.Language != "go" {
			continue
		}
		dir := path.Dir(f.Path)
		d, ok := dirs[dir]
		if !ok {
			d = &goDir{methods: make(map[string]map[string]bool)}
			dirs[dir] = d
		}
		for _, ent := range f.Entities {
			switch {
			case ent.Kind == extract.KindTrait:
				d.traits = append(d.traits, ent)
			case ent.Kind == extract.KindStruct:
				d.types = append(d.types, ent)
			case ent.Receiver != "":
				if d.methods[ent.Receiver] == nil {
					d.methods[ent.Receiver] = make(map[string]bool)
				}
				d.methods[ent.Receiver][ent.Name] = true
			}
		}
	}

	for _, d := range dirs {
		for _, iface := range d.traits {
			if len(iface.Methods) == 0 {
				continue
			}
			for _, typ := range d.types {
				if covers(d.methods[typ.Name], iface.Methods) {
					want.add(FromSignature(typ.Signature), FromSignature(iface.Signature), RelationImplements)
				}
			}
		}
	}
}

func covers(have map[string]bool, need []string) bool {
	for _, m := range need {
		if !have[m] {
			return false
		}
	}
	return true
}

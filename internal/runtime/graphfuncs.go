package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/isg"
)

// Graph host functions. Entities cross into Risor as maps with the keys
// fingerprint, kind, name, signature, file_path and line; fingerprints are
// hex strings. Any argument naming an entity accepts a hex fingerprint or a
// unique name.

func makeNodeCountFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("node_count", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("node_count", 0, len(args))
		}
		return object.NewInt(int64(g.NodeCount()))
	})
}

func makeEdgeCountFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("edge_count", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("edge_count", 0, len(args))
		}
		return object.NewInt(int64(g.EdgeCount()))
	})
}

// fingerprint(signature) → hex string
func makeFingerprintFn() *object.Builtin {
	return object.NewBuiltin("fingerprint", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("fingerprint", 1, len(args))
		}
		sig, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("fingerprint: expected string, got %s", args[0].Type())
		}
		return object.NewString(isg.FromSignature(sig.Value()).String())
	})
}

// lookup(ref) → hex string
func makeLookupFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("lookup", func(ctx context.Context, args ...object.Object) object.Object {
		fp, errObj := entityArg("lookup", g, args)
		if errObj != nil {
			return errObj
		}
		return object.NewString(fp.String())
	})
}

// node(ref) → map
func makeNodeFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("node", func(ctx context.Context, args ...object.Object) object.Object {
		fp, errObj := entityArg("node", g, args)
		if errObj != nil {
			return errObj
		}
		rec, err := g.GetNode(fp)
		if err != nil {
			return object.Errorf("node: %v", err)
		}
		return recordToMap(rec)
	})
}

// nodes() → list of every entity, ordered by fingerprint
func makeNodesFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("nodes", 0, len(args))
		}
		return recordsToList(g.Export().Nodes)
	})
}

// find(name) → list of entities with that name
func makeFindFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("find", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("find", 1, len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("find: expected string, got %s", args[0].Type())
		}
		return setToList(g, g.FindByName(name.Value()))
	})
}

// file_nodes(path) → list of entities declared in path
func makeFileNodesFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("file_nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("file_nodes", 1, len(args))
		}
		path, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("file_nodes: expected string, got %s", args[0].Type())
		}
		return setToList(g, g.FindByFile(path.Value()))
	})
}

// files() → list of file paths
func makeFilesFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		paths := g.Files()
		items := make([]object.Object, len(paths))
		for i, p := range paths {
			items[i] = object.NewString(p)
		}
		return object.NewList(items)
	})
}

// callers/callees/users/implementors(ref) → list of entities
func makeRelationFn(name string, g *isg.Graph, query func(isg.Fingerprint) ([]isg.EntityRecord, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		fp, errObj := entityArg(name, g, args)
		if errObj != nil {
			return errObj
		}
		recs, err := query(fp)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return recordsToList(recs)
	})
}

// blast_radius(ref) → sorted list of hex fingerprints
func makeBlastRadiusFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("blast_radius", func(ctx context.Context, args ...object.Object) object.Object {
		fp, errObj := entityArg("blast_radius", g, args)
		if errObj != nil {
			return errObj
		}
		set, err := g.CalculateBlastRadius(fp)
		if err != nil {
			return object.Errorf("blast_radius: %v", err)
		}
		return fingerprintsToList(set.Sorted())
	})
}

// cycles() → list of lists of hex fingerprints
func makeCyclesFn(g *isg.Graph) *object.Builtin {
	return object.NewBuiltin("cycles", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("cycles", 0, len(args))
		}
		comps := g.FindCycles()
		items := make([]object.Object, len(comps))
		for i, comp := range comps {
			items[i] = fingerprintsToList(comp)
		}
		return object.NewList(items)
	})
}

// --- Conversion helpers ---

func entityArg(name string, g *isg.Graph, args []object.Object) (isg.Fingerprint, object.Object) {
	if len(args) != 1 {
		return 0, object.NewArgsError(name, 1, len(args))
	}
	ref, ok := args[0].(*object.String)
	if !ok {
		return 0, object.Errorf("%s: expected string, got %s", name, args[0].Type())
	}
	fp, err := g.Lookup(ref.Value())
	if err != nil {
		return 0, object.Errorf("%s: %v", name, err)
	}
	return fp, nil
}

func recordToMap(rec isg.EntityRecord) object.Object {
	return object.NewMap(map[string]object.Object{
		"fingerprint": object.NewString(rec.Fingerprint.String()),
		"kind":        object.NewString(rec.Kind.String()),
		"name":        object.NewString(rec.Name),
		"signature":   object.NewString(rec.Signature),
		"file_path":   object.NewString(rec.FilePath),
		"line":        object.NewInt(int64(rec.Line)),
	})
}

func recordsToList(recs []isg.EntityRecord) object.Object {
	items := make([]object.Object, len(recs))
	for i, rec := range recs {
		items[i] = recordToMap(rec)
	}
	return object.NewList(items)
}

// setToList materializes a fingerprint set as records ordered by fingerprint.
// Members removed concurrently are skipped.
func setToList(g *isg.Graph, set isg.FingerprintSet) object.Object {
	var recs []isg.EntityRecord
	for _, fp := range set.Sorted() {
		if rec, err := g.GetNode(fp); err == nil {
			recs = append(recs, rec)
		}
	}
	return recordsToList(recs)
}

func fingerprintsToList(fps []isg.Fingerprint) object.Object {
	items := make([]object.Object, len(fps))
	for i, fp := range fps {
		items[i] = object.NewString(fp.String())
	}
	return object.NewList(items)
}

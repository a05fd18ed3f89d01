package extract

import (
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// goBuiltinTypes are predeclared identifiers that never resolve to a
// declaration in the indexed tree.
var goBuiltinTypes = map[string]bool{
	"any": true, "bool": true, "byte": true, "comparable": true,
	"complex64": true, "complex128": true, "error": true,
	"float32": true, "float64": true, "int": true, "int8": true,
	"int16": true, "int32": true, "int64": true, "rune": true,
	"string": true, "uint": true, "uint8": true, "uint16": true,
	"uint32": true, "uint64": true, "uintptr": true,
}

func extractGo(b *builder, root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_clause":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if c := n.NamedChild(j); c.Type() == "package_identifier" {
					b.file.Package = b.text(c)
				}
			}
		case "function_declaration":
			goFunction(b, n, "")
		case "method_declaration":
			goFunction(b, n, goReceiverType(b, n.ChildByFieldName("receiver")))
		case "type_declaration":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if spec := n.NamedChild(j); spec.Type() == "type_spec" {
					goTypeSpec(b, spec)
				}
			}
		}
	}
}

func goFunction(b *builder, n *sitter.Node, recv string) {
	name := b.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	qualified := name
	switch {
	case recv != "":
		qualified = recv + "." + name
	case name == "init":
		// a package may declare any number of init functions, one per file
		qualified = name + "#" + path.Base(b.file.Path)
	}
	params := n.ChildByFieldName("parameters")
	result := n.ChildByFieldName("result")
	sig := b.signature(KindFunction, qualified, goShape(b, params, result))
	b.entity(Entity{
		Kind:      KindFunction,
		Name:      name,
		Signature: sig,
		Line:      line(n),
		Receiver:  recv,
	})

	goTypeUses(b, sig, params)
	goTypeUses(b, sig, result)
	body := n.ChildByFieldName("body")
	goTypeUses(b, sig, body)
	goCalls(b, sig, body)
}

func goTypeSpec(b *builder, spec *sitter.Node) {
	name := b.text(spec.ChildByFieldName("name"))
	typ := spec.ChildByFieldName("type")
	if name == "" || typ == nil {
		return
	}

	if typ.Type() == "interface_type" {
		sig := b.signature(KindTrait, name, "")
		var methods []string
		for i := 0; i < int(typ.NamedChildCount()); i++ {
			m := typ.NamedChild(i)
			if m.Type() != "method_elem" && m.Type() != "method_spec" {
				continue
			}
			methods = append(methods, b.text(m.ChildByFieldName("name")))
			goTypeUses(b, sig, m.ChildByFieldName("parameters"))
			goTypeUses(b, sig, m.ChildByFieldName("result"))
		}
		sort.Strings(methods)
		b.entity(Entity{Kind: KindTrait, Name: name, Signature: sig, Line: line(spec), Methods: methods})
		return
	}

	// Structs and every other named type are data: they carry methods and
	// can be implementors.
	sig := b.signature(KindStruct, name, "")
	b.entity(Entity{Kind: KindStruct, Name: name, Signature: sig, Line: line(spec)})
	goTypeUses(b, sig, typ)
}

// goReceiverType extracts the bare type name from a receiver list such as
// "(s *Stack[T])".
func goReceiverType(b *builder, recv *sitter.Node) string {
	var name string
	walk(recv, func(n *sitter.Node) bool {
		if name != "" {
			return false
		}
		if n.Type() == "type_identifier" {
			name = b.text(n)
			return false
		}
		return true
	})
	return name
}

// goShape renders the parameter types, and the result when present, with
// parameter names dropped: "(int,string) error".
func goShape(b *builder, params, result *sitter.Node) string {
	var types []string
	for i := 0; params != nil && i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		typ := collapse(b.text(p.ChildByFieldName("type")))
		switch p.Type() {
		case "variadic_parameter_declaration":
			types = append(types, "..."+typ)
		case "parameter_declaration":
			names := 0
			for j := 0; j < int(p.NamedChildCount()); j++ {
				if p.NamedChild(j).Type() == "identifier" {
					names++
				}
			}
			if names == 0 {
				names = 1
			}
			for ; names > 0; names-- {
				types = append(types, typ)
			}
		}
	}
	shape := "(" + strings.Join(types, ",") + ")"
	if result != nil {
		shape += " " + collapse(b.text(result))
	}
	return shape
}

// goTypeUses records a Uses reference for every named type mentioned under n.
// For qualified types (pkg.Type) the bare type name is the target.
func goTypeUses(b *builder, from string, n *sitter.Node) {
	walk(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "qualified_type":
			b.ref(Reference{From: from, Target: b.text(c.ChildByFieldName("name")), Kind: RelUses, Line: line(c)})
			return false
		case "type_identifier":
			if t := b.text(c); !goBuiltinTypes[t] {
				b.ref(Reference{From: from, Target: t, Kind: RelUses, Line: line(c)})
			}
		}
		return true
	})
}

// goCalls records a Calls reference for every call expression under body.
// Method and package-qualified calls resolve by their final identifier.
func goCalls(b *builder, from string, body *sitter.Node) {
	walk(body, func(c *sitter.Node) bool {
		if c.Type() != "call_expression" {
			return true
		}
		fn := c.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		var target string
		switch fn.Type() {
		case "identifier":
			target = b.text(fn)
		case "selector_expression":
			target = b.text(fn.ChildByFieldName("field"))
		}
		b.ref(Reference{From: from, Target: target, Kind: RelCalls, Line: line(c)})
		return true
	})
}

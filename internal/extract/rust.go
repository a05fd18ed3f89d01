package extract

import (
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// extractRust walks one declaration list. mod is the inline module path the
// list belongs to; nested mod blocks extend it.
func extractRust(b *builder, list *sitter.Node, mod []string) {
	for i := 0; i < int(list.NamedChildCount()); i++ {
		n := list.NamedChild(i)
		switch n.Type() {
		case "function_item":
			rustFunction(b, n, mod, "", "")
		case "struct_item", "enum_item", "union_item", "type_item":
			rustData(b, n, mod)
		case "trait_item":
			rustTrait(b, n, mod)
		case "impl_item":
			rustImpl(b, n, mod)
		case "mod_item":
			if body := n.ChildByFieldName("body"); body != nil {
				extractRust(b, body, append(mod[:len(mod):len(mod)], b.text(n.ChildByFieldName("name"))))
			}
		}
	}
}

// rustFileModule returns the module path a file contributes on top of its
// directory: "lexer" for lexer.rs, nothing for lib.rs, main.rs and mod.rs,
// which hold the directory's own module.
func rustFileModule(file string) []string {
	base := strings.TrimSuffix(path.Base(file), path.Ext(file))
	switch base {
	case "lib", "main", "mod", "":
		return nil
	}
	return []string{base}
}

func rustQualify(mod []string, name string) string {
	if len(mod) == 0 {
		return name
	}
	return strings.Join(mod, "::") + "::" + name
}

// rustFunction records a free function, an inherent method (owner set), a
// trait method implementation (owner and trait set) or a provided trait method
// (owner is the trait itself).
func rustFunction(b *builder, n *sitter.Node, mod []string, owner, trait string) {
	name := b.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	qualified := name
	switch {
	case trait != "":
		qualified = "<" + owner + " as " + trait + ">::" + name
	case owner != "":
		qualified = owner + "::" + name
	}
	params := n.ChildByFieldName("parameters")
	ret := n.ChildByFieldName("return_type")
	sig := b.signature(KindFunction, rustQualify(mod, qualified), rustShape(b, params, ret))
	b.entity(Entity{
		Kind:      KindFunction,
		Name:      name,
		Signature: sig,
		Line:      line(n),
		Receiver:  owner,
	})

	rustTypeUses(b, sig, params)
	rustTypeUses(b, sig, ret)
	body := n.ChildByFieldName("body")
	rustTypeUses(b, sig, body)
	rustCalls(b, sig, body)
}

func rustData(b *builder, n *sitter.Node, mod []string) {
	name := b.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	sig := b.signature(KindStruct, rustQualify(mod, name), "")
	b.entity(Entity{Kind: KindStruct, Name: name, Signature: sig, Line: line(n)})
	switch n.Type() {
	case "type_item":
		rustTypeUses(b, sig, n.ChildByFieldName("type"))
	default:
		rustTypeUses(b, sig, n.ChildByFieldName("body"))
	}
}

func rustTrait(b *builder, n *sitter.Node, mod []string) {
	name := b.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	sig := b.signature(KindTrait, rustQualify(mod, name), "")
	body := n.ChildByFieldName("body")

	var methods []string
	for i := 0; body != nil && i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		switch item.Type() {
		case "function_signature_item":
			methods = append(methods, b.text(item.ChildByFieldName("name")))
			rustTypeUses(b, sig, item.ChildByFieldName("parameters"))
			rustTypeUses(b, sig, item.ChildByFieldName("return_type"))
		case "function_item":
			methods = append(methods, b.text(item.ChildByFieldName("name")))
			rustFunction(b, item, mod, name, "")
		}
	}
	sort.Strings(methods)
	b.entity(Entity{Kind: KindTrait, Name: name, Signature: sig, Line: line(n), Methods: methods})
}

func rustImpl(b *builder, n *sitter.Node, mod []string) {
	owner := rustTypeName(b, n.ChildByFieldName("type"))
	if owner == "" {
		return
	}
	trait := rustTypeName(b, n.ChildByFieldName("trait"))
	if trait != "" {
		b.ref(Reference{FromName: owner, Target: trait, Kind: RelImplements, Line: line(n)})
	}
	body := n.ChildByFieldName("body")
	for i := 0; body != nil && i < int(body.NamedChildCount()); i++ {
		if item := body.NamedChild(i); item.Type() == "function_item" {
			rustFunction(b, item, mod, owner, trait)
		}
	}
}

// rustTypeName reduces a type node such as Vec<T>, crate::a::B or &B to the
// bare name of the outer type.
func rustTypeName(b *builder, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "type_identifier", "identifier":
		return b.text(n)
	case "scoped_type_identifier", "scoped_identifier":
		return b.text(n.ChildByFieldName("name"))
	case "generic_type":
		return rustTypeName(b, n.ChildByFieldName("type"))
	case "reference_type", "pointer_type":
		return rustTypeName(b, n.ChildByFieldName("type"))
	}
	return ""
}

// rustShape renders "(T1,T2) -> R" with parameter patterns dropped. Receivers
// keep their form (self, &self, &mut self) since it is part of the contract.
func rustShape(b *builder, params, ret *sitter.Node) string {
	var parts []string
	for i := 0; params != nil && i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "self_parameter":
			parts = append(parts, collapse(b.text(p)))
		case "parameter":
			parts = append(parts, collapse(b.text(p.ChildByFieldName("type"))))
		case "variadic_parameter":
			parts = append(parts, "...")
		}
	}
	shape := "(" + strings.Join(parts, ",") + ")"
	if ret != nil {
		shape += " -> " + collapse(b.text(ret))
	}
	return shape
}

func rustTypeUses(b *builder, from string, n *sitter.Node) {
	walk(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "scoped_type_identifier":
			b.ref(Reference{From: from, Target: b.text(c.ChildByFieldName("name")), Kind: RelUses, Line: line(c)})
			return false
		case "type_identifier":
			if t := b.text(c); t != "Self" {
				b.ref(Reference{From: from, Target: t, Kind: RelUses, Line: line(c)})
			}
		}
		return true
	})
}

// rustCalls records plain, method and path calls. Macro invocations are not
// calls.
func rustCalls(b *builder, from string, body *sitter.Node) {
	walk(body, func(c *sitter.Node) bool {
		switch c.Type() {
		case "macro_invocation":
			return false
		case "call_expression":
		default:
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
		case "field_expression":
			target = b.text(fn.ChildByFieldName("field"))
		case "scoped_identifier":
			target = b.text(fn.ChildByFieldName("name"))
		case "generic_function":
			target = rustTypeName(b, fn.ChildByFieldName("function"))
		}
		b.ref(Reference{From: from, Target: target, Kind: RelCalls, Line: line(c)})
		return true
	})
}

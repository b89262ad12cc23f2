package yangbind

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func childNames(t *testing.T, n DataNode) []string {
	t.Helper()
	var out []string
	for c, err := range n.Children() {
		if err != nil {
			t.Fatalf("Children: %v", err)
		}
		name, err := c.Name()
		if err != nil {
			t.Fatalf("Name: %v", err)
		}
		out = append(out, name)
	}
	return out
}

func findOne(t *testing.T, tree DataNode, xpath string) DataNode {
	t.Helper()
	found, err := tree.FindPath(xpath)
	if err != nil {
		t.Fatalf("FindPath(%q) failed: %v", xpath, err)
	}
	if len(found) != 1 {
		t.Fatalf("FindPath(%q) found %d nodes, want 1", xpath, len(found))
	}
	return found[0]
}

func termValue(t *testing.T, tree DataNode, xpath string) string {
	t.Helper()
	term, ok := findOne(t, tree, xpath).(*TermNode)
	if !ok {
		t.Fatalf("%s is not a term node", xpath)
	}
	v, err := term.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	return v.Canonical
}

func TestJSONRoundTrip(t *testing.T) {
	ctx, _ := newTestContext(t)
	in := `{"example:conf":{"x":5,"pet":"example:dog","tags":["b","a"],"item":[{"id":1,"val":"one"}]}}`
	tree := parseJSON(t, ctx, in)
	defer tree.FreeAll()

	out, err := tree.Print(FormatJSON, PrintWithSiblings|PrintShrink)
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if string(out) != in {
		t.Errorf("JSON output:\n got %s\nwant %s", out, in)
	}

	again := parseJSON(t, ctx, string(out))
	defer again.FreeAll()
	eq, err := Equal(tree, again, 0)
	if err != nil || !eq {
		t.Errorf("Equal after round trip = %v, %v", eq, err)
	}
}

func TestPrintOptions(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":5}}`)
	defer tree.FreeAll()

	tests := []struct {
		name string
		opts PrintOptions
		want string
	}{
		{"explicit", 0, `{"example:conf":{"x":5}}`},
		{"unqualified", PrintUnqualified, `{"conf":{"x":5}}`},
		{"all", PrintWDAll, `{"example:conf":{"x":5,"name":"dflt"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tree.Print(FormatJSON, tt.opts|PrintWithSiblings|PrintShrink)
			if err != nil {
				t.Fatalf("Print failed: %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("got %s, want %s", out, tt.want)
			}
		})
	}

	_, err := tree.Print(FormatJSON, PrintWDAll|PrintWDTrim)
	if !errors.Is(err, ErrInvalidArg) {
		t.Errorf("two with-defaults modes: error = %v, want ErrInvalidArg", err)
	}
}

func TestFormatConversion(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":5,"pet":"example:dog"}}`)
	defer tree.FreeAll()

	for _, format := range []DataFormat{FormatXML, FormatLYB} {
		t.Run(format.String(), func(t *testing.T) {
			out, err := tree.Print(format, PrintWithSiblings)
			if err != nil {
				t.Fatalf("Print failed: %v", err)
			}
			back, err := ctx.ParseData(out, format, 0, 0)
			if err != nil {
				t.Fatalf("ParseData failed: %v", err)
			}
			defer back.FreeAll()
			if eq, _ := Equal(tree, back, 0); !eq {
				t.Errorf("tree changed across %s", format)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree, err := ctx.ParseData(nil, FormatJSON, ParseOnly, 0)
	if err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}
	if tree != nil {
		t.Errorf("empty input returned %v, want nil", tree)
	}
}

func TestParseErrors(t *testing.T) {
	ctx, _ := newTestContext(t)

	_, err := ctx.ParseData([]byte(`{"example:conf":`), FormatJSON, 0, 0)
	if !errors.Is(err, ErrParse) {
		t.Errorf("truncated JSON: error = %v, want ErrParse", err)
	}
	_, err = ctx.ParseData([]byte(`{"example:conf":{"x":300}}`), FormatJSON, 0, 0)
	if err == nil {
		t.Error("out-of-range value must fail")
	}
}

func TestVariants(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":5,"item":[{"id":1}]},"example:blob":{"example:conf":{"x":1}}}`)
	defer tree.FreeAll()

	if _, ok := tree.(*InnerNode); !ok {
		t.Errorf("conf is %T, want *InnerNode", tree)
	}
	if _, ok := findOne(t, tree, "/example:conf/x").(*TermNode); !ok {
		t.Error("x must be a *TermNode")
	}
	blob, ok := findOne(t, tree, "/example:blob").(*AnyNode)
	if !ok {
		t.Fatal("blob must be an *AnyNode")
	}
	v, err := blob.Value()
	if err != nil {
		t.Fatalf("any value: %v", err)
	}
	if v.Type != AnyJSON || !strings.Contains(v.String, `"x":1`) {
		t.Errorf("any value = %+v, want the JSON text", v)
	}
}

func TestAnyDataTree(t *testing.T) {
	ctx, mod := newTestContext(t)
	content := parseJSON(t, ctx, `{"example:conf":{"x":1}}`)
	defer content.FreeAll()

	blob, err := ctx.NewAny(mod, "blob", AnyValue{Type: AnyDataTree, Tree: content})
	if err != nil {
		t.Fatalf("NewAny failed: %v", err)
	}
	defer blob.FreeAll()

	// The caller keeps its tree.
	if _, err := content.Path(); err != nil {
		t.Errorf("tree unusable after NewAny: %v", err)
	}

	v, err := blob.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v.Type != AnyDataTree || v.Tree == nil {
		t.Fatalf("any value = %+v, want a tree", v)
	}
	defer v.Tree.FreeAll()
	if v.Tree == content {
		t.Error("Value must return a copy")
	}
	if got := termValue(t, v.Tree, "/example:conf/x"); got != "1" {
		t.Errorf("x in the copy = %q", got)
	}
}

func TestWrapperIdentity(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":5}}`)
	defer tree.FreeAll()

	a := findOne(t, tree, "/example:conf/x")
	b := findOne(t, tree, "/example:conf/x")
	if a != b {
		t.Error("two lookups of one node returned different wrappers")
	}
	p, err := a.Parent()
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if p != tree {
		t.Error("parent wrapper differs from the tree wrapper")
	}
}

func TestBuildTree(t *testing.T) {
	ctx, mod := newTestContext(t)

	conf, err := ctx.NewInner(mod, "conf")
	if err != nil {
		t.Fatalf("NewInner failed: %v", err)
	}
	defer conf.FreeAll()

	if _, err := conf.NewTerm(nil, "x", "7"); err != nil {
		t.Fatalf("NewTerm failed: %v", err)
	}
	if _, err := conf.NewTerm(nil, "x", "300"); !errors.Is(err, ErrValidation) {
		t.Errorf("NewTerm(300) error = %v, want ErrValidation", err)
	}
	if _, err := conf.NewTerm(nil, "nope", "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NewTerm(nope) error = %v, want ErrNotFound", err)
	}
	item, err := conf.NewList(nil, "item", "1")
	if err != nil {
		t.Fatalf("NewList failed: %v", err)
	}
	if _, err := item.NewTerm(nil, "val", "one"); err != nil {
		t.Fatalf("NewTerm(val) failed: %v", err)
	}

	path, _ := item.Path()
	if path != "/example:conf/item[id='1']" {
		t.Errorf("Path = %q", path)
	}
	keys, err := item.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != (KeyValue{Name: "id", Value: "1"}) {
		t.Errorf("Keys = %v", keys)
	}
	if got := childNames(t, conf); !slices.Equal(got, []string{"x", "item"}) {
		t.Errorf("children = %v", got)
	}

	out, err := conf.Print(FormatJSON, PrintShrink)
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	want := `{"example:conf":{"x":7,"item":[{"id":1,"val":"one"}]}}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestNewTopLevelRequiresModule(t *testing.T) {
	ctx, _ := newTestContext(t)
	if _, err := ctx.NewInner(nil, "conf"); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("NewInner(nil) error = %v, want ErrInvalidArg", err)
	}
}

func TestRPCOutputChildren(t *testing.T) {
	ctx, mod := newTestContext(t)

	rpc, err := ctx.NewInner(mod, "reset")
	if err != nil {
		t.Fatalf("NewInner(reset) failed: %v", err)
	}
	defer rpc.FreeAll()
	if _, err := rpc.NewTerm(nil, "ok", "true"); err != nil {
		t.Errorf("output leaf: %v", err)
	}
	if _, err := rpc.NewTerm(nil, "delay", "5"); err != nil {
		t.Errorf("input leaf: %v", err)
	}
}

func TestSetValue(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":5,"item":[{"id":1}]}}`)
	defer tree.FreeAll()

	x := findOne(t, tree, "/example:conf/x").(*TermNode)
	changed, err := x.SetValue("6")
	if err != nil || !changed {
		t.Fatalf("SetValue(6) = %v, %v", changed, err)
	}
	changed, err = x.SetValue("6")
	if err != nil || changed {
		t.Errorf("SetValue(6) again = %v, %v; want false, nil", changed, err)
	}
	if v, _ := x.Value(); v.Uint != 6 || v.Canonical != "6" {
		t.Errorf("value = %+v", v)
	}

	id := findOne(t, tree, "/example:conf/item[id='1']/id").(*TermNode)
	if _, err := id.SetValue("2"); err == nil {
		t.Error("changing a list key must fail")
	}
}

func TestUnlinkThenFree(t *testing.T) {
	ctx, mod := newTestContext(t)
	conf, err := ctx.NewInner(mod, "conf")
	if err != nil {
		t.Fatalf("NewInner failed: %v", err)
	}
	defer conf.FreeAll()

	var tags []*TermNode
	for _, v := range []string{"a", "b", "c", "d"} {
		n, err := conf.NewTerm(nil, "tags", v)
		if err != nil {
			t.Fatalf("NewTerm(%s) failed: %v", v, err)
		}
		tags = append(tags, n)
	}

	if err := tags[1].Unlink(); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if p, _ := tags[1].Parent(); p != nil {
		t.Error("unlinked node keeps its parent")
	}
	if err := tags[1].Free(); err != nil {
		t.Fatalf("Free after Unlink failed: %v", err)
	}
	if err := tags[3].Free(); err != nil {
		t.Fatalf("Free of a linked node failed: %v", err)
	}

	got := childNames(t, conf)
	if len(got) != 2 {
		t.Fatalf("children = %v, want 2", got)
	}
	var values []string
	for c := range conf.Children() {
		v, _ := c.(*TermNode).Value()
		values = append(values, v.Canonical)
	}
	if !slices.Equal(values, []string{"a", "c"}) {
		t.Errorf("values = %v, want [a c]", values)
	}

	for _, n := range []*TermNode{tags[1], tags[3]} {
		if _, err := n.Path(); !errors.Is(err, ErrFreed) {
			t.Errorf("freed node: error = %v, want ErrFreed", err)
		}
		if err := n.Free(); !errors.Is(err, ErrFreed) {
			t.Errorf("double free: error = %v, want ErrFreed", err)
		}
	}
}

func TestFreeAllInvalidatesDescendants(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":5}}`)
	x := findOne(t, tree, "/example:conf/x")

	if err := tree.FreeAll(); err != nil {
		t.Fatalf("FreeAll failed: %v", err)
	}
	if _, err := x.Name(); !errors.Is(err, ErrFreed) {
		t.Errorf("descendant after FreeAll: error = %v, want ErrFreed", err)
	}
}

func TestListKeysStayWithTheirList(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"item":[{"id":1,"val":"a"}]}}`)
	defer tree.FreeAll()

	id := findOne(t, tree, "/example:conf/item[id='1']/id")
	for name, err := range map[string]error{
		"Unlink": id.Unlink(),
		"Free":   id.Free(),
	} {
		if !errors.Is(err, ErrInvalidArg) {
			t.Errorf("%s of a key: error = %v, want ErrInvalidArg", name, err)
		}
	}
	if _, err := id.Path(); err != nil {
		t.Errorf("key unusable after refused free: %v", err)
	}

	val := findOne(t, tree, "/example:conf/item[id='1']/val")
	if err := val.InsertBefore(id); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("moving a key: error = %v, want ErrInvalidArg", err)
	}
}

func TestMerge(t *testing.T) {
	ctx, _ := newTestContext(t)
	target := parseJSON(t, ctx, `{"example:conf":{"x":1,"item":[{"id":1,"val":"a"}]}}`)
	defer target.FreeAll()
	source := parseJSON(t, ctx, `{"example:conf":{"x":2,"item":[{"id":1,"val":"b"},{"id":2}]}}`)
	defer source.FreeAll()

	if _, err := target.Merge(source, 0); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if got := termValue(t, target, "/example:conf/x"); got != "2" {
		t.Errorf("x = %q, want 2", got)
	}
	if got := termValue(t, target, "/example:conf/item[id='1']/val"); got != "b" {
		t.Errorf("val = %q, want b", got)
	}
	if got := termValue(t, source, "/example:conf/x"); got != "2" {
		t.Errorf("source changed: x = %q", got)
	}

	if _, err := target.Merge(target, 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("self merge: error = %v, want ErrInvalidArg", err)
	}
	if _, err := target.Merge(nil, 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("nil merge: error = %v, want ErrInvalidArg", err)
	}
}

func TestMergeDestructConsumesSource(t *testing.T) {
	ctx, _ := newTestContext(t)
	target := parseJSON(t, ctx, `{"example:conf":{"x":1}}`)
	defer target.FreeAll()
	source := parseJSON(t, ctx, `{"example:conf":{"tags":["z"]}}`)

	if _, err := target.Merge(source, MergeDestruct); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if got := termValue(t, target, "/example:conf/tags"); got != "z" {
		t.Errorf("tags = %q, want z", got)
	}

	if _, err := source.Path(); !errors.Is(err, ErrConsumed) {
		t.Errorf("consumed source: error = %v, want ErrConsumed", err)
	}
	if err := source.FreeAll(); !errors.Is(err, ErrConsumed) {
		t.Errorf("freeing a consumed source: error = %v, want ErrConsumed", err)
	}
	if _, err := target.Merge(source, 0); !errors.Is(err, ErrConsumed) {
		t.Errorf("merging a consumed source: error = %v, want ErrConsumed", err)
	}
}

func TestDuplicate(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":1,"item":[{"id":1}]},"example:req":{"must-have":"y"}}`)
	defer tree.FreeAll()

	dup, err := tree.Duplicate(DupRecursive)
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}
	defer dup.FreeAll()
	if eq, _ := tree.Equal(dup, 0); !eq {
		t.Error("recursive copy differs from the original")
	}
	if next, _ := dup.NextSibling(); next != nil {
		t.Error("single copy must not have siblings")
	}

	all, err := tree.Duplicate(DupRecursive | DupWithSiblings)
	if err != nil {
		t.Fatalf("Duplicate with siblings failed: %v", err)
	}
	defer all.FreeAll()
	if eq, _ := Equal(tree, all, 0); !eq {
		t.Error("sibling copy differs from the original")
	}
}

func TestEqualAndDiff(t *testing.T) {
	ctx, _ := newTestContext(t)
	first := parseJSON(t, ctx, `{"example:conf":{"x":1,"tags":["old"]}}`)
	defer first.FreeAll()
	second := parseJSON(t, ctx, `{"example:conf":{"x":2,"item":[{"id":7}]}}`)
	defer second.FreeAll()

	if eq, _ := Equal(first, second, 0); eq {
		t.Error("different trees compare equal")
	}
	if eq, _ := Equal(nil, nil, 0); !eq {
		t.Error("two empty trees must be equal")
	}

	diff, err := Diff(first, second)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if diff == nil {
		t.Fatal("Diff returned nil for different trees")
	}
	defer diff.FreeAll()

	ops := map[string]string{}
	for c, err := range diff.Children() {
		if err != nil {
			t.Fatal(err)
		}
		name, _ := c.Name()
		meta, _ := c.Meta()
		for _, m := range meta {
			if m.Name == "operation" {
				ops[name] = m.Value
			}
		}
	}
	want := map[string]string{"x": "replace", "tags": "delete", "item": "create"}
	for name, op := range want {
		if ops[name] != op {
			t.Errorf("operation of %s = %q, want %q", name, ops[name], op)
		}
	}

	none, err := Diff(first, first)
	if err != nil || none != nil {
		t.Errorf("Diff of equal trees = %v, %v; want nil", none, err)
	}
}

func TestNewPath(t *testing.T) {
	ctx, _ := newTestContext(t)

	top, node, err := ctx.NewPath("/example:conf/item[id='3']/val", "three", 0)
	if err != nil {
		t.Fatalf("NewPath failed: %v", err)
	}
	defer top.FreeAll()
	if name, _ := top.Name(); name != "conf" {
		t.Errorf("top = %s, want conf", name)
	}
	if path, _ := node.Path(); path != "/example:conf/item[id='3']/val" {
		t.Errorf("path = %s", path)
	}

	if _, err := top.NewPath("/example:conf/item[id='3']/val", "again", 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("existing path: error = %v, want ErrInvalidArg", err)
	}
	if _, err := top.NewPath("/example:conf/item[id='3']/val", "again", NewPathUpdate); err != nil {
		t.Errorf("update: %v", err)
	}
	if got := termValue(t, top, "/example:conf/item[id='3']/val"); got != "again" {
		t.Errorf("value after update = %q", got)
	}
	if _, _, err := ctx.NewPath("/example:nothing", "", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown node: error = %v, want ErrNotFound", err)
	}
}

func TestMetadata(t *testing.T) {
	ctx, mod := newTestContext(t)
	conf, err := ctx.NewInner(mod, "conf")
	if err != nil {
		t.Fatalf("NewInner failed: %v", err)
	}
	defer conf.FreeAll()

	if err := conf.NewMeta("ietf-origin", "origin", "or:intended"); err != nil {
		t.Fatalf("NewMeta failed: %v", err)
	}
	meta, err := conf.Meta()
	if err != nil || len(meta) != 1 || meta[0].Value != "or:intended" {
		t.Fatalf("Meta = %+v, %v", meta, err)
	}
	if err := conf.RemoveMeta("ietf-origin", "origin"); err != nil {
		t.Fatalf("RemoveMeta failed: %v", err)
	}
	if err := conf.RemoveMeta("ietf-origin", "origin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveMeta: error = %v, want ErrNotFound", err)
	}
}

func TestSiblingsIteration(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree, err := ctx.ParseData([]byte(`{"example:conf":{"tags":["a","b","c"]}}`), FormatJSON, ParseOnly, 0)
	if err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}
	defer tree.FreeAll()

	b := findOne(t, tree, "/example:conf/tags[.='b']")
	var values []string
	for s, err := range b.Siblings() {
		if err != nil {
			t.Fatal(err)
		}
		if term, ok := s.(*TermNode); ok {
			v, _ := term.Value()
			values = append(values, v.Canonical)
		}
	}
	if strings.Join(values, ",") != "a,b,c" {
		t.Errorf("siblings = %v", values)
	}

	// Freeing the yielded node does not break the iteration.
	conf := findOne(t, tree, "/example:conf")
	var freed int
	for s := range conf.Children() {
		if s.Free() == nil {
			freed++
		}
	}
	if freed != 3 {
		t.Errorf("freed %d children while iterating, want 3", freed)
	}
	if got := childNames(t, conf); len(got) != 0 {
		t.Errorf("children left = %v", got)
	}
}

func TestOpaqueNodes(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree, err := ctx.ParseData([]byte(`{"example:conf":{"x":1},"unknown:thing":{"a":"b"}}`), FormatJSON, ParseOnly|ParseOpaque, 0)
	if err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}
	defer tree.FreeAll()

	var opaque *OpaqueNode
	for s := range tree.Siblings() {
		if o, ok := s.(*OpaqueNode); ok {
			opaque = o
		}
	}
	if opaque == nil {
		t.Fatal("unknown data did not become an opaque node")
	}
	if name, _ := opaque.Name(); name != "thing" {
		t.Errorf("opaque name = %q", name)
	}
	if mod, err := opaque.ModuleName(); err != nil || mod != "unknown" {
		t.Errorf("opaque module = %q, %v", mod, err)
	}
	if s, err := opaque.Schema(); err != nil || s != nil {
		t.Errorf("opaque schema = %v, %v; want nil", s, err)
	}
}

func TestValidateTree(t *testing.T) {
	ctx, _ := newTestContext(t)

	tree, err := ctx.Validate(nil, 0)
	if err != nil {
		t.Fatalf("Validate(nil) failed: %v", err)
	}
	if tree == nil {
		t.Fatal("implicit top-level container not created")
	}
	defer tree.FreeAll()
	if def, _ := tree.IsDefault(); !def {
		t.Error("implicit conf must be a default node")
	}

	built, err := ctx.ParseData([]byte(`{"example:conf":{"x":1}}`), FormatJSON, ParseOnly, 0)
	if err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}
	root, err := built.Validate(0)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	defer root.FreeAll()
	if got := termValue(t, root, "/example:conf/name"); got != "dflt" {
		t.Errorf("implicit default = %q", got)
	}
}

func TestParseOpAndValidateOp(t *testing.T) {
	ctx, _ := newTestContext(t)

	tree, op, err := ctx.ParseOp([]byte(`{"example:reset":{"delay":5}}`), FormatJSON, OpRPC, 0)
	if err != nil {
		t.Fatalf("ParseOp failed: %v", err)
	}
	defer tree.FreeAll()
	if name, _ := op.Name(); name != "reset" {
		t.Errorf("operation = %q, want reset", name)
	}
	if err := ctx.ValidateOp(op, nil, false); err != nil {
		t.Errorf("ValidateOp failed: %v", err)
	}
}

func TestParseOpWrongKind(t *testing.T) {
	ctx, _ := newTestContext(t)

	_, _, err := ctx.ParseOp([]byte(`{"example:reset":{"delay":5}}`), FormatJSON, OpNotification, 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("rpc parsed as notification: error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), `"reset"`) {
		t.Errorf("error %q does not name the operation", err)
	}
	if _, _, err := ctx.ParseOp([]byte(`{"example:alarm":{"severity":1}}`), FormatJSON, OpRPC, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("notification parsed as rpc: error = %v, want ErrValidation", err)
	}

	// the context stays usable
	tree, _, err := ctx.ParseOp([]byte(`{"example:alarm":{"severity":1}}`), FormatJSON, OpNotification, 0)
	if err != nil {
		t.Fatalf("ParseOp(notification) failed: %v", err)
	}
	tree.FreeAll()
}

func TestMergeFromSameTree(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":1},"example:req":{"must-have":"y"}}`)
	defer tree.FreeAll()
	before, err := tree.Print(FormatJSON, PrintWithSiblings)
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}

	var req DataNode
	for s := range tree.Siblings() {
		if name, _ := s.Name(); name == "req" {
			req = s
		}
	}
	if req == nil {
		t.Fatal("req not found")
	}
	x := findOne(t, tree, "/example:conf/x")

	tests := []struct {
		name           string
		target, source DataNode
		opts           MergeOptions
	}{
		{"sibling", req, tree, MergeDestruct},
		{"sibling kept", tree, req, 0},
		{"descendant", tree, x, MergeDestruct},
		{"ancestor", x, tree, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.target.Merge(tt.source, tt.opts); !errors.Is(err, ErrInvalidArg) {
				t.Errorf("error = %v, want ErrInvalidArg", err)
			}
			if _, err := tt.source.Path(); err != nil {
				t.Errorf("source unusable after a refused merge: %v", err)
			}
		})
	}

	after, err := tree.Print(FormatJSON, PrintWithSiblings)
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if string(after) != string(before) {
		t.Errorf("tree changed:\n%s\nwant:\n%s", after, before)
	}
}

func TestInsertNextToDescendant(t *testing.T) {
	ctx, _ := newTestContext(t)
	a, err := ctx.NewOpaque("a", "", "", "m")
	if err != nil {
		t.Fatalf("NewOpaque failed: %v", err)
	}
	defer a.FreeAll()
	b, err := a.NewOpaque("b", "", "", "m")
	if err != nil {
		t.Fatalf("NewOpaque failed: %v", err)
	}
	inner, err := b.NewOpaque("c", "", "", "m")
	if err != nil {
		t.Fatalf("NewOpaque failed: %v", err)
	}

	checks := []struct {
		name string
		err  error
	}{
		{"InsertBefore", b.InsertBefore(a)},
		{"InsertAfter", b.InsertAfter(a)},
		{"InsertBefore deep", inner.InsertBefore(a)},
		{"InsertSibling", func() error { _, err := inner.InsertSibling(a); return err }()},
		{"InsertChild", inner.InsertChild(a)},
	}
	for _, tt := range checks {
		if !errors.Is(tt.err, ErrInvalidArg) {
			t.Errorf("%s error = %v, want ErrInvalidArg", tt.name, tt.err)
		}
	}
	if p, err := a.Parent(); err != nil || p != nil {
		t.Errorf("a.Parent() = %v, %v; want none", p, err)
	}
	if p, err := inner.Parent(); err != nil || p == nil {
		t.Fatalf("inner.Parent() = %v, %v", p, err)
	} else if name, _ := p.Name(); name != "b" {
		t.Errorf("inner parent = %q, want b", name)
	}
}

func TestReorderOpaqueSiblings(t *testing.T) {
	ctx, _ := newTestContext(t)
	root, err := ctx.NewOpaque("root", "", "", "m")
	if err != nil {
		t.Fatalf("NewOpaque failed: %v", err)
	}
	defer root.FreeAll()
	b, _ := root.NewOpaque("b", "", "", "m")
	c, _ := root.NewOpaque("c", "", "", "m")

	if err := b.InsertBefore(c); err != nil {
		t.Fatalf("InsertBefore failed: %v", err)
	}
	if got := childNames(t, root); !slices.Equal(got, []string{"c", "b"}) {
		t.Errorf("children = %v, want [c b]", got)
	}
}

func TestOpaqueValueIsLive(t *testing.T) {
	ctx, _ := newTestContext(t)
	a, err := ctx.NewOpaque("o", "old", "m", "m")
	if err != nil {
		t.Fatalf("NewOpaque failed: %v", err)
	}
	b, err := ctx.NewOpaque("o", "new", "m", "m")
	if err != nil {
		t.Fatalf("NewOpaque failed: %v", err)
	}
	defer b.FreeAll()

	if _, err := a.Merge(b, 0); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if v, err := a.Value(); err != nil || v != "new" {
		t.Errorf("Value() after merge = %q, %v; want new", v, err)
	}
	if p, err := a.Prefix(); err != nil || p != "m" {
		t.Errorf("Prefix() = %q, %v", p, err)
	}

	if err := a.Free(); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if _, err := a.Value(); !errors.Is(err, ErrFreed) {
		t.Errorf("Value() after Free: error = %v, want ErrFreed", err)
	}
	if _, err := a.ModuleName(); !errors.Is(err, ErrFreed) {
		t.Errorf("ModuleName() after Free: error = %v, want ErrFreed", err)
	}

	ctx.Close()
	if _, err := b.Value(); !errors.Is(err, ErrContextClosed) {
		t.Errorf("Value() after Close: error = %v, want ErrContextClosed", err)
	}
}

func TestUnqualifiedExample(t *testing.T) {
	ctx := openWith(t, `module demo {
    namespace "urn:demo";
    prefix d;
    container conf { leaf x { type uint8; } }
}`)
	tree := parseJSON(t, ctx, `{"conf":{"x":5}}`)
	defer tree.FreeAll()

	found, err := tree.FindPath("/conf/x")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found %d nodes, want 1", len(found))
	}
	term, ok := found[0].(*TermNode)
	if !ok {
		t.Fatalf("found %T, want *TermNode", found[0])
	}
	if v, _ := term.Value(); v.Canonical != "5" {
		t.Errorf("value = %q, want 5", v.Canonical)
	}

	out, err := tree.Print(FormatJSON, PrintUnqualified|PrintShrink)
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if string(out) != `{"conf":{"x":5}}` {
		t.Errorf("Print = %s", out)
	}
}

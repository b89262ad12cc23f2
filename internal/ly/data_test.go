package ly

import (
	"slices"
	"testing"
)

func childNames(c *Ctx, p Ptr) []string {
	var out []string
	for q := c.Child(p); q != Null; q = c.DNode(q).Next {
		out = append(out, c.nodeName(q))
	}
	return out
}

func TestNewNodes(t *testing.T) {
	c, mod, _ := newTestCtx(t)

	conf, st := c.NewInner(Null, mod, "conf", false)
	if st != Success {
		t.Fatalf("NewInner failed: %v", st)
	}
	defer c.FreeAll(conf)

	if _, st := c.NewTerm(conf, Null, "x", "7", false); st != Success {
		t.Fatalf("NewTerm failed: %v", st)
	}
	if _, st := c.NewTerm(conf, Null, "x", "300", false); st != EVALID {
		t.Errorf("NewTerm(300) = %v, want EVALID", st)
	}
	if _, st := c.NewTerm(conf, Null, "nope", "1", false); st != ENOTFOUND {
		t.Errorf("NewTerm(nope) = %v, want ENOTFOUND", st)
	}
	item, st := c.NewList(conf, Null, "item", []string{"1"}, false)
	if st != Success {
		t.Fatalf("NewList failed: %v", st)
	}
	if _, st := c.NewTerm(item, Null, "id", "2", false); st != EEXIST {
		t.Errorf("second key = %v, want EEXIST", st)
	}
	if _, st := c.NewList(conf, Null, "item", nil, false); st != EINVAL {
		t.Errorf("NewList without keys = %v, want EINVAL", st)
	}

	if got := c.Path(item); got != "/example:conf/item[id='1']" {
		t.Errorf("Path = %q", got)
	}
	if got := c.ListKeys(item); !slices.Equal(got, []string{"1"}) {
		t.Errorf("ListKeys = %v", got)
	}
	if got := childNames(c, conf); !slices.Equal(got, []string{"x", "item"}) {
		t.Errorf("children = %v", got)
	}

	d := c.DNode(item)
	defer func() {
		if recover() == nil {
			t.Error("expected panic reading an inner node as a term")
		}
	}()
	d.Term()
}

func TestSiblingInvariant(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	conf, _ := c.NewInner(Null, mod, "conf", false)
	defer c.FreeAll(conf)

	var tags []Ptr
	for _, v := range []string{"a", "b", "c"} {
		p, st := c.NewTerm(conf, Null, "tags", v, false)
		if st != Success {
			t.Fatalf("NewTerm(%s) failed: %v", v, st)
		}
		tags = append(tags, p)
	}
	first := c.Child(conf)
	if first != tags[0] {
		t.Fatalf("first child = %d, want %d", first, tags[0])
	}
	if c.DNode(first).Prev != tags[2] {
		t.Error("first.Prev must point to the last sibling")
	}
	if c.DNode(tags[2]).Next != Null {
		t.Error("last.Next must be Null")
	}
	if c.FirstSibling(tags[2]) != first {
		t.Error("FirstSibling of the last node is wrong")
	}
}

func TestUnlinkThenFree(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	conf, _ := c.NewInner(Null, mod, "conf", false)
	defer c.FreeAll(conf)

	var tags []Ptr
	for _, v := range []string{"a", "b", "c", "d"} {
		p, _ := c.NewTerm(conf, Null, "tags", v, false)
		tags = append(tags, p)
	}
	for _, victim := range []int{1, 3, 0} {
		c.UnlinkTree(tags[victim])
		if c.DNode(tags[victim]).Parent != Null {
			t.Fatal("unlinked node keeps its parent")
		}
		c.FreeTree(tags[victim])
	}
	if got := childNames(c, conf); len(got) != 1 {
		t.Fatalf("children after unlink+free = %v", got)
	}
	if c.Child(conf) != tags[2] {
		t.Error("remaining child is not the expected one")
	}
	if c.DNode(tags[2]).Prev != tags[2] {
		t.Error("single child must point to itself")
	}
	if c.DataSerial(tags[1]) != 0 {
		t.Error("freed node still has a serial")
	}
}

func TestInsertUserOrdered(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	conf, _ := c.NewInner(Null, mod, "conf", false)
	defer c.FreeAll(conf)

	a, _ := c.NewTerm(conf, Null, "tags", "a", false)
	b, _ := c.NewTerm(conf, Null, "tags", "b", false)
	if st := c.InsertBefore(a, b); st != Success {
		t.Fatalf("InsertBefore failed: %v", st)
	}
	var vals []string
	for q := c.Child(conf); q != Null; q = c.DNode(q).Next {
		vals = append(vals, c.DNode(q).Term().Value.Canonical)
	}
	if !slices.Equal(vals, []string{"b", "a"}) {
		t.Errorf("order after InsertBefore = %v", vals)
	}

	x, _ := c.NewTerm(conf, Null, "x", "1", false)
	if st := c.InsertAfter(a, x); st != EINVAL {
		t.Errorf("InsertAfter with a leaf = %v, want EINVAL", st)
	}
	if st := c.InsertChild(x, conf); st != EINVAL {
		t.Errorf("InsertChild under a term = %v, want EINVAL", st)
	}
}

func TestInsertChildMoves(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	conf1, _ := c.NewInner(Null, mod, "conf", false)
	conf2, _ := c.NewInner(Null, mod, "conf", false)
	defer c.FreeAll(conf1)
	defer c.FreeAll(conf2)

	x, _ := c.NewTerm(conf1, Null, "x", "1", false)
	if st := c.InsertChild(conf2, x); st != Success {
		t.Fatalf("InsertChild failed: %v", st)
	}
	if c.Child(conf1) != Null {
		t.Error("node was not unlinked from its previous parent")
	}
	if c.Child(conf2) != x || c.DNode(x).Parent != conf2 {
		t.Error("node not linked under the new parent")
	}
	if st := c.InsertChild(x, conf2); st != EINVAL {
		t.Errorf("cycle insert = %v, want EINVAL", st)
	}
}

func TestDuplicate(t *testing.T) {
	c, _, _ := newTestCtx(t)
	tree := parseJSONTree(t, c, `{"example:conf":{"x":5,"item":[{"id":1,"val":"one"}]}}`)
	defer c.FreeAll(tree)

	item := c.Child(tree)
	for item != Null && c.nodeName(item) != "item" {
		item = c.DNode(item).Next
	}
	if item == Null {
		t.Fatal("item not parsed")
	}

	shallow, st := c.DupSingle(item, Null, 0)
	if st != Success {
		t.Fatalf("DupSingle failed: %v", st)
	}
	if got := childNames(c, shallow); !slices.Equal(got, []string{"id"}) {
		t.Errorf("non-recursive duplicate children = %v, want only the key", got)
	}
	c.FreeTree(shallow)

	deep, _ := c.DupSingle(item, Null, DupRecursive)
	if got := childNames(c, deep); !slices.Equal(got, []string{"id", "val"}) {
		t.Errorf("recursive duplicate children = %v", got)
	}
	if c.CompareSingle(item, deep, CompareFullRecursion) != Success {
		t.Error("duplicate differs from the original")
	}
	c.FreeTree(deep)

	withParents, _ := c.DupSingle(item, Null, DupRecursive|DupWithParents)
	par := c.DNode(withParents).Parent
	if par == Null || c.nodeName(par) != "conf" {
		t.Fatal("duplicate has no parent copy")
	}
	if got := childNames(c, par); !slices.Equal(got, []string{"item"}) {
		t.Errorf("parent copy children = %v", got)
	}
	c.FreeAll(withParents)
}

func TestChangeTerm(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	conf, _ := c.NewInner(Null, mod, "conf", false)
	defer c.FreeAll(conf)

	x, _ := c.NewTerm(conf, Null, "x", "1", false)
	if st := c.ChangeTerm(x, "2"); st != Success {
		t.Fatalf("ChangeTerm failed: %v", st)
	}
	if st := c.ChangeTerm(x, "2"); st != EEXIST {
		t.Errorf("unchanged value = %v, want EEXIST", st)
	}
	if st := c.ChangeTerm(x, "abc"); st != EVALID {
		t.Errorf("invalid value = %v, want EVALID", st)
	}
	item, _ := c.NewList(conf, Null, "item", []string{"1"}, false)
	if st := c.ChangeTerm(c.Child(item), "5"); st != EINVAL {
		t.Errorf("changing a key = %v, want EINVAL", st)
	}
}

func TestMetadata(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	conf, _ := c.NewInner(Null, mod, "conf", false)
	defer c.FreeAll(conf)

	m, st := c.NewMeta(conf, "ietf-origin", "origin", "or:intended")
	if st != Success {
		t.Fatalf("NewMeta failed: %v", st)
	}
	if again, _ := c.NewMeta(conf, "ietf-origin", "origin", "or:learned"); again != m {
		t.Error("NewMeta must update an existing instance")
	}
	if c.MetaOf(m).Value != "or:learned" {
		t.Errorf("meta value = %q", c.MetaOf(m).Value)
	}
	if _, st := c.NewMeta(conf, "unknown-module", "x", "y"); st != EINVAL {
		t.Errorf("NewMeta of unknown module = %v, want EINVAL", st)
	}
	if c.FindMeta(conf, "", "origin") != m {
		t.Error("FindMeta did not find the instance")
	}
	c.FreeMeta(m)
	if c.FindMeta(conf, "ietf-origin", "origin") != Null {
		t.Error("metadata still present after FreeMeta")
	}
}

func TestNewPath(t *testing.T) {
	c, _, _ := newTestCtx(t)

	top, node, st := c.NewPath(Null, "/example:conf/item[id='3']/val", "three", 0)
	if st != Success {
		t.Fatalf("NewPath failed: %v", st)
	}
	defer c.FreeAll(top)
	if c.nodeName(top) != "conf" || c.nodeName(node) != "val" {
		t.Errorf("NewPath returned %s, %s", c.nodeName(top), c.nodeName(node))
	}
	if got := c.Path(node); got != "/example:conf/item[id='3']/val" {
		t.Errorf("Path = %q", got)
	}

	if _, _, st := c.NewPath(top, "/example:conf/item[id='3']/val", "again", 0); st != EEXIST {
		t.Errorf("existing path = %v, want EEXIST", st)
	}
	if _, _, st := c.NewPath(top, "/example:conf/item[id='3']/val", "again", NewPathUpdate); st != Success {
		t.Errorf("update = %v", st)
	}
	if v := c.DNode(node).Term().Value.Canonical; v != "again" {
		t.Errorf("value after update = %q", v)
	}

	created, _, st := c.NewPath(top, "/example:conf/item[id='4']", "", 0)
	if st != Success || created == Null {
		t.Fatalf("second list instance: %v", st)
	}
	if n := len(c.schemaInstances(c.Child(top), c.DNode(created).Schema)); n != 2 {
		t.Errorf("%d item instances, want 2", n)
	}

	if _, _, st := c.NewPath(Null, "/example:conf/item/val", "x", 0); st != EVALID {
		t.Errorf("missing key predicate = %v, want EVALID", st)
	}
	if _, _, st := c.NewPath(Null, "/example:nothing", "", 0); st != ENOTFOUND {
		t.Errorf("unknown node = %v, want ENOTFOUND", st)
	}
	opaq, _, st := c.NewPath(Null, "/example:nothing", "", NewPathOpaq)
	if st != Success || c.DNode(opaq).Schema != Null {
		t.Errorf("opaque path: %v", st)
	} else {
		c.FreeTree(opaq)
	}
}

func TestInsertOpaqueCycle(t *testing.T) {
	c, _, _ := newTestCtx(t)
	a, _ := c.NewOpaq(Null, "a", "", "", "m")
	defer c.FreeAll(a)
	b, _ := c.NewOpaq(a, "b", "", "", "m")
	inner, _ := c.NewOpaq(b, "c", "", "", "m")

	if st := c.InsertBefore(b, a); st != EINVAL {
		t.Errorf("InsertBefore of an ancestor = %v, want EINVAL", st)
	}
	if st := c.InsertAfter(inner, a); st != EINVAL {
		t.Errorf("InsertAfter of an ancestor = %v, want EINVAL", st)
	}
	if _, st := c.InsertSibling(inner, a); st != EINVAL {
		t.Errorf("InsertSibling of an ancestor = %v, want EINVAL", st)
	}
	if c.DNode(a).Parent != Null || c.DNode(inner).Parent != b {
		t.Error("tree was relinked by a refused insert")
	}

	d, _ := c.NewOpaq(a, "d", "", "", "m")
	if st := c.InsertBefore(b, d); st != Success {
		t.Fatalf("InsertBefore failed: %v", st)
	}
	if got := childNames(c, a); !slices.Equal(got, []string{"d", "b"}) {
		t.Errorf("children = %v, want [d b]", got)
	}
}

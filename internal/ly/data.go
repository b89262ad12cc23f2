package ly

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DFlags are data node flags.
type DFlags uint8

// Data node flags.
const (
	DFlagDefault DFlags = 1 << iota // node was created implicitly as a default
	DFlagNew                        // node was not validated yet
)

// AnyValueType is the representation of an anydata/anyxml value.
type AnyValueType uint8

// Any value representations.
const (
	AnyDataTree AnyValueType = iota
	AnyString
	AnyXML
	AnyJSON
)

func (t AnyValueType) String() string {
	switch t {
	case AnyDataTree:
		return "datatree"
	case AnyString:
		return "string"
	case AnyXML:
		return "xml"
	case AnyJSON:
		return "json"
	}
	return "unknown"
}

// DNode is a data node. The variant is selected by the schema node type, or
// is opaque when Schema is Null; reading a variant under the wrong tag
// panics.
type DNode struct {
	Schema Ptr
	Parent Ptr
	Next   Ptr
	Prev   Ptr
	Flags  DFlags
	Meta   Ptr

	u any
}

// DInner is the variant of container, list, rpc, action and notification
// instances.
type DInner struct {
	Child Ptr
}

// DTerm is the variant of leaf and leaf-list instances.
type DTerm struct {
	Value Value
}

// DAny is the variant of anydata and anyxml instances. Tree is a separate
// data tree owned by the node.
type DAny struct {
	ValueType AnyValueType
	Tree      Ptr
	Str       string
}

// DOpaq is an opaque node with no schema.
type DOpaq struct {
	Name       string
	Prefix     string
	ModuleName string
	Value      string
	Child      Ptr
}

// Meta is a metadata (annotation) instance.
type Meta struct {
	Parent Ptr
	Next   Ptr
	Module string
	Name   string
	Value  string
}

func (d *DNode) variantErr(want string) string {
	return fmt.Sprintf("ly: data node of kind %T accessed as %s", d.u, want)
}

// Inner returns the inner variant.
func (d *DNode) Inner() *DInner {
	v, ok := d.u.(*DInner)
	if !ok {
		panic(d.variantErr("inner"))
	}
	return v
}

// Term returns the term variant.
func (d *DNode) Term() *DTerm {
	v, ok := d.u.(*DTerm)
	if !ok {
		panic(d.variantErr("term"))
	}
	return v
}

// Any returns the any variant.
func (d *DNode) Any() *DAny {
	v, ok := d.u.(*DAny)
	if !ok {
		panic(d.variantErr("any"))
	}
	return v
}

// Opaq returns the opaque variant.
func (d *DNode) Opaq() *DOpaq {
	v, ok := d.u.(*DOpaq)
	if !ok {
		panic(d.variantErr("opaque"))
	}
	return v
}

// DNode dereferences a data node pointer.
func (c *Ctx) DNode(p Ptr) *DNode {
	c.live()
	return c.dnodes.at(p)
}

// MetaOf dereferences a metadata pointer.
func (c *Ctx) MetaOf(p Ptr) *Meta {
	c.live()
	return c.metas.at(p)
}

// DataSerial returns the allocation serial of a data node, 0 when the slot
// is currently free. A slot that was freed and reused gets a new serial.
func (c *Ctx) DataSerial(p Ptr) uint64 {
	c.live()
	return c.dnodes.serialOf(p)
}

// MetaSerial is DataSerial for metadata.
func (c *Ctx) MetaSerial(p Ptr) uint64 {
	c.live()
	return c.metas.serialOf(p)
}

func (c *Ctx) newNode(schema Ptr) (Ptr, *DNode) {
	p, d := c.dnodes.alloc(c.nextSerial())
	d.Schema = schema
	d.Prev = p
	d.Flags = DFlagNew
	switch nt := c.snodes.at(schema).NodeType; {
	case nt&NodeTerm != 0:
		d.u = &DTerm{}
	case nt&NodeAny != 0:
		d.u = &DAny{}
	default:
		d.u = &DInner{}
	}
	return p, d
}

// Child returns the first child of an inner or opaque node.
func (c *Ctx) Child(p Ptr) Ptr {
	c.live()
	switch v := c.dnodes.at(p).u.(type) {
	case *DInner:
		return v.Child
	case *DOpaq:
		return v.Child
	}
	return Null
}

func (c *Ctx) setChild(p, child Ptr) {
	switch v := c.dnodes.at(p).u.(type) {
	case *DInner:
		v.Child = child
	case *DOpaq:
		v.Child = child
	default:
		panic(fmt.Sprintf("ly: node %d cannot have children", p))
	}
}

// FirstSibling returns the first sibling of p.
func (c *Ctx) FirstSibling(p Ptr) Ptr {
	c.live()
	d := c.dnodes.at(p)
	if d.Parent != Null {
		return c.Child(d.Parent)
	}
	q := p
	for {
		prev := c.dnodes.at(q).Prev
		if c.dnodes.at(prev).Next == Null {
			return q
		}
		q = prev
	}
}

// Root returns the first top-level sibling of the tree containing p.
func (c *Ctx) Root(p Ptr) Ptr {
	c.live()
	for c.dnodes.at(p).Parent != Null {
		p = c.dnodes.at(p).Parent
	}
	return c.FirstSibling(p)
}

// OwnerModule returns the module of a data node, Null for opaque nodes of
// unknown modules.
func (c *Ctx) OwnerModule(p Ptr) Ptr {
	d := c.DNode(p)
	if d.Schema != Null {
		return c.snodes.at(d.Schema).Module
	}
	return c.GetModuleLatest(d.Opaq().ModuleName)
}

func (c *Ctx) isInner(p Ptr) bool {
	switch c.dnodes.at(p).u.(type) {
	case *DInner, *DOpaq:
		return true
	}
	return false
}

// linkAfter links the unlinked node after anchor.
func (c *Ctx) linkAfter(anchor, node Ptr) {
	first := c.FirstSibling(anchor)
	a := c.dnodes.at(anchor)
	n := c.dnodes.at(node)
	n.Parent = a.Parent
	n.Prev = anchor
	n.Next = a.Next
	if a.Next != Null {
		c.dnodes.at(a.Next).Prev = node
	} else {
		c.dnodes.at(first).Prev = node
	}
	a.Next = node
}

// linkBefore links the unlinked node before anchor.
func (c *Ctx) linkBefore(anchor, node Ptr) {
	first := c.FirstSibling(anchor)
	a := c.dnodes.at(anchor)
	n := c.dnodes.at(node)
	n.Parent = a.Parent
	n.Next = anchor
	n.Prev = a.Prev
	if anchor == first {
		a.Prev = node
		if a.Parent != Null {
			c.setChild(a.Parent, node)
		}
		return
	}
	c.dnodes.at(a.Prev).Next = node
	a.Prev = node
}

// placeAmong links the unlinked node into the sibling list starting at first:
// after the last instance of the same schema node, or at the end.
func (c *Ctx) placeAmong(first, node Ptr) {
	schema := c.dnodes.at(node).Schema
	anchor := Null
	last := Null
	for q := first; q != Null; q = c.dnodes.at(q).Next {
		if schema != Null && c.dnodes.at(q).Schema == schema {
			anchor = q
		}
		last = q
	}
	if anchor == Null {
		anchor = last
	}
	c.linkAfter(anchor, node)
}

// insertChildRaw links an unlinked node as a child of parent.
func (c *Ctx) insertChildRaw(parent, node Ptr) {
	first := c.Child(parent)
	n := c.dnodes.at(node)
	if first == Null {
		n.Parent = parent
		n.Prev = node
		n.Next = Null
		c.setChild(parent, node)
	} else if c.isKey(node) {
		anchor := Null
		for q := first; q != Null && c.isKey(q); q = c.dnodes.at(q).Next {
			anchor = q
		}
		if anchor == Null {
			c.linkBefore(first, node)
		} else {
			c.linkAfter(anchor, node)
		}
	} else {
		c.placeAmong(first, node)
	}
	if n.Flags&DFlagDefault == 0 {
		c.clearDefaultUp(parent)
	}
}

func (c *Ctx) isKey(p Ptr) bool {
	s := c.dnodes.at(p).Schema
	return s != Null && c.snodes.at(s).Flags&FlagKey != 0
}

// clearDefaultUp marks p and its ancestors as explicit.
func (c *Ctx) clearDefaultUp(p Ptr) {
	for q := p; q != Null; q = c.dnodes.at(q).Parent {
		d := c.dnodes.at(q)
		if d.Flags&DFlagDefault == 0 {
			return
		}
		d.Flags &^= DFlagDefault
	}
}

// dataParentSchema is the schema node instances of s are placed under.
func (c *Ctx) dataParentSchema(s Ptr) Ptr {
	return c.DataParent(s)
}

func (c *Ctx) checkChildSchema(parent, node Ptr) Status {
	ps := c.dnodes.at(parent).Schema
	ns := c.dnodes.at(node).Schema
	if ps == Null || ns == Null {
		return Success
	}
	if c.dataParentSchema(ns) != ps {
		return c.errf(EINVAL, VESuccess, "Cannot insert, parent of \"%s\" is not \"%s\".",
			c.snodes.at(ns).Name, c.snodes.at(ps).Name)
	}
	return Success
}

// InsertChild links node as a child of parent. A linked node is unlinked
// first.
func (c *Ctx) InsertChild(parent, node Ptr) Status {
	c.live()
	if !c.isInner(parent) {
		return c.errf(EINVAL, VESuccess, "Cannot insert, parent \"%s\" cannot have children.", c.nodeName(parent))
	}
	if st := c.checkChildSchema(parent, node); st != Success {
		return st
	}
	if c.ContainsNode(node, parent) {
		return c.errf(EINVAL, VESuccess, "Cannot insert node \"%s\" under its own descendant.", c.nodeName(node))
	}
	c.UnlinkTree(node)
	c.insertChildRaw(parent, node)
	return Success
}

// sameLevel checks that node may be linked next to sibling. Opaque nodes
// carry no schema, so only the ancestry is checked for them.
func (c *Ctx) sameLevel(sibling, node Ptr) Status {
	if c.ContainsNode(node, sibling) {
		return c.errf(EINVAL, VESuccess, "Cannot insert node \"%s\" next to its own descendant.", c.nodeName(node))
	}
	ss := c.dnodes.at(sibling).Schema
	ns := c.dnodes.at(node).Schema
	if ss == Null || ns == Null {
		return Success
	}
	if c.dataParentSchema(ss) != c.dataParentSchema(ns) {
		return c.errf(EINVAL, VESuccess, "Cannot insert, \"%s\" and \"%s\" are not siblings.",
			c.snodes.at(ss).Name, c.snodes.at(ns).Name)
	}
	return Success
}

// InsertSibling links node among the siblings of sibling and returns the new
// first sibling.
func (c *Ctx) InsertSibling(sibling, node Ptr) (Ptr, Status) {
	c.live()
	if sibling == node {
		return c.FirstSibling(node), Success
	}
	if st := c.sameLevel(sibling, node); st != Success {
		return Null, st
	}
	c.UnlinkTree(node)
	if par := c.dnodes.at(sibling).Parent; par != Null {
		c.insertChildRaw(par, node)
	} else {
		c.placeAmong(c.FirstSibling(sibling), node)
	}
	return c.FirstSibling(sibling), Success
}

func (c *Ctx) checkUserOrdered(sibling, node Ptr) Status {
	if st := c.sameLevel(sibling, node); st != Success {
		return st
	}
	ns := c.dnodes.at(node).Schema
	if ns == Null {
		return Success
	}
	n := c.snodes.at(ns)
	if n.NodeType&(NodeList|NodeLeafList) == 0 || n.Flags&FlagOrdByUser == 0 {
		return c.errf(EINVAL, VESuccess, "Can be used only for user-ordered nodes, \"%s\" is not.", n.Name)
	}
	if c.dnodes.at(sibling).Schema != ns {
		return c.errf(EINVAL, VESuccess, "Cannot insert \"%s\" next to an instance of a different node.", n.Name)
	}
	return Success
}

// InsertBefore links node right before sibling. Only instances of
// user-ordered lists and leaf-lists, and opaque nodes, can be positioned.
func (c *Ctx) InsertBefore(sibling, node Ptr) Status {
	c.live()
	if sibling == node {
		return c.errf(EINVAL, VESuccess, "Cannot insert a node before itself.")
	}
	if st := c.checkUserOrdered(sibling, node); st != Success {
		return st
	}
	c.UnlinkTree(node)
	c.linkBefore(sibling, node)
	c.clearDefaultUp(c.dnodes.at(sibling).Parent)
	return Success
}

// InsertAfter links node right after sibling. Only instances of
// user-ordered lists and leaf-lists, and opaque nodes, can be positioned.
func (c *Ctx) InsertAfter(sibling, node Ptr) Status {
	c.live()
	if sibling == node {
		return c.errf(EINVAL, VESuccess, "Cannot insert a node after itself.")
	}
	if st := c.checkUserOrdered(sibling, node); st != Success {
		return st
	}
	c.UnlinkTree(node)
	c.linkAfter(sibling, node)
	c.clearDefaultUp(c.dnodes.at(sibling).Parent)
	return Success
}

// UnlinkTree detaches p, with its subtree, from its parent and siblings.
func (c *Ctx) UnlinkTree(p Ptr) {
	c.live()
	n := c.dnodes.at(p)
	if n.Next != Null {
		c.dnodes.at(n.Next).Prev = n.Prev
	} else {
		first := p
		if n.Parent != Null {
			first = c.Child(n.Parent)
		} else {
			for c.dnodes.at(c.dnodes.at(first).Prev).Next != Null {
				first = c.dnodes.at(first).Prev
			}
		}
		c.dnodes.at(first).Prev = n.Prev
	}
	if prev := c.dnodes.at(n.Prev); n.Prev != p && prev.Next != Null {
		prev.Next = n.Next
	} else if n.Parent != Null {
		c.setChild(n.Parent, n.Next)
	}
	n.Next = Null
	n.Prev = p
	n.Parent = Null
}

// FreeTree releases p, its subtree and its metadata. It does not unlink p:
// freeing a node that is still linked leaves its parent and siblings
// pointing at a released slot.
func (c *Ctx) FreeTree(p Ptr) {
	c.live()
	d := c.dnodes.at(p)
	for m := d.Meta; m != Null; {
		next := c.metas.at(m).Next
		c.metas.release(m)
		m = next
	}
	switch v := d.u.(type) {
	case *DInner:
		c.freeChain(v.Child)
	case *DOpaq:
		c.freeChain(v.Child)
	case *DAny:
		if v.Tree != Null {
			c.freeChain(c.FirstSibling(v.Tree))
		}
	}
	c.dnodes.release(p)
}

func (c *Ctx) freeChain(first Ptr) {
	for q := first; q != Null; {
		next := c.dnodes.at(q).Next
		c.FreeTree(q)
		q = next
	}
}

// FreeSiblings releases p and all of its siblings.
func (c *Ctx) FreeSiblings(p Ptr) {
	c.live()
	first := c.FirstSibling(p)
	if par := c.dnodes.at(p).Parent; par != Null {
		c.setChild(par, Null)
	}
	c.freeChain(first)
}

// FreeAll releases the whole data tree p belongs to.
func (c *Ctx) FreeAll(p Ptr) {
	c.FreeSiblings(c.Root(p))
}

// Subtree lists p and all its descendants, metadata not included.
func (c *Ctx) Subtree(p Ptr) []Ptr {
	c.live()
	var out []Ptr
	c.collectSubtree(p, &out)
	return out
}

func (c *Ctx) collectSubtree(p Ptr, out *[]Ptr) {
	*out = append(*out, p)
	for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
		c.collectSubtree(q, out)
	}
	if v, ok := c.dnodes.at(p).u.(*DAny); ok && v.Tree != Null {
		for q := c.FirstSibling(v.Tree); q != Null; q = c.dnodes.at(q).Next {
			c.collectSubtree(q, out)
		}
	}
}

// SubtreeMeta lists the metadata of p and of all its descendants.
func (c *Ctx) SubtreeMeta(p Ptr) []Ptr {
	var out []Ptr
	for _, q := range c.Subtree(p) {
		for m := c.dnodes.at(q).Meta; m != Null; m = c.metas.at(m).Next {
			out = append(out, m)
		}
	}
	return out
}

func (c *Ctx) nodeName(p Ptr) string {
	d := c.dnodes.at(p)
	if d.Schema == Null {
		return d.Opaq().Name
	}
	return c.snodes.at(d.Schema).Name
}

// lookupChild resolves the schema node for a new data node.
func (c *Ctx) lookupChild(parent, mod Ptr, name string, mask NodeType, what string, output bool) (Ptr, Status) {
	if parent == Null && mod == Null {
		return Null, c.errf(EINVAL, VESuccess, "Invalid arguments, either a parent or a module is required.")
	}
	var ps Ptr
	if parent != Null {
		d := c.dnodes.at(parent)
		if d.Schema == Null {
			return Null, c.errf(EINVAL, VESuccess, "Cannot create schema node \"%s\" under opaque node \"%s\".", name, d.Opaq().Name)
		}
		ps = d.Schema
	}
	modName := ""
	if mod != Null {
		m := c.mods.at(mod)
		modName = m.Name
		if parent == Null && !m.Implemented {
			return Null, c.errf(EINVAL, VESuccess, "Module \"%s\" is not implemented.", m.Name)
		}
	}
	var s Ptr
	if ps == Null {
		s = c.findTop(mod, name)
	} else {
		s = c.FindChild(ps, Null, modName, name, output)
	}
	if s == Null || c.snodes.at(s).NodeType&mask == 0 {
		return Null, c.errf(ENOTFOUND, VESuccess, "%s node \"%s\" not found.", what, name)
	}
	return s, Success
}

// NewInner creates a container, rpc, action or notification instance. A
// Null parent creates a top-level node of mod.
func (c *Ctx) NewInner(parent, mod Ptr, name string, output bool) (Ptr, Status) {
	c.live()
	s, st := c.lookupChild(parent, mod, name, NodeContainer|NodeOp, "Inner node (container, notif, RPC, or action)", output)
	if st != Success {
		return Null, st
	}
	p, _ := c.newNode(s)
	if parent != Null {
		c.insertChildRaw(parent, p)
	}
	return p, Success
}

// NewList creates a list instance with its keys in key order.
func (c *Ctx) NewList(parent, mod Ptr, name string, keys []string, output bool) (Ptr, Status) {
	c.live()
	s, st := c.lookupChild(parent, mod, name, NodeList, "List", output)
	if st != Success {
		return Null, st
	}
	l := c.snodes.at(s).List()
	if len(keys) != len(l.Keys) {
		return Null, c.schemaErr(EINVAL, VEData, s, "List \"%s\" has %d keys, %d given.", c.snodes.at(s).Name, len(l.Keys), len(keys))
	}
	p, _ := c.newNode(s)
	for i, k := range l.Keys {
		kp, st := c.newTerm(k, keys[i], nil)
		if st != Success {
			c.FreeTree(p)
			return Null, st
		}
		c.insertChildRaw(p, kp)
	}
	if parent != Null {
		c.insertChildRaw(parent, p)
	}
	return p, Success
}

func (c *Ctx) newTerm(s Ptr, value string, res PrefixResolver) (Ptr, Status) {
	if res == nil {
		res = c.jsonPrefixes(c.snodes.at(s).Module)
	}
	v, err := c.storeValue(c.termType(s), value, res)
	if err != nil {
		return Null, c.schemaErr(err.st, VEData, s, "%s", err.msg)
	}
	p, d := c.newNode(s)
	d.Term().Value = v
	return p, Success
}

// NewTerm creates a leaf or leaf-list instance.
func (c *Ctx) NewTerm(parent, mod Ptr, name, value string, output bool) (Ptr, Status) {
	c.live()
	s, st := c.lookupChild(parent, mod, name, NodeTerm, "Term", output)
	if st != Success {
		return Null, st
	}
	if parent != Null && c.snodes.at(s).Flags&FlagKey != 0 {
		for q := c.Child(parent); q != Null; q = c.dnodes.at(q).Next {
			if c.dnodes.at(q).Schema == s {
				return Null, c.schemaErr(EEXIST, VEData, s, "Key \"%s\" already exists.", c.snodes.at(s).Name)
			}
		}
	}
	p, st := c.newTerm(s, value, nil)
	if st != Success {
		return Null, st
	}
	if parent != Null {
		c.insertChildRaw(parent, p)
	}
	return p, Success
}

// NewAny creates an anydata or anyxml instance. A data tree value is taken
// over by the new node.
func (c *Ctx) NewAny(parent, mod Ptr, name string, vt AnyValueType, tree Ptr, str string, output bool) (Ptr, Status) {
	c.live()
	s, st := c.lookupChild(parent, mod, name, NodeAny, "Any", output)
	if st != Success {
		return Null, st
	}
	if vt == AnyDataTree && tree != Null && c.dnodes.at(tree).Parent != Null {
		return Null, c.errf(EINVAL, VESuccess, "Anydata value tree must be a top-level tree.")
	}
	p, d := c.newNode(s)
	a := d.Any()
	a.ValueType = vt
	a.Tree = tree
	a.Str = str
	if parent != Null {
		c.insertChildRaw(parent, p)
	}
	return p, Success
}

// NewOpaq creates an opaque node without a schema.
func (c *Ctx) NewOpaq(parent Ptr, name, value, prefix, moduleName string) (Ptr, Status) {
	c.live()
	if name == "" {
		return Null, c.errf(EINVAL, VESuccess, "Opaque node name must not be empty.")
	}
	if parent != Null && !c.isInner(parent) {
		return Null, c.errf(EINVAL, VESuccess, "Cannot insert, parent \"%s\" cannot have children.", c.nodeName(parent))
	}
	p, d := c.dnodes.alloc(c.nextSerial())
	d.Prev = p
	d.Flags = DFlagNew
	d.u = &DOpaq{Name: name, Prefix: prefix, ModuleName: moduleName, Value: value}
	if parent != Null {
		c.insertChildRaw(parent, p)
	}
	return p, Success
}

var wellKnownMeta = map[string]bool{
	"yang":                       true,
	"ietf-netconf-with-defaults": true,
	"ietf-origin":                true,
	"ietf-netconf":               true,
}

// NewMeta attaches a metadata instance to a node.
func (c *Ctx) NewMeta(parent Ptr, module, name, value string) (Ptr, Status) {
	c.live()
	if module == "" || name == "" {
		return Null, c.errf(EINVAL, VESuccess, "Metadata name and module are required.")
	}
	if !wellKnownMeta[module] && c.GetModuleLatest(module) == Null {
		return Null, c.errf(EINVAL, VESuccess, "Module \"%s\" of metadata \"%s\" not found.", module, name)
	}
	d := c.dnodes.at(parent)
	for m := d.Meta; m != Null; m = c.metas.at(m).Next {
		if md := c.metas.at(m); md.Module == module && md.Name == name {
			md.Value = value
			return m, Success
		}
	}
	p, m := c.metas.alloc(c.nextSerial())
	m.Parent = parent
	m.Module = module
	m.Name = name
	m.Value = value
	if d.Meta == Null {
		d.Meta = p
	} else {
		last := d.Meta
		for c.metas.at(last).Next != Null {
			last = c.metas.at(last).Next
		}
		c.metas.at(last).Next = p
	}
	return p, Success
}

// FindMeta returns the metadata instance of p with the given module and name.
func (c *Ctx) FindMeta(p Ptr, module, name string) Ptr {
	for m := c.DNode(p).Meta; m != Null; m = c.metas.at(m).Next {
		if md := c.metas.at(m); md.Name == name && (module == "" || md.Module == module) {
			return m
		}
	}
	return Null
}

// FreeMeta detaches and releases a metadata instance.
func (c *Ctx) FreeMeta(meta Ptr) {
	c.live()
	m := c.metas.at(meta)
	d := c.dnodes.at(m.Parent)
	if d.Meta == meta {
		d.Meta = m.Next
	} else {
		for q := d.Meta; q != Null; q = c.metas.at(q).Next {
			if c.metas.at(q).Next == meta {
				c.metas.at(q).Next = m.Next
				break
			}
		}
	}
	c.metas.release(meta)
}

// ChangeTerm changes the value of a term node. EEXIST reports an unchanged
// value.
func (c *Ctx) ChangeTerm(p Ptr, value string) Status {
	c.live()
	d := c.dnodes.at(p)
	if d.Schema == Null || c.snodes.at(d.Schema).NodeType&NodeTerm == 0 {
		return c.errf(EINVAL, VESuccess, "Node \"%s\" is not a term node.", c.nodeName(p))
	}
	if c.isKey(p) && d.Parent != Null {
		return c.dataErr(EINVAL, p, "Cannot change the value of list key \"%s\".", c.nodeName(p))
	}
	v, err := c.storeValue(c.termType(d.Schema), value, c.jsonPrefixes(c.snodes.at(d.Schema).Module))
	if err != nil {
		return c.dataErr(err.st, p, "%s", err.msg)
	}
	t := d.Term()
	if valueEqual(&t.Value, &v) {
		if d.Flags&DFlagDefault != 0 {
			c.clearDefaultUp(p)
			return Success
		}
		return EEXIST
	}
	t.Value = v
	d.Flags |= DFlagNew
	c.clearDefaultUp(p)
	return Success
}

// Path renders the data path of p.
func (c *Ctx) Path(p Ptr) string {
	c.live()
	var chain []Ptr
	for q := p; q != Null; q = c.dnodes.at(q).Parent {
		chain = append(chain, q)
	}
	var b strings.Builder
	prevMod := ""
	for i := len(chain) - 1; i >= 0; i-- {
		q := chain[i]
		d := c.dnodes.at(q)
		b.WriteByte('/')
		var mod string
		if d.Schema == Null {
			mod = d.Opaq().ModuleName
		} else {
			mod = c.mods.at(c.snodes.at(d.Schema).Module).Name
		}
		if mod != "" && mod != prevMod {
			b.WriteString(mod)
			b.WriteByte(':')
		}
		if mod != "" {
			prevMod = mod
		}
		b.WriteString(c.nodeName(q))
		b.WriteString(c.predicate(q))
	}
	return b.String()
}

// predicate renders the instance predicate of a list or leaf-list node.
func (c *Ctx) predicate(p Ptr) string {
	d := c.dnodes.at(p)
	if d.Schema == Null {
		return ""
	}
	s := c.snodes.at(d.Schema)
	switch s.NodeType {
	case NodeLeafList:
		return "[.=" + quoteXPath(d.Term().Value.Canonical) + "]"
	case NodeList:
		keys := s.List().Keys
		if len(keys) == 0 {
			pos := 1
			for q := c.FirstSibling(p); q != p; q = c.dnodes.at(q).Next {
				if c.dnodes.at(q).Schema == d.Schema {
					pos++
				}
			}
			return "[" + strconv.Itoa(pos) + "]"
		}
		var b strings.Builder
		for _, k := range keys {
			b.WriteByte('[')
			b.WriteString(c.snodes.at(k).Name)
			b.WriteByte('=')
			val := ""
			for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
				if c.dnodes.at(q).Schema == k {
					val = c.dnodes.at(q).Term().Value.Canonical
					break
				}
			}
			b.WriteString(quoteXPath(val))
			b.WriteByte(']')
		}
		return b.String()
	}
	return ""
}

func quoteXPath(v string) string {
	if strings.Contains(v, "'") {
		return "\"" + v + "\""
	}
	return "'" + v + "'"
}

// ListKeys returns the key values of a list instance in key order.
func (c *Ctx) ListKeys(p Ptr) []string {
	d := c.DNode(p)
	if d.Schema == Null || c.snodes.at(d.Schema).NodeType != NodeList {
		return nil
	}
	var out []string
	for _, k := range c.snodes.at(d.Schema).List().Keys {
		for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
			if c.dnodes.at(q).Schema == k {
				out = append(out, c.dnodes.at(q).Term().Value.Canonical)
				break
			}
		}
	}
	return out
}

// DupOptions control duplication.
type DupOptions uint8

// Duplication options.
const (
	DupRecursive DupOptions = 1 << iota
	DupNoMeta
	DupWithParents
	DupWithFlags
)

func (c *Ctx) dupOne(p Ptr, opts DupOptions) Ptr {
	d := c.dnodes.at(p)
	var q Ptr
	var nd *DNode
	if d.Schema == Null {
		o := d.Opaq()
		q, nd = c.dnodes.alloc(c.nextSerial())
		nd.Prev = q
		nd.u = &DOpaq{Name: o.Name, Prefix: o.Prefix, ModuleName: o.ModuleName, Value: o.Value}
	} else {
		q, nd = c.newNode(d.Schema)
		switch v := d.u.(type) {
		case *DTerm:
			nd.Term().Value = v.Value
		case *DAny:
			a := nd.Any()
			a.ValueType = v.ValueType
			a.Str = v.Str
			if v.Tree != Null {
				a.Tree = c.dupChain(c.FirstSibling(v.Tree), DupRecursive|opts&DupWithFlags)
			}
		}
	}
	flags := DFlagNew | d.Flags&DFlagDefault
	if opts&DupWithFlags != 0 {
		flags = d.Flags
	}
	if opts&DupNoMeta == 0 {
		for m := d.Meta; m != Null; m = c.metas.at(m).Next {
			md := c.metas.at(m)
			c.NewMeta(q, md.Module, md.Name, md.Value)
		}
	}
	for ch := c.Child(p); ch != Null; ch = c.dnodes.at(ch).Next {
		if opts&DupRecursive != 0 || c.isKey(ch) {
			c.insertChildRaw(q, c.dupOne(ch, opts&^DupWithParents))
		}
	}
	nd.Flags = flags
	return q
}

func (c *Ctx) dupChain(first Ptr, opts DupOptions) Ptr {
	var out Ptr
	for q := first; q != Null; q = c.dnodes.at(q).Next {
		dup := c.dupOne(q, opts)
		if out == Null {
			out = dup
		} else {
			c.linkAfter(c.dnodes.at(out).Prev, dup)
		}
	}
	return out
}

// DupSingle duplicates p. With DupWithParents the ancestors of p are
// duplicated too, up to but not including parent. A non-Null parent
// receives the duplicate (or its top-most duplicated ancestor).
func (c *Ctx) DupSingle(p, parent Ptr, opts DupOptions) (Ptr, Status) {
	c.live()
	dup := c.dupOne(p, opts)
	top := dup
	if opts&DupWithParents != 0 {
		stop := Null
		if parent != Null {
			stop = c.dnodes.at(parent).Schema
		}
		for anc := c.dnodes.at(p).Parent; anc != Null; anc = c.dnodes.at(anc).Parent {
			if stop != Null && c.dnodes.at(anc).Schema == stop {
				break
			}
			ad := c.dupOne(anc, opts&^(DupRecursive|DupWithParents))
			if c.isKey(top) {
				c.FreeTree(top)
				top = ad
				dup = ad
				continue
			}
			c.insertChildRaw(ad, top)
			top = ad
		}
	}
	if parent != Null {
		if st := c.checkChildSchema(parent, top); st != Success {
			c.FreeTree(top)
			return Null, st
		}
		c.insertChildRaw(parent, top)
	}
	return dup, Success
}

// DupSiblings duplicates p and all its siblings. The first duplicate is
// returned.
func (c *Ctx) DupSiblings(p, parent Ptr, opts DupOptions) (Ptr, Status) {
	c.live()
	first := c.dupChain(c.FirstSibling(p), opts&^DupWithParents)
	if parent != Null {
		for q := first; q != Null; {
			next := c.dnodes.at(q).Next
			c.UnlinkTree(q)
			if st := c.checkChildSchema(parent, q); st != Success {
				c.FreeTree(q)
				c.freeChain(next)
				return Null, st
			}
			c.insertChildRaw(parent, q)
			q = next
		}
		return c.Child(parent), Success
	}
	return first, Success
}

// NewPathOptions control NewPath.
type NewPathOptions uint8

// NewPath options.
const (
	NewPathUpdate NewPathOptions = 1 << iota
	NewPathOutput
	NewPathOpaq
)

// NewPath creates the nodes addressed by path, reusing those that exist. ctx
// is any node of the tree to extend; Null starts a new tree. The path must be
// absolute unless ctx is set. It returns the top-most created node and the
// node the path addresses.
func (c *Ctx) NewPath(ctx Ptr, path, value string, opts NewPathOptions) (Ptr, Ptr, Status) {
	c.live()
	e, err := parseXPath(path)
	if err != nil {
		return Null, Null, c.xpathErr(err)
	}
	if len(e.paths) != 1 {
		return Null, Null, c.errf(EVALID, VEXPath, "Path \"%s\" must address a single node.", path)
	}
	xp := e.paths[0]
	if !xp.absolute && ctx == Null {
		return Null, Null, c.errf(EINVAL, VEXPath, "Relative path \"%s\" requires a context node.", path)
	}
	cur := ctx
	atRoot := xp.absolute
	var top Ptr
	fail := func(st Status) (Ptr, Ptr, Status) {
		if top != Null {
			c.UnlinkTree(top)
			c.FreeTree(top)
		}
		return Null, Null, st
	}
	for i, step := range xp.steps {
		last := i == len(xp.steps)-1
		if step.axis != axisChild {
			if step.axis == axisParent && !atRoot && cur != Null {
				if par := c.dnodes.at(cur).Parent; par != Null {
					cur = par
				} else {
					atRoot = true
				}
				continue
			}
			return fail(c.errf(EVALID, VEXPath, "Unsupported step in path \"%s\".", path))
		}
		var parentSchema Ptr
		if !atRoot {
			parentSchema = c.dnodes.at(cur).Schema
		}
		var s Ptr
		if atRoot {
			for _, m := range c.modules {
				mm := c.mods.at(m)
				if !mm.Implemented || (step.prefix != "" && step.prefix != mm.Name) {
					continue
				}
				if s = c.findTop(m, step.name); s != Null {
					break
				}
			}
		} else if parentSchema != Null {
			s = c.FindChild(parentSchema, Null, step.prefix, step.name, opts&NewPathOutput != 0)
		}
		if s == Null {
			if opts&NewPathOpaq == 0 {
				return fail(c.errf(ENOTFOUND, VEXPath, "Not found node \"%s\" in path \"%s\".", step.name, path))
			}
			val := ""
			if last {
				val = value
			}
			parent := Null
			if !atRoot {
				parent = cur
			}
			q, st := c.NewOpaq(parent, step.name, val, step.prefix, step.prefix)
			if st != Success {
				return fail(st)
			}
			if atRoot && ctx != Null {
				c.placeAmong(c.Root(ctx), q)
			}
			if top == Null {
				top = q
			}
			cur, atRoot = q, false
			continue
		}
		sn := c.snodes.at(s)
		// existing instance
		var candidates []Ptr
		if atRoot {
			if ctx != Null {
				candidates = c.dataChildren(ctx, true)
			}
		} else {
			candidates = c.dataChildren(cur, false)
		}
		var same []Ptr
		for _, q := range candidates {
			if c.dnodes.at(q).Schema == s {
				same = append(same, q)
			}
		}
		var keyVals []string
		var llVal string
		hasLLVal := false
		switch sn.NodeType {
		case NodeList:
			l := sn.List()
			for _, k := range l.Keys {
				kn := c.snodes.at(k).Name
				found := false
				for _, pr := range step.preds {
					for _, cond := range pr.conds {
						if cond.name == kn {
							keyVals = append(keyVals, cond.value)
							found = true
						}
					}
				}
				if !found {
					return fail(c.schemaErr(EVALID, VEXPath, s, "Predicate missing for key \"%s\" of list \"%s\" in path \"%s\".", kn, sn.Name, path))
				}
			}
			same = c.applyPreds(same, step.preds, Null)
		case NodeLeafList:
			for _, pr := range step.preds {
				for _, cond := range pr.conds {
					if cond.name == "." {
						llVal, hasLLVal = cond.value, true
					}
				}
			}
			if !hasLLVal {
				llVal, hasLLVal = value, last
			}
			if hasLLVal {
				v, err := c.storeValue(c.termType(s), llVal, c.jsonPrefixes(sn.Module))
				if err != nil {
					return fail(c.schemaErr(err.st, VEData, s, "%s", err.msg))
				}
				var match []Ptr
				for _, q := range same {
					if c.dnodes.at(q).Term().Value.Canonical == v.Canonical {
						match = append(match, q)
					}
				}
				same = match
			}
		}
		keyless := sn.NodeType == NodeList && len(sn.List().Keys) == 0
		if len(same) > 0 && !keyless {
			q := same[0]
			if last {
				if sn.NodeType == NodeLeaf && opts&NewPathUpdate != 0 {
					if st := c.ChangeTerm(q, value); st != Success && st != EEXIST {
						return fail(st)
					}
					return top, q, Success
				}
				if c.dnodes.at(q).Flags&DFlagDefault != 0 && sn.NodeType == NodeLeaf {
					if st := c.ChangeTerm(q, value); st != Success && st != EEXIST {
						return fail(st)
					}
					return top, q, Success
				}
				return fail(c.dataErr(EEXIST, q, "Path \"%s\" already exists.", path))
			}
			cur, atRoot = q, false
			continue
		}
		parent := Null
		if !atRoot {
			parent = cur
		}
		var mod Ptr
		if atRoot {
			mod = sn.Module
		}
		var q Ptr
		var st Status
		output := opts&NewPathOutput != 0
		switch {
		case sn.NodeType&(NodeContainer|NodeOp) != 0:
			q, st = c.NewInner(parent, mod, sn.Name, output)
		case sn.NodeType == NodeList:
			q, st = c.NewList(parent, mod, sn.Name, keyVals, output)
		case sn.NodeType == NodeLeafList:
			q, st = c.NewTerm(parent, mod, sn.Name, llVal, output)
		case sn.NodeType == NodeLeaf:
			if !last {
				return fail(c.errf(EVALID, VEXPath, "Leaf \"%s\" cannot have children in path \"%s\".", sn.Name, path))
			}
			if sn.Flags&FlagKey != 0 && parent != Null {
				return fail(c.dataErr(EEXIST, parent, "Key \"%s\" already exists.", sn.Name))
			}
			q, st = c.NewTerm(parent, mod, sn.Name, value, output)
		case sn.NodeType&NodeAny != 0:
			vt := AnyString
			if strings.HasPrefix(strings.TrimSpace(value), "{") {
				vt = AnyJSON
			} else if strings.HasPrefix(strings.TrimSpace(value), "<") {
				vt = AnyXML
			}
			q, st = c.NewAny(parent, mod, sn.Name, vt, Null, value, output)
		default:
			st = c.errf(EINT, VESuccess, "Unexpected node \"%s\" in path.", sn.Name)
		}
		if st != Success {
			return fail(st)
		}
		if atRoot && ctx != Null {
			c.placeAmong(c.Root(ctx), q)
		}
		if top == Null {
			top = q
		}
		cur, atRoot = q, false
	}
	if atRoot || cur == Null {
		return Null, Null, c.errf(EVALID, VEXPath, "Path \"%s\" does not address a data node.", path)
	}
	return top, cur, Success
}

// ContainsNode reports whether q is p or one of its descendants.
func (c *Ctx) ContainsNode(p, q Ptr) bool {
	for r := q; r != Null; r = c.dnodes.at(r).Parent {
		if r == p {
			return true
		}
	}
	return false
}

// SameTree reports whether a and b belong to the same data tree.
func (c *Ctx) SameTree(a, b Ptr) bool {
	return c.Root(a) == c.Root(b)
}

func (c *Ctx) schemaInstances(first, schema Ptr) []Ptr {
	var out []Ptr
	for q := first; q != Null; q = c.dnodes.at(q).Next {
		if c.dnodes.at(q).Schema == schema {
			out = append(out, q)
		}
	}
	return out
}

func containsPtr(list []Ptr, p Ptr) bool {
	return slices.Contains(list, p)
}

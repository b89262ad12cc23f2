package yangbind

import (
	"iter"
	"sync/atomic"

	"github.com/lukeod/yangbind/internal/ly"
)

// DataNode is a node of a data tree. The concrete type is one of
// *InnerNode, *TermNode, *AnyNode and *OpaqueNode.
//
// A standalone tree is owned by whoever holds its root and lives until it
// is freed or the context is closed. Nodes linked into a tree belong to
// that tree. Every method checks that the node is still valid and fails
// with ErrContextClosed, ErrConsumed or ErrFreed otherwise.
type DataNode interface {
	Context() *Context
	// Schema returns nil for an opaque node.
	Schema() (SchemaNode, error)
	Name() (string, error)
	// Module returns nil for an opaque node of an unknown module.
	Module() (*Module, error)
	// Parent returns nil for a top-level node.
	Parent() (DataNode, error)
	Children() iter.Seq2[DataNode, error]
	// Siblings iterates over all siblings of the node, itself included,
	// starting with the first one.
	Siblings() iter.Seq2[DataNode, error]
	FirstSibling() (DataNode, error)
	// NextSibling returns nil for the last sibling.
	NextSibling() (DataNode, error)
	// Root returns the first top-level node of the tree.
	Root() (DataNode, error)
	Path() (string, error)
	IsDefault() (bool, error)

	Meta() ([]Meta, error)
	// NewMeta adds a metadata instance or changes its value.
	NewMeta(module, name, value string) error
	RemoveMeta(module, name string) error

	// Unlink detaches the node with its subtree; it becomes the root of a
	// standalone tree owned by the caller.
	Unlink() error
	// Free releases the node and its subtree, unlinking it first when it is
	// still part of a larger tree.
	Free() error
	// FreeAll releases the whole tree the node belongs to.
	FreeAll() error
	// Merge merges source into the siblings of this node and returns their
	// first node. With MergeDestruct the source is consumed: its wrapper
	// fails with ErrConsumed afterwards.
	Merge(source DataNode, opts MergeOptions) (DataNode, error)
	// Duplicate copies the node into a new standalone tree and returns the
	// copy of this node.
	Duplicate(opts DupOptions) (DataNode, error)
	Print(format DataFormat, opts PrintOptions) ([]byte, error)
	// FindPath evaluates an XPath 1.0 expression with this node as context.
	// Name tests without a prefix match nodes of any module. The expression
	// must select nodes.
	FindPath(xpath string) ([]DataNode, error)
	// NewPath creates the nodes of a path in this tree. Relative paths start
	// at this node. It returns the node the path addresses.
	NewPath(path, value string, opts NewPathOptions) (DataNode, error)
	Equal(other DataNode, opts CompareOptions) (bool, error)

	// InsertChild moves node under this node.
	InsertChild(node DataNode) error
	// InsertSibling moves node among the siblings of this node and returns
	// the new first sibling.
	InsertSibling(node DataNode) (DataNode, error)
	// InsertBefore and InsertAfter position an instance of a user-ordered
	// list or leaf-list.
	InsertBefore(node DataNode) error
	InsertAfter(node DataNode) error
	// Validate validates the tree containing the node and returns its first
	// top-level node.
	Validate(opts ValidateOptions) (DataNode, error)

	base() *dataBase
}

// Meta is a metadata (annotation) instance.
type Meta struct {
	Module string
	Name   string
	Value  string
}

const (
	stateLive uint32 = iota
	stateFreed
	stateConsumed
)

type dataBase struct {
	ctx    *Context
	ptr    ly.Ptr
	serial uint64
	state  atomic.Uint32
}

func (d *dataBase) base() *dataBase { return d }

func (d *dataBase) key() cacheKey {
	return cacheKey{kind: handleData, ptr: d.ptr, serial: d.serial}
}

// use fails when the node can no longer be dereferenced. The serial check
// catches nodes released as part of another node's subtree.
func (d *dataBase) use(op string) error {
	if d.ctx.closed.Load() {
		return newError(KindContextClosed, op)
	}
	switch d.state.Load() {
	case stateConsumed:
		return newError(KindConsumed, op)
	case stateFreed:
		return newError(KindFreed, op)
	}
	if d.ctx.native.DataSerial(d.ptr) != d.serial {
		return newError(KindFreed, op)
	}
	return nil
}

// operand checks a second node passed to an operation.
func (d *dataBase) operand(op string, other DataNode) (*dataBase, error) {
	if other == nil {
		return nil, &Error{Kind: KindInvalidArg, Op: op, Items: []ErrorItem{{
			Level: LevelError, Code: CodeInvalid, Message: "A node is required.",
		}}}
	}
	o := other.base()
	if err := d.ctx.owns(op, o.ctx); err != nil {
		return nil, err
	}
	if err := o.use(op); err != nil {
		return nil, err
	}
	return o, nil
}

func (d *dataBase) invalidate(state uint32) {
	d.state.Store(state)
	d.ctx.cache.evict(d.key())
}

// movable refuses to detach list keys from their list.
func (d *dataBase) movable(op string) error {
	n := d.ctx.native.DNode(d.ptr)
	if n.Parent == ly.Null || n.Schema == ly.Null {
		return nil
	}
	s := d.ctx.native.SNode(n.Schema)
	if s.Flags&ly.FlagKey == 0 {
		return nil
	}
	return &Error{Kind: KindInvalidArg, Op: op, Code: CodeInvalid, Items: []ErrorItem{{
		Level:    LevelError,
		Code:     CodeInvalid,
		Message:  "List key \"" + s.Name + "\" cannot be detached from its list.",
		DataPath: d.ctx.native.Path(d.ptr),
	}}}
}

func (d *dataBase) Context() *Context { return d.ctx }

func (d *dataBase) Schema() (SchemaNode, error) {
	if err := d.use("schema"); err != nil {
		return nil, err
	}
	return d.ctx.wrapSchema(d.ctx.native.DNode(d.ptr).Schema), nil
}

func (d *dataBase) Name() (string, error) {
	if err := d.use("name"); err != nil {
		return "", err
	}
	n := d.ctx.native.DNode(d.ptr)
	if n.Schema == ly.Null {
		return n.Opaq().Name, nil
	}
	return d.ctx.native.SNode(n.Schema).Name, nil
}

func (d *dataBase) Module() (*Module, error) {
	if err := d.use("module"); err != nil {
		return nil, err
	}
	p := d.ctx.native.OwnerModule(d.ptr)
	if p == ly.Null {
		return nil, nil
	}
	return d.ctx.wrapModule(p), nil
}

func (d *dataBase) Parent() (DataNode, error) {
	if err := d.use("parent"); err != nil {
		return nil, err
	}
	return d.ctx.wrapData(d.ctx.native.DNode(d.ptr).Parent), nil
}

func (d *dataBase) Children() iter.Seq2[DataNode, error] {
	return d.ctx.dataSeq("children", d, func() ly.Ptr { return d.ctx.native.Child(d.ptr) })
}

func (d *dataBase) Siblings() iter.Seq2[DataNode, error] {
	return d.ctx.dataSeq("siblings", d, func() ly.Ptr { return d.ctx.native.FirstSibling(d.ptr) })
}

func (d *dataBase) FirstSibling() (DataNode, error) {
	if err := d.use("first sibling"); err != nil {
		return nil, err
	}
	return d.ctx.wrapData(d.ctx.native.FirstSibling(d.ptr)), nil
}

func (d *dataBase) NextSibling() (DataNode, error) {
	if err := d.use("next sibling"); err != nil {
		return nil, err
	}
	return d.ctx.wrapData(d.ctx.native.DNode(d.ptr).Next), nil
}

func (d *dataBase) Root() (DataNode, error) {
	if err := d.use("root"); err != nil {
		return nil, err
	}
	return d.ctx.wrapData(d.ctx.native.Root(d.ptr)), nil
}

func (d *dataBase) Path() (string, error) {
	if err := d.use("path"); err != nil {
		return "", err
	}
	return d.ctx.native.Path(d.ptr), nil
}

func (d *dataBase) IsDefault() (bool, error) {
	if err := d.use("is default"); err != nil {
		return false, err
	}
	return d.ctx.native.DNode(d.ptr).Flags&ly.DFlagDefault != 0, nil
}

func (d *dataBase) Meta() ([]Meta, error) {
	if err := d.use("meta"); err != nil {
		return nil, err
	}
	var out []Meta
	for m := d.ctx.native.DNode(d.ptr).Meta; m != ly.Null; {
		md := d.ctx.native.MetaOf(m)
		out = append(out, Meta{Module: md.Module, Name: md.Name, Value: md.Value})
		m = md.Next
	}
	return out, nil
}

func (d *dataBase) NewMeta(module, name, value string) error {
	if err := d.use("new meta"); err != nil {
		return err
	}
	return d.ctx.call("new meta", KindNative, func() ly.Status {
		_, st := d.ctx.native.NewMeta(d.ptr, module, name, value)
		return st
	})
}

func (d *dataBase) RemoveMeta(module, name string) error {
	if err := d.use("remove meta"); err != nil {
		return err
	}
	m := d.ctx.native.FindMeta(d.ptr, module, name)
	if m == ly.Null {
		return &Error{Kind: KindNotFound, Op: "remove meta", Code: CodeNotFound, Items: []ErrorItem{{
			Level:    LevelError,
			Code:     CodeNotFound,
			Message:  "Metadata \"" + module + ":" + name + "\" not found.",
			DataPath: d.ctx.native.Path(d.ptr),
		}}}
	}
	d.ctx.run("remove meta", func() ly.Status {
		d.ctx.native.FreeMeta(m)
		return ly.Success
	})
	return nil
}

func (d *dataBase) Unlink() error {
	if err := d.use("unlink"); err != nil {
		return err
	}
	if err := d.movable("unlink"); err != nil {
		return err
	}
	d.ctx.run("unlink", func() ly.Status {
		d.ctx.native.UnlinkTree(d.ptr)
		return ly.Success
	})
	return nil
}

func (d *dataBase) Free() error {
	if err := d.use("free"); err != nil {
		return err
	}
	if err := d.movable("free"); err != nil {
		return err
	}
	d.ctx.run("free", func() ly.Status {
		d.ctx.native.UnlinkTree(d.ptr)
		d.ctx.native.FreeTree(d.ptr)
		return ly.Success
	})
	d.invalidate(stateFreed)
	return nil
}

func (d *dataBase) FreeAll() error {
	if err := d.use("free all"); err != nil {
		return err
	}
	d.ctx.run("free all", func() ly.Status {
		d.ctx.native.FreeAll(d.ptr)
		return ly.Success
	})
	d.invalidate(stateFreed)
	return nil
}

func (d *dataBase) Merge(source DataNode, opts MergeOptions) (DataNode, error) {
	const op = "merge"
	if err := d.use(op); err != nil {
		return nil, err
	}
	s, err := d.operand(op, source)
	if err != nil {
		return nil, err
	}
	if d.ctx.native.SameTree(d.ptr, s.ptr) {
		return nil, &Error{Kind: KindInvalidArg, Op: op, Items: []ErrorItem{{
			Level: LevelError, Code: CodeInvalid, Message: "Cannot merge a node into its own tree.",
		}}}
	}
	if opts&MergeDestruct != 0 {
		if err := s.movable(op); err != nil {
			return nil, err
		}
	}
	target := d.ptr
	lopts := ly.MergeOptions(opts &^ MergeWithSiblings)
	err = d.ctx.call(op, KindMerge, func() ly.Status {
		if opts&MergeWithSiblings != 0 {
			return d.ctx.native.MergeSiblings(&target, s.ptr, lopts)
		}
		return d.ctx.native.MergeTree(&target, s.ptr, lopts)
	})
	if err != nil {
		return nil, err
	}
	if opts&MergeDestruct != 0 {
		s.invalidate(stateConsumed)
	}
	return d.ctx.wrapData(target), nil
}

func (d *dataBase) Duplicate(opts DupOptions) (DataNode, error) {
	if err := d.use("duplicate"); err != nil {
		return nil, err
	}
	var dup ly.Ptr
	lopts := ly.DupOptions(opts &^ DupWithSiblings)
	err := d.ctx.call("duplicate", KindNative, func() ly.Status {
		var st ly.Status
		if opts&DupWithSiblings != 0 {
			dup, st = d.ctx.native.DupSiblings(d.ptr, ly.Null, lopts)
		} else {
			dup, st = d.ctx.native.DupSingle(d.ptr, ly.Null, lopts)
		}
		return st
	})
	if err != nil {
		return nil, err
	}
	return d.ctx.wrapData(dup), nil
}

func (d *dataBase) Print(format DataFormat, opts PrintOptions) ([]byte, error) {
	if err := d.use("print"); err != nil {
		return nil, err
	}
	if err := opts.checkWD(); err != nil {
		return nil, err
	}
	var out []byte
	err := d.ctx.call("print", KindPrint, func() ly.Status {
		var st ly.Status
		out, st = d.ctx.native.PrintTree(d.ptr, ly.DataFormat(format), ly.PrintOptions(opts))
		return st
	})
	return out, err
}

func (d *dataBase) FindPath(xpath string) ([]DataNode, error) {
	if err := d.use("find path"); err != nil {
		return nil, err
	}
	var found []ly.Ptr
	err := d.ctx.call("find path", KindPath, func() ly.Status {
		var st ly.Status
		found, st = d.ctx.native.FindXPath(d.ptr, xpath)
		return st
	})
	if err != nil {
		return nil, err
	}
	out := make([]DataNode, 0, len(found))
	for _, p := range found {
		out = append(out, d.ctx.wrapData(p))
	}
	return out, nil
}

func (d *dataBase) NewPath(path, value string, opts NewPathOptions) (DataNode, error) {
	if err := d.use("new path"); err != nil {
		return nil, err
	}
	var node ly.Ptr
	err := d.ctx.call("new path", KindNative, func() ly.Status {
		var st ly.Status
		_, node, st = d.ctx.native.NewPath(d.ptr, path, value, ly.NewPathOptions(opts))
		return st
	})
	if err != nil {
		return nil, err
	}
	return d.ctx.wrapData(node), nil
}

func (d *dataBase) Equal(other DataNode, opts CompareOptions) (bool, error) {
	if err := d.use("equal"); err != nil {
		return false, err
	}
	o, err := d.operand("equal", other)
	if err != nil {
		return false, err
	}
	st := d.ctx.run("equal", func() ly.Status {
		return d.ctx.native.CompareSingle(d.ptr, o.ptr, ly.CompareOptions(opts))
	})
	return st == ly.Success, nil
}

func (d *dataBase) insert(op string, node DataNode, fn func(n *dataBase) ly.Status) error {
	if err := d.use(op); err != nil {
		return err
	}
	n, err := d.operand(op, node)
	if err != nil {
		return err
	}
	if err := n.movable(op); err != nil {
		return err
	}
	return d.ctx.call(op, KindNative, func() ly.Status { return fn(n) })
}

func (d *dataBase) InsertChild(node DataNode) error {
	return d.insert("insert child", node, func(n *dataBase) ly.Status {
		return d.ctx.native.InsertChild(d.ptr, n.ptr)
	})
}

func (d *dataBase) InsertSibling(node DataNode) (DataNode, error) {
	var first ly.Ptr
	err := d.insert("insert sibling", node, func(n *dataBase) ly.Status {
		var st ly.Status
		first, st = d.ctx.native.InsertSibling(d.ptr, n.ptr)
		return st
	})
	if err != nil {
		return nil, err
	}
	return d.ctx.wrapData(first), nil
}

func (d *dataBase) InsertBefore(node DataNode) error {
	return d.insert("insert before", node, func(n *dataBase) ly.Status {
		return d.ctx.native.InsertBefore(d.ptr, n.ptr)
	})
}

func (d *dataBase) InsertAfter(node DataNode) error {
	return d.insert("insert after", node, func(n *dataBase) ly.Status {
		return d.ctx.native.InsertAfter(d.ptr, n.ptr)
	})
}

func (d *dataBase) Validate(opts ValidateOptions) (DataNode, error) {
	if err := d.use("validate"); err != nil {
		return nil, err
	}
	root := d.ctx.native.Root(d.ptr)
	err := d.ctx.call("validate", KindValidation, func() ly.Status {
		return d.ctx.native.ValidateAll(&root, ly.ValidateOptions(opts))
	})
	if err != nil {
		return nil, err
	}
	return d.ctx.wrapData(root), nil
}

// InnerNode is an instance of a container, list, rpc, action or
// notification.
type InnerNode struct {
	dataBase
}

// NewInner creates a child container, action or notification. A nil
// module means the module of the parent.
func (n *InnerNode) NewInner(m *Module, name string) (*InnerNode, error) {
	mod, err := n.childModule("new inner", m)
	if err != nil {
		return nil, err
	}
	return n.ctx.newInner(n.ptr, mod, name)
}

// NewList creates a child list instance with the given key values in key
// order.
func (n *InnerNode) NewList(m *Module, name string, keys ...string) (*InnerNode, error) {
	mod, err := n.childModule("new list", m)
	if err != nil {
		return nil, err
	}
	return n.ctx.newList(n.ptr, mod, name, keys)
}

// NewTerm creates a child leaf or leaf-list instance.
func (n *InnerNode) NewTerm(m *Module, name, value string) (*TermNode, error) {
	mod, err := n.childModule("new term", m)
	if err != nil {
		return nil, err
	}
	return n.ctx.newTerm(n.ptr, mod, name, value)
}

// NewAny creates a child anydata or anyxml instance.
func (n *InnerNode) NewAny(m *Module, name string, value AnyValue) (*AnyNode, error) {
	mod, err := n.childModule("new any", m)
	if err != nil {
		return nil, err
	}
	return n.ctx.newAny(n.ptr, mod, name, value)
}

// NewOpaque creates a child opaque node.
func (n *InnerNode) NewOpaque(name, value, prefix, moduleName string) (*OpaqueNode, error) {
	if err := n.use("new opaque"); err != nil {
		return nil, err
	}
	return n.ctx.newOpaque(n.ptr, name, value, prefix, moduleName)
}

func (d *dataBase) childModule(op string, m *Module) (ly.Ptr, error) {
	if err := d.use(op); err != nil {
		return ly.Null, err
	}
	if m == nil {
		return ly.Null, nil
	}
	if err := d.ctx.owns(op, m.ctx); err != nil {
		return ly.Null, err
	}
	return m.ptr, nil
}

// outputFor reports whether name is only found in the output of the
// operation parent is an instance of.
func (c *Context) outputFor(parent ly.Ptr, name string) bool {
	if parent == ly.Null {
		return false
	}
	s := c.native.DNode(parent).Schema
	if s == ly.Null || c.native.SNode(s).NodeType&(ly.NodeRPC|ly.NodeAction) == 0 {
		return false
	}
	return c.native.FindChild(s, ly.Null, "", name, false) == ly.Null &&
		c.native.FindChild(s, ly.Null, "", name, true) != ly.Null
}

func (c *Context) newInner(parent, mod ly.Ptr, name string) (*InnerNode, error) {
	var p ly.Ptr
	err := c.call("new inner", KindNative, func() ly.Status {
		var st ly.Status
		p, st = c.native.NewInner(parent, mod, name, c.outputFor(parent, name))
		return st
	})
	if err != nil {
		return nil, err
	}
	return c.wrapData(p).(*InnerNode), nil
}

func (c *Context) newList(parent, mod ly.Ptr, name string, keys []string) (*InnerNode, error) {
	var p ly.Ptr
	err := c.call("new list", KindNative, func() ly.Status {
		var st ly.Status
		p, st = c.native.NewList(parent, mod, name, keys, c.outputFor(parent, name))
		return st
	})
	if err != nil {
		return nil, err
	}
	return c.wrapData(p).(*InnerNode), nil
}

func (c *Context) newTerm(parent, mod ly.Ptr, name, value string) (*TermNode, error) {
	var p ly.Ptr
	err := c.call("new term", KindNative, func() ly.Status {
		var st ly.Status
		p, st = c.native.NewTerm(parent, mod, name, value, c.outputFor(parent, name))
		return st
	})
	if err != nil {
		return nil, err
	}
	return c.wrapData(p).(*TermNode), nil
}

func (c *Context) newAny(parent, mod ly.Ptr, name string, value AnyValue) (*AnyNode, error) {
	const op = "new any"
	var tree ly.Ptr
	if value.Type == AnyDataTree && value.Tree != nil {
		t := value.Tree.base()
		if err := c.owns(op, t.ctx); err != nil {
			return nil, err
		}
		if err := t.use(op); err != nil {
			return nil, err
		}
		err := c.call(op, KindNative, func() ly.Status {
			var st ly.Status
			tree, st = c.native.DupSiblings(t.ptr, ly.Null, ly.DupRecursive)
			return st
		})
		if err != nil {
			return nil, err
		}
	}
	var p ly.Ptr
	err := c.call(op, KindNative, func() ly.Status {
		var st ly.Status
		p, st = c.native.NewAny(parent, mod, name, ly.AnyValueType(value.Type), tree, value.String, c.outputFor(parent, name))
		return st
	})
	if err != nil {
		if tree != ly.Null {
			c.native.FreeSiblings(tree)
		}
		return nil, err
	}
	return c.wrapData(p).(*AnyNode), nil
}

func (c *Context) newOpaque(parent ly.Ptr, name, value, prefix, moduleName string) (*OpaqueNode, error) {
	var p ly.Ptr
	err := c.call("new opaque", KindNative, func() ly.Status {
		var st ly.Status
		p, st = c.native.NewOpaq(parent, name, value, prefix, moduleName)
		return st
	})
	if err != nil {
		return nil, err
	}
	return c.wrapData(p).(*OpaqueNode), nil
}

// TermNode is an instance of a leaf or leaf-list.
type TermNode struct {
	dataBase
}

// Value returns the stored value.
func (n *TermNode) Value() (Value, error) {
	if err := n.use("value"); err != nil {
		return Value{}, err
	}
	return n.ctx.convertValue(&n.ctx.native.DNode(n.ptr).Term().Value), nil
}

// SetValue changes the value. It reports false when the value was already
// set. List keys cannot be changed.
func (n *TermNode) SetValue(value string) (bool, error) {
	if err := n.use("set value"); err != nil {
		return false, err
	}
	st := n.ctx.run("set value", func() ly.Status {
		return n.ctx.native.ChangeTerm(n.ptr, value)
	})
	if st == ly.EEXIST {
		n.ctx.drain()
		return false, nil
	}
	if err := n.ctx.check("set value", KindNative, st); err != nil {
		return false, err
	}
	return true, nil
}

// AnyValue is the value of an anydata or anyxml node. Tree is used when
// Type is AnyDataTree; String holds the other representations.
type AnyValue struct {
	Type   AnyValueType
	Tree   DataNode
	String string
}

// AnyNode is an instance of an anydata or anyxml.
type AnyNode struct {
	dataBase
}

// Value returns the value. A tree value is a copy owned by the caller.
func (n *AnyNode) Value() (AnyValue, error) {
	if err := n.use("any value"); err != nil {
		return AnyValue{}, err
	}
	a := n.ctx.native.DNode(n.ptr).Any()
	v := AnyValue{Type: AnyValueType(a.ValueType), String: a.Str}
	if a.ValueType != ly.AnyDataTree || a.Tree == ly.Null {
		return v, nil
	}
	var dup ly.Ptr
	err := n.ctx.call("any value", KindNative, func() ly.Status {
		var st ly.Status
		dup, st = n.ctx.native.DupSiblings(a.Tree, ly.Null, ly.DupRecursive)
		return st
	})
	if err != nil {
		return AnyValue{}, err
	}
	v.Tree = n.ctx.wrapData(dup)
	return v, nil
}

// OpaqueNode is a node without a schema, kept from unknown input with
// ParseOpaque or created with NewOpaque. It can have opaque children.
type OpaqueNode struct {
	dataBase
}

func (n *OpaqueNode) opaq(op string) (*ly.DOpaq, error) {
	if err := n.use(op); err != nil {
		return nil, err
	}
	return n.ctx.native.DNode(n.ptr).Opaq(), nil
}

// Prefix returns the prefix the node was written with.
func (n *OpaqueNode) Prefix() (string, error) {
	o, err := n.opaq("prefix")
	if err != nil {
		return "", err
	}
	return o.Prefix, nil
}

// ModuleName returns the module the node claims to belong to.
func (n *OpaqueNode) ModuleName() (string, error) {
	o, err := n.opaq("module name")
	if err != nil {
		return "", err
	}
	return o.ModuleName, nil
}

// Value returns the text value. A merge may replace it.
func (n *OpaqueNode) Value() (string, error) {
	o, err := n.opaq("value")
	if err != nil {
		return "", err
	}
	return o.Value, nil
}

// NewOpaque creates a child opaque node.
func (n *OpaqueNode) NewOpaque(name, value, prefix, moduleName string) (*OpaqueNode, error) {
	if err := n.use("new opaque"); err != nil {
		return nil, err
	}
	return n.ctx.newOpaque(n.ptr, name, value, prefix, moduleName)
}

// wrapData returns the wrapper of a data node, nil for ly.Null. The variant
// follows the schema node type; nodes without a schema are opaque.
func (c *Context) wrapData(p ly.Ptr) DataNode {
	if p == ly.Null {
		return nil
	}
	d := c.native.DNode(p)
	serial := c.native.DataSerial(p)
	k := cacheKey{kind: handleData, ptr: p, serial: serial}
	base := func(b *dataBase) {
		b.ctx, b.ptr, b.serial = c, p, serial
	}
	if d.Schema == ly.Null {
		return lookup(c.cache, k, func() *OpaqueNode {
			n := &OpaqueNode{}
			base(&n.dataBase)
			return n
		})
	}
	switch nt := c.native.SNode(d.Schema).NodeType; {
	case nt&ly.NodeTerm != 0:
		return lookup(c.cache, k, func() *TermNode {
			n := &TermNode{}
			base(&n.dataBase)
			return n
		})
	case nt&ly.NodeAny != 0:
		return lookup(c.cache, k, func() *AnyNode {
			n := &AnyNode{}
			base(&n.dataBase)
			return n
		})
	default:
		return lookup(c.cache, k, func() *InnerNode {
			n := &InnerNode{}
			base(&n.dataBase)
			return n
		})
	}
}

// dataSeq iterates over a native sibling chain starting at first(). The
// next pointer and its serial are read before yielding, so the yielded node
// may be unlinked or freed by the caller.
func (c *Context) dataSeq(op string, owner *dataBase, first func() ly.Ptr) iter.Seq2[DataNode, error] {
	return func(yield func(DataNode, error) bool) {
		if err := owner.use(op); err != nil {
			yield(nil, err)
			return
		}
		start := first()
		for p := start; p != ly.Null; {
			n := c.wrapData(p)
			next := c.native.DNode(p).Next
			var nextSerial uint64
			if next != ly.Null {
				nextSerial = c.native.DataSerial(next)
			}
			if !yield(n, nil) {
				return
			}
			if next == ly.Null || next == start {
				return
			}
			if err := c.alive(op); err != nil {
				yield(nil, err)
				return
			}
			if c.native.DataSerial(next) != nextSerial {
				yield(nil, newError(KindFreed, op))
				return
			}
			p = next
		}
	}
}

// Diff returns a tree describing how to get from a to b, with
// yang:operation metadata on its nodes, or nil when they are equal. Both
// whole sibling lists are compared; either side may be nil. The caller owns
// the result.
func Diff(a, b DataNode) (DataNode, error) {
	const op = "diff"
	var c *Context
	var pa, pb ly.Ptr
	for i, n := range []DataNode{a, b} {
		if n == nil {
			continue
		}
		d := n.base()
		if c == nil {
			c = d.ctx
		} else if err := c.owns(op, d.ctx); err != nil {
			return nil, err
		}
		if err := d.use(op); err != nil {
			return nil, err
		}
		if i == 0 {
			pa = d.ptr
		} else {
			pb = d.ptr
		}
	}
	if c == nil {
		return nil, nil
	}
	var out ly.Ptr
	err := c.call(op, KindNative, func() ly.Status {
		var st ly.Status
		out, st = c.native.DiffSiblings(pa, pb)
		return st
	})
	if err != nil {
		return nil, err
	}
	return c.wrapData(out), nil
}

// Equal compares the whole sibling lists of a and b. Two nil trees are
// equal.
func Equal(a, b DataNode, opts CompareOptions) (bool, error) {
	switch {
	case a == nil && b == nil:
		return true, nil
	case a == nil:
		return false, b.base().use("equal")
	case b == nil:
		return false, a.base().use("equal")
	}
	da := a.base()
	db, err := da.operand("equal", b)
	if err != nil {
		return false, err
	}
	if err := da.use("equal"); err != nil {
		return false, err
	}
	st := da.ctx.run("equal", func() ly.Status {
		return da.ctx.native.CompareSiblings(da.ptr, db.ptr, ly.CompareOptions(opts))
	})
	return st == ly.Success, nil
}

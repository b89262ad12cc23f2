package yangbind

import (
	"iter"

	"github.com/lukeod/yangbind/internal/ly"
)

// Must is a must restriction.
type Must struct {
	Condition    string
	ErrorMessage string
	ErrorAppTag  string
	Description  string
}

// SchemaNode is a compiled schema node. The concrete type is one of
// *Container, *List, *Leaf, *LeafList, *Choice, *Case, *AnyData, *Action,
// *InOut and *Notification.
//
// The metadata accessors return a snapshot taken when the node was first
// seen and keep working after the context is closed. Traversal goes back to
// the native schema and fails with ErrContextClosed once it is closed.
//
// While the context is open, a schema node observed twice is the same
// wrapper, so nodes can be compared with ==.
type SchemaNode interface {
	Name() string
	Kind() NodeKind
	Description() string
	Reference() string
	Status() Status
	Config() bool
	Mandatory() bool
	When() string
	Musts() []Must
	IfFeatures() []string
	Extensions() []Extension
	// Path is the schema path including choice, case, input and output.
	Path() string
	// DataPath is the path of instances of the node.
	DataPath() string
	Context() *Context
	Module() (*Module, error)
	// Parent returns nil for a top-level node.
	Parent() (SchemaNode, error)
	// NextSibling returns nil for the last node.
	NextSibling() (SchemaNode, error)
	Children() iter.Seq2[SchemaNode, error]
	FindPath(xpath string, opts ...FindOption) ([]SchemaNode, error)
	// Enabled reports whether the if-features of the node and its
	// ancestors are satisfied.
	Enabled() (bool, error)
	// Print returns the tree diagram of the node and its subtree.
	Print() ([]byte, error)

	schema() *schemaBase
}

type schemaBase struct {
	ctx    *Context
	ptr    ly.Ptr
	mod    ly.Ptr
	parent ly.Ptr

	kind       NodeKind
	flags      ly.SFlags
	name       string
	dsc        string
	ref        string
	when       string
	musts      []Must
	ifFeatures []string
	exts       []Extension
	path       string
	dataPath   string
	mandatory  bool
}

func (c *Context) newSchemaBase(p ly.Ptr, n *ly.SNode) schemaBase {
	s := schemaBase{
		ctx:        c,
		ptr:        p,
		mod:        n.Module,
		parent:     n.Parent,
		kind:       NodeKind(n.NodeType),
		flags:      n.Flags,
		name:       n.Name,
		dsc:        n.Dsc,
		ref:        n.Ref,
		when:       n.When,
		ifFeatures: append([]string(nil), n.IfFeatures...),
		exts:       convertExts(n.Exts),
		path:       c.native.SchemaPath(p, false),
		dataPath:   c.native.SchemaPath(p, true),
		mandatory:  c.native.IsMandatory(p),
	}
	for _, m := range n.Musts {
		s.musts = append(s.musts, Must{
			Condition:    m.Cond,
			ErrorMessage: m.ErrorMessage,
			ErrorAppTag:  m.ErrorAppTag,
			Description:  m.Description,
		})
	}
	return s
}

func (s *schemaBase) schema() *schemaBase { return s }
func (s *schemaBase) Name() string { return s.name }
func (s *schemaBase) Kind() NodeKind { return s.kind }
func (s *schemaBase) Description() string { return s.dsc }
func (s *schemaBase) Reference() string { return s.ref }
func (s *schemaBase) Status() Status { return statusOf(s.flags) }
func (s *schemaBase) Config() bool { return s.flags&ly.FlagConfigW != 0 }
func (s *schemaBase) Mandatory() bool { return s.mandatory }
func (s *schemaBase) When() string { return s.when }
func (s *schemaBase) Musts() []Must { return s.musts }
func (s *schemaBase) IfFeatures() []string { return s.ifFeatures }
func (s *schemaBase) Extensions() []Extension { return s.exts }
func (s *schemaBase) Path() string { return s.path }
func (s *schemaBase) DataPath() string { return s.dataPath }
func (s *schemaBase) Context() *Context { return s.ctx }

func (s *schemaBase) String() string {
	return s.kind.String() + " " + s.path
}

func (s *schemaBase) Module() (*Module, error) {
	if err := s.ctx.alive("module"); err != nil {
		return nil, err
	}
	return s.ctx.wrapModule(s.mod), nil
}

func (s *schemaBase) Parent() (SchemaNode, error) {
	if err := s.ctx.alive("parent"); err != nil {
		return nil, err
	}
	return s.ctx.wrapSchema(s.parent), nil
}

func (s *schemaBase) NextSibling() (SchemaNode, error) {
	if err := s.ctx.alive("next sibling"); err != nil {
		return nil, err
	}
	return s.ctx.wrapSchema(s.ctx.native.SchemaNext(s.ptr)), nil
}

func (s *schemaBase) Children() iter.Seq2[SchemaNode, error] {
	return s.ctx.schemaSeq("children", func() ly.Ptr { return s.ctx.native.SchemaChild(s.ptr) })
}

func (s *schemaBase) FindPath(xpath string, opts ...FindOption) ([]SchemaNode, error) {
	return s.ctx.findSchema("find path", s.ptr, xpath, opts)
}

func (s *schemaBase) Enabled() (bool, error) {
	if err := s.ctx.alive("enabled"); err != nil {
		return false, err
	}
	return s.ctx.native.NodeEnabled(s.ptr), nil
}

func (s *schemaBase) Print() ([]byte, error) {
	if err := s.ctx.alive("print node"); err != nil {
		return nil, err
	}
	return s.ctx.native.PrintSchemaNode(s.ptr), nil
}

// Container is a container schema node.
type Container struct {
	schemaBase
	presence string
}

// Presence returns the presence statement argument, empty for a
// non-presence container.
func (n *Container) Presence() string { return n.presence }

// IsPresence reports whether the container has a presence statement.
func (n *Container) IsPresence() bool { return n.flags&ly.FlagPresence != 0 }

// Actions iterates over the actions defined in the container.
func (n *Container) Actions() iter.Seq2[SchemaNode, error] {
	return n.ctx.schemaSeq("actions", func() ly.Ptr { return n.ctx.native.SchemaActions(n.ptr) })
}

// Notifications iterates over the notifications defined in the container.
func (n *Container) Notifications() iter.Seq2[SchemaNode, error] {
	return n.ctx.schemaSeq("notifications", func() ly.Ptr { return n.ctx.native.SchemaNotifs(n.ptr) })
}

// List is a list schema node.
type List struct {
	schemaBase
	keys    []ly.Ptr
	uniques [][]ly.Ptr
	min     uint32
	max     uint32
}

// Keys returns the key leaves in key order.
func (n *List) Keys() ([]*Leaf, error) {
	if err := n.ctx.alive("keys"); err != nil {
		return nil, err
	}
	out := make([]*Leaf, 0, len(n.keys))
	for _, k := range n.keys {
		out = append(out, n.ctx.wrapSchema(k).(*Leaf))
	}
	return out, nil
}

// KeyNames returns the names of the key leaves in key order.
func (n *List) KeyNames() ([]string, error) {
	keys, err := n.Keys()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name()
	}
	return names, nil
}

// Uniques returns the leaves of every unique statement.
func (n *List) Uniques() ([][]*Leaf, error) {
	if err := n.ctx.alive("uniques"); err != nil {
		return nil, err
	}
	var out [][]*Leaf
	for _, u := range n.uniques {
		var set []*Leaf
		for _, p := range u {
			set = append(set, n.ctx.wrapSchema(p).(*Leaf))
		}
		out = append(out, set)
	}
	return out, nil
}

// MinElements returns the min-elements constraint.
func (n *List) MinElements() uint32 { return n.min }

// MaxElements returns the max-elements constraint, 0 when unbounded.
func (n *List) MaxElements() uint32 { return n.max }

// UserOrdered reports "ordered-by user".
func (n *List) UserOrdered() bool { return n.flags&ly.FlagOrdByUser != 0 }

// Actions iterates over the actions defined in the list.
func (n *List) Actions() iter.Seq2[SchemaNode, error] {
	return n.ctx.schemaSeq("actions", func() ly.Ptr { return n.ctx.native.SchemaActions(n.ptr) })
}

// Notifications iterates over the notifications defined in the list.
func (n *List) Notifications() iter.Seq2[SchemaNode, error] {
	return n.ctx.schemaSeq("notifications", func() ly.Ptr { return n.ctx.native.SchemaNotifs(n.ptr) })
}

// Leaf is a leaf schema node.
type Leaf struct {
	schemaBase
	typ   ly.Ptr
	units string
	dflt  *Value
}

// Type returns the compiled type.
func (n *Leaf) Type() (*Type, error) {
	if err := n.ctx.alive("type"); err != nil {
		return nil, err
	}
	return n.ctx.convertType(n.typ), nil
}

// Units returns the units statement argument.
func (n *Leaf) Units() string { return n.units }

// Default returns the default value, if there is one.
func (n *Leaf) Default() (Value, bool) {
	if n.dflt == nil {
		return Value{}, false
	}
	return *n.dflt, true
}

// IsKey reports whether the leaf is a list key.
func (n *Leaf) IsKey() bool { return n.flags&ly.FlagKey != 0 }

// ValidateValue checks a lexical value against the type of the leaf. Pass
// the data tree as tree to resolve leafref and instance-identifier values;
// without it those report Incomplete instead of failing.
func (n *Leaf) ValidateValue(value string, tree DataNode) (ValueCheck, error) {
	return n.validateValue(value, tree)
}

// LeafList is a leaf-list schema node.
type LeafList struct {
	schemaBase
	typ   ly.Ptr
	units string
	dflts []Value
	min   uint32
	max   uint32
}

// Type returns the compiled type.
func (n *LeafList) Type() (*Type, error) {
	if err := n.ctx.alive("type"); err != nil {
		return nil, err
	}
	return n.ctx.convertType(n.typ), nil
}

// Units returns the units statement argument.
func (n *LeafList) Units() string { return n.units }

// Defaults returns the default values.
func (n *LeafList) Defaults() []Value { return n.dflts }

// MinElements returns the min-elements constraint.
func (n *LeafList) MinElements() uint32 { return n.min }

// MaxElements returns the max-elements constraint, 0 when unbounded.
func (n *LeafList) MaxElements() uint32 { return n.max }

// UserOrdered reports "ordered-by user".
func (n *LeafList) UserOrdered() bool { return n.flags&ly.FlagOrdByUser != 0 }

// ValidateValue checks a lexical value against the type of the leaf-list.
func (n *LeafList) ValidateValue(value string, tree DataNode) (ValueCheck, error) {
	return n.validateValue(value, tree)
}

func (s *schemaBase) validateValue(value string, tree DataNode) (ValueCheck, error) {
	const op = "validate value"
	c := s.ctx
	if err := c.alive(op); err != nil {
		return ValueCheck{}, err
	}
	var t ly.Ptr
	if tree != nil {
		d := tree.base()
		if err := d.use(op); err != nil {
			return ValueCheck{}, err
		}
		if err := c.owns(op, d.ctx); err != nil {
			return ValueCheck{}, err
		}
		t = d.ptr
	}
	var nv ly.Value
	st := c.run(op, func() ly.Status {
		var st ly.Status
		nv, st = c.native.ValidateValue(s.ptr, value, t)
		return st
	})
	if st == ly.EINCOMPLETE {
		c.drain()
		return ValueCheck{Value: c.convertValue(&nv), Incomplete: true}, nil
	}
	if err := c.check(op, KindValidation, st); err != nil {
		return ValueCheck{}, err
	}
	return ValueCheck{Value: c.convertValue(&nv)}, nil
}

// Choice is a choice schema node.
type Choice struct {
	schemaBase
	dflt ly.Ptr
}

// Cases returns the cases of the choice. Shorthand cases are included.
func (n *Choice) Cases() ([]*Case, error) {
	var out []*Case
	for ch, err := range n.Children() {
		if err != nil {
			return nil, err
		}
		out = append(out, ch.(*Case))
	}
	return out, nil
}

// Default returns the default case, or nil.
func (n *Choice) Default() (*Case, error) {
	if err := n.ctx.alive("default case"); err != nil {
		return nil, err
	}
	if n.dflt == ly.Null {
		return nil, nil
	}
	return n.ctx.wrapSchema(n.dflt).(*Case), nil
}

// Case is a case schema node.
type Case struct {
	schemaBase
}

// AnyData is an anydata or anyxml schema node.
type AnyData struct {
	schemaBase
}

// IsAnyXML reports whether the node is an anyxml.
func (n *AnyData) IsAnyXML() bool { return n.kind == NodeAnyXML }

// Action is an rpc or an action. Its children are its input and output.
type Action struct {
	schemaBase
	input  ly.Ptr
	output ly.Ptr
}

// IsRPC reports whether the operation is a top-level rpc.
func (n *Action) IsRPC() bool { return n.kind == NodeRPC }

// Input returns the input node. It exists even when the operation does not
// define one.
func (n *Action) Input() (*InOut, error) {
	if err := n.ctx.alive("input"); err != nil {
		return nil, err
	}
	return n.ctx.wrapSchema(n.input).(*InOut), nil
}

// Output returns the output node.
func (n *Action) Output() (*InOut, error) {
	if err := n.ctx.alive("output"); err != nil {
		return nil, err
	}
	return n.ctx.wrapSchema(n.output).(*InOut), nil
}

// InOut is the input or output of an operation.
type InOut struct {
	schemaBase
}

// IsOutput reports whether the node is an output.
func (n *InOut) IsOutput() bool { return n.kind == NodeOutput }

// Notification is a notification schema node.
type Notification struct {
	schemaBase
}

// wrapSchema returns the wrapper of a schema node, nil for ly.Null. The tag
// is read first and picks the variant; the variant fields are copied once.
func (c *Context) wrapSchema(p ly.Ptr) SchemaNode {
	if p == ly.Null {
		return nil
	}
	n := c.native.SNode(p)
	k := cacheKey{kind: handleSchema, ptr: p}
	switch n.NodeType {
	case ly.NodeContainer:
		return lookup(c.cache, k, func() *Container {
			return &Container{schemaBase: c.newSchemaBase(p, n), presence: n.Container().Presence}
		})
	case ly.NodeList:
		return lookup(c.cache, k, func() *List {
			v := n.List()
			l := &List{schemaBase: c.newSchemaBase(p, n), min: v.Min, max: v.Max}
			l.keys = append(l.keys, v.Keys...)
			for _, u := range v.Uniques {
				l.uniques = append(l.uniques, append([]ly.Ptr(nil), u...))
			}
			return l
		})
	case ly.NodeLeaf:
		return lookup(c.cache, k, func() *Leaf {
			v := n.Leaf()
			l := &Leaf{schemaBase: c.newSchemaBase(p, n), typ: v.Type, units: v.Units}
			if v.Dflt != nil {
				d := c.convertValue(v.Dflt)
				l.dflt = &d
			}
			return l
		})
	case ly.NodeLeafList:
		return lookup(c.cache, k, func() *LeafList {
			v := n.LeafList()
			l := &LeafList{schemaBase: c.newSchemaBase(p, n), typ: v.Type, units: v.Units, min: v.Min, max: v.Max}
			for i := range v.Dflts {
				l.dflts = append(l.dflts, c.convertValue(&v.Dflts[i]))
			}
			return l
		})
	case ly.NodeChoice:
		return lookup(c.cache, k, func() *Choice {
			return &Choice{schemaBase: c.newSchemaBase(p, n), dflt: n.Choice().Dflt}
		})
	case ly.NodeCase:
		return lookup(c.cache, k, func() *Case {
			return &Case{schemaBase: c.newSchemaBase(p, n)}
		})
	case ly.NodeAnyXML, ly.NodeAnyData:
		return lookup(c.cache, k, func() *AnyData {
			return &AnyData{schemaBase: c.newSchemaBase(p, n)}
		})
	case ly.NodeRPC, ly.NodeAction:
		return lookup(c.cache, k, func() *Action {
			v := n.Action()
			return &Action{schemaBase: c.newSchemaBase(p, n), input: v.Input, output: v.Output}
		})
	case ly.NodeInput, ly.NodeOutput:
		return lookup(c.cache, k, func() *InOut {
			return &InOut{schemaBase: c.newSchemaBase(p, n)}
		})
	case ly.NodeNotif:
		return lookup(c.cache, k, func() *Notification {
			return &Notification{schemaBase: c.newSchemaBase(p, n)}
		})
	}
	panic("yangbind: unexpected schema node type " + n.NodeType.String())
}

// schemaSeq iterates over a native sibling chain starting at first(). The
// next pointer is read before yielding, and the walk ends at the end of the
// chain or when it comes back to the start.
func (c *Context) schemaSeq(op string, first func() ly.Ptr) iter.Seq2[SchemaNode, error] {
	return func(yield func(SchemaNode, error) bool) {
		if err := c.alive(op); err != nil {
			yield(nil, err)
			return
		}
		start := first()
		for p := start; p != ly.Null; {
			n := c.wrapSchema(p)
			next := c.native.SchemaNext(p)
			if !yield(n, nil) {
				return
			}
			if err := c.alive(op); err != nil {
				yield(nil, err)
				return
			}
			if next == start {
				return
			}
			p = next
		}
	}
}

// Walk visits n and its subtree depth-first, including the actions and
// notifications of containers and lists. If fn returns false the children
// of that node are skipped.
func Walk(n SchemaNode, fn func(SchemaNode) bool) error {
	if !fn(n) {
		return nil
	}
	seqs := []iter.Seq2[SchemaNode, error]{n.Children()}
	switch v := n.(type) {
	case *Container:
		seqs = append(seqs, v.Actions(), v.Notifications())
	case *List:
		seqs = append(seqs, v.Actions(), v.Notifications())
	}
	for _, seq := range seqs {
		for ch, err := range seq {
			if err != nil {
				return err
			}
			if err := Walk(ch, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

package ly

import (
	"fmt"
	"strings"

	"github.com/openconfig/goyang/pkg/yang"
)

// NodeType is the tag of a schema node. The values are single bits and can be
// combined into masks.
type NodeType uint16

// Schema node types.
const (
	NodeUnknown   NodeType = 0x0000
	NodeContainer NodeType = 0x0001
	NodeChoice    NodeType = 0x0002
	NodeLeaf      NodeType = 0x0004
	NodeLeafList  NodeType = 0x0008
	NodeList      NodeType = 0x0010
	NodeAnyXML    NodeType = 0x0020
	NodeAnyData   NodeType = 0x0060
	NodeCase      NodeType = 0x0080
	NodeRPC       NodeType = 0x0100
	NodeAction    NodeType = 0x0200
	NodeNotif     NodeType = 0x0400
	NodeUses      NodeType = 0x0800
	NodeInput     NodeType = 0x1000
	NodeOutput    NodeType = 0x2000

	NodeTerm    = NodeLeaf | NodeLeafList
	NodeAny     = NodeAnyXML | NodeAnyData
	NodeInner   = NodeContainer | NodeList | NodeRPC | NodeAction | NodeNotif
	NodeOp      = NodeRPC | NodeAction | NodeNotif
	NodeDataDef = NodeContainer | NodeTerm | NodeList | NodeAny
)

func (t NodeType) String() string {
	switch t {
	case NodeContainer:
		return "container"
	case NodeChoice:
		return "choice"
	case NodeLeaf:
		return "leaf"
	case NodeLeafList:
		return "leaf-list"
	case NodeList:
		return "list"
	case NodeAnyXML:
		return "anyxml"
	case NodeAnyData:
		return "anydata"
	case NodeCase:
		return "case"
	case NodeRPC:
		return "rpc"
	case NodeAction:
		return "action"
	case NodeNotif:
		return "notification"
	case NodeUses:
		return "uses"
	case NodeInput:
		return "input"
	case NodeOutput:
		return "output"
	default:
		return "unknown"
	}
}

// SFlags are compiled schema node flags.
type SFlags uint16

// Schema node flags.
const (
	FlagConfigW SFlags = 1 << iota
	FlagConfigR
	FlagStatusCurr
	FlagStatusDeprc
	FlagStatusObslt
	FlagMandTrue
	FlagOrdByUser
	FlagPresence
	FlagKey
	FlagSetDflt
	FlagUnique
)

// Extension is an extension instance attached to a schema node or module.
type Extension struct {
	Name     string
	Prefix   string
	Module   string
	Argument string
}

// Must is a must restriction. It is kept for introspection only.
type Must struct {
	Cond         string
	ErrorMessage string
	ErrorAppTag  string
	Description  string
}

// SNode is a compiled schema node. The variant field is selected by
// NodeType; reading a variant under the wrong tag panics.
type SNode struct {
	NodeType   NodeType
	Flags      SFlags
	Module     Ptr
	Parent     Ptr
	Next       Ptr
	Prev       Ptr
	Name       string
	Dsc        string
	Ref        string
	When       string
	Musts      []Must
	IfFeatures []string
	Exts       []Extension
	Location   string

	u any
}

// SContainer is the container variant.
type SContainer struct {
	Child    Ptr
	Presence string
	Actions  Ptr
	Notifs   Ptr
}

// SList is the list variant.
type SList struct {
	Child   Ptr
	Keys    []Ptr
	Uniques [][]Ptr
	Min     uint32
	Max     uint32 // 0 means unbounded
	Actions Ptr
	Notifs  Ptr
}

// SLeaf is the leaf variant.
type SLeaf struct {
	Type  Ptr
	Units string
	Dflt  *Value
}

// SLeafList is the leaf-list variant.
type SLeafList struct {
	Type  Ptr
	Units string
	Dflts []Value
	Min   uint32
	Max   uint32
}

// SChoice is the choice variant.
type SChoice struct {
	Cases Ptr
	Dflt  Ptr
}

// SCase is the case variant.
type SCase struct {
	Child Ptr
}

// SAny is the anydata/anyxml variant.
type SAny struct{}

// SAction is the rpc/action variant. Input and Output are always present.
type SAction struct {
	Input  Ptr
	Output Ptr
}

// SInOut is the input/output variant.
type SInOut struct {
	Child Ptr
}

// SNotif is the notification variant.
type SNotif struct {
	Child Ptr
}

func (n *SNode) variant(want NodeType) any {
	if n.NodeType&want == 0 {
		panic(fmt.Sprintf("ly: %s node %q accessed as %s", n.NodeType, n.Name, want))
	}
	return n.u
}

// Container returns the container variant.
func (n *SNode) Container() *SContainer { return n.variant(NodeContainer).(*SContainer) }

// List returns the list variant.
func (n *SNode) List() *SList { return n.variant(NodeList).(*SList) }

// Leaf returns the leaf variant.
func (n *SNode) Leaf() *SLeaf { return n.variant(NodeLeaf).(*SLeaf) }

// LeafList returns the leaf-list variant.
func (n *SNode) LeafList() *SLeafList { return n.variant(NodeLeafList).(*SLeafList) }

// Choice returns the choice variant.
func (n *SNode) Choice() *SChoice { return n.variant(NodeChoice).(*SChoice) }

// Case returns the case variant.
func (n *SNode) Case() *SCase { return n.variant(NodeCase).(*SCase) }

// Any returns the anydata/anyxml variant.
func (n *SNode) Any() *SAny { return n.variant(NodeAny).(*SAny) }

// Action returns the rpc/action variant.
func (n *SNode) Action() *SAction { return n.variant(NodeRPC | NodeAction).(*SAction) }

// InOut returns the input/output variant.
func (n *SNode) InOut() *SInOut { return n.variant(NodeInput | NodeOutput).(*SInOut) }

// Notif returns the notification variant.
func (n *SNode) Notif() *SNotif { return n.variant(NodeNotif).(*SNotif) }

// Config reports whether the node carries configuration.
func (n *SNode) Config() bool { return n.Flags&FlagConfigW != 0 }

// Revision is a module revision statement.
type Revision struct {
	Date        string
	Description string
	Reference   string
}

// Import is a module import.
type Import struct {
	Name     string
	Prefix   string
	Revision string
}

// Feature is a feature definition and its state.
type Feature struct {
	Name        string
	Description string
	IfFeatures  []string
	Enabled     bool
}

// Identity is an identity definition.
type Identity struct {
	Name        string
	Description string
	Bases       []string // qualified as module:name
	Derived     []string // qualified as module:name, filled across modules
}

// Typedef is a top-level typedef.
type Typedef struct {
	Name        string
	Description string
	Units       string
	Default     string
	Type        Ptr
}

// Grouping is a top-level grouping, described by its source statements.
type Grouping struct {
	Name        string
	Description string
	Nodes       []string // "keyword name" of each definition
	Uses        []string // groupings used directly
}

// Module is a loaded module.
type Module struct {
	Name         string
	Revision     string
	Namespace    string
	Prefix       string
	Dsc          string
	Ref          string
	Org          string
	Contact      string
	YangVersion  string
	Filepath     string
	Implemented  bool
	Revisions    []Revision
	Imports      []Import
	Includes     []string
	Features     []Feature
	Identities   []Identity
	Typedefs     []Typedef
	Groupings    []Grouping
	Exts         []Extension
	Data         Ptr
	RPCs         Ptr
	Notifs       Ptr
	Source       []byte
	SourceFormat SchemaFormat

	stmt *yang.Statement
}

// Module dereferences a module pointer.
func (c *Ctx) Module(p Ptr) *Module {
	c.live()
	return c.mods.at(p)
}

// SNode dereferences a schema node pointer.
func (c *Ctx) SNode(p Ptr) *SNode {
	c.live()
	return c.snodes.at(p)
}

// Modules returns every loaded module in load order.
func (c *Ctx) Modules() []Ptr {
	c.live()
	return append([]Ptr(nil), c.modules...)
}

// GetModule returns the module with the given name and revision. An empty
// revision selects the module without a revision or, failing that, the
// latest one.
func (c *Ctx) GetModule(name, revision string) Ptr {
	c.live()
	var found Ptr
	for _, p := range c.modules {
		m := c.mods.at(p)
		if m.Name != name {
			continue
		}
		if revision != "" {
			if m.Revision == revision {
				return p
			}
			continue
		}
		if found == Null || c.mods.at(found).Revision < m.Revision {
			found = p
		}
	}
	return found
}

// GetModuleLatest returns the most recent revision of the named module.
func (c *Ctx) GetModuleLatest(name string) Ptr {
	return c.GetModule(name, "")
}

// GetModuleImplemented returns the implemented revision of the named module.
func (c *Ctx) GetModuleImplemented(name string) Ptr {
	c.live()
	for _, p := range c.modules {
		m := c.mods.at(p)
		if m.Name == name && m.Implemented {
			return p
		}
	}
	return Null
}

// GetModuleNs returns the implemented module with the given namespace.
func (c *Ctx) GetModuleNs(ns string) Ptr {
	c.live()
	var found Ptr
	for _, p := range c.modules {
		m := c.mods.at(p)
		if m.Namespace != ns {
			continue
		}
		if m.Implemented {
			return p
		}
		found = p
	}
	return found
}

// SetFeature enables or disables a feature of a module. The name "*"
// selects every feature. Nodes guarded by if-feature follow the new state
// immediately.
func (c *Ctx) SetFeature(mod Ptr, name string, enable bool) Status {
	c.live()
	m := c.mods.at(mod)
	found := false
	for i := range m.Features {
		if name == "*" || m.Features[i].Name == name {
			m.Features[i].Enabled = enable
			found = true
		}
	}
	if !found && name != "*" {
		return c.errf(ENOTFOUND, VEReference, "Feature \"%s\" not found in module \"%s\".", name, m.Name)
	}
	return Success
}

// FeatureValue reports whether the feature is enabled.
func (c *Ctx) FeatureValue(mod Ptr, name string) Status {
	c.live()
	for _, f := range c.mods.at(mod).Features {
		if f.Name == name {
			if f.Enabled {
				return Success
			}
			return ENOT
		}
	}
	return ENOTFOUND
}

// SchemaChild returns the first enabled schema child of p. Choice and case
// nodes are returned as such; for rpc and action nodes this is the input.
func (c *Ctx) SchemaChild(p Ptr) Ptr {
	c.live()
	return c.enabledFrom(c.rawChild(p))
}

// SchemaNext returns the next enabled sibling of p.
func (c *Ctx) SchemaNext(p Ptr) Ptr {
	c.live()
	return c.enabledFrom(c.snodes.at(p).Next)
}

func (c *Ctx) enabledFrom(p Ptr) Ptr {
	for p != Null && !c.NodeEnabled(p) {
		p = c.snodes.at(p).Next
	}
	return p
}

// ModuleData returns the first enabled top-level data node of mod.
func (c *Ctx) ModuleData(mod Ptr) Ptr {
	return c.enabledFrom(c.Module(mod).Data)
}

// ModuleRPCs returns the first enabled rpc of mod.
func (c *Ctx) ModuleRPCs(mod Ptr) Ptr {
	return c.enabledFrom(c.Module(mod).RPCs)
}

// ModuleNotifs returns the first enabled notification of mod.
func (c *Ctx) ModuleNotifs(mod Ptr) Ptr {
	return c.enabledFrom(c.Module(mod).Notifs)
}

// SchemaActions returns the first action defined in a container or list.
func (c *Ctx) SchemaActions(p Ptr) Ptr {
	n := c.SNode(p)
	switch n.NodeType {
	case NodeContainer:
		return c.enabledFrom(n.Container().Actions)
	case NodeList:
		return c.enabledFrom(n.List().Actions)
	}
	return Null
}

// SchemaNotifs returns the first notification defined in a container or list.
func (c *Ctx) SchemaNotifs(p Ptr) Ptr {
	n := c.SNode(p)
	switch n.NodeType {
	case NodeContainer:
		return c.enabledFrom(n.Container().Notifs)
	case NodeList:
		return c.enabledFrom(n.List().Notifs)
	}
	return Null
}

// DataParent returns the closest ancestor of p that can be instantiated as a
// data node, skipping choice, case, input and output.
func (c *Ctx) DataParent(p Ptr) Ptr {
	c.live()
	for q := c.snodes.at(p).Parent; q != Null; q = c.snodes.at(q).Parent {
		if c.snodes.at(q).NodeType&(NodeChoice|NodeCase|NodeInput|NodeOutput) == 0 {
			return q
		}
	}
	return Null
}

// DataChildren returns the schema nodes that may be instantiated directly
// under an instance of parent. Choice and case nodes are looked through.
// For rpc and action nodes the input or output children are returned.
// A Null parent selects the top-level nodes of mod.
func (c *Ctx) DataChildren(parent, mod Ptr, output bool) []Ptr {
	c.live()
	var first Ptr
	if parent == Null {
		first = c.ModuleData(mod)
	} else {
		n := c.snodes.at(parent)
		switch n.NodeType {
		case NodeRPC, NodeAction:
			if output {
				first = c.SchemaChild(n.Action().Output)
			} else {
				first = c.SchemaChild(n.Action().Input)
			}
		default:
			first = c.SchemaChild(parent)
		}
	}
	var out []Ptr
	c.collectDataChildren(first, &out)
	if parent != Null {
		for p := c.SchemaActions(parent); p != Null; p = c.SchemaNext(p) {
			out = append(out, p)
		}
		for p := c.SchemaNotifs(parent); p != Null; p = c.SchemaNext(p) {
			out = append(out, p)
		}
	}
	return out
}

func (c *Ctx) collectDataChildren(first Ptr, out *[]Ptr) {
	for p := c.enabledFrom(first); p != Null; p = c.SchemaNext(p) {
		n := c.snodes.at(p)
		if n.NodeType&(NodeChoice|NodeCase) != 0 {
			c.collectDataChildren(c.SchemaChild(p), out)
			continue
		}
		*out = append(*out, p)
	}
}

// FindChild looks up a data-instantiable schema child of parent (or a
// top-level node of mod) by name. A non-empty modName restricts the match to
// nodes of that module.
func (c *Ctx) FindChild(parent, mod Ptr, modName, name string, output bool) Ptr {
	if parent == Null && mod == Null {
		for _, m := range c.modules {
			if modName != "" && c.mods.at(m).Name != modName {
				continue
			}
			if p := c.findTop(m, name); p != Null {
				return p
			}
		}
		return Null
	}
	if parent == Null {
		return c.findTop(mod, name)
	}
	for _, p := range c.DataChildren(parent, Null, output) {
		n := c.snodes.at(p)
		if n.Name == name && (modName == "" || c.mods.at(n.Module).Name == modName) {
			return p
		}
	}
	return Null
}

func (c *Ctx) findTop(mod Ptr, name string) Ptr {
	for _, p := range c.DataChildren(Null, mod, false) {
		if c.snodes.at(p).Name == name {
			return p
		}
	}
	for _, first := range []Ptr{c.ModuleRPCs(mod), c.ModuleNotifs(mod)} {
		for p := first; p != Null; p = c.SchemaNext(p) {
			if c.snodes.at(p).Name == name {
				return p
			}
		}
	}
	return Null
}

// SchemaPath renders the path of a schema node. With dataOnly set, choice,
// case, input and output nodes are omitted. Module prefixes (module names)
// are printed where the module changes.
func (c *Ctx) SchemaPath(p Ptr, dataOnly bool) string {
	c.live()
	var parts []string
	var mods []Ptr
	for q := p; q != Null; q = c.snodes.at(q).Parent {
		n := c.snodes.at(q)
		if dataOnly && n.NodeType&(NodeChoice|NodeCase|NodeInput|NodeOutput) != 0 {
			continue
		}
		parts = append(parts, n.Name)
		mods = append(mods, n.Module)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		if i == len(parts)-1 || mods[i] != mods[i+1] {
			b.WriteString(c.mods.at(mods[i]).Name)
			b.WriteByte(':')
		}
		b.WriteString(parts[i])
	}
	return b.String()
}

// IsMandatory reports whether an instance of the node must exist whenever its
// parent exists.
func (c *Ctx) IsMandatory(p Ptr) bool {
	n := c.SNode(p)
	switch n.NodeType {
	case NodeLeaf, NodeAnyData, NodeAnyXML, NodeChoice:
		return n.Flags&FlagMandTrue != 0
	case NodeList:
		return n.List().Min > 0
	case NodeLeafList:
		return n.LeafList().Min > 0
	case NodeContainer:
		if n.Container().Presence != "" {
			return false
		}
		for ch := c.SchemaChild(p); ch != Null; ch = c.SchemaNext(ch) {
			if c.IsMandatory(ch) {
				return true
			}
		}
	}
	return false
}

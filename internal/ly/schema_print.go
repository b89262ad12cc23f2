package ly

import (
	"bytes"
	"strings"
)

// SchemaOutFormat is a schema output format.
type SchemaOutFormat uint8

// Schema output formats.
const (
	OutYANG SchemaOutFormat = iota + 1
	OutYIN
	OutTree
)

// PrintModule prints a module. YANG output is the module source; YIN is
// generated from the parsed statements.
func (c *Ctx) PrintModule(mod Ptr, format SchemaOutFormat) ([]byte, Status) {
	m := c.Module(mod)
	switch format {
	case OutYANG:
		return bytes.Clone(m.Source), Success
	case OutYIN:
		if m.stmt == nil {
			return nil, c.errf(EINT, VESuccess, "Module \"%s\" has no parsed source.", m.Name)
		}
		return stmtToYIN(m.stmt, func(prefix string) string {
			if prefix == m.Prefix {
				return m.Namespace
			}
			for _, imp := range m.Imports {
				if imp.Prefix == prefix {
					if ip := c.GetModule(imp.Name, imp.Revision); ip != Null {
						return c.mods.at(ip).Namespace
					}
				}
			}
			return ""
		}), Success
	case OutTree:
		return c.printTree(mod), Success
	}
	return nil, c.errf(EINVAL, VESuccess, "Unknown schema output format.")
}

// PrintSchemaNode prints the tree diagram of a schema node and its subtree.
func (c *Ctx) PrintSchemaNode(p Ptr) []byte {
	c.live()
	var b bytes.Buffer
	tp := &treePrinter{c: c, b: &b}
	tp.nodes([]Ptr{p}, "")
	return b.Bytes()
}

type treePrinter struct {
	c *Ctx
	b *bytes.Buffer
}

func (c *Ctx) printTree(mod Ptr) []byte {
	m := c.Module(mod)
	var b bytes.Buffer
	tp := &treePrinter{c: c, b: &b}
	b.WriteString("module: " + m.Name + "\n")
	var data []Ptr
	for p := c.ModuleData(mod); p != Null; p = c.SchemaNext(p) {
		data = append(data, p)
	}
	tp.nodes(data, "  ")
	// augments defined by this module into other modules
	for _, om := range c.modules {
		if om == mod {
			continue
		}
		var aug []Ptr
		c.collectForeign(c.ModuleData(om), mod, &aug)
		for _, p := range aug {
			b.WriteString("\n  augment " + c.SchemaPath(c.snodes.at(p).Parent, false) + ":\n")
			tp.nodes([]Ptr{p}, "    ")
		}
	}
	var rpcs, notifs []Ptr
	for p := c.ModuleRPCs(mod); p != Null; p = c.SchemaNext(p) {
		rpcs = append(rpcs, p)
	}
	for p := c.ModuleNotifs(mod); p != Null; p = c.SchemaNext(p) {
		notifs = append(notifs, p)
	}
	if len(rpcs) > 0 {
		b.WriteString("\n  rpcs:\n")
		tp.nodes(rpcs, "    ")
	}
	if len(notifs) > 0 {
		b.WriteString("\n  notifications:\n")
		tp.nodes(notifs, "    ")
	}
	return b.Bytes()
}

// collectForeign finds the nodes of module mod grafted below other modules'
// nodes.
func (c *Ctx) collectForeign(first, mod Ptr, out *[]Ptr) {
	for p := first; p != Null; p = c.SchemaNext(p) {
		n := c.snodes.at(p)
		if n.Module == mod {
			if n.Parent != Null && c.snodes.at(n.Parent).Module != mod {
				*out = append(*out, p)
			}
			continue
		}
		if n.NodeType&(NodeLeaf|NodeLeafList|NodeAny) == 0 {
			c.collectForeign(c.rawChildEnabled(p), mod, out)
		}
	}
}

func (c *Ctx) rawChildEnabled(p Ptr) Ptr {
	switch c.snodes.at(p).NodeType {
	case NodeRPC, NodeAction:
		return Null
	}
	return c.SchemaChild(p)
}

// flags returns the access column of a node.
func (tp *treePrinter) flags(p Ptr) string {
	c := tp.c
	n := c.snodes.at(p)
	switch {
	case n.NodeType&(NodeRPC|NodeAction) != 0:
		return "-x"
	case n.NodeType == NodeNotif:
		return "-n"
	case n.NodeType == NodeCase:
		return ""
	}
	for q := p; q != Null; q = c.snodes.at(q).Parent {
		switch c.snodes.at(q).NodeType {
		case NodeInput:
			return "-w"
		case NodeOutput, NodeNotif:
			return "ro"
		}
	}
	if n.Flags&FlagConfigR != 0 {
		return "ro"
	}
	return "rw"
}

// label returns the name column of a node without the type.
func (tp *treePrinter) label(p Ptr) string {
	c := tp.c
	n := c.snodes.at(p)
	prefix := ""
	if n.Parent != Null && c.snodes.at(n.Parent).Module != n.Module {
		prefix = c.mods.at(n.Module).Prefix + ":"
	}
	name := prefix + n.Name
	switch n.NodeType {
	case NodeChoice:
		name = "(" + name + ")"
		if n.Flags&FlagMandTrue == 0 {
			name += "?"
		}
	case NodeCase:
		name = ":(" + name + ")"
	case NodeContainer:
		if n.Container().Presence != "" {
			name += "!"
		}
	case NodeList:
		name += "*"
		var keys []string
		for _, k := range n.List().Keys {
			keys = append(keys, c.snodes.at(k).Name)
		}
		if len(keys) > 0 {
			name += " [" + strings.Join(keys, " ") + "]"
		}
	case NodeLeafList:
		name += "*"
	case NodeLeaf, NodeAnyData, NodeAnyXML:
		if n.Flags&(FlagMandTrue|FlagKey) == 0 {
			name += "?"
		}
	}
	return name
}

func (tp *treePrinter) typeName(p Ptr) string {
	c := tp.c
	n := c.snodes.at(p)
	switch n.NodeType {
	case NodeLeaf, NodeLeafList:
		t := c.types.at(c.termType(p))
		if t.Base == TypeLeafref {
			return "-> " + t.Path
		}
		if t.Name != "" {
			return t.Name
		}
		return t.Base.String()
	case NodeAnyData:
		return "anydata"
	case NodeAnyXML:
		return "anyxml"
	}
	return ""
}

func (tp *treePrinter) children(p Ptr) []Ptr {
	c := tp.c
	n := c.snodes.at(p)
	var out []Ptr
	switch n.NodeType {
	case NodeRPC, NodeAction:
		a := n.Action()
		for _, io := range []Ptr{a.Input, a.Output} {
			if c.SchemaChild(io) != Null {
				out = append(out, io)
			}
		}
		return out
	case NodeLeaf, NodeLeafList, NodeAnyData, NodeAnyXML:
		return nil
	}
	for q := c.SchemaChild(p); q != Null; q = c.SchemaNext(q) {
		out = append(out, q)
	}
	if n.NodeType&(NodeContainer|NodeList) != 0 {
		for q := c.SchemaActions(p); q != Null; q = c.SchemaNext(q) {
			out = append(out, q)
		}
		for q := c.SchemaNotifs(p); q != Null; q = c.SchemaNext(q) {
			out = append(out, q)
		}
	}
	return out
}

// nodes prints a sibling group. Type columns are aligned within the group.
func (tp *treePrinter) nodes(ps []Ptr, indent string) {
	width := 0
	for _, p := range ps {
		if l := len(tp.flags(p)) + 1 + len(tp.label(p)); l > width {
			width = l
		}
	}
	for i, p := range ps {
		last := i == len(ps)-1
		n := tp.c.snodes.at(p)
		line := tp.flags(p)
		switch n.NodeType {
		case NodeInput, NodeOutput:
			line += " " + n.NodeType.String()
		case NodeCase:
			line = tp.label(p)
		default:
			line += " " + tp.label(p)
		}
		if tn := tp.typeName(p); tn != "" {
			line += strings.Repeat(" ", width-len(line)+3) + tn
		}
		tp.b.WriteString(indent + "+--" + line + "\n")
		sub := indent + "|  "
		if last {
			sub = indent + "   "
		}
		tp.nodes(tp.children(p), sub)
	}
}

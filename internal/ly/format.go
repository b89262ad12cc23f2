package ly

import (
	"bytes"
)

// DataFormat is a data tree serialization.
type DataFormat uint8

// Data formats.
const (
	FormatUnknown DataFormat = iota
	FormatXML
	FormatJSON
	FormatLYB
)

func (f DataFormat) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatJSON:
		return "json"
	case FormatLYB:
		return "lyb"
	}
	return "unknown"
}

// ParseOptions control data parsing.
type ParseOptions uint16

// Parse options.
const (
	ParseOnly         ParseOptions = 1 << iota // no validation, no implicit nodes
	ParseStrict                                // unknown data are an error instead of being skipped
	ParseOpaq                                  // unknown data become opaque nodes
	ParseNoState                               // state data are an error
	ParseLYBModUpdate                          // accept LYB data of other module revisions
)

// PrintOptions control data printing. The with-defaults mode is one of the
// PrintWD values; explicit is the default.
type PrintOptions uint16

// Print options.
const (
	PrintWithSiblings PrintOptions = 1 << iota
	PrintShrink
	PrintKeepEmptyCont
	PrintWDTrim
	PrintWDAll
	PrintWDAllTag
	PrintWDImplTag
	PrintUnqualified // JSON: no module qualifiers on member names

	PrintWDMask = PrintWDTrim | PrintWDAll | PrintWDAllTag | PrintWDImplTag
)

// OpType selects what ParseOp expects.
type OpType uint8

// Operation types.
const (
	OpRPC          OpType = iota // rpc or action input
	OpReply                      // rpc or action output
	OpNotification               // notification
)

// ParseData parses a data tree. Unless ParseOnly is set the tree is
// validated with vopts, which also adds implicit nodes. An empty input
// yields a Null tree.
func (c *Ctx) ParseData(data []byte, format DataFormat, popts ParseOptions, vopts ValidateOptions) (Ptr, Status) {
	c.live()
	if popts&ParseNoState != 0 {
		vopts |= ValidateNoState
	}
	tree, st := c.parse(data, format, popts, false, false)
	if st != Success {
		return Null, st
	}
	if popts&ParseOnly != 0 {
		return tree, Success
	}
	if st := c.ValidateAll(&tree, vopts); st != Success {
		if tree != Null {
			c.FreeSiblings(tree)
		}
		return Null, st
	}
	return tree, Success
}

// ParseOp parses an rpc or action request or reply, or a notification. It
// returns the tree and the operation node inside it.
func (c *Ctx) ParseOp(data []byte, format DataFormat, op OpType, popts ParseOptions) (Ptr, Ptr, Status) {
	c.live()
	tree, st := c.parse(data, format, popts, true, op == OpReply)
	if st != Success {
		return Null, Null, st
	}
	node := c.findOp(tree)
	if node == Null {
		if tree != Null {
			c.FreeSiblings(tree)
		}
		return Null, Null, c.errf(EVALID, VEData, "Missing the operation node.")
	}
	kind := c.snodes.at(c.dnodes.at(node).Schema).NodeType
	if (op == OpNotification) != (kind == NodeNotif) {
		name := c.nodeName(node)
		c.FreeSiblings(tree)
		return Null, Null, c.errf(EVALID, VEData, "Unexpected %s \"%s\".", kind, name)
	}
	if popts&ParseOnly == 0 {
		if st := c.ValidateOp(node, Null, op == OpReply); st != Success {
			c.FreeSiblings(tree)
			return Null, Null, st
		}
	}
	return tree, node, Success
}

func (c *Ctx) parse(data []byte, format DataFormat, popts ParseOptions, op, output bool) (Ptr, Status) {
	if format == FormatUnknown {
		format = DetectFormat(data)
	}
	if len(bytes.TrimSpace(data)) == 0 && format != FormatLYB {
		return Null, Success
	}
	switch format {
	case FormatJSON:
		return c.parseJSON(data, popts, op, output)
	case FormatXML:
		return c.parseXML(data, popts, op, output)
	case FormatLYB:
		return c.parseLYB(data, popts)
	}
	return Null, c.errf(EINVAL, VESuccess, "Unknown data format.")
}

// DetectFormat guesses the format of serialized data.
func DetectFormat(data []byte) DataFormat {
	if bytes.HasPrefix(data, lybMagic) {
		return FormatLYB
	}
	t := bytes.TrimSpace(data)
	if len(t) > 0 && (t[0] == '{' || t[0] == '[') {
		return FormatJSON
	}
	if len(t) > 0 && t[0] == '<' {
		return FormatXML
	}
	return FormatUnknown
}

// PrintTree serializes the tree rooted at p (with its following siblings
// when PrintWithSiblings is set).
func (c *Ctx) PrintTree(p Ptr, format DataFormat, opts PrintOptions) ([]byte, Status) {
	c.live()
	var nodes []Ptr
	if p != Null {
		if opts&PrintWithSiblings != 0 {
			for q := c.FirstSibling(p); q != Null; q = c.dnodes.at(q).Next {
				nodes = append(nodes, q)
			}
		} else {
			nodes = []Ptr{p}
		}
	}
	switch format {
	case FormatJSON:
		return c.printJSON(nodes, opts)
	case FormatXML:
		return c.printXML(nodes, opts)
	case FormatLYB:
		return c.printLYB(nodes)
	}
	return nil, c.errf(EINVAL, VESuccess, "Unknown data format.")
}

// shouldPrint applies the with-defaults mode to a node.
func (c *Ctx) shouldPrint(p Ptr, opts PrintOptions) bool {
	d := c.dnodes.at(p)
	if d.Schema == Null {
		return true
	}
	s := c.snodes.at(d.Schema)
	wd := opts & PrintWDMask
	switch {
	case wd&(PrintWDAll|PrintWDAllTag|PrintWDImplTag) != 0:
		// everything
	case wd == PrintWDTrim:
		if s.NodeType&NodeTerm != 0 && c.isDefaultValue(p) {
			return false
		}
	default:
		if d.Flags&DFlagDefault != 0 {
			return false
		}
	}
	if s.NodeType == NodeContainer && s.Container().Presence == "" && opts&PrintKeepEmptyCont == 0 {
		if d.Flags&DFlagDefault != 0 || wd == PrintWDTrim {
			for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
				if c.shouldPrint(q, opts) {
					return true
				}
			}
			return false
		}
	}
	return true
}

// isDefaultValue reports whether a term node holds its schema default.
func (c *Ctx) isDefaultValue(p Ptr) bool {
	d := c.dnodes.at(p)
	s := c.snodes.at(d.Schema)
	v := d.Term().Value.Canonical
	switch s.NodeType {
	case NodeLeaf:
		return s.Leaf().Dflt != nil && s.Leaf().Dflt.Canonical == v
	case NodeLeafList:
		for _, dv := range s.LeafList().Dflts {
			if dv.Canonical == v {
				return true
			}
		}
	}
	return false
}

// tagDefault reports whether a printed node gets the with-defaults
// default="true" annotation.
func (c *Ctx) tagDefault(p Ptr, opts PrintOptions) bool {
	d := c.dnodes.at(p)
	if d.Schema == Null || c.snodes.at(d.Schema).NodeType&NodeTerm == 0 {
		return false
	}
	switch opts & PrintWDMask {
	case PrintWDAllTag:
		return d.Flags&DFlagDefault != 0 || c.isDefaultValue(p)
	case PrintWDImplTag:
		return d.Flags&DFlagDefault != 0
	}
	return false
}

// groupInstances orders nodes so that all instances of a list or leaf-list
// follow their first occurrence.
func (c *Ctx) groupInstances(nodes []Ptr) [][]Ptr {
	var groups [][]Ptr
	idx := map[Ptr]int{}
	for _, p := range nodes {
		s := c.dnodes.at(p).Schema
		if s != Null && c.snodes.at(s).NodeType&(NodeList|NodeLeafList) != 0 {
			if i, ok := idx[s]; ok {
				groups[i] = append(groups[i], p)
				continue
			}
			idx[s] = len(groups)
		}
		groups = append(groups, []Ptr{p})
	}
	return groups
}

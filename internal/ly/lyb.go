package ly

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// lybMagic starts every LYB document.
var lybMagic = []byte("LYB\x01")

// Field numbers of the LYB messages.
const (
	lybFieldModule = 1
	lybFieldNode   = 2

	lybModName     = 1
	lybModRevision = 2

	lybNodeModule     = 1 // module index + 1, 0 for opaque nodes without module
	lybNodeName       = 2
	lybNodeValue      = 3
	lybNodeChild      = 4
	lybNodeFlags      = 5
	lybNodeMeta       = 6
	lybNodeAnyType    = 7
	lybNodeAnyStr     = 8
	lybNodePrefix     = 9
	lybNodeModuleName = 10
	lybNodeAnyTree    = 11

	lybMetaModule = 1
	lybMetaName   = 2
	lybMetaValue  = 3
)

var (
	errLYBTruncated = errors.New("truncated LYB data")
	errLYBMagic     = errors.New("missing LYB magic number")
)

type lybWriter struct {
	c       *Ctx
	modules []string
	index   map[string]int
}

func (w *lybWriter) moduleIndex(p Ptr) uint64 {
	d := w.c.dnodes.at(p)
	if d.Schema == Null {
		return 0
	}
	m := w.c.mods.at(w.c.snodes.at(d.Schema).Module)
	id := moduleID(m)
	i, ok := w.index[id]
	if !ok {
		i = len(w.modules)
		w.index[id] = i
		w.modules = append(w.modules, id)
	}
	return uint64(i + 1)
}

func (c *Ctx) printLYB(nodes []Ptr) ([]byte, Status) {
	w := &lybWriter{c: c, index: map[string]int{}}
	var body []byte
	for _, p := range nodes {
		body = protowire.AppendTag(body, lybFieldNode, protowire.BytesType)
		body = protowire.AppendBytes(body, w.node(p))
	}
	out := append([]byte(nil), lybMagic...)
	for _, id := range w.modules {
		name, rev, _ := strings.Cut(id, "@")
		var mb []byte
		mb = protowire.AppendTag(mb, lybModName, protowire.BytesType)
		mb = protowire.AppendString(mb, name)
		if rev != "" {
			mb = protowire.AppendTag(mb, lybModRevision, protowire.BytesType)
			mb = protowire.AppendString(mb, rev)
		}
		out = protowire.AppendTag(out, lybFieldModule, protowire.BytesType)
		out = protowire.AppendBytes(out, mb)
	}
	return append(out, body...), Success
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func (w *lybWriter) node(p Ptr) []byte {
	c := w.c
	d := c.dnodes.at(p)
	var b []byte
	b = protowire.AppendTag(b, lybNodeModule, protowire.VarintType)
	b = protowire.AppendVarint(b, w.moduleIndex(p))
	b = appendString(b, lybNodeName, c.nodeName(p))
	if d.Flags != 0 {
		b = protowire.AppendTag(b, lybNodeFlags, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.Flags))
	}
	switch v := d.u.(type) {
	case *DTerm:
		b = protowire.AppendTag(b, lybNodeValue, protowire.BytesType)
		b = protowire.AppendString(b, v.Value.Canonical)
	case *DAny:
		b = protowire.AppendTag(b, lybNodeAnyType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.ValueType))
		b = appendString(b, lybNodeAnyStr, v.Str)
		if v.Tree != Null {
			for q := c.FirstSibling(v.Tree); q != Null; q = c.dnodes.at(q).Next {
				b = protowire.AppendTag(b, lybNodeAnyTree, protowire.BytesType)
				b = protowire.AppendBytes(b, w.node(q))
			}
		}
	case *DOpaq:
		b = appendString(b, lybNodeValue, v.Value)
		b = appendString(b, lybNodePrefix, v.Prefix)
		b = appendString(b, lybNodeModuleName, v.ModuleName)
	}
	for m := d.Meta; m != Null; m = c.metas.at(m).Next {
		md := c.metas.at(m)
		var mb []byte
		mb = appendString(mb, lybMetaModule, md.Module)
		mb = appendString(mb, lybMetaName, md.Name)
		mb = appendString(mb, lybMetaValue, md.Value)
		b = protowire.AppendTag(b, lybNodeMeta, protowire.BytesType)
		b = protowire.AppendBytes(b, mb)
	}
	for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
		b = protowire.AppendTag(b, lybNodeChild, protowire.BytesType)
		b = protowire.AppendBytes(b, w.node(q))
	}
	return b
}

// lybField is one decoded field of a message.
type lybField struct {
	num   protowire.Number
	bytes []byte
	u     uint64
}

// lybFields splits a message into its fields.
func lybFields(b []byte) ([]lybField, error) {
	var out []lybField
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errLYBTruncated, protowire.ParseError(n))
		}
		b = b[n:]
		f := lybField{num: num}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errLYBTruncated, protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

type lybReader struct {
	c       *Ctx
	opts    ParseOptions
	modules []Ptr
}

func (c *Ctx) parseLYB(data []byte, popts ParseOptions) (Ptr, Status) {
	if !bytes.HasPrefix(data, lybMagic) {
		return Null, c.errf(EVALID, VEData, "Invalid LYB data (%s).", errLYBMagic)
	}
	fields, err := lybFields(data[len(lybMagic):])
	if err != nil {
		return Null, c.errf(EVALID, VEData, "Invalid LYB data (%s).", err)
	}
	r := &lybReader{c: c, opts: popts}
	var first Ptr
	for _, f := range fields {
		switch f.num {
		case lybFieldModule:
			m, st := r.module(f.bytes)
			if st != Success {
				return Null, st
			}
			r.modules = append(r.modules, m)
		case lybFieldNode:
			if st := r.node(Null, &first, f.bytes); st != Success {
				if first != Null {
					c.FreeSiblings(first)
				}
				return Null, st
			}
		}
	}
	return first, Success
}

func (r *lybReader) module(b []byte) (Ptr, Status) {
	c := r.c
	fields, err := lybFields(b)
	if err != nil {
		return Null, c.errf(EVALID, VEData, "Invalid LYB data (%s).", err)
	}
	var name, rev string
	for _, f := range fields {
		switch f.num {
		case lybModName:
			name = string(f.bytes)
		case lybModRevision:
			rev = string(f.bytes)
		}
	}
	m := c.GetModuleImplemented(name)
	if m == Null {
		return Null, c.errf(EVALID, VEData, "Invalid context for LYB data parsing, module \"%s\" not implemented.", name)
	}
	if have := c.mods.at(m).Revision; have != rev && r.opts&ParseLYBModUpdate == 0 {
		return Null, c.errf(EVALID, VEData, "Invalid context for LYB data parsing, module \"%s@%s\" not found (implemented revision \"%s\").",
			name, rev, have)
	}
	return m, Success
}

func (r *lybReader) node(parent Ptr, first *Ptr, b []byte) Status {
	c := r.c
	fields, err := lybFields(b)
	if err != nil {
		return c.errf(EVALID, VEData, "Invalid LYB data (%s).", err)
	}
	var (
		modIdx                    uint64
		name, value, str          string
		prefix, modName           string
		flags, anyType            uint64
		hasValue                  bool
		children, metas, anyTrees [][]byte
	)
	for _, f := range fields {
		switch f.num {
		case lybNodeModule:
			modIdx = f.u
		case lybNodeName:
			name = string(f.bytes)
		case lybNodeValue:
			value, hasValue = string(f.bytes), true
		case lybNodeChild:
			children = append(children, f.bytes)
		case lybNodeFlags:
			flags = f.u
		case lybNodeMeta:
			metas = append(metas, f.bytes)
		case lybNodeAnyType:
			anyType = f.u
		case lybNodeAnyStr:
			str = string(f.bytes)
		case lybNodePrefix:
			prefix = string(f.bytes)
		case lybNodeModuleName:
			modName = string(f.bytes)
		case lybNodeAnyTree:
			anyTrees = append(anyTrees, f.bytes)
		}
	}
	var node Ptr
	if modIdx == 0 {
		node, _ = c.NewOpaq(Null, name, value, prefix, modName)
	} else {
		if int(modIdx) > len(r.modules) {
			return c.errf(EVALID, VEData, "Invalid LYB data, unknown module index %d.", modIdx)
		}
		mod := r.modules[modIdx-1]
		var s Ptr
		if parent == Null {
			s = c.findTop(mod, name)
		} else if ps := c.dnodes.at(parent).Schema; ps != Null {
			s = c.FindChild(ps, Null, c.mods.at(mod).Name, name, false)
		}
		if s == Null {
			return c.errf(EVALID, VEData, "Invalid LYB data, node \"%s\" of module \"%s\" not found.", name, c.mods.at(mod).Name)
		}
		n := c.snodes.at(s)
		switch {
		case n.NodeType&NodeTerm != 0:
			if !hasValue {
				return c.schemaErr(EVALID, VEData, s, "Invalid LYB data, missing value of %s \"%s\".", n.NodeType, n.Name)
			}
			var st Status
			if node, st = c.newTerm(s, value, nil); st != Success {
				return st
			}
		default:
			node, _ = c.newNode(s)
			if n.NodeType&NodeAny != 0 {
				a := c.dnodes.at(node).Any()
				a.ValueType, a.Str = AnyValueType(anyType), str
				var tree Ptr
				for _, tb := range anyTrees {
					if st := r.node(Null, &tree, tb); st != Success {
						c.FreeTree(node)
						return st
					}
				}
				a.Tree = tree
			}
		}
	}
	c.dnodes.at(node).Flags = DFlags(flags)
	c.attach(parent, first, node)
	for _, mb := range metas {
		mf, err := lybFields(mb)
		if err != nil {
			return c.errf(EVALID, VEData, "Invalid LYB data (%s).", err)
		}
		var mmod, mname, mval string
		for _, f := range mf {
			switch f.num {
			case lybMetaModule:
				mmod = string(f.bytes)
			case lybMetaName:
				mname = string(f.bytes)
			case lybMetaValue:
				mval = string(f.bytes)
			}
		}
		if _, st := c.NewMeta(node, mmod, mname, mval); st != Success && r.opts&ParseStrict != 0 {
			return st
		}
	}
	var unused Ptr
	for _, cb := range children {
		if st := r.node(node, &unused, cb); st != Success {
			return st
		}
	}
	return Success
}

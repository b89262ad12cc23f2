package ly

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

type jsonKind uint8

const (
	jsonNull jsonKind = iota
	jsonString
	jsonNumber
	jsonBool
	jsonObject
	jsonArray
)

func (k jsonKind) String() string {
	return [...]string{"null", "string", "number", "boolean", "object", "array"}[k]
}

// jsonValue is a decoded JSON value that keeps object member order.
type jsonValue struct {
	kind    jsonKind
	str     string // string contents or number literal
	b       bool
	members []jsonMember
	items   []*jsonValue
}

type jsonMember struct {
	name string
	val  *jsonValue
}

func decodeJSON(data []byte) (*jsonValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	v, err := readJSON(dec, tok)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("trailing data after the top-level value")
		}
		return nil, err
	}
	return v, nil
}

func readJSON(dec *json.Decoder, tok json.Token) (*jsonValue, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v := &jsonValue{kind: jsonObject}
			for {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				if d, ok := kt.(json.Delim); ok && d == '}' {
					return v, nil
				}
				name, ok := kt.(string)
				if !ok {
					return nil, errors.New("object member name expected")
				}
				vt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				mv, err := readJSON(dec, vt)
				if err != nil {
					return nil, err
				}
				v.members = append(v.members, jsonMember{name: name, val: mv})
			}
		case '[':
			v := &jsonValue{kind: jsonArray}
			for {
				it, err := dec.Token()
				if err != nil {
					return nil, err
				}
				if d, ok := it.(json.Delim); ok && d == ']' {
					return v, nil
				}
				iv, err := readJSON(dec, it)
				if err != nil {
					return nil, err
				}
				v.items = append(v.items, iv)
			}
		}
		return nil, errors.New("unexpected delimiter " + string(rune(t)))
	case string:
		return &jsonValue{kind: jsonString, str: t}, nil
	case json.Number:
		return &jsonValue{kind: jsonNumber, str: string(t)}, nil
	case bool:
		return &jsonValue{kind: jsonBool, b: t}, nil
	case nil:
		return &jsonValue{kind: jsonNull}, nil
	}
	return nil, errors.New("unexpected JSON token")
}

// encode writes v in compact form.
func (v *jsonValue) encode(b *bytes.Buffer) {
	switch v.kind {
	case jsonNull:
		b.WriteString("null")
	case jsonString:
		writeJSONString(b, v.str)
	case jsonNumber:
		b.WriteString(v.str)
	case jsonBool:
		if v.b {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case jsonObject:
		b.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, m.name)
			b.WriteByte(':')
			m.val.encode(b)
		}
		b.WriteByte('}')
	case jsonArray:
		b.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				b.WriteByte(',')
			}
			it.encode(b)
		}
		b.WriteByte(']')
	}
}

func writeJSONString(b *bytes.Buffer, s string) {
	enc, err := json.Marshal(s)
	if err != nil {
		b.WriteString(`""`)
		return
	}
	b.Write(enc)
}

// splitQName splits "prefix:name".
func splitQName(s string) (prefix, name string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

type jsonParser struct {
	c      *Ctx
	opts   ParseOptions
	op     bool
	output bool
}

func (c *Ctx) parseJSON(data []byte, popts ParseOptions, op, output bool) (Ptr, Status) {
	root, err := decodeJSON(data)
	if err != nil {
		return Null, c.errf(EVALID, VESyntaxJSON, "Invalid JSON data (%s).", err)
	}
	if root.kind != jsonObject {
		return Null, c.errf(EVALID, VESyntaxJSON, "Invalid JSON data, top-level object expected, %s found.", root.kind)
	}
	jp := &jsonParser{c: c, opts: popts, op: op, output: output}
	var first Ptr
	if st := jp.members(Null, &first, root); st != Success {
		if first != Null {
			c.FreeSiblings(first)
		}
		return Null, st
	}
	return first, Success
}

// attach links node under parent, or among the top-level siblings in *first.
func (c *Ctx) attach(parent Ptr, first *Ptr, node Ptr) {
	switch {
	case parent != Null:
		c.insertChildRaw(parent, node)
	case *first == Null:
		*first = node
	default:
		c.placeAmong(*first, node)
		*first = c.FirstSibling(*first)
	}
}

// members parses the members of obj as children of parent.
func (jp *jsonParser) members(parent Ptr, first *Ptr, obj *jsonValue) Status {
	c := jp.c
	var metas []jsonMember
	for _, m := range obj.members {
		if strings.HasPrefix(m.name, "@") {
			metas = append(metas, m)
			continue
		}
		if st := jp.member(parent, first, m.name, m.val); st != Success {
			return st
		}
	}
	for _, m := range metas {
		target := m.name[1:]
		if target == "" {
			if parent == Null {
				continue
			}
			if st := jp.metadata(parent, m.val); st != Success {
				return st
			}
			continue
		}
		chain := *first
		if parent != Null {
			chain = c.Child(parent)
		}
		prefix, name := splitQName(target)
		var nodes []Ptr
		for q := chain; q != Null; q = c.dnodes.at(q).Next {
			if c.dataNameMatch(q, prefix, name) {
				nodes = append(nodes, q)
			}
		}
		if len(nodes) == 0 {
			if jp.opts&ParseStrict != 0 {
				return c.errf(EVALID, VEData, "Missing JSON data instance to be coupled with %s metadata.", m.name)
			}
			continue
		}
		if m.val.kind == jsonArray {
			for i, it := range m.val.items {
				if i < len(nodes) && it.kind == jsonObject {
					if st := jp.metadata(nodes[i], it); st != Success {
						return st
					}
				}
			}
			continue
		}
		if st := jp.metadata(nodes[0], m.val); st != Success {
			return st
		}
	}
	return Success
}

func (jp *jsonParser) metadata(node Ptr, obj *jsonValue) Status {
	c := jp.c
	if obj.kind != jsonObject {
		return c.dataErr(EVALID, node, "Invalid JSON metadata, object expected, %s found.", obj.kind)
	}
	for _, m := range obj.members {
		mod, name := splitQName(m.name)
		if mod == "" {
			return c.dataErr(EVALID, node, "Metadata \"%s\" must be qualified by a module name.", m.name)
		}
		val := m.val.str
		if m.val.kind == jsonBool {
			val = boolText(m.val.b)
		}
		if _, st := c.NewMeta(node, mod, name, val); st != Success {
			if jp.opts&ParseStrict != 0 {
				return st
			}
		}
	}
	return Success
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// resolveTop finds the top-level schema node for a possibly unqualified
// member name. Unqualified names are accepted when exactly one implemented
// module defines them.
func (c *Ctx) resolveTop(prefix, name string) (Ptr, Status) {
	if prefix != "" {
		m := c.GetModuleImplemented(prefix)
		if m == Null {
			return Null, ENOTFOUND
		}
		if s := c.findTop(m, name); s != Null {
			return s, Success
		}
		return Null, ENOTFOUND
	}
	var found []Ptr
	for _, m := range c.modules {
		if !c.mods.at(m).Implemented {
			continue
		}
		if s := c.findTop(m, name); s != Null {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return Null, ENOTFOUND
	case 1:
		return found[0], Success
	}
	return Null, EEXIST
}

func (jp *jsonParser) unknown(parent Ptr, first *Ptr, prefix, name string, val *jsonValue) Status {
	c := jp.c
	if jp.opts&ParseOpaq != 0 {
		modName := prefix
		if modName == "" && parent != Null {
			modName = c.moduleNameOf(parent)
		}
		return jp.opaque(parent, first, name, prefix, modName, val)
	}
	if jp.opts&ParseStrict != 0 {
		where := "top-level"
		if parent != Null {
			where = "\"" + c.nodeName(parent) + "\""
		}
		return c.errf(EVALID, VEData, "Node \"%s\" not found as a child of %s node.", name, where)
	}
	return Success
}

func (c *Ctx) moduleNameOf(p Ptr) string {
	d := c.dnodes.at(p)
	if d.Schema == Null {
		return d.Opaq().ModuleName
	}
	return c.mods.at(c.snodes.at(d.Schema).Module).Name
}

func (jp *jsonParser) opaque(parent Ptr, first *Ptr, name, prefix, modName string, val *jsonValue) Status {
	c := jp.c
	if val.kind == jsonArray {
		for _, it := range val.items {
			if st := jp.opaque(parent, first, name, prefix, modName, it); st != Success {
				return st
			}
		}
		return Success
	}
	value := ""
	switch val.kind {
	case jsonString, jsonNumber:
		value = val.str
	case jsonBool:
		value = boolText(val.b)
	}
	q, _ := c.NewOpaq(Null, name, value, prefix, modName)
	c.attach(parent, first, q)
	if val.kind == jsonObject {
		var unused Ptr
		for _, m := range val.members {
			p, n := splitQName(m.name)
			mn := p
			if mn == "" {
				mn = modName
			}
			if st := jp.opaque(q, &unused, n, p, mn, m.val); st != Success {
				return st
			}
		}
	}
	return Success
}

func (jp *jsonParser) member(parent Ptr, first *Ptr, qname string, val *jsonValue) Status {
	c := jp.c
	prefix, name := splitQName(qname)
	var s Ptr
	if parent == Null {
		var st Status
		s, st = c.resolveTop(prefix, name)
		if st == EEXIST {
			return c.errf(EVALID, VEData, "Top-level node \"%s\" is ambiguous, a module name is required.", name)
		}
	} else if ps := c.dnodes.at(parent).Schema; ps != Null {
		s = c.FindChild(ps, Null, prefix, name, jp.output)
	}
	if s == Null {
		return jp.unknown(parent, first, prefix, name, val)
	}
	n := c.snodes.at(s)
	if n.NodeType&NodeOp != 0 && !jp.op {
		return c.schemaErr(EVALID, VEData, s, "Unexpected %s \"%s\" in data.", n.NodeType, n.Name)
	}
	switch {
	case n.NodeType&(NodeContainer|NodeOp) != 0:
		if val.kind != jsonObject {
			return c.schemaErr(EVALID, VESyntaxJSON, s, "Expecting JSON object for %s \"%s\" but %s found.", n.NodeType, n.Name, val.kind)
		}
		q, _ := c.newNode(s)
		c.attach(parent, first, q)
		var unused Ptr
		return jp.members(q, &unused, val)
	case n.NodeType == NodeList:
		if val.kind != jsonArray {
			return c.schemaErr(EVALID, VESyntaxJSON, s, "Expecting JSON array for list \"%s\" but %s found.", n.Name, val.kind)
		}
		for _, it := range val.items {
			if it.kind != jsonObject {
				return c.schemaErr(EVALID, VESyntaxJSON, s, "Expecting JSON object for list \"%s\" instance but %s found.", n.Name, it.kind)
			}
			q, _ := c.newNode(s)
			c.attach(parent, first, q)
			var unused Ptr
			if st := jp.members(q, &unused, it); st != Success {
				return st
			}
		}
		return Success
	case n.NodeType == NodeLeaf:
		return jp.term(parent, first, s, val)
	case n.NodeType == NodeLeafList:
		if val.kind != jsonArray {
			return c.schemaErr(EVALID, VESyntaxJSON, s, "Expecting JSON array for leaf-list \"%s\" but %s found.", n.Name, val.kind)
		}
		for _, it := range val.items {
			if st := jp.term(parent, first, s, it); st != Success {
				return st
			}
		}
		return Success
	case n.NodeType&NodeAny != 0:
		var b bytes.Buffer
		val.encode(&b)
		q, _ := c.newNode(s)
		a := c.dnodes.at(q).Any()
		if val.kind == jsonString {
			a.ValueType, a.Str = AnyString, val.str
		} else {
			a.ValueType, a.Str = AnyJSON, b.String()
		}
		c.attach(parent, first, q)
		return Success
	}
	return c.schemaErr(EINT, VEData, s, "Unexpected schema node \"%s\".", n.Name)
}

// jsonLexical turns a JSON scalar into the lexical form of a value.
func jsonLexical(val *jsonValue) (string, bool) {
	switch val.kind {
	case jsonString, jsonNumber:
		return val.str, true
	case jsonBool:
		return boolText(val.b), true
	case jsonArray:
		// [null] encodes the empty type
		if len(val.items) == 1 && val.items[0].kind == jsonNull {
			return "", true
		}
	}
	return "", false
}

func (jp *jsonParser) term(parent Ptr, first *Ptr, s Ptr, val *jsonValue) Status {
	c := jp.c
	n := c.snodes.at(s)
	lex, ok := jsonLexical(val)
	if !ok {
		return c.schemaErr(EVALID, VESyntaxJSON, s, "Invalid JSON value of %s \"%s\", %s found.", n.NodeType, n.Name, val.kind)
	}
	typ := c.types.at(c.termType(s))
	if typ.Base == TypeEmpty && val.kind != jsonArray {
		return c.schemaErr(EVALID, VESyntaxJSON, s, "Invalid non-[null] value of empty leaf \"%s\".", n.Name)
	}
	q, st := c.newTerm(s, lex, c.jsonPrefixes(n.Module))
	if st != Success {
		return st
	}
	c.attach(parent, first, q)
	return Success
}

type jsonPrinter struct {
	c    *Ctx
	opts PrintOptions
	b    bytes.Buffer
}

func (c *Ctx) printJSON(nodes []Ptr, opts PrintOptions) ([]byte, Status) {
	jp := &jsonPrinter{c: c, opts: opts}
	jp.b.WriteByte('{')
	jp.siblings(nodes, Null)
	jp.b.WriteByte('}')
	out := jp.b.Bytes()
	if opts&PrintShrink != 0 {
		return out, Success
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		return nil, c.errf(EINT, VESuccess, "Printing JSON failed (%s).", err)
	}
	pretty.WriteByte('\n')
	return pretty.Bytes(), Success
}

// memberName returns the JSON member name of p printed under a parent of
// module parentMod.
func (jp *jsonPrinter) memberName(p Ptr, parentMod string) string {
	c := jp.c
	mod := c.moduleNameOf(p)
	name := c.nodeName(p)
	if jp.opts&PrintUnqualified != 0 || mod == "" || mod == parentMod {
		return name
	}
	return mod + ":" + name
}

func (jp *jsonPrinter) comma(wrote *bool) {
	if *wrote {
		jp.b.WriteByte(',')
	}
	*wrote = true
}

// siblings prints nodes as members of the current object.
func (jp *jsonPrinter) siblings(nodes []Ptr, parent Ptr) {
	c := jp.c
	parentMod := ""
	if parent != Null {
		parentMod = c.moduleNameOf(parent)
	}
	wrote := false
	for _, group := range c.groupInstances(nodes) {
		var printed []Ptr
		for _, p := range group {
			if c.shouldPrint(p, jp.opts) {
				printed = append(printed, p)
			}
		}
		if len(printed) == 0 {
			continue
		}
		name := jp.memberName(printed[0], parentMod)
		d := c.dnodes.at(printed[0])
		var nt NodeType
		if d.Schema != Null {
			nt = c.snodes.at(d.Schema).NodeType
		}
		jp.comma(&wrote)
		writeJSONString(&jp.b, name)
		jp.b.WriteByte(':')
		switch {
		case nt == NodeList:
			jp.b.WriteByte('[')
			for i, p := range printed {
				if i > 0 {
					jp.b.WriteByte(',')
				}
				jp.object(p)
			}
			jp.b.WriteByte(']')
		case nt == NodeLeafList:
			jp.b.WriteByte('[')
			for i, p := range printed {
				if i > 0 {
					jp.b.WriteByte(',')
				}
				jp.value(p)
			}
			jp.b.WriteByte(']')
			if jp.hasMeta(printed) {
				jp.b.WriteByte(',')
				writeJSONString(&jp.b, "@"+name)
				jp.b.WriteString(":[")
				for i, p := range printed {
					if i > 0 {
						jp.b.WriteByte(',')
					}
					if !jp.meta(p) {
						jp.b.WriteString("null")
					}
				}
				jp.b.WriteByte(']')
			}
		case nt&NodeTerm != 0 || nt&NodeAny != 0:
			jp.value(printed[0])
			if jp.hasMeta(printed) {
				jp.b.WriteByte(',')
				writeJSONString(&jp.b, "@"+name)
				jp.b.WriteByte(':')
				jp.meta(printed[0])
			}
		default:
			if d.Schema == Null && c.Child(printed[0]) == Null {
				writeJSONString(&jp.b, d.Opaq().Value)
			} else {
				jp.object(printed[0])
			}
		}
	}
}

func (jp *jsonPrinter) hasMeta(nodes []Ptr) bool {
	for _, p := range nodes {
		if jp.c.dnodes.at(p).Meta != Null || jp.c.tagDefault(p, jp.opts) {
			return true
		}
	}
	return false
}

// meta prints the metadata object of p. It reports whether p had any.
func (jp *jsonPrinter) meta(p Ptr) bool {
	c := jp.c
	d := c.dnodes.at(p)
	tag := c.tagDefault(p, jp.opts)
	if d.Meta == Null && !tag {
		return false
	}
	jp.b.WriteByte('{')
	wrote := false
	for m := d.Meta; m != Null; m = c.metas.at(m).Next {
		md := c.metas.at(m)
		jp.comma(&wrote)
		writeJSONString(&jp.b, md.Module+":"+md.Name)
		jp.b.WriteByte(':')
		writeJSONString(&jp.b, md.Value)
	}
	if tag {
		jp.comma(&wrote)
		jp.b.WriteString(`"ietf-netconf-with-defaults:default":true`)
	}
	jp.b.WriteByte('}')
	return true
}

func (jp *jsonPrinter) object(p Ptr) {
	c := jp.c
	jp.b.WriteByte('{')
	var children []Ptr
	for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
		children = append(children, q)
	}
	jp.siblings(children, p)
	if c.dnodes.at(p).Meta != Null {
		if len(children) > 0 && jp.b.Bytes()[jp.b.Len()-1] != '{' {
			jp.b.WriteByte(',')
		}
		jp.b.WriteString(`"@":`)
		jp.meta(p)
	}
	jp.b.WriteByte('}')
}

func (jp *jsonPrinter) value(p Ptr) {
	c := jp.c
	d := c.dnodes.at(p)
	if a, ok := d.u.(*DAny); ok {
		switch a.ValueType {
		case AnyJSON:
			if a.Str == "" {
				jp.b.WriteString("{}")
			} else {
				jp.b.WriteString(a.Str)
			}
		case AnyDataTree:
			var nodes []Ptr
			if a.Tree != Null {
				for q := c.FirstSibling(a.Tree); q != Null; q = c.dnodes.at(q).Next {
					nodes = append(nodes, q)
				}
			}
			jp.b.WriteByte('{')
			jp.siblings(nodes, Null)
			jp.b.WriteByte('}')
		default:
			writeJSONString(&jp.b, a.Str)
		}
		return
	}
	v := &d.Term().Value
	for v.Base == TypeUnion && v.Sub != nil {
		v = v.Sub
	}
	switch v.Base {
	case TypeInt8, TypeInt16, TypeInt32, TypeUint8, TypeUint16, TypeUint32:
		jp.b.WriteString(v.Canonical)
	case TypeBool:
		jp.b.WriteString(v.Canonical)
	case TypeEmpty:
		jp.b.WriteString("[null]")
	default:
		writeJSONString(&jp.b, v.Canonical)
	}
}

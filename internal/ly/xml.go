package ly

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strings"
)

// Namespaces and prefixes of the metadata modules that need no schema.
var metaNamespaces = map[string][2]string{
	"yang":                       {"urn:ietf:params:xml:ns:yang:1", "yang"},
	"ietf-netconf-with-defaults": {"urn:ietf:params:xml:ns:netconf:default:1.0", "ncwd"},
	"ietf-origin":                {"urn:ietf:params:xml:ns:yang:ietf-origin", "or"},
	"ietf-netconf":               {"urn:ietf:params:xml:ns:netconf:base:1.0", "nc"},
}

// moduleByNs maps an XML namespace to a module name.
func (c *Ctx) moduleByNs(ns string) string {
	if m := c.GetModuleNs(ns); m != Null {
		return c.mods.at(m).Name
	}
	for name, v := range metaNamespaces {
		if v[0] == ns {
			return name
		}
	}
	return ""
}

// nsOf returns the namespace and preferred prefix of a module.
func (c *Ctx) nsOf(module string) (ns, prefix string) {
	if m := c.GetModuleLatest(module); m != Null {
		mm := c.mods.at(m)
		return mm.Namespace, mm.Prefix
	}
	v := metaNamespaces[module]
	return v[0], v[1]
}

// rewritePrefixes replaces the prefixes of qualified names in an XPath or
// identity value using conv; text in quotes is left alone. It fails when a
// prefix cannot be converted.
func rewritePrefixes(expr string, conv func(string) string) (string, bool) {
	var b strings.Builder
	ok := true
	var quote byte
	for i := 0; i < len(expr); {
		ch := expr[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			b.WriteByte(ch)
			i++
			continue
		}
		if ch == '\'' || ch == '"' {
			quote = ch
			b.WriteByte(ch)
			i++
			continue
		}
		if isNameStart(ch) {
			j := i
			for j < len(expr) && isNameChar(expr[j]) {
				j++
			}
			word := expr[i:j]
			if j < len(expr) && expr[j] == ':' {
				p := conv(word)
				if p == "" {
					ok = false
					p = word
				}
				b.WriteString(p)
			} else {
				b.WriteString(word)
			}
			i = j
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String(), ok
}

type xmlParser struct {
	c      *Ctx
	data   []byte
	dec    *xml.Decoder
	opts   ParseOptions
	op     bool
	output bool
	// in-scope prefix declarations, innermost last
	scopes []map[string]string
}

func (xp *xmlParser) line() uint64 {
	l, _ := xp.dec.InputPos()
	return uint64(l)
}

func (xp *xmlParser) resolver(owner Ptr) PrefixResolver {
	return func(prefix string) string {
		if prefix == "" {
			if owner == Null {
				return ""
			}
			return xp.c.mods.at(owner).Name
		}
		for i := len(xp.scopes) - 1; i >= 0; i-- {
			if ns, ok := xp.scopes[i][prefix]; ok {
				return xp.c.moduleByNs(ns)
			}
		}
		return ""
	}
}

func (c *Ctx) parseXML(data []byte, popts ParseOptions, op, output bool) (Ptr, Status) {
	xp := &xmlParser{c: c, data: data, opts: popts, op: op, output: output}
	xp.dec = xml.NewDecoder(bytes.NewReader(data))
	var first Ptr
	st := xp.content(Null, &first)
	if st != Success && first != Null {
		c.FreeSiblings(first)
		first = Null
	}
	return first, st
}

func (xp *xmlParser) syntax(err error) Status {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return xp.c.errLine(EVALID, VESyntaxXML, uint64(se.Line), "Invalid XML data (%s).", se.Msg)
	}
	return xp.c.errLine(EVALID, VESyntaxXML, xp.line(), "Invalid XML data (%s).", err)
}

// content parses child elements until the end of the enclosing element. Text
// between child elements is returned.
func (xp *xmlParser) content(parent Ptr, first *Ptr) Status {
	for {
		tok, err := xp.dec.Token()
		if errors.Is(err, io.EOF) {
			if parent != Null {
				return xp.c.errLine(EVALID, VESyntaxXML, xp.line(), "Unexpected end of XML data.")
			}
			return Success
		}
		if err != nil {
			return xp.syntax(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if st := xp.element(parent, first, t.Copy()); st != Success {
				return st
			}
		case xml.EndElement:
			return Success
		}
	}
}

func (xp *xmlParser) pushScope(se xml.StartElement) {
	scope := map[string]string{}
	for _, a := range se.Attr {
		if a.Name.Space == "xmlns" {
			scope[a.Name.Local] = a.Value
		}
	}
	xp.scopes = append(xp.scopes, scope)
}

func (xp *xmlParser) popScope() {
	xp.scopes = xp.scopes[:len(xp.scopes)-1]
}

// text reads the character data of a leaf element up to its end tag.
func (xp *xmlParser) text() (string, bool, error) {
	var b strings.Builder
	for {
		tok, err := xp.dec.Token()
		if err != nil {
			return "", false, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if err := xp.dec.Skip(); err != nil {
				return "", false, err
			}
			return "", false, nil
		case xml.EndElement:
			return b.String(), true, nil
		}
	}
}

func (xp *xmlParser) element(parent Ptr, first *Ptr, se xml.StartElement) Status {
	c := xp.c
	xp.pushScope(se)
	defer xp.popScope()
	modName := c.moduleByNs(se.Name.Space)
	var s Ptr
	if parent == Null {
		if modName != "" {
			s, _ = c.resolveTop(modName, se.Name.Local)
		}
	} else if ps := c.dnodes.at(parent).Schema; ps != Null && modName != "" {
		s = c.FindChild(ps, Null, modName, se.Name.Local, xp.output)
	}
	if s == Null {
		return xp.unknown(parent, first, se, modName)
	}
	n := c.snodes.at(s)
	if n.NodeType&NodeOp != 0 && !xp.op {
		return c.schemaErr(EVALID, VEData, s, "Unexpected %s \"%s\" in data.", n.NodeType, n.Name)
	}
	var node Ptr
	switch {
	case n.NodeType&(NodeContainer|NodeList|NodeOp) != 0:
		node, _ = c.newNode(s)
		c.attach(parent, first, node)
		var unused Ptr
		if st := xp.content(node, &unused); st != Success {
			return st
		}
	case n.NodeType&NodeTerm != 0:
		txt, ok, err := xp.text()
		if err != nil {
			return xp.syntax(err)
		}
		if !ok {
			return c.errLine(EVALID, VEData, xp.line(), "Invalid value of %s \"%s\", element content found.", n.NodeType, n.Name)
		}
		var st Status
		node, st = c.newTerm(s, txt, xp.resolver(n.Module))
		if st != Success {
			return st
		}
		c.attach(parent, first, node)
	case n.NodeType&NodeAny != 0:
		start := xp.dec.InputOffset()
		if err := xp.dec.Skip(); err != nil {
			return xp.syntax(err)
		}
		end := xp.dec.InputOffset()
		inner := xp.data[start:end]
		if i := bytes.LastIndex(inner, []byte("</")); i >= 0 {
			inner = inner[:i]
		}
		node, _ = c.newNode(s)
		a := c.dnodes.at(node).Any()
		a.ValueType, a.Str = AnyXML, string(bytes.TrimSpace(inner))
		c.attach(parent, first, node)
	default:
		return c.schemaErr(EINT, VEData, s, "Unexpected schema node \"%s\".", n.Name)
	}
	return xp.attributes(node, se)
}

func (xp *xmlParser) attributes(node Ptr, se xml.StartElement) Status {
	c := xp.c
	for _, a := range se.Attr {
		if a.Name.Space == "xmlns" || a.Name.Space == "" && a.Name.Local == "xmlns" {
			continue
		}
		if a.Name.Space == "" {
			if xp.opts&ParseStrict != 0 {
				return c.dataErr(EVALID, node, "Missing mandatory prefix for XML metadata \"%s\".", a.Name.Local)
			}
			continue
		}
		mod := c.moduleByNs(a.Name.Space)
		if mod == "" {
			if xp.opts&ParseStrict != 0 {
				return c.dataErr(EVALID, node, "Unknown XML metadata namespace \"%s\".", a.Name.Space)
			}
			continue
		}
		if _, st := c.NewMeta(node, mod, a.Name.Local, a.Value); st != Success && xp.opts&ParseStrict != 0 {
			return st
		}
	}
	return Success
}

func (xp *xmlParser) unknown(parent Ptr, first *Ptr, se xml.StartElement, modName string) Status {
	c := xp.c
	if xp.opts&ParseOpaq == 0 {
		if xp.opts&ParseStrict != 0 {
			return c.errLine(EVALID, VEData, xp.line(), "Node \"%s\" not found in namespace \"%s\".", se.Name.Local, se.Name.Space)
		}
		if err := xp.dec.Skip(); err != nil {
			return xp.syntax(err)
		}
		return Success
	}
	if modName == "" && parent != Null {
		modName = c.moduleNameOf(parent)
	}
	node, _ := c.NewOpaq(Null, se.Name.Local, "", "", modName)
	c.attach(parent, first, node)
	var b strings.Builder
	for {
		tok, err := xp.dec.Token()
		if err != nil {
			return xp.syntax(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			var unused Ptr
			if st := xp.element(node, &unused, t.Copy()); st != Success {
				return st
			}
		case xml.EndElement:
			if c.Child(node) == Null {
				c.dnodes.at(node).Opaq().Value = b.String()
			}
			return Success
		}
	}
}

type xmlPrinter struct {
	c    *Ctx
	opts PrintOptions
	b    bytes.Buffer
}

func (c *Ctx) printXML(nodes []Ptr, opts PrintOptions) ([]byte, Status) {
	xw := &xmlPrinter{c: c, opts: opts}
	for _, p := range nodes {
		if c.shouldPrint(p, opts) {
			xw.node(p, "", 0)
		}
	}
	return xw.b.Bytes(), Success
}

func (xw *xmlPrinter) indent(level int) {
	if xw.opts&PrintShrink == 0 {
		xw.b.WriteString(strings.Repeat("  ", level))
	}
}

func (xw *xmlPrinter) newline() {
	if xw.opts&PrintShrink == 0 {
		xw.b.WriteByte('\n')
	}
}

func (xw *xmlPrinter) escape(s string) {
	xml.EscapeText(&xw.b, []byte(s))
}

func (xw *xmlPrinter) attr(name, value string) {
	xw.b.WriteByte(' ')
	xw.b.WriteString(name)
	xw.b.WriteString(`="`)
	xw.escape(value)
	xw.b.WriteByte('"')
}

// node prints p; parentNs is the default namespace in effect.
func (xw *xmlPrinter) node(p Ptr, parentNs string, level int) {
	c := xw.c
	d := c.dnodes.at(p)
	name := c.nodeName(p)
	ns, _ := c.nsOf(c.moduleNameOf(p))
	xw.indent(level)
	xw.b.WriteByte('<')
	xw.b.WriteString(name)
	if ns != "" && ns != parentNs {
		xw.attr("xmlns", ns)
	} else {
		ns = parentNs
	}
	// prefixed namespaces for metadata and for values that need them
	decl := map[string]string{}
	value, hasValue := xw.valueText(p, decl)
	type metaAttr struct{ name, value string }
	var metas []metaAttr
	for m := d.Meta; m != Null; m = c.metas.at(m).Next {
		md := c.metas.at(m)
		mns, mpref := c.nsOf(md.Module)
		decl[mpref] = mns
		metas = append(metas, metaAttr{mpref + ":" + md.Name, md.Value})
	}
	if c.tagDefault(p, xw.opts) {
		mns, mpref := c.nsOf("ietf-netconf-with-defaults")
		decl[mpref] = mns
		metas = append(metas, metaAttr{mpref + ":default", "true"})
	}
	prefixes := make([]string, 0, len(decl))
	for k := range decl {
		prefixes = append(prefixes, k)
	}
	sort.Strings(prefixes)
	for _, k := range prefixes {
		xw.attr("xmlns:"+k, decl[k])
	}
	for _, m := range metas {
		xw.attr(m.name, m.value)
	}
	if hasValue {
		if value == "" {
			xw.b.WriteString("/>")
			xw.newline()
			return
		}
		xw.b.WriteByte('>')
		if a, ok := d.u.(*DAny); ok && a.ValueType == AnyXML {
			xw.b.WriteString(value)
		} else {
			xw.escape(value)
		}
		xw.b.WriteString("</")
		xw.b.WriteString(name)
		xw.b.WriteByte('>')
		xw.newline()
		return
	}
	var children []Ptr
	for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
		if c.shouldPrint(q, xw.opts) {
			children = append(children, q)
		}
	}
	if a, ok := d.u.(*DAny); ok && a.ValueType == AnyDataTree && a.Tree != Null {
		for q := c.FirstSibling(a.Tree); q != Null; q = c.dnodes.at(q).Next {
			children = append(children, q)
		}
	}
	if len(children) == 0 {
		xw.b.WriteString("/>")
		xw.newline()
		return
	}
	xw.b.WriteByte('>')
	xw.newline()
	for _, q := range children {
		xw.node(q, ns, level+1)
	}
	xw.indent(level)
	xw.b.WriteString("</")
	xw.b.WriteString(name)
	xw.b.WriteByte('>')
	xw.newline()
}

// valueText returns the text content of a term, any or valued opaque node,
// adding the namespace declarations its prefixes need to decl.
func (xw *xmlPrinter) valueText(p Ptr, decl map[string]string) (string, bool) {
	c := xw.c
	d := c.dnodes.at(p)
	switch v := d.u.(type) {
	case *DOpaq:
		if v.Child != Null {
			return "", false
		}
		return v.Value, true
	case *DAny:
		if v.ValueType == AnyDataTree {
			return "", false
		}
		return v.Str, true
	case *DTerm:
		val := &v.Value
		for val.Base == TypeUnion && val.Sub != nil {
			val = val.Sub
		}
		switch val.Base {
		case TypeIdent, TypeInst:
			out, _ := rewritePrefixes(val.Canonical, func(mod string) string {
				mns, mpref := c.nsOf(mod)
				if mns == "" {
					return ""
				}
				decl[mpref] = mns
				return mpref
			})
			return out, true
		}
		return val.Canonical, true
	}
	return "", false
}

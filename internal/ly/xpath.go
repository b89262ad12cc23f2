package ly

import (
	"fmt"
	"strconv"
	"strings"
)

// YANG path expressions: schema-node paths, leafref paths,
// instance-identifiers and the paths NewPath creates nodes along.
//
//	/mod:a/b[k='v'][2]//c | ../d[. = "x"] | /a/b[k = current()/../k]
//
// Functions other than current() inside predicates, arithmetic and
// comparison operators other than = are not supported. Data queries use the
// full XPath engine in query.go.

type xpAxis uint8

const (
	axisChild xpAxis = iota
	axisDescendant
	axisSelf
	axisParent
)

type xpStep struct {
	axis   xpAxis
	prefix string
	name   string
	preds  []xpPred
}

type xpPred struct {
	pos   int
	conds []xpCond
}

type xpCond struct {
	prefix string
	name   string
	value  string
	ref    *xpPath
}

type xpPath struct {
	absolute bool
	steps    []xpStep
}

type xpExpr struct {
	src   string
	paths []xpPath
}

type xpError struct {
	expr string
	pos  int
	msg  string
}

func (e *xpError) Error() string {
	return fmt.Sprintf("%s at position %d of expression \"%s\"", e.msg, e.pos+1, e.expr)
}

type xpParser struct {
	s   string
	pos int
}

func parseXPath(s string) (*xpExpr, error) {
	p := &xpParser{s: s}
	e := &xpExpr{src: s}
	for {
		path, err := p.path()
		if err != nil {
			return nil, err
		}
		e.paths = append(e.paths, path)
		p.ws()
		if p.eof() {
			return e, nil
		}
		if p.peek() != '|' {
			return nil, p.errf("Invalid character '%c'", p.peek())
		}
		p.pos++
	}
}

func (p *xpParser) eof() bool { return p.pos >= len(p.s) }

func (p *xpParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.s[p.pos]
}

func (p *xpParser) ws() {
	for !p.eof() && strings.IndexByte(" \t\r\n", p.s[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *xpParser) errf(format string, args ...any) *xpError {
	return &xpError{expr: p.s, pos: p.pos, msg: fmt.Sprintf(format, args...)}
}

func (p *xpParser) has(tok string) bool {
	return strings.HasPrefix(p.s[p.pos:], tok)
}

func (p *xpParser) path() (xpPath, error) {
	var path xpPath
	p.ws()
	axis := axisChild
	switch {
	case p.has("//"):
		path.absolute = true
		axis = axisDescendant
		p.pos += 2
	case p.has("/"):
		path.absolute = true
		p.pos++
	}
	for {
		p.ws()
		step, err := p.step(axis)
		if err != nil {
			return path, err
		}
		path.steps = append(path.steps, step)
		p.ws()
		switch {
		case p.has("//"):
			axis = axisDescendant
			p.pos += 2
		case p.has("/"):
			axis = axisChild
			p.pos++
		default:
			return path, nil
		}
	}
}

func isNameStart(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isNameChar(b byte) bool {
	return isNameStart(b) || b >= '0' && b <= '9' || b == '-' || b == '.'
}

func (p *xpParser) ident() (string, error) {
	if p.eof() || !isNameStart(p.peek()) {
		if p.eof() {
			return "", p.errf("Unexpected end of expression")
		}
		return "", p.errf("Invalid character '%c'", p.peek())
	}
	start := p.pos
	for !p.eof() && isNameChar(p.peek()) {
		p.pos++
	}
	return p.s[start:p.pos], nil
}

func (p *xpParser) qname() (prefix, name string, err error) {
	if p.peek() == '*' {
		p.pos++
		return "", "*", nil
	}
	name, err = p.ident()
	if err != nil {
		return "", "", err
	}
	if p.peek() == ':' {
		p.pos++
		prefix = name
		if p.peek() == '*' {
			p.pos++
			return prefix, "*", nil
		}
		if name, err = p.ident(); err != nil {
			return "", "", err
		}
	}
	return prefix, name, nil
}

func (p *xpParser) step(axis xpAxis) (xpStep, error) {
	st := xpStep{axis: axis}
	switch {
	case p.has(".."):
		p.pos += 2
		st.axis = axisParent
	case p.has("."):
		p.pos++
		st.axis = axisSelf
	default:
		prefix, name, err := p.qname()
		if err != nil {
			return st, err
		}
		st.prefix, st.name = prefix, name
	}
	for {
		p.ws()
		if p.peek() != '[' {
			return st, nil
		}
		p.pos++
		pred, err := p.pred()
		if err != nil {
			return st, err
		}
		st.preds = append(st.preds, pred)
	}
}

func (p *xpParser) pred() (xpPred, error) {
	var pred xpPred
	p.ws()
	if c := p.peek(); c >= '0' && c <= '9' {
		start := p.pos
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
		n, _ := strconv.Atoi(p.s[start:p.pos])
		if n < 1 {
			return pred, p.errf("Invalid position predicate %d", n)
		}
		pred.pos = n
		p.ws()
		if p.peek() != ']' {
			return pred, p.errf("Expected ']'")
		}
		p.pos++
		return pred, nil
	}
	for {
		p.ws()
		cond, err := p.cond()
		if err != nil {
			return pred, err
		}
		pred.conds = append(pred.conds, cond)
		p.ws()
		if p.peek() == ']' {
			p.pos++
			return pred, nil
		}
		if !p.has("and") {
			if p.eof() {
				return pred, p.errf("Unterminated predicate")
			}
			return pred, p.errf("Invalid character '%c'", p.peek())
		}
		p.pos += 3
	}
}

func (p *xpParser) cond() (xpCond, error) {
	var cond xpCond
	if p.peek() == '.' {
		p.pos++
		cond.name = "."
	} else {
		prefix, name, err := p.qname()
		if err != nil {
			return cond, err
		}
		cond.prefix, cond.name = prefix, name
	}
	p.ws()
	if p.peek() != '=' {
		if p.eof() {
			return cond, p.errf("Unexpected end of expression")
		}
		return cond, p.errf("Invalid character '%c'", p.peek())
	}
	p.pos++
	p.ws()
	switch q := p.peek(); {
	case q == '\'' || q == '"':
		end := strings.IndexByte(p.s[p.pos+1:], q)
		if end < 0 {
			return cond, p.errf("Unterminated string literal")
		}
		cond.value = p.s[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
	case p.has("current()"):
		p.pos += len("current()")
		ref := &xpPath{}
		for {
			p.ws()
			if p.peek() != '/' {
				break
			}
			p.pos++
			p.ws()
			step, err := p.step(axisChild)
			if err != nil {
				return cond, err
			}
			ref.steps = append(ref.steps, step)
		}
		cond.ref = ref
	default:
		start := p.pos
		for !p.eof() && strings.IndexByte(" \t\r\n]", p.peek()) < 0 {
			p.pos++
		}
		if start == p.pos {
			return cond, p.errf("Missing value in predicate")
		}
		cond.value = p.s[start:p.pos]
	}
	return cond, nil
}

// xpathErr logs a syntax error as an XPath validation error.
func (c *Ctx) xpathErr(err error) Status {
	return c.errf(EVALID, VEXPath, "%s.", err)
}

// ordered set of pointers in insertion order
type ptrSet struct {
	list []Ptr
	seen map[Ptr]bool
}

func (s *ptrSet) add(p Ptr) {
	if s.seen == nil {
		s.seen = map[Ptr]bool{}
	}
	if !s.seen[p] {
		s.seen[p] = true
		s.list = append(s.list, p)
	}
}

// evalSchema evaluates expr over the schema tree. Predicates are ignored.
// Null stands for the virtual root above all top-level nodes.
func (c *Ctx) evalSchema(e *xpExpr, ctxNode Ptr, res PrefixResolver, output bool) []Ptr {
	var out ptrSet
	for _, path := range e.paths {
		cur := []Ptr{ctxNode}
		if path.absolute {
			cur = []Ptr{Null}
		}
		for _, st := range path.steps {
			cur = c.schemaStep(cur, st, res, output)
		}
		for _, p := range cur {
			if p != Null {
				out.add(p)
			}
		}
	}
	return out.list
}

func (c *Ctx) schemaChildren(p Ptr, output bool) []Ptr {
	if p == Null {
		var out []Ptr
		for _, m := range c.modules {
			out = append(out, c.DataChildren(Null, m, false)...)
			for q := c.ModuleRPCs(m); q != Null; q = c.SchemaNext(q) {
				out = append(out, q)
			}
			for q := c.ModuleNotifs(m); q != Null; q = c.SchemaNext(q) {
				out = append(out, q)
			}
		}
		return out
	}
	return c.DataChildren(p, Null, output)
}

func (c *Ctx) schemaStep(in []Ptr, st xpStep, res PrefixResolver, output bool) []Ptr {
	var out ptrSet
	switch st.axis {
	case axisSelf:
		for _, p := range in {
			out.add(p)
		}
		return out.list
	case axisParent:
		for _, p := range in {
			if p != Null {
				out.add(c.DataParent(p))
			}
		}
		return out.list
	}
	from := in
	if st.axis == axisDescendant {
		var all ptrSet
		var walk func(p Ptr)
		walk = func(p Ptr) {
			all.add(p)
			for _, ch := range c.schemaChildren(p, output) {
				walk(ch)
			}
		}
		for _, p := range in {
			walk(p)
		}
		from = all.list
	}
	modName := ""
	if st.prefix != "" {
		if res != nil {
			modName = res(st.prefix)
		}
		if modName == "" {
			return nil
		}
	}
	for _, p := range from {
		if p != Null && c.snodes.at(p).NodeType&(NodeRPC|NodeAction) != 0 && (st.name == "input" || st.name == "output") {
			a := c.snodes.at(p).Action()
			if st.name == "input" {
				out.add(a.Input)
			} else {
				out.add(a.Output)
			}
			continue
		}
		for _, ch := range c.schemaChildren(p, output) {
			n := c.snodes.at(ch)
			if st.name != "*" && n.Name != st.name {
				continue
			}
			if modName != "" && c.mods.at(n.Module).Name != modName {
				continue
			}
			out.add(ch)
		}
	}
	return out.list
}

// FindSchemaPath evaluates an XPath expression over the schema tree and
// returns the matching nodes. Prefixes are module names. With output set,
// rpc and action children are looked up in the output instead of the input.
func (c *Ctx) FindSchemaPath(ctxNode Ptr, xpath string, output bool) ([]Ptr, Status) {
	c.live()
	e, err := parseXPath(xpath)
	if err != nil {
		return nil, c.xpathErr(err)
	}
	res := c.jsonPrefixes(Null)
	if ctxNode != Null {
		res = c.jsonPrefixes(c.snodes.at(ctxNode).Module)
	}
	return c.evalSchema(e, ctxNode, res, output), Success
}

func (c *Ctx) evalData(e *xpExpr, ctxNode, current Ptr) []Ptr {
	var out ptrSet
	if ctxNode == Null {
		return nil
	}
	for _, path := range e.paths {
		out.addAll(c.evalDataPath(&path, ctxNode, current))
	}
	return out.list
}

func (s *ptrSet) addAll(ps []Ptr) {
	for _, p := range ps {
		s.add(p)
	}
}

// xpItem is a node of an intermediate result; root marks the virtual root
// above the top-level siblings of the evaluated tree.
type xpItem struct {
	p    Ptr
	root bool
}

func (c *Ctx) evalDataPath(path *xpPath, ctxNode, current Ptr) []Ptr {
	cur := []xpItem{{p: ctxNode}}
	if path.absolute {
		cur = []xpItem{{root: true}}
	}
	children := func(it xpItem) []Ptr {
		if it.root {
			return c.dataChildren(ctxNode, true)
		}
		return c.dataChildren(it.p, false)
	}
	for _, st := range path.steps {
		var next []xpItem
		var seen ptrSet
		rootSeen := false
		push := func(it xpItem) {
			if it.root {
				if !rootSeen {
					rootSeen = true
					next = append(next, it)
				}
				return
			}
			if seen.seen == nil || !seen.seen[it.p] {
				seen.add(it.p)
				next = append(next, it)
			}
		}
		switch st.axis {
		case axisSelf:
			var ps []Ptr
			for _, it := range cur {
				if it.root {
					if len(st.preds) == 0 {
						push(it)
					}
					continue
				}
				ps = append(ps, it.p)
			}
			for _, p := range c.applyPreds(ps, st.preds, current) {
				push(xpItem{p: p})
			}
			cur = next
			continue
		case axisParent:
			for _, it := range cur {
				if it.root {
					continue
				}
				if par := c.dnodes.at(it.p).Parent; par != Null {
					push(xpItem{p: par})
				} else {
					push(xpItem{root: true})
				}
			}
			cur = next
			continue
		}
		from := cur
		if st.axis == axisDescendant {
			from = nil
			for _, it := range cur {
				from = append(from, it)
				for _, k := range children(it) {
					c.walkData(k, func(q Ptr) { from = append(from, xpItem{p: q}) })
				}
			}
		}
		for _, it := range from {
			var matched []Ptr
			for _, k := range children(it) {
				if c.dataNameMatch(k, st.prefix, st.name) {
					matched = append(matched, k)
				}
			}
			for _, k := range c.applyPreds(matched, st.preds, current) {
				push(xpItem{p: k})
			}
		}
		cur = next
	}
	var out []Ptr
	for _, it := range cur {
		if !it.root {
			out = append(out, it.p)
		}
	}
	return out
}

func (c *Ctx) walkData(p Ptr, fn func(Ptr)) {
	fn(p)
	for _, k := range c.dataChildren(p, false) {
		c.walkData(k, fn)
	}
}

// dataChildren lists the children of p, or with top set, the top-level
// siblings of the tree that contains p.
func (c *Ctx) dataChildren(p Ptr, top bool) []Ptr {
	var first Ptr
	if top {
		r := p
		for c.dnodes.at(r).Parent != Null {
			r = c.dnodes.at(r).Parent
		}
		first = c.FirstSibling(r)
	} else {
		first = c.Child(p)
	}
	var out []Ptr
	for q := first; q != Null; q = c.dnodes.at(q).Next {
		out = append(out, q)
	}
	return out
}

func (c *Ctx) dataNameMatch(p Ptr, prefix, name string) bool {
	d := c.dnodes.at(p)
	var nodeName, modName, modPrefix string
	if d.Schema == Null {
		o := d.Opaq()
		nodeName, modName, modPrefix = o.Name, o.ModuleName, o.Prefix
	} else {
		s := c.snodes.at(d.Schema)
		m := c.mods.at(s.Module)
		nodeName, modName, modPrefix = s.Name, m.Name, m.Prefix
	}
	if name != "*" && name != nodeName {
		return false
	}
	return prefix == "" || prefix == modName || prefix == modPrefix
}

func (c *Ctx) applyPreds(nodes []Ptr, preds []xpPred, current Ptr) []Ptr {
	for _, pr := range preds {
		if pr.pos > 0 {
			if pr.pos <= len(nodes) {
				nodes = []Ptr{nodes[pr.pos-1]}
			} else {
				nodes = nil
			}
			continue
		}
		var kept []Ptr
		for _, n := range nodes {
			if c.condsHold(n, pr.conds, current) {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	return nodes
}

func (c *Ctx) condsHold(n Ptr, conds []xpCond, current Ptr) bool {
	for _, cond := range conds {
		want := cond.value
		if cond.ref != nil {
			if current == Null {
				return false
			}
			targets := c.evalDataPath(cond.ref, current, current)
			if len(targets) == 0 {
				return false
			}
			want = c.nodeText(targets[0])
		}
		if cond.name == "." {
			if c.nodeText(n) != want {
				return false
			}
			continue
		}
		ok := false
		for _, k := range c.dataChildren(n, false) {
			if c.dataNameMatch(k, cond.prefix, cond.name) && c.nodeText(k) == want {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// nodeText is the canonical value of a term node or the value of an opaque
// node; other nodes have no text.
func (c *Ctx) nodeText(p Ptr) string {
	d := c.dnodes.at(p)
	if d.Schema == Null {
		return d.Opaq().Value
	}
	if c.snodes.at(d.Schema).NodeType&NodeTerm != 0 {
		return d.Term().Value.Canonical
	}
	return ""
}

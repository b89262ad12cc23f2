package ly

import (
	"strings"

	"github.com/antchfx/xpath"
)

// dataNav walks a data tree for the XPath 1.0 engine. The root is the
// virtual node above the top-level siblings and metadata are attributes.
type dataNav struct {
	c    *Ctx
	top  Ptr // first top-level sibling
	cur  Ptr // Null on the root
	meta Ptr // set on an attribute
}

var _ xpath.NodeNavigator = (*dataNav)(nil)

func (n *dataNav) NodeType() xpath.NodeType {
	switch {
	case n.meta != Null:
		return xpath.AttributeNode
	case n.cur == Null:
		return xpath.RootNode
	}
	return xpath.ElementNode
}

func (n *dataNav) LocalName() string {
	switch {
	case n.meta != Null:
		return n.c.metas.at(n.meta).Name
	case n.cur == Null:
		return ""
	}
	return n.c.nodeName(n.cur)
}

// Prefix is always empty. Prefixed name tests are matched through
// NamespaceURL, unprefixed ones match nodes of any module.
func (n *dataNav) Prefix() string { return "" }

func (n *dataNav) NamespaceURL() string {
	switch {
	case n.meta != Null:
		return n.c.moduleNS(n.c.metas.at(n.meta).Module)
	case n.cur == Null:
		return ""
	}
	d := n.c.dnodes.at(n.cur)
	if d.Schema == Null {
		return n.c.moduleNS(d.Opaq().ModuleName)
	}
	return n.c.mods.at(n.c.snodes.at(d.Schema).Module).Namespace
}

func (n *dataNav) Value() string {
	switch {
	case n.meta != Null:
		return n.c.metas.at(n.meta).Value
	case n.cur == Null:
		var sb strings.Builder
		for q := n.top; q != Null; q = n.c.dnodes.at(q).Next {
			sb.WriteString(n.c.stringValue(q))
		}
		return sb.String()
	}
	return n.c.stringValue(n.cur)
}

func (n *dataNav) Copy() xpath.NodeNavigator {
	cp := *n
	return &cp
}

func (n *dataNav) MoveToRoot() {
	n.cur, n.meta = Null, Null
}

func (n *dataNav) MoveToParent() bool {
	switch {
	case n.meta != Null:
		n.meta = Null
		return true
	case n.cur == Null:
		return false
	}
	n.cur = n.c.dnodes.at(n.cur).Parent
	return true
}

func (n *dataNav) MoveToNextAttribute() bool {
	if n.cur == Null {
		return false
	}
	next := n.c.dnodes.at(n.cur).Meta
	if n.meta != Null {
		next = n.c.metas.at(n.meta).Next
	}
	if next == Null {
		return false
	}
	n.meta = next
	return true
}

func (n *dataNav) MoveToChild() bool {
	if n.meta != Null {
		return false
	}
	first := n.top
	if n.cur != Null {
		first = n.c.Child(n.cur)
	}
	if first == Null {
		return false
	}
	n.cur = first
	return true
}

func (n *dataNav) MoveToFirst() bool {
	if n.meta != Null || n.cur == Null {
		return false
	}
	first := n.c.FirstSibling(n.cur)
	if first == n.cur {
		return false
	}
	n.cur = first
	return true
}

func (n *dataNav) MoveToNext() bool {
	if n.meta != Null || n.cur == Null {
		return false
	}
	next := n.c.dnodes.at(n.cur).Next
	if next == Null {
		return false
	}
	n.cur = next
	return true
}

// MoveToPrevious stops at the first sibling, whose Prev wraps around to the
// last one.
func (n *dataNav) MoveToPrevious() bool {
	if n.meta != Null || n.cur == Null {
		return false
	}
	prev := n.c.dnodes.at(n.cur).Prev
	if n.c.dnodes.at(prev).Next == Null {
		return false
	}
	n.cur = prev
	return true
}

func (n *dataNav) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*dataNav)
	if !ok || o.c != n.c || o.top != n.top {
		return false
	}
	*n = *o
	return true
}

// stringValue is the XPath string-value of a data node: the canonical value
// of a term, the text of an any or childless opaque node, or else the
// concatenated values of the descendants.
func (c *Ctx) stringValue(p Ptr) string {
	switch v := c.dnodes.at(p).u.(type) {
	case *DTerm:
		return v.Value.Canonical
	case *DAny:
		return v.Str
	case *DOpaq:
		if v.Child == Null {
			return v.Value
		}
	}
	var sb strings.Builder
	for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
		sb.WriteString(c.stringValue(q))
	}
	return sb.String()
}

// moduleNS maps a module name to its namespace. Unknown modules, which
// only opaque nodes and metadata can name, use the name itself.
func (c *Ctx) moduleNS(name string) string {
	if m := c.GetModuleLatest(name); m != Null {
		return c.mods.at(m).Namespace
	}
	return name
}

// xpathNamespaces binds every module name and module prefix to the module
// namespace, plus the unknown module names used in the tree of p.
func (c *Ctx) xpathNamespaces(p Ptr) map[string]string {
	ns := make(map[string]string)
	for _, m := range c.modules {
		mod := c.mods.at(m)
		ns[mod.Name] = mod.Namespace
	}
	for _, m := range c.modules {
		mod := c.mods.at(m)
		if _, ok := ns[mod.Prefix]; !ok {
			ns[mod.Prefix] = mod.Namespace
		}
	}
	if p == Null {
		return ns
	}
	bind := func(name string) {
		if _, ok := ns[name]; name != "" && !ok {
			ns[name] = name
		}
	}
	for q := c.Root(p); q != Null; q = c.dnodes.at(q).Next {
		c.walkData(q, func(r Ptr) {
			d := c.dnodes.at(r)
			if d.Schema == Null {
				bind(d.Opaq().ModuleName)
			}
			for m := d.Meta; m != Null; m = c.metas.at(m).Next {
				bind(c.metas.at(m).Module)
			}
		})
	}
	return ns
}

// FindXPath evaluates an XPath 1.0 expression over the data tree that
// contains ctxNode. Relative paths start at ctxNode and prefixes are module
// names or module prefixes. The expression must select nodes; selected
// metadata are skipped.
func (c *Ctx) FindXPath(ctxNode Ptr, expr string) (found []Ptr, st Status) {
	c.live()
	e, err := xpath.CompileWithNS(expr, c.xpathNamespaces(ctxNode))
	if err != nil {
		return nil, c.errf(EVALID, VEXPath, "Invalid XPath expression \"%s\" (%s).", expr, err)
	}
	if ctxNode == Null {
		return nil, Success
	}
	defer func() {
		if r := recover(); r != nil {
			found, st = nil, c.errf(EVALID, VEXPath, "Failed to evaluate XPath expression \"%s\" (%v).", expr, r)
		}
	}()
	nav := &dataNav{c: c, top: c.Root(ctxNode), cur: ctxNode}
	it, ok := e.Evaluate(nav).(*xpath.NodeIterator)
	if !ok {
		return nil, c.errf(EVALID, VEXPath, "XPath expression \"%s\" does not select nodes.", expr)
	}
	var out ptrSet
	for it.MoveNext() {
		if n, ok := it.Current().(*dataNav); ok && n.meta == Null && n.cur != Null {
			out.add(n.cur)
		}
	}
	return out.list, Success
}

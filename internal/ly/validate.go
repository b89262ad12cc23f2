package ly

import (
	"strings"
)

// ValidateOptions control ValidateAll and ValidateOp.
type ValidateOptions uint8

// Validation options.
const (
	ValidateNoState ValidateOptions = 1 << iota // state data are an error
	ValidatePresent                             // only modules with data in the tree
	ValidateMultiError                          // report every error instead of stopping at the first
)

// validator carries the state of one validation run.
type validator struct {
	c      *Ctx
	opts   ValidateOptions
	root   Ptr // first top-level sibling, for instance lookups
	failed bool
	first  Status
}

// fail records an error status. It reports whether validation may go on.
func (v *validator) fail(st Status) bool {
	if !v.failed {
		v.first = st
	}
	v.failed = true
	return v.opts&ValidateMultiError != 0
}

func (v *validator) result() Status {
	if v.failed {
		return v.first
	}
	return Success
}

// ValidateAll validates a complete data tree and adds the implicit nodes
// (non-presence containers, default leaves and leaf-lists) of all
// implemented modules. *tree may be Null and is updated to the new first
// sibling.
func (c *Ctx) ValidateAll(tree *Ptr, opts ValidateOptions) Status {
	c.live()
	if *tree != Null {
		*tree = c.Root(*tree)
	}
	v := &validator{c: c, opts: opts}
	var mods []Ptr
	for _, m := range c.modules {
		mm := c.mods.at(m)
		if !mm.Implemented {
			continue
		}
		if opts&ValidatePresent != 0 && !c.hasModuleData(*tree, m) {
			continue
		}
		mods = append(mods, m)
	}
	for _, m := range mods {
		c.addImplicit(Null, tree, c.ModuleData(m), opts)
	}
	v.root = *tree
	for q := *tree; q != Null; q = c.dnodes.at(q).Next {
		if !v.node(q) {
			return v.result()
		}
	}
	for _, m := range mods {
		if !v.siblings(*tree, c.ModuleData(m)) {
			return v.result()
		}
	}
	if v.failed {
		return v.result()
	}
	for q := *tree; q != Null; q = c.dnodes.at(q).Next {
		c.settle(q)
	}
	return Success
}

func (c *Ctx) hasModuleData(first, mod Ptr) bool {
	for q := first; q != Null; q = c.dnodes.at(q).Next {
		if c.OwnerModule(q) == mod {
			return true
		}
	}
	return false
}

// ValidateOp validates an rpc, action or notification tree. The operation
// node is located inside tree; dataTree, if set, resolves leafref and
// instance-identifier references.
func (c *Ctx) ValidateOp(tree, dataTree Ptr, output bool) Status {
	c.live()
	op := c.findOp(c.Root(tree))
	if op == Null {
		return c.errf(EINVAL, VEData, "No operation found in the tree.")
	}
	s := c.snodes.at(c.dnodes.at(op).Schema)
	var schemaFirst Ptr
	switch s.NodeType {
	case NodeRPC, NodeAction:
		if output {
			schemaFirst = c.SchemaChild(s.Action().Output)
		} else {
			schemaFirst = c.SchemaChild(s.Action().Input)
		}
	case NodeNotif:
		schemaFirst = c.SchemaChild(c.dnodes.at(op).Schema)
	}
	first := c.Child(op)
	c.addImplicit(op, &first, schemaFirst, 0)
	v := &validator{c: c, opts: ValidateMultiError}
	if dataTree != Null {
		v.root = c.Root(dataTree)
	}
	for q := c.Child(op); q != Null; q = c.dnodes.at(q).Next {
		if !v.node(q) {
			return v.result()
		}
	}
	v.siblings(c.Child(op), schemaFirst)
	return v.result()
}

func (c *Ctx) findOp(p Ptr) Ptr {
	for q := p; q != Null; q = c.dnodes.at(q).Next {
		d := c.dnodes.at(q)
		if d.Schema != Null && c.snodes.at(d.Schema).NodeType&NodeOp != 0 {
			return q
		}
		if op := c.findOp(c.Child(q)); op != Null {
			return op
		}
	}
	return Null
}

// addImplicit adds the implicit nodes among the data siblings that
// instantiate the schema siblings starting at schemaFirst. parent is the
// data parent, or Null for top-level nodes whose first sibling is *first.
func (c *Ctx) addImplicit(parent Ptr, first *Ptr, schemaFirst Ptr, opts ValidateOptions) {
	chain := func() Ptr {
		if parent != Null {
			return c.Child(parent)
		}
		return *first
	}
	link := func(node Ptr) {
		c.dnodes.at(node).Flags |= DFlagDefault
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
	for s := schemaFirst; s != Null; s = c.SchemaNext(s) {
		n := c.snodes.at(s)
		if opts&ValidateNoState != 0 && n.Flags&FlagConfigR != 0 {
			continue
		}
		if n.When != "" {
			// conditional nodes are never created implicitly
			continue
		}
		switch n.NodeType {
		case NodeContainer:
			insts := c.schemaInstances(chain(), s)
			if len(insts) == 0 && n.Container().Presence == "" {
				q, _ := c.newNode(s)
				link(q)
				insts = []Ptr{q}
			}
			for _, q := range insts {
				var unused Ptr
				c.addImplicit(q, &unused, c.SchemaChild(s), opts)
			}
		case NodeList:
			for _, q := range c.schemaInstances(chain(), s) {
				var unused Ptr
				c.addImplicit(q, &unused, c.SchemaChild(s), opts)
			}
		case NodeLeaf:
			l := n.Leaf()
			if l.Dflt == nil || len(c.schemaInstances(chain(), s)) > 0 {
				continue
			}
			if c.caseOccupiedElsewhere(chain(), s) {
				continue
			}
			q, _ := c.newNode(s)
			c.dnodes.at(q).Term().Value = *l.Dflt
			link(q)
		case NodeLeafList:
			ll := n.LeafList()
			if len(ll.Dflts) == 0 || len(c.schemaInstances(chain(), s)) > 0 {
				continue
			}
			if c.caseOccupiedElsewhere(chain(), s) {
				continue
			}
			for _, dv := range ll.Dflts {
				q, _ := c.newNode(s)
				c.dnodes.at(q).Term().Value = dv
				link(q)
			}
		case NodeChoice:
			cs := c.activeCase(chain(), s)
			if cs == Null {
				cs = n.Choice().Dflt
			}
			if cs != Null {
				c.addImplicit(parent, first, c.SchemaChild(cs), opts)
			}
		case NodeCase:
			c.addImplicit(parent, first, c.SchemaChild(s), opts)
		}
	}
}

// caseOccupiedElsewhere reports whether s lies in a case whose choice has
// data in another case.
func (c *Ctx) caseOccupiedElsewhere(first, s Ptr) bool {
	for q := s; q != Null; q = c.snodes.at(q).Parent {
		n := c.snodes.at(q)
		if n.NodeType&NodeCase == 0 {
			if n.NodeType&(NodeChoice) == 0 && q != s {
				return false
			}
			continue
		}
		act := c.activeCase(first, n.Parent)
		if act != Null && act != q {
			return true
		}
	}
	return false
}

// activeCase returns the case of choice that has data among the siblings
// starting at first.
func (c *Ctx) activeCase(first, choice Ptr) Ptr {
	for cs := c.SchemaChild(choice); cs != Null; cs = c.SchemaNext(cs) {
		if c.hasSchemaData(first, cs) {
			return cs
		}
	}
	return Null
}

// hasSchemaData reports whether any data node among first's siblings
// instantiates s or, for choice and case nodes, anything beneath it.
// Implicit default nodes do not count.
func (c *Ctx) hasSchemaData(first, s Ptr) bool {
	n := c.snodes.at(s)
	if n.NodeType&(NodeChoice|NodeCase) != 0 {
		for ch := c.SchemaChild(s); ch != Null; ch = c.SchemaNext(ch) {
			if c.hasSchemaData(first, ch) {
				return true
			}
		}
		return false
	}
	for q := first; q != Null; q = c.dnodes.at(q).Next {
		if d := c.dnodes.at(q); d.Schema == s && d.Flags&DFlagDefault == 0 {
			return true
		}
	}
	return false
}

// node validates a single node and its subtree.
func (v *validator) node(p Ptr) bool {
	c := v.c
	d := c.dnodes.at(p)
	if d.Schema == Null {
		return v.fail(c.dataErr(EVALID, p, "Invalid opaque node \"%s\" found.", d.Opaq().Name))
	}
	s := c.snodes.at(d.Schema)
	if s.NodeType&NodeOp != 0 {
		return true
	}
	if v.opts&ValidateNoState != 0 && s.Flags&FlagConfigR != 0 && !c.inOperation(d.Schema) {
		return v.fail(c.dataErr(EVALID, p, "Invalid state data node \"%s\" found.", s.Name))
	}
	switch t := d.u.(type) {
	case *DTerm:
		typ := c.types.at(c.termType(d.Schema))
		if c.requiresInstance(typ) && v.root != Null && !c.instanceExists(typ, t.Value, v.root, p) {
			switch typ.Base {
			case TypeLeafref:
				return v.fail(c.dataErr(EVALID, p, "Invalid leafref value \"%s\" - no target instance \"%s\" with the same value.",
					t.Value.Canonical, typ.Path))
			default:
				return v.fail(c.dataErr(EVALID, p, "Invalid instance-identifier \"%s\" value - required instance not found.",
					t.Value.Canonical))
			}
		}
		return true
	case *DInner:
		for q := t.Child; q != Null; q = c.dnodes.at(q).Next {
			if !v.node(q) {
				return false
			}
		}
		return v.siblings(t.Child, c.SchemaChild(d.Schema))
	}
	return true
}

// siblings checks the constraints that span the data siblings starting at
// first against the schema siblings starting at schemaFirst.
func (v *validator) siblings(first, schemaFirst Ptr) bool {
	c := v.c
	for s := schemaFirst; s != Null; s = c.SchemaNext(s) {
		n := c.snodes.at(s)
		if v.opts&ValidateNoState != 0 && n.Flags&FlagConfigR != 0 {
			continue
		}
		switch n.NodeType {
		case NodeChoice:
			var active []Ptr
			for cs := c.SchemaChild(s); cs != Null; cs = c.SchemaNext(cs) {
				if c.hasSchemaData(first, cs) {
					active = append(active, cs)
				}
			}
			if len(active) > 1 {
				if !v.fail(c.schemaErr(EVALID, VEData, s, "Data for both cases \"%s\" and \"%s\" exist.",
					c.snodes.at(active[0]).Name, c.snodes.at(active[1]).Name)) {
					return false
				}
			}
			if len(active) == 0 && n.Flags&FlagMandTrue != 0 {
				if !v.fail(c.schemaErr(EVALID, VEData, s, "Mandatory choice \"%s\" data do not exist.", n.Name)) {
					return false
				}
			}
			for _, cs := range active {
				if !v.siblings(first, c.SchemaChild(cs)) {
					return false
				}
			}
			continue
		case NodeCase:
			if !v.siblings(first, c.SchemaChild(s)) {
				return false
			}
			continue
		}
		insts := c.schemaInstances(first, s)
		if n.NodeType&(NodeLeaf|NodeAny) != 0 && n.Flags&FlagMandTrue != 0 && len(insts) == 0 && n.When == "" {
			if !v.fail(c.schemaErr(EVALID, VEData, s, "Mandatory node \"%s\" instance does not exist.", n.Name)) {
				return false
			}
		}
		var minE, maxE uint32
		switch n.NodeType {
		case NodeList:
			minE, maxE = n.List().Min, n.List().Max
			if !v.listInstances(s, insts) {
				return false
			}
		case NodeLeafList:
			minE, maxE = n.LeafList().Min, n.LeafList().Max
			if n.Flags&FlagConfigW != 0 && !v.duplicates(insts) {
				return false
			}
		default:
			continue
		}
		if uint32(len(insts)) < minE && n.When == "" {
			if !v.fail(c.schemaErr(EVALID, VEData, s, "Too few \"%s\" instances.", n.Name)) {
				return false
			}
		}
		if maxE > 0 && uint32(len(insts)) > maxE {
			if !v.fail(c.dataErr(EVALID, insts[maxE], "Too many \"%s\" instances.", n.Name)) {
				return false
			}
		}
	}
	return true
}

func (v *validator) duplicates(insts []Ptr) bool {
	c := v.c
	seen := map[string]bool{}
	for _, q := range insts {
		val := c.dnodes.at(q).Term().Value.Canonical
		if seen[val] {
			if !v.fail(c.dataErr(EVALID, q, "Duplicate instance of \"%s\".", c.nodeName(q))) {
				return false
			}
			continue
		}
		seen[val] = true
	}
	return true
}

func (v *validator) listInstances(s Ptr, insts []Ptr) bool {
	c := v.c
	l := c.snodes.at(s).List()
	if len(l.Keys) > 0 {
		seen := map[string]bool{}
		for _, q := range insts {
			keys := c.ListKeys(q)
			if len(keys) != len(l.Keys) {
				if !v.fail(c.dataErr(EVALID, q, "List instance is missing its key \"%s\".", c.snodes.at(l.Keys[len(keys)]).Name)) {
					return false
				}
				continue
			}
			id := strings.Join(keys, "\x00")
			if seen[id] {
				if !v.fail(c.dataErr(EVALID, q, "Duplicate instance of \"%s\".", c.snodes.at(s).Name)) {
					return false
				}
				continue
			}
			seen[id] = true
		}
	}
	for _, u := range l.Uniques {
		seen := map[string]Ptr{}
		for _, q := range insts {
			var vals []string
			complete := true
			for _, leaf := range u {
				val, ok := c.descendantValue(q, leaf)
				if !ok {
					complete = false
					break
				}
				vals = append(vals, val)
			}
			if !complete {
				continue
			}
			id := strings.Join(vals, "\x00")
			if prev, ok := seen[id]; ok {
				var names []string
				for _, leaf := range u {
					names = append(names, c.snodes.at(leaf).Name)
				}
				if !v.fail(c.dataErr(EVALID, q, "Unique data leaf(s) \"%s\" not satisfied in \"%s\" and \"%s\".",
					strings.Join(names, " "), c.Path(prev), c.Path(q))) {
					return false
				}
				continue
			}
			seen[id] = q
		}
	}
	return true
}

// descendantValue returns the value of the instance of leaf beneath the data
// node p.
func (c *Ctx) descendantValue(p, leaf Ptr) (string, bool) {
	top := c.dnodes.at(p).Schema
	var chain []Ptr
	for q := leaf; q != Null && q != top; q = c.DataParent(q) {
		chain = append(chain, q)
	}
	cur := p
	for i := len(chain) - 1; i >= 0; i-- {
		insts := c.schemaInstances(c.Child(cur), chain[i])
		if len(insts) == 0 {
			return "", false
		}
		cur = insts[0]
	}
	if c.snodes.at(c.dnodes.at(cur).Schema).NodeType&NodeTerm == 0 {
		return "", false
	}
	return c.dnodes.at(cur).Term().Value.Canonical, true
}

// instanceExists reports whether the instance a leafref or
// instance-identifier value refers to exists in the tree whose first
// top-level sibling is root. self is the node holding the value, if any.
func (c *Ctx) instanceExists(typ *Type, v Value, root, self Ptr) bool {
	switch typ.Base {
	case TypeUnion:
		if v.Sub == nil {
			return true
		}
		return c.instanceExists(c.types.at(v.Sub.Type), *v.Sub, root, self)
	case TypeLeafref:
		if !typ.RequireInstance {
			return true
		}
		if typ.Target == Null {
			return false
		}
		found := false
		for q := c.FirstSibling(root); q != Null && !found; q = c.dnodes.at(q).Next {
			c.walkData(q, func(n Ptr) {
				if found || n == self {
					return
				}
				if d := c.dnodes.at(n); d.Schema == typ.Target && d.Term().Value.Canonical == v.Canonical {
					found = true
				}
			})
		}
		return found
	case TypeInst:
		if !typ.RequireInstance {
			return true
		}
		e, err := parseXPath(v.Canonical)
		if err != nil {
			return false
		}
		return len(c.evalData(e, c.FirstSibling(root), self)) > 0
	}
	return true
}

// settle clears the new flag of validated nodes and marks non-presence
// containers with only default content as default.
func (c *Ctx) settle(p Ptr) bool {
	d := c.dnodes.at(p)
	d.Flags &^= DFlagNew
	allDefault := true
	for q := c.Child(p); q != Null; q = c.dnodes.at(q).Next {
		if !c.settle(q) {
			allDefault = false
		}
	}
	if d.Schema != Null {
		s := c.snodes.at(d.Schema)
		if s.NodeType == NodeContainer && s.Container().Presence == "" && allDefault {
			d.Flags |= DFlagDefault
		}
	}
	return d.Flags&DFlagDefault != 0
}

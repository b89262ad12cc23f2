package ly

// MergeOptions control MergeTree and MergeSiblings.
type MergeOptions uint8

// Merge options.
const (
	MergeDestruct  MergeOptions = 1 << iota // source is spent: moved nodes are taken over, the rest is freed
	MergeDefaults                           // default source nodes overwrite explicit target nodes
	MergeWithFlags                          // copy node flags from the source
)

// CompareOptions control CompareSingle.
type CompareOptions uint8

// Compare options.
const (
	CompareFullRecursion CompareOptions = 1 << iota
	CompareDefaults                     // the default flag must match too
)

// sameInstance reports whether a and b are the same instance of the same
// schema node: equal keys for lists, equal values for leaf-lists, equal names
// for opaque nodes. Keyless list instances never match.
func (c *Ctx) sameInstance(a, b Ptr) bool {
	da, db := c.dnodes.at(a), c.dnodes.at(b)
	if da.Schema != db.Schema {
		return false
	}
	if da.Schema == Null {
		oa, ob := da.Opaq(), db.Opaq()
		return oa.Name == ob.Name && oa.ModuleName == ob.ModuleName
	}
	s := c.snodes.at(da.Schema)
	switch s.NodeType {
	case NodeList:
		if len(s.List().Keys) == 0 {
			return false
		}
		ka, kb := c.ListKeys(a), c.ListKeys(b)
		if len(ka) != len(kb) {
			return false
		}
		for i := range ka {
			if ka[i] != kb[i] {
				return false
			}
		}
		return true
	case NodeLeafList:
		return da.Term().Value.Canonical == db.Term().Value.Canonical
	}
	return true
}

// findInstance searches the sibling chain starting at first for the
// instance matching node.
func (c *Ctx) findInstance(first, node Ptr) Ptr {
	for q := first; q != Null; q = c.dnodes.at(q).Next {
		if c.sameInstance(q, node) {
			return q
		}
	}
	return Null
}

// MergeTree merges source, without its siblings, into the siblings of
// *target. *target is updated when the merge changes the first sibling.
func (c *Ctx) MergeTree(target *Ptr, source Ptr, opts MergeOptions) Status {
	c.live()
	if st := c.mergeCheck(*target, source); st != Success {
		return st
	}
	if *target != Null {
		*target = c.FirstSibling(*target)
	}
	if opts&MergeDestruct != 0 {
		c.UnlinkTree(source)
	}
	c.mergeInto(target, Null, source, opts)
	return Success
}

// MergeSiblings merges source and all its siblings into the siblings of
// *target.
func (c *Ctx) MergeSiblings(target *Ptr, source Ptr, opts MergeOptions) Status {
	c.live()
	if st := c.mergeCheck(*target, source); st != Success {
		return st
	}
	if *target != Null {
		*target = c.FirstSibling(*target)
	}
	for q := c.FirstSibling(source); q != Null; {
		next := c.dnodes.at(q).Next
		if opts&MergeDestruct != 0 {
			c.UnlinkTree(q)
		}
		c.mergeInto(target, Null, q, opts)
		q = next
	}
	return Success
}

func (c *Ctx) mergeCheck(target, source Ptr) Status {
	if source == Null {
		return c.errf(EINVAL, VESuccess, "Invalid argument source (merge).")
	}
	if target == Null {
		return Success
	}
	if c.SameTree(target, source) {
		return c.errf(EINVAL, VESuccess, "Source node \"%s\" is in the target tree (merge).", c.nodeName(source))
	}
	ts, ss := c.dnodes.at(target).Schema, c.dnodes.at(source).Schema
	if ts != Null && ss != Null && c.DataParent(ts) != c.DataParent(ss) {
		return c.errf(EINVAL, VESuccess, "Different parents of source node \"%s\" and target node \"%s\" (merge).",
			c.nodeName(source), c.nodeName(target))
	}
	return Success
}

// mergeInto merges src into the children of parent, or the siblings of
// *first when parent is Null. In destruct mode src is unlinked and ends up
// either linked into the target or freed.
func (c *Ctx) mergeInto(first *Ptr, parent, src Ptr, opts MergeOptions) {
	destruct := opts&MergeDestruct != 0
	sd := c.dnodes.at(src)
	if sd.Flags&DFlagDefault != 0 && opts&MergeDefaults == 0 {
		// an existing instance always wins over a default from the source
		chain := *first
		if parent != Null {
			chain = c.Child(parent)
		}
		if chain != Null && c.findInstance(chain, src) != Null {
			if destruct {
				c.FreeTree(src)
			}
			return
		}
	}
	chain := *first
	if parent != Null {
		chain = c.Child(parent)
	}
	var match Ptr
	if chain != Null {
		match = c.findInstance(chain, src)
	}
	if match == Null {
		node := src
		if !destruct {
			dopts := DupRecursive
			if opts&MergeWithFlags != 0 {
				dopts |= DupWithFlags
			}
			node = c.dupOne(src, dopts)
		}
		switch {
		case parent != Null:
			c.insertChildRaw(parent, node)
		case *first == Null:
			*first = node
		default:
			c.placeAmong(*first, node)
			*first = c.FirstSibling(*first)
		}
		return
	}
	md := c.dnodes.at(match)
	switch v := sd.u.(type) {
	case *DTerm:
		if sd.Flags&DFlagDefault == 0 || md.Flags&DFlagDefault != 0 || opts&MergeDefaults != 0 {
			t := md.Term()
			if !valueEqual(&t.Value, &v.Value) {
				t.Value = v.Value
			}
			c.mergeFlags(match, src, opts)
		}
	case *DAny:
		a := md.Any()
		if a.Tree != Null {
			c.freeChain(c.FirstSibling(a.Tree))
			a.Tree = Null
		}
		a.ValueType, a.Str = v.ValueType, v.Str
		if v.Tree != Null {
			if destruct {
				a.Tree, v.Tree = v.Tree, Null
			} else {
				a.Tree = c.dupChain(c.FirstSibling(v.Tree), DupRecursive)
			}
		}
		c.mergeFlags(match, src, opts)
	case *DOpaq:
		md.Opaq().Value = v.Value
		c.mergeChildren(match, src, opts)
	default:
		c.mergeChildren(match, src, opts)
		if sd.Flags&DFlagDefault == 0 {
			c.clearDefaultUp(match)
		}
	}
	if destruct {
		c.FreeTree(src)
	}
}

func (c *Ctx) mergeChildren(target, src Ptr, opts MergeOptions) {
	for ch := c.Child(src); ch != Null; {
		next := c.dnodes.at(ch).Next
		if c.isKey(ch) {
			ch = next
			continue
		}
		if opts&MergeDestruct != 0 {
			c.UnlinkTree(ch)
		}
		var unused Ptr
		c.mergeInto(&unused, target, ch, opts)
		ch = next
	}
}

func (c *Ctx) mergeFlags(target, src Ptr, opts MergeOptions) {
	sd, td := c.dnodes.at(src), c.dnodes.at(target)
	if opts&MergeWithFlags != 0 {
		td.Flags = sd.Flags
		return
	}
	if sd.Flags&DFlagDefault == 0 {
		c.clearDefaultUp(target)
	}
}

// CompareSingle compares a and b. Without CompareFullRecursion inner nodes
// are equal when they are the same instance. It returns Success when the
// nodes are equal and ENOT otherwise.
func (c *Ctx) CompareSingle(a, b Ptr, opts CompareOptions) Status {
	c.live()
	if c.equalNodes(a, b, opts) {
		return Success
	}
	return ENOT
}

// CompareSiblings compares the sibling lists of a and b.
func (c *Ctx) CompareSiblings(a, b Ptr, opts CompareOptions) Status {
	c.live()
	if a == Null || b == Null {
		if a == b {
			return Success
		}
		return ENOT
	}
	if c.equalChains(c.FirstSibling(a), c.FirstSibling(b), opts|CompareFullRecursion) {
		return Success
	}
	return ENOT
}

func (c *Ctx) equalNodes(a, b Ptr, opts CompareOptions) bool {
	da, db := c.dnodes.at(a), c.dnodes.at(b)
	if da.Schema != db.Schema {
		return false
	}
	if opts&CompareDefaults != 0 && da.Flags&DFlagDefault != db.Flags&DFlagDefault {
		return false
	}
	switch va := da.u.(type) {
	case *DTerm:
		return valueEqual(&va.Value, &db.Term().Value)
	case *DAny:
		vb := db.Any()
		if va.ValueType != vb.ValueType || va.Str != vb.Str {
			return false
		}
		if (va.Tree == Null) != (vb.Tree == Null) {
			return false
		}
		if va.Tree != Null {
			return c.equalChains(c.FirstSibling(va.Tree), c.FirstSibling(vb.Tree), opts|CompareFullRecursion)
		}
		return true
	case *DOpaq:
		ob := db.Opaq()
		if va.Name != ob.Name || va.ModuleName != ob.ModuleName || va.Value != ob.Value {
			return false
		}
		return c.equalChains(va.Child, ob.Child, opts|CompareFullRecursion)
	}
	if !c.sameInstance(a, b) && c.snodes.at(da.Schema).NodeType == NodeList && len(c.snodes.at(da.Schema).List().Keys) > 0 {
		return false
	}
	if opts&CompareFullRecursion == 0 {
		return true
	}
	return c.equalChains(c.Child(a), c.Child(b), opts)
}

// equalChains compares two sibling chains as unordered sets of instances,
// user-ordered instances in order.
func (c *Ctx) equalChains(a, b Ptr, opts CompareOptions) bool {
	count := func(first Ptr) int {
		n := 0
		for q := first; q != Null; q = c.dnodes.at(q).Next {
			if opts&CompareDefaults == 0 && c.dnodes.at(q).Flags&DFlagDefault != 0 {
				continue
			}
			n++
		}
		return n
	}
	if count(a) != count(b) {
		return false
	}
	used := map[Ptr]bool{}
	for q := a; q != Null; q = c.dnodes.at(q).Next {
		if opts&CompareDefaults == 0 && c.dnodes.at(q).Flags&DFlagDefault != 0 {
			continue
		}
		found := false
		for r := b; r != Null; r = c.dnodes.at(r).Next {
			if used[r] || c.dnodes.at(r).Schema != c.dnodes.at(q).Schema {
				continue
			}
			if (c.sameInstance(q, r) || c.keylessList(q)) && c.equalNodes(q, r, opts) {
				used[r] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c *Ctx) keylessList(p Ptr) bool {
	s := c.dnodes.at(p).Schema
	if s == Null {
		return false
	}
	n := c.snodes.at(s)
	return n.NodeType == NodeList && len(n.List().Keys) == 0
}

// Diff operations stored in the yang:operation metadata of a diff tree.
const (
	DiffCreate  = "create"
	DiffDelete  = "delete"
	DiffReplace = "replace"
	DiffNone    = "none"
)

// DiffSiblings computes the difference between two data trees as a new
// tree whose nodes carry yang:operation metadata, and for replaced values
// yang:orig-value. Either tree may be Null. A Null result means no change.
func (c *Ctx) DiffSiblings(first, second Ptr) (Ptr, Status) {
	c.live()
	var a, b Ptr
	if first != Null {
		a = c.FirstSibling(first)
	}
	if second != Null {
		b = c.FirstSibling(second)
	}
	var out Ptr
	c.diffChains(a, b, Null, &out)
	return out, Success
}

func (c *Ctx) diffAttach(parent Ptr, out *Ptr, node Ptr) {
	switch {
	case parent != Null:
		c.insertChildRaw(parent, node)
	case *out == Null:
		*out = node
	default:
		c.linkAfter(c.dnodes.at(*out).Prev, node)
	}
}

func (c *Ctx) diffMark(node Ptr, op string) {
	c.NewMeta(node, "yang", "operation", op)
}

func (c *Ctx) diffChains(a, b, parent Ptr, out *Ptr) bool {
	changed := false
	matched := map[Ptr]bool{}
	for q := a; q != Null; q = c.dnodes.at(q).Next {
		if c.dnodes.at(q).Flags&DFlagDefault != 0 {
			continue
		}
		var r Ptr
		if b != Null {
			r = c.findInstance(b, q)
		}
		if r == Null || c.dnodes.at(r).Flags&DFlagDefault != 0 {
			d := c.dupOne(q, DupRecursive|DupNoMeta)
			c.diffMark(d, DiffDelete)
			c.diffAttach(parent, out, d)
			changed = true
			continue
		}
		matched[r] = true
		if c.diffPair(q, r, parent, out) {
			changed = true
		}
	}
	for r := b; r != Null; r = c.dnodes.at(r).Next {
		if matched[r] || c.dnodes.at(r).Flags&DFlagDefault != 0 {
			continue
		}
		d := c.dupOne(r, DupRecursive|DupNoMeta)
		c.diffMark(d, DiffCreate)
		c.diffAttach(parent, out, d)
		changed = true
	}
	return changed
}

// diffPair diffs two instances of the same node.
func (c *Ctx) diffPair(a, b, parent Ptr, out *Ptr) bool {
	da, db := c.dnodes.at(a), c.dnodes.at(b)
	switch va := da.u.(type) {
	case *DTerm:
		if c.isKey(a) || valueEqual(&va.Value, &db.Term().Value) {
			return false
		}
		d := c.dupOne(b, DupNoMeta)
		c.diffMark(d, DiffReplace)
		c.NewMeta(d, "yang", "orig-value", va.Value.Canonical)
		c.diffAttach(parent, out, d)
		return true
	case *DAny:
		if c.equalNodes(a, b, CompareFullRecursion) {
			return false
		}
		d := c.dupOne(b, DupRecursive|DupNoMeta)
		c.diffMark(d, DiffReplace)
		c.diffAttach(parent, out, d)
		return true
	case *DOpaq:
		if c.equalNodes(a, b, CompareFullRecursion) {
			return false
		}
		d := c.dupOne(b, DupRecursive|DupNoMeta)
		c.diffMark(d, DiffReplace)
		c.diffAttach(parent, out, d)
		return true
	}
	shell := c.dupOne(a, DupNoMeta)
	var unused Ptr
	if !c.diffChains(c.Child(a), c.Child(b), shell, &unused) {
		c.FreeTree(shell)
		return false
	}
	c.diffMark(shell, DiffNone)
	c.diffAttach(parent, out, shell)
	return true
}

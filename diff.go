package yangbind

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ChangeKind says how a schema node or one of its attributes changed.
type ChangeKind uint8

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeModified
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeModified:
		return "modified"
	default:
		return "unknown"
	}
}

// SchemaChange is one difference between two schemas. An empty Attribute
// means the whole node was added or removed; Old then holds the status of a
// removed node. Otherwise Old and New hold the attribute values. For
// set-like attributes (must, enum, pattern and so on) only the side that has
// the value is set.
type SchemaChange struct {
	Path      string
	Kind      ChangeKind
	Attribute string
	Old       string
	New       string
}

func (c SchemaChange) String() string {
	switch {
	case c.Attribute == "" && c.Kind == ChangeRemoved:
		return fmt.Sprintf("-%s: removed status=%s node", c.Path, c.Old)
	case c.Attribute == "":
		return fmt.Sprintf("+%s: added node", c.Path)
	case c.Kind == ChangeModified:
		return fmt.Sprintf("*%s: %s %q -> %q", c.Path, c.Attribute, c.Old, c.New)
	case c.Kind == ChangeRemoved:
		return fmt.Sprintf("-%s: %s %q", c.Path, c.Attribute, c.Old)
	default:
		return fmt.Sprintf("+%s: %s %q", c.Path, c.Attribute, c.New)
	}
}

// SchemaDiff compares every schema node of two contexts by schema path and
// returns the differences sorted by path. exclude, when not nil, drops a
// node and its subtree from the comparison.
func SchemaDiff(oldCtx, newCtx *Context, exclude func(SchemaNode) bool) ([]SchemaChange, error) {
	oldNodes, err := flattenSchema(oldCtx, exclude)
	if err != nil {
		return nil, err
	}
	newNodes, err := flattenSchema(newCtx, exclude)
	if err != nil {
		return nil, err
	}

	var changes []SchemaChange
	for path, o := range oldNodes {
		n, ok := newNodes[path]
		if !ok {
			changes = append(changes, SchemaChange{Path: path, Kind: ChangeRemoved, Old: o.Status().String()})
			continue
		}
		cs, err := nodeChanges(path, o, n)
		if err != nil {
			return nil, err
		}
		changes = append(changes, cs...)
	}
	for path := range newNodes {
		if _, ok := oldNodes[path]; !ok {
			changes = append(changes, SchemaChange{Path: path, Kind: ChangeAdded})
		}
	}
	// Node changes of one path are produced in a fixed order; keep it.
	slices.SortStableFunc(changes, func(a, b SchemaChange) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return changes, nil
}

func flattenSchema(c *Context, exclude func(SchemaNode) bool) (map[string]SchemaNode, error) {
	out := make(map[string]SchemaNode)
	for m, err := range c.Modules() {
		if err != nil {
			return nil, err
		}
		err := m.Walk(func(n SchemaNode) bool {
			if exclude != nil && exclude(n) {
				return false
			}
			out[n.Path()] = n
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type changeSet struct {
	path string
	out  []SchemaChange
}

func (s *changeSet) modified(attr, was, now string) {
	if was != now {
		s.out = append(s.out, SchemaChange{Path: s.path, Kind: ChangeModified, Attribute: attr, Old: was, New: now})
	}
}

// sets records the values only one side has, removals first.
func (s *changeSet) sets(attr string, was, now []string) {
	for _, v := range setMinus(was, now) {
		s.out = append(s.out, SchemaChange{Path: s.path, Kind: ChangeRemoved, Attribute: attr, Old: v})
	}
	for _, v := range setMinus(now, was) {
		s.out = append(s.out, SchemaChange{Path: s.path, Kind: ChangeAdded, Attribute: attr, New: v})
	}
}

func setMinus(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, v := range b {
		in[v] = true
	}
	var out []string
	for _, v := range a {
		if !in[v] {
			out = append(out, v)
			in[v] = true
		}
	}
	slices.Sort(out)
	return out
}

func nodeChanges(path string, o, n SchemaNode) ([]SchemaChange, error) {
	s := &changeSet{path: path}
	s.modified("node-type", o.Kind().String(), n.Kind().String())
	s.modified("description", o.Description(), n.Description())
	s.modified("mandatory", strconv.FormatBool(o.Mandatory()), strconv.FormatBool(n.Mandatory()))
	s.modified("status", o.Status().String(), n.Status().String())
	if o.Kind().IsData() && n.Kind().IsData() {
		s.modified("config", strconv.FormatBool(o.Config()), strconv.FormatBool(n.Config()))
	}
	s.sets("must", mustConditions(o), mustConditions(n))

	oe, ne := extensionArgs(o), extensionArgs(n)
	var oldExt, newExt []string
	for k := range oe {
		oldExt = append(oldExt, k)
	}
	for k := range ne {
		newExt = append(newExt, k)
	}
	s.sets("extension", oldExt, newExt)
	keys := make([]string, 0, len(oe))
	for k := range oe {
		if _, ok := ne[k]; ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.modified("extension "+k, oe[k], ne[k])
	}

	switch ov := o.(type) {
	case *Leaf:
		nv, ok := n.(*Leaf)
		if !ok {
			break
		}
		if err := typeChanges(s, ov.Type, nv.Type); err != nil {
			return nil, err
		}
		s.modified("units", ov.Units(), nv.Units())
		od, _ := ov.Default()
		nd, _ := nv.Default()
		s.modified("default", od.Canonical, nd.Canonical)
	case *LeafList:
		nv, ok := n.(*LeafList)
		if !ok {
			break
		}
		if err := typeChanges(s, ov.Type, nv.Type); err != nil {
			return nil, err
		}
		s.modified("units", ov.Units(), nv.Units())
		s.modified("defaults", joinValues(ov.Defaults()), joinValues(nv.Defaults()))
		s.modified("ordered", strconv.FormatBool(ov.UserOrdered()), strconv.FormatBool(nv.UserOrdered()))
	case *Container:
		if nv, ok := n.(*Container); ok {
			s.modified("presence", ov.Presence(), nv.Presence())
		}
	case *List:
		nv, ok := n.(*List)
		if !ok {
			break
		}
		oldKeys, err := ov.KeyNames()
		if err != nil {
			return nil, err
		}
		newKeys, err := nv.KeyNames()
		if err != nil {
			return nil, err
		}
		slices.Sort(oldKeys)
		slices.Sort(newKeys)
		s.modified("key", strings.Join(oldKeys, " "), strings.Join(newKeys, " "))
		s.modified("ordered", strconv.FormatBool(ov.UserOrdered()), strconv.FormatBool(nv.UserOrdered()))
	}
	return s.out, nil
}

func mustConditions(n SchemaNode) []string {
	var out []string
	for _, m := range n.Musts() {
		out = append(out, m.Condition)
	}
	return out
}

func extensionArgs(n SchemaNode) map[string]string {
	out := make(map[string]string)
	for _, e := range n.Extensions() {
		out[e.Module+":"+e.Name] = e.Argument
	}
	return out
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Canonical
	}
	return strings.Join(parts, ", ")
}

// typeFacets flattens a type and its union members. Multiple patterns of
// one type are ANDed while union members are ORed; the flattened sets do
// not keep that distinction.
type typeFacets struct {
	bases, lengths, patterns, ranges, enums, bits []string
}

func (f *typeFacets) add(t *Type) {
	if t == nil {
		return
	}
	if t.Base == TypeUnion {
		for _, m := range t.Union {
			f.add(m)
		}
		return
	}
	f.bases = append(f.bases, t.Base.String())
	if t.Length != "" {
		f.lengths = append(f.lengths, t.Length)
	}
	if t.Range != "" {
		f.ranges = append(f.ranges, t.Range)
	}
	for _, p := range t.Patterns {
		if p.Inverted {
			f.patterns = append(f.patterns, p.Expr+" invert-match")
		} else {
			f.patterns = append(f.patterns, p.Expr)
		}
	}
	for _, e := range t.Enums {
		f.enums = append(f.enums, e.Name)
	}
	for _, b := range t.Bits {
		f.bits = append(f.bits, b.Name)
	}
}

func typeChanges(s *changeSet, oldType, newType func() (*Type, error)) error {
	ot, err := oldType()
	if err != nil {
		return err
	}
	nt, err := newType()
	if err != nil {
		return err
	}
	var of, nf typeFacets
	of.add(ot)
	nf.add(nt)
	s.sets("base-type", of.bases, nf.bases)
	s.sets("length", of.lengths, nf.lengths)
	s.sets("pattern", of.patterns, nf.patterns)
	s.sets("range", of.ranges, nf.ranges)
	s.sets("enum", of.enums, nf.enums)
	s.sets("bit", of.bits, nf.bits)
	return nil
}

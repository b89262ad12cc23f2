package yangbind

import (
	"iter"

	"github.com/lukeod/yangbind/internal/ly"
)

// Revision is a revision statement.
type Revision struct {
	Date        string
	Description string
	Reference   string
}

// Import is an import statement.
type Import struct {
	Name     string
	Prefix   string
	Revision string // revision-date, if any
}

// Feature is a feature definition with its current state.
type Feature struct {
	Name        string
	Description string
	IfFeatures  []string
	Enabled     bool
}

// Identity is an identity definition. Bases and Derived are qualified as
// module:name.
type Identity struct {
	Name        string
	Description string
	Bases       []string
	Derived     []string
}

// Typedef is a top-level typedef.
type Typedef struct {
	Name        string
	Description string
	Units       string
	Default     string
	Type        *Type
}

// Grouping is a top-level grouping. Groupings are resolved into the schema
// tree at compile time, so they are described by their source statements.
type Grouping struct {
	Name        string
	Description string
	Nodes       []string // "keyword name" of each definition
	Uses        []string // groupings used directly
}

// Extension is an extension instance.
type Extension struct {
	Name     string
	Prefix   string
	Module   string
	Argument string
}

// Module is a loaded module. The exported fields are a snapshot taken when
// the module was first seen; modules never change after compilation except
// for their implemented state and features, which are read live.
type Module struct {
	ctx *Context
	ptr ly.Ptr

	Name         string
	Revision     string
	Namespace    string
	Prefix       string
	Description  string
	Reference    string
	Organization string
	Contact      string
	YangVersion  string
	Filepath     string
	Revisions    []Revision
	Imports      []Import
	Includes     []string
	Identities   []Identity
	Typedefs     []Typedef
	Groupings    []Grouping
	Extensions   []Extension
}

func (c *Context) wrapModule(p ly.Ptr) *Module {
	return lookup(c.cache, cacheKey{kind: handleModule, ptr: p}, func() *Module {
		return c.newModule(p)
	})
}

func (c *Context) newModule(p ly.Ptr) *Module {
	nm := c.native.Module(p)
	m := &Module{
		ctx:          c,
		ptr:          p,
		Name:         nm.Name,
		Revision:     nm.Revision,
		Namespace:    nm.Namespace,
		Prefix:       nm.Prefix,
		Description:  nm.Dsc,
		Reference:    nm.Ref,
		Organization: nm.Org,
		Contact:      nm.Contact,
		YangVersion:  nm.YangVersion,
		Filepath:     nm.Filepath,
		Includes:     append([]string(nil), nm.Includes...),
	}
	for _, r := range nm.Revisions {
		m.Revisions = append(m.Revisions, Revision(r))
	}
	for _, i := range nm.Imports {
		m.Imports = append(m.Imports, Import(i))
	}
	for _, id := range nm.Identities {
		m.Identities = append(m.Identities, Identity{
			Name:        id.Name,
			Description: id.Description,
			Bases:       append([]string(nil), id.Bases...),
			Derived:     append([]string(nil), id.Derived...),
		})
	}
	for _, td := range nm.Typedefs {
		m.Typedefs = append(m.Typedefs, Typedef{
			Name:        td.Name,
			Description: td.Description,
			Units:       td.Units,
			Default:     td.Default,
			Type:        c.convertType(td.Type),
		})
	}
	m.Extensions = convertExts(nm.Exts)
	for _, g := range nm.Groupings {
		m.Groupings = append(m.Groupings, Grouping(g))
	}
	return m
}

func convertExts(exts []ly.Extension) []Extension {
	var out []Extension
	for _, e := range exts {
		out = append(out, Extension(e))
	}
	return out
}

// Context returns the owning context.
func (m *Module) Context() *Context {
	return m.ctx
}

// String returns name@revision, or the name alone.
func (m *Module) String() string {
	if m.Revision == "" {
		return m.Name
	}
	return m.Name + "@" + m.Revision
}

// Implemented reports whether the module can be used for data. Imported
// modules are only usable for their types and groupings.
func (m *Module) Implemented() (bool, error) {
	if err := m.ctx.alive("implemented"); err != nil {
		return false, err
	}
	return m.ctx.native.Module(m.ptr).Implemented, nil
}

// Features returns the features of the module with their current state.
func (m *Module) Features() ([]Feature, error) {
	if err := m.ctx.alive("features"); err != nil {
		return nil, err
	}
	var out []Feature
	for _, f := range m.ctx.native.Module(m.ptr).Features {
		out = append(out, Feature{
			Name:        f.Name,
			Description: f.Description,
			IfFeatures:  append([]string(nil), f.IfFeatures...),
			Enabled:     f.Enabled,
		})
	}
	return out, nil
}

// FeatureEnabled reports whether a feature is enabled.
func (m *Module) FeatureEnabled(name string) (bool, error) {
	if err := m.ctx.alive("feature enabled"); err != nil {
		return false, err
	}
	switch m.ctx.native.FeatureValue(m.ptr, name) {
	case ly.Success:
		return true, nil
	case ly.ENOT:
		return false, nil
	}
	return false, &Error{Kind: KindNotFound, Op: "feature enabled", Code: CodeNotFound, Items: []ErrorItem{{
		Level:   LevelError,
		Code:    CodeNotFound,
		Message: "Feature \"" + name + "\" not found in module \"" + m.Name + "\".",
	}}}
}

// SetFeature enables or disables a feature; "*" selects all of them. Nodes
// guarded by the feature appear or disappear immediately.
func (m *Module) SetFeature(name string, enable bool) error {
	if err := m.ctx.alive("set feature"); err != nil {
		return err
	}
	return m.ctx.call("set feature", KindNotFound, func() ly.Status {
		return m.ctx.native.SetFeature(m.ptr, name, enable)
	})
}

// Children iterates over the top-level data definitions.
func (m *Module) Children() iter.Seq2[SchemaNode, error] {
	return m.ctx.schemaSeq("children", func() ly.Ptr { return m.ctx.native.ModuleData(m.ptr) })
}

// RPCs iterates over the rpcs.
func (m *Module) RPCs() iter.Seq2[SchemaNode, error] {
	return m.ctx.schemaSeq("rpcs", func() ly.Ptr { return m.ctx.native.ModuleRPCs(m.ptr) })
}

// Notifications iterates over the top-level notifications.
func (m *Module) Notifications() iter.Seq2[SchemaNode, error] {
	return m.ctx.schemaSeq("notifications", func() ly.Ptr { return m.ctx.native.ModuleNotifs(m.ptr) })
}

// Walk visits every schema node of the module depth-first: data
// definitions, then rpcs, then notifications. Returning false from fn skips
// the children of that node.
func (m *Module) Walk(fn func(SchemaNode) bool) error {
	for _, seq := range []iter.Seq2[SchemaNode, error]{m.Children(), m.RPCs(), m.Notifications()} {
		for n, err := range seq {
			if err != nil {
				return err
			}
			if err := Walk(n, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Print prints the module as YANG, YIN or a tree diagram.
func (m *Module) Print(format SchemaOutFormat) ([]byte, error) {
	if err := m.ctx.alive("print module"); err != nil {
		return nil, err
	}
	var out []byte
	err := m.ctx.call("print module", KindPrint, func() ly.Status {
		var st ly.Status
		out, st = m.ctx.native.PrintModule(m.ptr, ly.SchemaOutFormat(format))
		return st
	})
	return out, err
}

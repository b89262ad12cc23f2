package ly

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/openconfig/goyang/pkg/yang"
)

// goyang keeps package-level caches keyed by parse node, so every use of it
// is serialized across contexts.
var compileMu sync.Mutex

// moduleSource is the recorded source text of a loaded module or submodule.
// Every load rebuilds the goyang module set from these records.
type moduleSource struct {
	name        string
	revision    string
	submodule   bool
	belongsTo   string
	data        []byte
	format      SchemaFormat
	path        string
	imports     []moduleRef
	includes    []moduleRef
	features    []string
	implemented bool
	stmt        *yang.Statement
}

type moduleRef struct {
	name     string
	revision string
}

func subArg(st *yang.Statement, kw string) (string, bool) {
	if st == nil {
		return "", false
	}
	for _, ss := range st.SubStatements() {
		if ss.Keyword == kw {
			return ss.Argument, true
		}
	}
	return "", false
}

func subArgs(st *yang.Statement, kw string) []string {
	if st == nil {
		return nil
	}
	var out []string
	for _, ss := range st.SubStatements() {
		if ss.Keyword == kw {
			out = append(out, ss.Argument)
		}
	}
	return out
}

// scanSource parses the header of a module source.
func scanSource(data []byte, format SchemaFormat, path string) (*moduleSource, error) {
	text := data
	if format == SchemaYIN {
		conv, err := yinToYang(data)
		if err != nil {
			return nil, err
		}
		text = conv
	}
	stmts, err := yang.Parse(string(text), path)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, &valueErr{st: EVALID, msg: "Source \"" + path + "\" must contain exactly one module or submodule."}
	}
	st := stmts[0]
	src := &moduleSource{name: st.Argument, data: text, format: format, path: path, stmt: st}
	switch st.Keyword {
	case "module":
	case "submodule":
		src.submodule = true
		src.belongsTo, _ = subArg(st, "belongs-to")
	default:
		return nil, &valueErr{st: EVALID, msg: "Invalid keyword \"" + st.Keyword + "\", expected \"module\" or \"submodule\"."}
	}
	for _, ss := range st.SubStatements() {
		switch ss.Keyword {
		case "revision":
			if ss.Argument > src.revision {
				src.revision = ss.Argument
			}
		case "import":
			rev, _ := subArg(ss, "revision-date")
			src.imports = append(src.imports, moduleRef{name: ss.Argument, revision: rev})
		case "include":
			rev, _ := subArg(ss, "revision-date")
			src.includes = append(src.includes, moduleRef{name: ss.Argument, revision: rev})
		}
	}
	if path == "" {
		src.path = src.name + ".yang"
	}
	return src, nil
}

// findSource locates a module or submodule through the import callback and
// the search directories.
func (c *Ctx) findSource(name, revision, submod, subRevision string) (*moduleSource, Status) {
	want, wantRev := name, revision
	if submod != "" {
		want, wantRev = submod, subRevision
	}
	fromCallback := func() *moduleSource {
		if c.importCb == nil {
			return nil
		}
		data, format, st := c.importCb(name, revision, submod, subRevision)
		if st != Success {
			return nil
		}
		src, err := scanSource(data, format, want+".yang")
		if err != nil {
			c.errf(EVALID, VESyntaxYang, "Parsing module \"%s\" supplied by the import callback failed (%s).", want, err)
			return nil
		}
		return src
	}
	fromDirs := func() *moduleSource {
		if c.opts&CtxDisableSearchDirs != 0 {
			return nil
		}
		return c.searchDirsFor(want, wantRev)
	}
	order := []func() *moduleSource{fromCallback, fromDirs}
	if c.opts&CtxPreferSearchDirs != 0 {
		order = []func() *moduleSource{fromDirs, fromCallback}
	}
	for _, f := range order {
		if src := f(); src != nil {
			if wantRev != "" && src.revision != wantRev {
				continue
			}
			return src, Success
		}
	}
	if submod != "" {
		c.errf(ENOTFOUND, VEReference, "Data model \"%s\" (submodule of \"%s\") not found in local searchdirs.", submod, name)
	} else if revision != "" {
		c.errf(ENOTFOUND, VEReference, "Data model \"%s@%s\" not found in local searchdirs.", name, revision)
	} else {
		c.errf(ENOTFOUND, VEReference, "Data model \"%s\" not found in local searchdirs.", name)
	}
	return nil, ENOTFOUND
}

type candidate struct {
	path   string
	rev    string
	format SchemaFormat
}

// searchDirsFor scans the search directories recursively and the working
// directory non-recursively for name.yang, name@rev.yang and their YIN
// variants, returning the requested or the latest revision.
func (c *Ctx) searchDirsFor(name, revision string) *moduleSource {
	var cands []candidate
	match := func(path, base string) {
		var format SchemaFormat
		var stem string
		switch {
		case strings.HasSuffix(base, ".yang"):
			format, stem = SchemaYANG, strings.TrimSuffix(base, ".yang")
		case strings.HasSuffix(base, ".yin"):
			format, stem = SchemaYIN, strings.TrimSuffix(base, ".yin")
		default:
			return
		}
		mod, rev, _ := strings.Cut(stem, "@")
		if mod == name {
			cands = append(cands, candidate{path: path, rev: rev, format: format})
		}
	}
	for _, dir := range c.searchDirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				match(path, d.Name())
			}
			return nil
		})
	}
	if c.opts&CtxDisableSearchDirCwd == 0 {
		if entries, err := os.ReadDir("."); err == nil {
			for _, e := range entries {
				if !e.IsDir() {
					match(e.Name(), e.Name())
				}
			}
		}
	}
	var best *moduleSource
	for _, cand := range cands {
		if revision != "" && cand.rev != "" && cand.rev != revision {
			continue
		}
		data, err := os.ReadFile(cand.path)
		if err != nil {
			c.warnf("Unable to read \"%s\" (%s).", cand.path, err)
			continue
		}
		src, err := scanSource(data, cand.format, cand.path)
		if err != nil {
			c.warnf("Unable to parse \"%s\" (%s).", cand.path, err)
			continue
		}
		if src.name != name {
			continue
		}
		if revision != "" {
			if src.revision == revision {
				return src
			}
			continue
		}
		if best == nil || src.revision > best.revision {
			best = src
		}
	}
	return best
}

func (c *Ctx) haveSource(name string, batch []*moduleSource) bool {
	for _, s := range c.sources {
		if s.name == name {
			return true
		}
	}
	for _, s := range batch {
		if s.name == name {
			return true
		}
	}
	return false
}

// LoadModule loads the named module from the search directories or the
// import callback and makes it implemented. A module that is already loaded
// is only made implemented and gets the requested features enabled.
func (c *Ctx) LoadModule(name, revision string, features []string) (Ptr, Status) {
	c.live()
	if p := c.GetModule(name, revision); p != Null {
		return p, c.implement(p, features)
	}
	if p := c.GetModuleImplemented(name); p != Null && revision != "" {
		return Null, c.errf(EDENIED, VEReference, "Module \"%s@%s\" is already implemented in revision \"%s\".",
			name, revision, c.mods.at(p).Revision)
	}
	src, st := c.findSource(name, revision, "", "")
	if st != Success {
		c.errf(st, VEReference, "Loading \"%s\" module failed.", name)
		return Null, st
	}
	src.implemented = true
	src.features = features
	return c.loadSource(src)
}

// ParseModule parses module source text and compiles it as implemented.
func (c *Ctx) ParseModule(data []byte, format SchemaFormat, features []string) (Ptr, Status) {
	c.live()
	if format == SchemaUnknown {
		format = SchemaYANG
		if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "<") {
			format = SchemaYIN
		}
	}
	src, err := scanSource(data, format, "")
	if err != nil {
		ve := VESyntaxYang
		if format == SchemaYIN {
			ve = VESyntaxYin
		}
		return Null, c.errf(EVALID, ve, "Parsing module failed (%s).", err)
	}
	if src.submodule {
		return Null, c.errf(EINVAL, VESyntaxYang, "Input data contains submodule \"%s\" which cannot be parsed directly without its main module.", src.name)
	}
	if p := c.GetModule(src.name, src.revision); p != Null && c.mods.at(p).Revision == src.revision {
		return p, c.implement(p, features)
	}
	if p := c.GetModuleLatest(src.name); p != Null {
		return Null, c.errf(EEXIST, VEReference, "Module \"%s\" is already present in the context in revision \"%s\".",
			src.name, c.mods.at(p).Revision)
	}
	src.implemented = true
	src.features = features
	return c.loadSource(src)
}

func (c *Ctx) implement(p Ptr, features []string) Status {
	m := c.mods.at(p)
	if !m.Implemented {
		m.Implemented = true
		for _, s := range c.sources {
			if s.name == m.Name {
				s.implemented = true
			}
		}
		c.debugf("Module \"%s\" is now implemented.", m.Name)
	}
	for _, f := range features {
		if st := c.SetFeature(p, f, true); st != Success {
			return st
		}
	}
	return Success
}

// loadSource resolves the dependencies of src, rebuilds the goyang module
// set and compiles every module of the batch that is not yet compiled.
func (c *Ctx) loadSource(src *moduleSource) (Ptr, Status) {
	compileMu.Lock()
	defer compileMu.Unlock()

	batch := []*moduleSource{src}
	for i := 0; i < len(batch); i++ {
		s := batch[i]
		parent := s.name
		if s.submodule {
			parent = s.belongsTo
		}
		for _, inc := range s.includes {
			if c.haveSource(inc.name, batch) {
				continue
			}
			sub, st := c.findSource(parent, "", inc.name, inc.revision)
			if st != Success {
				return Null, c.errf(EVALID, VEReference, "Including \"%s\" submodule into \"%s\" failed.", inc.name, s.name)
			}
			batch = append(batch, sub)
		}
		for _, imp := range s.imports {
			if c.haveSource(imp.name, batch) {
				continue
			}
			dep, st := c.findSource(imp.name, imp.revision, "", "")
			if st != Success {
				return Null, c.errf(EVALID, VEReference, "Importing \"%s\" module into \"%s\" failed.", imp.name, s.name)
			}
			dep.implemented = c.opts&CtxAllImplemented != 0
			batch = append(batch, dep)
		}
	}

	ms := yang.NewModules()
	for _, s := range append(slices.Clone(c.sources), batch...) {
		if err := ms.Parse(string(s.data), s.path); err != nil {
			return Null, c.errf(EVALID, VESyntaxYang, "Parsing module \"%s\" failed (%s).", s.name, err)
		}
	}
	if errs := ms.Process(); len(errs) > 0 {
		for _, err := range errs {
			c.errf(EVALID, VESemantics, "%s", err)
		}
		return Null, EVALID
	}

	order := importOrder(batch)
	var compiled []Ptr
	rollback := func() {
		for _, p := range compiled {
			c.freeModule(p)
		}
	}
	var pending []*compiler
	for _, s := range order {
		ym := ms.Modules[s.name]
		if ym == nil {
			rollback()
			return Null, c.errf(EINT, VESuccess, "Module \"%s\" missing after processing.", s.name)
		}
		cc := &compiler{c: c, src: s, ms: ms, ym: ym, batch: batch}
		p, st := cc.compile()
		if st != Success {
			rollback()
			return Null, st
		}
		compiled = append(compiled, p)
		pending = append(pending, cc)
	}
	for _, cc := range pending {
		if st := cc.finish(); st != Success {
			rollback()
			return Null, st
		}
	}
	c.linkIdentities()
	c.sources = append(c.sources, batch...)

	for _, p := range compiled {
		m := c.mods.at(p)
		c.log(LLVerb, Success, VESuccess, "", "", "Module \"%s\" successfully compiled as %s.", moduleID(m), implState(m.Implemented))
		if m.Name == src.name {
			return p, Success
		}
	}
	return Null, c.errf(EINT, VESuccess, "Module \"%s\" was not compiled.", src.name)
}

func moduleID(m *Module) string {
	if m.Revision == "" {
		return m.Name
	}
	return m.Name + "@" + m.Revision
}

func implState(implemented bool) string {
	if implemented {
		return "implemented"
	}
	return "imported"
}

// importOrder returns the modules of the batch so that every module follows
// the modules it imports.
func importOrder(batch []*moduleSource) []*moduleSource {
	byName := map[string]*moduleSource{}
	for _, s := range batch {
		if !s.submodule {
			byName[s.name] = s
		}
	}
	var out []*moduleSource
	seen := map[string]bool{}
	var visit func(s *moduleSource)
	visit = func(s *moduleSource) {
		if seen[s.name] {
			return
		}
		seen[s.name] = true
		for _, imp := range s.imports {
			if dep, ok := byName[imp.name]; ok {
				visit(dep)
			}
		}
		out = append(out, s)
	}
	for _, s := range batch {
		if !s.submodule {
			visit(s)
		}
	}
	return out
}

func (c *Ctx) freeModule(p Ptr) {
	m := c.mods.at(p)
	for _, first := range []Ptr{m.Data, m.RPCs, m.Notifs} {
		for q := first; q != Null; {
			next := c.snodes.at(q).Next
			c.freeSchema(q)
			q = next
		}
	}
	for _, td := range m.Typedefs {
		if td.Type != Null {
			c.freeType(td.Type)
		}
	}
	c.modules = slices.DeleteFunc(c.modules, func(q Ptr) bool { return q == p })
	c.mods.release(p)
}

func (c *Ctx) freeSchema(p Ptr) {
	n := c.snodes.at(p)
	var children []Ptr
	switch n.NodeType {
	case NodeContainer:
		v := n.Container()
		children = []Ptr{v.Child, v.Actions, v.Notifs}
	case NodeList:
		v := n.List()
		children = []Ptr{v.Child, v.Actions, v.Notifs}
	case NodeChoice:
		children = []Ptr{n.Choice().Cases}
	case NodeCase:
		children = []Ptr{n.Case().Child}
	case NodeRPC, NodeAction:
		children = []Ptr{n.Action().Input}
	case NodeInput, NodeOutput:
		children = []Ptr{n.InOut().Child}
	case NodeNotif:
		children = []Ptr{n.Notif().Child}
	case NodeLeaf:
		c.freeType(n.Leaf().Type)
	case NodeLeafList:
		c.freeType(n.LeafList().Type)
	}
	for _, first := range children {
		for q := first; q != Null; {
			next := c.snodes.at(q).Next
			c.freeSchema(q)
			q = next
		}
	}
	c.snodes.release(p)
}

func (c *Ctx) freeType(p Ptr) {
	for _, m := range c.types.at(p).Union {
		c.freeType(m)
	}
	c.types.release(p)
}

// linkIdentities recomputes the derived identity sets of all modules.
func (c *Ctx) linkIdentities() {
	for _, p := range c.modules {
		m := c.mods.at(p)
		for i := range m.Identities {
			m.Identities[i].Derived = nil
		}
	}
	for _, p := range c.modules {
		m := c.mods.at(p)
		for _, id := range m.Identities {
			for _, base := range id.Bases {
				bm, bn, _ := strings.Cut(base, ":")
				if q := c.GetModuleLatest(bm); q != Null {
					bmod := c.mods.at(q)
					for j := range bmod.Identities {
						if bmod.Identities[j].Name == bn {
							bmod.Identities[j].Derived = append(bmod.Identities[j].Derived, m.Name+":"+id.Name)
						}
					}
				}
			}
		}
	}
}

type pendingRef struct {
	node Ptr
	typ  Ptr
}

type pendingDflt struct {
	node  Ptr
	texts []string
}

type pendingUnique struct {
	list  Ptr
	specs []string
}

// compiler copies one goyang module into the arena.
type compiler struct {
	c       *Ctx
	src     *moduleSource
	ms      *yang.Modules
	ym      *yang.Module
	batch   []*moduleSource
	mod     Ptr
	refs    []pendingRef
	dflts   []pendingDflt
	uniques []pendingUnique
}

var groupingKeywords = map[string]bool{
	"container": true, "list": true, "leaf": true, "leaf-list": true,
	"choice": true, "anydata": true, "anyxml": true, "action": true,
	"notification": true, "grouping": true,
}

func groupingsOf(st *yang.Statement) []Grouping {
	var out []Grouping
	for _, ss := range st.SubStatements() {
		if ss.Keyword != "grouping" {
			continue
		}
		g := Grouping{Name: ss.Argument}
		for _, gs := range ss.SubStatements() {
			switch {
			case gs.Keyword == "description":
				g.Description = gs.Argument
			case gs.Keyword == "uses":
				g.Uses = append(g.Uses, gs.Argument)
			case groupingKeywords[gs.Keyword]:
				g.Nodes = append(g.Nodes, gs.Keyword+" "+gs.Argument)
			}
		}
		out = append(out, g)
	}
	return out
}

func (cc *compiler) compile() (Ptr, Status) {
	c := cc.c
	p, m := c.mods.alloc(c.nextSerial())
	cc.mod = p
	st := cc.src.stmt
	m.Name = cc.src.name
	m.Revision = cc.src.revision
	m.Implemented = cc.src.implemented
	m.Source = cc.src.data
	m.SourceFormat = cc.src.format
	m.stmt = st
	m.Groupings = groupingsOf(st)
	m.YangVersion = "1"
	if abs, err := filepath.Abs(cc.src.path); err == nil && fileExists(cc.src.path) {
		m.Filepath = abs
	}
	cc.header(m, st)
	for _, inc := range cc.src.includes {
		for _, s := range append(slices.Clone(c.sources), cc.batch...) {
			if s.submodule && s.name == inc.name {
				cc.header(m, s.stmt)
			}
		}
	}
	for i := range m.Features {
		m.Features[i].Enabled = slices.Contains(cc.src.features, "*") || slices.Contains(cc.src.features, m.Features[i].Name)
	}
	c.modules = append(c.modules, p)

	e := yang.ToEntry(cc.ym)
	if errs := e.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			c.errf(EVALID, VESemantics, "%s", err)
		}
		return p, EVALID
	}
	var data, rpcs, notifs []Ptr
	for _, ch := range sortedDir(e) {
		if cc.owner(ch) != m.Name {
			continue
		}
		q := cc.node(ch, Null, FlagConfigW, false)
		switch c.snodes.at(q).NodeType {
		case NodeRPC:
			rpcs = append(rpcs, q)
		case NodeNotif:
			notifs = append(notifs, q)
		default:
			data = append(data, q)
		}
	}
	m = c.mods.at(p)
	m.Data = c.link(data)
	m.RPCs = c.link(rpcs)
	m.Notifs = c.link(notifs)
	for _, f := range cc.src.features {
		if f != "*" && !slices.ContainsFunc(m.Features, func(ft Feature) bool { return ft.Name == f }) {
			return p, c.errf(EINVAL, VEReference, "Feature \"%s\" not found in module \"%s\".", f, m.Name)
		}
	}
	return p, cc.augments(st)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (cc *compiler) header(m *Module, st *yang.Statement) {
	for _, ss := range st.SubStatements() {
		switch ss.Keyword {
		case "namespace":
			m.Namespace = ss.Argument
		case "prefix":
			m.Prefix = ss.Argument
		case "belongs-to":
			if m.Prefix == "" {
				m.Prefix, _ = subArg(ss, "prefix")
			}
		case "yang-version":
			m.YangVersion = ss.Argument
		case "organization":
			m.Org = ss.Argument
		case "contact":
			m.Contact = ss.Argument
		case "description":
			if st == cc.src.stmt {
				m.Dsc = ss.Argument
			}
		case "reference":
			if st == cc.src.stmt {
				m.Ref = ss.Argument
			}
		case "revision":
			if st == cc.src.stmt {
				dsc, _ := subArg(ss, "description")
				ref, _ := subArg(ss, "reference")
				m.Revisions = append(m.Revisions, Revision{Date: ss.Argument, Description: dsc, Reference: ref})
			}
		case "import":
			if st == cc.src.stmt {
				pfx, _ := subArg(ss, "prefix")
				rev, _ := subArg(ss, "revision-date")
				m.Imports = append(m.Imports, Import{Name: ss.Argument, Prefix: pfx, Revision: rev})
			}
		case "include":
			if st == cc.src.stmt {
				m.Includes = append(m.Includes, ss.Argument)
			}
		case "feature":
			dsc, _ := subArg(ss, "description")
			m.Features = append(m.Features, Feature{Name: ss.Argument, Description: dsc, IfFeatures: subArgs(ss, "if-feature")})
		case "identity":
			dsc, _ := subArg(ss, "description")
			id := Identity{Name: ss.Argument, Description: dsc}
			for _, b := range subArgs(ss, "base") {
				id.Bases = append(id.Bases, cc.qualify(b))
			}
			m.Identities = append(m.Identities, id)
		case "typedef":
			td := Typedef{Name: ss.Argument}
			td.Description, _ = subArg(ss, "description")
			td.Units, _ = subArg(ss, "units")
			td.Default, _ = subArg(ss, "default")
			m.Typedefs = append(m.Typedefs, td)
		default:
			if strings.Contains(ss.Keyword, ":") && st == cc.src.stmt {
				m.Exts = append(m.Exts, cc.extension(ss))
			}
		}
	}
}

// qualify turns a prefixed YANG name into module:name form.
func (cc *compiler) qualify(name string) string {
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		return cc.src.name + ":" + name
	}
	if mod := cc.prefixModule(prefix); mod != "" {
		return mod + ":" + local
	}
	return name
}

func (cc *compiler) prefixModule(prefix string) string {
	st := cc.src.stmt
	if p, _ := subArg(st, "prefix"); p == prefix {
		return cc.src.name
	}
	for _, imp := range st.SubStatements() {
		if imp.Keyword == "import" {
			if p, _ := subArg(imp, "prefix"); p == prefix {
				return imp.Argument
			}
		}
	}
	return ""
}

func (cc *compiler) extension(st *yang.Statement) Extension {
	prefix, name, _ := strings.Cut(st.Keyword, ":")
	return Extension{Name: name, Prefix: prefix, Module: cc.prefixModule(prefix), Argument: st.Argument}
}

// owner returns the module whose namespace an entry belongs to. Nodes
// copied from groupings take the namespace of the place they are used in;
// nodes added by augment take the namespace of the augmenting module.
func (cc *compiler) owner(e *yang.Entry) string {
	if name, err := e.InstantiatingModule(); err == nil && name != "" {
		return name
	}
	if e.Node != nil {
		return rootModuleName(e.Node)
	}
	return cc.src.name
}

func rootModuleName(n yang.Node) string {
	m := yang.RootNode(n)
	if m == nil {
		return ""
	}
	if m.BelongsTo != nil {
		return m.BelongsTo.Name
	}
	return m.Name
}

// sortedDir returns the children of e in source order, list keys first.
func sortedDir(e *yang.Entry) []*yang.Entry {
	out := make([]*yang.Entry, 0, len(e.Dir))
	for _, ch := range e.Dir {
		out = append(out, ch)
	}
	keys := strings.Fields(e.Key)
	keyIdx := func(ch *yang.Entry) int {
		if i := slices.Index(keys, ch.Name); i >= 0 {
			return i
		}
		return len(keys)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := keyIdx(out[i]), keyIdx(out[j])
		if ki != kj {
			return ki < kj
		}
		li, lj := location(out[i]), location(out[j])
		if li.file != lj.file {
			return li.file < lj.file
		}
		if li.line != lj.line {
			return li.line < lj.line
		}
		if li.col != lj.col {
			return li.col < lj.col
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type srcPos struct {
	file      string
	line, col int
}

func location(e *yang.Entry) srcPos {
	if e.Node == nil || e.Node.Statement() == nil {
		return srcPos{}
	}
	loc := e.Node.Statement().Location()
	parts := strings.Split(loc, ":")
	var pos srcPos
	if n := len(parts); n >= 2 {
		pos.line, _ = strconv.Atoi(parts[n-2])
		pos.col, _ = strconv.Atoi(parts[n-1])
		pos.file = strings.Join(parts[:n-2], ":")
	}
	return pos
}

func stmtOf(e *yang.Entry) *yang.Statement {
	if e.Node == nil {
		return nil
	}
	return e.Node.Statement()
}

func entryType(e *yang.Entry) NodeType {
	if e.Node != nil {
		switch e.Node.Kind() {
		case "rpc":
			return NodeRPC
		case "action":
			return NodeAction
		}
	}
	switch e.Kind {
	case yang.ChoiceEntry:
		return NodeChoice
	case yang.CaseEntry:
		return NodeCase
	case yang.AnyDataEntry:
		return NodeAnyData
	case yang.AnyXMLEntry:
		return NodeAnyXML
	case yang.NotificationEntry:
		return NodeNotif
	case yang.InputEntry:
		return NodeInput
	case yang.OutputEntry:
		return NodeOutput
	}
	switch {
	case e.IsList():
		return NodeList
	case e.IsLeafList():
		return NodeLeafList
	case e.Kind == yang.LeafEntry:
		return NodeLeaf
	}
	return NodeContainer
}

// link wires nodes into a sibling list and returns the first one.
func (c *Ctx) link(nodes []Ptr) Ptr {
	if len(nodes) == 0 {
		return Null
	}
	last := nodes[len(nodes)-1]
	for i, p := range nodes {
		n := c.snodes.at(p)
		n.Next = Null
		if i+1 < len(nodes) {
			n.Next = nodes[i+1]
		}
		if i == 0 {
			n.Prev = last
		} else {
			n.Prev = nodes[i-1]
		}
	}
	return nodes[0]
}

// node compiles e and its subtree under parent. cfg is the inherited config
// flag, zero inside operations.
func (cc *compiler) node(e *yang.Entry, parent Ptr, cfg SFlags, inOp bool) Ptr {
	c := cc.c
	st := stmtOf(e)
	p, n := c.snodes.alloc(c.nextSerial())
	n.NodeType = entryType(e)
	n.Module = cc.mod
	n.Parent = parent
	n.Name = e.Name
	n.Dsc = e.Description
	n.Ref, _ = subArg(st, "reference")
	n.When, _ = subArg(st, "when")
	n.IfFeatures = subArgs(st, "if-feature")
	if st != nil {
		n.Location = st.Location()
		for _, ss := range st.SubStatements() {
			switch {
			case ss.Keyword == "must":
				must := Must{Cond: ss.Argument}
				must.ErrorMessage, _ = subArg(ss, "error-message")
				must.ErrorAppTag, _ = subArg(ss, "error-app-tag")
				must.Description, _ = subArg(ss, "description")
				n.Musts = append(n.Musts, must)
			case strings.Contains(ss.Keyword, ":"):
				n.Exts = append(n.Exts, cc.extension(ss))
			}
		}
	}

	switch n.NodeType {
	case NodeRPC, NodeAction, NodeNotif:
		inOp = true
	}
	if inOp {
		cfg = 0
	} else if v, ok := subArg(st, "config"); ok {
		if v == "false" {
			cfg = FlagConfigR
		} else {
			cfg = FlagConfigW
		}
	}
	if n.NodeType&(NodeDataDef|NodeChoice|NodeCase) != 0 {
		n.Flags |= cfg
	}
	status := FlagStatusCurr
	if parent != Null {
		status = c.snodes.at(parent).Flags & (FlagStatusCurr | FlagStatusDeprc | FlagStatusObslt)
	}
	switch v, _ := subArg(st, "status"); v {
	case "deprecated":
		status = FlagStatusDeprc
	case "obsolete":
		status = FlagStatusObslt
	case "current":
		status = FlagStatusCurr
	}
	if status == 0 {
		status = FlagStatusCurr
	}
	n.Flags |= status
	if v, _ := subArg(st, "mandatory"); v == "true" {
		n.Flags |= FlagMandTrue
	}
	if v, _ := subArg(st, "ordered-by"); v == "user" {
		n.Flags |= FlagOrdByUser
	}

	switch n.NodeType {
	case NodeContainer:
		v := &SContainer{}
		v.Presence, _ = subArg(st, "presence")
		if v.Presence != "" {
			n.Flags |= FlagPresence
		}
		n.u = v
		v.Child, v.Actions, v.Notifs = cc.children(e, p, cfg, inOp)
	case NodeList:
		v := &SList{}
		n.u = v
		v.Min, v.Max = cardinality(st)
		v.Child, v.Actions, v.Notifs = cc.children(e, p, cfg, inOp)
		for _, k := range strings.Fields(e.Key) {
			for q := v.Child; q != Null; q = c.snodes.at(q).Next {
				kn := c.snodes.at(q)
				if kn.Name == k && kn.NodeType == NodeLeaf {
					kn.Flags |= FlagKey
					v.Keys = append(v.Keys, q)
				}
			}
		}
		if specs := subArgs(st, "unique"); len(specs) > 0 {
			cc.uniques = append(cc.uniques, pendingUnique{list: p, specs: specs})
		}
	case NodeLeaf:
		v := &SLeaf{}
		n.u = v
		v.Units = units(e, st)
		v.Type = cc.typ(e.Type, p)
		if d, ok := subArg(st, "default"); ok {
			cc.dflts = append(cc.dflts, pendingDflt{node: p, texts: []string{d}})
		} else if t := c.types.at(v.Type); t.Default != "" && n.Flags&FlagMandTrue == 0 {
			cc.dflts = append(cc.dflts, pendingDflt{node: p, texts: []string{t.Default}})
		}
	case NodeLeafList:
		v := &SLeafList{}
		n.u = v
		v.Units = units(e, st)
		v.Min, v.Max = cardinality(st)
		v.Type = cc.typ(e.Type, p)
		if ds := subArgs(st, "default"); len(ds) > 0 {
			cc.dflts = append(cc.dflts, pendingDflt{node: p, texts: ds})
		}
	case NodeChoice:
		v := &SChoice{}
		n.u = v
		var cases []Ptr
		for _, ch := range sortedDir(e) {
			if cc.owner(ch) != c.mods.at(cc.mod).Name {
				continue
			}
			if ch.Kind == yang.CaseEntry {
				cases = append(cases, cc.node(ch, p, cfg, inOp))
				continue
			}
			cases = append(cases, cc.shorthandCase(ch, p, cfg, inOp))
		}
		v.Cases = c.link(cases)
		if d, ok := subArg(st, "default"); ok {
			for q := v.Cases; q != Null; q = c.snodes.at(q).Next {
				if c.snodes.at(q).Name == d {
					v.Dflt = q
				}
			}
		}
	case NodeCase:
		v := &SCase{}
		n.u = v
		v.Child, _, _ = cc.children(e, p, cfg, inOp)
	case NodeAnyData, NodeAnyXML:
		n.u = &SAny{}
	case NodeRPC, NodeAction:
		v := &SAction{}
		n.u = v
		var in, out *yang.Entry
		if e.RPC != nil {
			in, out = e.RPC.Input, e.RPC.Output
		}
		v.Input = cc.inout(in, p, NodeInput)
		v.Output = cc.inout(out, p, NodeOutput)
		c.link([]Ptr{v.Input, v.Output})
	case NodeInput, NodeOutput:
		v := &SInOut{}
		n.u = v
		v.Child, _, _ = cc.children(e, p, 0, true)
	case NodeNotif:
		v := &SNotif{}
		n.u = v
		v.Child, _, _ = cc.children(e, p, 0, true)
	}
	return p
}

func (cc *compiler) shorthandCase(ch *yang.Entry, parent Ptr, cfg SFlags, inOp bool) Ptr {
	c := cc.c
	p, n := c.snodes.alloc(c.nextSerial())
	n.NodeType = NodeCase
	n.Module = cc.mod
	n.Parent = parent
	n.Name = ch.Name
	n.Flags = c.snodes.at(parent).Flags & (FlagConfigW | FlagConfigR | FlagStatusCurr | FlagStatusDeprc | FlagStatusObslt)
	v := &SCase{}
	n.u = v
	v.Child = c.link([]Ptr{cc.node(ch, p, cfg, inOp)})
	return p
}

func (cc *compiler) inout(e *yang.Entry, parent Ptr, nt NodeType) Ptr {
	c := cc.c
	if e != nil {
		p := cc.node(e, parent, 0, true)
		n := c.snodes.at(p)
		n.NodeType = nt
		if nt == NodeInput {
			n.Name = "input"
		} else {
			n.Name = "output"
		}
		return p
	}
	p, n := c.snodes.alloc(c.nextSerial())
	n.NodeType = nt
	n.Module = cc.mod
	n.Parent = parent
	n.Name = "input"
	if nt == NodeOutput {
		n.Name = "output"
	}
	n.Flags = FlagStatusCurr
	n.u = &SInOut{}
	return p
}

// children compiles the children of e, splitting off actions and
// notifications.
func (cc *compiler) children(e *yang.Entry, parent Ptr, cfg SFlags, inOp bool) (child, actions, notifs Ptr) {
	var data, acts, nts []Ptr
	mod := cc.c.mods.at(cc.mod).Name
	for _, ch := range sortedDir(e) {
		if cc.owner(ch) != mod {
			continue
		}
		q := cc.node(ch, parent, cfg, inOp)
		switch cc.c.snodes.at(q).NodeType {
		case NodeAction:
			acts = append(acts, q)
		case NodeNotif:
			nts = append(nts, q)
		default:
			data = append(data, q)
		}
	}
	return cc.c.link(data), cc.c.link(acts), cc.c.link(nts)
}

func units(e *yang.Entry, st *yang.Statement) string {
	if u, ok := subArg(st, "units"); ok {
		return u
	}
	return e.Units
}

func cardinality(st *yang.Statement) (minElems, maxElems uint32) {
	if v, ok := subArg(st, "min-elements"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			minElems = uint32(n)
		}
	}
	if v, ok := subArg(st, "max-elements"); ok && v != "unbounded" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			maxElems = uint32(n)
		}
	}
	return minElems, maxElems
}

var yangKinds = map[yang.TypeKind]BaseType{
	yang.Yint8:               TypeInt8,
	yang.Yint16:              TypeInt16,
	yang.Yint32:              TypeInt32,
	yang.Yint64:              TypeInt64,
	yang.Yuint8:              TypeUint8,
	yang.Yuint16:             TypeUint16,
	yang.Yuint32:             TypeUint32,
	yang.Yuint64:             TypeUint64,
	yang.Ybinary:             TypeBinary,
	yang.Ybits:               TypeBits,
	yang.Ybool:               TypeBool,
	yang.Ydecimal64:          TypeDec64,
	yang.Yempty:              TypeEmpty,
	yang.Yenum:               TypeEnum,
	yang.Yidentityref:        TypeIdent,
	yang.YinstanceIdentifier: TypeInst,
	yang.Yleafref:            TypeLeafref,
	yang.Ystring:             TypeString,
	yang.Yunion:              TypeUnion,
}

// typ compiles a resolved goyang type. leaf is the term node that owns it.
func (cc *compiler) typ(yt *yang.YangType, leaf Ptr) Ptr {
	c := cc.c
	p, t := c.types.alloc(c.nextSerial())
	t.Module = cc.mod
	if yt == nil {
		t.Base = TypeString
		t.Name = "string"
		return p
	}
	t.Base = yangKinds[yt.Kind]
	t.Name = yt.Name
	t.Range = yt.Range
	t.Length = yt.Length
	t.Default = yt.Default
	t.FractionDigits = uint8(yt.FractionDigits)
	for _, expr := range yt.Pattern {
		re, err := xsdToRegexp(expr)
		if err != nil {
			c.warnf("Pattern \"%s\" of type \"%s\" cannot be compiled (%s), restriction ignored.", expr, yt.Name, err)
		}
		t.Patterns = append(t.Patterns, Pattern{Expr: expr, re: re})
	}
	switch t.Base {
	case TypeEnum:
		if yt.Enum != nil {
			for name, val := range yt.Enum.NameMap() {
				t.Enums = append(t.Enums, EnumItem{Name: name, Value: val})
			}
			sort.Slice(t.Enums, func(i, j int) bool { return t.Enums[i].Value < t.Enums[j].Value })
		}
	case TypeBits:
		if yt.Bit != nil {
			for name, pos := range yt.Bit.NameMap() {
				t.Bits = append(t.Bits, BitItem{Name: name, Position: uint32(pos)})
			}
			sort.Slice(t.Bits, func(i, j int) bool { return t.Bits[i].Position < t.Bits[j].Position })
		}
	case TypeUnion:
		for _, m := range yt.Type {
			t.Union = append(t.Union, cc.typ(m, leaf))
		}
		t = c.types.at(p)
	case TypeLeafref:
		t.Path = yt.Path
		t.RequireInstance = !yt.OptionalInstance
		cc.refs = append(cc.refs, pendingRef{node: leaf, typ: p})
	case TypeInst:
		t.RequireInstance = !yt.OptionalInstance
	case TypeIdent:
		if base := yt.IdentityBase; base != nil {
			t.Bases = []string{rootModuleName(base) + ":" + base.Name}
			for _, v := range base.Values {
				t.Identities = append(t.Identities, rootModuleName(v)+":"+v.Name)
			}
		}
	case TypeUnknown:
		t.Base = TypeString
	}
	return p
}

// augments grafts the nodes this module adds to other, already compiled
// modules.
func (cc *compiler) augments(st *yang.Statement) Status {
	c := cc.c
	mod := c.mods.at(cc.mod).Name
	for _, aug := range st.SubStatements() {
		if aug.Keyword != "augment" {
			continue
		}
		segs := strings.Split(strings.Trim(aug.Argument, "/ "), "/")
		if len(segs) == 0 {
			continue
		}
		firstPrefix, _, _ := strings.Cut(segs[0], ":")
		target := cc.prefixModule(firstPrefix)
		if target == "" || target == mod {
			continue
		}
		tp := c.GetModuleLatest(target)
		ym := cc.ms.Modules[target]
		if tp == Null || ym == nil {
			return c.errf(EVALID, VEReference, "Augment target module \"%s\" of \"%s\" not found.", target, mod)
		}
		names := make([]string, len(segs))
		for i, s := range segs {
			if _, local, ok := strings.Cut(s, ":"); ok {
				names[i] = local
			} else {
				names[i] = s
			}
		}
		ent := yang.ToEntry(ym)
		sp := Null
		for i, name := range names {
			ent = entryChild(ent, name)
			if i == 0 {
				sp = c.findTopAny(tp, name)
			} else if sp != Null {
				sp = c.schemaChildNamed(sp, name)
			}
			if ent == nil || sp == Null {
				return c.errf(EVALID, VEReference, "Augment target node \"%s\" from module \"%s\" was not found.", aug.Argument, mod)
			}
		}
		tn := c.snodes.at(sp)
		cfg := tn.Flags & (FlagConfigW | FlagConfigR)
		inOp := tn.NodeType&(NodeInput|NodeOutput|NodeNotif) != 0 || c.inOperation(sp)
		var added []Ptr
		for _, ch := range sortedDir(ent) {
			if cc.owner(ch) != mod {
				continue
			}
			if tn.NodeType == NodeChoice && ch.Kind != yang.CaseEntry {
				added = append(added, cc.shorthandCase(ch, sp, cfg, inOp))
				continue
			}
			added = append(added, cc.node(ch, sp, cfg, inOp))
		}
		c.graft(sp, added)
	}
	return Success
}

func entryChild(e *yang.Entry, name string) *yang.Entry {
	if e == nil {
		return nil
	}
	if e.RPC != nil {
		switch name {
		case "input":
			return e.RPC.Input
		case "output":
			return e.RPC.Output
		}
	}
	return e.Dir[name]
}

func (c *Ctx) findTopAny(mod Ptr, name string) Ptr {
	m := c.mods.at(mod)
	for _, first := range []Ptr{m.Data, m.RPCs, m.Notifs} {
		for p := first; p != Null; p = c.snodes.at(p).Next {
			if c.snodes.at(p).Name == name {
				return p
			}
		}
	}
	return Null
}

func (c *Ctx) schemaChildNamed(parent Ptr, name string) Ptr {
	heads := []Ptr{c.rawChild(parent), c.SchemaActions(parent), c.SchemaNotifs(parent)}
	for _, first := range heads {
		for p := first; p != Null; p = c.snodes.at(p).Next {
			if c.snodes.at(p).Name == name {
				return p
			}
		}
	}
	return Null
}

func (c *Ctx) rawChild(p Ptr) Ptr {
	n := c.snodes.at(p)
	switch n.NodeType {
	case NodeContainer:
		return n.Container().Child
	case NodeList:
		return n.List().Child
	case NodeChoice:
		return n.Choice().Cases
	case NodeCase:
		return n.Case().Child
	case NodeRPC, NodeAction:
		return n.Action().Input
	case NodeInput, NodeOutput:
		return n.InOut().Child
	case NodeNotif:
		return n.Notif().Child
	}
	return Null
}

func (c *Ctx) inOperation(p Ptr) bool {
	for q := p; q != Null; q = c.snodes.at(q).Parent {
		if c.snodes.at(q).NodeType&NodeOp != 0 {
			return true
		}
	}
	return false
}

// graft appends compiled nodes to the matching child lists of parent.
func (c *Ctx) graft(parent Ptr, nodes []Ptr) {
	n := c.snodes.at(parent)
	for _, q := range nodes {
		var head *Ptr
		switch qt := c.snodes.at(q).NodeType; {
		case qt == NodeAction && n.NodeType == NodeContainer:
			head = &n.Container().Actions
		case qt == NodeAction && n.NodeType == NodeList:
			head = &n.List().Actions
		case qt == NodeNotif && n.NodeType == NodeContainer:
			head = &n.Container().Notifs
		case qt == NodeNotif && n.NodeType == NodeList:
			head = &n.List().Notifs
		default:
			switch n.NodeType {
			case NodeContainer:
				head = &n.Container().Child
			case NodeList:
				head = &n.List().Child
			case NodeChoice:
				head = &n.Choice().Cases
			case NodeCase:
				head = &n.Case().Child
			case NodeInput, NodeOutput:
				head = &n.InOut().Child
			case NodeNotif:
				head = &n.Notif().Child
			default:
				continue
			}
		}
		var list []Ptr
		for p := *head; p != Null; p = c.snodes.at(p).Next {
			list = append(list, p)
		}
		*head = c.link(append(list, q))
	}
}

// finish resolves leafref targets, defaults and unique restrictions once the
// whole batch is compiled.
func (cc *compiler) finish() Status {
	c := cc.c
	for _, r := range cc.refs {
		if st := c.resolveLeafref(r.node, r.typ, 0); st != Success {
			return st
		}
	}
	for _, d := range cc.dflts {
		n := c.snodes.at(d.node)
		t := c.termType(d.node)
		var vals []Value
		for _, text := range d.texts {
			v, err := c.storeValue(t, text, c.schemaPrefixes(n.Module))
			if err != nil {
				return c.schemaErr(EVALID, VESemantics, d.node, "Invalid default - value does not fit the type (%s).", err.msg)
			}
			vals = append(vals, v)
		}
		switch n.NodeType {
		case NodeLeaf:
			n.Leaf().Dflt = &vals[0]
		case NodeLeafList:
			n.LeafList().Dflts = vals
		}
		n.Flags |= FlagSetDflt
	}
	for _, u := range cc.uniques {
		l := c.snodes.at(u.list).List()
		for _, spec := range u.specs {
			var set []Ptr
			for _, path := range strings.Fields(spec) {
				q := u.list
				for _, seg := range strings.Split(path, "/") {
					if _, local, ok := strings.Cut(seg, ":"); ok {
						seg = local
					}
					if q = c.dataChildNamed(q, seg); q == Null {
						break
					}
				}
				if q == Null {
					return c.schemaErr(EVALID, VEReference, u.list, "Unique restriction \"%s\" refers to a nonexistent node.", spec)
				}
				c.snodes.at(q).Flags |= FlagUnique
				set = append(set, q)
			}
			l.Uniques = append(l.Uniques, set)
		}
	}
	return Success
}

func (c *Ctx) dataChildNamed(parent Ptr, name string) Ptr {
	var out []Ptr
	c.collectAll(c.rawChild(parent), &out)
	for _, p := range out {
		if c.snodes.at(p).Name == name {
			return p
		}
	}
	return Null
}

func (c *Ctx) collectAll(first Ptr, out *[]Ptr) {
	for p := first; p != Null; p = c.snodes.at(p).Next {
		if c.snodes.at(p).NodeType&(NodeChoice|NodeCase) != 0 {
			c.collectAll(c.rawChild(p), out)
			continue
		}
		*out = append(*out, p)
	}
}

// resolveLeafref finds the target of a leafref path and records its type.
func (c *Ctx) resolveLeafref(node, typ Ptr, depth int) Status {
	t := c.types.at(typ)
	if t.Realtype != Null {
		return Success
	}
	if depth > 32 {
		return c.schemaErr(EVALID, VEReference, node, "Leafref path \"%s\" forms a loop.", t.Path)
	}
	expr, err := parseXPath(t.Path)
	if err != nil {
		return c.schemaErr(EVALID, VEXPath, node, "Invalid leafref path \"%s\" (%s).", t.Path, err)
	}
	targets := c.evalSchema(expr, node, c.schemaPrefixes(c.snodes.at(node).Module), false)
	if len(targets) == 0 {
		return c.schemaErr(EVALID, VEReference, node, "Not found node \"%s\" in path.", t.Path)
	}
	target := targets[0]
	tn := c.snodes.at(target)
	if tn.NodeType&NodeTerm == 0 {
		return c.schemaErr(EVALID, VEReference, node, "Invalid leafref path \"%s\" - target node is %s instead of leaf or leaf-list.", t.Path, tn.NodeType)
	}
	tt := c.termType(target)
	if c.types.at(tt).Base == TypeLeafref {
		if st := c.resolveLeafref(target, tt, depth+1); st != Success {
			return st
		}
	}
	t = c.types.at(typ)
	t.Target = target
	t.Realtype = tt
	return Success
}

// NodeEnabled reports whether every if-feature of the schema node holds.
func (c *Ctx) NodeEnabled(p Ptr) bool {
	n := c.snodes.at(p)
	for _, expr := range n.IfFeatures {
		if !c.evalIfFeature(n.Module, expr) {
			return false
		}
	}
	return true
}

func (c *Ctx) evalIfFeature(mod Ptr, expr string) bool {
	toks := tokenizeIfFeature(expr)
	pos := 0
	var orExpr func() bool
	atom := func() bool {
		if pos >= len(toks) {
			return false
		}
		tok := toks[pos]
		pos++
		switch tok {
		case "(":
			v := orExpr()
			if pos < len(toks) && toks[pos] == ")" {
				pos++
			}
			return v
		}
		return c.featureEnabled(mod, tok)
	}
	var notExpr func() bool
	notExpr = func() bool {
		if pos < len(toks) && toks[pos] == "not" {
			pos++
			return !notExpr()
		}
		return atom()
	}
	andExpr := func() bool {
		v := notExpr()
		for pos < len(toks) && toks[pos] == "and" {
			pos++
			w := notExpr()
			v = v && w
		}
		return v
	}
	orExpr = func() bool {
		v := andExpr()
		for pos < len(toks) && toks[pos] == "or" {
			pos++
			w := andExpr()
			v = v || w
		}
		return v
	}
	return orExpr()
}

func tokenizeIfFeature(expr string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range expr {
		switch r {
		case '(', ')':
			flush()
			toks = append(toks, string(r))
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func (c *Ctx) featureEnabled(mod Ptr, name string) bool {
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		prefix, local = "", name
	}
	modName := c.schemaPrefixes(mod)(prefix)
	q := c.GetModuleLatest(modName)
	if q == Null {
		return false
	}
	return c.FeatureValue(q, local) == Success
}

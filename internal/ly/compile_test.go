package ly

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseModuleHeader(t *testing.T) {
	c, mod, _ := newTestCtx(t)

	m := c.Module(mod)
	if m.Name != "example" {
		t.Errorf("Name = %q, want example", m.Name)
	}
	if m.Revision != "2024-01-01" {
		t.Errorf("Revision = %q, want 2024-01-01", m.Revision)
	}
	if m.Namespace != "urn:example" || m.Prefix != "ex" {
		t.Errorf("Namespace/Prefix = %q/%q", m.Namespace, m.Prefix)
	}
	if m.Org != "Example Org" {
		t.Errorf("Org = %q", m.Org)
	}
	if !m.Implemented {
		t.Error("parsed module must be implemented")
	}
	if len(m.Revisions) != 1 || m.Revisions[0].Description != "Initial revision." {
		t.Errorf("Revisions = %+v", m.Revisions)
	}
	if len(m.Identities) != 2 {
		t.Fatalf("Identities = %+v", m.Identities)
	}
	var animal Identity
	for _, id := range m.Identities {
		if id.Name == "animal" {
			animal = id
		}
	}
	if len(animal.Derived) != 1 || animal.Derived[0] != "example:dog" {
		t.Errorf("animal derived = %v, want [example:dog]", animal.Derived)
	}
}

func TestParseModuleDuplicate(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	again, st := c.ParseModule([]byte(testModule), SchemaYANG, nil)
	if st != Success || again != mod {
		t.Errorf("ParseModule of the same revision = %d, %v; want %d, success", again, st, mod)
	}
}

func TestParseModuleSyntaxError(t *testing.T) {
	var records []Record
	c := CtxNew(CtxDisableSearchDirCwd, func(r Record) { records = append(records, r) })
	defer c.Destroy()

	_, st := c.ParseModule([]byte("module broken { namespace"), SchemaYANG, nil)
	if st != EVALID {
		t.Fatalf("status = %v, want EVALID", st)
	}
	if len(records) == 0 || records[0].VECode != VESyntaxYang {
		t.Errorf("records = %+v, want a YANG syntax error", records)
	}
	if n := len(c.Modules()); n != 0 {
		t.Errorf("%d modules left after failed parse", n)
	}
}

func TestSchemaTraversal(t *testing.T) {
	c, mod, _ := newTestCtx(t)

	var top []string
	for p := c.ModuleData(mod); p != Null; p = c.SchemaNext(p) {
		top = append(top, c.SNode(p).Name)
	}
	if got := strings.Join(top, ","); got != "conf,req,blob" {
		t.Errorf("top-level nodes = %s, want conf,req,blob", got)
	}

	conf := c.ModuleData(mod)
	first := c.SchemaChild(conf)
	last := c.SNode(first).Prev
	if c.SNode(last).Next != Null {
		t.Error("first.Prev must be the last sibling")
	}
	if c.SNode(last).Name != "state" {
		t.Errorf("last child = %q, want state", c.SNode(last).Name)
	}

	rpc := c.ModuleRPCs(mod)
	if rpc == Null || c.SNode(rpc).Name != "reset" {
		t.Fatal("rpc reset not found")
	}
	a := c.SNode(rpc).Action()
	if c.SNode(a.Input).NodeType != NodeInput || c.SNode(a.Output).NodeType != NodeOutput {
		t.Error("rpc input/output have wrong node types")
	}
	notif := c.ModuleNotifs(mod)
	if notif == Null || c.SNode(notif).NodeType != NodeNotif {
		t.Error("notification alarm not found")
	}
}

func TestSchemaVariantPanics(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	conf := c.SNode(c.ModuleData(mod))
	defer func() {
		if recover() == nil {
			t.Error("expected panic reading a container as a list")
		}
	}()
	conf.List()
}

func TestSchemaFlags(t *testing.T) {
	c, _, _ := newTestCtx(t)

	item := c.SNode(findSchema(t, c, "/example:conf/item"))
	l := item.List()
	if len(l.Keys) != 1 || c.SNode(l.Keys[0]).Name != "id" {
		t.Errorf("keys = %v", l.Keys)
	}
	if l.Max != 2 {
		t.Errorf("max-elements = %d, want 2", l.Max)
	}
	if !item.Config() {
		t.Error("item should be config")
	}

	counter := c.SNode(findSchema(t, c, "/example:conf/state/counter"))
	if counter.Config() || counter.Flags&FlagConfigR == 0 {
		t.Error("counter should be state data")
	}

	tags := c.SNode(findSchema(t, c, "/example:conf/tags"))
	if tags.Flags&FlagOrdByUser == 0 {
		t.Error("tags should be ordered-by user")
	}

	name := c.SNode(findSchema(t, c, "/example:conf/name"))
	if d := name.Leaf().Dflt; d == nil || d.Canonical != "dflt" {
		t.Errorf("default of name = %v", d)
	}

	req := findSchema(t, c, "/example:req")
	if c.IsMandatory(req) {
		t.Error("presence container is never mandatory")
	}
	if !c.IsMandatory(findSchema(t, c, "/example:req/must-have")) {
		t.Error("must-have is mandatory")
	}
}

func TestSchemaPath(t *testing.T) {
	c, _, _ := newTestCtx(t)
	a := findSchema(t, c, "/example:conf/a")
	if got := c.SchemaPath(a, false); got != "/example:conf/ch/a/a" {
		t.Errorf("SchemaPath = %q", got)
	}
	if got := c.SchemaPath(a, true); got != "/example:conf/a" {
		t.Errorf("data SchemaPath = %q", got)
	}
}

func TestIfFeature(t *testing.T) {
	c, mod, _ := newTestCtx(t)

	if found, _ := c.FindSchemaPath(Null, "/example:conf/fancy-leaf", false); len(found) != 0 {
		t.Fatal("fancy-leaf must be disabled by default")
	}
	if st := c.FeatureValue(mod, "fancy"); st != ENOT {
		t.Errorf("FeatureValue = %v, want ENOT", st)
	}
	if st := c.SetFeature(mod, "fancy", true); st != Success {
		t.Fatalf("SetFeature failed: %v", st)
	}
	if found, _ := c.FindSchemaPath(Null, "/example:conf/fancy-leaf", false); len(found) != 1 {
		t.Error("fancy-leaf must be enabled after SetFeature")
	}
	if st := c.SetFeature(mod, "nope", true); st != ENOTFOUND {
		t.Errorf("SetFeature(nope) = %v, want ENOTFOUND", st)
	}
}

func TestLoadModuleFromSearchDir(t *testing.T) {
	dir := t.TempDir()
	base := `module base {
    namespace "urn:base";
    prefix b;
    revision 2020-01-01;
    typedef percent { type uint8 { range "0..100"; } }
}`
	user := `module user {
    namespace "urn:user";
    prefix u;
    import base { prefix b; }
    leaf load { type b:percent; }
}`
	if err := os.WriteFile(filepath.Join(dir, "base@2020-01-01.yang"), []byte(base), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "user.yang"), []byte(user), 0o644); err != nil {
		t.Fatal(err)
	}

	c := CtxNew(CtxDisableSearchDirCwd, nil)
	defer c.Destroy()
	if st := c.SetSearchDir(dir); st != Success {
		t.Fatalf("SetSearchDir failed: %v", st)
	}
	if st := c.SetSearchDir(dir); st != EEXIST {
		t.Errorf("second SetSearchDir = %v, want EEXIST", st)
	}

	mod, st := c.LoadModule("user", "", nil)
	if st != Success {
		t.Fatalf("LoadModule failed: %v", st)
	}
	b := c.GetModule("base", "2020-01-01")
	if b == Null {
		t.Fatal("imported module base not loaded")
	}
	if c.Module(b).Implemented {
		t.Error("imported module must not be implemented")
	}
	load := c.ModuleData(mod)
	typ := c.Type(c.termType(load))
	if typ.Base != TypeUint8 {
		t.Errorf("base type = %s, want uint8", typ.Base)
	}
	if _, st := c.StoreValue(load, "101", nil); st != EVALID {
		t.Errorf("StoreValue(101) = %v, want EVALID", st)
	}
}

func TestImportCallback(t *testing.T) {
	c := CtxNew(CtxDisableSearchDirs, nil)
	defer c.Destroy()
	calls := 0
	c.SetImportCallback(func(module, revision, submodule, subRevision string) ([]byte, SchemaFormat, Status) {
		calls++
		if module != "example" {
			return nil, SchemaUnknown, ENOTFOUND
		}
		return []byte(testModule), SchemaYANG, Success
	})
	mod, st := c.LoadModule("example", "", []string{"*"})
	if st != Success {
		t.Fatalf("LoadModule failed: %v", st)
	}
	if calls == 0 {
		t.Error("import callback not called")
	}
	if c.FeatureValue(mod, "fancy") != Success {
		t.Error("\"*\" must enable every feature")
	}
}

func TestYINRoundTrip(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	yin, st := c.PrintModule(mod, OutYIN)
	if st != Success {
		t.Fatalf("PrintModule(YIN) failed: %v", st)
	}
	if !strings.Contains(string(yin), `name="example"`) || !strings.Contains(string(yin), yinNamespace) {
		t.Errorf("unexpected YIN output:\n%s", yin)
	}

	other := CtxNew(CtxDisableSearchDirCwd, nil)
	defer other.Destroy()
	p, st := other.ParseModule(yin, SchemaYIN, nil)
	if st != Success {
		t.Fatalf("parsing generated YIN failed: %v", st)
	}
	if got := other.Module(p).Namespace; got != "urn:example" {
		t.Errorf("namespace after YIN round trip = %q", got)
	}
	if len(other.DataChildren(Null, p, false)) != 3 {
		t.Error("YIN module lost top-level nodes")
	}
}

func TestPrintTree(t *testing.T) {
	c, mod, _ := newTestCtx(t)
	out, st := c.PrintModule(mod, OutTree)
	if st != Success {
		t.Fatalf("PrintModule(tree) failed: %v", st)
	}
	tree := string(out)
	for _, want := range []string{
		"module: example",
		"+--rw conf",
		"+--rw item* [id]",
		"+--ro state",
		"+--rw req!",
		"+--rw (ch)?",
		"+--:(a)",
		"rpcs:",
		"+---x reset",
		"+---w input",
		"notifications:",
		"+---n alarm",
	} {
		if !strings.Contains(tree, want) {
			t.Errorf("tree output misses %q:\n%s", want, tree)
		}
	}

	src, _ := c.PrintModule(mod, OutYANG)
	if string(src) != testModule {
		t.Error("YANG output must be the module source")
	}
}

func TestGroupings(t *testing.T) {
	c := CtxNew(CtxDisableSearchDirCwd, nil)
	defer c.Destroy()
	mod, st := c.ParseModule([]byte(`module grp {
    namespace "urn:grp";
    prefix g;
    grouping addr {
        description "An address.";
        leaf ip { type string; }
        container port { leaf num { type uint16; } }
    }
    grouping endpoint {
        uses addr;
        leaf name { type string; }
    }
    container server { uses endpoint; }
}`), SchemaYANG, nil)
	if st != Success {
		t.Fatalf("ParseModule failed: %v", st)
	}

	got := c.Module(mod).Groupings
	if len(got) != 2 {
		t.Fatalf("got %d groupings, want 2", len(got))
	}
	addr, endpoint := got[0], got[1]
	if addr.Name != "addr" || addr.Description != "An address." {
		t.Errorf("addr = %+v", addr)
	}
	if strings.Join(addr.Nodes, ",") != "leaf ip,container port" {
		t.Errorf("addr nodes = %v", addr.Nodes)
	}
	if len(endpoint.Uses) != 1 || endpoint.Uses[0] != "addr" {
		t.Errorf("endpoint uses = %v", endpoint.Uses)
	}
	if ip, _ := c.FindSchemaPath(Null, "/grp:server/ip", false); len(ip) != 1 {
		t.Error("grouping not expanded into the schema tree")
	}
}

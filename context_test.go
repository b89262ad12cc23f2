package yangbind

import (
	"errors"
	"testing"

	"github.com/lukeod/yangbind/internal/ly"
)

// Sample module for testing
const testModule = `
module example {
    yang-version 1.1;
    namespace "urn:example";
    prefix ex;

    organization "Example Org";
    description "Module used by the binding tests.";

    revision 2024-01-01 {
        description "Initial revision.";
    }

    feature fancy;

    identity animal;
    identity dog { base animal; }

    typedef percent {
        type uint8 { range "0..100"; }
        units "%";
    }

    container conf {
        leaf x { type uint8; }
        leaf name { type string; default "dflt"; }
        leaf pet { type identityref { base animal; } }
        leaf ref { type leafref { path "../item/id"; } }
        leaf load { type percent; }
        leaf fancy-leaf { if-feature fancy; type string; }
        list item {
            key "id";
            max-elements 2;
            leaf id { type uint32; }
            leaf val { type string; }
        }
        leaf-list tags {
            type string;
            ordered-by user;
        }
        choice ch {
            case a { leaf a { type string; } }
            case b { leaf b { type string; } }
        }
        container state {
            config false;
            leaf counter { type uint64; }
        }
    }

    container req {
        presence "enables req";
        leaf must-have { type string; mandatory true; }
    }

    anydata blob;

    rpc reset {
        input { leaf delay { type uint32; } }
        output { leaf ok { type boolean; } }
    }

    notification alarm {
        leaf severity { type uint8; }
    }
}
`

// newTestContext opens a context with the example module loaded. The
// context is closed when the test ends.
func newTestContext(t *testing.T) (*Context, *Module) {
	t.Helper()
	ctx, err := Open(Options{DisableSearchDirCwd: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })
	mod, err := ctx.ParseModule([]byte(testModule), SchemaYANG)
	if err != nil {
		t.Fatalf("ParseModule failed: %v", err)
	}
	return ctx, mod
}

func parseJSON(t *testing.T, ctx *Context, data string) DataNode {
	t.Helper()
	tree, err := ctx.ParseData([]byte(data), FormatJSON, 0, 0)
	if err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}
	if tree == nil {
		t.Fatal("ParseData returned no tree")
	}
	return tree
}

func findSchema(t *testing.T, ctx *Context, path string) SchemaNode {
	t.Helper()
	n, err := ctx.FindSchemaNode(path)
	if err != nil {
		t.Fatalf("FindSchemaNode(%q) failed: %v", path, err)
	}
	return n
}

func TestParseModuleHeader(t *testing.T) {
	ctx, mod := newTestContext(t)

	if mod.Name != "example" {
		t.Errorf("Name = %q, want example", mod.Name)
	}
	if mod.Revision != "2024-01-01" {
		t.Errorf("Revision = %q, want 2024-01-01", mod.Revision)
	}
	if mod.Namespace != "urn:example" || mod.Prefix != "ex" {
		t.Errorf("namespace/prefix = %q/%q", mod.Namespace, mod.Prefix)
	}
	if mod.Organization != "Example Org" {
		t.Errorf("Organization = %q", mod.Organization)
	}
	if mod.String() != "example@2024-01-01" {
		t.Errorf("String() = %q", mod.String())
	}
	if len(mod.Identities) != 2 {
		t.Errorf("got %d identities, want 2", len(mod.Identities))
	}
	if len(mod.Typedefs) != 1 || mod.Typedefs[0].Name != "percent" {
		t.Errorf("typedefs = %+v", mod.Typedefs)
	}

	impl, err := mod.Implemented()
	if err != nil || !impl {
		t.Errorf("Implemented() = %v, %v", impl, err)
	}

	got, err := ctx.GetModule("example", "")
	if err != nil {
		t.Fatalf("GetModule failed: %v", err)
	}
	if got != mod {
		t.Error("GetModule must return the same *Module")
	}
	if byNS, err := ctx.GetModuleByNamespace("urn:example"); err != nil || byNS != mod {
		t.Errorf("GetModuleByNamespace = %v, %v", byNS, err)
	}
}

func TestGetModuleNotFound(t *testing.T) {
	ctx, _ := newTestContext(t)

	_, err := ctx.GetModule("nope", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetModule(nope) error = %v, want ErrNotFound", err)
	}
	_, err = ctx.LoadModule("nope", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadModule(nope) error = %v, want ErrNotFound", err)
	}
	var e *Error
	if !errors.As(err, &e) || len(e.Items) == 0 {
		t.Errorf("LoadModule error carries no records: %#v", err)
	}
}

func TestParseModuleSyntaxError(t *testing.T) {
	ctx, _ := newTestContext(t)

	_, err := ctx.ParseModule([]byte("module broken {"), SchemaYANG)
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("error = %v, want ErrCompile", err)
	}
}

func TestModulesIteration(t *testing.T) {
	ctx, mod := newTestContext(t)

	found := false
	for m, err := range ctx.Modules() {
		if err != nil {
			t.Fatalf("Modules: %v", err)
		}
		if m == mod {
			found = true
		}
	}
	if !found {
		t.Error("example module not listed")
	}
}

func TestFeatures(t *testing.T) {
	ctx, mod := newTestContext(t)

	on, err := mod.FeatureEnabled("fancy")
	if err != nil || on {
		t.Fatalf("FeatureEnabled(fancy) = %v, %v; want false", on, err)
	}
	if found, _ := ctx.FindPath("/example:conf/fancy-leaf"); len(found) != 0 {
		t.Fatal("fancy-leaf must be disabled")
	}

	if err := mod.SetFeature("fancy", true); err != nil {
		t.Fatalf("SetFeature failed: %v", err)
	}
	if found, _ := ctx.FindPath("/example:conf/fancy-leaf"); len(found) != 1 {
		t.Error("fancy-leaf must appear after SetFeature")
	}

	if _, err := mod.FeatureEnabled("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FeatureEnabled(nope) error = %v, want ErrNotFound", err)
	}
	if err := mod.SetFeature("nope", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetFeature(nope) error = %v, want ErrNotFound", err)
	}
}

func TestCloseInvalidatesEverything(t *testing.T) {
	ctx, mod := newTestContext(t)
	leaf := findSchema(t, ctx, "/example:conf/x")
	tree := parseJSON(t, ctx, `{"example:conf":{"x":5}}`)

	if err := ctx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !ctx.Closed() {
		t.Error("Closed() = false after Close")
	}
	if err := ctx.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	checks := []struct {
		name string
		err  error
	}{
		{"GetModule", func() error { _, err := ctx.GetModule("example", ""); return err }()},
		{"Module.Features", func() error { _, err := mod.Features(); return err }()},
		{"SchemaNode.Parent", func() error { _, err := leaf.Parent(); return err }()},
		{"DataNode.Path", func() error { _, err := tree.Path(); return err }()},
		{"DataNode.Print", func() error { _, err := tree.Print(FormatJSON, 0); return err }()},
		{"ParseData", func() error { _, err := ctx.ParseData([]byte("{}"), FormatJSON, 0, 0); return err }()},
	}
	for _, tt := range checks {
		if !errors.Is(tt.err, ErrContextClosed) {
			t.Errorf("%s error = %v, want ErrContextClosed", tt.name, tt.err)
		}
	}

	// Snapshot fields stay readable.
	if leaf.Name() != "x" || mod.Name != "example" {
		t.Error("snapshot fields changed after Close")
	}
}

func TestSearchDirs(t *testing.T) {
	dir := t.TempDir()
	ctx, err := Open(Options{SearchDirs: []string{dir}, DisableSearchDirCwd: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ctx.Close()

	dirs, err := ctx.SearchDirs()
	if err != nil || len(dirs) != 1 {
		t.Fatalf("SearchDirs = %v, %v", dirs, err)
	}
	if err := ctx.AddSearchDir(dir); err != nil {
		t.Errorf("adding an existing dir = %v, want nil", err)
	}
	if err := ctx.RemoveSearchDir(""); err != nil {
		t.Fatalf("RemoveSearchDir failed: %v", err)
	}
	if dirs, _ := ctx.SearchDirs(); len(dirs) != 0 {
		t.Errorf("SearchDirs after removal = %v", dirs)
	}
}

func TestImportCallbackLoadsModule(t *testing.T) {
	ctx, err := Open(Options{
		DisableSearchDirCwd: true,
		ImportCallback:      MapImporter(map[string]string{"example": testModule}),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ctx.Close()

	mod, err := ctx.LoadModule("example", "", "*")
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	if on, _ := mod.FeatureEnabled("fancy"); !on {
		t.Error(`features "*" must enable fancy`)
	}
}

func TestContextIDsDiffer(t *testing.T) {
	a, _ := newTestContext(t)
	b, _ := newTestContext(t)
	if a.ID() == b.ID() {
		t.Error("two contexts share an ID")
	}
}

func TestCrossContextRejected(t *testing.T) {
	a, _ := newTestContext(t)
	b, _ := newTestContext(t)
	ta := parseJSON(t, a, `{"example:conf":{"x":1}}`)
	defer ta.FreeAll()
	tb := parseJSON(t, b, `{"example:conf":{"x":2}}`)
	defer tb.FreeAll()

	if _, err := ta.Merge(tb, 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("cross-context merge error = %v, want ErrInvalidArg", err)
	}
	if _, err := a.Validate(tb, 0); !errors.Is(err, ErrInvalidArg) {
		t.Errorf("cross-context validate error = %v, want ErrInvalidArg", err)
	}
}

func TestModuleGroupings(t *testing.T) {
	ctx := openWith(t, `module grp {
    namespace "urn:grp";
    prefix g;
    grouping addr {
        description "An address.";
        leaf ip { type string; }
    }
    container server { uses addr; }
}`)
	mod, err := ctx.GetModule("grp", "")
	if err != nil {
		t.Fatalf("GetModule failed: %v", err)
	}
	if len(mod.Groupings) != 1 {
		t.Fatalf("got %d groupings, want 1", len(mod.Groupings))
	}
	g := mod.Groupings[0]
	if g.Name != "addr" || g.Description != "An address." || len(g.Nodes) != 1 || g.Nodes[0] != "leaf ip" {
		t.Errorf("grouping = %+v", g)
	}
}

func TestOptionsFlags(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want ly.CtxOptions
	}{
		{"none", Options{}, 0},
		{"all implemented", Options{AllImplemented: true}, ly.CtxAllImplemented},
		{"no search dirs", Options{DisableSearchDirs: true}, ly.CtxDisableSearchDirs},
		{"no cwd", Options{DisableSearchDirCwd: true}, ly.CtxDisableSearchDirCwd},
		{"prefer search dirs", Options{PreferSearchDirs: true}, ly.CtxPreferSearchDirs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.flags(); got != tt.want {
				t.Errorf("flags() = %b, want %b", got, tt.want)
			}
		})
	}
}

package yangbind

import (
	"strings"
	"testing"
)

const diffOld = `
module shop {
    namespace "urn:shop";
    prefix s;

    container store {
        description "A store.";
        leaf name { type string; }
        leaf size { type uint8 { range "1..10"; } }
        leaf legacy { type string; }
    }
}
`

const diffNew = `
module shop {
    namespace "urn:shop";
    prefix s;

    container store {
        description "A bigger store.";
        leaf name { type string; mandatory true; }
        leaf size { type uint8 { range "1..20"; } }
        leaf opened { type string; }
    }
}
`

func openWith(t *testing.T, source string) *Context {
	t.Helper()
	ctx, err := Open(Options{DisableSearchDirCwd: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })
	if _, err := ctx.ParseModule([]byte(source), SchemaYANG); err != nil {
		t.Fatalf("ParseModule failed: %v", err)
	}
	return ctx
}

func TestSchemaDiff(t *testing.T) {
	oldCtx := openWith(t, diffOld)
	newCtx := openWith(t, diffNew)

	changes, err := SchemaDiff(oldCtx, newCtx, nil)
	if err != nil {
		t.Fatalf("SchemaDiff failed: %v", err)
	}

	var got []string
	for _, c := range changes {
		got = append(got, c.String())
	}
	want := []string{
		`*/shop:store: description "A store." -> "A bigger store."`,
		`*/shop:store: mandatory "false" -> "true"`,
		`-/shop:store/legacy: removed status=current node`,
		`*/shop:store/name: mandatory "false" -> "true"`,
		`+/shop:store/opened: added node`,
		`-/shop:store/size: range "1..10"`,
		`+/shop:store/size: range "1..20"`,
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("SchemaDiff =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestSchemaDiffIdentical(t *testing.T) {
	changes, err := SchemaDiff(openWith(t, diffOld), openWith(t, diffOld), nil)
	if err != nil {
		t.Fatalf("SchemaDiff failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("identical schemas differ: %v", changes)
	}
}

func TestSchemaDiffExclude(t *testing.T) {
	skipStore := func(n SchemaNode) bool { return n.Name() == "store" }
	changes, err := SchemaDiff(openWith(t, diffOld), openWith(t, diffNew), skipStore)
	if err != nil {
		t.Fatalf("SchemaDiff failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("excluded subtree still reported: %v", changes)
	}
}

func TestSchemaDiffClosedContext(t *testing.T) {
	a := openWith(t, diffOld)
	b := openWith(t, diffNew)
	b.Close()
	if _, err := SchemaDiff(a, b, nil); err == nil {
		t.Error("SchemaDiff with a closed context succeeded")
	}
}

func TestChangeKindString(t *testing.T) {
	for k, want := range map[ChangeKind]string{
		ChangeAdded:    "added",
		ChangeRemoved:  "removed",
		ChangeModified: "modified",
		ChangeKind(9):  "unknown",
	} {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", k, got, want)
		}
	}
}

package yangbind

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"yang/example.yang":            {Data: []byte("unrevisioned")},
		"yang/example@2023-01-01.yang": {Data: []byte("old")},
		"yang/example@2024-01-01.yang": {Data: []byte(testModule)},
		"yang/sub@2024-01-01.yin":      {Data: []byte("<submodule/>")},
		"yang/notes.txt":               {Data: []byte("not a module")},
		"yang/nested/other.yang":       {Data: []byte("nested")},
	}
}

func TestFSImporter(t *testing.T) {
	imp := FSImporter(testFS(), "yang")

	tests := []struct {
		name                          string
		module, revision, sub, subRev string
		wantSrc                       string
		wantFormat                    SchemaFormat
	}{
		{name: "newest revision", module: "example", wantSrc: testModule, wantFormat: SchemaYANG},
		{name: "exact revision", module: "example", revision: "2023-01-01", wantSrc: "old", wantFormat: SchemaYANG},
		{name: "submodule", module: "example", sub: "sub", subRev: "2024-01-01", wantSrc: "<submodule/>", wantFormat: SchemaYIN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, format, err := imp(tt.module, tt.revision, tt.sub, tt.subRev)
			if err != nil {
				t.Fatalf("import failed: %v", err)
			}
			if string(src) != tt.wantSrc {
				t.Errorf("source = %q, want %q", src, tt.wantSrc)
			}
			if format != tt.wantFormat {
				t.Errorf("format = %v, want %v", format, tt.wantFormat)
			}
		})
	}

	for _, miss := range [][2]string{{"example", "1999-01-01"}, {"other", ""}, {"notes", ""}} {
		if _, _, err := imp(miss[0], miss[1], "", ""); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("import %s@%s error = %v, want fs.ErrNotExist", miss[0], miss[1], err)
		}
	}
}

func TestFSImporterUnrevisionedOnly(t *testing.T) {
	fsys := fstest.MapFS{"plain.yang": {Data: []byte("plain")}}
	src, _, err := FSImporter(fsys, "")("plain", "", "", "")
	if err != nil || string(src) != "plain" {
		t.Fatalf("import = %q, %v", src, err)
	}
}

func TestFSImporterLoadsModule(t *testing.T) {
	ctx, err := Open(Options{
		DisableSearchDirCwd: true,
		ImportCallback:      FSImporter(testFS(), "yang"),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ctx.Close()

	mod, err := ctx.LoadModule("example", "")
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	if mod.Revision != "2024-01-01" {
		t.Errorf("Revision = %q, want 2024-01-01", mod.Revision)
	}
	if _, err := ctx.LoadModule("other", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadModule(other) error = %v, want ErrNotFound", err)
	}
}

func TestMapImporter(t *testing.T) {
	imp := MapImporter(map[string]string{
		"mod":            "module mod {}",
		"mod@2024-01-01": "module mod { revision 2024-01-01; }",
		"yin":            "  <module name=\"yin\"/>",
	})

	src, format, err := imp("mod", "2024-01-01", "", "")
	if err != nil || string(src) != "module mod { revision 2024-01-01; }" || format != SchemaYANG {
		t.Errorf("revisioned lookup = %q, %v, %v", src, format, err)
	}
	src, _, err = imp("mod", "", "", "")
	if err != nil || string(src) != "module mod {}" {
		t.Errorf("plain lookup = %q, %v", src, err)
	}
	src, _, err = imp("mod", "2020-01-01", "", "")
	if err != nil || string(src) != "module mod {}" {
		t.Errorf("fallback lookup = %q, %v", src, err)
	}
	if _, format, _ := imp("yin", "", "", ""); format != SchemaYIN {
		t.Errorf("yin format = %v", format)
	}
	if _, _, err := imp("missing", "", "", ""); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing error = %v, want fs.ErrNotExist", err)
	}
}

package yangbind

import (
	"errors"
	"strings"
	"testing"
)

func TestValidationErrorCarriesPath(t *testing.T) {
	ctx, _ := newTestContext(t)

	_, err := ctx.ParseData([]byte(`{"example:conf":{"item":[{"id":1},{"id":2},{"id":3}]}}`), FormatJSON, 0, 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if e.Kind != KindValidation {
		t.Errorf("Kind = %v, want KindValidation", e.Kind)
	}
	if got := e.DataPath(); got != "/example:conf/item[id='3']" {
		t.Errorf("DataPath() = %q", got)
	}
	if got := e.ValidationCode(); got != VEData {
		t.Errorf("ValidationCode() = %v, want VEData", got)
	}
	last, ok := e.Last()
	if !ok {
		t.Fatal("Last() found no record")
	}
	if last.Message != `Too many "item" instances.` {
		t.Errorf("Message = %q", last.Message)
	}
	if !strings.HasPrefix(err.Error(), "yangbind: parse data: ") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrorItemString(t *testing.T) {
	tests := []struct {
		name string
		item ErrorItem
		want string
	}{
		{"message only", ErrorItem{Message: "boom"}, "boom"},
		{"data path", ErrorItem{Message: "bad", DataPath: "/a:b", SchemaPath: "/a:b"}, "bad (data path: /a:b)"},
		{"schema path", ErrorItem{Message: "bad", SchemaPath: "/a:b"}, "bad (schema path: /a:b)"},
		{"line", ErrorItem{Message: "bad", Line: 3}, "bad (line 3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorWithoutItems(t *testing.T) {
	e := &Error{Kind: KindNotFound, Op: "get module", Code: CodeNotFound}
	if got := e.Error(); got != "yangbind: get module: not found (not found)" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(e, ErrNotFound) || errors.Is(e, ErrParse) {
		t.Error("Unwrap must match only the kind's sentinel")
	}
	if _, ok := e.Last(); ok {
		t.Error("Last() on empty error reported a record")
	}
}

func TestLastPrefersErrorLevel(t *testing.T) {
	e := &Error{Items: []ErrorItem{
		{Level: LevelError, Message: "first"},
		{Level: LevelError, Message: "deepest"},
		{Level: LevelWarning, Message: "note"},
	}}
	last, _ := e.Last()
	if last.Message != "deepest" {
		t.Errorf("Last() = %q, want deepest", last.Message)
	}
}

func TestErrorKindsFromCalls(t *testing.T) {
	ctx, mod := newTestContext(t)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown top-level node", func() error { _, err := ctx.NewInner(mod, "nope"); return err }(), ErrNotFound},
		{"unknown schema path", func() error { _, err := ctx.FindSchemaNode("/example:nope"); return err }(), ErrNotFound},
		{"broken xpath", func() error { _, err := ctx.FindPath("/example:conf/["); return err }(), ErrPath},
		{"bad json", func() error { _, err := ctx.ParseData([]byte(`{"example:conf":`), FormatJSON, 0, 0); return err }(), ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestCodeStrings(t *testing.T) {
	if CodeValid.String() != "validation failure" {
		t.Errorf("CodeValid = %q", CodeValid.String())
	}
	if VEXPath.String() != "xpath" {
		t.Errorf("VEXPath = %q", VEXPath.String())
	}
	if LevelVerbose.String() != "verbose" || Level(0).String() != "unknown" {
		t.Error("unexpected Level strings")
	}
}

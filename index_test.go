package yangbind

import (
	"errors"
	"slices"
	"testing"
)

// Module with a two-key list for key encoding tests
const testKeysModule = `
module routes {
    namespace "urn:routes";
    prefix rt;

    list route {
        key "prefix vrf";
        leaf prefix { type string; }
        leaf vrf { type string; }
        leaf metric { type uint32; }
    }
}
`

func loadRouteList(t *testing.T) (*Context, *List) {
	t.Helper()
	ctx, _ := newTestContext(t)
	if _, err := ctx.ParseModule([]byte(testKeysModule), SchemaYANG); err != nil {
		t.Fatalf("ParseModule(routes) failed: %v", err)
	}
	l, ok := findSchema(t, ctx, "/routes:route").(*List)
	if !ok {
		t.Fatal("/routes:route is not a list")
	}
	return ctx, l
}

func TestKeyPredicate(t *testing.T) {
	tests := []struct {
		keys []KeyValue
		want string
	}{
		{nil, ""},
		{[]KeyValue{{"id", "3"}}, "[id='3']"},
		{[]KeyValue{{"prefix", "10.0.0.0/8"}, {"vrf", "red"}}, "[prefix='10.0.0.0/8'][vrf='red']"},
		{[]KeyValue{{"name", "it's"}}, `[name="it's"]`},
	}
	for _, tt := range tests {
		if got := KeyPredicate(tt.keys); got != tt.want {
			t.Errorf("KeyPredicate(%v) = %q, want %q", tt.keys, got, tt.want)
		}
	}
}

func TestParseKeyPredicate(t *testing.T) {
	got, err := ParseKeyPredicate(` [ rt:prefix = '10.0.0.0/8' ][vrf="a'b"] `)
	if err != nil {
		t.Fatalf("ParseKeyPredicate failed: %v", err)
	}
	want := []KeyValue{{"rt:prefix", "10.0.0.0/8"}, {"vrf", "a'b"}}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	bad := []string{
		"id='3'",
		"[id]",
		"[='3']",
		"[id=3]",
		"[id='3",
		"[id='3'",
	}
	for _, s := range bad {
		if _, err := ParseKeyPredicate(s); !errors.Is(err, ErrMalformedPredicate) {
			t.Errorf("ParseKeyPredicate(%q) error = %v, want ErrMalformedPredicate", s, err)
		}
	}
}

func TestEncodeKeys(t *testing.T) {
	_, l := loadRouteList(t)

	got, err := l.EncodeKeys([]string{"10.0.0.0/8", "red"})
	if err != nil {
		t.Fatalf("EncodeKeys failed: %v", err)
	}
	if got != "[prefix='10.0.0.0/8'][vrf='red']" {
		t.Errorf("EncodeKeys = %q", got)
	}

	if _, err := l.EncodeKeys([]string{"10.0.0.0/8"}); !errors.Is(err, ErrKeyCountMismatch) {
		t.Errorf("short value list error = %v, want ErrKeyCountMismatch", err)
	}
}

func TestDecodeKeys(t *testing.T) {
	_, l := loadRouteList(t)

	// Predicates in any order, prefixes ignored.
	got, err := l.DecodeKeys("[rt:vrf='red'][prefix='10.0.0.0/8']")
	if err != nil {
		t.Fatalf("DecodeKeys failed: %v", err)
	}
	if !slices.Equal(got, []string{"10.0.0.0/8", "red"}) {
		t.Errorf("DecodeKeys = %v", got)
	}

	if _, err := l.DecodeKeys("[prefix='x']"); !errors.Is(err, ErrKeyCountMismatch) {
		t.Errorf("one predicate error = %v, want ErrKeyCountMismatch", err)
	}
	if _, err := l.DecodeKeys("[prefix='x'][table='y']"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("wrong key error = %v, want ErrUnknownKey", err)
	}
}

func TestEncodeDecodeAgree(t *testing.T) {
	_, l := loadRouteList(t)

	values := []string{"192.0.2.0/24", "it's blue"}
	pred, err := l.EncodeKeys(values)
	if err != nil {
		t.Fatalf("EncodeKeys failed: %v", err)
	}
	back, err := l.DecodeKeys(pred)
	if err != nil {
		t.Fatalf("DecodeKeys(%q) failed: %v", pred, err)
	}
	if !slices.Equal(back, values) {
		t.Errorf("DecodeKeys(EncodeKeys(%v)) = %v", values, back)
	}
}

func TestInstanceKeys(t *testing.T) {
	ctx, l := loadRouteList(t)
	tree := parseJSON(t, ctx, `{"routes:route":[{"prefix":"10.0.0.0/8","vrf":"red","metric":5}]}`)
	defer tree.FreeAll()

	inst, ok := tree.(*InnerNode)
	if !ok {
		t.Fatalf("top node is %T, want *InnerNode", tree)
	}
	keys, err := inst.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []KeyValue{{"prefix", "10.0.0.0/8"}, {"vrf", "red"}}
	if !slices.Equal(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}

	path, err := inst.Path()
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if want := "/routes:route" + KeyPredicate(keys); path != want {
		t.Errorf("Path() = %q, want %q", path, want)
	}

	if s, _ := inst.Schema(); s != SchemaNode(l) {
		t.Error("instance schema differs from the looked-up list")
	}

	conf := parseJSON(t, ctx, `{"example:conf":{"x":1}}`)
	defer conf.FreeAll()
	if _, err := conf.(*InnerNode).Keys(); !errors.Is(err, ErrNotList) {
		t.Errorf("Keys on a container error = %v, want ErrNotList", err)
	}
}

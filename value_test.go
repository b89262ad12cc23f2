package yangbind

import (
	"slices"
	"testing"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name    string
		v       Value
		units   string
		hexCase HexCase
		want    string
	}{
		{"integer", Value{Canonical: "42", Base: TypeInt32, Int: 42}, "", HexLower, "42"},
		{"integer with units", Value{Canonical: "42", Base: TypeUint8, Uint: 42}, "%", HexLower, "42 %"},
		{"enum", Value{Canonical: "up", Base: TypeEnum, EnumName: "up", EnumValue: 1}, "", HexLower, "up(1)"},
		{"bits", Value{Canonical: "a b", Base: TypeBits, Bits: []string{"a", "b"}}, "", HexLower, "{a, b}"},
		{"no bits", Value{Base: TypeBits}, "", HexLower, "(none)"},
		{"binary lower", Value{Base: TypeBinary, Binary: []byte{0x0a, 0x1b, 0xff}}, "", HexLower, "0a:1b:ff"},
		{"binary upper", Value{Base: TypeBinary, Binary: []byte{0x0a, 0x1b, 0xff}}, "", HexUpper, "0A:1B:FF"},
		{"empty binary", Value{Base: TypeBinary}, "", HexLower, ""},
		{"identity", Value{Canonical: "example:dog", Base: TypeIdentityref, IdentityModule: "example", IdentityName: "dog"}, "", HexLower, "example:dog"},
		{"empty", Value{Base: TypeEmpty}, "", HexLower, "(empty)"},
		{"string", Value{Canonical: "hello", Base: TypeString}, "", HexLower, "hello"},
		{
			"union member",
			Value{Canonical: "up", Base: TypeUnion, Member: &Value{Canonical: "up", Base: TypeEnum, EnumName: "up", EnumValue: 1}},
			"", HexLower, "up(1)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.v, tt.units, tt.hexCase); got != tt.want {
				t.Errorf("FormatValue = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueInterface(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want any
	}{
		{"signed", Value{Base: TypeInt16, Int: -3}, int64(-3)},
		{"unsigned", Value{Base: TypeUint64, Uint: 7}, uint64(7)},
		{"bool", Value{Base: TypeBool, Bool: true}, true},
		{"decimal", Value{Base: TypeDecimal64, Decimal: 1250, FractionDigits: 2}, 12.5},
		{"enum", Value{Base: TypeEnum, EnumName: "up"}, "up"},
		{"string", Value{Base: TypeString, Canonical: "x"}, "x"},
		{"union", Value{Base: TypeUnion, Member: &Value{Base: TypeUint8, Uint: 1}}, uint64(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Interface(); got != tt.want {
				t.Errorf("Interface() = %#v, want %#v", got, tt.want)
			}
		})
	}

	bits := Value{Base: TypeBits, Bits: []string{"a"}}.Interface().([]string)
	if !slices.Equal(bits, []string{"a"}) {
		t.Errorf("bits Interface() = %v", bits)
	}
}

func TestStoredValues(t *testing.T) {
	ctx, _ := newTestContext(t)
	tree := parseJSON(t, ctx, `{"example:conf":{"x":200,"pet":"example:dog","load":40}}`)
	defer tree.FreeAll()

	value := func(xpath string) Value {
		t.Helper()
		term, ok := findOne(t, tree, xpath).(*TermNode)
		if !ok {
			t.Fatalf("%s is not a term node", xpath)
		}
		v, err := term.Value()
		if err != nil {
			t.Fatalf("Value: %v", err)
		}
		return v
	}

	x := value("/example:conf/x")
	if x.Base != TypeUint8 || x.Uint != 200 || x.Interface() != uint64(200) {
		t.Errorf("x = %+v", x)
	}

	pet := value("/example:conf/pet")
	if pet.IdentityModule != "example" || pet.IdentityName != "dog" {
		t.Errorf("pet = %+v", pet)
	}
	if got := FormatValue(pet, "", HexLower); got != "example:dog" {
		t.Errorf("FormatValue(pet) = %q", got)
	}

	load := value("/example:conf/load")
	if load.TypeName != "percent" {
		t.Errorf("load type name = %q, want percent", load.TypeName)
	}
	if got := FormatValue(load, "%", HexLower); got != "40 %" {
		t.Errorf("FormatValue(load) = %q", got)
	}
}

func TestHexTable(t *testing.T) {
	if hexTable(HexLower) != hexLower {
		t.Error("hexTable(HexLower) should return hexLower")
	}
	if hexTable(HexUpper) != hexUpper {
		t.Error("hexTable(HexUpper) should return hexUpper")
	}
}

package yangbind

import (
	"math"
	"strconv"
	"strings"

	"github.com/lukeod/yangbind/internal/ly"
)

// EnumItem is an enumeration member.
type EnumItem struct {
	Name        string
	Value       int64
	Description string
}

// BitItem is a bits member.
type BitItem struct {
	Name        string
	Position    uint32
	Description string
}

// Pattern is a pattern restriction. Inverted patterns come from
// "modifier invert-match".
type Pattern struct {
	Expr     string
	Inverted bool
}

// Type is a compiled type. It is a snapshot; only Target touches the
// native context.
type Type struct {
	ctx    *Context
	target ly.Ptr

	Base            BaseType
	Name            string // typedef or built-in name
	Module          string // module defining the typedef, if any
	Enums           []EnumItem
	Bits            []BitItem
	FractionDigits  uint8
	Range           string // e.g. "1..10|20"
	Length          string
	Patterns        []Pattern
	Union           []*Type
	LeafrefPath     string
	Realtype        *Type // resolved type of a leafref target
	RequireInstance bool
	IdentityBases   []string
	Identities      []string // identities derived from the bases, module:name
	Default         string   // typedef default
}

// Target returns the schema node a leafref points to.
func (t *Type) Target() (SchemaNode, error) {
	if err := t.ctx.alive("type target"); err != nil {
		return nil, err
	}
	if t.Base != TypeLeafref || t.target == ly.Null {
		return nil, &Error{Kind: KindNotFound, Op: "type target", Code: CodeNotFound, Items: []ErrorItem{{
			Level:   LevelError,
			Code:    CodeNotFound,
			Message: "Type \"" + t.Name + "\" has no leafref target.",
		}}}
	}
	return t.ctx.wrapSchema(t.target), nil
}

// String returns the type name.
func (t *Type) String() string {
	return t.Name
}

// convertType snapshots a native type, following union members and the
// leafref realtype.
func (c *Context) convertType(p ly.Ptr) *Type {
	if p == ly.Null {
		return nil
	}
	nt := c.native.Type(p)
	t := &Type{
		ctx:             c,
		target:          nt.Target,
		Base:            BaseType(nt.Base),
		Name:            nt.Name,
		FractionDigits:  nt.FractionDigits,
		LeafrefPath:     nt.Path,
		RequireInstance: nt.RequireInstance,
		IdentityBases:   append([]string(nil), nt.Bases...),
		Identities:      append([]string(nil), nt.Identities...),
		Default:         nt.Default,
	}
	if nt.Module != ly.Null {
		t.Module = c.native.Module(nt.Module).Name
	}
	if len(nt.Range) > 0 {
		t.Range = nt.Range.String()
	}
	if len(nt.Length) > 0 {
		t.Length = nt.Length.String()
	}
	for _, e := range nt.Enums {
		t.Enums = append(t.Enums, EnumItem{Name: e.Name, Value: e.Value, Description: e.Dsc})
	}
	for _, b := range nt.Bits {
		t.Bits = append(t.Bits, BitItem{Name: b.Name, Position: b.Position, Description: b.Dsc})
	}
	for _, pt := range nt.Patterns {
		t.Patterns = append(t.Patterns, Pattern{Expr: pt.Expr, Inverted: pt.Inverted})
	}
	for _, m := range nt.Union {
		t.Union = append(t.Union, c.convertType(m))
	}
	if nt.Realtype != ly.Null && nt.Realtype != p {
		t.Realtype = c.convertType(nt.Realtype)
	}
	return t
}

// Value is a stored term value. Canonical is always set; the typed fields
// are filled according to Base. A union value carries the member that
// matched in Member.
type Value struct {
	Canonical      string
	Base           BaseType
	TypeName       string
	Int            int64
	Uint           uint64
	Bool           bool
	Decimal        int64 // scaled by 10^FractionDigits
	FractionDigits uint8
	Binary         []byte
	EnumName       string
	EnumValue      int64
	Bits           []string
	IdentityModule string
	IdentityName   string
	Member         *Value
}

func (v Value) String() string {
	return v.Canonical
}

// Float returns a decimal64 value as float64.
func (v Value) Float() float64 {
	return float64(v.Decimal) / math.Pow10(int(v.FractionDigits))
}

// Interface returns the value as the natural Go type for its base type:
// int64, uint64, bool, float64, []byte, []string for bits, and string for
// everything else. Union values return their member's value.
func (v Value) Interface() any {
	switch {
	case v.Member != nil:
		return v.Member.Interface()
	case v.Base.IsSigned():
		return v.Int
	case v.Base.IsUnsigned():
		return v.Uint
	}
	switch v.Base {
	case TypeBool:
		return v.Bool
	case TypeDecimal64:
		return v.Float()
	case TypeBinary:
		return v.Binary
	case TypeBits:
		return v.Bits
	case TypeEnum:
		return v.EnumName
	}
	return v.Canonical
}

func (c *Context) convertValue(nv *ly.Value) Value {
	v := Value{
		Canonical:      nv.Canonical,
		Base:           BaseType(nv.Base),
		Int:            nv.Int,
		Uint:           nv.Uint,
		Bool:           nv.Bool,
		Decimal:        nv.Dec,
		FractionDigits: nv.FractionDigits,
		Binary:         append([]byte(nil), nv.Binary...),
		EnumName:       nv.EnumName,
		EnumValue:      nv.EnumValue,
		Bits:           append([]string(nil), nv.Bits...),
		IdentityModule: nv.IdentModule,
		IdentityName:   nv.IdentName,
	}
	if nv.Type != ly.Null {
		v.TypeName = c.native.Type(nv.Type).Name
	}
	if nv.Sub != nil {
		sub := c.convertValue(nv.Sub)
		v.Member = &sub
	}
	return v
}

// ValueCheck is the result of checking a lexical value against a leaf type.
// Incomplete is set when the type needs a data tree to finish the check
// (a leafref or instance-identifier with require-instance) and none was
// given; call again with the data tree.
type ValueCheck struct {
	Value      Value
	Incomplete bool
}

// HexCase controls uppercase vs lowercase hex output.
type HexCase bool

const (
	// HexLower outputs lowercase hex digits (0a:1b:2c).
	HexLower HexCase = false
	// HexUpper outputs uppercase hex digits (0A:1B:2C).
	HexUpper HexCase = true
)

const (
	hexLower = "0123456789abcdef"
	hexUpper = "0123456789ABCDEF"
)

func hexTable(hexCase HexCase) string {
	if hexCase == HexUpper {
		return hexUpper
	}
	return hexLower
}

// FormatValue renders a value for display. Enumerations show "name(value)",
// bits are listed in braces, binary is a colon-separated hex dump and
// identities are qualified. units, when set, is appended after a space.
func FormatValue(v Value, units string, hexCase HexCase) string {
	if v.Member != nil {
		return FormatValue(*v.Member, units, hexCase)
	}
	var b strings.Builder
	switch v.Base {
	case TypeEnum:
		b.WriteString(v.EnumName)
		b.WriteByte('(')
		b.WriteString(strconv.FormatInt(v.EnumValue, 10))
		b.WriteByte(')')
	case TypeBits:
		if len(v.Bits) == 0 {
			return "(none)"
		}
		b.WriteByte('{')
		b.WriteString(strings.Join(v.Bits, ", "))
		b.WriteByte('}')
	case TypeBinary:
		if len(v.Binary) == 0 {
			return ""
		}
		hex := hexTable(hexCase)
		for i, c := range v.Binary {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	case TypeIdentityref:
		b.WriteString(v.IdentityModule)
		b.WriteByte(':')
		b.WriteString(v.IdentityName)
	case TypeEmpty:
		return "(empty)"
	default:
		b.WriteString(v.Canonical)
	}
	if units != "" {
		b.WriteByte(' ')
		b.WriteString(units)
	}
	return b.String()
}

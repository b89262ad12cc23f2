package ly

import (
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/openconfig/goyang/pkg/yang"
)

// BaseType is the built-in YANG type a typedef chain resolves to.
type BaseType uint8

// Built-in types.
const (
	TypeUnknown BaseType = iota
	TypeBinary
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeString
	TypeBits
	TypeBool
	TypeDec64
	TypeEmpty
	TypeEnum
	TypeIdent
	TypeInst
	TypeLeafref
	TypeUnion
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
)

var baseNames = [...]string{
	TypeUnknown: "unknown",
	TypeBinary:  "binary",
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeString:  "string",
	TypeBits:    "bits",
	TypeBool:    "boolean",
	TypeDec64:   "decimal64",
	TypeEmpty:   "empty",
	TypeEnum:    "enumeration",
	TypeIdent:   "identityref",
	TypeInst:    "instance-identifier",
	TypeLeafref: "leafref",
	TypeUnion:   "union",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
}

func (b BaseType) String() string {
	if int(b) < len(baseNames) {
		return baseNames[b]
	}
	return "unknown"
}

// EnumItem is an enumeration member.
type EnumItem struct {
	Name  string
	Value int64
	Dsc   string
}

// BitItem is a bits member.
type BitItem struct {
	Name     string
	Position uint32
	Dsc      string
}

// Pattern is a compiled pattern restriction.
type Pattern struct {
	Expr     string
	Inverted bool
	re       *regexp.Regexp
}

// Type is a compiled type.
type Type struct {
	Base            BaseType
	Name            string
	Module          Ptr
	Enums           []EnumItem
	Bits            []BitItem
	FractionDigits  uint8
	Range           yang.YangRange
	Length          yang.YangRange
	Patterns        []Pattern
	Union           []Ptr
	Path            string
	Realtype        Ptr
	Target          Ptr
	RequireInstance bool
	Bases           []string
	Identities      []string
	Default         string
}

// Type dereferences a type pointer.
func (c *Ctx) Type(p Ptr) *Type {
	c.live()
	return c.types.at(p)
}

// Value is a stored term value. Canonical is always set; the typed fields
// are filled according to Base.
type Value struct {
	Canonical      string
	Base           BaseType
	Type           Ptr
	Int            int64
	Uint           uint64
	Bool           bool
	Dec            int64
	FractionDigits uint8
	Binary         []byte
	EnumName       string
	EnumValue      int64
	Bits           []string
	IdentModule    string
	IdentName      string
	Sub            *Value
}

// Float returns a decimal64 value as float64.
func (v *Value) Float() float64 {
	return float64(v.Dec) / math.Pow10(int(v.FractionDigits))
}

// PrefixResolver maps a value prefix to a module name. The empty prefix maps
// to the default module of the value.
type PrefixResolver func(prefix string) string

// valueErr is a failed store: the status plus the message to log.
type valueErr struct {
	st  Status
	msg string
}

func (e *valueErr) Error() string { return e.msg }

func invalid(format string, args ...any) *valueErr {
	return &valueErr{st: EVALID, msg: fmt.Sprintf(format, args...)}
}

// storeValue converts a lexical value of type t into its stored form.
func (c *Ctx) storeValue(t Ptr, lexical string, res PrefixResolver) (Value, *valueErr) {
	typ := c.types.at(t)
	v := Value{Base: typ.Base, Type: t}
	switch typ.Base {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		bits := map[BaseType]int{TypeInt8: 8, TypeInt16: 16, TypeInt32: 32, TypeInt64: 64}[typ.Base]
		s := strings.TrimPrefix(strings.TrimSpace(lexical), "+")
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return v, invalid("Value \"%s\" is out of type %s min/max bounds.", lexical, typ.Base)
			}
			return v, invalid("Invalid type %s value \"%s\".", typ.Base, lexical)
		}
		v.Int = n
		v.Canonical = strconv.FormatInt(n, 10)
		if !inRange(typ.Range, v.Canonical, 0) {
			return v, invalid("Unsatisfied range - value \"%s\" is out of the allowed range.", v.Canonical)
		}
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		bits := map[BaseType]int{TypeUint8: 8, TypeUint16: 16, TypeUint32: 32, TypeUint64: 64}[typ.Base]
		s := strings.TrimPrefix(strings.TrimSpace(lexical), "+")
		n, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange || strings.HasPrefix(s, "-") {
				return v, invalid("Value \"%s\" is out of type %s min/max bounds.", lexical, typ.Base)
			}
			return v, invalid("Invalid type %s value \"%s\".", typ.Base, lexical)
		}
		v.Uint = n
		v.Canonical = strconv.FormatUint(n, 10)
		if !inRange(typ.Range, v.Canonical, 0) {
			return v, invalid("Unsatisfied range - value \"%s\" is out of the allowed range.", v.Canonical)
		}
	case TypeDec64:
		scaled, canon, err := parseDec64(strings.TrimSpace(lexical), typ.FractionDigits)
		if err != nil {
			return v, err
		}
		v.Dec = scaled
		v.FractionDigits = typ.FractionDigits
		v.Canonical = canon
		if !inRange(typ.Range, canon, typ.FractionDigits) {
			return v, invalid("Unsatisfied range - value \"%s\" is out of the allowed range.", canon)
		}
	case TypeString:
		if !inRange(typ.Length, strconv.Itoa(utf8.RuneCountInString(lexical)), 0) {
			return v, invalid("Unsatisfied length - string \"%s\" length is not allowed.", lexical)
		}
		for _, p := range typ.Patterns {
			if p.re == nil {
				continue
			}
			if p.re.MatchString(lexical) == p.Inverted {
				return v, invalid("Unsatisfied pattern - \"%s\" does not conform to %s\"%s\".", lexical, invertPrefix(p.Inverted), p.Expr)
			}
		}
		v.Canonical = lexical
	case TypeBinary:
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, lexical)
		raw, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return v, invalid("Invalid Base64 character in value \"%s\".", lexical)
		}
		if !inRange(typ.Length, strconv.Itoa(len(raw)), 0) {
			return v, invalid("Unsatisfied length - binary value length is not allowed.")
		}
		v.Binary = raw
		v.Canonical = base64.StdEncoding.EncodeToString(raw)
	case TypeBool:
		switch lexical {
		case "true":
			v.Bool = true
		case "false":
		default:
			return v, invalid("Invalid boolean value \"%s\".", lexical)
		}
		v.Canonical = lexical
	case TypeEmpty:
		if lexical != "" {
			return v, invalid("Invalid empty value length %d.", len(lexical))
		}
	case TypeEnum:
		for _, e := range typ.Enums {
			if e.Name == lexical {
				v.EnumName = e.Name
				v.EnumValue = e.Value
				v.Canonical = e.Name
				return v, nil
			}
		}
		return v, invalid("Invalid enumeration value \"%s\".", lexical)
	case TypeBits:
		seen := map[string]bool{}
		for _, name := range strings.Fields(lexical) {
			if seen[name] {
				return v, invalid("Bit \"%s\" used multiple times.", name)
			}
			if !slices.ContainsFunc(typ.Bits, func(b BitItem) bool { return b.Name == name }) {
				return v, invalid("Invalid bit \"%s\".", name)
			}
			seen[name] = true
		}
		for _, b := range typ.Bits {
			if seen[b.Name] {
				v.Bits = append(v.Bits, b.Name)
			}
		}
		v.Canonical = strings.Join(v.Bits, " ")
	case TypeIdent:
		prefix, name, found := strings.Cut(strings.TrimSpace(lexical), ":")
		if !found {
			prefix, name = "", prefix
		}
		mod := ""
		if res != nil {
			mod = res(prefix)
		}
		if mod == "" {
			return v, invalid("Invalid identityref \"%s\" value - unable to map prefix to YANG schema.", lexical)
		}
		q := mod + ":" + name
		if !slices.Contains(typ.Identities, q) {
			if !c.identityExists(mod, name) {
				return v, invalid("Invalid identityref \"%s\" value - identity not found in module \"%s\".", lexical, mod)
			}
			return v, invalid("Invalid identityref \"%s\" value - identity not derived from the base %s.", lexical, strings.Join(typ.Bases, ", "))
		}
		v.IdentModule = mod
		v.IdentName = name
		v.Canonical = q
	case TypeInst:
		s := strings.TrimSpace(lexical)
		if _, err := parseXPath(s); err != nil || !strings.HasPrefix(s, "/") {
			return v, invalid("Invalid instance-identifier \"%s\" value - syntax error.", lexical)
		}
		canon, ok := rewritePrefixes(s, res)
		if !ok {
			return v, invalid("Invalid instance-identifier \"%s\" value - unknown prefix.", lexical)
		}
		v.Canonical = canon
	case TypeLeafref:
		if typ.Realtype == Null {
			return v, &valueErr{st: EINT, msg: fmt.Sprintf("Leafref \"%s\" has no resolved target type.", typ.Path)}
		}
		sub, err := c.storeValue(typ.Realtype, lexical, res)
		if err != nil {
			return v, err
		}
		sub.Type = t
		return sub, nil
	case TypeUnion:
		var last *valueErr
		for _, m := range typ.Union {
			sub, err := c.storeValue(m, lexical, res)
			if err == nil {
				v.Canonical = sub.Canonical
				v.Sub = &sub
				return v, nil
			}
			last = err
		}
		if last != nil {
			return v, invalid("Invalid union value \"%s\" - no matching subtype found: %s", lexical, last.msg)
		}
		return v, invalid("Invalid union value \"%s\" - no matching subtype found.", lexical)
	default:
		return v, &valueErr{st: EINT, msg: fmt.Sprintf("Unsupported type of value \"%s\".", lexical)}
	}
	return v, nil
}

func invertPrefix(inverted bool) string {
	if inverted {
		return "inverted "
	}
	return ""
}

func (c *Ctx) identityExists(mod, name string) bool {
	for _, p := range c.modules {
		m := c.mods.at(p)
		if m.Name != mod {
			continue
		}
		for _, id := range m.Identities {
			if id.Name == name {
				return true
			}
		}
	}
	return false
}

// inRange checks a canonical number against a YANG range. An empty range
// admits every value.
func inRange(r yang.YangRange, canonical string, fd uint8) bool {
	if len(r) == 0 {
		return true
	}
	var n yang.Number
	var err error
	if fd > 0 {
		n, err = yang.ParseDecimal(canonical, fd)
	} else {
		n, err = yang.ParseInt(canonical)
	}
	if err != nil {
		return false
	}
	for _, yr := range r {
		if !(yr.Max.Less(n) || n.Less(yr.Min)) {
			return true
		}
	}
	return false
}

// parseDec64 returns the value scaled by 10^fd and its canonical form.
func parseDec64(s string, fd uint8) (int64, string, *valueErr) {
	neg := false
	body := s
	switch {
	case strings.HasPrefix(body, "-"):
		neg = true
		body = body[1:]
	case strings.HasPrefix(body, "+"):
		body = body[1:]
	}
	ip, fp, _ := strings.Cut(body, ".")
	if ip == "" || strings.Trim(ip, "0123456789") != "" || strings.Trim(fp, "0123456789") != "" {
		return 0, "", invalid("Invalid decimal64 value \"%s\".", s)
	}
	if trimmed := strings.TrimRight(fp, "0"); len(trimmed) > int(fd) {
		return 0, "", invalid("Value \"%s\" of decimal64 type exceeds defined number (%d) of fraction digits.", s, fd)
	}
	fp = strings.TrimRight(fp, "0")
	padded := fp + strings.Repeat("0", int(fd)-len(fp))
	scaled, err := strconv.ParseInt(ip+padded, 10, 64)
	if err != nil {
		return 0, "", invalid("Value \"%s\" is out of type decimal64 min/max bounds.", s)
	}
	if neg {
		scaled = -scaled
	}
	return scaled, formatDec64(scaled, fd), nil
}

func formatDec64(scaled int64, fd uint8) string {
	neg := scaled < 0
	var abs string
	switch {
	case scaled == math.MinInt64:
		abs = "9223372036854775808"
	case neg:
		abs = strconv.FormatInt(-scaled, 10)
	default:
		abs = strconv.FormatInt(scaled, 10)
	}
	if len(abs) <= int(fd) {
		abs = strings.Repeat("0", int(fd)-len(abs)+1) + abs
	}
	ip := abs[:len(abs)-int(fd)]
	fp := strings.TrimRight(abs[len(abs)-int(fd):], "0")
	if fp == "" {
		fp = "0"
	}
	if neg {
		ip = "-" + ip
	}
	return ip + "." + fp
}

// StoreValue converts a lexical value of the type of the term schema node
// into its stored form without creating a data node.
func (c *Ctx) StoreValue(schema Ptr, lexical string, res PrefixResolver) (Value, Status) {
	c.live()
	t := c.termType(schema)
	if res == nil {
		res = c.jsonPrefixes(c.snodes.at(schema).Module)
	}
	v, err := c.storeValue(t, lexical, res)
	if err != nil {
		return v, c.schemaErr(err.st, VEData, schema, "%s", err.msg)
	}
	return v, Success
}

// ValidateValue checks a lexical value against the type of a term schema
// node. Leafref and instance-identifier values that require an instance can
// only be fully checked against a data tree; without one the call returns
// EINCOMPLETE after checking everything it can.
func (c *Ctx) ValidateValue(schema Ptr, lexical string, tree Ptr) (Value, Status) {
	v, st := c.StoreValue(schema, lexical, nil)
	if st != Success {
		return v, st
	}
	typ := c.types.at(c.termType(schema))
	needsTree := c.requiresInstance(typ)
	if !needsTree {
		return v, Success
	}
	if tree == Null {
		return v, EINCOMPLETE
	}
	if !c.instanceExists(typ, v, tree, Null) {
		return v, c.schemaErr(EVALID, VEData, schema, "Invalid %s value \"%s\" - required instance not found.", typ.Base, v.Canonical)
	}
	return v, Success
}

func (c *Ctx) requiresInstance(typ *Type) bool {
	switch typ.Base {
	case TypeLeafref, TypeInst:
		return typ.RequireInstance
	case TypeUnion:
		for _, m := range typ.Union {
			if c.requiresInstance(c.types.at(m)) {
				return true
			}
		}
	}
	return false
}

func (c *Ctx) termType(schema Ptr) Ptr {
	n := c.snodes.at(schema)
	switch n.NodeType {
	case NodeLeaf:
		return n.Leaf().Type
	case NodeLeafList:
		return n.LeafList().Type
	}
	panic(fmt.Sprintf("ly: %s node %q has no type", n.NodeType, n.Name))
}

// jsonPrefixes resolves value prefixes written as module names, with the
// empty prefix mapping to the module that owns the value.
func (c *Ctx) jsonPrefixes(owner Ptr) PrefixResolver {
	return func(prefix string) string {
		if prefix == "" {
			if owner == Null {
				return ""
			}
			return c.mods.at(owner).Name
		}
		for _, p := range c.modules {
			if c.mods.at(p).Name == prefix {
				return prefix
			}
		}
		return ""
	}
}

// schemaPrefixes resolves prefixes as declared by the import statements of mod.
func (c *Ctx) schemaPrefixes(mod Ptr) PrefixResolver {
	return func(prefix string) string {
		m := c.mods.at(mod)
		if prefix == "" || prefix == m.Prefix {
			return m.Name
		}
		for _, imp := range m.Imports {
			if imp.Prefix == prefix {
				return imp.Name
			}
		}
		return ""
	}
}

// valueEqual compares two stored values of the same type.
func valueEqual(a, b *Value) bool {
	return a.Canonical == b.Canonical
}

// xsdToRegexp converts an XML Schema regular expression into an anchored Go
// regular expression.
func xsdToRegexp(expr string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`^(?:`)
	inClass := 0
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case ch == '\\' && i+1 < len(expr):
			next := expr[i+1]
			switch next {
			case 'i':
				b.WriteString(`[\p{L}_:]`)
			case 'I':
				b.WriteString(`[^\p{L}_:]`)
			case 'c':
				b.WriteString(`[\p{L}\p{N}._:\-]`)
			case 'C':
				b.WriteString(`[^\p{L}\p{N}._:\-]`)
			default:
				b.WriteByte(ch)
				b.WriteByte(next)
			}
			i++
		case ch == '[':
			inClass++
			b.WriteByte(ch)
		case ch == ']':
			if inClass > 0 {
				inClass--
			}
			b.WriteByte(ch)
		case (ch == '^' || ch == '$') && inClass == 0:
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteString(`)$`)
	return regexp.Compile(b.String())
}

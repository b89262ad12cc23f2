package yangbind

import (
	"errors"
	"fmt"
	"strings"
)

// KeyValue is one key of a list instance.
type KeyValue struct {
	Name  string
	Value string
}

// Common errors for list key operations.
var (
	ErrNotList            = errors.New("node is not a list instance")
	ErrKeyCountMismatch   = errors.New("value count does not match key count")
	ErrMalformedPredicate = errors.New("malformed key predicate")
	ErrUnknownKey         = errors.New("unknown key")
)

// KeyPredicate renders keys as a path predicate, e.g. [name='eth0'][unit='1'].
// Values containing an apostrophe are enclosed in double quotes.
func KeyPredicate(keys []KeyValue) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteByte('[')
		b.WriteString(k.Name)
		b.WriteByte('=')
		if strings.Contains(k.Value, "'") {
			b.WriteByte('"')
			b.WriteString(k.Value)
			b.WriteByte('"')
		} else {
			b.WriteByte('\'')
			b.WriteString(k.Value)
			b.WriteByte('\'')
		}
		b.WriteByte(']')
	}
	return b.String()
}

// ParseKeyPredicate parses a sequence of [name='value'] predicates. Names
// may carry a module prefix, which is kept. Whitespace around the names and
// the equals sign is ignored.
func ParseKeyPredicate(s string) ([]KeyValue, error) {
	var out []KeyValue
	rest := strings.TrimSpace(s)
	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("%w: expected '[' at %q", ErrMalformedPredicate, rest)
		}
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: missing '=' in %q", ErrMalformedPredicate, rest)
		}
		name := strings.TrimSpace(rest[1:eq])
		if name == "" {
			return nil, fmt.Errorf("%w: empty key name in %q", ErrMalformedPredicate, rest)
		}
		val := strings.TrimLeft(rest[eq+1:], " \t")
		if val == "" || (val[0] != '\'' && val[0] != '"') {
			return nil, fmt.Errorf("%w: value of %q is not quoted", ErrMalformedPredicate, name)
		}
		end := strings.IndexByte(val[1:], val[0])
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated value of %q", ErrMalformedPredicate, name)
		}
		value := val[1 : end+1]
		val = strings.TrimLeft(val[end+2:], " \t")
		if val == "" || val[0] != ']' {
			return nil, fmt.Errorf("%w: expected ']' after value of %q", ErrMalformedPredicate, name)
		}
		out = append(out, KeyValue{Name: name, Value: value})
		rest = strings.TrimSpace(val[1:])
	}
	return out, nil
}

// Keys returns the key values of a list instance in key order.
func (n *InnerNode) Keys() ([]KeyValue, error) {
	if err := n.use("keys"); err != nil {
		return nil, err
	}
	s, err := n.Schema()
	if err != nil {
		return nil, err
	}
	l, ok := s.(*List)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotList, s.Name())
	}
	names, err := l.KeyNames()
	if err != nil {
		return nil, err
	}
	values := n.ctx.native.ListKeys(n.ptr)
	out := make([]KeyValue, 0, len(names))
	for i, name := range names {
		kv := KeyValue{Name: name}
		if i < len(values) {
			kv.Value = values[i]
		}
		out = append(out, kv)
	}
	return out, nil
}

// EncodeKeys renders key values, given in key order, as the predicate of
// an instance of the list.
func (n *List) EncodeKeys(values []string) (string, error) {
	names, err := n.KeyNames()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: list %s has no keys", ErrNotList, n.name)
	}
	if len(values) != len(names) {
		return "", fmt.Errorf("%w: got %d values, need %d",
			ErrKeyCountMismatch, len(values), len(names))
	}
	keys := make([]KeyValue, len(names))
	for i, name := range names {
		keys[i] = KeyValue{Name: name, Value: values[i]}
	}
	return KeyPredicate(keys), nil
}

// DecodeKeys parses an instance predicate of the list and returns the key
// values in key order. The predicates may come in any order; module
// prefixes on the names are ignored.
func (n *List) DecodeKeys(predicate string) ([]string, error) {
	names, err := n.KeyNames()
	if err != nil {
		return nil, err
	}
	kvs, err := ParseKeyPredicate(predicate)
	if err != nil {
		return nil, err
	}
	if len(kvs) != len(names) {
		return nil, fmt.Errorf("%w: got %d values, need %d",
			ErrKeyCountMismatch, len(kvs), len(names))
	}
	byName := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		name := kv.Name
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[i+1:]
		}
		byName[name] = kv.Value
	}
	out := make([]string, len(names))
	for i, name := range names {
		v, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: key %q missing from %q", ErrUnknownKey, name, predicate)
		}
		out[i] = v
	}
	return out, nil
}

package ly

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openconfig/goyang/pkg/yang"
)

const yinNamespace = "urn:ietf:params:xml:ns:yang:yin:1"

// yinArg describes how a keyword carries its argument in YIN: the name of
// the attribute or child element, and whether it is an element.
type yinArg struct {
	name    string
	element bool
}

var yinArgs = map[string]yinArg{
	"action":           {"name", false},
	"anydata":          {"name", false},
	"anyxml":           {"name", false},
	"argument":         {"name", false},
	"augment":          {"target-node", false},
	"base":             {"name", false},
	"belongs-to":       {"module", false},
	"bit":              {"name", false},
	"case":             {"name", false},
	"choice":           {"name", false},
	"config":           {"value", false},
	"contact":          {"text", true},
	"container":        {"name", false},
	"default":          {"value", false},
	"description":      {"text", true},
	"deviate":          {"value", false},
	"deviation":        {"target-node", false},
	"enum":             {"name", false},
	"error-app-tag":    {"value", false},
	"error-message":    {"value", true},
	"extension":        {"name", false},
	"feature":          {"name", false},
	"fraction-digits":  {"value", false},
	"grouping":         {"name", false},
	"identity":         {"name", false},
	"if-feature":       {"name", false},
	"import":           {"module", false},
	"include":          {"module", false},
	"input":            {},
	"key":              {"value", false},
	"leaf":             {"name", false},
	"leaf-list":        {"name", false},
	"length":           {"value", false},
	"list":             {"name", false},
	"mandatory":        {"value", false},
	"max-elements":     {"value", false},
	"min-elements":     {"value", false},
	"modifier":         {"value", false},
	"module":           {"name", false},
	"must":             {"condition", false},
	"namespace":        {"uri", false},
	"notification":     {"name", false},
	"ordered-by":       {"value", false},
	"organization":     {"text", true},
	"output":           {},
	"path":             {"value", false},
	"pattern":          {"value", false},
	"position":         {"value", false},
	"prefix":           {"value", false},
	"presence":         {"value", false},
	"range":            {"value", false},
	"reference":        {"text", true},
	"refine":           {"target-node", false},
	"require-instance": {"value", false},
	"revision":         {"date", false},
	"revision-date":    {"date", false},
	"rpc":              {"name", false},
	"status":           {"value", false},
	"submodule":        {"name", false},
	"type":             {"name", false},
	"typedef":          {"name", false},
	"unique":           {"tag", false},
	"units":            {"name", false},
	"uses":             {"name", false},
	"value":            {"value", false},
	"when":             {"condition", false},
	"yang-version":     {"value", false},
	"yin-element":      {"value", false},
}

// yinNode is a decoded YIN element.
type yinNode struct {
	keyword  string
	arg      string
	hasArg   bool
	children []*yinNode
}

// yinToYang converts a YIN document into equivalent YANG text.
func yinToYang(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	prefixes := map[string]string{} // namespace -> prefix of extension statements
	var root *yinNode
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			for _, a := range se.Attr {
				if a.Name.Space == "xmlns" {
					prefixes[a.Value] = a.Name.Local
				}
			}
			if root, err = readYIN(dec, se, prefixes); err != nil {
				return nil, err
			}
			break
		}
	}
	if root == nil {
		return nil, errors.New("empty YIN document")
	}
	var b bytes.Buffer
	writeYANG(&b, root, 0)
	return b.Bytes(), nil
}

func readYIN(dec *xml.Decoder, se xml.StartElement, prefixes map[string]string) (*yinNode, error) {
	n := &yinNode{keyword: se.Name.Local}
	arg, known := yinArgs[se.Name.Local]
	if se.Name.Space != yinNamespace {
		pfx := prefixes[se.Name.Space]
		if pfx == "" {
			return nil, fmt.Errorf("unknown namespace %q of YIN element %q", se.Name.Space, se.Name.Local)
		}
		n.keyword = pfx + ":" + se.Name.Local
		known = false
		for _, a := range se.Attr {
			if a.Name.Space == "" {
				n.arg, n.hasArg = a.Value, true
				break
			}
		}
	} else if !known {
		return nil, fmt.Errorf("unknown YIN keyword %q", se.Name.Local)
	} else if arg.name != "" && !arg.element {
		for _, a := range se.Attr {
			if a.Name.Space == "" && a.Name.Local == arg.name {
				n.arg, n.hasArg = a.Value, true
			}
		}
		if !n.hasArg {
			return nil, fmt.Errorf("missing argument %q of YIN element %q", arg.name, se.Name.Local)
		}
	}
	for _, a := range se.Attr {
		if a.Name.Space == "xmlns" {
			prefixes[a.Value] = a.Name.Local
		}
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if known && arg.element && t.Name.Local == arg.name && t.Name.Space == yinNamespace {
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return nil, err
				}
				n.arg, n.hasArg = text, true
				continue
			}
			ch, err := readYIN(dec, t.Copy(), prefixes)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, ch)
		case xml.EndElement:
			return n, nil
		}
	}
}

func quoteYANG(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

func writeYANG(b *bytes.Buffer, n *yinNode, level int) {
	b.WriteString(strings.Repeat("  ", level))
	b.WriteString(n.keyword)
	if n.hasArg {
		b.WriteByte(' ')
		b.WriteString(quoteYANG(n.arg))
	}
	if len(n.children) == 0 {
		b.WriteString(";\n")
		return
	}
	b.WriteString(" {\n")
	for _, ch := range n.children {
		writeYANG(b, ch, level+1)
	}
	b.WriteString(strings.Repeat("  ", level))
	b.WriteString("}\n")
}

// stmtToYIN renders a parsed module as YIN. nsOf resolves an extension
// prefix to its namespace.
func stmtToYIN(st *yang.Statement, nsOf func(prefix string) string) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	writeYIN(&b, st, 0, true, nsOf)
	return b.Bytes()
}

func writeYIN(b *bytes.Buffer, st *yang.Statement, level int, top bool, nsOf func(string) string) {
	ind := strings.Repeat("  ", level)
	b.WriteString(ind)
	b.WriteByte('<')
	b.WriteString(st.Keyword)
	if top {
		fmt.Fprintf(b, ` xmlns="%s"`, yinNamespace)
		for _, ss := range st.SubStatements() {
			if ss.Keyword != "import" && ss.Keyword != "prefix" && ss.Keyword != "belongs-to" {
				continue
			}
			pfx := ss.Argument
			if ss.Keyword != "prefix" {
				pfx, _ = subArg(ss, "prefix")
			}
			if ns := nsOf(pfx); ns != "" {
				fmt.Fprintf(b, ` xmlns:%s="%s"`, pfx, xmlEscape(ns))
			}
		}
	}
	arg, known := yinArgs[st.Keyword]
	isExt := strings.Contains(st.Keyword, ":")
	if st.HasArgument && (isExt || known && !arg.element && arg.name != "") {
		name := arg.name
		if isExt {
			name = "name"
		}
		fmt.Fprintf(b, ` %s="%s"`, name, xmlEscape(st.Argument))
	}
	subs := st.SubStatements()
	elemArg := known && arg.element && st.HasArgument
	if len(subs) == 0 && !elemArg {
		b.WriteString("/>\n")
		return
	}
	b.WriteString(">\n")
	if elemArg {
		fmt.Fprintf(b, "%s  <%s>%s</%s>\n", ind, arg.name, xmlEscape(st.Argument), arg.name)
	}
	for _, ss := range subs {
		writeYIN(b, ss, level+1, false, nsOf)
	}
	b.WriteString(ind)
	b.WriteString("</")
	b.WriteString(st.Keyword)
	b.WriteString(">\n")
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

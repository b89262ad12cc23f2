package yangbind_test

import (
	"errors"
	"fmt"

	"github.com/lukeod/yangbind"
)

const demoModule = `
module demo {
    namespace "urn:demo";
    prefix d;

    container conf {
        leaf x { type uint8; }
        leaf name { type string; }
    }
}
`

func openDemo() (*yangbind.Context, error) {
	ctx, err := yangbind.Open(yangbind.Options{DisableSearchDirCwd: true})
	if err != nil {
		return nil, err
	}
	if _, err := ctx.ParseModule([]byte(demoModule), yangbind.SchemaYANG); err != nil {
		ctx.Close()
		return nil, err
	}
	return ctx, nil
}

func Example() {
	ctx, err := openDemo()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer ctx.Close()

	tree, err := ctx.ParseData([]byte(`{"demo:conf":{"x":5}}`), yangbind.FormatJSON, 0, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer tree.FreeAll()

	out, _ := tree.Print(yangbind.FormatJSON, yangbind.PrintWithSiblings|yangbind.PrintShrink|yangbind.PrintUnqualified)
	fmt.Println(string(out))
	// Output:
	// {"conf":{"x":5}}
}

func ExampleContext_NewPath() {
	ctx, err := openDemo()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer ctx.Close()

	top, node, err := ctx.NewPath("/demo:conf/name", "router", 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer top.FreeAll()

	path, _ := node.Path()
	fmt.Println(path)
	out, _ := top.Print(yangbind.FormatJSON, yangbind.PrintShrink)
	fmt.Println(string(out))
	// Output:
	// /demo:conf/name
	// {"demo:conf":{"name":"router"}}
}

func ExampleContext_FindSchemaNode() {
	ctx, err := openDemo()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer ctx.Close()

	n, _ := ctx.FindSchemaNode("/demo:conf/x")
	leaf := n.(*yangbind.Leaf)
	typ, _ := leaf.Type()
	fmt.Println(leaf.Kind(), leaf.Path())
	fmt.Println(typ.Base)
	// Output:
	// leaf /demo:conf/x
	// uint8
}

func ExampleError() {
	ctx, err := openDemo()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer ctx.Close()

	_, err = ctx.LoadModule("missing", "")
	fmt.Println(errors.Is(err, yangbind.ErrNotFound))

	var e *yangbind.Error
	if errors.As(err, &e) {
		fmt.Println(e.Op)
	}
	// Output:
	// true
	// load module
}

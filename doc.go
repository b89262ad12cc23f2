// Package yangbind provides Go bindings for YANG schemas and the data trees
// they describe.
//
// A [Context] loads and compiles YANG modules. Its compiled schema can be
// inspected node by node, and data in XML, JSON or the compact binary LYB
// format can be parsed, built, validated, merged, diffed and printed.
//
// # Quick Start
//
//	ctx, err := yangbind.Open(yangbind.Options{SearchDirs: []string{"./yang"}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	if _, err := ctx.LoadModule("ietf-interfaces", "", "*"); err != nil {
//	    log.Fatal(err)
//	}
//
//	tree, err := ctx.ParseData(data, yangbind.FormatJSON, 0, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tree.FreeAll()
//
//	out, _ := tree.Print(yangbind.FormatXML, yangbind.PrintWithSiblings)
//
// # Loading Modules
//
//   - [Context.LoadModule] finds a module in the search dirs or through the
//     import callback
//   - [Context.ParseModule] compiles module source text
//   - [FSImporter] and [MapImporter] supply sources from an [fs.FS] or memory
//   - [LoadConfig] and [OpenConfig] open a context from a YAML file
//
// # Schema Nodes
//
// Schema nodes implement [SchemaNode] and are one of [*Container], [*List],
// [*Leaf], [*LeafList], [*Choice], [*Case], [*AnyData], [*Action],
// [*InOut] or [*Notification]. Looking up the same node twice returns the
// same pointer, so schema nodes can be compared with ==.
//
// # Data Trees
//
// Data nodes implement [DataNode] and are one of [*InnerNode], [*TermNode],
// [*AnyNode] or [*OpaqueNode]. The native tree owns the nodes; a wrapper
// only refers to one. A tree is released with [DataNode.Free] or
// [DataNode.FreeAll], after which every wrapper of a node in it reports
// [ErrFreed]. A merge with [MergeDestruct] consumes its source, whose
// wrappers then report [ErrConsumed].
//
// List key leaves stay with their list instance: they cannot be unlinked,
// freed or moved on their own.
//
// # Errors
//
// Failed calls return an [*Error] carrying every record the native library
// reported during the call. Match categories with [errors.Is] against the
// Err* sentinels:
//
//	if errors.Is(err, yangbind.ErrValidation) {
//	    var e *yangbind.Error
//	    errors.As(err, &e)
//	    fmt.Println(e.DataPath())
//	}
//
// Records of successful calls are logged through the context's zerolog
// logger and, with [Options.KeepWarnings], kept for [Context.Warnings].
//
// # Concurrency
//
// A [Context] is NOT safe for concurrent mutation. Callers must serialize
// loading modules and changing data trees of one context. Concurrent reads
// are fine while nothing changes. Separate contexts are independent.
package yangbind

package yangbind

import (
	"errors"
	"io/fs"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lukeod/yangbind/internal/ly"
	"github.com/rs/zerolog"
)

// ImportCallback supplies the source of a module or submodule that is not
// found in the search directories. Returning an error wrapping
// fs.ErrNotExist or ErrNotFound lets the lookup go on; any other error
// fails the import.
type ImportCallback func(module, revision, submodule, subRevision string) ([]byte, SchemaFormat, error)

// Options configures Open.
type Options struct {
	// SearchDirs are searched, in order, for imported modules.
	SearchDirs []string

	// AllImplemented makes imported modules implemented as well.
	AllImplemented bool

	// DisableSearchDirs turns off the search directories completely.
	DisableSearchDirs bool

	// DisableSearchDirCwd keeps the working directory out of the search.
	DisableSearchDirCwd bool

	// PreferSearchDirs consults the search directories before the import
	// callback.
	PreferSearchDirs bool

	// ImportCallback supplies module sources from elsewhere, e.g. FSImporter.
	ImportCallback ImportCallback

	// Logger receives native log records and context lifecycle events.
	// The zero value discards everything.
	Logger zerolog.Logger

	// LogLevel is the most verbose native level reported (default warning).
	LogLevel Level

	// KeepWarnings keeps the records of successful calls for Warnings.
	// Otherwise they are only logged.
	KeepWarnings bool

	// Metrics, when set, records native calls and cache activity.
	Metrics *Metrics
}

func (o *Options) flags() ly.CtxOptions {
	var f ly.CtxOptions
	if o.AllImplemented {
		f |= ly.CtxAllImplemented
	}
	if o.DisableSearchDirs {
		f |= ly.CtxDisableSearchDirs
	}
	if o.DisableSearchDirCwd {
		f |= ly.CtxDisableSearchDirCwd
	}
	if o.PreferSearchDirs {
		f |= ly.CtxPreferSearchDirs
	}
	return f
}

// Context owns a native context: its modules, compiled schema and every
// data tree created through it.
//
// Context is NOT safe for concurrent mutation. Callers must serialize
// every operation that changes modules or data trees of one Context.
// Read-only traversal from several goroutines is fine while nothing is
// being changed.
type Context struct {
	id           uuid.UUID
	native       *ly.Ctx
	logger       zerolog.Logger
	metrics      *Metrics
	cache        *identityCache
	keepWarnings bool
	closed       atomic.Bool

	qmu      sync.Mutex
	queue    []ErrorItem
	warnings []ErrorItem
}

// Open creates a context.
//
// Example:
//
//	ctx, err := yangbind.Open(yangbind.Options{SearchDirs: []string{"./yang"}})
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
func Open(opts Options) (*Context, error) {
	c := &Context{
		id:           uuid.New(),
		metrics:      opts.Metrics,
		keepWarnings: opts.KeepWarnings,
	}
	c.logger = opts.Logger.With().Str("ctx", c.id.String()).Logger()
	c.cache = newIdentityCache(opts.Metrics)
	c.native = ly.CtxNew(opts.flags(), c.record)
	c.native.SetLogLevel(opts.LogLevel.native())
	if opts.ImportCallback != nil {
		c.native.SetImportCallback(c.importer(opts.ImportCallback))
	}

	for _, dir := range opts.SearchDirs {
		err := c.call("open", KindInit, func() ly.Status {
			if st := c.native.SetSearchDir(dir); st != ly.EEXIST {
				return st
			}
			return ly.Success
		})
		if err != nil {
			c.native.SetLogCallback(nil)
			c.native.Destroy()
			return nil, err
		}
	}

	c.metrics.contexts(1)
	c.logger.Debug().Strs("search_dirs", opts.SearchDirs).Msg("context opened")
	return c, nil
}

func (c *Context) importer(cb ImportCallback) ly.ImportCallback {
	return func(module, revision, submodule, subRevision string) ([]byte, ly.SchemaFormat, ly.Status) {
		src, format, err := cb(module, revision, submodule, subRevision)
		switch {
		case err == nil:
			return src, ly.SchemaFormat(format), ly.Success
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrNotFound):
			return nil, ly.SchemaUnknown, ly.ENOTFOUND
		default:
			c.logger.Warn().Err(err).Str("module", module).Str("submodule", submodule).Msg("import callback failed")
			return nil, ly.SchemaUnknown, ly.ESYS
		}
	}
}

// ID returns the unique identifier of the context, also used in its log
// records.
func (c *Context) ID() uuid.UUID {
	return c.id
}

// Closed reports whether Close was called.
func (c *Context) Closed() bool {
	return c.closed.Load()
}

// Close releases the native context. Every module, schema node and data
// node wrapper obtained from the context fails with ErrContextClosed
// afterwards. Closing twice is a no-op.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cache.reset()
	c.native.SetLogCallback(nil)
	c.native.SetImportCallback(nil)
	c.native.Destroy()
	c.drain()
	c.metrics.contexts(-1)
	c.logger.Debug().Msg("context closed")
	return nil
}

func (c *Context) alive(op string) error {
	if c.closed.Load() {
		return newError(KindContextClosed, op)
	}
	return nil
}

func (c *Context) owns(op string, other *Context) error {
	if other != c {
		return &Error{Kind: KindInvalidArg, Op: op, Items: []ErrorItem{{
			Level:   LevelError,
			Code:    CodeInvalid,
			Message: "Nodes belong to different contexts.",
		}}}
	}
	return nil
}

// SearchDirs returns the search directories in search order.
func (c *Context) SearchDirs() ([]string, error) {
	if err := c.alive("search dirs"); err != nil {
		return nil, err
	}
	return c.native.SearchDirs(), nil
}

// AddSearchDir appends a search directory. Adding a directory twice is not
// an error.
func (c *Context) AddSearchDir(dir string) error {
	if err := c.alive("add search dir"); err != nil {
		return err
	}
	return c.call("add search dir", KindInvalidArg, func() ly.Status {
		if st := c.native.SetSearchDir(dir); st != ly.EEXIST {
			return st
		}
		return ly.Success
	})
}

// RemoveSearchDir removes a search directory. An empty dir removes all of
// them.
func (c *Context) RemoveSearchDir(dir string) error {
	if err := c.alive("remove search dir"); err != nil {
		return err
	}
	return c.call("remove search dir", KindNotFound, func() ly.Status {
		return c.native.UnsetSearchDir(dir)
	})
}

// LoadModule loads a module from the search directories or the import
// callback and makes it implemented. An empty revision selects the latest
// revision found. Features lists the features to enable; "*" enables all.
func (c *Context) LoadModule(name, revision string, features ...string) (*Module, error) {
	if err := c.alive("load module"); err != nil {
		return nil, err
	}
	var p ly.Ptr
	err := c.call("load module", KindCompile, func() ly.Status {
		var st ly.Status
		p, st = c.native.LoadModule(name, revision, features)
		return st
	})
	if err != nil {
		return nil, err
	}
	m := c.wrapModule(p)
	c.logger.Debug().Str("module", m.Name).Str("revision", m.Revision).Msg("module loaded")
	return m, nil
}

// ParseModule compiles module source text as an implemented module.
func (c *Context) ParseModule(source []byte, format SchemaFormat, features ...string) (*Module, error) {
	if err := c.alive("parse module"); err != nil {
		return nil, err
	}
	var p ly.Ptr
	err := c.call("parse module", KindCompile, func() ly.Status {
		var st ly.Status
		p, st = c.native.ParseModule(source, ly.SchemaFormat(format), features)
		return st
	})
	if err != nil {
		return nil, err
	}
	m := c.wrapModule(p)
	c.logger.Debug().Str("module", m.Name).Str("revision", m.Revision).Msg("module parsed")
	return m, nil
}

func (c *Context) moduleResult(op, what string, p ly.Ptr) (*Module, error) {
	if p == ly.Null {
		return nil, &Error{Kind: KindNotFound, Op: op, Code: CodeNotFound, Items: []ErrorItem{{
			Level:   LevelError,
			Code:    CodeNotFound,
			Message: "Module \"" + what + "\" not found.",
		}}}
	}
	return c.wrapModule(p), nil
}

// GetModule returns a loaded module. An empty revision selects the module
// without a revision or else the latest one.
func (c *Context) GetModule(name, revision string) (*Module, error) {
	if err := c.alive("get module"); err != nil {
		return nil, err
	}
	what := name
	if revision != "" {
		what += "@" + revision
	}
	return c.moduleResult("get module", what, c.native.GetModule(name, revision))
}

// GetModuleLatest returns the latest loaded revision of a module.
func (c *Context) GetModuleLatest(name string) (*Module, error) {
	if err := c.alive("get module"); err != nil {
		return nil, err
	}
	return c.moduleResult("get module", name, c.native.GetModuleLatest(name))
}

// GetModuleImplemented returns the implemented revision of a module.
func (c *Context) GetModuleImplemented(name string) (*Module, error) {
	if err := c.alive("get module"); err != nil {
		return nil, err
	}
	return c.moduleResult("get module", name, c.native.GetModuleImplemented(name))
}

// GetModuleByNamespace returns the implemented (or latest) module with the
// given namespace.
func (c *Context) GetModuleByNamespace(ns string) (*Module, error) {
	if err := c.alive("get module"); err != nil {
		return nil, err
	}
	return c.moduleResult("get module", ns, c.native.GetModuleNs(ns))
}

// Modules iterates over the loaded modules in load order.
func (c *Context) Modules() iter.Seq2[*Module, error] {
	return func(yield func(*Module, error) bool) {
		if err := c.alive("modules"); err != nil {
			yield(nil, err)
			return
		}
		for _, p := range c.native.Modules() {
			if err := c.alive("modules"); err != nil {
				yield(nil, err)
				return
			}
			if !yield(c.wrapModule(p), nil) {
				return
			}
		}
	}
}

// FindOption modifies a schema path lookup.
type FindOption func(*findOptions)

type findOptions struct {
	output bool
}

// WithOutput looks up rpc and action children in the output instead of the
// input.
func WithOutput() FindOption {
	return func(o *findOptions) { o.output = true }
}

// FindPath evaluates an absolute schema path. Path prefixes are module
// names. It fails with ErrPath on a malformed expression and returns an
// empty result when nothing matches.
func (c *Context) FindPath(xpath string, opts ...FindOption) ([]SchemaNode, error) {
	return c.findSchema("find path", ly.Null, xpath, opts)
}

func (c *Context) findSchema(op string, from ly.Ptr, xpath string, opts []FindOption) ([]SchemaNode, error) {
	if err := c.alive(op); err != nil {
		return nil, err
	}
	var fo findOptions
	for _, o := range opts {
		o(&fo)
	}
	var found []ly.Ptr
	err := c.call(op, KindPath, func() ly.Status {
		var st ly.Status
		found, st = c.native.FindSchemaPath(from, xpath, fo.output)
		return st
	})
	if err != nil {
		return nil, err
	}
	out := make([]SchemaNode, 0, len(found))
	for _, p := range found {
		out = append(out, c.wrapSchema(p))
	}
	return out, nil
}

// FindSchemaNode returns the first schema node matching path, or an error
// wrapping ErrNotFound.
func (c *Context) FindSchemaNode(path string, opts ...FindOption) (SchemaNode, error) {
	found, err := c.FindPath(path, opts...)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &Error{Kind: KindNotFound, Op: "find schema node", Code: CodeNotFound, Items: []ErrorItem{{
			Level:      LevelError,
			Code:       CodeNotFound,
			Message:    "Schema node not found.",
			SchemaPath: path,
		}}}
	}
	return found[0], nil
}

// ParseData parses a data tree and returns its first top-level node, or nil
// for empty input. Unless ParseOnly is set the tree is validated with
// vopts and gets its implicit default nodes. The caller owns the tree.
func (c *Context) ParseData(data []byte, format DataFormat, popts ParseOptions, vopts ValidateOptions) (DataNode, error) {
	if err := c.alive("parse data"); err != nil {
		return nil, err
	}
	var tree ly.Ptr
	err := c.call("parse data", KindParse, func() ly.Status {
		var st ly.Status
		tree, st = c.native.ParseData(data, ly.DataFormat(format), ly.ParseOptions(popts), ly.ValidateOptions(vopts))
		return st
	})
	if err != nil || tree == ly.Null {
		return nil, err
	}
	return c.wrapData(tree), nil
}

// ParseOp parses an rpc or action request or reply, or a notification. It
// returns the first node of the tree and the operation node inside it.
func (c *Context) ParseOp(data []byte, format DataFormat, op OpType, popts ParseOptions) (tree, opNode DataNode, err error) {
	if err := c.alive("parse op"); err != nil {
		return nil, nil, err
	}
	var t, o ly.Ptr
	err = c.call("parse op", KindParse, func() ly.Status {
		var st ly.Status
		t, o, st = c.native.ParseOp(data, ly.DataFormat(format), ly.OpType(op), ly.ParseOptions(popts))
		return st
	})
	if err != nil {
		return nil, nil, err
	}
	return c.wrapData(t), c.wrapData(o), nil
}

// NewPath creates the nodes of an absolute data path in a new tree and
// returns the top-level node and the node the path addresses. List keys
// come from the path predicates.
func (c *Context) NewPath(path, value string, opts NewPathOptions) (top, node DataNode, err error) {
	if err := c.alive("new path"); err != nil {
		return nil, nil, err
	}
	var t, n ly.Ptr
	err = c.call("new path", KindNative, func() ly.Status {
		var st ly.Status
		t, n, st = c.native.NewPath(ly.Null, path, value, ly.NewPathOptions(opts))
		return st
	})
	if err != nil {
		return nil, nil, err
	}
	return c.wrapData(t), c.wrapData(n), nil
}

func (c *Context) checkModule(op string, m *Module) error {
	if err := c.alive(op); err != nil {
		return err
	}
	if m == nil {
		return &Error{Kind: KindInvalidArg, Op: op, Items: []ErrorItem{{
			Level: LevelError, Code: CodeInvalid, Message: "A module is required for a top-level node.",
		}}}
	}
	return c.owns(op, m.ctx)
}

// NewInner creates a top-level container, rpc or notification of module m.
func (c *Context) NewInner(m *Module, name string) (*InnerNode, error) {
	if err := c.checkModule("new inner", m); err != nil {
		return nil, err
	}
	return c.newInner(ly.Null, m.ptr, name)
}

// NewList creates a top-level list instance with the given key values in
// key order.
func (c *Context) NewList(m *Module, name string, keys ...string) (*InnerNode, error) {
	if err := c.checkModule("new list", m); err != nil {
		return nil, err
	}
	return c.newList(ly.Null, m.ptr, name, keys)
}

// NewTerm creates a top-level leaf or leaf-list instance.
func (c *Context) NewTerm(m *Module, name, value string) (*TermNode, error) {
	if err := c.checkModule("new term", m); err != nil {
		return nil, err
	}
	return c.newTerm(ly.Null, m.ptr, name, value)
}

// NewAny creates a top-level anydata or anyxml instance. A tree value is
// copied; the caller keeps the original.
func (c *Context) NewAny(m *Module, name string, value AnyValue) (*AnyNode, error) {
	if err := c.checkModule("new any", m); err != nil {
		return nil, err
	}
	return c.newAny(ly.Null, m.ptr, name, value)
}

// NewOpaque creates a top-level opaque node.
func (c *Context) NewOpaque(name, value, prefix, moduleName string) (*OpaqueNode, error) {
	if err := c.alive("new opaque"); err != nil {
		return nil, err
	}
	return c.newOpaque(ly.Null, name, value, prefix, moduleName)
}

// Validate validates the whole data tree containing tree and adds its
// implicit nodes. tree may be nil, which validates an empty data store.
// It returns the first top-level node afterwards.
func (c *Context) Validate(tree DataNode, opts ValidateOptions) (DataNode, error) {
	if err := c.alive("validate"); err != nil {
		return nil, err
	}
	var root ly.Ptr
	if tree != nil {
		n := tree.base()
		if err := n.use("validate"); err != nil {
			return nil, err
		}
		if err := c.owns("validate", n.ctx); err != nil {
			return nil, err
		}
		root = n.ptr
	}
	err := c.call("validate", KindValidation, func() ly.Status {
		return c.native.ValidateAll(&root, ly.ValidateOptions(opts))
	})
	if err != nil || root == ly.Null {
		return nil, err
	}
	return c.wrapData(root), nil
}

// ValidateOp validates an rpc, action or notification tree. dataTree, when
// not nil, resolves references into the data store.
func (c *Context) ValidateOp(op DataNode, dataTree DataNode, reply bool) error {
	if err := c.alive("validate op"); err != nil {
		return err
	}
	n := op.base()
	if err := n.use("validate op"); err != nil {
		return err
	}
	if err := c.owns("validate op", n.ctx); err != nil {
		return err
	}
	var data ly.Ptr
	if dataTree != nil {
		d := dataTree.base()
		if err := d.use("validate op"); err != nil {
			return err
		}
		if err := c.owns("validate op", d.ctx); err != nil {
			return err
		}
		data = d.ptr
	}
	return c.call("validate op", KindValidation, func() ly.Status {
		return c.native.ValidateOp(n.ptr, data, reply)
	})
}

// Package ly is the native YANG engine that yangbind exposes.
//
// Every structure lives in a per-context arena and is addressed by a [Ptr].
// Sibling lists are linked through Next/Prev fields, where the first node's
// Prev points at the last node. Calls report failure through a [Status]
// code; the detail arrives through a log callback that fires synchronously
// from inside the call.
//
// Dereferencing a freed Ptr panics. Freeing a node that is still linked into
// a tree leaves dangling links. Every function panics once its context has
// been destroyed.
//
// Schema compilation is delegated to github.com/openconfig/goyang. The
// compiled result is copied into the arena, so goyang objects never escape
// this package.
//
// A Ctx is not safe for concurrent use.
package ly

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Ptr addresses a structure inside a context arena. Zero is NULL.
type Ptr uint32

// Null is the NULL pointer.
const Null Ptr = 0

// Status is the return code of a native call.
type Status int

// Native return codes.
const (
	Success     Status = iota // no error
	EMEM                      // memory allocation failure
	ESYS                      // system call failure
	EINVAL                    // invalid value
	EEXIST                    // item already exists
	ENOTFOUND                 // item does not exist
	EINT                      // internal error
	EVALID                    // validation failure
	EDENIED                   // operation not allowed
	EINCOMPLETE               // result is incomplete, more input is required
	ERECOMPILE                // compiled context must be recompiled
	ENOT                      // negative result
	EOTHER                    // unknown error
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case EMEM:
		return "out of memory"
	case ESYS:
		return "system error"
	case EINVAL:
		return "invalid value"
	case EEXIST:
		return "already exists"
	case ENOTFOUND:
		return "not found"
	case EINT:
		return "internal error"
	case EVALID:
		return "validation failure"
	case EDENIED:
		return "operation denied"
	case EINCOMPLETE:
		return "incomplete"
	case ERECOMPILE:
		return "recompile required"
	case ENOT:
		return "negative result"
	default:
		return "other error"
	}
}

// VECode classifies validation errors.
type VECode int

// Validation error codes.
const (
	VESuccess    VECode = iota // no validation error
	VESyntax                   // generic syntax error
	VESyntaxYang               // YANG syntax error
	VESyntaxYin                // YIN syntax error
	VEReference                // invalid reference
	VEXPath                    // invalid XPath expression
	VESemantics                // generic semantic error
	VESyntaxXML                // XML syntax error
	VESyntaxJSON               // JSON syntax error
	VEData                     // YANG data does not reflect some of the module restrictions
	VEOther                    // unknown validation error
)

func (v VECode) String() string {
	switch v {
	case VESuccess:
		return "success"
	case VESyntax:
		return "syntax"
	case VESyntaxYang:
		return "yang-syntax"
	case VESyntaxYin:
		return "yin-syntax"
	case VEReference:
		return "reference"
	case VEXPath:
		return "xpath"
	case VESemantics:
		return "semantics"
	case VESyntaxXML:
		return "xml-syntax"
	case VESyntaxJSON:
		return "json-syntax"
	case VEData:
		return "data"
	default:
		return "other"
	}
}

// LogLevel is the severity of a log record.
type LogLevel int

// Log levels, most severe first.
const (
	LLError LogLevel = iota
	LLWarn
	LLVerb
	LLDebug
)

// Record is a single log message emitted by a native call.
type Record struct {
	Level      LogLevel
	Code       Status
	VECode     VECode
	Msg        string
	DataPath   string
	SchemaPath string
	Line       uint64
}

// LogCallback receives log records. It runs synchronously on the calling
// goroutine, inside the native call that produced the record.
type LogCallback func(Record)

// SchemaFormat identifies a schema source format.
type SchemaFormat int

// Schema input formats.
const (
	SchemaUnknown SchemaFormat = iota
	SchemaYANG
	SchemaYIN
)

// ImportCallback supplies module source text that is not available in the
// search directories. Returning ENOTFOUND lets the lookup continue.
type ImportCallback func(module, revision, submodule, subRevision string) ([]byte, SchemaFormat, Status)

// CtxOptions are the context creation flags.
type CtxOptions uint32

// Context options.
const (
	CtxAllImplemented CtxOptions = 1 << iota
	CtxDisableSearchDirs
	CtxDisableSearchDirCwd
	CtxPreferSearchDirs
)

// Ctx is a native context. It owns every module, schema node, type, data node
// and metadata instance allocated through it.
type Ctx struct {
	opts       CtxOptions
	searchDirs []string
	logCb      LogCallback
	logLevel   LogLevel
	importCb   ImportCallback

	modules []Ptr
	mods    heap[Module]
	snodes  heap[SNode]
	types   heap[Type]
	dnodes  heap[DNode]
	metas   heap[Meta]
	serial  uint64

	sources []*moduleSource

	destroyed bool
}

// CtxNew creates a context. The log callback is registered before anything
// else happens so that no record produced by the context is lost.
func CtxNew(opts CtxOptions, cb LogCallback) *Ctx {
	return &Ctx{
		opts:     opts,
		logCb:    cb,
		logLevel: LLWarn,
	}
}

// Destroy releases every structure owned by the context. Pointers into the
// context must not be used afterwards.
func (c *Ctx) Destroy() {
	c.live()
	c.log(LLDebug, Success, VESuccess, "", "", "Destroying context with %d modules and %d data nodes.",
		len(c.modules), c.dnodes.count())
	c.modules = nil
	c.mods = heap[Module]{}
	c.snodes = heap[SNode]{}
	c.types = heap[Type]{}
	c.dnodes = heap[DNode]{}
	c.metas = heap[Meta]{}
	c.sources = nil
	c.logCb = nil
	c.importCb = nil
	c.destroyed = true
}

// SetLogCallback replaces the log callback. A nil callback drops records.
func (c *Ctx) SetLogCallback(cb LogCallback) {
	c.live()
	c.logCb = cb
}

// SetLogLevel sets the most verbose level that is still delivered.
func (c *Ctx) SetLogLevel(level LogLevel) LogLevel {
	c.live()
	prev := c.logLevel
	c.logLevel = level
	return prev
}

// SetImportCallback installs the module import callback.
func (c *Ctx) SetImportCallback(cb ImportCallback) {
	c.live()
	c.importCb = cb
}

// Options returns the context options.
func (c *Ctx) Options() CtxOptions {
	c.live()
	return c.opts
}

// SetOptions sets additional context options.
func (c *Ctx) SetOptions(opts CtxOptions) Status {
	c.live()
	c.opts |= opts
	return Success
}

// UnsetOptions clears context options.
func (c *Ctx) UnsetOptions(opts CtxOptions) Status {
	c.live()
	c.opts &^= opts
	return Success
}

// SetSearchDir appends a module search directory.
func (c *Ctx) SetSearchDir(dir string) Status {
	c.live()
	if dir == "" {
		return Success
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return c.errf(ESYS, VESuccess, "Unable to resolve search directory \"%s\" (%s).", dir, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return c.errf(EINVAL, VESuccess, "Unable to use search directory \"%s\" (%s).", dir, err)
	}
	if !st.IsDir() {
		return c.errf(EINVAL, VESuccess, "Given search directory \"%s\" is not a directory.", dir)
	}
	if slices.Contains(c.searchDirs, abs) {
		return EEXIST
	}
	c.searchDirs = append(c.searchDirs, abs)
	return Success
}

// UnsetSearchDir removes a module search directory, or all of them when dir
// is empty.
func (c *Ctx) UnsetSearchDir(dir string) Status {
	c.live()
	if dir == "" {
		c.searchDirs = nil
		return Success
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	i := slices.Index(c.searchDirs, abs)
	if i < 0 {
		return c.errf(EINVAL, VESuccess, "Invalid search directory \"%s\" to remove.", dir)
	}
	c.searchDirs = slices.Delete(c.searchDirs, i, i+1)
	return Success
}

// SearchDirs returns a copy of the search directory list.
func (c *Ctx) SearchDirs() []string {
	c.live()
	return slices.Clone(c.searchDirs)
}

// Counts reports how many structures of each family are allocated.
func (c *Ctx) Counts() (modules, snodes, types, dnodes, metas int) {
	c.live()
	return c.mods.count(), c.snodes.count(), c.types.count(), c.dnodes.count(), c.metas.count()
}

func (c *Ctx) live() {
	if c == nil || c.destroyed {
		panic("ly: use of destroyed context")
	}
}

func (c *Ctx) nextSerial() uint64 {
	c.serial++
	return c.serial
}

func (c *Ctx) log(level LogLevel, code Status, ve VECode, dataPath, schemaPath, format string, args ...any) {
	if c.logCb == nil || level > c.logLevel {
		return
	}
	c.logCb(Record{
		Level:      level,
		Code:       code,
		VECode:     ve,
		Msg:        fmt.Sprintf(format, args...),
		DataPath:   dataPath,
		SchemaPath: schemaPath,
	})
}

// errf logs an error record without path information and returns code.
func (c *Ctx) errf(code Status, ve VECode, format string, args ...any) Status {
	c.log(LLError, code, ve, "", "", format, args...)
	return code
}

// errLine logs an error record that carries an input line number.
func (c *Ctx) errLine(code Status, ve VECode, line uint64, format string, args ...any) Status {
	if c.logCb != nil {
		c.logCb(Record{
			Level:  LLError,
			Code:   code,
			VECode: ve,
			Msg:    fmt.Sprintf(format, args...),
			Line:   line,
		})
	}
	return code
}

// dataErr logs a data validation error located at the data node p.
func (c *Ctx) dataErr(code Status, p Ptr, format string, args ...any) Status {
	var dpath, spath string
	if p != Null {
		dpath = c.Path(p)
		if s := c.dnodes.at(p).Schema; s != Null {
			spath = c.SchemaPath(s, false)
		}
	}
	c.log(LLError, code, VEData, dpath, spath, format, args...)
	return code
}

// schemaErr logs an error located at the schema node p.
func (c *Ctx) schemaErr(code Status, ve VECode, p Ptr, format string, args ...any) Status {
	var spath string
	if p != Null {
		spath = c.SchemaPath(p, false)
	}
	c.log(LLError, code, ve, "", spath, format, args...)
	return code
}

func (c *Ctx) warnf(format string, args ...any) {
	c.log(LLWarn, Success, VESuccess, "", "", format, args...)
}

func (c *Ctx) debugf(format string, args ...any) {
	c.log(LLDebug, Success, VESuccess, "", "", format, args...)
}

package yangbind

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lukeod/yangbind/internal/ly"
)

// Code is a native return code.
type Code uint8

const (
	CodeSuccess    Code = iota // no error
	CodeMem                    // memory allocation failure
	CodeSys                    // system call failure
	CodeInvalid                // invalid value
	CodeExist                  // item already exists
	CodeNotFound               // item does not exist
	CodeInternal               // internal error
	CodeValid                  // validation failure
	CodeDenied                 // operation not allowed
	CodeIncomplete             // result is incomplete, more input is required
	CodeRecompile              // compiled context must be recompiled
	CodeNot                    // negative result
	CodeOther                  // unknown error
)

func (c Code) String() string {
	return ly.Status(c).String()
}

// ValidationCode refines CodeValid failures.
type ValidationCode uint8

const (
	VESuccess    ValidationCode = iota // no validation error
	VESyntax                           // generic syntax error
	VESyntaxYang                       // YANG syntax error
	VESyntaxYin                        // YIN syntax error
	VEReference                        // invalid reference
	VEXPath                            // invalid XPath expression
	VESemantics                        // generic semantic error
	VESyntaxXML                        // XML syntax error
	VESyntaxJSON                       // JSON syntax error
	VEData                             // data do not reflect the module restrictions
	VEOther                            // unknown validation error
)

func (v ValidationCode) String() string {
	return ly.VECode(v).String()
}

// Level is the severity of a native log record. The zero value selects the
// default, LevelWarning.
type Level uint8

const (
	LevelError Level = iota + 1
	LevelWarning
	LevelVerbose
	LevelDebug
)

func levelOf(l ly.LogLevel) Level { return Level(l) + 1 }

func (l Level) native() ly.LogLevel {
	if l == 0 {
		return ly.LLWarn
	}
	return ly.LogLevel(l - 1)
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelVerbose:
		return "verbose"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ErrorItem is one record reported by the native library during a call.
type ErrorItem struct {
	Level      Level
	Code       Code
	VECode     ValidationCode
	Message    string
	DataPath   string
	SchemaPath string
	Line       uint64 // input line, 0 when unknown
}

func (i ErrorItem) String() string {
	var b strings.Builder
	b.WriteString(i.Message)
	switch {
	case i.DataPath != "":
		fmt.Fprintf(&b, " (data path: %s)", i.DataPath)
	case i.SchemaPath != "":
		fmt.Fprintf(&b, " (schema path: %s)", i.SchemaPath)
	}
	if i.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", i.Line)
	}
	return b.String()
}

// ErrorKind classifies failures.
type ErrorKind uint8

const (
	KindNative ErrorKind = iota
	KindInit
	KindCompile
	KindValidation
	KindParse
	KindPrint
	KindPath
	KindMerge
	KindNotFound
	KindContextClosed
	KindFreed
	KindConsumed
	KindInvalidArg
)

// Sentinel errors. Every *Error unwraps to the sentinel of its kind, so
// callers can test with errors.Is.
var (
	ErrNative        = errors.New("native call failed")
	ErrInit          = errors.New("context initialization failed")
	ErrCompile       = errors.New("schema compilation failed")
	ErrValidation    = errors.New("data validation failed")
	ErrParse         = errors.New("parsing failed")
	ErrPrint         = errors.New("printing failed")
	ErrPath          = errors.New("invalid path")
	ErrMerge         = errors.New("merge failed")
	ErrNotFound      = errors.New("not found")
	ErrContextClosed = errors.New("context is closed")
	ErrFreed         = errors.New("node was freed")
	ErrConsumed      = errors.New("node was consumed by a merge")
	ErrInvalidArg    = errors.New("invalid argument")
)

var kindErrors = [...]error{
	KindNative:        ErrNative,
	KindInit:          ErrInit,
	KindCompile:       ErrCompile,
	KindValidation:    ErrValidation,
	KindParse:         ErrParse,
	KindPrint:         ErrPrint,
	KindPath:          ErrPath,
	KindMerge:         ErrMerge,
	KindNotFound:      ErrNotFound,
	KindContextClosed: ErrContextClosed,
	KindFreed:         ErrFreed,
	KindConsumed:      ErrConsumed,
	KindInvalidArg:    ErrInvalidArg,
}

func (k ErrorKind) String() string {
	if int(k) < len(kindErrors) {
		return kindErrors[k].Error()
	}
	return "unknown"
}

// Error is a failed operation. Items holds every record the native library
// logged during the call, oldest first.
type Error struct {
	Kind  ErrorKind
	Op    string
	Code  Code
	Items []ErrorItem
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("yangbind: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if it, ok := e.Last(); ok {
		b.WriteString(it.String())
	} else {
		b.WriteString(e.Kind.String())
		if e.Code != CodeSuccess {
			fmt.Fprintf(&b, " (%s)", e.Code)
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return kindErrors[e.Kind]
}

// Last returns the deepest error record: the last error-level item, or the
// last item of any level when there is none.
func (e *Error) Last() (ErrorItem, bool) {
	for i := len(e.Items) - 1; i >= 0; i-- {
		if e.Items[i].Level == LevelError {
			return e.Items[i], true
		}
	}
	if len(e.Items) > 0 {
		return e.Items[len(e.Items)-1], true
	}
	return ErrorItem{}, false
}

// DataPath returns the data path of the deepest record, if any.
func (e *Error) DataPath() string {
	it, _ := e.Last()
	return it.DataPath
}

// SchemaPath returns the schema path of the deepest record, if any.
func (e *Error) SchemaPath() string {
	it, _ := e.Last()
	return it.SchemaPath
}

// ValidationCode returns the validation code of the deepest record.
func (e *Error) ValidationCode() ValidationCode {
	it, _ := e.Last()
	return it.VECode
}

func newError(kind ErrorKind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// classify picks the kind of a failed native call. def is the kind of the
// operation; the status and the validation code of the records refine it.
func classify(def ErrorKind, st ly.Status, items []ErrorItem) ErrorKind {
	var ve ValidationCode
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Level == LevelError {
			ve = items[i].VECode
			break
		}
	}
	switch {
	case st == ly.ENOTFOUND:
		return KindNotFound
	case ve == VEXPath:
		return KindPath
	}
	switch def {
	case KindParse:
		if ve == VEData {
			return KindValidation
		}
	case KindNative:
		switch st {
		case ly.EINVAL, ly.EEXIST:
			return KindInvalidArg
		case ly.EVALID:
			return KindValidation
		}
	}
	return def
}

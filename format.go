package yangbind

import (
	"fmt"
	"strings"

	"github.com/lukeod/yangbind/internal/ly"
)

// DataFormat is a data tree serialization.
type DataFormat uint8

const (
	FormatUnknown DataFormat = DataFormat(ly.FormatUnknown) // detect from the input
	FormatXML     DataFormat = DataFormat(ly.FormatXML)
	FormatJSON    DataFormat = DataFormat(ly.FormatJSON)
	FormatLYB     DataFormat = DataFormat(ly.FormatLYB) // compact binary
)

func (f DataFormat) String() string {
	return ly.DataFormat(f).String()
}

// ParseDataFormat maps a format name (xml, json, lyb) to a DataFormat.
func ParseDataFormat(name string) (DataFormat, error) {
	switch strings.ToLower(name) {
	case "xml":
		return FormatXML, nil
	case "json":
		return FormatJSON, nil
	case "lyb":
		return FormatLYB, nil
	case "", "auto":
		return FormatUnknown, nil
	}
	return FormatUnknown, fmt.Errorf("%w: unknown data format %q", ErrInvalidArg, name)
}

// DetectFormat guesses the format of serialized data from its first bytes.
func DetectFormat(data []byte) DataFormat {
	return DataFormat(ly.DetectFormat(data))
}

// SchemaFormat is a module source format.
type SchemaFormat uint8

const (
	SchemaUnknown SchemaFormat = SchemaFormat(ly.SchemaUnknown) // detect from the source
	SchemaYANG    SchemaFormat = SchemaFormat(ly.SchemaYANG)
	SchemaYIN     SchemaFormat = SchemaFormat(ly.SchemaYIN)
)

func (f SchemaFormat) String() string {
	switch f {
	case SchemaYANG:
		return "yang"
	case SchemaYIN:
		return "yin"
	default:
		return "unknown"
	}
}

// SchemaOutFormat is a schema printer output.
type SchemaOutFormat uint8

const (
	OutYANG SchemaOutFormat = SchemaOutFormat(ly.OutYANG)
	OutYIN  SchemaOutFormat = SchemaOutFormat(ly.OutYIN)
	OutTree SchemaOutFormat = SchemaOutFormat(ly.OutTree) // tree diagram
)

func (f SchemaOutFormat) String() string {
	switch f {
	case OutYANG:
		return "yang"
	case OutYIN:
		return "yin"
	case OutTree:
		return "tree"
	default:
		return "unknown"
	}
}

// ParseSchemaOutFormat maps a printer name (yang, yin, tree) to a
// SchemaOutFormat.
func ParseSchemaOutFormat(name string) (SchemaOutFormat, error) {
	switch strings.ToLower(name) {
	case "yang":
		return OutYANG, nil
	case "yin":
		return OutYIN, nil
	case "tree":
		return OutTree, nil
	}
	return 0, fmt.Errorf("%w: unknown schema format %q", ErrInvalidArg, name)
}

// ParseOptions control data parsing.
type ParseOptions uint16

const (
	ParseOnly         ParseOptions = ParseOptions(ly.ParseOnly)         // no validation, no implicit nodes
	ParseStrict       ParseOptions = ParseOptions(ly.ParseStrict)       // unknown data are an error
	ParseOpaque       ParseOptions = ParseOptions(ly.ParseOpaq)         // unknown data become opaque nodes
	ParseNoState      ParseOptions = ParseOptions(ly.ParseNoState)      // state data are an error
	ParseLYBModUpdate ParseOptions = ParseOptions(ly.ParseLYBModUpdate) // accept LYB data of other revisions
)

// ValidateOptions control validation.
type ValidateOptions uint8

const (
	ValidateNoState    ValidateOptions = ValidateOptions(ly.ValidateNoState)    // state data are an error
	ValidatePresent    ValidateOptions = ValidateOptions(ly.ValidatePresent)    // only modules with data in the tree
	ValidateMultiError ValidateOptions = ValidateOptions(ly.ValidateMultiError) // report every error
)

// PrintOptions control data printing. At most one of the PrintWD options
// may be set; without one, explicit nodes are printed.
type PrintOptions uint16

const (
	PrintWithSiblings  PrintOptions = PrintOptions(ly.PrintWithSiblings)
	PrintShrink        PrintOptions = PrintOptions(ly.PrintShrink) // no indentation or newlines
	PrintKeepEmptyCont PrintOptions = PrintOptions(ly.PrintKeepEmptyCont)
	PrintWDTrim        PrintOptions = PrintOptions(ly.PrintWDTrim)
	PrintWDAll         PrintOptions = PrintOptions(ly.PrintWDAll)
	PrintWDAllTag      PrintOptions = PrintOptions(ly.PrintWDAllTag)
	PrintWDImplTag     PrintOptions = PrintOptions(ly.PrintWDImplTag)
	PrintUnqualified   PrintOptions = PrintOptions(ly.PrintUnqualified) // JSON member names without module
)

// ParseWithDefaults maps a with-defaults mode name (explicit, trim, all,
// all-tagged, implicit-tagged) to its print option.
func ParseWithDefaults(mode string) (PrintOptions, error) {
	switch mode {
	case "", "explicit":
		return 0, nil
	case "trim":
		return PrintWDTrim, nil
	case "all":
		return PrintWDAll, nil
	case "all-tagged":
		return PrintWDAllTag, nil
	case "implicit-tagged":
		return PrintWDImplTag, nil
	}
	return 0, fmt.Errorf("%w: unknown with-defaults mode %q", ErrInvalidArg, mode)
}

func (o PrintOptions) checkWD() error {
	wd := o & PrintOptions(ly.PrintWDMask)
	if wd&(wd-1) != 0 {
		return fmt.Errorf("%w: more than one with-defaults mode", ErrInvalidArg)
	}
	return nil
}

// DupOptions control Duplicate.
type DupOptions uint8

const (
	DupRecursive    DupOptions = DupOptions(ly.DupRecursive)   // copy the whole subtree
	DupNoMeta       DupOptions = DupOptions(ly.DupNoMeta)      // leave out metadata
	DupWithParents  DupOptions = DupOptions(ly.DupWithParents) // copy the parent chain too
	DupWithFlags    DupOptions = DupOptions(ly.DupWithFlags)   // keep every node flag
	DupWithSiblings DupOptions = 1 << 7                        // copy every sibling of the node too
)

// MergeOptions control Merge.
type MergeOptions uint8

const (
	MergeDestruct     MergeOptions = MergeOptions(ly.MergeDestruct)  // the source is consumed
	MergeDefaults     MergeOptions = MergeOptions(ly.MergeDefaults)  // default source nodes overwrite target nodes
	MergeWithFlags    MergeOptions = MergeOptions(ly.MergeWithFlags) // copy node flags from the source
	MergeWithSiblings MergeOptions = 1 << 7                          // merge the source siblings too
)

// CompareOptions control Equal.
type CompareOptions uint8

const (
	CompareFullRecursion CompareOptions = CompareOptions(ly.CompareFullRecursion)
	CompareDefaults      CompareOptions = CompareOptions(ly.CompareDefaults) // default flags must match too
)

// NewPathOptions control NewPath.
type NewPathOptions uint8

const (
	NewPathUpdate NewPathOptions = NewPathOptions(ly.NewPathUpdate) // change the value of an existing leaf
	NewPathOutput NewPathOptions = NewPathOptions(ly.NewPathOutput) // rpc and action output nodes
	NewPathOpaque NewPathOptions = NewPathOptions(ly.NewPathOpaq)   // unknown nodes become opaque
)

package yangbind

import "github.com/lukeod/yangbind/internal/ly"

// NodeKind is the kind of a schema node. The values are bits so that kinds
// can be combined into masks.
type NodeKind uint16

const (
	NodeContainer    NodeKind = NodeKind(ly.NodeContainer)
	NodeChoice       NodeKind = NodeKind(ly.NodeChoice)
	NodeLeaf         NodeKind = NodeKind(ly.NodeLeaf)
	NodeLeafList     NodeKind = NodeKind(ly.NodeLeafList)
	NodeList         NodeKind = NodeKind(ly.NodeList)
	NodeAnyXML       NodeKind = NodeKind(ly.NodeAnyXML)
	NodeAnyData      NodeKind = NodeKind(ly.NodeAnyData)
	NodeCase         NodeKind = NodeKind(ly.NodeCase)
	NodeRPC          NodeKind = NodeKind(ly.NodeRPC)
	NodeAction       NodeKind = NodeKind(ly.NodeAction)
	NodeNotification NodeKind = NodeKind(ly.NodeNotif)
	NodeInput        NodeKind = NodeKind(ly.NodeInput)
	NodeOutput       NodeKind = NodeKind(ly.NodeOutput)
)

func (k NodeKind) String() string {
	return ly.NodeType(k).String()
}

// IsData returns true for kinds that are instantiated as data nodes.
func (k NodeKind) IsData() bool {
	return ly.NodeType(k)&ly.NodeDataDef != 0
}

// IsOperation returns true for rpcs, actions and notifications.
func (k NodeKind) IsOperation() bool {
	return ly.NodeType(k)&ly.NodeOp != 0
}

// Status is the status statement of a definition.
type Status uint8

const (
	StatusCurrent    Status = 0 // current
	StatusDeprecated Status = 1 // deprecated
	StatusObsolete   Status = 2 // obsolete
)

func (s Status) String() string {
	switch s {
	case StatusCurrent:
		return "current"
	case StatusDeprecated:
		return "deprecated"
	case StatusObsolete:
		return "obsolete"
	default:
		return "unknown"
	}
}

func statusOf(f ly.SFlags) Status {
	switch {
	case f&ly.FlagStatusDeprc != 0:
		return StatusDeprecated
	case f&ly.FlagStatusObslt != 0:
		return StatusObsolete
	default:
		return StatusCurrent
	}
}

// BaseType is the built-in type a type resolves to.
type BaseType uint8

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
	TypeDecimal64
	TypeEmpty
	TypeEnum
	TypeIdentityref
	TypeInstanceID
	TypeLeafref
	TypeUnion
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
)

func (b BaseType) String() string {
	return ly.BaseType(b).String()
}

// IsInteger returns true for the signed and unsigned integer types.
func (b BaseType) IsInteger() bool {
	return b.IsSigned() || b.IsUnsigned()
}

// IsSigned returns true for int8 to int64.
func (b BaseType) IsSigned() bool {
	return b == TypeInt8 || b == TypeInt16 || b == TypeInt32 || b == TypeInt64
}

// IsUnsigned returns true for uint8 to uint64.
func (b BaseType) IsUnsigned() bool {
	return b == TypeUint8 || b == TypeUint16 || b == TypeUint32 || b == TypeUint64
}

// AnyValueType is the representation of an anydata or anyxml value.
type AnyValueType uint8

const (
	AnyDataTree AnyValueType = AnyValueType(ly.AnyDataTree) // a data tree
	AnyString   AnyValueType = AnyValueType(ly.AnyString)   // plain text
	AnyXML      AnyValueType = AnyValueType(ly.AnyXML)      // serialized XML
	AnyJSON     AnyValueType = AnyValueType(ly.AnyJSON)     // serialized JSON
)

func (t AnyValueType) String() string {
	return ly.AnyValueType(t).String()
}

// OpType selects what ParseOp expects.
type OpType uint8

const (
	OpRPC          OpType = OpType(ly.OpRPC)          // rpc or action input
	OpReply        OpType = OpType(ly.OpReply)        // rpc or action output
	OpNotification OpType = OpType(ly.OpNotification) // notification
)

func (o OpType) String() string {
	switch o {
	case OpRPC:
		return "rpc"
	case OpReply:
		return "reply"
	case OpNotification:
		return "notification"
	default:
		return "unknown"
	}
}

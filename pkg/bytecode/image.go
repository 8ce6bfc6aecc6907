// Package bytecode defines the in-memory representation of a compiled Tail
// program (the "Image") and its byte-exact on-disk encoding.
package bytecode

// OpCode identifies a single VM instruction.
type OpCode uint8

const (
	OpPush OpCode = iota + 1
	OpPop
	OpDup

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte

	OpAnd
	OpOr
	OpNot

	OpLoad
	OpStore
	OpLoadGlobal
	OpStoreGlobal

	OpJmp
	OpJmpIf
	OpJmpIfNot

	OpCall
	OpRet
	OpCallNative

	OpPrint
	OpPrintln
	OpRead

	OpNewArray
	OpArrayAlloc
	OpLoadIndex
	OpStoreIndex
	OpArrayLen

	OpHalt OpCode = 0xFF
)

var opNames = map[OpCode]string{
	OpPush: "PUSH", OpPop: "POP", OpDup: "DUP",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpNeg: "NEG",
	OpEq: "EQ", OpNeq: "NEQ", OpLt: "LT", OpLte: "LTE", OpGt: "GT", OpGte: "GTE",
	OpAnd: "AND", OpOr: "OR", OpNot: "NOT",
	OpLoad: "LOAD", OpStore: "STORE", OpLoadGlobal: "LOAD_GLOBAL", OpStoreGlobal: "STORE_GLOBAL",
	OpJmp: "JMP", OpJmpIf: "JMP_IF", OpJmpIfNot: "JMP_IFNOT",
	OpCall: "CALL", OpRet: "RET", OpCallNative: "CALL_NATIVE",
	OpPrint: "PRINT", OpPrintln: "PRINTLN", OpRead: "READ",
	OpNewArray: "NEW_ARRAY", OpArrayAlloc: "ARRAY_ALLOC", OpLoadIndex: "LOAD_INDEX",
	OpStoreIndex: "STORE_INDEX", OpArrayLen: "ARRAY_LEN",
	OpHalt: "HALT",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// JumpSentinel is the placeholder operand a forward jump is emitted with
// before its target is known; backpatching rewrites it to a real code
// index. No jump operand may remain this value once compilation finishes.
const JumpSentinel uint32 = 0xFFFFFFFF

// ReturnSentinel marks the bootstrap call frame's return address: a RET
// reaching it halts the VM instead of returning to a caller.
const ReturnSentinel uint32 = 0xFFFFFFFF

// ValueTag is the closed tag set shared between the compile-time constant
// pool and the VM's runtime Value.
type ValueTag uint8

const (
	TagNil ValueTag = iota
	TagInt
	TagFloat
	TagBool
	TagString
	TagArrayInt
	TagArrayFloat
	TagArrayString
)

// Instruction is one code record: a 1-byte opcode plus a 4-byte operand.
// Unused operand slots are zero.
type Instruction struct {
	Op      OpCode
	Operand uint32
}

// Constant is one constant-pool entry. Only the field matching Tag is
// meaningful; StrIdx is used by both TagString and the three array tags to
// index into Image.Strings (arrays reference their instance through the
// runtime, not through this pool — see pkg/vm/arrays.go).
type Constant struct {
	Tag    ValueTag
	I      int64
	F      float64
	B      bool
	StrIdx uint32
}

// FunctionSym is one function-table entry.
type FunctionSym struct {
	Name    string
	Address uint32
	Arity   uint8
	Locals  uint8
}

// Image is the full compiled artifact: code, the constant and string pools,
// the three (always-empty) literal array pools reserved by the wire format,
// the function symbol table, and the native-import list.
type Image struct {
	Version uint16
	Flags   uint16

	Code      []Instruction
	Constants []Constant
	Strings   []string

	IntArrays    [][]int64
	FloatArrays  [][]float64
	StringArrays [][]string

	Functions     []FunctionSym
	NativeImports []string
}

// NewImage returns an empty Image at the current wire version.
func NewImage() *Image {
	return &Image{Version: 1}
}

// FindFunctionByAddress linearly scans Functions for one whose Address
// matches addr. The reference's own CALL implementation does this linear
// scan at call time; a production VM instead builds an address->FunctionSym
// index once at load (see pkg/vm/vm.go); nothing in this module calls this
// helper.
func (img *Image) FindFunctionByAddress(addr uint32) (FunctionSym, bool) {
	for _, f := range img.Functions {
		if f.Address == addr {
			return f, true
		}
	}
	return FunctionSym{}, false
}

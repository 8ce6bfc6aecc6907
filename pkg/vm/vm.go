// Package vm executes a compiled bytecode.Image.
package vm

import (
	"fmt"

	"tail/pkg/bytecode"
)

// Value is the runtime tagged union. Strings are stored by index into the
// VM's (append-only) string table; arrays are stored by instance id into
// one of the three per-type array tables in arrays.go.
type Value struct {
	Tag      bytecode.ValueTag
	I        int64
	F        float64
	B        bool
	StrIdx   uint32
	ArrayIdx int
}

func NilVal() Value        { return Value{Tag: bytecode.TagNil} }
func IntVal(i int64) Value { return Value{Tag: bytecode.TagInt, I: i} }
func FloatVal(f float64) Value { return Value{Tag: bytecode.TagFloat, F: f} }
func BoolVal(b bool) Value  { return Value{Tag: bytecode.TagBool, B: b} }

// RuntimeError reports a failure that unwound the interpreter loop, per
// §7's requirement that every runtime error include the faulting pc.
type RuntimeError struct {
	PC      uint32
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at pc %d: %s", e.PC, e.Message)
}

func (vm *VM) fail(format string, args ...any) error {
	return &RuntimeError{PC: vm.pc, Message: fmt.Sprintf(format, args...)}
}

// frame is one call-stack record.
type frame struct {
	returnAddr uint32
	localStart int
	argCount   int
	fn         bytecode.FunctionSym
}

// NativeFunc is a host bridge callback. It must pop exactly its own
// arguments off the stack and push exactly one return value (NilVal() if
// none), and must never touch any frame but the current one.
type NativeFunc func(vm *VM) error

// VM is a single-threaded stack machine over one loaded Image.
type VM struct {
	img *bytecode.Image

	pc        uint32
	stack     []Value
	globals   []Value
	locals    []Value
	callStack []frame
	running   bool

	strings []string
	arrays  *arrayTable

	funcByAddr map[uint32]bytecode.FunctionSym
	natives    map[string]NativeFunc

	Trace bool
}

// New constructs a VM over img. Host callbacks are registered afterward via
// RegisterNative; the caller owns the lifetime of img.
func New(img *bytecode.Image) *VM {
	vm := &VM{
		img:        img,
		strings:    append([]string(nil), img.Strings...),
		arrays:     newArrayTable(img),
		funcByAddr: make(map[uint32]bytecode.FunctionSym, len(img.Functions)),
		natives:    make(map[string]NativeFunc),
	}
	for _, f := range img.Functions {
		vm.funcByAddr[f.Address] = f
	}
	return vm
}

// RegisterNative installs or overwrites a host callback under name.
func (vm *VM) RegisterNative(name string, fn NativeFunc) {
	vm.natives[name] = fn
}

func (vm *VM) stringAt(idx uint32) string {
	if int(idx) >= len(vm.strings) {
		return ""
	}
	return vm.strings[idx]
}

// internString appends s to the runtime string table and returns its new
// index — used by arithmetic concatenation and any host callback that
// produces a fresh string value.
func (vm *VM) internString(s string) uint32 {
	idx := uint32(len(vm.strings))
	vm.strings = append(vm.strings, s)
	return idx
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() (Value, error) {
	if len(vm.stack) == 0 {
		return Value{}, vm.fail("stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) peek() (Value, error) {
	if len(vm.stack) == 0 {
		return Value{}, vm.fail("stack underflow")
	}
	return vm.stack[len(vm.stack)-1], nil
}

// Push, Pop, StringVal, StringAt, and Stringify are exported for host
// bridge callbacks (pkg/host), which manipulate the operand stack directly
// per §4.6.1's CALL_NATIVE contract.
func (vm *VM) Push(v Value) { vm.push(v) }

func (vm *VM) Pop() (Value, error) { return vm.pop() }

func (vm *VM) StringVal(s string) Value {
	return Value{Tag: bytecode.TagString, StrIdx: vm.internString(s)}
}

func (vm *VM) StringAt(idx uint32) string { return vm.stringAt(idx) }

func (vm *VM) Stringify(v Value) string { return vm.stringify(v) }

func (vm *VM) Truthy(v Value) bool { return vm.truthy(v) }

// Fail builds a *RuntimeError tagged with the current pc, for use by host
// callbacks that need to report a failure the same way the dispatch loop
// does.
func (vm *VM) Fail(format string, args ...any) error { return vm.fail(format, args...) }

// Init locates Main and pushes the bootstrap frame without running any
// instructions, so callers that want to single-step (cmd/tailmon) can drive
// the loop themselves via Step.
func (vm *VM) Init() error {
	var main bytecode.FunctionSym
	found := false
	for _, f := range vm.img.Functions {
		if f.Name == "Main" {
			main = f
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no Main function in image")
	}

	vm.callStack = []frame{{returnAddr: bytecode.ReturnSentinel, localStart: 0, argCount: 0, fn: main}}
	vm.locals = make([]Value, main.Locals)
	vm.pc = main.Address
	vm.running = true
	return nil
}

// Run locates Main, pushes the bootstrap frame, and executes until HALT, a
// RET from the bootstrap frame, or a runtime error.
func (vm *VM) Run() error {
	if err := vm.Init(); err != nil {
		return err
	}
	for vm.running {
		if err := vm.step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes a single instruction; callers must check Running after each
// call. It is a no-op returning nil once the VM has halted.
func (vm *VM) Step() error {
	if !vm.running {
		return nil
	}
	return vm.step()
}

// Running reports whether the VM is still executing (false after HALT or a
// RET out of the bootstrap frame).
func (vm *VM) Running() bool { return vm.running }

// PC returns the address of the next instruction to execute.
func (vm *VM) PC() uint32 { return vm.pc }

// StackSnapshot returns a copy of the current operand stack, oldest first.
func (vm *VM) StackSnapshot() []Value {
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// GlobalsSnapshot returns a copy of the current global slots.
func (vm *VM) GlobalsSnapshot() []Value {
	out := make([]Value, len(vm.globals))
	copy(out, vm.globals)
	return out
}

// CallDepth reports how many frames are on the call stack, including the
// bootstrap frame.
func (vm *VM) CallDepth() int { return len(vm.callStack) }

// CurrentFunctionName reports the name of the function owning the
// instruction at PC, or "" if unknown.
func (vm *VM) CurrentFunctionName() string {
	if len(vm.callStack) == 0 {
		return ""
	}
	return vm.callStack[len(vm.callStack)-1].fn.Name
}

// InstructionAt returns the decoded instruction at the given address, for
// rendering a short disassembly window around PC.
func (vm *VM) InstructionAt(pc uint32) (bytecode.Instruction, bool) {
	if int(pc) >= len(vm.img.Code) {
		return bytecode.Instruction{}, false
	}
	return vm.img.Code[pc], true
}

// CodeLen reports the number of instructions in the loaded image.
func (vm *VM) CodeLen() int { return len(vm.img.Code) }

// FormatValue renders v the same way PRINT would, for display purposes.
func (vm *VM) FormatValue(v Value) string { return vm.stringify(v) }

// step fetches and executes code[pc], per §4.6's dispatch rule: every
// opcode advances pc by one except JMP*, CALL, and RET, which set it
// directly.
func (vm *VM) step() error {
	if int(vm.pc) >= len(vm.img.Code) {
		return vm.fail("pc out of bounds")
	}
	ins := vm.img.Code[vm.pc]
	if vm.Trace {
		fmt.Printf("pc=%-5d %-12s operand=%d stack=%d\n", vm.pc, ins.Op, ins.Operand, len(vm.stack))
	}
	return vm.execute(ins)
}

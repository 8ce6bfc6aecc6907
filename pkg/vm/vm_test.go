package vm

import (
	"testing"

	"tail/pkg/bytecode"
)

func intConstImage(code []bytecode.Instruction, consts []bytecode.Constant) *bytecode.Image {
	img := bytecode.NewImage()
	img.Code = code
	img.Constants = consts
	img.Functions = []bytecode.FunctionSym{{Name: "Main", Address: 0, Arity: 0, Locals: 0}}
	return img
}

func TestRunSimpleAddition(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 2},
		{Tag: bytecode.TagInt, I: 3},
	})

	m := New(img)
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.StackSnapshot()
	if len(got) != 1 || got[0].I != 5 {
		t.Errorf("got stack %+v", got)
	}
}

func TestDivisionByZeroReportsRuntimeError(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpDiv},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 10},
		{Tag: bytecode.TagInt, I: 0},
	})

	m := New(img)
	err := m.Run()
	if err == nil {
		t.Fatal("expected a division-by-zero error")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	if rerr.PC == 0 {
		t.Error("expected a non-zero faulting pc")
	}
}

func TestMixedIntFloatSubRejected(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpSub},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 2},
		{Tag: bytecode.TagFloat, F: 1.5},
	})

	m := New(img)
	if err := m.Run(); err == nil {
		t.Fatal("expected an error subtracting a float from an int")
	}
}

func TestMixedIntFloatMulRejected(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpMul},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagFloat, F: 2.5},
		{Tag: bytecode.TagInt, I: 2},
	})

	m := New(img)
	if err := m.Run(); err == nil {
		t.Fatal("expected an error multiplying a float by an int")
	}
}

func TestMixedIntFloatDivRejected(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpDiv},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 10},
		{Tag: bytecode.TagFloat, F: 2.0},
	})

	m := New(img)
	if err := m.Run(); err == nil {
		t.Fatal("expected an error dividing an int by a float")
	}
}

func TestMixedIntFloatAddStillPromotes(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 2},
		{Tag: bytecode.TagFloat, F: 1.5},
	})

	m := New(img)
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.StackSnapshot()
	if len(got) != 1 || got[0].Tag != bytecode.TagFloat || got[0].F != 3.5 {
		t.Errorf("got %+v", got)
	}
}

func TestMixedIntFloatComparisonRejected(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpLt},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 1},
		{Tag: bytecode.TagFloat, F: 1.5},
	})

	m := New(img)
	if err := m.Run(); err == nil {
		t.Fatal("expected an error comparing an int to a float")
	}
}

func TestSameTypeFloatComparisonSucceeds(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpLt},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagFloat, F: 1.0},
		{Tag: bytecode.TagFloat, F: 1.5},
	})

	m := New(img)
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.StackSnapshot()
	if len(got) != 1 || got[0].B != true {
		t.Errorf("got %+v", got)
	}
}

func TestUserFunctionCallAndReturn(t *testing.T) {
	img := bytecode.NewImage()
	img.Constants = []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 10},
		{Tag: bytecode.TagInt, I: 32},
	}
	// Double(n) { return n + n; } at address 0.
	// Main() { return Double(32); } at address 4.
	img.Code = []bytecode.Instruction{
		{Op: bytecode.OpLoad, Operand: 0}, // 0: load param n
		{Op: bytecode.OpLoad, Operand: 0}, // 1: load param n again
		{Op: bytecode.OpAdd},              // 2
		{Op: bytecode.OpRet},              // 3
		{Op: bytecode.OpPush, Operand: 1}, // 4: push 32
		{Op: bytecode.OpCall, Operand: 0}, // 5: call Double
		{Op: bytecode.OpRet},              // 6
	}
	img.Functions = []bytecode.FunctionSym{
		{Name: "Double", Address: 0, Arity: 1, Locals: 1},
		{Name: "Main", Address: 4, Arity: 0, Locals: 0},
	}

	m := New(img)
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCallArityMismatch(t *testing.T) {
	img := bytecode.NewImage()
	img.Code = []bytecode.Instruction{
		{Op: bytecode.OpCall, Operand: 0},
		{Op: bytecode.OpRet},
	}
	img.Functions = []bytecode.FunctionSym{
		{Name: "NeedsOne", Address: 0, Arity: 1, Locals: 1},
		{Name: "Main", Address: 1, Arity: 0, Locals: 0},
	}
	// point Main's call instruction at NeedsOne but never push an argument
	m := New(img)
	m.pc = 0
	m.callStack = []frame{{returnAddr: bytecode.ReturnSentinel}}
	m.running = true
	err := m.step()
	if err == nil {
		t.Fatal("expected an arity-mismatch error")
	}
}

func TestStringifiedEqualityAcrossTypes(t *testing.T) {
	img := intConstImage([]bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpEq},
		{Op: bytecode.OpHalt},
	}, []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 7},
		{Tag: bytecode.TagString, StrIdx: 0},
	})
	img.Strings = []string{"7"}

	m := New(img)
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.StackSnapshot()
	if len(got) != 1 || got[0].B != true {
		t.Errorf("expected 7 == \"7\" to be true via stringification, got %+v", got)
	}
}

func TestRegisterNativeAndCallNative(t *testing.T) {
	img := bytecode.NewImage()
	img.Constants = []bytecode.Constant{{Tag: bytecode.TagInt, I: 99}}
	img.Code = []bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpCallNative, Operand: 0},
		{Op: bytecode.OpHalt},
	}
	img.NativeImports = []string{"Test.double"}
	img.Functions = []bytecode.FunctionSym{{Name: "Main", Address: 0}}

	m := New(img)
	m.RegisterNative("Test.double", func(vm *VM) error {
		v, err := vm.Pop()
		if err != nil {
			return err
		}
		vm.Push(IntVal(v.I * 2))
		return nil
	})

	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.StackSnapshot()
	if len(got) != 1 || got[0].I != 198 {
		t.Errorf("got %+v", got)
	}
}

func TestArrayAllocLoadStoreIndex(t *testing.T) {
	img := bytecode.NewImage()
	img.Constants = []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 3},  // size
		{Tag: bytecode.TagInt, I: 1},  // index
		{Tag: bytecode.TagInt, I: 42}, // value
	}
	img.Code = []bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},                                 // push size 3
		{Op: bytecode.OpArrayAlloc, Operand: uint32(bytecode.TagInt)},     // arr
		{Op: bytecode.OpStore, Operand: 0},                                // store local 0
		{Op: bytecode.OpLoad, Operand: 0},                                 // load arr
		{Op: bytecode.OpPush, Operand: 1},                                 // index
		{Op: bytecode.OpPush, Operand: 2},                                 // value
		{Op: bytecode.OpStoreIndex},                                       // arr[1] = 42
		{Op: bytecode.OpLoad, Operand: 0},                                 // load arr
		{Op: bytecode.OpPush, Operand: 1},                                 // index
		{Op: bytecode.OpLoadIndex},                                        // arr[1]
		{Op: bytecode.OpHalt},
	}
	img.Functions = []bytecode.FunctionSym{{Name: "Main", Address: 0, Locals: 1}}

	m := New(img)
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.StackSnapshot()
	if len(got) != 1 || got[0].I != 42 {
		t.Errorf("got %+v", got)
	}
}

func TestArrayLoadIndexOutOfBounds(t *testing.T) {
	img := bytecode.NewImage()
	img.Constants = []bytecode.Constant{
		{Tag: bytecode.TagInt, I: 2},
		{Tag: bytecode.TagInt, I: 5},
	}
	img.Code = []bytecode.Instruction{
		{Op: bytecode.OpPush, Operand: 0},
		{Op: bytecode.OpArrayAlloc, Operand: uint32(bytecode.TagInt)},
		{Op: bytecode.OpPush, Operand: 1},
		{Op: bytecode.OpLoadIndex},
		{Op: bytecode.OpHalt},
	}
	img.Functions = []bytecode.FunctionSym{{Name: "Main", Address: 0}}

	m := New(img)
	if err := m.Run(); err == nil {
		t.Fatal("expected an out-of-bounds error")
	}
}

func TestStepHaltsOnReturnFromBootstrapFrame(t *testing.T) {
	img := bytecode.NewImage()
	img.Code = []bytecode.Instruction{{Op: bytecode.OpRet}}
	img.Functions = []bytecode.FunctionSym{{Name: "Main", Address: 0}}

	m := New(img)
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	if !m.Running() {
		t.Fatal("expected the VM to be running after Init")
	}
	if err := m.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Running() {
		t.Error("expected RET from the bootstrap frame to halt the VM")
	}
}

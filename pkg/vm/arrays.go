package vm

import "tail/pkg/bytecode"

// arrayTable owns the three per-type array-instance stores, mirroring how
// the string table works: a Value of tag TagArrayInt/Float/String carries
// only an instance id, and the actual backing slice lives here. This is the
// complete implementation the reference only stubs (see §9) — NEW_ARRAY,
// ARRAY_ALLOC, LOAD_INDEX, STORE_INDEX, and ARRAY_LEN all operate on real
// instances instead of returning nil/0 unconditionally.
type arrayTable struct {
	ints    [][]int64
	floats  [][]float64
	strings [][]uint32 // each element is a string-table index
}

// newArrayTable seeds the int and float instance stores from the image's
// IntArrays/FloatArrays pools; the image's StringArrays pool is not loaded.
// The compiler emits all three pools empty.
func newArrayTable(img *bytecode.Image) *arrayTable {
	t := &arrayTable{}
	for _, a := range img.IntArrays {
		t.ints = append(t.ints, append([]int64(nil), a...))
	}
	for _, a := range img.FloatArrays {
		t.floats = append(t.floats, append([]float64(nil), a...))
	}
	return t
}

func (t *arrayTable) newInt(size int) int {
	t.ints = append(t.ints, make([]int64, size))
	return len(t.ints) - 1
}

func (t *arrayTable) newFloat(size int) int {
	t.floats = append(t.floats, make([]float64, size))
	return len(t.floats) - 1
}

func (t *arrayTable) newString(size int, fill uint32) int {
	s := make([]uint32, size)
	for i := range s {
		s[i] = fill
	}
	t.strings = append(t.strings, s)
	return len(t.strings) - 1
}

// doNewArrayLiteral implements NEW_ARRAY for an Array(elems) literal: the
// operand is the element count N; the top N stack values (pushed
// left-to-right by the element expressions) are popped and collected into a
// fresh instance, typed by the first element (int, by convention, when N is
// 0 — matching the ArrayDecl empty-array default).
func (vm *VM) doNewArrayLiteral(ins bytecode.Instruction) error {
	n := int(ins.Operand)
	if n < 0 {
		return vm.fail("negative array literal length")
	}
	elems := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		elems[i] = v
	}
	if n == 0 {
		idx := vm.arrays.newInt(0)
		vm.push(Value{Tag: bytecode.TagArrayInt, ArrayIdx: idx})
		return nil
	}

	switch elems[0].Tag {
	case bytecode.TagFloat:
		vals := make([]float64, n)
		for i, e := range elems {
			f, _ := numeric(e)
			vals[i] = f
		}
		t := vm.arrays
		idx := len(t.floats)
		t.floats = append(t.floats, vals)
		vm.push(Value{Tag: bytecode.TagArrayFloat, ArrayIdx: idx})
	case bytecode.TagString:
		vals := make([]uint32, n)
		for i, e := range elems {
			vals[i] = vm.internString(vm.stringify(e))
		}
		t := vm.arrays
		idx := len(t.strings)
		t.strings = append(t.strings, vals)
		vm.push(Value{Tag: bytecode.TagArrayString, ArrayIdx: idx})
	default:
		vals := make([]int64, n)
		for i, e := range elems {
			if e.Tag == bytecode.TagInt {
				vals[i] = e.I
			} else if e.Tag == bytecode.TagBool && e.B {
				vals[i] = 1
			}
		}
		t := vm.arrays
		idx := len(t.ints)
		t.ints = append(t.ints, vals)
		vm.push(Value{Tag: bytecode.TagArrayInt, ArrayIdx: idx})
	}
	return nil
}

// doArrayAlloc implements ARRAY_ALLOC: the operand is the element type tag,
// the operand stack holds the size (int) on top. An ArrayDecl with neither
// a size nor an initializer compiles to a literal size of 0 (see the open
// question in DESIGN.md, resolved as "legal, yields a zero-length array").
func (vm *VM) doArrayAlloc(ins bytecode.Instruction) error {
	sizeVal, err := vm.pop()
	if err != nil {
		return err
	}
	size := 0
	if sizeVal.Tag == bytecode.TagInt {
		size = int(sizeVal.I)
	}
	if size < 0 {
		return vm.fail("negative array size")
	}

	elemTag := bytecode.ValueTag(ins.Operand)
	switch elemTag {
	case bytecode.TagFloat:
		idx := vm.arrays.newFloat(size)
		vm.push(Value{Tag: bytecode.TagArrayFloat, ArrayIdx: idx})
	case bytecode.TagString:
		empty := vm.internString("")
		idx := vm.arrays.newString(size, empty)
		vm.push(Value{Tag: bytecode.TagArrayString, ArrayIdx: idx})
	default:
		idx := vm.arrays.newInt(size)
		vm.push(Value{Tag: bytecode.TagArrayInt, ArrayIdx: idx})
	}
	return nil
}

func (vm *VM) doLoadIndex() error {
	idxVal, err := vm.pop()
	if err != nil {
		return err
	}
	arrVal, err := vm.pop()
	if err != nil {
		return err
	}
	if idxVal.Tag != bytecode.TagInt {
		return vm.fail("array index must be int")
	}
	i := int(idxVal.I)

	switch arrVal.Tag {
	case bytecode.TagArrayInt:
		a, err := vm.arrays.intSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		if i < 0 || i >= len(a) {
			return vm.fail("array index %d out of bounds (len %d)", i, len(a))
		}
		vm.push(IntVal(a[i]))
	case bytecode.TagArrayFloat:
		a, err := vm.arrays.floatSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		if i < 0 || i >= len(a) {
			return vm.fail("array index %d out of bounds (len %d)", i, len(a))
		}
		vm.push(FloatVal(a[i]))
	case bytecode.TagArrayString:
		a, err := vm.arrays.stringSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		if i < 0 || i >= len(a) {
			return vm.fail("array index %d out of bounds (len %d)", i, len(a))
		}
		vm.push(Value{Tag: bytecode.TagString, StrIdx: a[i]})
	default:
		return vm.fail("LOAD_INDEX requires an array operand")
	}
	return nil
}

func (vm *VM) doStoreIndex() error {
	val, err := vm.pop()
	if err != nil {
		return err
	}
	idxVal, err := vm.pop()
	if err != nil {
		return err
	}
	arrVal, err := vm.pop()
	if err != nil {
		return err
	}
	if idxVal.Tag != bytecode.TagInt {
		return vm.fail("array index must be int")
	}
	i := int(idxVal.I)

	switch arrVal.Tag {
	case bytecode.TagArrayInt:
		a, err := vm.arrays.intSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		if i < 0 || i >= len(a) {
			return vm.fail("array index %d out of bounds (len %d)", i, len(a))
		}
		a[i] = val.I
	case bytecode.TagArrayFloat:
		a, err := vm.arrays.floatSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		if i < 0 || i >= len(a) {
			return vm.fail("array index %d out of bounds (len %d)", i, len(a))
		}
		a[i] = val.F
	case bytecode.TagArrayString:
		a, err := vm.arrays.stringSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		if i < 0 || i >= len(a) {
			return vm.fail("array index %d out of bounds (len %d)", i, len(a))
		}
		a[i] = vm.internString(vm.stringify(val))
	default:
		return vm.fail("STORE_INDEX requires an array operand")
	}
	return nil
}

func (vm *VM) doArrayLen() error {
	arrVal, err := vm.pop()
	if err != nil {
		return err
	}
	var n int
	switch arrVal.Tag {
	case bytecode.TagArrayInt:
		a, err := vm.arrays.intSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		n = len(a)
	case bytecode.TagArrayFloat:
		a, err := vm.arrays.floatSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		n = len(a)
	case bytecode.TagArrayString:
		a, err := vm.arrays.stringSlice(arrVal.ArrayIdx)
		if err != nil {
			return vm.fail("%v", err)
		}
		n = len(a)
	default:
		return vm.fail("ARRAY_LEN requires an array operand")
	}
	vm.push(IntVal(int64(n)))
	return nil
}

// NewStringArray creates a fresh array_string instance from elems and
// returns a Value referencing it — used by host callbacks (File.list) that
// need to hand a freshly built array back to a Tail program.
func (vm *VM) NewStringArray(elems []string) Value {
	idx := vm.arrays.newString(len(elems), 0)
	slice, _ := vm.arrays.stringSlice(idx)
	for i, s := range elems {
		slice[i] = vm.internString(s)
	}
	return Value{Tag: bytecode.TagArrayString, ArrayIdx: idx}
}

// ArrayLen exposes ARRAY_LEN's logic to host callbacks (the Array namespace
// registers a native wrapper around the same opcode semantics).
func (vm *VM) ArrayLen(v Value) (int, error) {
	switch v.Tag {
	case bytecode.TagArrayInt:
		a, err := vm.arrays.intSlice(v.ArrayIdx)
		if err != nil {
			return 0, vm.fail("%v", err)
		}
		return len(a), nil
	case bytecode.TagArrayFloat:
		a, err := vm.arrays.floatSlice(v.ArrayIdx)
		if err != nil {
			return 0, vm.fail("%v", err)
		}
		return len(a), nil
	case bytecode.TagArrayString:
		a, err := vm.arrays.stringSlice(v.ArrayIdx)
		if err != nil {
			return 0, vm.fail("%v", err)
		}
		return len(a), nil
	default:
		return 0, vm.fail("ARRAY_LEN requires an array operand")
	}
}

func (t *arrayTable) intSlice(idx int) ([]int64, error) {
	if idx < 0 || idx >= len(t.ints) {
		return nil, arrayBoundsErr(idx)
	}
	return t.ints[idx], nil
}

func (t *arrayTable) floatSlice(idx int) ([]float64, error) {
	if idx < 0 || idx >= len(t.floats) {
		return nil, arrayBoundsErr(idx)
	}
	return t.floats[idx], nil
}

func (t *arrayTable) stringSlice(idx int) ([]uint32, error) {
	if idx < 0 || idx >= len(t.strings) {
		return nil, arrayBoundsErr(idx)
	}
	return t.strings[idx], nil
}

type arrayBoundsErr int

func (e arrayBoundsErr) Error() string {
	return "array instance index out of bounds"
}

package host

import "tail/pkg/vm"

// registerArray installs the Array namespace's one native wrapper. Array
// length is also reachable through ARRAY_LEN directly; the native form is
// reached by `Array.length(a)`. A call like `a.length()` on a variable is
// parsed as a user-function call, not as this native.
func registerArray(machine *vm.VM) {
	machine.RegisterNative("Array.length", arrayLength)
}

func arrayLength(machine *vm.VM) error {
	v, err := machine.Pop()
	if err != nil {
		return err
	}
	n, err := machine.ArrayLen(v)
	if err != nil {
		return err
	}
	machine.Push(vm.IntVal(int64(n)))
	return nil
}

package host

import (
	"tail/pkg/bytecode"
	"tail/pkg/vm"
)

// popString pops a value and renders it through the VM's own
// stringification (the same routine PRINT and == use), so a host callback
// passed a non-string value behaves the same way user-level string
// concatenation would.
func popString(machine *vm.VM) (string, error) {
	v, err := machine.Pop()
	if err != nil {
		return "", err
	}
	return machine.Stringify(v), nil
}

func popInt(machine *vm.VM) (int64, error) {
	v, err := machine.Pop()
	if err != nil {
		return 0, err
	}
	if v.Tag != bytecode.TagInt {
		return 0, machine.Fail("expected int argument")
	}
	return v.I, nil
}

func popFloat(machine *vm.VM) (float64, error) {
	v, err := machine.Pop()
	if err != nil {
		return 0, err
	}
	switch v.Tag {
	case bytecode.TagFloat:
		return v.F, nil
	case bytecode.TagInt:
		return float64(v.I), nil
	default:
		return 0, machine.Fail("expected float argument")
	}
}

// popOptionalString pops a value that may be TagNil (an absent optional
// argument) — used by System.pause and IO.input, both of which accept
// "string or nil".
func popOptionalString(machine *vm.VM) (string, bool, error) {
	v, err := machine.Pop()
	if err != nil {
		return "", false, err
	}
	if v.Tag == bytecode.TagNil {
		return "", false, nil
	}
	return machine.Stringify(v), true, nil
}

package host

import (
	"strings"

	"tail/pkg/vm"
)

func registerString(machine *vm.VM) {
	machine.RegisterNative("String.length", stringLength)
	machine.RegisterNative("String.upper", stringUpper)
	machine.RegisterNative("String.lower", stringLower)
	machine.RegisterNative("String.concat", stringConcat)
	machine.RegisterNative("String.substring", stringSubstring)
	machine.RegisterNative("String.indexOf", stringIndexOf)
	machine.RegisterNative("String.trim", stringTrim)
}

func stringLength(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	machine.Push(vm.IntVal(int64(len(s))))
	return nil
}

func stringUpper(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	machine.Push(machine.StringVal(strings.ToUpper(s)))
	return nil
}

func stringLower(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	machine.Push(machine.StringVal(strings.ToLower(s)))
	return nil
}

func stringConcat(machine *vm.VM) error {
	b, err := popString(machine)
	if err != nil {
		return err
	}
	a, err := popString(machine)
	if err != nil {
		return err
	}
	machine.Push(machine.StringVal(a + b))
	return nil
}

func stringSubstring(machine *vm.VM) error {
	end, err := popInt(machine)
	if err != nil {
		return err
	}
	start, err := popInt(machine)
	if err != nil {
		return err
	}
	s, err := popString(machine)
	if err != nil {
		return err
	}
	if start < 0 || end > int64(len(s)) || start > end {
		return machine.Fail("String.substring: range [%d,%d) out of bounds for length %d", start, end, len(s))
	}
	machine.Push(machine.StringVal(s[start:end]))
	return nil
}

func stringIndexOf(machine *vm.VM) error {
	needle, err := popString(machine)
	if err != nil {
		return err
	}
	s, err := popString(machine)
	if err != nil {
		return err
	}
	machine.Push(vm.IntVal(int64(strings.Index(s, needle))))
	return nil
}

func stringTrim(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	machine.Push(machine.StringVal(strings.TrimSpace(s)))
	return nil
}

package host

import (
	"fmt"
	"strconv"

	"tail/pkg/vm"
)

func registerIO(machine *vm.VM) {
	machine.RegisterNative("IO.input", ioInput)
	machine.RegisterNative("IO.toInt", ioToInt)
	machine.RegisterNative("IO.toFloat", ioToFloat)
}

func ioInput(machine *vm.VM) error {
	prompt, has, err := popOptionalString(machine)
	if err != nil {
		return err
	}
	if has {
		fmt.Print(prompt)
	}
	line, _ := stdin.ReadString('\n')
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	machine.Push(machine.StringVal(line))
	return nil
}

func ioToInt(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	n, convErr := strconv.ParseInt(s, 10, 64)
	if convErr != nil {
		return machine.Fail("IO.toInt: cannot parse %q as int", s)
	}
	machine.Push(vm.IntVal(n))
	return nil
}

func ioToFloat(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	f, convErr := strconv.ParseFloat(s, 64)
	if convErr != nil {
		return machine.Fail("IO.toFloat: cannot parse %q as float", s)
	}
	machine.Push(vm.FloatVal(f))
	return nil
}

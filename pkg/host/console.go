package host

import (
	"bufio"
	"fmt"
	"os"

	"tail/pkg/vm"
)

// stdin is shared by every native that reads a line from the console
// (Console.read, IO.input, System.pause) so two independently-buffered readers never race
// over the same underlying os.Stdin.
var stdin = bufio.NewReader(os.Stdin)

func registerConsole(machine *vm.VM) {
	machine.RegisterNative("Console.print", consolePrint)
	machine.RegisterNative("Console.println", consolePrintln)
	machine.RegisterNative("Console.read", consoleRead)
}

func consolePrint(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	fmt.Print(s)
	machine.Push(vm.NilVal())
	return nil
}

func consolePrintln(machine *vm.VM) error {
	s, err := popString(machine)
	if err != nil {
		return err
	}
	fmt.Println(s)
	machine.Push(vm.NilVal())
	return nil
}

func consoleRead(machine *vm.VM) error {
	line, _ := stdin.ReadString('\n')
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	machine.Push(machine.StringVal(line))
	return nil
}

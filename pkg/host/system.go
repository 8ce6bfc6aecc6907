package host

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"tail/pkg/vm"
)

func registerSystem(machine *vm.VM) {
	machine.RegisterNative("System.command", systemCommand)
	machine.RegisterNative("System.clear", systemClear)
	machine.RegisterNative("System.pause", systemPause)
	machine.RegisterNative("System.platform", systemPlatform)
	machine.RegisterNative("System.env", systemEnv)
}

func systemCommand(machine *vm.VM) error {
	cmdline, err := popString(machine)
	if err != nil {
		return err
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", cmdline)
	} else {
		cmd = exec.Command("sh", "-c", cmdline)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	exitCode := int64(0)
	if runErr := cmd.Run(); runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = int64(exitErr.ExitCode())
		} else {
			exitCode = -1
		}
	}
	machine.Push(vm.IntVal(exitCode))
	return nil
}

func systemClear(machine *vm.VM) error {
	if runtime.GOOS == "windows" {
		fmt.Print("\x1b[2J\x1b[H")
	} else {
		fmt.Print("\x1b[2J\x1b[H")
	}
	machine.Push(vm.NilVal())
	return nil
}

func systemPause(machine *vm.VM) error {
	prompt, has, err := popOptionalString(machine)
	if err != nil {
		return err
	}
	if has {
		fmt.Print(prompt)
	}
	stdin.ReadString('\n')
	machine.Push(vm.NilVal())
	return nil
}

func systemPlatform(machine *vm.VM) error {
	var name string
	switch runtime.GOOS {
	case "windows":
		name = "windows"
	case "darwin":
		name = "macos"
	case "linux":
		name = "linux"
	default:
		name = "unknown"
	}
	machine.Push(machine.StringVal(name))
	return nil
}

func systemEnv(machine *vm.VM) error {
	name, err := popString(machine)
	if err != nil {
		return err
	}
	val, ok := os.LookupEnv(name)
	if !ok {
		machine.Push(vm.NilVal())
		return nil
	}
	machine.Push(machine.StringVal(val))
	return nil
}

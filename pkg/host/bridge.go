// Package host implements the Tail host bridge: the fixed table of
// fully_qualified_name -> callback(*vm.VM) that CALL_NATIVE dispatches
// into.
package host

import "tail/pkg/vm"

// Register installs every built-in host callback on vm. disk backs the
// File.* namespace; a nil disk still registers File.*, but then File.write,
// File.read, File.delete and File.size fail at runtime, File.exists reports
// false and File.list returns an empty array.
func Register(machine *vm.VM, disk *FileStore) {
	registerConsole(machine)
	registerSystem(machine)
	registerIO(machine)
	registerMath(machine)
	registerString(machine)
	registerArray(machine)
	registerFile(machine, disk)
}

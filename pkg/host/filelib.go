package host

import (
	"tail/pkg/vfs"
	"tail/pkg/vm"
)

// FileStore adapts a vfs.VirtualDisk into the backing store for the File.*
// namespace. Content flows through the VM as strings; FileStore does the
// []byte<->string conversion at the boundary.
type FileStore struct {
	disk *vfs.VirtualDisk
}

// NewFileStore wraps a fresh, empty VirtualDisk.
func NewFileStore() *FileStore {
	return &FileStore{disk: vfs.NewVirtualDisk()}
}

// LoadFrom and PersistTo mirror the VirtualDisk methods of the same name,
// letting cmd/tail sync a program's File.* writes to a real host directory
// between runs.
func (fs *FileStore) LoadFrom(path string) error  { return fs.disk.LoadFrom(path) }
func (fs *FileStore) PersistTo(path string) error { return fs.disk.PersistTo(path) }
func (fs *FileStore) Dirty() bool                 { return fs.disk.Dirty }

func registerFile(machine *vm.VM, store *FileStore) {
	machine.RegisterNative("File.write", fileWrite(store))
	machine.RegisterNative("File.read", fileRead(store))
	machine.RegisterNative("File.exists", fileExists(store))
	machine.RegisterNative("File.delete", fileDelete(store))
	machine.RegisterNative("File.size", fileSize(store))
	machine.RegisterNative("File.list", fileList(store))
}

func fileWrite(store *FileStore) vm.NativeFunc {
	return func(machine *vm.VM) error {
		content, err := popString(machine)
		if err != nil {
			return err
		}
		name, err := popString(machine)
		if err != nil {
			return err
		}
		if store == nil || store.disk == nil {
			return machine.Fail("File.write: no filesystem attached")
		}
		if err := store.disk.Write(name, []byte(content)); err != nil {
			return machine.Fail("File.write: %v", err)
		}
		machine.Push(vm.NilVal())
		return nil
	}
}

func fileRead(store *FileStore) vm.NativeFunc {
	return func(machine *vm.VM) error {
		name, err := popString(machine)
		if err != nil {
			return err
		}
		if store == nil || store.disk == nil {
			return machine.Fail("File.read: no filesystem attached")
		}
		data, err := store.disk.Read(name)
		if err != nil {
			return machine.Fail("File.read: %v", err)
		}
		machine.Push(machine.StringVal(string(data)))
		return nil
	}
}

func fileExists(store *FileStore) vm.NativeFunc {
	return func(machine *vm.VM) error {
		name, err := popString(machine)
		if err != nil {
			return err
		}
		exists := false
		if store != nil && store.disk != nil {
			if _, err := store.disk.Size(name); err == nil {
				exists = true
			}
		}
		machine.Push(vm.BoolVal(exists))
		return nil
	}
}

func fileDelete(store *FileStore) vm.NativeFunc {
	return func(machine *vm.VM) error {
		name, err := popString(machine)
		if err != nil {
			return err
		}
		if store == nil || store.disk == nil {
			return machine.Fail("File.delete: no filesystem attached")
		}
		if err := store.disk.Delete(name); err != nil {
			return machine.Fail("File.delete: %v", err)
		}
		machine.Push(vm.NilVal())
		return nil
	}
}

func fileSize(store *FileStore) vm.NativeFunc {
	return func(machine *vm.VM) error {
		name, err := popString(machine)
		if err != nil {
			return err
		}
		if store == nil || store.disk == nil {
			return machine.Fail("File.size: no filesystem attached")
		}
		n, err := store.disk.Size(name)
		if err != nil {
			return machine.Fail("File.size: %v", err)
		}
		machine.Push(vm.IntVal(int64(n)))
		return nil
	}
}

func fileList(store *FileStore) vm.NativeFunc {
	return func(machine *vm.VM) error {
		if store == nil || store.disk == nil {
			machine.Push(machine.NewStringArray(nil))
			return nil
		}
		machine.Push(machine.NewStringArray(store.disk.List()))
		return nil
	}
}

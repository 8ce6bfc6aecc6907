// Command tail loads a .tailc bytecode image and runs it to completion,
// syncing any File.* writes to a host directory alongside the image.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tail/pkg/bytecode"
	"tail/pkg/host"
	"tail/pkg/vm"
)

const diskSyncInterval = 3 * time.Second

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: tail <file.tailc>")
		os.Exit(1)
	}
	imgPath := os.Args[1]

	f, err := os.Open(imgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open %q: %v\n", imgPath, err)
		os.Exit(1)
	}
	img, err := bytecode.Deserialize(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load image %q: %v\n", imgPath, err)
		os.Exit(1)
	}

	machine := vm.New(img)
	machine.Trace = os.Getenv("TAIL_TRACE") == "1"

	diskPath := diskPathFor(imgPath)
	store := host.NewFileStore()
	if err := store.LoadFrom(diskPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load disk image %q: %v\n", diskPath, err)
	}
	host.Register(machine, store)

	stopSync := startDiskSyncer(store, diskPath)
	defer stopSync()

	if err := machine.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stopSync()
		if serr := store.PersistTo(diskPath); serr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to persist disk image: %v\n", serr)
		}
		os.Exit(1)
	}

	stopSync()
	if err := store.PersistTo(diskPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to persist disk image: %v\n", err)
	}
}

func diskPathFor(imgPath string) string {
	ext := filepath.Ext(imgPath)
	return strings.TrimSuffix(imgPath, ext) + ".disk"
}

// startDiskSyncer periodically flushes dirty File.* writes to disk while the
// VM runs, so a long-running program doesn't lose work on a crash. Returns a
// stop function to call when the VM finishes; calls after the first do
// nothing.
func startDiskSyncer(store *host.FileStore, diskPath string) func() {
	ticker := time.NewTicker(diskSyncInterval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if store.Dirty() {
					if err := store.PersistTo(diskPath); err != nil {
						fmt.Fprintf(os.Stderr, "warning: disk sync failed: %v\n", err)
					}
				}
			case <-done:
				return
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		ticker.Stop()
		close(done)
	}
}

// Package reexec lets a binary start a copy of itself under a registered
// entry name, so code can run inside namespaces created by the clone that
// started it.
package reexec

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
)

var (
	mu           sync.Mutex
	initializers = make(map[string]func())
)

// Register binds name to an entry function. Registering a name twice panics.
func Register(name string, entry func()) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := initializers[name]; exists {
		panic(fmt.Sprintf("reexec entry %q registered twice", name))
	}
	initializers[name] = entry
}

// Init runs the entry registered under os.Args[0], if any, and reports
// whether it did. main must call it before doing anything else.
func Init() bool {
	mu.Lock()
	entry, ok := initializers[os.Args[0]]
	mu.Unlock()
	if !ok {
		return false
	}
	entry()
	return true
}

// Self is the path of the running executable.
func Self() string {
	return "/proc/self/exe"
}

// Command returns a command that re-executes the current binary with
// args[0] selecting the registered entry.
func Command(args ...string) *exec.Cmd {
	return &exec.Cmd{
		Path: Self(),
		Args: args,
	}
}

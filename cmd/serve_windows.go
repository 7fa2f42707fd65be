//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs has nothing to do on Windows.
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals are the signals that stop a running server gracefully.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// sigTERM asks a background server to shut down.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL stops a background server that ignored sigTERM.
func sigKILL() syscall.Signal { return syscall.SIGKILL }

//go:build !windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs detaches a background server into its own session.
func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// shutdownSignals are the signals that stop a running server gracefully.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// sigTERM asks a background server to shut down.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL stops a background server that ignored sigTERM.
func sigKILL() syscall.Signal { return syscall.SIGKILL }

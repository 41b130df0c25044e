//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
)

// detach starts the process in a new session so it survives the caller's
// terminal closing
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

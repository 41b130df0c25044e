//go:build windows

package proc

import "os/exec"

// detach is a no-op on windows, which has no polling backend support
func detach(cmd *exec.Cmd) {}

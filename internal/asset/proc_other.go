//go:build !unix

package asset

import "os/exec"

// killGroupOnCancel relies on WaitDelay alone where process groups are not
// available.
func killGroupOnCancel(cmd *exec.Cmd) {}

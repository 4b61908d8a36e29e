//go:build windows

package supervisor

import "os/exec"

// setArgv0 is a no-op on Windows, where the command line is rebuilt from
// Args and renaming argv[0] would change what the child executes.
func setArgv0(_ *exec.Cmd, _ string) {}

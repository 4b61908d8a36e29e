//go:build unix

package supervisor

import "os/exec"

// setArgv0 gives the child a role-tagged argv[0] so process listings
// distinguish workers from the supervisor. The executed path is
// cmd.Path; argv[0] is cosmetic.
func setArgv0(cmd *exec.Cmd, name string) {
	cmd.Args = append([]string{name}, cmd.Args[1:]...)
}

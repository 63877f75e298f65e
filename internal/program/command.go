package program

import (
	"os/exec"
	"strings"
)

// BuildCommand constructs an *exec.Cmd for c. With explicit Args the command
// is executed directly. Without them the command string is split on
// whitespace, or handed to /bin/sh -c when it contains shell
// metacharacters. An explicit "sh -c ..." prefix is honored without adding
// another shell layer.
func (c Config) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(c.Command)
	if len(c.Args) > 0 {
		// #nosec G204
		return exec.Command(cmdStr, c.Args...)
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// parseExplicitShell detects "sh -c <ARG>" or "/bin/sh -c <ARG>" and returns
// ARG with one pair of enclosing quotes stripped.
func parseExplicitShell(cmdStr string) (string, bool) {
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		after, ok := strings.CutPrefix(cmdStr, p)
		if !ok {
			continue
		}
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}

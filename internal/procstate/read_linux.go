//go:build linux

package procstate

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procRoot is swapped in tests.
var procRoot = "/proc"

// ReadState reads the state field of /proc/<pid>/status. The field sits on
// the third line on every kernel since 4.7; older layouts are scanned.
func ReadState(pid int) (State, error) {
	b, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(pid), "status"))
	if err != nil {
		return Unknown, err
	}
	lines := strings.Split(string(b), "\n")
	if len(lines) > 2 && strings.HasPrefix(lines[2], "State:") {
		return ParseStatusLine(lines[2])
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "State:") {
			return ParseStatusLine(l)
		}
	}
	return Unknown, ErrMalformedStatus
}

//go:build darwin

package procstate

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// p_stat values from <sys/proc.h>.
var darwinStates = map[int8]State{
	1: Idle,     // SIDL
	2: Running,  // SRUN
	3: Sleeping, // SSLEEP
	4: Stopped,  // SSTOP
	5: Zombie,   // SZOMB
}

// ReadState asks the kernel for the kinfo_proc record of pid.
func ReadState(pid int) (State, error) {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", pid)
	if err != nil {
		return Unknown, fmt.Errorf("sysctl kern.proc.pid.%d: %w", pid, err)
	}
	if kp.Proc.P_pid != int32(pid) {
		return Unknown, fmt.Errorf("sysctl kern.proc.pid.%d: no such process", pid)
	}
	if st, ok := darwinStates[kp.Proc.P_stat]; ok {
		return st, nil
	}
	return Unknown, nil
}

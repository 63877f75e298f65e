//go:build !linux && !darwin

package procstate

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// ReadState falls back to gopsutil on platforms without a native reader.
func ReadState(pid int) (State, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return Unknown, err
	}
	st, err := p.Status()
	if err != nil {
		return Unknown, err
	}
	if len(st) == 0 {
		return Unknown, nil
	}
	switch st[0] {
	case gopsproc.Running:
		return Running, nil
	case gopsproc.Sleep:
		return Sleeping, nil
	case gopsproc.Wait, gopsproc.Blocked, gopsproc.Lock:
		return WaitingOnIO, nil
	case gopsproc.Zombie:
		return Zombie, nil
	case gopsproc.Stop:
		return Stopped, nil
	case gopsproc.Idle:
		return Idle, nil
	default:
		return Unknown, nil
	}
}

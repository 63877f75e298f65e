package client

import "time"

// Program is one row of GET /programs.
type Program struct {
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Kind      string    `json:"kind"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	ExitedAt  time.Time `json:"exited_at,omitzero"`
	Restarts  int       `json:"restarts"`
	Failed    bool      `json:"failed"`
	Command   string    `json:"command"`
	AutoStart bool      `json:"autostart"`
	Policy    string    `json:"autorestart"`
	Error     string    `json:"error,omitempty"`
}

// Resources is the sampled resource use of a running program.
type Resources struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSS        uint64  `json:"memory_rss"`
	VMS        uint64  `json:"memory_vms"`
	NumThreads int32   `json:"num_threads"`
	NumFDs     int32   `json:"num_fds,omitempty"`
}

// ProgramDetail is the body of GET /programs/:name.
type ProgramDetail struct {
	Program
	Uptime    time.Duration `json:"uptime"`
	Resources *Resources    `json:"resources,omitempty"`
}

// ActionResult is returned by launch, kill and restart.
type ActionResult struct {
	Program string `json:"program"`
	Action  string `json:"action"`
	Forced  bool   `json:"forced,omitempty"`
}

// ReloadResult lists the programs touched by a reload.
type ReloadResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

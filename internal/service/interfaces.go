// Package service holds the control-plane operations that API handlers
// call. Concrete components live in other packages and are wired in main.
package service

import "time"

// SystemInfo contains version and runtime information.
type SystemInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime string    `json:"build_time"`
	StartedAt time.Time `json:"started_at"`
}

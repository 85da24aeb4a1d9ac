package models

import "time"

// RunKind distinguishes the two kinds of roster pass.
type RunKind string

const (
	// RunReseed is the weekly full pass that overwrites baseline equity.
	RunReseed RunKind = "reseed"
	// RunUpdate is the periodic pass that refreshes bucket membership and
	// percentage change without touching baselines.
	RunUpdate RunKind = "update"
)

// RunSummary describes one completed roster pass. The worker publishes the
// latest summary for the read API to expose.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Kind       RunKind   `json:"kind"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Processed  int       `json:"processed"`
	Blown      int       `json:"blown"`
	Purchases  int       `json:"purchases"`
	Plan50k    int       `json:"plan50k"`
	Active     int       `json:"active"`
	Skipped    int       `json:"skipped"`
}

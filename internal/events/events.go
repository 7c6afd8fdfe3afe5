// Package events defines the events published while signing a source tree.
package events

import "time"

// RunStart is emitted before the source tree is walked.
type RunStart struct {
	Root     string
	Strategy string
	Workers  int
}

// RunFinish is emitted after every file has been processed. Signed counts
// files; Operations counts distinct operation names kept after collisions.
type RunFinish struct {
	Root       string
	Files      int
	Signed     int
	Operations int
	Skipped    int
	Failed     int
	Err        error
	Duration   time.Duration
}

// FileStart is emitted by a worker before reading a file.
type FileStart struct {
	Path string
}

// Outcome classifies how a file was handled.
type Outcome string

const (
	OutcomeSigned  Outcome = "signed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FileFinish is emitted by a worker once a file has been handled. Name is
// set when Outcome is OutcomeSigned, Err when it is OutcomeFailed.
type FileFinish struct {
	Path     string
	Name     string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

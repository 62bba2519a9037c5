package model

import (
	"encoding/json"
	"time"
)

// Millis is a duration reported by the external verifier, in fractional
// milliseconds.
type Millis float64

func (m Millis) Duration() time.Duration {
	return time.Duration(float64(m) * float64(time.Millisecond))
}

func (m Millis) String() string {
	return m.Duration().String()
}

// Durations holds the timings measured by the verifier while replaying a log
// file. A nil entry means the verifier could not measure that interval.
type Durations struct {
	ScrambleNetworkLatency  *Millis `json:"scramble_network_latency,omitempty"`
	ScrambleApplication     *Millis `json:"scramble_application,omitempty"`
	Inspection              *Millis `json:"inspection,omitempty"`
	Speedsolve              *Millis `json:"speedsolve,omitempty"`
	Memo                    *Millis `json:"memo,omitempty"`
	Blindsolve              *Millis `json:"blindsolve,omitempty"`
	TimestampNetworkLatency *Millis `json:"timestamp_network_latency,omitempty"`
}

type VerifiedTimestamps struct {
	Completion *time.Time `json:"completion,omitempty"`
}

// VerificationFacts is the structured report produced by one run of the
// external verifier on a solve's log file. It is immutable evidence: the raw
// JSON is persisted verbatim on the solve regardless of the outcome.
type VerificationFacts struct {
	PuzzleCanonicalID  string             `json:"puzzle_canonical_id"`
	Durations          Durations          `json:"durations"`
	VerifiedTimestamps VerifiedTimestamps `json:"verified_timestamps"`
	UsedFilters        bool               `json:"used_filters"`
	UsedMacros         bool               `json:"used_macros"`
	// SolutionSTM is an arbitrary-precision move count; it may not fit the
	// solve record's bounded move_count column.
	SolutionSTM json.Number `json:"solution_stm"`
	Errors      []string    `json:"errors,omitempty"`
}

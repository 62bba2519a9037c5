package autoverify

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"polyboard/internal/common"
	"polyboard/internal/domain/model"
)

const (
	// MaxTrustedNetworkLatency is the maximum network latency to allow before
	// requiring manual review of a speedsolve submission.
	MaxTrustedNetworkLatency = 5 * time.Second
	// MaxInspectionTime is the maximum inspection time to allow before
	// requiring manual review of a speedsolve submission.
	MaxInspectionTime = 60 * time.Second
	// MaxScrambleApplicationTime is the maximum time allowed for scrambling a
	// puzzle before requiring manual review of a speedsolve submission.
	MaxScrambleApplicationTime = 5 * time.Second
	// MaxUploadGap is the maximum time to allow between a solve's completion
	// and its upload, unless the solve completion was timestamped.
	MaxUploadGap = 48 * time.Hour
)

// Decision is the outcome of running the decision engine on one solve.
// ReasonsTotal blocks autoverification on both axes; ReasonsSpeed blocks only
// the speed verdict. The reasons are data, not errors: they become the audit
// log comment and leave the solve pending.
type Decision struct {
	Fields       model.SolveFields
	ReasonsTotal []string
	ReasonsSpeed []string
	AuditComment string
	VerifyFMC    bool
	VerifySpeed  bool
}

// Engine computes autoverification decisions. It performs no I/O; the worker
// applies the resulting field update and verdicts afterwards.
type Engine struct {
	// TrustedProgramAbbr is the only program whose log files can be
	// autoverified.
	TrustedProgramAbbr string
}

func NewEngine(trustedProgramAbbr string) *Engine {
	return &Engine{TrustedProgramAbbr: trustedProgramAbbr}
}

// Decide builds the candidate field update for a solve from the verifier's
// facts, accumulating disqualification reasons per field. puzzleID is the
// already-resolved internal id for the facts' canonical puzzle. rawFacts is
// persisted verbatim on the solve for forensic replay.
//
// An average solve is a hard error: averages can never reach
// autoverification, so nothing else is worth computing.
func (e *Engine) Decide(solve *model.Solve, puzzleID int64, facts *model.VerificationFacts, rawFacts json.RawMessage) (*Decision, error) {
	if solve.Flags.Average {
		return nil, common.ErrAverageSolve
	}

	var reasonsTotal, reasonsSpeed []string
	d := facts.Durations

	fields := model.SolveFields{
		PuzzleID:         puzzleID,
		SolverID:         solve.Solver.ID,
		ModeratorNotes:   solve.ModeratorNotes,
		AutoVerifyOutput: rawFacts,
		Average:          solve.Flags.Average,
		Blind:            d.Blindsolve != nil,
		Filters:          facts.UsedFilters,
		Macros:           facts.UsedMacros,
		ComputerAssisted: solve.Flags.ComputerAssisted, // we trust
	}

	if solve.Variant != nil {
		reasonsTotal = append(reasonsTotal, "Variants require manual review")
		v := solve.Variant.ID
		fields.VariantID = &v
	}

	fields.ProgramID = solve.Program.ID
	if solve.Program.Abbreviation != e.TrustedProgramAbbr {
		reasonsTotal = append(reasonsTotal,
			fmt.Sprintf("Programs other than %s require manual review", e.TrustedProgramAbbr))
	}

	if c := facts.VerifiedTimestamps.Completion; c != nil {
		fields.SolveDate = *c
	} else {
		if solve.SolveDate.Before(solve.UploadDate.Add(-MaxUploadGap)) {
			days := int64(solve.UploadDate.Sub(solve.SolveDate).Hours() / 24)
			reasonsTotal = append(reasonsTotal,
				fmt.Sprintf("Solve was uploaded %d days after claimed completion date", days))
		}
		fields.SolveDate = solve.SolveDate
		if solve.UploadDate.Before(fields.SolveDate) {
			fields.SolveDate = solve.UploadDate
		}
	}

	if solve.SolverNotes != "" {
		reasonsTotal = append(reasonsTotal, "Solver note requires manual review")
	}
	fields.SolverNotes = solve.SolverNotes

	fields.OneHanded = solve.Flags.OneHanded
	if solve.Flags.OneHanded {
		reasonsTotal = append(reasonsTotal, "One-handed solve requires manual review")
	}

	fields.MoveCount = moveCountFromNumber(facts.SolutionSTM)

	fields.SpeedCs = centisecondsFrom(first(d.Blindsolve, d.Speedsolve))
	if fields.SpeedCs == nil {
		if solve.SpeedCs != nil {
			reasonsSpeed = append(reasonsSpeed, "Speedsolve autoverification failed")
		}
		fields.SpeedCs = solve.SpeedCs
	}

	if d.Blindsolve != nil {
		fields.MemoCs = centisecondsFrom(d.Memo)
	}
	if fields.MemoCs == nil {
		if solve.MemoCs != nil {
			reasonsSpeed = append(reasonsSpeed, "Memorization time requires manual review")
		}
		fields.MemoCs = solve.MemoCs
	}

	fields.LogFile = nil // don't change
	fields.VideoURL = solve.VideoURL
	if solve.VideoURL != nil {
		reasonsTotal = append(reasonsTotal, "Video requires manual review")
	}

	// The timing checks only gate the speed verdict, so they run even for
	// FMC-only solves.
	for _, check := range []struct {
		name string
		dur  *model.Millis
		max  time.Duration
	}{
		{"Scramble network latency", d.ScrambleNetworkLatency, MaxTrustedNetworkLatency},
		{"Scramble application time", d.ScrambleApplication, MaxScrambleApplicationTime},
		{"Inspection time", d.Inspection, MaxInspectionTime},
		{"Timestamp network latency", d.TimestampNetworkLatency, MaxTrustedNetworkLatency},
	} {
		switch {
		case check.dur == nil:
			reasonsSpeed = append(reasonsSpeed, fmt.Sprintf("%s unknown", check.name))
		case check.dur.Duration() > check.max:
			reasonsSpeed = append(reasonsSpeed, fmt.Sprintf("%s was %s", check.name, check.dur))
		}
	}

	var lines []string
	lines = append(lines, reasonsTotal...)
	lines = append(lines, reasonsSpeed...)
	lines = append(lines, facts.Errors...)
	comment := strings.Join(lines, "\n")
	if comment != "" {
		comment = "Unable to autoverify:\n" + comment
	}

	return &Decision{
		Fields:       fields,
		ReasonsTotal: reasonsTotal,
		ReasonsSpeed: reasonsSpeed,
		AuditComment: comment,
		VerifyFMC:    fields.MoveCount != nil && len(reasonsTotal) == 0,
		VerifySpeed:  fields.SpeedCs != nil && len(reasonsTotal) == 0 && len(reasonsSpeed) == 0,
	}, nil
}

// moveCountFromNumber converts the verifier's arbitrary-precision move count
// to the record's bounded column. A count that does not fit is treated as
// absent.
func moveCountFromNumber(n json.Number) *int32 {
	if n == "" {
		return nil
	}
	v, err := strconv.ParseInt(n.String(), 10, 32)
	if err != nil {
		return nil
	}
	mc := int32(v)
	return &mc
}

// centisecondsFrom converts a measured duration to centiseconds, truncating
// toward zero. Values that overflow the centisecond column count as absent.
func centisecondsFrom(m *model.Millis) *int32 {
	if m == nil {
		return nil
	}
	cs := int64(*m) / 10
	if cs > math.MaxInt32 || cs < math.MinInt32 {
		return nil
	}
	out := int32(cs)
	return &out
}

func first(a, b *model.Millis) *model.Millis {
	if a != nil {
		return a
	}
	return b
}

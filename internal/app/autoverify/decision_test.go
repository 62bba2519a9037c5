package autoverify

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"polyboard/internal/common"
	"polyboard/internal/domain/model"
)

const testPuzzleID = int64(9)

func ms(v float64) *model.Millis {
	m := model.Millis(v)
	return &m
}

// cleanSolve returns a solve that passes every check: trusted program, no
// variant, no notes, no video, uploaded promptly.
func cleanSolve() *model.Solve {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.Solve{
		ID:         42,
		Solver:     model.PublicUser{ID: "u1", Username: "solver"},
		Puzzle:     model.Puzzle{ID: 1, Name: "Other"},
		Program:    model.Program{ID: 2, Abbreviation: "HSC2"},
		SolveDate:  now.Add(-time.Hour),
		UploadDate: now,
		HasLogFile: true,
	}
}

// cleanFacts returns verifier output with every timing inside its threshold.
func cleanFacts() *model.VerificationFacts {
	completion := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	return &model.VerificationFacts{
		PuzzleCanonicalID: "ft_cube:3",
		Durations: model.Durations{
			ScrambleNetworkLatency:  ms(120),
			ScrambleApplication:     ms(800),
			Inspection:              ms(9000),
			Speedsolve:              ms(1234.567),
			TimestampNetworkLatency: ms(250),
		},
		VerifiedTimestamps: model.VerifiedTimestamps{Completion: &completion},
		SolutionSTM:        json.Number("100"),
	}
}

func decide(t *testing.T, solve *model.Solve, facts *model.VerificationFacts) *Decision {
	t.Helper()
	d, err := NewEngine("HSC2").Decide(solve, testPuzzleID, facts, nil)
	if err != nil {
		t.Fatalf("Decide() error: %v", err)
	}
	return d
}

func TestDecideCleanSolve(t *testing.T) {
	d := decide(t, cleanSolve(), cleanFacts())

	if len(d.ReasonsTotal) != 0 || len(d.ReasonsSpeed) != 0 {
		t.Fatalf("unexpected reasons: total=%v speed=%v", d.ReasonsTotal, d.ReasonsSpeed)
	}
	if !d.VerifyFMC {
		t.Error("VerifyFMC = false, want true")
	}
	if !d.VerifySpeed {
		t.Error("VerifySpeed = false, want true")
	}
	if d.AuditComment != "" {
		t.Errorf("AuditComment = %q, want empty", d.AuditComment)
	}
	if d.Fields.PuzzleID != testPuzzleID {
		t.Errorf("PuzzleID = %d, want %d", d.Fields.PuzzleID, testPuzzleID)
	}
}

func TestDecideSpeedTruncatesToCentiseconds(t *testing.T) {
	d := decide(t, cleanSolve(), cleanFacts())

	if d.Fields.SpeedCs == nil {
		t.Fatal("SpeedCs = nil")
	}
	// 1234.567ms = 123.4567cs, truncated toward zero.
	if *d.Fields.SpeedCs != 123 {
		t.Errorf("SpeedCs = %d, want 123", *d.Fields.SpeedCs)
	}
}

func TestDecideAverageSolveIsHardError(t *testing.T) {
	solve := cleanSolve()
	solve.Flags.Average = true

	_, err := NewEngine("HSC2").Decide(solve, testPuzzleID, cleanFacts(), nil)
	if !errors.Is(err, common.ErrAverageSolve) {
		t.Fatalf("Decide() error = %v, want ErrAverageSolve", err)
	}
}

func TestDecideUntrustedProgram(t *testing.T) {
	solve := cleanSolve()
	solve.Program.Abbreviation = "X"

	d := decide(t, solve, cleanFacts())
	want := "Programs other than HSC2 require manual review"
	if len(d.ReasonsTotal) != 1 || d.ReasonsTotal[0] != want {
		t.Fatalf("ReasonsTotal = %v, want [%q]", d.ReasonsTotal, want)
	}
	if d.VerifyFMC || d.VerifySpeed {
		t.Error("verdicts should be withheld for untrusted program")
	}
}

func TestDecideVariantBlocksEverything(t *testing.T) {
	solve := cleanSolve()
	solve.Variant = &model.Variant{ID: 5, Name: "physical"}

	d := decide(t, solve, cleanFacts())
	if len(d.ReasonsTotal) == 0 || d.ReasonsTotal[0] != "Variants require manual review" {
		t.Fatalf("ReasonsTotal = %v", d.ReasonsTotal)
	}
	if d.Fields.VariantID == nil || *d.Fields.VariantID != 5 {
		t.Error("variant id not carried through")
	}
}

func TestDecideThresholdBoundaries(t *testing.T) {
	// Exactly at the limit passes; strictly above it does not.
	cases := []struct {
		name   string
		set    func(*model.Durations, *model.Millis)
		limit  float64
		reason string
	}{
		{"scramble latency", func(d *model.Durations, v *model.Millis) { d.ScrambleNetworkLatency = v }, 5000, "Scramble network latency"},
		{"scramble application", func(d *model.Durations, v *model.Millis) { d.ScrambleApplication = v }, 5000, "Scramble application time"},
		{"inspection", func(d *model.Durations, v *model.Millis) { d.Inspection = v }, 60000, "Inspection time"},
		{"timestamp latency", func(d *model.Durations, v *model.Millis) { d.TimestampNetworkLatency = v }, 5000, "Timestamp network latency"},
	}

	for _, tc := range cases {
		t.Run(tc.name+" at limit", func(t *testing.T) {
			facts := cleanFacts()
			tc.set(&facts.Durations, ms(tc.limit))
			d := decide(t, cleanSolve(), facts)
			if len(d.ReasonsSpeed) != 0 {
				t.Errorf("ReasonsSpeed = %v, want none at exactly the limit", d.ReasonsSpeed)
			}
		})
		t.Run(tc.name+" above limit", func(t *testing.T) {
			facts := cleanFacts()
			tc.set(&facts.Durations, ms(tc.limit+1))
			d := decide(t, cleanSolve(), facts)
			if len(d.ReasonsSpeed) != 1 || !strings.HasPrefix(d.ReasonsSpeed[0], tc.reason+" was ") {
				t.Errorf("ReasonsSpeed = %v, want one %q reason", d.ReasonsSpeed, tc.reason)
			}
			if d.VerifySpeed {
				t.Error("VerifySpeed = true, want false")
			}
			if !d.VerifyFMC {
				t.Error("VerifyFMC = false; timing reasons must not block the FMC verdict")
			}
		})
	}
}

func TestDecideMissingTimingBlocksSpeedOnly(t *testing.T) {
	facts := cleanFacts()
	facts.Durations.Inspection = nil

	d := decide(t, cleanSolve(), facts)
	if len(d.ReasonsSpeed) != 1 || d.ReasonsSpeed[0] != "Inspection time unknown" {
		t.Fatalf("ReasonsSpeed = %v", d.ReasonsSpeed)
	}
	if !d.VerifyFMC || d.VerifySpeed {
		t.Errorf("verdicts = fmc:%v speed:%v, want fmc only", d.VerifyFMC, d.VerifySpeed)
	}
}

func TestDecideUploadGap(t *testing.T) {
	// Without a verified completion timestamp, the claimed solve date must be
	// within 48h of the upload.
	solve := cleanSolve()
	facts := cleanFacts()
	facts.VerifiedTimestamps.Completion = nil

	solve.SolveDate = solve.UploadDate.Add(-48 * time.Hour)
	d := decide(t, solve, facts)
	if len(d.ReasonsTotal) != 0 {
		t.Errorf("ReasonsTotal = %v, want none at exactly 48h", d.ReasonsTotal)
	}

	solve.SolveDate = solve.UploadDate.Add(-48*time.Hour - time.Second)
	d = decide(t, solve, facts)
	want := "Solve was uploaded 2 days after claimed completion date"
	if len(d.ReasonsTotal) != 1 || d.ReasonsTotal[0] != want {
		t.Errorf("ReasonsTotal = %v, want [%q]", d.ReasonsTotal, want)
	}
}

func TestDecideVerifiedTimestampSkipsUploadGap(t *testing.T) {
	solve := cleanSolve()
	solve.SolveDate = solve.UploadDate.Add(-30 * 24 * time.Hour)

	d := decide(t, solve, cleanFacts())
	if len(d.ReasonsTotal) != 0 {
		t.Errorf("ReasonsTotal = %v, want none with verified timestamp", d.ReasonsTotal)
	}
	want := *cleanFacts().VerifiedTimestamps.Completion
	if !d.Fields.SolveDate.Equal(want) {
		t.Errorf("SolveDate = %v, want verified completion %v", d.Fields.SolveDate, want)
	}
}

func TestDecideSolverNoteAndVideo(t *testing.T) {
	solve := cleanSolve()
	solve.SolverNotes = "first try!"
	video := "https://example.com/v"
	solve.VideoURL = &video

	d := decide(t, solve, cleanFacts())
	wantReasons := map[string]bool{
		"Solver note requires manual review": false,
		"Video requires manual review":       false,
	}
	for _, r := range d.ReasonsTotal {
		if _, ok := wantReasons[r]; ok {
			wantReasons[r] = true
		}
	}
	for r, seen := range wantReasons {
		if !seen {
			t.Errorf("missing reason %q in %v", r, d.ReasonsTotal)
		}
	}
	if d.Fields.VideoURL == nil || *d.Fields.VideoURL != video {
		t.Error("video url not carried through")
	}
}

func TestDecideOneHanded(t *testing.T) {
	solve := cleanSolve()
	solve.Flags.OneHanded = true

	d := decide(t, solve, cleanFacts())
	if len(d.ReasonsTotal) != 1 || d.ReasonsTotal[0] != "One-handed solve requires manual review" {
		t.Fatalf("ReasonsTotal = %v", d.ReasonsTotal)
	}
	if !d.Fields.OneHanded {
		t.Error("OneHanded flag not carried through")
	}
}

func TestDecideMoveCountOverflowDropsSilently(t *testing.T) {
	// A move count outside int32 is dropped without any reason; the FMC
	// verdict is simply withheld.
	facts := cleanFacts()
	facts.SolutionSTM = json.Number("3000000000")

	d := decide(t, cleanSolve(), facts)
	if d.Fields.MoveCount != nil {
		t.Errorf("MoveCount = %d, want nil", *d.Fields.MoveCount)
	}
	if d.VerifyFMC {
		t.Error("VerifyFMC = true, want false")
	}
	if len(d.ReasonsTotal) != 0 || len(d.ReasonsSpeed) != 0 {
		t.Errorf("overflow must not add reasons: total=%v speed=%v", d.ReasonsTotal, d.ReasonsSpeed)
	}
	if !d.VerifySpeed {
		t.Error("VerifySpeed = false; missing move count must not block the speed verdict")
	}
}

func TestDecideBlindsolveTakesPriority(t *testing.T) {
	facts := cleanFacts()
	facts.Durations.Blindsolve = ms(20000)
	facts.Durations.Memo = ms(5000)

	d := decide(t, cleanSolve(), facts)
	if d.Fields.SpeedCs == nil || *d.Fields.SpeedCs != 2000 {
		t.Fatalf("SpeedCs = %v, want 2000 (from blindsolve duration)", d.Fields.SpeedCs)
	}
	if d.Fields.MemoCs == nil || *d.Fields.MemoCs != 500 {
		t.Fatalf("MemoCs = %v, want 500", d.Fields.MemoCs)
	}
	if !d.Fields.Blind {
		t.Error("Blind flag not derived from blindsolve duration")
	}
}

func TestDecideSpeedFallbackToStoredValue(t *testing.T) {
	// The verifier measured no speed, but the record already has one: keep it
	// and flag the speed verdict.
	solve := cleanSolve()
	stored := int32(777)
	solve.SpeedCs = &stored

	facts := cleanFacts()
	facts.Durations.Speedsolve = nil

	d := decide(t, solve, facts)
	if d.Fields.SpeedCs == nil || *d.Fields.SpeedCs != 777 {
		t.Fatalf("SpeedCs = %v, want stored 777", d.Fields.SpeedCs)
	}
	found := false
	for _, r := range d.ReasonsSpeed {
		if r == "Speedsolve autoverification failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("ReasonsSpeed = %v, missing speedsolve failure reason", d.ReasonsSpeed)
	}
}

func TestDecideAuditComment(t *testing.T) {
	solve := cleanSolve()
	solve.SolverNotes = "note"
	facts := cleanFacts()
	facts.Durations.Inspection = nil
	facts.Errors = []string{"scramble mismatch at move 3"}

	d := decide(t, solve, facts)
	want := "Unable to autoverify:\n" +
		"Solver note requires manual review\n" +
		"Inspection time unknown\n" +
		"scramble mismatch at move 3"
	if d.AuditComment != want {
		t.Errorf("AuditComment = %q, want %q", d.AuditComment, want)
	}
}

func TestDecideIsPure(t *testing.T) {
	solve := cleanSolve()
	facts := cleanFacts()

	first := decide(t, solve, facts)
	second := decide(t, solve, facts)

	if first.AuditComment != second.AuditComment ||
		first.VerifyFMC != second.VerifyFMC ||
		first.VerifySpeed != second.VerifySpeed {
		t.Error("Decide is not deterministic for identical inputs")
	}
	if solve.SolverNotes != "" || solve.MoveCount != nil {
		t.Error("Decide mutated its input solve")
	}
}

package autoverify

import (
	"strings"
	"testing"
)

func TestParseVerifierOutput(t *testing.T) {
	stdout := []byte(`[{
		"puzzle_canonical_id": "ft_cube:3",
		"durations": {"speedsolve": 1234.567, "inspection": 9000},
		"verified_timestamps": {},
		"used_filters": true,
		"solution_stm": 105
	}]`)

	facts, raw, err := ParseVerifierOutput(stdout, nil)
	if err != nil {
		t.Fatalf("ParseVerifierOutput() error: %v", err)
	}
	if facts.PuzzleCanonicalID != "ft_cube:3" {
		t.Errorf("PuzzleCanonicalID = %q", facts.PuzzleCanonicalID)
	}
	if facts.Durations.Speedsolve == nil || *facts.Durations.Speedsolve != 1234.567 {
		t.Errorf("Speedsolve = %v, want 1234.567", facts.Durations.Speedsolve)
	}
	if !facts.UsedFilters {
		t.Error("UsedFilters = false")
	}
	if facts.SolutionSTM.String() != "105" {
		t.Errorf("SolutionSTM = %q, want 105", facts.SolutionSTM)
	}
	if len(raw) == 0 {
		t.Error("raw report not returned")
	}
}

func TestParseVerifierOutputFirstOfMany(t *testing.T) {
	stdout := []byte(`[{"puzzle_canonical_id": "a"}, {"puzzle_canonical_id": "b"}]`)

	facts, _, err := ParseVerifierOutput(stdout, nil)
	if err != nil {
		t.Fatalf("ParseVerifierOutput() error: %v", err)
	}
	if facts.PuzzleCanonicalID != "a" {
		t.Errorf("PuzzleCanonicalID = %q, want first report", facts.PuzzleCanonicalID)
	}
}

func TestParseVerifierOutputEmptyArray(t *testing.T) {
	_, _, err := ParseVerifierOutput([]byte(`[]`), []byte("replay crashed"))
	if err == nil {
		t.Fatal("ParseVerifierOutput() = nil error for empty array")
	}
	if !strings.Contains(err.Error(), "replay crashed") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

func TestParseVerifierOutputMalformed(t *testing.T) {
	_, _, err := ParseVerifierOutput([]byte(`not json`), []byte("boom"))
	if err == nil {
		t.Fatal("ParseVerifierOutput() = nil error for malformed output")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

package service

import (
	"testing"
	"time"

	"polyboard/internal/domain/model"
)

func TestDiffSolveFields(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := &model.Solve{
		ID:        42,
		Solver:    model.PublicUser{ID: "u1"},
		Puzzle:    model.Puzzle{ID: 1},
		Program:   model.Program{ID: 2},
		SolveDate: now,
	}

	updated := model.SolveFieldsFrom(old)
	updated.PuzzleID = 9
	mc := int32(100)
	updated.MoveCount = &mc

	diff := diffSolveFields(old, updated)

	if got := diff["puzzle_id"]; got != [2]string{"1", "9"} {
		t.Errorf("puzzle_id diff = %v", got)
	}
	if got := diff["move_count"]; got != [2]string{"none", "100"} {
		t.Errorf("move_count diff = %v", got)
	}
	if _, ok := diff["program_id"]; ok {
		t.Error("unchanged program_id must not appear in the diff")
	}
	if _, ok := diff["solve_date"]; ok {
		t.Error("unchanged solve_date must not appear in the diff")
	}
}

func TestDiffSolveFieldsNoChanges(t *testing.T) {
	old := &model.Solve{
		ID:      42,
		Solver:  model.PublicUser{ID: "u1"},
		Puzzle:  model.Puzzle{ID: 1},
		Program: model.Program{ID: 2},
	}

	diff := diffSolveFields(old, model.SolveFieldsFrom(old))
	if len(diff) != 0 {
		t.Errorf("diff = %v, want empty", diff)
	}
}

func TestDiffSolveFieldsLogFileReplacement(t *testing.T) {
	old := &model.Solve{
		ID:         42,
		Solver:     model.PublicUser{ID: "u1"},
		Puzzle:     model.Puzzle{ID: 1},
		Program:    model.Program{ID: 2},
		HasLogFile: true,
	}

	updated := model.SolveFieldsFrom(old)
	updated.LogFile = &model.LogFile{Name: "solve.log", Contents: []byte("data")}

	diff := diffSolveFields(old, updated)
	if got, ok := diff["log_file"]; !ok || got[0] != "present" {
		t.Errorf("log_file diff = %v, want replacement of present file", got)
	}
}

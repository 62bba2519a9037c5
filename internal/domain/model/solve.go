package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// SolveID is assigned by the database at submission time and is stable
// afterwards.
type SolveID int64

func (id SolveID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type SolveFlags struct {
	Average          bool `json:"average"`
	Blind            bool `json:"blind"`
	Filters          bool `json:"filters"`
	Macros           bool `json:"macros"`
	OneHanded        bool `json:"one_handed"`
	ComputerAssisted bool `json:"computer_assisted"`
}

// Solve is the full view of a solve record, joined with its puzzle, program
// and solver rows.
type Solve struct {
	ID              SolveID    `json:"id"`
	Solver          PublicUser `json:"solver"`
	Puzzle          Puzzle     `json:"puzzle"`
	Variant         *Variant   `json:"variant,omitempty"`
	Program         Program    `json:"program"`
	SolveDate       time.Time  `json:"solve_date"`
	UploadDate      time.Time  `json:"upload_date"`
	SolverNotes     string     `json:"solver_notes"`
	ModeratorNotes  string     `json:"moderator_notes"`
	Flags           SolveFlags `json:"flags"`
	MoveCount       *int32     `json:"move_count,omitempty"`
	SpeedCs         *int32     `json:"speed_cs,omitempty"`
	MemoCs          *int32     `json:"memo_cs,omitempty"`
	FmcVerified     *bool      `json:"fmc_verified,omitempty"`
	FmcVerifiedBy   *string    `json:"fmc_verified_by,omitempty"`
	SpeedVerified   *bool      `json:"speed_verified,omitempty"`
	SpeedVerifiedBy *string    `json:"speed_verified_by,omitempty"`
	HasLogFile      bool       `json:"has_log_file"`
	ScrambleSeed    *string    `json:"scramble_seed,omitempty"`
	VideoURL        *string    `json:"video_url,omitempty"`
}

// PendingReview reports whether any score axis with data is still awaiting a
// verification verdict.
func (s *Solve) PendingReview() bool {
	return (s.MoveCount != nil && s.FmcVerified == nil) ||
		(s.SpeedCs != nil && s.SpeedVerified == nil)
}

// LogFile is an uploaded evidence blob.
type LogFile struct {
	Name     string `json:"name"`
	Contents []byte `json:"-"`
}

// SolveFields is the writable portion of a solve row. A nil LogFile means
// "leave the stored log file untouched".
type SolveFields struct {
	PuzzleID         int64           `json:"puzzle_id"`
	VariantID        *int64          `json:"variant_id,omitempty"`
	ProgramID        int64           `json:"program_id"`
	SolverID         string          `json:"solver_id"`
	SolveDate        time.Time       `json:"solve_date"`
	SolverNotes      string          `json:"solver_notes"`
	ModeratorNotes   string          `json:"moderator_notes"`
	AutoVerifyOutput json.RawMessage `json:"auto_verify_output,omitempty"`
	Average          bool            `json:"average"`
	Blind            bool            `json:"blind"`
	Filters          bool            `json:"filters"`
	Macros           bool            `json:"macros"`
	OneHanded        bool            `json:"one_handed"`
	ComputerAssisted bool            `json:"computer_assisted"`
	MoveCount        *int32          `json:"move_count,omitempty"`
	SpeedCs          *int32          `json:"speed_cs,omitempty"`
	MemoCs           *int32          `json:"memo_cs,omitempty"`
	LogFile          *LogFile        `json:"-"`
	VideoURL         *string         `json:"video_url,omitempty"`
}

// SolveFieldsFrom carries every stored field through unchanged, so callers
// can tweak a single field and write the rest back as-is.
func SolveFieldsFrom(s *Solve) SolveFields {
	f := SolveFields{
		PuzzleID:         s.Puzzle.ID,
		ProgramID:        s.Program.ID,
		SolverID:         s.Solver.ID,
		SolveDate:        s.SolveDate,
		SolverNotes:      s.SolverNotes,
		ModeratorNotes:   s.ModeratorNotes,
		Average:          s.Flags.Average,
		Blind:            s.Flags.Blind,
		Filters:          s.Flags.Filters,
		Macros:           s.Flags.Macros,
		OneHanded:        s.Flags.OneHanded,
		ComputerAssisted: s.Flags.ComputerAssisted,
		MoveCount:        s.MoveCount,
		SpeedCs:          s.SpeedCs,
		MemoCs:           s.MemoCs,
		VideoURL:         s.VideoURL,
	}
	if s.Variant != nil {
		v := s.Variant.ID
		f.VariantID = &v
	}
	return f
}

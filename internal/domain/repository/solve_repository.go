package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"polyboard/internal/common"
	"polyboard/internal/domain/model"
)

type SolveRepository interface {
	CreateSolve(ctx context.Context, tx *sql.Tx, fields model.SolveFields) (model.SolveID, error)
	GetSolve(ctx context.Context, id model.SolveID) (*model.Solve, error)
	// GetLogFileContents returns the stored evidence blob, empty if none was
	// uploaded.
	GetLogFileContents(ctx context.Context, id model.SolveID) ([]byte, error)
	UpdateSolveFields(ctx context.Context, tx *sql.Tx, id model.SolveID, fields model.SolveFields) error
	SetFmcVerified(ctx context.Context, tx *sql.Tx, id model.SolveID, verified *bool, verifiedBy string) error
	SetSpeedVerified(ctx context.Context, tx *sql.Tx, id model.SolveID, verified *bool, verifiedBy string) error
	// ListPendingSolveIDs returns solves with uploaded evidence and at least
	// one verification axis still pending, oldest first.
	ListPendingSolveIDs(ctx context.Context) ([]model.SolveID, error)
}

type pgSolveRepository struct {
	db *sql.DB
}

func NewPgSolveRepository(db *sql.DB) SolveRepository {
	return &pgSolveRepository{db: db}
}

func (r *pgSolveRepository) CreateSolve(ctx context.Context, tx *sql.Tx, f model.SolveFields) (model.SolveID, error) {
	query := `INSERT INTO solves (puzzle_id, variant_id, program_id, solver_id, solve_date,
	            solver_notes, moderator_notes, auto_verify_output,
	            average, blind, filters, macros, one_handed, computer_assisted,
	            move_count, speed_cs, memo_cs, log_file_name, log_file, video_url)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	          RETURNING id`

	var logFileName *string
	var logFile []byte
	if f.LogFile != nil {
		logFileName = &f.LogFile.Name
		logFile = f.LogFile.Contents
	}

	args := []interface{}{
		f.PuzzleID, f.VariantID, f.ProgramID, f.SolverID, f.SolveDate,
		f.SolverNotes, f.ModeratorNotes, []byte(f.AutoVerifyOutput),
		f.Average, f.Blind, f.Filters, f.Macros, f.OneHanded, f.ComputerAssisted,
		f.MoveCount, f.SpeedCs, f.MemoCs, logFileName, logFile, f.VideoURL,
	}

	var id model.SolveID
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("pgSolveRepository.CreateSolve: %w", err)
	}
	return id, nil
}

func (r *pgSolveRepository) GetSolve(ctx context.Context, id model.SolveID) (*model.Solve, error) {
	query := `
        SELECT s.id, s.solver_id, u.username,
               p.id, p.canonical_id, p.name, p.slug, p.leaderboard_eligible,
               p.primary_filters, p.primary_macros, p.created_at,
               s.variant_id, v.name,
               pr.id, pr.name, pr.abbreviation,
               s.solve_date, s.upload_date, s.solver_notes, s.moderator_notes,
               s.average, s.blind, s.filters, s.macros, s.one_handed, s.computer_assisted,
               s.move_count, s.speed_cs, s.memo_cs,
               s.fmc_verified, s.fmc_verified_by, s.speed_verified, s.speed_verified_by,
               s.log_file IS NOT NULL AND length(s.log_file) > 0,
               s.scramble_seed, s.video_url
        FROM solves s
        JOIN users u ON s.solver_id = u.id
        JOIN puzzles p ON s.puzzle_id = p.id
        LEFT JOIN variants v ON s.variant_id = v.id
        JOIN programs pr ON s.program_id = pr.id
        WHERE s.id = $1`

	solve := &model.Solve{}
	var variantID sql.NullInt64
	var variantName sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&solve.ID, &solve.Solver.ID, &solve.Solver.Username,
		&solve.Puzzle.ID, &solve.Puzzle.CanonicalID, &solve.Puzzle.Name, &solve.Puzzle.Slug,
		&solve.Puzzle.LeaderboardEligible, &solve.Puzzle.PrimaryFilters, &solve.Puzzle.PrimaryMacros,
		&solve.Puzzle.CreatedAt,
		&variantID, &variantName,
		&solve.Program.ID, &solve.Program.Name, &solve.Program.Abbreviation,
		&solve.SolveDate, &solve.UploadDate, &solve.SolverNotes, &solve.ModeratorNotes,
		&solve.Flags.Average, &solve.Flags.Blind, &solve.Flags.Filters, &solve.Flags.Macros,
		&solve.Flags.OneHanded, &solve.Flags.ComputerAssisted,
		&solve.MoveCount, &solve.SpeedCs, &solve.MemoCs,
		&solve.FmcVerified, &solve.FmcVerifiedBy, &solve.SpeedVerified, &solve.SpeedVerifiedBy,
		&solve.HasLogFile,
		&solve.ScrambleSeed, &solve.VideoURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSolveRepository.GetSolve: %w", err)
	}
	if variantID.Valid {
		solve.Variant = &model.Variant{ID: variantID.Int64, Name: variantName.String}
	}
	return solve, nil
}

func (r *pgSolveRepository) GetLogFileContents(ctx context.Context, id model.SolveID) ([]byte, error) {
	var contents []byte
	err := r.db.QueryRowContext(ctx, `SELECT log_file FROM solves WHERE id = $1`, id).Scan(&contents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSolveRepository.GetLogFileContents: %w", err)
	}
	return contents, nil
}

func (r *pgSolveRepository) UpdateSolveFields(ctx context.Context, tx *sql.Tx, id model.SolveID, f model.SolveFields) error {
	query := `UPDATE solves SET
                puzzle_id = $1, variant_id = $2, program_id = $3, solver_id = $4,
                solve_date = $5, solver_notes = $6, moderator_notes = $7,
                auto_verify_output = $8,
                average = $9, blind = $10, filters = $11, macros = $12,
                one_handed = $13, computer_assisted = $14,
                move_count = $15, speed_cs = $16, memo_cs = $17, video_url = $18
              WHERE id = $19`
	args := []interface{}{
		f.PuzzleID, f.VariantID, f.ProgramID, f.SolverID,
		f.SolveDate, f.SolverNotes, f.ModeratorNotes,
		[]byte(f.AutoVerifyOutput),
		f.Average, f.Blind, f.Filters, f.Macros,
		f.OneHanded, f.ComputerAssisted,
		f.MoveCount, f.SpeedCs, f.MemoCs, f.VideoURL,
		id,
	}
	// The log file is only touched when a replacement is supplied.
	if f.LogFile != nil {
		query = `UPDATE solves SET
                puzzle_id = $1, variant_id = $2, program_id = $3, solver_id = $4,
                solve_date = $5, solver_notes = $6, moderator_notes = $7,
                auto_verify_output = $8,
                average = $9, blind = $10, filters = $11, macros = $12,
                one_handed = $13, computer_assisted = $14,
                move_count = $15, speed_cs = $16, memo_cs = $17, video_url = $18,
                log_file_name = $20, log_file = $21
              WHERE id = $19`
		args = append(args, f.LogFile.Name, f.LogFile.Contents)
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("pgSolveRepository.UpdateSolveFields: %w", err)
	}
	return nil
}

func (r *pgSolveRepository) SetFmcVerified(ctx context.Context, tx *sql.Tx, id model.SolveID, verified *bool, verifiedBy string) error {
	return r.setVerified(ctx, tx, "fmc_verified", "fmc_verified_by", id, verified, verifiedBy)
}

func (r *pgSolveRepository) SetSpeedVerified(ctx context.Context, tx *sql.Tx, id model.SolveID, verified *bool, verifiedBy string) error {
	return r.setVerified(ctx, tx, "speed_verified", "speed_verified_by", id, verified, verifiedBy)
}

func (r *pgSolveRepository) setVerified(ctx context.Context, tx *sql.Tx, column, byColumn string, id model.SolveID, verified *bool, verifiedBy string) error {
	var by *string
	if verified != nil {
		by = &verifiedBy
	}
	query := fmt.Sprintf(`UPDATE solves SET %s = $1, %s = $2 WHERE id = $3`, column, byColumn)

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, verified, by, id)
	} else {
		_, err = r.db.ExecContext(ctx, query, verified, by, id)
	}
	if err != nil {
		return fmt.Errorf("pgSolveRepository.setVerified %s: %w", column, err)
	}
	return nil
}

func (r *pgSolveRepository) ListPendingSolveIDs(ctx context.Context) ([]model.SolveID, error) {
	query := `SELECT id FROM solves
              WHERE log_file IS NOT NULL
                AND (fmc_verified IS NULL OR speed_verified IS NULL)
              ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgSolveRepository.ListPendingSolveIDs query: %w", err)
	}
	defer rows.Close()

	var ids []model.SolveID
	for rows.Next() {
		var id model.SolveID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgSolveRepository.ListPendingSolveIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSolveRepository.ListPendingSolveIDs rows.Err: %w", err)
	}
	return ids, nil
}

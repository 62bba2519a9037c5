package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"polyboard/internal/common"
	"polyboard/internal/domain/model"

	"github.com/gosimple/slug"
)

type PuzzleRepository interface {
	// GetOrCreateByCanonicalID resolves the analyzer's canonical puzzle id to
	// an internal puzzle. Unknown puzzles are inserted as not yet
	// leaderboard-eligible; resolving to an ineligible puzzle returns
	// *common.PuzzleNotEligibleError.
	GetOrCreateByCanonicalID(ctx context.Context, canonicalID string) (*model.Puzzle, error)
	GetPuzzleByID(ctx context.Context, id int64) (*model.Puzzle, error)
	GetProgramByAbbr(ctx context.Context, abbr string) (*model.Program, error)
}

type pgPuzzleRepository struct {
	db *sql.DB
}

func NewPgPuzzleRepository(db *sql.DB) PuzzleRepository {
	return &pgPuzzleRepository{db: db}
}

func (r *pgPuzzleRepository) GetOrCreateByCanonicalID(ctx context.Context, canonicalID string) (*model.Puzzle, error) {
	puzzle, err := r.findByCanonicalID(ctx, canonicalID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if puzzle == nil {
		// New puzzles start ineligible until a moderator tracks them.
		query := `INSERT INTO puzzles (canonical_id, name, slug, leaderboard_eligible, primary_filters, primary_macros)
		          VALUES ($1, $2, $3, FALSE, FALSE, FALSE)
		          ON CONFLICT (canonical_id) DO NOTHING`
		if _, err := r.db.ExecContext(ctx, query, canonicalID, canonicalID, slug.Make(canonicalID)); err != nil {
			return nil, fmt.Errorf("pgPuzzleRepository.GetOrCreateByCanonicalID insert: %w", err)
		}
		puzzle, err = r.findByCanonicalID(ctx, canonicalID)
		if err != nil {
			return nil, err
		}
	}

	if !puzzle.LeaderboardEligible {
		return nil, &common.PuzzleNotEligibleError{CanonicalID: canonicalID}
	}
	return puzzle, nil
}

func (r *pgPuzzleRepository) findByCanonicalID(ctx context.Context, canonicalID string) (*model.Puzzle, error) {
	query := `SELECT id, canonical_id, name, slug, leaderboard_eligible, primary_filters, primary_macros, created_at
	          FROM puzzles WHERE canonical_id = $1`
	puzzle := &model.Puzzle{}
	err := r.db.QueryRowContext(ctx, query, canonicalID).Scan(
		&puzzle.ID, &puzzle.CanonicalID, &puzzle.Name, &puzzle.Slug,
		&puzzle.LeaderboardEligible, &puzzle.PrimaryFilters, &puzzle.PrimaryMacros, &puzzle.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgPuzzleRepository.findByCanonicalID: %w", err)
	}
	return puzzle, nil
}

func (r *pgPuzzleRepository) GetPuzzleByID(ctx context.Context, id int64) (*model.Puzzle, error) {
	query := `SELECT id, canonical_id, name, slug, leaderboard_eligible, primary_filters, primary_macros, created_at
	          FROM puzzles WHERE id = $1`
	puzzle := &model.Puzzle{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&puzzle.ID, &puzzle.CanonicalID, &puzzle.Name, &puzzle.Slug,
		&puzzle.LeaderboardEligible, &puzzle.PrimaryFilters, &puzzle.PrimaryMacros, &puzzle.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgPuzzleRepository.GetPuzzleByID: %w", err)
	}
	return puzzle, nil
}

func (r *pgPuzzleRepository) GetProgramByAbbr(ctx context.Context, abbr string) (*model.Program, error) {
	query := `SELECT id, name, abbreviation FROM programs WHERE abbreviation = $1`
	program := &model.Program{}
	err := r.db.QueryRowContext(ctx, query, abbr).Scan(&program.ID, &program.Name, &program.Abbreviation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgPuzzleRepository.GetProgramByAbbr: %w", err)
	}
	return program, nil
}

package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log"
	"strconv"
	"time"

	"polyboard/internal/app/autoverify"
	"polyboard/internal/common"
	"polyboard/internal/domain/model"
	"polyboard/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// Puzzle row 1 is the "Other" placeholder every external submission starts
// out on; the autoverifier moves the solve to its analyzed puzzle later.
const placeholderPuzzleID = 1

const videoPlaceholder = "add video link here when uploaded"

type SubmitService struct {
	solveRepo  repository.SolveRepository
	puzzleRepo repository.PuzzleRepository
	queue      *autoverify.Queue
	rdb        *redis.Client
	switches   *common.Switches
	dedupTTL   time.Duration
	db         *sql.DB
}

func NewSubmitService(
	solveRepo repository.SolveRepository,
	puzzleRepo repository.PuzzleRepository,
	queue *autoverify.Queue,
	rdb *redis.Client,
	switches *common.Switches,
	dedupTTL time.Duration,
	db *sql.DB,
) *SubmitService {
	return &SubmitService{
		solveRepo:  solveRepo,
		puzzleRepo: puzzleRepo,
		queue:      queue,
		rdb:        rdb,
		switches:   switches,
		dedupTTL:   dedupTTL,
		db:         db,
	}
}

type AutoSubmitRequest struct {
	ProgramAbbr      string
	SolverNotes      string
	ComputerAssisted bool
	WillUploadVideo  bool
	LogFile          model.LogFile
}

// SubmitAuto accepts a log-file upload straight from a solving program,
// creates a pending solve around it and hands it to the verification queue.
// Re-uploads of the same log file within the dedup window return the solve
// that was already created for it.
func (s *SubmitService) SubmitAuto(ctx context.Context, solver *model.User, req AutoSubmitRequest) (model.SolveID, error) {
	if err := s.switches.CheckAllowSubmissions(); err != nil {
		return 0, err
	}
	if len(req.LogFile.Contents) == 0 {
		return 0, common.ErrNoEvidence
	}

	program, err := s.puzzleRepo.GetProgramByAbbr(ctx, req.ProgramAbbr)
	if errors.Is(err, common.ErrNotFound) {
		// Unknown programs fall back to the catch-all "X" program.
		program, err = s.puzzleRepo.GetProgramByAbbr(ctx, "X")
	}
	if err != nil {
		return 0, common.Errorf("failed to resolve program %q: %w", req.ProgramAbbr, err)
	}

	sum := sha256.Sum256(req.LogFile.Contents)
	dedupKey := "submitted_log:" + hex.EncodeToString(sum[:])

	if val, err := s.rdb.Get(ctx, dedupKey).Result(); err == nil {
		if existing, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			log.Printf("Duplicate log file upload from user %s, returning solve %d", solver.ID, existing)
			return model.SolveID(existing), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("WARN: Dedup cache lookup failed, continuing without it: %v", err)
	}

	fields := model.SolveFields{
		PuzzleID:         placeholderPuzzleID,
		ProgramID:        program.ID,
		SolverID:         solver.ID,
		SolveDate:        time.Now().UTC(),
		SolverNotes:      req.SolverNotes,
		ComputerAssisted: req.ComputerAssisted,
		LogFile:          &req.LogFile,
	}
	if req.WillUploadVideo {
		placeholder := videoPlaceholder
		fields.VideoURL = &placeholder
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	solveID, err := s.solveRepo.CreateSolve(ctx, tx, fields)
	if err != nil {
		return 0, common.Errorf("failed to create solve: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	if err := s.rdb.Set(ctx, dedupKey, int64(solveID), s.dedupTTL).Err(); err != nil {
		log.Printf("WARN: Failed to record log file hash for dedup: %v", err)
	}

	s.queue.Enqueue(solveID)
	return solveID, nil
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"polyboard/internal/common"
	"polyboard/internal/domain/model"
	"polyboard/internal/domain/repository"
)

type SolveService struct {
	solveRepo repository.SolveRepository
	auditRepo repository.AuditLogRepository
	notifier  Notifier
	db        *sql.DB
}

func NewSolveService(
	solveRepo repository.SolveRepository,
	auditRepo repository.AuditLogRepository,
	notifier Notifier,
	db *sql.DB,
) *SolveService {
	return &SolveService{
		solveRepo: solveRepo,
		auditRepo: auditRepo,
		notifier:  notifier,
		db:        db,
	}
}

func (s *SolveService) GetSolve(ctx context.Context, id model.SolveID) (*model.Solve, error) {
	return s.solveRepo.GetSolve(ctx, id)
}

func (s *SolveService) GetLogFile(ctx context.Context, id model.SolveID) ([]byte, error) {
	return s.solveRepo.GetLogFileContents(ctx, id)
}

func (s *SolveService) ListAuditLog(ctx context.Context, id model.SolveID) ([]model.AuditLogEntry, error) {
	return s.auditRepo.ListSolveLogEntries(ctx, id)
}

// UpdateSolve rewrites the solve's stored fields and appends an audit entry
// with the field diff, in one transaction. The entry is appended even when
// nothing changed, so the trail records who touched the solve and when.
func (s *SolveService) UpdateSolve(ctx context.Context, editor *model.User, id model.SolveID, fields model.SolveFields, comment string) error {
	old, err := s.solveRepo.GetSolve(ctx, id)
	if err != nil {
		return common.Errorf("failed to load solve %d: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.solveRepo.UpdateSolveFields(ctx, tx, id, fields); err != nil {
		return common.Errorf("failed to update solve %d: %w", id, err)
	}

	event := model.AuditLogEvent{
		Type:    model.EventUpdated,
		Object:  &model.UpdatedObject{Type: "solve", ID: int64(id)},
		Fields:  diffSolveFields(old, fields),
		Comment: comment,
	}
	if err := s.auditRepo.AddSolveLogEntry(ctx, tx, editor, id, event); err != nil {
		return common.Errorf("failed to record solve update: %w", err)
	}

	return tx.Commit()
}

// LogGeneralEvent appends an audit entry that is not tied to any object, in
// its own transaction.
func (s *SolveService) LogGeneralEvent(ctx context.Context, editor *model.User, event model.AuditLogEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.auditRepo.AddGeneralLogEntry(ctx, tx, editor, event); err != nil {
		return common.Errorf("failed to record audit entry: %w", err)
	}
	return tx.Commit()
}

func (s *SolveService) VerifyFmc(ctx context.Context, editor *model.User, id model.SolveID, verified *bool, comment string) error {
	return s.setVerified(ctx, editor, id, verified, comment, model.EventFmcVerified)
}

func (s *SolveService) VerifySpeed(ctx context.Context, editor *model.User, id model.SolveID, verified *bool, comment string) error {
	return s.setVerified(ctx, editor, id, verified, comment, model.EventSpeedVerified)
}

func (s *SolveService) setVerified(ctx context.Context, editor *model.User, id model.SolveID, verified *bool, comment, event string) error {
	// Only moderators may move a solve back to the pending state.
	if verified == nil && !editor.Moderator() {
		return common.ErrForbidden
	}

	old, err := s.solveRepo.GetSolve(ctx, id)
	if err != nil {
		return common.Errorf("failed to load solve %d: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldVerdict *bool
	switch event {
	case model.EventFmcVerified:
		oldVerdict = old.FmcVerified
		err = s.solveRepo.SetFmcVerified(ctx, tx, id, verified, editor.ID)
	case model.EventSpeedVerified:
		oldVerdict = old.SpeedVerified
		err = s.solveRepo.SetSpeedVerified(ctx, tx, id, verified, editor.ID)
	default:
		return common.Errorf("unknown verification event %q", event)
	}
	if err != nil {
		return common.Errorf("failed to set verification on solve %d: %w", id, err)
	}

	logEvent := model.AuditLogEvent{
		Type:    event,
		Old:     oldVerdict,
		New:     verified,
		Comment: comment,
	}
	if err := s.auditRepo.AddSolveLogEntry(ctx, tx, editor, id, logEvent); err != nil {
		return common.Errorf("failed to record verification change: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	// The autoverifier announces its verdicts once per solve, after both
	// axes have been decided, so skip the per-axis alert for it.
	if editor.Username != model.AutoVerifierUsername {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			solve, err := s.solveRepo.GetSolve(ctx, id)
			if err != nil {
				log.Printf("WARN: Failed to load solve %d for notification: %v", id, err)
				return
			}
			s.notifier.NotifyManualVerification(ctx, editor, solve, event)
		}()
	}
	return nil
}

func diffSolveFields(old *model.Solve, updated model.SolveFields) map[string][2]string {
	prev := model.SolveFieldsFrom(old)
	diff := make(map[string][2]string)

	add := func(name, before, after string) {
		if before != after {
			diff[name] = [2]string{before, after}
		}
	}

	add("puzzle_id", strconv.FormatInt(prev.PuzzleID, 10), strconv.FormatInt(updated.PuzzleID, 10))
	add("variant_id", fmtOptInt64(prev.VariantID), fmtOptInt64(updated.VariantID))
	add("program_id", strconv.FormatInt(prev.ProgramID, 10), strconv.FormatInt(updated.ProgramID, 10))
	add("solve_date", prev.SolveDate.UTC().Format(time.RFC3339), updated.SolveDate.UTC().Format(time.RFC3339))
	add("solver_notes", prev.SolverNotes, updated.SolverNotes)
	add("moderator_notes", prev.ModeratorNotes, updated.ModeratorNotes)
	add("average", strconv.FormatBool(prev.Average), strconv.FormatBool(updated.Average))
	add("blind", strconv.FormatBool(prev.Blind), strconv.FormatBool(updated.Blind))
	add("filters", strconv.FormatBool(prev.Filters), strconv.FormatBool(updated.Filters))
	add("macros", strconv.FormatBool(prev.Macros), strconv.FormatBool(updated.Macros))
	add("one_handed", strconv.FormatBool(prev.OneHanded), strconv.FormatBool(updated.OneHanded))
	add("computer_assisted", strconv.FormatBool(prev.ComputerAssisted), strconv.FormatBool(updated.ComputerAssisted))
	add("move_count", fmtOptInt32(prev.MoveCount), fmtOptInt32(updated.MoveCount))
	add("speed_cs", fmtOptInt32(prev.SpeedCs), fmtOptInt32(updated.SpeedCs))
	add("memo_cs", fmtOptInt32(prev.MemoCs), fmtOptInt32(updated.MemoCs))
	add("video_url", fmtOptStr(prev.VideoURL), fmtOptStr(updated.VideoURL))

	if updated.LogFile != nil {
		before := "none"
		if old.HasLogFile {
			before = "present"
		}
		diff["log_file"] = [2]string{before, fmt.Sprintf("%q", updated.LogFile.Name)}
	}

	return diff
}

func fmtOptInt64(v *int64) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatInt(*v, 10)
}

func fmtOptInt32(v *int32) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatInt(int64(*v), 10)
}

func fmtOptStr(v *string) string {
	if v == nil {
		return "none"
	}
	return strconv.Quote(*v)
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"polyboard/internal/app/autoverify"
	"polyboard/internal/common"
	"polyboard/internal/domain/model"
	"polyboard/internal/domain/repository"
)

// SolveEditor is the slice of the solve service the worker applies its
// decisions through.
type SolveEditor interface {
	UpdateSolve(ctx context.Context, editor *model.User, id model.SolveID, fields model.SolveFields, comment string) error
	VerifyFmc(ctx context.Context, editor *model.User, id model.SolveID, verified *bool, comment string) error
	VerifySpeed(ctx context.Context, editor *model.User, id model.SolveID, verified *bool, comment string) error
	LogGeneralEvent(ctx context.Context, editor *model.User, event model.AuditLogEvent) error
}

// Notifier matches service.Notifier; redeclared here so the worker package
// does not import the service package's concrete types in its fakes.
type Notifier interface {
	NotifyAutoVerification(ctx context.Context, solve *model.Solve)
}

// AutoVerifyWorker drains the verification queue one solve at a time. A
// failure never wedges the queue: the head is popped after every attempt,
// whatever the outcome.
type AutoVerifyWorker struct {
	queue      *autoverify.Queue
	engine     *autoverify.Engine
	verifier   autoverify.ExternalVerifier
	solves     SolveEditor
	notifier   Notifier
	solveRepo  repository.SolveRepository
	puzzleRepo repository.PuzzleRepository
	userRepo   repository.UserRepository
}

func NewAutoVerifyWorker(
	queue *autoverify.Queue,
	engine *autoverify.Engine,
	verifier autoverify.ExternalVerifier,
	solves SolveEditor,
	notifier Notifier,
	solveRepo repository.SolveRepository,
	puzzleRepo repository.PuzzleRepository,
	userRepo repository.UserRepository,
) *AutoVerifyWorker {
	return &AutoVerifyWorker{
		queue:      queue,
		engine:     engine,
		verifier:   verifier,
		solves:     solves,
		notifier:   notifier,
		solveRepo:  solveRepo,
		puzzleRepo: puzzleRepo,
		userRepo:   userRepo,
	}
}

// EnqueueAllPending loads every solve with uploaded evidence and a pending
// verdict and puts it on the queue, oldest first.
func (w *AutoVerifyWorker) EnqueueAllPending(ctx context.Context) (int, error) {
	ids, err := w.solveRepo.ListPendingSolveIDs(ctx)
	if err != nil {
		return 0, common.Errorf("failed to list pending solves: %w", err)
	}
	for _, id := range ids {
		w.queue.Enqueue(id)
	}
	return len(ids), nil
}

func (w *AutoVerifyWorker) Start(ctx context.Context) {
	log.Println("Autoverify worker started")
	for {
		solveID, err := w.queue.WaitForNext(ctx)
		if err != nil {
			log.Println("Autoverify worker stopping...")
			return
		}

		if err := w.ProcessSolve(ctx, solveID); err != nil {
			log.Printf("ERROR: Autoverification of solve %s failed: %v", solveID, err)
		}
		// The head stays visible while it is processed; pop only now.
		w.queue.PopNext()
	}
}

// ProcessSolve runs the full autoverification pipeline for one solve:
// replay the log file through the external verifier, resolve the analyzed
// puzzle, apply the decision engine's field update and verdicts. Verifier and
// decision failures are recorded in the general audit log and leave the solve
// untouched for manual review.
func (w *AutoVerifyWorker) ProcessSolve(ctx context.Context, solveID model.SolveID) error {
	log.Printf("INFO: Autoverifying solve %s ...", solveID)

	editor, err := w.userRepo.GetAutoVerifier(ctx)
	if err != nil {
		return common.Errorf("failed to load autoverifier account: %w", err)
	}

	solve, err := w.solveRepo.GetSolve(ctx, solveID)
	if err != nil {
		return common.Errorf("failed to load solve %s: %w", solveID, err)
	}

	facts, rawFacts, err := w.computeFacts(ctx, solveID)
	if err != nil {
		return w.logFailure(ctx, editor, solveID, err)
	}

	puzzle, err := w.puzzleRepo.GetOrCreateByCanonicalID(ctx, facts.PuzzleCanonicalID)
	if err != nil {
		var ineligible *common.PuzzleNotEligibleError
		if errors.As(err, &ineligible) {
			log.Printf("INFO: Autoverifier rejected solve %s: %v", solveID, ineligible)
			return w.rejectIneligible(ctx, editor, solve, ineligible)
		}
		return w.logFailure(ctx, editor, solveID, err)
	}

	decision, err := w.engine.Decide(solve, puzzle.ID, facts, rawFacts)
	if err != nil {
		return w.logFailure(ctx, editor, solveID, err)
	}

	if err := w.solves.UpdateSolve(ctx, editor, solveID, decision.Fields, decision.AuditComment); err != nil {
		return err
	}

	// The field update is committed at this point. A failed verdict write
	// leaves the updated fields in place and the solve pending.
	accepted := true
	if decision.VerifyFMC {
		if err := w.solves.VerifyFmc(ctx, editor, solveID, &accepted, ""); err != nil {
			return err
		}
	}
	if decision.VerifySpeed {
		if err := w.solves.VerifySpeed(ctx, editor, solveID, &accepted, ""); err != nil {
			return err
		}
	}

	log.Printf("INFO: Autoverification of solve %s succeeded", solveID)
	w.notifyOutcome(ctx, solveID)
	return nil
}

func (w *AutoVerifyWorker) computeFacts(ctx context.Context, solveID model.SolveID) (*model.VerificationFacts, json.RawMessage, error) {
	logFile, err := w.solveRepo.GetLogFileContents(ctx, solveID)
	if err != nil {
		return nil, nil, common.Errorf("failed to load log file for solve %s: %w", solveID, err)
	}
	return w.verifier.Verify(ctx, logFile)
}

// logFailure records an oracle or decision failure as a comment-only general
// audit entry. The solve itself is not modified.
func (w *AutoVerifyWorker) logFailure(ctx context.Context, editor *model.User, solveID model.SolveID, cause error) error {
	event := model.AuditLogEvent{
		Type:    model.EventUpdated,
		Comment: cause.Error(),
	}
	if err := w.solves.LogGeneralEvent(ctx, editor, event); err != nil {
		return common.Errorf("failed to record autoverification failure: %w", err)
	}

	log.Printf("INFO: Autoverification of solve %s failed: %v", solveID, cause)
	w.notifyOutcome(ctx, solveID)
	return nil
}

// rejectIneligible force-rejects a solve whose puzzle is not on the
// leaderboard. A solve with no score data gets a placeholder move count
// first, so there is something to reject.
func (w *AutoVerifyWorker) rejectIneligible(ctx context.Context, editor *model.User, solve *model.Solve, cause *common.PuzzleNotEligibleError) error {
	comment := cause.Error()
	hasMoveCount := solve.MoveCount != nil
	hasSpeed := solve.SpeedCs != nil

	if !hasMoveCount && !hasSpeed {
		fields := model.SolveFieldsFrom(solve)
		one := int32(1)
		fields.MoveCount = &one
		hasMoveCount = true
		if err := w.solves.UpdateSolve(ctx, editor, solve.ID, fields,
			"Adding move count so the solve can be rejected"); err != nil {
			return err
		}
	}

	rejected := false
	if hasMoveCount {
		if err := w.solves.VerifyFmc(ctx, editor, solve.ID, &rejected, comment); err != nil {
			return err
		}
	}
	if hasSpeed {
		if err := w.solves.VerifySpeed(ctx, editor, solve.ID, &rejected, comment); err != nil {
			return err
		}
	}

	w.notifyOutcome(ctx, solve.ID)
	return nil
}

// notifyOutcome announces the solve's post-processing state, whatever it is.
func (w *AutoVerifyWorker) notifyOutcome(ctx context.Context, solveID model.SolveID) {
	solve, err := w.solveRepo.GetSolve(ctx, solveID)
	if err != nil {
		log.Printf("WARN: Failed to load solve %s for notification: %v", solveID, err)
		return
	}
	w.notifier.NotifyAutoVerification(ctx, solve)
}

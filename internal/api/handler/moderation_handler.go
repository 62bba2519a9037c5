package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"polyboard/internal/api/middleware"
	"polyboard/internal/app/autoverify"
	"polyboard/internal/app/service"
	"polyboard/internal/app/worker"
	"polyboard/internal/common"
	"polyboard/internal/domain/model"
	"polyboard/internal/domain/repository"

	"github.com/go-chi/chi/v5"
)

type ModerationHandler struct {
	solveService *service.SolveService
	autoWorker   *worker.AutoVerifyWorker
	queue        *autoverify.Queue
	switches     *common.Switches
	auditRepo    repository.AuditLogRepository
	userRepo     repository.UserRepository
}

func NewModerationHandler(
	solveService *service.SolveService,
	autoWorker *worker.AutoVerifyWorker,
	queue *autoverify.Queue,
	switches *common.Switches,
	auditRepo repository.AuditLogRepository,
	userRepo repository.UserRepository,
) *ModerationHandler {
	return &ModerationHandler{
		solveService: solveService,
		autoWorker:   autoWorker,
		queue:        queue,
		switches:     switches,
		auditRepo:    auditRepo,
		userRepo:     userRepo,
	}
}

func (h *ModerationHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.ModeratorOnly)

	r.Post("/autoverify", h.enqueueSolve)
	r.Post("/autoverify/all-pending", h.enqueueAllPending)
	r.Get("/queue", h.queueSnapshot)

	r.Put("/solves/{solveID}", h.updateSolve)
	r.Post("/solves/{solveID}/verify-fmc", h.verifyFmc)
	r.Post("/solves/{solveID}/verify-speed", h.verifySpeed)

	r.Get("/audit-log", h.generalAuditLog)

	// Switches stay reachable even while moderator actions are blocked,
	// otherwise nobody could unblock them.
	r.Get("/switches", h.getSwitches)
	r.Put("/switches", h.setSwitches)
}

func (h *ModerationHandler) enqueueSolve(w http.ResponseWriter, r *http.Request) {
	if err := h.switches.CheckAllowModeratorActions(); err != nil {
		common.RespondFromError(w, err)
		return
	}

	var req struct {
		SolveID model.SolveID `json:"solve_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if _, err := h.solveService.GetSolve(r.Context(), req.SolveID); err != nil {
		common.RespondFromError(w, err)
		return
	}

	h.queue.Enqueue(req.SolveID)
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{"solve_id": req.SolveID.String()})
}

func (h *ModerationHandler) enqueueAllPending(w http.ResponseWriter, r *http.Request) {
	if err := h.switches.CheckAllowModeratorActions(); err != nil {
		common.RespondFromError(w, err)
		return
	}

	n, err := h.autoWorker.EnqueueAllPending(r.Context())
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, map[string]int{"enqueued": n})
}

func (h *ModerationHandler) queueSnapshot(w http.ResponseWriter, r *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, h.queue.Snapshot())
}

func (h *ModerationHandler) updateSolve(w http.ResponseWriter, r *http.Request) {
	if err := h.switches.CheckAllowModeratorActions(); err != nil {
		common.RespondFromError(w, err)
		return
	}
	editor, err := currentUser(r, h.userRepo)
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	id, err := solveIDParam(r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid solve ID")
		return
	}

	var req struct {
		model.SolveFields
		AuditLogComment string `json:"audit_log_comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.solveService.UpdateSolve(r.Context(), editor, id, req.SolveFields, req.AuditLogComment); err != nil {
		common.RespondFromError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"solve_id": id.String()})
}

func (h *ModerationHandler) verifyFmc(w http.ResponseWriter, r *http.Request) {
	h.setVerified(w, r, h.solveService.VerifyFmc)
}

func (h *ModerationHandler) verifySpeed(w http.ResponseWriter, r *http.Request) {
	h.setVerified(w, r, h.solveService.VerifySpeed)
}

func (h *ModerationHandler) setVerified(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, editor *model.User, id model.SolveID, verified *bool, comment string) error,
) {
	if err := h.switches.CheckAllowModeratorActions(); err != nil {
		common.RespondFromError(w, err)
		return
	}
	editor, err := currentUser(r, h.userRepo)
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	id, err := solveIDParam(r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid solve ID")
		return
	}

	var req struct {
		Verified *bool  `json:"verified"` // null moves the solve back to pending
		Comment  string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := apply(r.Context(), editor, id, req.Verified, req.Comment); err != nil {
		common.RespondFromError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"solve_id": id.String()})
}

func (h *ModerationHandler) generalAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.auditRepo.ListGeneralLogEntries(r.Context())
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

type switchesView struct {
	BlockLogins           *bool `json:"block_logins,omitempty"`
	BlockSubmissions      *bool `json:"block_submissions,omitempty"`
	BlockUserActions      *bool `json:"block_user_actions,omitempty"`
	BlockModeratorActions *bool `json:"block_moderator_actions,omitempty"`
}

func (h *ModerationHandler) getSwitches(w http.ResponseWriter, r *http.Request) {
	b := func(v bool) *bool { return &v }
	common.RespondWithJSON(w, http.StatusOK, switchesView{
		BlockLogins:           b(h.switches.BlockLogins.Load()),
		BlockSubmissions:      b(h.switches.BlockSubmissions.Load()),
		BlockUserActions:      b(h.switches.BlockUserActions.Load()),
		BlockModeratorActions: b(h.switches.BlockModeratorActions.Load()),
	})
}

func (h *ModerationHandler) setSwitches(w http.ResponseWriter, r *http.Request) {
	var req switchesView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if req.BlockLogins != nil {
		h.switches.BlockLogins.Store(*req.BlockLogins)
	}
	if req.BlockSubmissions != nil {
		h.switches.BlockSubmissions.Store(*req.BlockSubmissions)
	}
	if req.BlockUserActions != nil {
		h.switches.BlockUserActions.Store(*req.BlockUserActions)
	}
	if req.BlockModeratorActions != nil {
		h.switches.BlockModeratorActions.Store(*req.BlockModeratorActions)
	}
	h.getSwitches(w, r)
}

package handler

import (
	"io"
	"net/http"
	"strconv"

	"polyboard/internal/api/middleware"
	"polyboard/internal/app/autoverify"
	"polyboard/internal/app/service"
	"polyboard/internal/common"
	"polyboard/internal/domain/model"
	"polyboard/internal/domain/repository"

	"github.com/go-chi/chi/v5"
)

// Uploaded evidence is capped well above anything the solving programs emit.
const maxLogFileBytes = 32 << 20

type SolveHandler struct {
	solveService  *service.SolveService
	submitService *service.SubmitService
	queue         *autoverify.Queue
	userRepo      repository.UserRepository
}

func NewSolveHandler(
	solveService *service.SolveService,
	submitService *service.SubmitService,
	queue *autoverify.Queue,
	userRepo repository.UserRepository,
) *SolveHandler {
	return &SolveHandler{
		solveService:  solveService,
		submitService: submitService,
		queue:         queue,
		userRepo:      userRepo,
	}
}

func (h *SolveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{solveID}", h.getSolve)
	r.Get("/{solveID}/log-file", h.getLogFile)
	r.Get("/{solveID}/audit-log", h.getAuditLog)
	r.Get("/{solveID}/queue-position", h.getQueuePosition)

	r.Group(func(auth chi.Router) {
		auth.Use(middleware.Authenticator)
		auth.Post("/auto", h.autoSubmit)
	})
}

func solveIDParam(r *http.Request) (model.SolveID, error) {
	raw := chi.URLParam(r, "solveID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, common.ErrBadRequest
	}
	return model.SolveID(id), nil
}

func (h *SolveHandler) getSolve(w http.ResponseWriter, r *http.Request) {
	id, err := solveIDParam(r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid solve ID")
		return
	}
	solve, err := h.solveService.GetSolve(r.Context(), id)
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solve)
}

func (h *SolveHandler) getLogFile(w http.ResponseWriter, r *http.Request) {
	id, err := solveIDParam(r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid solve ID")
		return
	}
	contents, err := h.solveService.GetLogFile(r.Context(), id)
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(contents)
}

func (h *SolveHandler) getAuditLog(w http.ResponseWriter, r *http.Request) {
	id, err := solveIDParam(r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid solve ID")
		return
	}
	entries, err := h.solveService.ListAuditLog(r.Context(), id)
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *SolveHandler) getQueuePosition(w http.ResponseWriter, r *http.Request) {
	id, err := solveIDParam(r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid solve ID")
		return
	}
	pos, queued := h.queue.IndexOf(id)
	resp := map[string]interface{}{"queued": queued}
	if queued {
		resp["position"] = pos
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *SolveHandler) autoSubmit(w http.ResponseWriter, r *http.Request) {
	solver, err := currentUser(r, h.userRepo)
	if err != nil {
		common.RespondFromError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxLogFileBytes); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid multipart payload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("log_file")
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Missing log_file upload")
		return
	}
	defer file.Close()
	contents, err := io.ReadAll(io.LimitReader(file, maxLogFileBytes))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Failed to read log_file upload")
		return
	}

	req := service.AutoSubmitRequest{
		ProgramAbbr:      r.FormValue("program_abbr"),
		SolverNotes:      r.FormValue("solver_notes"),
		ComputerAssisted: r.FormValue("computer_assisted") == "true",
		WillUploadVideo:  r.FormValue("will_upload_video") == "true",
		LogFile:          model.LogFile{Name: header.Filename, Contents: contents},
	}

	solveID, err := h.submitService.SubmitAuto(r.Context(), solver, req)
	if err != nil {
		common.RespondFromError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{
		"solve_id": solveID.String(),
		"url":      "/solves/" + solveID.String(),
	})
}

// currentUser loads the authenticated user's full record.
func currentUser(r *http.Request, users repository.UserRepository) (*model.User, error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return nil, common.ErrUnauthorized
	}
	return users.FindByID(r.Context(), userID)
}

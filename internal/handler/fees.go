package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/fees-engine/internal/domain"
	"github.com/campuskit/fees-engine/internal/service"
	customError "github.com/campuskit/fees-engine/pkg/errors"
	"github.com/campuskit/fees-engine/pkg/response"
)

type FeesHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewFeesHandler(svc *service.GenerationService, logger *zap.Logger) *FeesHandler {
	return &FeesHandler{
		service:   svc,
		validator: validator.New(),
		logger:    logger,
	}
}

// Generate handles POST /fees/generate for a single student.
func (h *FeesHandler) Generate(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.GenerateStudentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.GenerateForStudent(r.Context(), branchID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, result)
}

// GenerateClass handles POST /fees/generate-class.
func (h *FeesHandler) GenerateClass(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.GenerateClassRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.GenerateForClass(r.Context(), branchID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, result)
}

// Assign handles POST /fees/assign.
func (h *FeesHandler) Assign(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.AssignFeesRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.AssignTemplate(r.Context(), branchID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, result)
}

// GenerationGroups handles GET /fees/generation-groups.
func (h *FeesHandler) GenerationGroups(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID, err := uuid.Parse(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, customError.WrapValidation("sessionId", "must be a uuid"))
		return
	}

	var studentID, classID *uuid.UUID
	if raw := r.URL.Query().Get("studentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, customError.WrapValidation("studentId", "must be a uuid"))
			return
		}
		studentID = &id
	}
	if raw := r.URL.Query().Get("classId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, customError.WrapValidation("classId", "must be a uuid"))
			return
		}
		classID = &id
	}

	groups, err := h.service.GenerationGroups(r.Context(), branchID, studentID, classID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, groups)
}

// UpdateDueDate handles PATCH /fees/due-date.
func (h *FeesHandler) UpdateDueDate(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.DueDateUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	n, err := h.service.UpdateDueDates(r.Context(), branchID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, map[string]int64{"updated": n})
}

// UnGenerate handles PUT /fees/un-generate.
func (h *FeesHandler) UnGenerate(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.UnGenerateRequest
	if !h.decode(w, r, &req) {
		return
	}

	n, err := h.service.UnGenerate(r.Context(), branchID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, map[string]int64{"ungenerated": n})
}

// Months handles GET /fees/months.
func (h *FeesHandler) Months(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID, err := uuid.Parse(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, customError.WrapValidation("sessionId", "must be a uuid"))
		return
	}

	months, err := h.service.GeneratedMonths(r.Context(), branchID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, months)
}

func (h *FeesHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, customError.WrapValidation("body", "malformed JSON"))
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		writeError(w, customError.WrapValidation("body", err.Error()))
		return false
	}
	return true
}

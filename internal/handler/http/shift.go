package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type ShiftHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Assign(w http.ResponseWriter, r *http.Request)
}

type shiftHandlerImpl struct {
	shiftService shift.ShiftService
}

func NewShiftHandler(shiftService shift.ShiftService) ShiftHandler {
	return &shiftHandlerImpl{shiftService: shiftService}
}

// Create implements ShiftHandler.
func (h *shiftHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

// Update implements ShiftHandler.
func (h *shiftHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"))
}

func (h *shiftHandlerImpl) save(w http.ResponseWriter, r *http.Request, id string) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req shift.SaveShiftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = id

	result, err := h.shiftService.Save(r.Context(), principal, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if id == "" {
		response.Created(w, "Shift created successfully", result)
		return
	}
	response.SuccessWithMessage(w, "Shift updated successfully", result)
}

// Assign implements ShiftHandler.
func (h *shiftHandlerImpl) Assign(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := shift.AssignShiftRequest{
		ShiftID:    chi.URLParam(r, "id"),
		EmployeeID: chi.URLParam(r, "employee_id"),
	}
	if err := h.shiftService.Assign(r.Context(), principal, req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Shift assigned successfully", nil)
}

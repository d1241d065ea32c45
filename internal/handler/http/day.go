package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/day"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

type DayHandler interface {
	Process(w http.ResponseWriter, r *http.Request)
	Invalidate(w http.ResponseWriter, r *http.Request)
}

type dayHandlerImpl struct {
	aggregator day.Aggregator
}

func NewDayHandler(aggregator day.Aggregator) DayHandler {
	return &dayHandlerImpl{aggregator: aggregator}
}

// Process implements DayHandler.
func (h *dayHandlerImpl) Process(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req day.ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	days, err := h.aggregator.Process(r.Context(), principal, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, days)
}

// Invalidate implements DayHandler.
func (h *dayHandlerImpl) Invalidate(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req day.InvalidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.aggregator.Invalidate(r.Context(), principal, req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Cached days invalidated", nil)
}

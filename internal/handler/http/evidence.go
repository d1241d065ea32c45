package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type EvidenceHandler interface {
	ListByRecord(w http.ResponseWriter, r *http.Request)
	Enroll(w http.ResponseWriter, r *http.Request)
	Image(w http.ResponseWriter, r *http.Request)
}

type evidenceHandlerImpl struct {
	evidenceService evidence.EvidenceService
}

func NewEvidenceHandler(evidenceService evidence.EvidenceService) EvidenceHandler {
	return &evidenceHandlerImpl{evidenceService: evidenceService}
}

// ListByRecord implements EvidenceHandler.
func (h *evidenceHandlerImpl) ListByRecord(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	items, err := h.evidenceService.ListByRecord(r.Context(), principal, chi.URLParam(r, "record_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, items)
}

// Enroll implements EvidenceHandler.
func (h *evidenceHandlerImpl) Enroll(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req evidence.EnrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.evidenceService.Enroll(r.Context(), principal, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Biometric template enrolled", item)
}

// Image implements EvidenceHandler.
func (h *evidenceHandlerImpl) Image(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	variant, err := evidence.ParseImageVariant(r.URL.Query().Get("variant"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	obj, err := h.evidenceService.OpenImage(r.Context(), principal, chi.URLParam(r, "id"), variant)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.MIME)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if obj.SHA256 != "" {
		w.Header().Set("ETag", `"`+obj.SHA256+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		slog.Warn("Evidence image stream interrupted", "evidence_id", chi.URLParam(r, "id"), "error", err)
	}
}

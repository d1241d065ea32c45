package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	json "github.com/goccy/go-json"
)

type AttendanceHandler interface {
	Ingest(w http.ResponseWriter, r *http.Request)
	ClockIn(w http.ResponseWriter, r *http.Request)
	ClockOut(w http.ResponseWriter, r *http.Request)
	OpenShift(w http.ResponseWriter, r *http.Request)
	OpenShiftStream(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	ingestor  attendance.Ingestor
	tracker   attendance.Tracker
	hub       *sse.Hub
	keepalive time.Duration
}

func NewAttendanceHandler(ingestor attendance.Ingestor, tracker attendance.Tracker, hub *sse.Hub) AttendanceHandler {
	return &attendanceHandlerImpl{
		ingestor:  ingestor,
		tracker:   tracker,
		hub:       hub,
		keepalive: 30 * time.Second,
	}
}

// Ingest implements AttendanceHandler.
func (h *attendanceHandlerImpl) Ingest(w http.ResponseWriter, r *http.Request) {
	var req attendance.DeviceIngestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := req.Validate()
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.ingestor.IngestDevice(r.Context(), event)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if result.Duplicate {
		response.SuccessWithMessage(w, "Event already recorded", attendance.NewIngestResponse(result))
		return
	}
	response.Created(w, "Event recorded", attendance.NewIngestResponse(result))
}

// ClockIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, attendance.EventClockIn, "Clock in successful")
}

// ClockOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, attendance.EventClockOut, "Clock out successful")
}

func (h *attendanceHandlerImpl) clock(w http.ResponseWriter, r *http.Request, eventType attendance.EventType, message string) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.ClockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userEvent, biometric, err := req.Validate(eventType)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var result attendance.IngestResult
	if biometric != nil {
		result, err = h.ingestor.ClockBiometric(r.Context(), principal, *biometric)
	} else {
		result, err = h.ingestor.ClockUser(r.Context(), principal, userEvent)
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if result.Duplicate {
		response.SuccessWithMessage(w, "Event already recorded", attendance.NewIngestResponse(result))
		return
	}
	response.Created(w, message, attendance.NewIngestResponse(result))
}

// OpenShift implements AttendanceHandler.
func (h *attendanceHandlerImpl) OpenShift(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.tracker.OpenShift(r.Context(), principal, r.URL.Query().Get("employee_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// OpenShiftStream pushes open/closed transitions for one employee. The first
// event is the current state.
func (h *attendanceHandlerImpl) OpenShiftStream(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	current, err := h.tracker.OpenShift(r.Context(), principal, r.URL.Query().Get("employee_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	events, cleanup := h.hub.Subscribe(sse.OpenShiftTopic(principal.CompanyID, current.EmployeeID))
	defer cleanup()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, sse.EventOpenShift, current)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event.Name, event.Data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode stream event", "event", name, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

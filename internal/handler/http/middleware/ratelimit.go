package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
)

const maxIngestBody = 1 << 20

// DeviceRateLimit limits ingest calls per device_id found in the JSON body.
// Requests without one are limited by client IP.
func DeviceRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyByDeviceID),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests from this device")
		}),
	)
}

// keyByDeviceID peeks at the body and restores it for the handler. Anything
// past the peek window stays unread so the handler's own size limit applies.
func keyByDeviceID(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}

	var peek struct {
		DeviceID string `json:"device_id"`
	}
	if json.Unmarshal(body, &peek) == nil && peek.DeviceID != "" {
		return "device:" + peek.DeviceID, nil
	}
	return httprate.KeyByIP(r)
}

package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	json "github.com/goccy/go-json"
)

// maxRequestBody leaves room for a base64 biometric image at evidence.MaxImageBytes.
const maxRequestBody = 3 << 20

// decodeJSON reads at most maxRequestBody bytes into dst. It writes the error
// response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		response.BadRequest(w, "Invalid request body", nil)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/company"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/day"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingPrincipal):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())
	case errors.Is(err, user.ErrEmployeeNotLinked):
		Forbidden(w, "User account is not linked to an employee")

	// Ingest errors
	case errors.Is(err, attendance.ErrInvalidDeviceCredential):
		Error(w, http.StatusUnauthorized, "INVALID_DEVICE_CREDENTIAL", "Invalid device credential")
	case errors.Is(err, attendance.ErrUnknownEmployee):
		Error(w, http.StatusNotFound, "UNKNOWN_EMPLOYEE", "Unknown employee")
	case errors.Is(err, attendance.ErrOpenShiftExists):
		Error(w, http.StatusConflict, "OPEN_SHIFT_EXISTS", "Employee already has an open shift")
	case errors.Is(err, attendance.ErrNoOpenShift):
		Error(w, http.StatusConflict, "NO_OPEN_SHIFT", "Employee has no open shift")
	case errors.Is(err, attendance.ErrDuplicateEvent):
		Conflict(w, err.Error())
	case errors.Is(err, attendance.ErrClockOutBeforeClockIn):
		Error(w, http.StatusUnprocessableEntity, "CLOCK_OUT_BEFORE_CLOCK_IN", err.Error())
	case errors.Is(err, attendance.ErrRecordNotFound):
		NotFound(w, "Attendance record not found")

	// Geofence errors
	case errors.Is(err, geofence.ErrFenceRequired):
		Error(w, http.StatusForbidden, "FENCE_REQUIRED", err.Error())
	case errors.Is(err, geofence.ErrOutsideGeofence):
		ErrorWithDetails(w, http.StatusForbidden, "OUTSIDE_GEOFENCE", err.Error(), outsideDetails(err))
	case errors.Is(err, geofence.ErrLocationTooImprecise):
		Retryable(w, http.StatusUnprocessableEntity, "LOCATION_TOO_IMPRECISE", err.Error(), impreciseDetails(err))
	case errors.Is(err, geofence.ErrLocationRequired):
		Retryable(w, http.StatusUnprocessableEntity, "LOCATION_REQUIRED", err.Error(), nil)
	case errors.Is(err, geofence.ErrFenceNotFound):
		NotFound(w, "Geofence not found")

	// Shift errors
	case errors.Is(err, shift.ErrNoShiftConfigured):
		Error(w, http.StatusUnprocessableEntity, "NO_SHIFT_CONFIGURED", err.Error())
	case errors.Is(err, shift.ErrWorkingDaysUnset), errors.Is(err, shift.ErrInvalidWorkingDays):
		Error(w, http.StatusUnprocessableEntity, "INVALID_WORKING_DAYS", err.Error())
	case errors.Is(err, shift.ErrShiftNotFound):
		NotFound(w, "Shift not found")

	// Evidence errors
	case errors.Is(err, evidence.ErrEvidenceNotFound):
		NotFound(w, "Evidence not found")
	case errors.Is(err, evidence.ErrBiometricMismatch):
		Error(w, http.StatusForbidden, "BIOMETRIC_MISMATCH", err.Error())
	case errors.Is(err, evidence.ErrBiometricNotEnrolled):
		Error(w, http.StatusConflict, "BIOMETRIC_NOT_ENROLLED", err.Error())
	case errors.Is(err, evidence.ErrBiometricUnavailable):
		Error(w, http.StatusServiceUnavailable, "BIOMETRIC_UNAVAILABLE", err.Error())
	case errors.Is(err, evidence.ErrImageRequired),
		errors.Is(err, evidence.ErrImageEncoding),
		errors.Is(err, evidence.ErrImageTooLarge),
		errors.Is(err, evidence.ErrUnsupportedImageType),
		errors.Is(err, evidence.ErrUnsupportedModality),
		errors.Is(err, evidence.ErrFingerprintUnsupported):
		Error(w, http.StatusUnprocessableEntity, "INVALID_BIOMETRIC", err.Error())

	// Day aggregation errors
	case errors.Is(err, day.ErrRangeTooLarge), errors.Is(err, day.ErrInvalidRange):
		Error(w, http.StatusUnprocessableEntity, "INVALID_RANGE", err.Error())

	// Lookup errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, employee.ErrEmployeeInactive):
		Error(w, http.StatusUnprocessableEntity, "EMPLOYEE_INACTIVE", err.Error())
	case errors.Is(err, device.ErrDeviceNotFound):
		NotFound(w, "Device not found")
	case errors.Is(err, company.ErrCompanyNotFound):
		NotFound(w, "Company not found")

	case errors.Is(err, context.DeadlineExceeded):
		Error(w, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

func outsideDetails(err error) map[string]string {
	var outside *geofence.OutsideError
	if !errors.As(err, &outside) {
		return nil
	}
	details := map[string]string{"fence_id": outside.FenceID}
	if outside.DistanceOutsideM != nil {
		details["distance_outside_m"] = strconv.FormatFloat(*outside.DistanceOutsideM, 'f', 1, 64)
	}
	return details
}

func impreciseDetails(err error) map[string]string {
	var imprecise *geofence.ImpreciseError
	if !errors.As(err, &imprecise) {
		return nil
	}
	return map[string]string{
		"accuracy_m":     strconv.FormatFloat(imprecise.AccuracyM, 'f', 1, 64),
		"min_accuracy_m": strconv.Itoa(imprecise.MinAccuracyM),
	}
}

package evidence

import "errors"

var (
	ErrBiometricNotEnrolled   = errors.New("biometric not enrolled")
	ErrBiometricMismatch      = errors.New("biometric mismatch")
	ErrBiometricUnavailable   = errors.New("face recognition unavailable")
	ErrUnsupportedModality    = errors.New("unsupported biometric modality")
	ErrFingerprintUnsupported = errors.New("fingerprint biometrics not supported")
	ErrImageRequired          = errors.New("biometric image is required")
	ErrImageEncoding          = errors.New("invalid biometric image encoding")
	ErrImageTooLarge          = errors.New("biometric image too large")
	ErrUnsupportedImageType   = errors.New("biometric image must be jpeg or png")
	ErrEvidenceNotFound       = errors.New("evidence not found")
)

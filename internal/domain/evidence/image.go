package evidence

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds decoded biometric images.
const MaxImageBytes = 2 << 20

var dataURL = regexp.MustCompile(`^data:([^;]+);base64,(.*)$`)

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// DecodeImage accepts raw base64 or a data URL and returns the sniffed MIME
// type with the decoded bytes. The declared type of a data URL is ignored.
func DecodeImage(raw string) (string, []byte, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", nil, ErrImageRequired
	}
	if m := dataURL.FindStringSubmatch(v); m != nil {
		v = m[2]
	}

	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil || len(b) == 0 {
		return "", nil, ErrImageEncoding
	}
	if len(b) > MaxImageBytes {
		return "", nil, ErrImageTooLarge
	}

	mime := mimetype.Detect(b).String()
	if _, ok := allowedImageTypes[mime]; !ok {
		return "", nil, ErrUnsupportedImageType
	}
	return mime, b, nil
}

// Extension returns the file extension stored for mime.
func Extension(mime string) string {
	if ext, ok := allowedImageTypes[mime]; ok {
		return ext
	}
	return "bin"
}

// NormalizeModality maps client aliases onto supported modalities.
func NormalizeModality(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "face", "selfie", "photo", "camera":
		return ModalityFace, nil
	case "fingerprint", "finger", "thumb", "thumbprint":
		return "", ErrFingerprintUnsupported
	}
	return "", ErrUnsupportedModality
}

// HashHex returns the hex SHA-256 of b.
func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

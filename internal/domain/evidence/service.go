package evidence

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
)

type EvidenceService interface {
	// Verify matches a capture against the employee's enrolled template and
	// returns its content hash.
	Verify(ctx context.Context, c Capture) (string, error)

	// Record persists evidence for a clock event on recordID.
	Record(ctx context.Context, recordID string, event EventType, c Capture, hash string) (Item, error)

	Enroll(ctx context.Context, p auth.Principal, req EnrollRequest) (ItemResponse, error)
	ListByRecord(ctx context.Context, p auth.Principal, recordID string) ([]ItemResponse, error)

	// OpenImage streams a stored evidence image to a principal allowed to see
	// the item's employee. The caller closes Body.
	OpenImage(ctx context.Context, p auth.Principal, id string, variant ImageVariant) (ImageObject, error)
}

package evidence

import "context"

type ItemRepository interface {
	Create(ctx context.Context, item Item) (Item, error)
	// ListByRecord returns items ordered by created_at then id.
	ListByRecord(ctx context.Context, companyID, recordID string, limit int) ([]Item, error)
	// GetByID returns ErrEvidenceNotFound for unknown ids and other tenants' items.
	GetByID(ctx context.Context, companyID, id string) (Item, error)
}

type TemplateRepository interface {
	// Get returns nil when the employee has no template for modality.
	Get(ctx context.Context, companyID, employeeID, modality string) (*Template, error)
	Upsert(ctx context.Context, t Template) (Template, error)
}

// Matcher compares a probe image against an enrolled template.
type Matcher interface {
	Match(ctx context.Context, tpl Template, enrolled, probe []byte) (bool, error)
}

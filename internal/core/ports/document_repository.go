package ports

import (
	"context"

	"github.com/fishsupply/supply-system/internal/core/domain"
)

// DocumentRepository persists the documents of a single entity type.
// Implementations report a malformed identity with domain.ErrInvalidID and a
// missing document with domain.ErrNotFound.
type DocumentRepository interface {
	// Insert stores doc under a new store-assigned identity and returns the
	// persisted document.
	Insert(ctx context.Context, doc domain.Document) (domain.Document, error)
	FindAll(ctx context.Context, sort []domain.SortKey) ([]domain.Document, error)
	FindByID(ctx context.Context, id string) (domain.Document, error)
	// ExistsBy reports whether another document holds value in field. When
	// excludeID is non-empty that document is ignored.
	ExistsBy(ctx context.Context, field string, value any, excludeID string) (bool, error)
	// Update sets the given fields on the document and returns the result.
	Update(ctx context.Context, id string, set domain.Document) (domain.Document, error)
	Delete(ctx context.Context, id string) error
}

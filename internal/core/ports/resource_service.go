package ports

import (
	"context"

	"github.com/fishsupply/supply-system/internal/core/domain"
)

// ResourceService is the validated CRUD use case for one entity type.
// Input maps carry raw client values keyed by field name.
type ResourceService interface {
	Schema() *domain.Schema
	Create(ctx context.Context, fields map[string]any) (domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	Get(ctx context.Context, id string) (domain.Document, error)
	// Update applies a partial change; omitted fields keep their stored values.
	Update(ctx context.Context, id string, fields map[string]any) (domain.Document, error)
	Delete(ctx context.Context, id string) error
}

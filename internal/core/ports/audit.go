package ports

import (
	"context"

	"github.com/fishsupply/supply-system/internal/core/domain"
)

// AuditRepository persists audit events.
type AuditRepository interface {
	InsertAudit(ctx context.Context, event *domain.AuditEvent) error
}

// AuditService records audit events handed over by the dispatcher.
type AuditService interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// AuditPublisher accepts audit events for asynchronous recording. Publish
// must not block the request path.
type AuditPublisher interface {
	Publish(event domain.AuditEvent)
}

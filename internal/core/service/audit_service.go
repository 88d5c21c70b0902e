package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fishsupply/supply-system/internal/core/domain"
	"github.com/fishsupply/supply-system/internal/core/ports"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService that persists events through repo.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record persists a single audit event.
func (s *auditService) Record(ctx context.Context, event domain.AuditEvent) error {
	if event.Entity == "" || event.DocumentID == "" {
		return fmt.Errorf("record audit: incomplete event %q", event.EventID)
	}

	if err := s.repo.InsertAudit(ctx, &event); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}

	s.log.Debug().
		Str("entity", event.Entity).
		Str("id", event.DocumentID).
		Str("action", string(event.Action)).
		Msg("audit event recorded")

	return nil
}

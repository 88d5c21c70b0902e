package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fishsupply/supply-system/internal/core/domain"
	"github.com/fishsupply/supply-system/internal/core/ports"
)

// UniqueClaimer serialises concurrent writers of the same unique value
// (Redis). A failed claim means another request is writing that value.
// Release only drops a claim still held under the same token.
type UniqueClaimer interface {
	Claim(ctx context.Context, entity, field, value, token string) (bool, error)
	Release(ctx context.Context, entity, field, value, token string) error
}

// ResourceService implements ports.ResourceService for any schema.
type ResourceService struct {
	schema   *domain.Schema
	repo     ports.DocumentRepository
	claims   UniqueClaimer
	audit    ports.AuditPublisher
	validate *schemaValidator
	logger   zerolog.Logger
	now      func() time.Time
}

// NewResourceService binds a schema to its repository. claims and audit may
// be nil, in which case uniqueness relies on the store alone and no audit
// trail is written.
func NewResourceService(
	schema *domain.Schema,
	repo ports.DocumentRepository,
	claims UniqueClaimer,
	audit ports.AuditPublisher,
	logger zerolog.Logger,
) *ResourceService {
	if claims == nil {
		claims = noopClaimer{}
	}
	if audit == nil {
		audit = noopPublisher{}
	}
	return &ResourceService{
		schema:   schema,
		repo:     repo,
		claims:   claims,
		audit:    audit,
		validate: newSchemaValidator(),
		logger:   logger.With().Str("entity", schema.Entity).Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ResourceService) Schema() *domain.Schema { return s.schema }

// Create validates fields, checks unique constraints, computes derived fields
// and inserts a new document.
func (s *ResourceService) Create(ctx context.Context, fields map[string]any) (domain.Document, error) {
	doc, err := s.validate.prepare(s.schema, fields, true)
	if err != nil {
		return nil, err
	}

	unique := s.uniqueValues(doc, nil)
	release, err := s.claimAll(ctx, unique)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkUnique(ctx, unique, ""); err != nil {
		return nil, err
	}
	if err := s.derive(doc, nil); err != nil {
		return nil, err
	}

	now := s.now()
	doc[domain.FieldCreatedAt] = now
	doc[domain.FieldUpdatedAt] = now

	created, err := s.repo.Insert(ctx, doc)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create document")
		return nil, err
	}

	s.logger.Info().Str("id", created.ID()).Msg("document created")
	s.publish(ctx, domain.AuditCreate, created.ID(), doc)
	return created, nil
}

// List returns every document in the schema's sort order.
func (s *ResourceService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.repo.FindAll(ctx, s.schema.Sort)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.schema.Collection, err)
	}
	return docs, nil
}

// Get returns one document by identity.
func (s *ResourceService) Get(ctx context.Context, id string) (domain.Document, error) {
	return s.repo.FindByID(ctx, id)
}

// Update applies a partial change. Unique fields are only re-checked when
// their value actually changes, and derived fields are recomputed from the
// merged document whenever one of their inputs is supplied.
func (s *ResourceService) Update(ctx context.Context, id string, fields map[string]any) (domain.Document, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes, err := s.validate.prepare(s.schema, fields, false)
	if err != nil {
		return nil, err
	}

	unique := s.uniqueValues(changes, existing)
	release, err := s.claimAll(ctx, unique)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkUnique(ctx, unique, existing.ID()); err != nil {
		return nil, err
	}
	if err := s.derive(changes, existing); err != nil {
		return nil, err
	}

	changed := slices.Sorted(maps.Keys(changes))
	changes[domain.FieldUpdatedAt] = s.now()

	updated, err := s.repo.Update(ctx, existing.ID(), changes)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Msg("failed to update document")
		return nil, err
	}

	s.logger.Info().Str("id", id).Strs("fields", changed).Msg("document updated")
	s.publish(ctx, domain.AuditUpdate, id, changes)
	return updated, nil
}

// Delete removes a document by identity. Authenticated actors need the
// delete permission.
func (s *ResourceService) Delete(ctx context.Context, id string) error {
	if actor := domain.ActorFrom(ctx); !actor.Can(domain.PermDelete) {
		s.logger.Warn().Str("id", id).Str("actor", actor.Username).Str("role", actor.Role).Msg("delete denied")
		return domain.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("id", id).Msg("document deleted")
	s.publish(ctx, domain.AuditDelete, id, nil)
	return nil
}

// uniqueValues picks the unique fields of doc that need checking. When
// existing is non-nil, values equal to the stored ones are skipped.
func (s *ResourceService) uniqueValues(doc, existing domain.Document) map[string]any {
	out := make(map[string]any)
	for _, f := range s.schema.UniqueFields() {
		v, ok := doc[f.Name]
		if !ok || isBlank(v) {
			continue
		}
		if existing != nil && domain.SameValue(v, existing[f.Name]) {
			continue
		}
		out[f.Name] = v
	}
	return out
}

func (s *ResourceService) checkUnique(ctx context.Context, values map[string]any, excludeID string) error {
	conflict := &domain.ConflictError{Entity: s.schema.Entity}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		exists, err := s.repo.ExistsBy(ctx, name, values[name], excludeID)
		if err != nil {
			return fmt.Errorf("check unique %s: %w", name, err)
		}
		if exists {
			conflict.Add(name)
		}
	}
	return conflict.OrNil()
}

// claimAll claims every value under a fresh token and returns a func
// releasing those it got. Claim store failures are logged and skipped; the
// unique index still holds.
func (s *ResourceService) claimAll(ctx context.Context, values map[string]any) (func(), error) {
	if len(values) == 0 {
		return func() {}, nil
	}
	token := uuid.NewString()
	var held []string
	release := func() {
		for _, name := range held {
			if err := s.claims.Release(context.WithoutCancel(ctx), s.schema.Entity, name, fmt.Sprint(values[name]), token); err != nil {
				s.logger.Warn().Err(err).Str("field", name).Msg("failed to release unique claim")
			}
		}
	}

	conflict := &domain.ConflictError{Entity: s.schema.Entity}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		ok, err := s.claims.Claim(ctx, s.schema.Entity, name, fmt.Sprint(values[name]), token)
		if err != nil {
			s.logger.Warn().Err(err).Str("field", name).Msg("unique claim failed, relying on index")
			continue
		}
		if !ok {
			conflict.Add(name)
			continue
		}
		held = append(held, name)
	}
	if err := conflict.OrNil(); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// derive recomputes derived fields into changes. On create (existing nil)
// every derived field is computed; on update only those with a changed input.
func (s *ResourceService) derive(changes, existing domain.Document) error {
	merged := changes
	if existing != nil {
		merged = existing.Merge(changes)
	}
	for _, d := range s.schema.Derived {
		if existing != nil && !touches(changes, d.Inputs) {
			continue
		}
		v, err := d.Compute(merged)
		if err != nil {
			verr := &domain.ValidationError{Entity: s.schema.Entity}
			verr.Add(d.Name, err.Error())
			return verr
		}
		changes[d.Name] = v
	}
	return nil
}

func touches(changes domain.Document, inputs []string) bool {
	for _, in := range inputs {
		if _, ok := changes[in]; ok {
			return true
		}
	}
	return false
}

func (s *ResourceService) publish(ctx context.Context, action domain.AuditAction, id string, fields domain.Document) {
	var names []string
	for name := range fields {
		if name == domain.FieldCreatedAt || name == domain.FieldUpdatedAt {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	actor := domain.ActorFrom(ctx)
	s.audit.Publish(domain.AuditEvent{
		EventID:    uuid.NewString(),
		Entity:     s.schema.Entity,
		DocumentID: id,
		Action:     action,
		Fields:     names,
		Actor:      actor.Username,
		ActorRole:  actor.Role,
		Timestamp:  s.now(),
	})
}

type noopClaimer struct{}

func (noopClaimer) Claim(context.Context, string, string, string, string) (bool, error) {
	return true, nil
}
func (noopClaimer) Release(context.Context, string, string, string, string) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(domain.AuditEvent) {}

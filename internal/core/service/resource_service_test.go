package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fishsupply/supply-system/internal/core/domain"
)

type memoryRepo struct {
	mu     sync.Mutex
	seq    int
	docs   map[string]domain.Document
	insErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: make(map[string]domain.Document)}
}

func (r *memoryRepo) validID(id string) bool {
	return len(id) == 24
}

func (r *memoryRepo) Insert(_ context.Context, doc domain.Document) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insErr != nil {
		return nil, r.insErr
	}
	r.seq++
	out := doc.Clone()
	out[domain.FieldID] = fmt.Sprintf("%024x", r.seq)
	r.docs[out.ID()] = out
	return out.Clone(), nil
}

func (r *memoryRepo) FindAll(_ context.Context, keys []domain.SortKey) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	if len(keys) == 1 && keys[0].Desc {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i].Time(keys[0].Field)
			b, _ := out[j].Time(keys[0].Field)
			return a.After(b)
		})
	}
	return out, nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validID(id) {
		return nil, domain.InvalidID("document")
	}
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.NotFound("document")
	}
	return d.Clone(), nil
}

func (r *memoryRepo) ExistsBy(_ context.Context, field string, value any, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.docs {
		if id == excludeID {
			continue
		}
		if domain.SameValue(d[field], value) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Update(_ context.Context, id string, set domain.Document) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.NotFound("document")
	}
	merged := d.Merge(set)
	r.docs[id] = merged
	return merged.Clone(), nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.validID(id) {
		return domain.InvalidID("document")
	}
	if _, ok := r.docs[id]; !ok {
		return domain.NotFound("document")
	}
	delete(r.docs, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (p *recordingPublisher) Publish(e domain.AuditEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type stubClaimer struct {
	taken         map[string]bool
	released      []string
	claimTokens   []string
	releaseTokens []string
	err           error
}

func (c *stubClaimer) Claim(_ context.Context, entity, field, value, token string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.claimTokens = append(c.claimTokens, token)
	return !c.taken[entity+":"+field+":"+value], nil
}

func (c *stubClaimer) Release(_ context.Context, entity, field, value, token string) error {
	c.released = append(c.released, entity+":"+field+":"+value)
	c.releaseTokens = append(c.releaseTokens, token)
	return nil
}

func newTestService(schema *domain.Schema) (*ResourceService, *memoryRepo, *recordingPublisher) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	return NewResourceService(schema, repo, nil, pub, zerolog.Nop()), repo, pub
}

func stockInput(code string, qty, price float64) map[string]any {
	return map[string]any{
		"i_code":     code,
		"i_name":     "Yellowfin Tuna",
		"i_category": "Oily Fish",
		"qty":        qty,
		"u_price":    price,
	}
}

func TestResourceService_Create_StockDerivesTotal(t *testing.T) {
	svc, _, pub := newTestService(domain.StockSchema())

	doc, err := svc.Create(context.Background(), stockInput("I0001", 10, 250))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if got, _ := doc.Float("t_value"); got != 2500 {
		t.Fatalf("expected t_value 2500, got %v", doc["t_value"])
	}
	if doc.ID() == "" {
		t.Fatalf("expected id to be assigned")
	}
	if doc["status"] != "active" {
		t.Fatalf("expected default status active, got %v", doc["status"])
	}
	if _, ok := doc.Time(domain.FieldCreatedAt); !ok {
		t.Fatalf("expected createdAt to be set")
	}
	if len(pub.events) != 1 || pub.events[0].Action != domain.AuditCreate {
		t.Fatalf("expected one create audit event, got %+v", pub.events)
	}

	updated, err := svc.Update(context.Background(), doc.ID(), map[string]any{"qty": 20})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got, _ := updated.Float("t_value"); got != 5000 {
		t.Fatalf("expected t_value 5000 after update, got %v", updated["t_value"])
	}
}

func TestResourceService_Create_IgnoresClientDerivedValue(t *testing.T) {
	svc, _, _ := newTestService(domain.StockSchema())

	in := stockInput("I0002", 4, 2.5)
	in["t_value"] = 99999
	doc, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if got, _ := doc.Float("t_value"); got != 10 {
		t.Fatalf("expected t_value 10, got %v", doc["t_value"])
	}
}

func TestResourceService_Update_RecomputesTotalFromEitherInput(t *testing.T) {
	svc, repo, _ := newTestService(domain.StockSchema())

	doc, err := svc.Create(context.Background(), stockInput("I0003", 4, 2.5))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	updated, err := svc.Update(context.Background(), doc.ID(), map[string]any{"u_price": 12.25})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got, _ := updated.Float("t_value"); got != 49 {
		t.Fatalf("expected t_value 49 after price change, got %v", updated["t_value"])
	}

	updated, err = svc.Update(context.Background(), doc.ID(), map[string]any{"t_value": 1, "qty": 2})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got, _ := updated.Float("t_value"); got != 24.5 {
		t.Fatalf("expected t_value 24.5 with client value ignored, got %v", updated["t_value"])
	}

	updated, err = svc.Update(context.Background(), doc.ID(), map[string]any{"t_value": 1})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got, _ := updated.Float("t_value"); got != 24.5 {
		t.Fatalf("expected t_value unchanged at 24.5, got %v", updated["t_value"])
	}
	if got, _ := repo.docs[doc.ID()].Float("t_value"); got != 24.5 {
		t.Fatalf("expected stored t_value 24.5, got %v", repo.docs[doc.ID()]["t_value"])
	}
}

func TestResourceService_Create_RejectsOverflowingTotal(t *testing.T) {
	svc, repo, pub := newTestService(domain.StockSchema())

	_, err := svc.Create(context.Background(), stockInput("I0004", 10, 1e308))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0].Field != "t_value" {
		t.Fatalf("expected t_value violation, got %v", err)
	}
	if len(repo.docs) != 0 || len(pub.events) != 0 {
		t.Fatalf("expected nothing stored or audited, got %d docs, %d events", len(repo.docs), len(pub.events))
	}
}

func TestResourceService_Update_RejectsOverflowingTotal(t *testing.T) {
	svc, repo, _ := newTestService(domain.StockSchema())

	doc, err := svc.Create(context.Background(), stockInput("I0005", 10, 250))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, err = svc.Update(context.Background(), doc.ID(), map[string]any{"u_price": 1e308})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored := repo.docs[doc.ID()]
	if got, _ := stored.Float("u_price"); got != 250 {
		t.Fatalf("expected stored price unchanged, got %v", stored["u_price"])
	}
}

func TestResourceService_Create_UniqueConflictAfterNormalisation(t *testing.T) {
	svc, _, _ := newTestService(domain.VehicleSchema())

	vehicle := func(plate string) map[string]any {
		return map[string]any{
			"licensePlate":  plate,
			"v_type":        "Truck",
			"v_model":       "Isuzu Elf",
			"year":          2020,
			"delivery_area": "Western",
			"max_load":      3500,
			"fuel_type":     "Diesel",
		}
	}

	doc, err := svc.Create(context.Background(), vehicle("abc-1234"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if doc["licensePlate"] != "ABC-1234" {
		t.Fatalf("expected normalised plate, got %v", doc["licensePlate"])
	}

	_, err = svc.Create(context.Background(), vehicle(" Abc-1234 "))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) || conflict.Fields[0].Field != "licensePlate" {
		t.Fatalf("expected licensePlate conflict, got %v", err)
	}
}

func TestResourceService_Create_ReportsEveryConflict(t *testing.T) {
	svc, _, _ := newTestService(domain.CompanySchema())

	company := map[string]any{
		"c_regno":     "C-01",
		"c_name":      "Blue Ocean",
		"address":     "12 Harbour Rd",
		"o_name":      "Nimal",
		"email":       "info@blueocean.lk",
		"phone":       "0771234567",
		"description": "Wholesale",
	}
	if _, err := svc.Create(context.Background(), company); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	company["email"] = "INFO@BlueOcean.lk"
	company["phone"] = "077-123-4567"
	_, err := svc.Create(context.Background(), company)

	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflict.Fields) != 2 {
		t.Fatalf("expected 2 conflicting fields, got %+v", conflict.Fields)
	}
}

func TestResourceService_Create_ClaimRejected(t *testing.T) {
	repo := newMemoryRepo()
	claims := &stubClaimer{taken: map[string]bool{"stock:i_code:I0003": true}}
	svc := NewResourceService(domain.StockSchema(), repo, claims, nil, zerolog.Nop())

	_, err := svc.Create(context.Background(), stockInput("I0003", 1, 1))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict from claim, got %v", err)
	}
	if len(repo.docs) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestResourceService_Create_ClaimStoreDown(t *testing.T) {
	repo := newMemoryRepo()
	claims := &stubClaimer{err: errors.New("connection refused")}
	svc := NewResourceService(domain.StockSchema(), repo, claims, nil, zerolog.Nop())

	if _, err := svc.Create(context.Background(), stockInput("I0004", 1, 1)); err != nil {
		t.Fatalf("expected create to fall back to store check, got %v", err)
	}
}

func TestResourceService_Create_ReleasesClaims(t *testing.T) {
	repo := newMemoryRepo()
	claims := &stubClaimer{}
	svc := NewResourceService(domain.StockSchema(), repo, claims, nil, zerolog.Nop())

	if _, err := svc.Create(context.Background(), stockInput("I0005", 1, 1)); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !slices.Equal(claims.released, []string{"stock:i_code:I0005"}) {
		t.Fatalf("expected claim released, got %v", claims.released)
	}
}

func TestResourceService_Create_ClaimTokenPerRequest(t *testing.T) {
	repo := newMemoryRepo()
	claims := &stubClaimer{}
	svc := NewResourceService(domain.StockSchema(), repo, claims, nil, zerolog.Nop())

	for _, code := range []string{"I0007", "I0008"} {
		if _, err := svc.Create(context.Background(), stockInput(code, 1, 1)); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}
	if len(claims.claimTokens) != 2 || claims.claimTokens[0] == "" || claims.claimTokens[0] == claims.claimTokens[1] {
		t.Fatalf("expected a distinct token per request, got %v", claims.claimTokens)
	}
	if !slices.Equal(claims.releaseTokens, claims.claimTokens) {
		t.Fatalf("expected release with the claiming token, got %v want %v", claims.releaseTokens, claims.claimTokens)
	}
}

func TestResourceService_Create_StoreFailure(t *testing.T) {
	svc, repo, pub := newTestService(domain.StockSchema())
	repo.insErr = &domain.StoreError{Op: "insert", Err: errors.New("boom")}

	_, err := svc.Create(context.Background(), stockInput("I0006", 1, 1))
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no audit event on failure")
	}
}

func TestResourceService_Create_SupplierPhoneNormalised(t *testing.T) {
	svc, _, _ := newTestService(domain.SupplierSchema())

	doc, err := svc.Create(context.Background(), map[string]any{
		"s_regno":  "s1234",
		"s_name":   "Kumara",
		"address":  "Negombo",
		"email":    "kumara@example.com",
		"phone":    "(077) 123-4567",
		"gender":   "Male",
		"birthday": "1985-04-12",
		"profile":  "profiles/kumara.png",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if doc["phone"] != "0771234567" {
		t.Fatalf("expected normalised phone, got %v", doc["phone"])
	}
	if doc["s_regno"] != "S1234" {
		t.Fatalf("expected uppercased regno, got %v", doc["s_regno"])
	}
	if doc["maritalstatus"] != "single" {
		t.Fatalf("expected default marital status, got %v", doc["maritalstatus"])
	}
}

func deliveryInput(location string) map[string]any {
	return map[string]any{
		"o_no":        "ORD-100",
		"c_code":      "C01",
		"c_name":      "Blue Ocean",
		"d_code":      "D01",
		"d_name":      "Sunil",
		"d_contactno": "0712345678",
		"v_no":        "ABC-1234",
		"d_location":  location,
	}
}

func TestResourceService_Create_DeliveryLocation(t *testing.T) {
	svc, _, _ := newTestService(domain.DeliverySchema())

	_, err := svc.Create(context.Background(), deliveryInput("Atlantis"))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Field != "d_location" {
		t.Fatalf("expected d_location validation error, got %v", err)
	}

	in := deliveryInput("Colombo")
	delete(in, "d_location")
	if _, err := svc.Create(context.Background(), in); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing location, got %v", err)
	}

	doc, err := svc.Create(context.Background(), deliveryInput("Colombo"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if doc["status"] != "pending" {
		t.Fatalf("expected pending status on create, got %v", doc["status"])
	}
	if _, ok := doc.Time("d_date"); !ok {
		t.Fatalf("expected d_date default")
	}
}

func TestResourceService_List_DeliveriesNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(domain.DeliverySchema())

	older := deliveryInput("Galle")
	older["d_date"] = "2024-01-01"
	newer := deliveryInput("Kandy")
	newer["o_no"] = "ORD-101"
	newer["d_date"] = "2024-06-01"

	for _, in := range []map[string]any{older, newer} {
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	docs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(docs) != 2 || docs[0]["o_no"] != "ORD-101" {
		t.Fatalf("expected newest delivery first, got %+v", docs)
	}
}

func TestResourceService_Update_EmptyOnlyTouchesTimestamp(t *testing.T) {
	svc, _, pub := newTestService(domain.StockSchema())
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	doc, err := svc.Create(context.Background(), stockInput("I0010", 2, 10))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	later := fixed.Add(time.Hour)
	svc.now = func() time.Time { return later }
	updated, err := svc.Update(context.Background(), doc.ID(), map[string]any{})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	for k, v := range doc {
		if k == domain.FieldUpdatedAt {
			continue
		}
		if !domain.SameValue(v, updated[k]) {
			t.Fatalf("field %s changed: %v -> %v", k, v, updated[k])
		}
	}
	if ts, _ := updated.Time(domain.FieldUpdatedAt); !ts.Equal(later) {
		t.Fatalf("expected updatedAt %v, got %v", later, ts)
	}
	if last := pub.events[len(pub.events)-1]; last.Action != domain.AuditUpdate || len(last.Fields) != 0 {
		t.Fatalf("unexpected update audit event %+v", last)
	}
}

func TestResourceService_Update_SameUniqueValueIsNotConflict(t *testing.T) {
	svc, _, _ := newTestService(domain.StockSchema())

	doc, err := svc.Create(context.Background(), stockInput("I0011", 2, 10))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Update(context.Background(), doc.ID(), map[string]any{"i_code": "i0011"}); err != nil {
		t.Fatalf("expected no conflict with itself, got %v", err)
	}
}

func TestResourceService_Update_ConflictWithOther(t *testing.T) {
	svc, _, _ := newTestService(domain.StockSchema())

	if _, err := svc.Create(context.Background(), stockInput("I0012", 1, 1)); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	doc, err := svc.Create(context.Background(), stockInput("I0013", 1, 1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Update(context.Background(), doc.ID(), map[string]any{"i_code": "I0012"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestResourceService_Update_Validation(t *testing.T) {
	svc, _, _ := newTestService(domain.StockSchema())

	doc, err := svc.Create(context.Background(), stockInput("I0014", 1, 1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, err = svc.Update(context.Background(), doc.ID(), map[string]any{"qty": 0, "u_price": "abc", "bogus": 1})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 violations, got %+v", verr.Fields)
	}
}

func TestResourceService_GetAndDelete(t *testing.T) {
	svc, _, pub := newTestService(domain.FeedbackSchema())

	doc, err := svc.Create(context.Background(), map[string]any{
		"customerName": "Ayesha",
		"email":        "ayesha@example.com",
		"rating":       5,
		"comment":      "Fresh catch",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := svc.Get(context.Background(), doc.ID())
	if err != nil || got["customerName"] != "Ayesha" {
		t.Fatalf("Get returned %v, %v", got, err)
	}

	if err := svc.Delete(context.Background(), doc.ID()); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := svc.Get(context.Background(), doc.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), doc.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if last := pub.events[len(pub.events)-1]; last.Action != domain.AuditDelete {
		t.Fatalf("expected delete audit event, got %+v", last)
	}
}

func TestResourceService_InvalidID(t *testing.T) {
	svc, _, _ := newTestService(domain.CompanySchema())
	ctx := context.Background()

	if _, err := svc.Get(ctx, "not-an-id"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("Get: expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.Update(ctx, "not-an-id", map[string]any{}); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("Update: expected ErrInvalidID, got %v", err)
	}
	if err := svc.Delete(ctx, "not-an-id"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("Delete: expected ErrInvalidID, got %v", err)
	}
}

func TestResourceService_AuditCarriesActor(t *testing.T) {
	svc, _, pub := newTestService(domain.StockSchema())

	ctx := domain.WithActor(context.Background(), domain.Actor{Username: "carol", Role: domain.RoleStaff})
	if _, err := svc.Create(ctx, stockInput("I0020", 1, 1)); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if pub.events[0].Actor != "carol" || pub.events[0].ActorRole != domain.RoleStaff || pub.events[0].EventID == "" {
		t.Fatalf("unexpected audit event %+v", pub.events[0])
	}
	if !slices.Contains(pub.events[0].Fields, "t_value") {
		t.Fatalf("expected derived field in audit fields, got %v", pub.events[0].Fields)
	}
}

func TestResourceService_Delete_RequiresPermission(t *testing.T) {
	svc, repo, pub := newTestService(domain.StockSchema())

	doc, err := svc.Create(context.Background(), stockInput("I0021", 1, 1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	staff := domain.WithActor(context.Background(), domain.Actor{Username: "sam", Role: domain.RoleStaff})
	if err := svc.Delete(staff, doc.ID()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff, got %v", err)
	}
	if _, ok := repo.docs[doc.ID()]; !ok {
		t.Fatalf("expected document to survive denied delete")
	}

	admin := domain.WithActor(context.Background(), domain.Actor{Username: "ada", Role: domain.RoleAdmin})
	if err := svc.Delete(admin, doc.ID()); err != nil {
		t.Fatalf("expected admin delete to succeed, got %v", err)
	}
	last := pub.events[len(pub.events)-1]
	if last.Action != domain.AuditDelete || last.Actor != "ada" || last.ActorRole != domain.RoleAdmin {
		t.Fatalf("unexpected delete audit event %+v", last)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/repository"
)

// memLeadRepo is a minimal in-memory LeadRepo for service tests.
type memLeadRepo struct {
	leads  map[int64]*model.Lead
	nextID int64
}

func newMemLeadRepo() *memLeadRepo {
	return &memLeadRepo{leads: map[int64]*model.Lead{}, nextID: 1}
}

func (r *memLeadRepo) Create(_ context.Context, l *model.Lead) error {
	l.ID = r.nextID
	r.nextID++
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	r.leads[l.ID] = &cp
	return nil
}

func (r *memLeadRepo) GetByID(_ context.Context, id int64) (*model.Lead, error) {
	l, ok := r.leads[id]
	if !ok {
		return nil, repository.ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memLeadRepo) Update(_ context.Context, l *model.Lead) error {
	if _, ok := r.leads[l.ID]; !ok {
		return repository.ErrLeadNotFound
	}
	l.UpdatedAt = time.Now().UTC()
	cp := *l
	r.leads[l.ID] = &cp
	return nil
}

func (r *memLeadRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.leads[id]; !ok {
		return repository.ErrLeadNotFound
	}
	delete(r.leads, id)
	return nil
}

func (r *memLeadRepo) List(_ context.Context, filter model.LeadFilter, skip, limit int) ([]*model.Lead, error) {
	out := []*model.Lead{}
	for _, l := range r.leads {
		if filter.AssignedUserID != nil && l.AssignedUserID != *filter.AssignedUserID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memLeadRepo) Count(_ context.Context, filter model.LeadFilter) (int64, error) {
	leads, _ := r.List(context.Background(), filter, 0, 0)
	return int64(len(leads)), nil
}

var (
	adminUser = &model.User{ID: 1, Name: "Admin", RoleID: model.RoleAdmin}
	salesUser = &model.User{ID: 2, Name: "Sales", RoleID: model.RoleSales}
	otherUser = &model.User{ID: 3, Name: "Other", RoleID: model.RoleSales}
)

func newLeadFixture(t *testing.T) (*LeadService, *memLeadRepo, *MemoryLogStore) {
	t.Helper()
	repo := newMemLeadRepo()
	store := NewMemoryLogStore()
	return NewLeadService(repo, NewWriter(store, nil, nil)), repo, store
}

func TestLeadCreateDefaultsAssignmentToActor(t *testing.T) {
	svc, _, _ := newLeadFixture(t)

	lead, err := svc.Create(context.Background(), salesUser, LeadCreateRequest{Name: "Acme"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if lead.AssignedUserID != salesUser.ID {
		t.Fatalf("assigned to %d, want actor %d", lead.AssignedUserID, salesUser.ID)
	}
}

func TestLeadCreateForbidsAssigningOthers(t *testing.T) {
	svc, _, _ := newLeadFixture(t)

	_, err := svc.Create(context.Background(), salesUser, LeadCreateRequest{
		Name:           "Acme",
		AssignedUserID: &otherUser.ID,
	}, nil)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	// Admins may assign to anyone.
	lead, err := svc.Create(context.Background(), adminUser, LeadCreateRequest{
		Name:           "Beta",
		AssignedUserID: &otherUser.ID,
	}, nil)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if lead.AssignedUserID != otherUser.ID {
		t.Fatalf("admin assignment ignored: %+v", lead)
	}
}

func TestLeadGetHidesOtherUsersLeads(t *testing.T) {
	svc, _, _ := newLeadFixture(t)
	lead, err := svc.Create(context.Background(), salesUser, LeadCreateRequest{Name: "Mine"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(context.Background(), otherUser, lead.ID); err == nil {
		t.Fatal("expected forbidden for another sales user")
	}
	if _, err := svc.Get(context.Background(), adminUser, lead.ID); err != nil {
		t.Fatalf("admin should see all leads: %v", err)
	}
}

func TestLeadListForcesOwnAssignments(t *testing.T) {
	svc, _, _ := newLeadFixture(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, salesUser, LeadCreateRequest{Name: "A"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, otherUser, LeadCreateRequest{Name: "B"}, nil); err != nil {
		t.Fatal(err)
	}

	// A non-admin asking for someone else's assignments still gets their own.
	leads, total, err := svc.List(ctx, salesUser, model.LeadFilter{AssignedUserID: &otherUser.ID}, 1, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || leads[0].AssignedUserID != salesUser.ID {
		t.Fatalf("ownership filter not forced: total=%d", total)
	}

	_, total, err = svc.List(ctx, adminUser, model.LeadFilter{}, 1, 50)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if total != 2 {
		t.Fatalf("admin should see both leads, got %d", total)
	}
}

func TestLeadUpdateWritesAuditTrail(t *testing.T) {
	svc, _, store := newLeadFixture(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, salesUser, LeadCreateRequest{Name: "Before", Status: "new"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	newName := "After"
	newStatus := "qualified"
	updated, err := svc.Update(ctx, salesUser, lead.ID, LeadUpdateRequest{Name: &newName, Status: &newStatus}, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "After" || updated.Status != "qualified" {
		t.Fatalf("update not applied: %+v", updated)
	}

	audits, total, err := store.ListAuditLogs(ctx, model.AuditLogFilter{Action: "UPDATE"}, 0, 10)
	if err != nil || total != 1 {
		t.Fatalf("expected one UPDATE audit record, got %d (%v)", total, err)
	}
	rec := audits[0]
	if rec.ResourceType != "lead" || rec.UserID != salesUser.ID {
		t.Fatalf("unexpected audit record: %+v", rec)
	}
	if rec.OldValues["name"] != "Before" || rec.NewValues["name"] != "After" {
		t.Fatalf("diff not recorded: old=%v new=%v", rec.OldValues, rec.NewValues)
	}
	if _, ok := rec.OldValues["status"]; !ok {
		t.Fatal("status change missing from audit diff")
	}
}

func TestLeadUpdateNoopSkipsAudit(t *testing.T) {
	svc, _, store := newLeadFixture(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, salesUser, LeadCreateRequest{Name: "Same"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	same := "Same"
	if _, err := svc.Update(ctx, salesUser, lead.ID, LeadUpdateRequest{Name: &same}, nil); err != nil {
		t.Fatalf("noop update: %v", err)
	}
	_, total, _ := store.ListAuditLogs(ctx, model.AuditLogFilter{Action: "UPDATE"}, 0, 10)
	if total != 0 {
		t.Fatalf("noop update must not write an audit record, got %d", total)
	}
}

func TestLeadDeleteRules(t *testing.T) {
	svc, repo, store := newLeadFixture(t)
	ctx := context.Background()
	lead, err := svc.Create(ctx, salesUser, LeadCreateRequest{Name: "Doomed"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, otherUser, lead.ID, nil); err == nil {
		t.Fatal("expected forbidden delete")
	}
	if err := svc.Delete(ctx, salesUser, lead.ID, nil); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, ok := repo.leads[lead.ID]; ok {
		t.Fatal("lead still present after delete")
	}

	_, total, _ := store.ListAuditLogs(ctx, model.AuditLogFilter{Action: "DELETE"}, 0, 10)
	if total != 1 {
		t.Fatalf("expected one DELETE audit record, got %d", total)
	}

	err = svc.Delete(ctx, salesUser, lead.ID, nil)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrNotFound {
		t.Fatalf("expected NOT_FOUND on double delete, got %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/repository"
)

// memUserRepo is a minimal in-memory UserRepo for service tests.
type memUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int64]*model.User{}, nextID: 1}
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) error {
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) Update(_ context.Context, id int64, upd model.UserUpdateRequest, passwordHash string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.TeamID != nil {
		u.TeamID = upd.TeamID
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateRole(_ context.Context, id int64, roleID int) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.RoleID = roleID
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) List(context.Context) ([]*model.User, error) {
	out := []*model.User{}
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func newUserFixture(t *testing.T) (*UserService, *memUserRepo, *MemoryLogStore) {
	t.Helper()
	repo := newMemUserRepo()
	store := NewMemoryLogStore()
	return NewUserService(repo, NewWriter(store, nil, nil)), repo, store
}

func TestRegisterDefaultsToSalesRole(t *testing.T) {
	svc, _, store := newUserFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, model.RegisterRequest{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "correct horse",
		RoleID:   model.RoleAdmin, // must be ignored for anonymous signup
	}, nil, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.RoleID != model.RoleSales {
		t.Fatalf("role = %d, want default %d", user.RoleID, model.RoleSales)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}

	_, total, _ := store.ListAuditLogs(ctx, model.AuditLogFilter{Action: "CREATE", ResourceType: "user"}, 0, 10)
	if total != 1 {
		t.Fatalf("expected CREATE audit record, got %d", total)
	}
}

func TestRegisterAdminMaySetRole(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	admin := &model.User{ID: 99, RoleID: model.RoleAdmin}
	user, err := svc.Register(context.Background(), model.RegisterRequest{
		Name:     "New Admin",
		Email:    "boss@example.com",
		Password: "s3cret-pass",
		RoleID:   model.RoleAdmin,
	}, admin, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.RoleID != model.RoleAdmin {
		t.Fatalf("admin-requested role ignored: %d", user.RoleID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()

	req := model.RegisterRequest{Name: "A", Email: "dup@example.com", Password: "password1"}
	if _, err := svc.Register(ctx, req, nil, nil); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, req, nil, nil)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, store := newUserFixture(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, model.RegisterRequest{
		Name: "Dana", Email: "dana@example.com", Password: "correct horse",
	}, nil, nil); err != nil {
		t.Fatal(err)
	}

	user, err := svc.Authenticate(ctx, model.LoginRequest{Email: "dana@example.com", Password: "correct horse"}, nil)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "dana@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	// Wrong password and unknown email fail identically.
	_, badPass := svc.Authenticate(ctx, model.LoginRequest{Email: "dana@example.com", Password: "wrong"}, nil)
	_, badEmail := svc.Authenticate(ctx, model.LoginRequest{Email: "ghost@example.com", Password: "whatever"}, nil)
	if badPass == nil || badEmail == nil {
		t.Fatal("expected both failures")
	}
	if badPass.Error() != badEmail.Error() {
		t.Fatalf("failure messages must not leak which part was wrong: %q vs %q", badPass, badEmail)
	}

	// Each failure leaves a security event.
	logs, total, _ := store.ListSystemLogs(ctx, model.SystemLogFilter{Category: model.CategorySecurity}, 0, 10)
	if total != 2 {
		t.Fatalf("expected 2 security events, got %d", total)
	}
	if logs[0].Level != model.LevelWarning {
		t.Fatalf("security events should be WARNING, got %s", logs[0].Level)
	}
}

func TestUpdateForbidsOtherUsers(t *testing.T) {
	svc, repo, _ := newUserFixture(t)
	ctx := context.Background()

	repo.users[1] = &model.User{ID: 1, Name: "One", Email: "one@example.com", RoleID: model.RoleSales}
	repo.users[2] = &model.User{ID: 2, Name: "Two", Email: "two@example.com", RoleID: model.RoleSales}
	repo.nextID = 3

	actor := repo.users[1]
	newName := "Hacked"
	_, err := svc.Update(ctx, actor, 2, model.UserUpdateRequest{Name: &newName}, nil)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	// Self-update works and is audited without leaking the password.
	pw := "new-password-1"
	updated, err := svc.Update(ctx, actor, 1, model.UserUpdateRequest{Name: &newName, Password: &pw}, nil)
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if updated.Name != "Hacked" {
		t.Fatalf("name not updated: %+v", updated)
	}
}

func TestUpdateAuditMasksPassword(t *testing.T) {
	svc, repo, store := newUserFixture(t)
	ctx := context.Background()

	repo.users[1] = &model.User{ID: 1, Name: "One", Email: "one@example.com", RoleID: model.RoleSales}
	repo.nextID = 2
	actor := repo.users[1]

	pw := "brand-new-pass"
	if _, err := svc.Update(ctx, actor, 1, model.UserUpdateRequest{Password: &pw}, nil); err != nil {
		t.Fatal(err)
	}

	audits, total, _ := store.ListAuditLogs(ctx, model.AuditLogFilter{Action: "UPDATE"}, 0, 10)
	if total != 1 {
		t.Fatalf("expected one audit record, got %d", total)
	}
	if audits[0].NewValues["password"] != maskedValue {
		t.Fatalf("password value leaked into audit: %v", audits[0].NewValues)
	}
}

func TestUpdateRoleRequiresAdmin(t *testing.T) {
	svc, repo, _ := newUserFixture(t)
	ctx := context.Background()

	repo.users[1] = &model.User{ID: 1, RoleID: model.RoleAdmin}
	repo.users[2] = &model.User{ID: 2, RoleID: model.RoleSales}
	repo.nextID = 3

	if _, err := svc.UpdateRole(ctx, repo.users[2], 2, model.RoleAdmin, nil); err == nil {
		t.Fatal("sales user must not change roles")
	}

	updated, err := svc.UpdateRole(ctx, repo.users[1], 2, model.RoleAdmin, nil)
	if err != nil {
		t.Fatalf("admin role change: %v", err)
	}
	if !updated.IsAdmin() {
		t.Fatalf("role not applied: %+v", updated)
	}
}

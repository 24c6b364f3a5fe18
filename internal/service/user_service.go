package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/repository"
)

// bcryptCost is the work factor for password hashing.
const bcryptCost = 12

// UserRepo is the account persistence surface.
type UserRepo interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, id int64, upd model.UserUpdateRequest, passwordHash string) (*model.User, error)
	UpdateRole(ctx context.Context, id int64, roleID int) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

// UserService owns account lifecycle and credential checks. Every mutation
// leaves an audit trail and auth failures are recorded as security events.
type UserService struct {
	repo   UserRepo
	writer *Writer
}

func NewUserService(repo UserRepo, writer *Writer) *UserService {
	return &UserService{repo: repo, writer: writer}
}

// Register creates an account. The requested role is honored only when the
// acting user is an administrator; everyone else gets the default sales role.
func (s *UserService) Register(ctx context.Context, req model.RegisterRequest, actor *model.User, meta *RequestMeta) (*model.User, error) {
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.New(apperrors.ErrConflict, "email already registered", nil)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to check existing account", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to hash password", err)
	}

	roleID := model.RoleSales
	if req.RoleID != 0 && actor.IsAdmin() {
		roleID = req.RoleID
	}
	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		RoleID:       roleID,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to create user", err)
	}

	auditActor := user.ID
	if actor != nil {
		auditActor = actor.ID
	}
	s.writer.AuditEvent(ctx, AuditEvent{
		UserID:       auditActor,
		Action:       "CREATE",
		ResourceType: "user",
		ResourceID:   formatID(user.ID),
		NewValues:    map[string]any{"name": user.Name, "email": user.Email, "role_id": user.RoleID},
	}, meta)
	return user, nil
}

// Authenticate verifies credentials. Failures are deliberately
// indistinguishable between unknown email and wrong password.
func (s *UserService) Authenticate(ctx context.Context, req model.LoginRequest, meta *RequestMeta) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.loginDenied(ctx, req.Email, meta)
			return nil, apperrors.New(apperrors.ErrAuthFailed, "invalid email or password", nil)
		}
		return nil, apperrors.New(apperrors.ErrInternal, "failed to load account", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.loginDenied(ctx, req.Email, meta)
		return nil, apperrors.New(apperrors.ErrAuthFailed, "invalid email or password", nil)
	}

	s.writer.AuditEvent(ctx, AuditEvent{
		UserID:       user.ID,
		Action:       "LOGIN",
		ResourceType: "user",
		ResourceID:   formatID(user.ID),
	}, meta)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to list users", err)
	}
	return users, nil
}

// Update edits an account. Non-admins may only edit themselves.
func (s *UserService) Update(ctx context.Context, actor *model.User, id int64, req model.UserUpdateRequest, meta *RequestMeta) (*model.User, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, apperrors.NewForbidden("cannot modify another user")
	}
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserErr(err)
	}

	var passwordHash string
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcryptCost)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to hash password", err)
		}
		passwordHash = string(hash)
	}
	if req.Email != nil && *req.Email != before.Email {
		if _, err := s.repo.GetByEmail(ctx, *req.Email); err == nil {
			return nil, apperrors.New(apperrors.ErrConflict, "email already registered", nil)
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to check existing account", err)
		}
	}

	after, err := s.repo.Update(ctx, id, req, passwordHash)
	if err != nil {
		return nil, mapUserErr(err)
	}

	oldValues, newValues := userDiff(before, after, req.Password != nil)
	s.writer.AuditEvent(ctx, AuditEvent{
		UserID:       actor.ID,
		Action:       "UPDATE",
		ResourceType: "user",
		ResourceID:   formatID(id),
		OldValues:    oldValues,
		NewValues:    newValues,
	}, meta)
	return after, nil
}

// UpdateRole changes an account's role. The route is admin-guarded; the
// check here keeps the invariant even for internal callers.
func (s *UserService) UpdateRole(ctx context.Context, actor *model.User, id int64, roleID int, meta *RequestMeta) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("administrator role required")
	}
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserErr(err)
	}
	after, err := s.repo.UpdateRole(ctx, id, roleID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	s.writer.AuditEvent(ctx, AuditEvent{
		UserID:       actor.ID,
		Action:       "UPDATE_ROLE",
		ResourceType: "user",
		ResourceID:   formatID(id),
		OldValues:    map[string]any{"role_id": before.RoleID},
		NewValues:    map[string]any{"role_id": after.RoleID},
	}, meta)
	return after, nil
}

func (s *UserService) loginDenied(ctx context.Context, email string, meta *RequestMeta) {
	s.writer.SystemEvent(ctx, SystemEvent{
		Level:     model.LevelWarning,
		Category:  model.CategorySecurity,
		Message:   "login failed",
		Module:    "auth",
		ExtraData: map[string]any{"email": email},
	}, meta)
}

// userDiff records only the fields that changed. Password values never
// appear; only the fact that one was set.
func userDiff(before, after *model.User, passwordChanged bool) (map[string]any, map[string]any) {
	oldValues := map[string]any{}
	newValues := map[string]any{}
	if before.Name != after.Name {
		oldValues["name"], newValues["name"] = before.Name, after.Name
	}
	if before.Email != after.Email {
		oldValues["email"], newValues["email"] = before.Email, after.Email
	}
	if !int64PtrEqual(before.TeamID, after.TeamID) {
		oldValues["team_id"], newValues["team_id"] = before.TeamID, after.TeamID
	}
	if passwordChanged {
		oldValues["password"], newValues["password"] = maskedValue, maskedValue
	}
	return oldValues, newValues
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mapUserErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperrors.NewNotFound("user not found")
	}
	return apperrors.New(apperrors.ErrInternal, "failed to access user", err)
}

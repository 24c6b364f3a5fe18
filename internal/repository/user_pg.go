package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/leadgate/leadgate/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

type PostgresUserRepo struct {
	db *sqlx.DB
}

func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	repo := &PostgresUserRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresUserRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role_id INTEGER NOT NULL DEFAULT 2,
			team_id BIGINT
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`)
	return nil
}

const userColumns = `id, name, email, password_hash, role_id, team_id`

func (r *PostgresUserRepo) Create(ctx context.Context, u *model.User) error {
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO users (name, email, password_hash, role_id, team_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, u.Name, u.Email, u.PasswordHash, u.RoleID, u.TeamID)
	return row.Scan(&u.ID)
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Update applies the set fields and returns the updated user.
func (r *PostgresUserRepo) Update(ctx context.Context, id int64, upd model.UserUpdateRequest, passwordHash string) (*model.User, error) {
	sets := []string{}
	args := []any{}
	if upd.Name != nil {
		args = append(args, *upd.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if upd.Email != nil {
		args = append(args, *upd.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if passwordHash != "" {
		args = append(args, passwordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	if upd.TeamID != nil {
		args = append(args, *upd.TeamID)
		sets = append(sets, fmt.Sprintf("team_id = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	var u model.User
	err := r.db.GetContext(ctx, &u, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id int64, roleID int) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u,
		`UPDATE users SET role_id = $1 WHERE id = $2 RETURNING `+userColumns, roleID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	users := []*model.User{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	return users, err
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/leadgate/leadgate/internal/model"
)

var (
	ErrLineMessageNotFound = errors.New("line message not found")
	ErrLineUserNotFound    = errors.New("line user not found")
)

type PostgresLineRepo struct {
	db *sqlx.DB
}

func NewPostgresLineRepo(db *sqlx.DB) *PostgresLineRepo {
	repo := &PostgresLineRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresLineRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS line_messages (
			id BIGSERIAL PRIMARY KEY,
			line_user_id TEXT NOT NULL,
			message_text TEXT NOT NULL DEFAULT '',
			message_type TEXT NOT NULL DEFAULT 'text',
			sticker_id TEXT NOT NULL DEFAULT '',
			sticker_url TEXT NOT NULL DEFAULT '',
			reply_token TEXT NOT NULL DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT false,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS line_users (
			id BIGSERIAL PRIMARY KEY,
			line_user_id TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			picture_url TEXT NOT NULL DEFAULT '',
			status_message TEXT NOT NULL DEFAULT '',
			last_typing TIMESTAMPTZ
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_line_messages_user ON line_messages(line_user_id, timestamp DESC)`)
	return nil
}

const lineMessageColumns = `id, line_user_id, message_text, message_type,
	sticker_id, sticker_url, reply_token, is_read, timestamp`

func (r *PostgresLineRepo) CreateMessage(ctx context.Context, m *model.LineMessage) error {
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO line_messages (
			line_user_id, message_text, message_type, sticker_id, sticker_url,
			reply_token, is_read
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, timestamp
	`, m.LineUserID, m.MessageText, m.MessageType, m.StickerID, m.StickerURL,
		m.ReplyToken, m.IsRead)
	return row.Scan(&m.ID, &m.Timestamp)
}

func (r *PostgresLineRepo) GetMessage(ctx context.Context, id int64) (*model.LineMessage, error) {
	var m model.LineMessage
	err := r.db.GetContext(ctx, &m,
		`SELECT `+lineMessageColumns+` FROM line_messages WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresLineRepo) UpdateMessage(ctx context.Context, m *model.LineMessage) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE line_messages SET
			line_user_id=$1, message_text=$2, message_type=$3, sticker_id=$4,
			sticker_url=$5, reply_token=$6, is_read=$7
		WHERE id=$8
	`, m.LineUserID, m.MessageText, m.MessageType, m.StickerID, m.StickerURL,
		m.ReplyToken, m.IsRead, m.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLineMessageNotFound
	}
	return nil
}

func (r *PostgresLineRepo) DeleteMessage(ctx context.Context, id int64) (*model.LineMessage, error) {
	row := r.db.QueryRowxContext(ctx,
		`DELETE FROM line_messages WHERE id = $1 RETURNING `+lineMessageColumns, id)
	var m model.LineMessage
	err := row.Scan(&m.ID, &m.LineUserID, &m.MessageText, &m.MessageType,
		&m.StickerID, &m.StickerURL, &m.ReplyToken, &m.IsRead, &m.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresLineRepo) ListMessages(ctx context.Context, skip, limit int) ([]*model.LineMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	messages := []*model.LineMessage{}
	err := r.db.SelectContext(ctx, &messages,
		`SELECT `+lineMessageColumns+` FROM line_messages ORDER BY timestamp DESC OFFSET $1 LIMIT $2`,
		skip, limit)
	return messages, err
}

const lineUserColumns = `id, line_user_id, display_name, picture_url, status_message, last_typing`

func (r *PostgresLineRepo) CreateUser(ctx context.Context, u *model.LineUser) error {
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO line_users (line_user_id, display_name, picture_url, status_message, last_typing)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, u.LineUserID, u.DisplayName, u.PictureURL, u.StatusMessage, u.LastTyping)
	return row.Scan(&u.ID)
}

func (r *PostgresLineRepo) GetUser(ctx context.Context, lineUserID string) (*model.LineUser, error) {
	var u model.LineUser
	err := r.db.GetContext(ctx, &u,
		`SELECT `+lineUserColumns+` FROM line_users WHERE line_user_id = $1`, lineUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresLineRepo) UpdateUser(ctx context.Context, u *model.LineUser) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE line_users SET
			display_name=$1, picture_url=$2, status_message=$3, last_typing=$4
		WHERE line_user_id=$5
	`, u.DisplayName, u.PictureURL, u.StatusMessage, u.LastTyping, u.LineUserID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLineUserNotFound
	}
	return nil
}

func (r *PostgresLineRepo) DeleteUser(ctx context.Context, lineUserID string) (*model.LineUser, error) {
	row := r.db.QueryRowxContext(ctx,
		`DELETE FROM line_users WHERE line_user_id = $1 RETURNING `+lineUserColumns, lineUserID)
	var u model.LineUser
	err := row.Scan(&u.ID, &u.LineUserID, &u.DisplayName, &u.PictureURL,
		&u.StatusMessage, &u.LastTyping)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresLineRepo) ListUsers(ctx context.Context, skip, limit int) ([]*model.LineUser, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	users := []*model.LineUser{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+lineUserColumns+` FROM line_users ORDER BY id ASC OFFSET $1 LIMIT $2`,
		skip, limit)
	return users, err
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/leadgate/leadgate/internal/model"
)

var ErrLeadNotFound = errors.New("lead not found")

type PostgresLeadRepo struct {
	db *sqlx.DB
}

func NewPostgresLeadRepo(db *sqlx.DB) *PostgresLeadRepo {
	repo := &PostgresLeadRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresLeadRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			probability DOUBLE PRECISION NOT NULL DEFAULT 0,
			company_name TEXT NOT NULL DEFAULT '',
			street TEXT NOT NULL DEFAULT '',
			street2 TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			zip_code TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			website TEXT NOT NULL DEFAULT '',
			contact_name TEXT NOT NULL DEFAULT '',
			contact_title TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			job_position TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			mobile TEXT NOT NULL DEFAULT '',
			line_id TEXT NOT NULL DEFAULT '',
			age INTEGER,
			customer_budget TEXT NOT NULL DEFAULT '',
			product_interest TEXT NOT NULL DEFAULT '',
			invoice_total NUMERIC(14,2) NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			salesperson TEXT NOT NULL DEFAULT '',
			sales_team TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			internal_notes TEXT NOT NULL DEFAULT '',
			assigned_user_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_leads_assigned_user ON leads(assigned_user_id, created_at DESC)`)
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status)`)
	return nil
}

const leadColumns = `id, name, probability, company_name, street, street2, city, state,
	zip_code, country, website, contact_name, contact_title, email, job_position,
	phone, mobile, line_id, age, customer_budget, product_interest, invoice_total,
	status, priority, salesperson, sales_team, tags, internal_notes,
	assigned_user_id, created_at, updated_at`

func (r *PostgresLeadRepo) Create(ctx context.Context, l *model.Lead) error {
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO leads (
			name, probability, company_name, street, street2, city, state,
			zip_code, country, website, contact_name, contact_title, email,
			job_position, phone, mobile, line_id, age, customer_budget,
			product_interest, invoice_total, status, priority, salesperson,
			sales_team, tags, internal_notes, assigned_user_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		RETURNING id, created_at, updated_at
	`, l.Name, l.Probability, l.CompanyName, l.Street, l.Street2, l.City, l.State,
		l.ZipCode, l.Country, l.Website, l.ContactName, l.ContactTitle, l.Email,
		l.JobPosition, l.Phone, l.Mobile, l.LineID, l.Age, l.CustomerBudget,
		l.ProductInterest, l.InvoiceTotal, l.Status, l.Priority, l.Salesperson,
		l.SalesTeam, l.Tags, l.InternalNotes, l.AssignedUserID)
	return row.Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

func (r *PostgresLeadRepo) GetByID(ctx context.Context, id int64) (*model.Lead, error) {
	var l model.Lead
	err := r.db.GetContext(ctx, &l,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Update writes the full row back; callers merge partial changes first.
func (r *PostgresLeadRepo) Update(ctx context.Context, l *model.Lead) error {
	err := r.db.GetContext(ctx, &l.UpdatedAt, `
		UPDATE leads SET
			name=$1, probability=$2, company_name=$3, street=$4, street2=$5,
			city=$6, state=$7, zip_code=$8, country=$9, website=$10,
			contact_name=$11, contact_title=$12, email=$13, job_position=$14,
			phone=$15, mobile=$16, line_id=$17, age=$18, customer_budget=$19,
			product_interest=$20, invoice_total=$21, status=$22, priority=$23,
			salesperson=$24, sales_team=$25, tags=$26, internal_notes=$27,
			assigned_user_id=$28, updated_at=now()
		WHERE id=$29
		RETURNING updated_at
	`, l.Name, l.Probability, l.CompanyName, l.Street, l.Street2, l.City, l.State,
		l.ZipCode, l.Country, l.Website, l.ContactName, l.ContactTitle, l.Email,
		l.JobPosition, l.Phone, l.Mobile, l.LineID, l.Age, l.CustomerBudget,
		l.ProductInterest, l.InvoiceTotal, l.Status, l.Priority, l.Salesperson,
		l.SalesTeam, l.Tags, l.InternalNotes, l.AssignedUserID, l.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLeadNotFound
	}
	return err
}

func (r *PostgresLeadRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func leadWhere(f model.LeadFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.AssignedUserID != nil {
		w.add("assigned_user_id = $%d", *f.AssignedUserID)
	}
	if f.Search != "" {
		term := contains(f.Search)
		w.add("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", term, term, term)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	return w
}

func (r *PostgresLeadRepo) List(ctx context.Context, filter model.LeadFilter, skip, limit int) ([]*model.Lead, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	w := leadWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM leads%s ORDER BY created_at DESC OFFSET $%d LIMIT $%d`,
		leadColumns, w.clause(), len(w.args)+1, len(w.args)+2)
	args := append(w.args, skip, limit)

	leads := []*model.Lead{}
	err := r.db.SelectContext(ctx, &leads, query, args...)
	return leads, err
}

func (r *PostgresLeadRepo) Count(ctx context.Context, filter model.LeadFilter) (int64, error) {
	w := leadWhere(filter)
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM leads`+w.clause(), w.args...)
	return total, err
}

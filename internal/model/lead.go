package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lead is a sales opportunity. Every lead is assigned to exactly one user;
// non-admins may only see and mutate their own assignments.
type Lead struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Probability float64 `json:"probability" db:"probability"`

	CompanyName string `json:"company_name,omitempty" db:"company_name"`

	Street  string `json:"street,omitempty" db:"street"`
	Street2 string `json:"street2,omitempty" db:"street2"`
	City    string `json:"city,omitempty" db:"city"`
	State   string `json:"state,omitempty" db:"state"`
	ZipCode string `json:"zip_code,omitempty" db:"zip_code"`
	Country string `json:"country,omitempty" db:"country"`
	Website string `json:"website,omitempty" db:"website"`

	ContactName  string `json:"contact_name,omitempty" db:"contact_name"`
	ContactTitle string `json:"contact_title,omitempty" db:"contact_title"`
	Email        string `json:"email,omitempty" db:"email"`
	JobPosition  string `json:"job_position,omitempty" db:"job_position"`
	Phone        string `json:"phone,omitempty" db:"phone"`
	Mobile       string `json:"mobile,omitempty" db:"mobile"`
	LineID       string `json:"line_id,omitempty" db:"line_id"`
	Age          *int   `json:"age,omitempty" db:"age"`

	CustomerBudget  string          `json:"customer_budget,omitempty" db:"customer_budget"`
	ProductInterest string          `json:"product_interest,omitempty" db:"product_interest"`
	InvoiceTotal    decimal.Decimal `json:"invoice_total" db:"invoice_total"`

	Status        string `json:"status,omitempty" db:"status"`
	Priority      int    `json:"priority" db:"priority"` // 0-3 star rating
	Salesperson   string `json:"salesperson,omitempty" db:"salesperson"`
	SalesTeam     string `json:"sales_team,omitempty" db:"sales_team"`
	Tags          string `json:"tags,omitempty" db:"tags"`
	InternalNotes string `json:"internal_notes,omitempty" db:"internal_notes"`

	AssignedUserID int64     `json:"assigned_user_id" db:"assigned_user_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// LeadFilter narrows a lead listing. Search matches name, email or phone.
type LeadFilter struct {
	AssignedUserID *int64
	Search         string
	Status         string
}

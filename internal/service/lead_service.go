package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/leadgate/leadgate/internal/model"
	"github.com/leadgate/leadgate/internal/pkg/apperrors"
	"github.com/leadgate/leadgate/internal/repository"
)

// LeadRepo is the lead persistence surface.
type LeadRepo interface {
	Create(ctx context.Context, l *model.Lead) error
	GetByID(ctx context.Context, id int64) (*model.Lead, error)
	Update(ctx context.Context, l *model.Lead) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter model.LeadFilter, skip, limit int) ([]*model.Lead, error)
	Count(ctx context.Context, filter model.LeadFilter) (int64, error)
}

// LeadCreateRequest is the create payload. AssignedUserID defaults to the
// acting user when omitted.
type LeadCreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Probability float64 `json:"probability"`

	CompanyName string `json:"company_name"`
	Street      string `json:"street"`
	Street2     string `json:"street2"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	Website     string `json:"website"`

	ContactName  string `json:"contact_name"`
	ContactTitle string `json:"contact_title"`
	Email        string `json:"email"`
	JobPosition  string `json:"job_position"`
	Phone        string `json:"phone"`
	Mobile       string `json:"mobile"`
	LineID       string `json:"line_id"`
	Age          *int   `json:"age"`

	CustomerBudget  string          `json:"customer_budget"`
	ProductInterest string          `json:"product_interest"`
	InvoiceTotal    decimal.Decimal `json:"invoice_total"`

	Status        string `json:"status"`
	Priority      int    `json:"priority" binding:"min=0,max=3"`
	Salesperson   string `json:"salesperson"`
	SalesTeam     string `json:"sales_team"`
	Tags          string `json:"tags"`
	InternalNotes string `json:"internal_notes"`

	AssignedUserID *int64 `json:"assigned_user_id"`
}

// LeadUpdateRequest is a partial update; nil fields are left untouched.
type LeadUpdateRequest struct {
	Name        *string  `json:"name"`
	Probability *float64 `json:"probability"`

	CompanyName *string `json:"company_name"`
	Street      *string `json:"street"`
	Street2     *string `json:"street2"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	ZipCode     *string `json:"zip_code"`
	Country     *string `json:"country"`
	Website     *string `json:"website"`

	ContactName  *string `json:"contact_name"`
	ContactTitle *string `json:"contact_title"`
	Email        *string `json:"email"`
	JobPosition  *string `json:"job_position"`
	Phone        *string `json:"phone"`
	Mobile       *string `json:"mobile"`
	LineID       *string `json:"line_id"`
	Age          *int    `json:"age"`

	CustomerBudget  *string          `json:"customer_budget"`
	ProductInterest *string          `json:"product_interest"`
	InvoiceTotal    *decimal.Decimal `json:"invoice_total"`

	Status        *string `json:"status"`
	Priority      *int    `json:"priority" binding:"omitempty,min=0,max=3"`
	Salesperson   *string `json:"salesperson"`
	SalesTeam     *string `json:"sales_team"`
	Tags          *string `json:"tags"`
	InternalNotes *string `json:"internal_notes"`

	AssignedUserID *int64 `json:"assigned_user_id"`
}

// LeadService owns lead lifecycle. Non-admins only see and touch their own
// assignments; every mutation is audited.
type LeadService struct {
	repo   LeadRepo
	writer *Writer
}

func NewLeadService(repo LeadRepo, writer *Writer) *LeadService {
	return &LeadService{repo: repo, writer: writer}
}

func (s *LeadService) Create(ctx context.Context, actor *model.User, req LeadCreateRequest, meta *RequestMeta) (*model.Lead, error) {
	assignedTo := actor.ID
	if req.AssignedUserID != nil {
		if !actor.IsAdmin() && *req.AssignedUserID != actor.ID {
			s.accessDenied(ctx, actor, "assign", 0, meta)
			return nil, apperrors.NewForbidden("cannot assign leads to another user")
		}
		assignedTo = *req.AssignedUserID
	}
	lead := &model.Lead{
		Name:            req.Name,
		Probability:     req.Probability,
		CompanyName:     req.CompanyName,
		Street:          req.Street,
		Street2:         req.Street2,
		City:            req.City,
		State:           req.State,
		ZipCode:         req.ZipCode,
		Country:         req.Country,
		Website:         req.Website,
		ContactName:     req.ContactName,
		ContactTitle:    req.ContactTitle,
		Email:           req.Email,
		JobPosition:     req.JobPosition,
		Phone:           req.Phone,
		Mobile:          req.Mobile,
		LineID:          req.LineID,
		Age:             req.Age,
		CustomerBudget:  req.CustomerBudget,
		ProductInterest: req.ProductInterest,
		InvoiceTotal:    req.InvoiceTotal,
		Status:          req.Status,
		Priority:        req.Priority,
		Salesperson:     req.Salesperson,
		SalesTeam:       req.SalesTeam,
		Tags:            req.Tags,
		InternalNotes:   req.InternalNotes,
		AssignedUserID:  assignedTo,
	}
	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to create lead", err)
	}
	s.writer.AuditEvent(ctx, AuditEvent{
		UserID:       actor.ID,
		Action:       "CREATE",
		ResourceType: "lead",
		ResourceID:   formatID(lead.ID),
		NewValues: map[string]any{
			"name":             lead.Name,
			"status":           lead.Status,
			"assigned_user_id": lead.AssignedUserID,
		},
	}, meta)
	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, actor *model.User, id int64) (*model.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapLeadErr(err)
	}
	if !actor.IsAdmin() && lead.AssignedUserID != actor.ID {
		s.accessDenied(ctx, actor, "read", id, nil)
		return nil, apperrors.NewForbidden("lead belongs to another user")
	}
	s.writer.SystemEvent(ctx, SystemEvent{
		Level:     model.LevelInfo,
		Category:  model.CategoryUserAction,
		Message:   "lead viewed",
		Module:    "leads",
		UserID:    &actor.ID,
		ExtraData: map[string]any{"lead_id": id},
	}, nil)
	return lead, nil
}

// List pages leads newest-first. The assignment filter is forced to the
// acting user for non-admins regardless of what the caller asked for.
func (s *LeadService) List(ctx context.Context, actor *model.User, filter model.LeadFilter, page, size int) ([]*model.Lead, int64, error) {
	if !actor.IsAdmin() {
		filter.AssignedUserID = &actor.ID
	}
	page, size = normalizePage(page, size)
	leads, err := s.repo.List(ctx, filter, (page-1)*size, size)
	if err != nil {
		return nil, 0, apperrors.New(apperrors.ErrInternal, "failed to list leads", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.New(apperrors.ErrInternal, "failed to count leads", err)
	}
	return leads, total, nil
}

// Count reports how many leads match the filter, scoped to the acting
// user's own assignments unless they are an admin.
func (s *LeadService) Count(ctx context.Context, actor *model.User, filter model.LeadFilter) (int64, error) {
	if !actor.IsAdmin() {
		filter.AssignedUserID = &actor.ID
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrInternal, "failed to count leads", err)
	}
	return total, nil
}

func (s *LeadService) Update(ctx context.Context, actor *model.User, id int64, req LeadUpdateRequest, meta *RequestMeta) (*model.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapLeadErr(err)
	}
	if !actor.IsAdmin() && lead.AssignedUserID != actor.ID {
		s.accessDenied(ctx, actor, "update", id, meta)
		return nil, apperrors.NewForbidden("lead belongs to another user")
	}
	if req.AssignedUserID != nil && !actor.IsAdmin() && *req.AssignedUserID != actor.ID {
		s.accessDenied(ctx, actor, "reassign", id, meta)
		return nil, apperrors.NewForbidden("cannot reassign leads to another user")
	}

	oldValues, newValues := applyLeadUpdate(lead, req)
	if len(newValues) == 0 {
		return lead, nil
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, mapLeadErr(err)
	}
	s.writer.AuditEvent(ctx, AuditEvent{
		UserID:       actor.ID,
		Action:       "UPDATE",
		ResourceType: "lead",
		ResourceID:   formatID(id),
		OldValues:    oldValues,
		NewValues:    newValues,
	}, meta)
	return lead, nil
}

func (s *LeadService) Delete(ctx context.Context, actor *model.User, id int64, meta *RequestMeta) error {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapLeadErr(err)
	}
	if !actor.IsAdmin() && lead.AssignedUserID != actor.ID {
		s.accessDenied(ctx, actor, "delete", id, meta)
		return apperrors.NewForbidden("lead belongs to another user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapLeadErr(err)
	}
	s.writer.AuditEvent(ctx, AuditEvent{
		UserID:       actor.ID,
		Action:       "DELETE",
		ResourceType: "lead",
		ResourceID:   formatID(id),
		OldValues: map[string]any{
			"name":             lead.Name,
			"status":           lead.Status,
			"assigned_user_id": lead.AssignedUserID,
		},
	}, meta)
	return nil
}

// applyLeadUpdate merges req into lead in place and returns the before and
// after values of the fields that actually changed.
func applyLeadUpdate(lead *model.Lead, req LeadUpdateRequest) (map[string]any, map[string]any) {
	oldValues := map[string]any{}
	newValues := map[string]any{}

	setStr := func(name string, dst *string, src *string) {
		if src != nil && *src != *dst {
			oldValues[name], newValues[name] = *dst, *src
			*dst = *src
		}
	}
	setStr("name", &lead.Name, req.Name)
	setStr("company_name", &lead.CompanyName, req.CompanyName)
	setStr("street", &lead.Street, req.Street)
	setStr("street2", &lead.Street2, req.Street2)
	setStr("city", &lead.City, req.City)
	setStr("state", &lead.State, req.State)
	setStr("zip_code", &lead.ZipCode, req.ZipCode)
	setStr("country", &lead.Country, req.Country)
	setStr("website", &lead.Website, req.Website)
	setStr("contact_name", &lead.ContactName, req.ContactName)
	setStr("contact_title", &lead.ContactTitle, req.ContactTitle)
	setStr("email", &lead.Email, req.Email)
	setStr("job_position", &lead.JobPosition, req.JobPosition)
	setStr("phone", &lead.Phone, req.Phone)
	setStr("mobile", &lead.Mobile, req.Mobile)
	setStr("line_id", &lead.LineID, req.LineID)
	setStr("customer_budget", &lead.CustomerBudget, req.CustomerBudget)
	setStr("product_interest", &lead.ProductInterest, req.ProductInterest)
	setStr("status", &lead.Status, req.Status)
	setStr("salesperson", &lead.Salesperson, req.Salesperson)
	setStr("sales_team", &lead.SalesTeam, req.SalesTeam)
	setStr("tags", &lead.Tags, req.Tags)
	setStr("internal_notes", &lead.InternalNotes, req.InternalNotes)

	if req.Probability != nil && *req.Probability != lead.Probability {
		oldValues["probability"], newValues["probability"] = lead.Probability, *req.Probability
		lead.Probability = *req.Probability
	}
	if req.Priority != nil && *req.Priority != lead.Priority {
		oldValues["priority"], newValues["priority"] = lead.Priority, *req.Priority
		lead.Priority = *req.Priority
	}
	if req.Age != nil && (lead.Age == nil || *lead.Age != *req.Age) {
		oldValues["age"], newValues["age"] = lead.Age, *req.Age
		lead.Age = req.Age
	}
	if req.InvoiceTotal != nil && !req.InvoiceTotal.Equal(lead.InvoiceTotal) {
		oldValues["invoice_total"], newValues["invoice_total"] = lead.InvoiceTotal.String(), req.InvoiceTotal.String()
		lead.InvoiceTotal = *req.InvoiceTotal
	}
	if req.AssignedUserID != nil && *req.AssignedUserID != lead.AssignedUserID {
		oldValues["assigned_user_id"], newValues["assigned_user_id"] = lead.AssignedUserID, *req.AssignedUserID
		lead.AssignedUserID = *req.AssignedUserID
	}
	return oldValues, newValues
}

// accessDenied records the refused action as a security event. Lead ID 0
// means the target did not exist yet.
func (s *LeadService) accessDenied(ctx context.Context, actor *model.User, action string, leadID int64, meta *RequestMeta) {
	extra := map[string]any{"action": action}
	if leadID != 0 {
		extra["lead_id"] = leadID
	}
	s.writer.SystemEvent(ctx, SystemEvent{
		Level:     model.LevelWarning,
		Category:  model.CategorySecurity,
		Message:   "lead access denied",
		Module:    "leads",
		UserID:    &actor.ID,
		ExtraData: extra,
	}, meta)
}

func mapLeadErr(err error) error {
	if errors.Is(err, repository.ErrLeadNotFound) {
		return apperrors.NewNotFound("lead not found")
	}
	return apperrors.New(apperrors.ErrInternal, "failed to access lead", err)
}

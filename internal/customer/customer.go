package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
)

var (
	// ErrNotFound is returned when no customer has the requested id.
	ErrNotFound = errors.New("customer: not found")
	// ErrInUse is returned when deleting a customer that documents still reference.
	ErrInUse = errors.New("customer: referenced by documents")
)

// Customer is a billed party.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	TIN       string    `json:"tin,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the writable part of a customer.
type Input struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email,max=200"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"max=500"`
	TIN     string `json:"tin" validate:"omitempty,max=32"`
}

func (in Input) normalised() Input {
	return Input{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		TIN:     strings.TrimSpace(in.TIN),
	}
}

// Store persists customers.
type Store interface {
	List(ctx context.Context, query string, limit, offset int) ([]Customer, error)
	Count(ctx context.Context, query string) (int64, error)
	Get(ctx context.Context, id uuid.UUID) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, c Customer) (Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service holds customer business rules.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// List returns a page of customers matching page.Query on name, email, phone or TIN.
func (s *Service) List(ctx context.Context, page common.Page) ([]Customer, int64, error) {
	items, err := s.Store.List(ctx, page.Query, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.Count(ctx, page.Query)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get loads one customer.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	return s.Store.Get(ctx, id)
}

// Exists returns ErrNotFound when id is unknown.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) error {
	_, err := s.Store.Get(ctx, id)
	return err
}

// Create validates and stores a new customer.
func (s *Service) Create(ctx context.Context, in Input) (Customer, error) {
	in = in.normalised()
	if err := common.Validate(in); err != nil {
		return Customer{}, err
	}
	now := s.now()
	return s.Store.Create(ctx, Customer{
		ID:        uuid.New(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		TIN:       in.TIN,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Update replaces the writable fields of a customer.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Customer, error) {
	in = in.normalised()
	if err := common.Validate(in); err != nil {
		return Customer{}, err
	}
	current, err := s.Store.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	current.Name = in.Name
	current.Email = in.Email
	current.Phone = in.Phone
	current.Address = in.Address
	current.TIN = in.TIN
	current.UpdatedAt = s.now()
	return s.Store.Update(ctx, current)
}

// Delete removes a customer that no document references.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.Store.Delete(ctx, id)
}

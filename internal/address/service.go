package address

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

// Service manages a customer's saved shipping addresses.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*AddressDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// Snapshot resolves a saved address into the value embedded on an order.
	Snapshot(ctx context.Context, userID, id uuid.UUID) (types.Address, error)
}

type service struct {
	repo *Repository
	tx   db.TxRunner
}

func NewService(repo *Repository, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "address repository required")
	}
	if tx == nil {
		return nil, errors.New(errors.CodeInternal, "transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// CreateRequest is the POST /addresses body.
type CreateRequest struct {
	Street    string `json:"street" validate:"required,max=255"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	ZipCode   string `json:"zipCode" validate:"required,max=20"`
	Country   string `json:"country" validate:"omitempty,max=2"`
	IsDefault bool   `json:"isDefault"`
}

// AddressDTO is the API shape of a saved address.
type AddressDTO struct {
	ID        uuid.UUID `json:"id"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zipCode"`
	Country   string    `json:"country"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

func toDTO(row models.Address) AddressDTO {
	return AddressDTO{
		ID:        row.ID,
		Street:    row.Street,
		City:      row.City,
		State:     row.State,
		ZipCode:   row.ZipCode,
		Country:   row.Country,
		IsDefault: row.IsDefault,
		CreatedAt: row.CreatedAt,
	}
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*AddressDTO, error) {
	normalized := types.Address{
		Street:  req.Street,
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
		Country: req.Country,
	}.Normalize()
	if err := normalized.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, err.Error())
	}

	row := &models.Address{
		ID:        uuid.New(),
		UserID:    userID,
		Street:    normalized.Street,
		City:      normalized.City,
		State:     normalized.State,
		ZipCode:   normalized.ZipCode,
		Country:   normalized.Country,
		IsDefault: req.IsDefault,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if row.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, row)
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "create address")
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "delete address")
	}
	if !deleted {
		return errors.New(errors.CodeNotFound, "address not found")
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context, userID, id uuid.UUID) (types.Address, error) {
	row, err := s.repo.FindForUser(ctx, userID, id)
	if err != nil {
		if db.IsNotFound(err) {
			return types.Address{}, errors.New(errors.CodeNotFound, "address not found")
		}
		return types.Address{}, errors.Wrap(errors.CodeInternal, err, "load address")
	}
	return row.Snapshot(), nil
}

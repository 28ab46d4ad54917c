package product

import (
	"context"
	"fmt"
	"time"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/domain"
	"packstock/internal/domain/ledger"
	"packstock/pkg/numerator"
)

// Service provides business logic for the Product catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Product]
	repo      Repository
	numerator *numerator.Service
}

// NewService creates a new Product service.
func NewService(repo Repository, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  nil, // Obtained from context
		Numerator:  num,
		EntityName: "product",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      num,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)
	base.Hooks().OnBeforeUpdate(svc.checkCodeUnique)

	return svc
}

// prepareForCreate handles code generation and uniqueness checks.
func (s *Service) prepareForCreate(ctx context.Context, item *Product) error {
	if item.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("PRD"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		item.Code = code
		return nil
	}
	return s.checkCodeUnique(ctx, item)
}

func (s *Service) checkCodeUnique(ctx context.Context, item *Product) error {
	existing, err := s.repo.GetByCode(ctx, item.Code)
	if err != nil {
		return nil
	}
	if existing.ID != item.ID {
		return apperror.NewConflict("product with this code already exists").
			WithDetail("code", item.Code)
	}
	return nil
}

// --- Entity-specific methods ---

// GetWithBatches retrieves a product with its batch ledger loaded.
func (s *Service) GetWithBatches(ctx context.Context, productID id.ID) (*Product, error) {
	p, err := s.repo.GetWithBatches(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, err
	}
	return p, nil
}

// AvailableUnits returns the current available stock for a product,
// derived from the cached aggregate.
func (s *Service) AvailableUnits(ctx context.Context, productID id.ID) (int64, error) {
	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.AvailableUnits(), nil
}

// FindLowStock retrieves products with stock at or below their threshold.
func (s *Service) FindLowStock(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error) {
	return s.repo.FindLowStock(ctx, filter)
}

// Reconcile merges a saved product row back into a locally held product.
// The saved row wins on every field it carries; the local batch ledger is
// preserved when the saved copy comes back without batches loaded (the
// product row and its ledger are stored separately, so a plain row write
// echoes no batches).
func Reconcile(local, saved *Product) *Product {
	if saved == nil {
		return local
	}
	if local == nil {
		return saved
	}

	merged := *saved
	if merged.Batches == nil {
		merged.Batches = ledger.CloneAll(local.Batches)
	}
	return &merged
}

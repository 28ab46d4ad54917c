package purchase

import (
	"context"
	"fmt"
	"time"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/core/tx"
	"packstock/internal/core/types"
	"packstock/internal/domain"
	"packstock/internal/domain/catalogs/product"
	"packstock/internal/domain/ledger"
	"packstock/pkg/logger"
	"packstock/pkg/numerator"
)

// Input carries the purchase intake parameters.
type Input struct {
	ProductID id.ID

	Packs int64
	Units int64

	Cost      types.Money
	CostBasis ledger.CostBasis

	// ForInventory drives batch intake; a false value records a pure
	// expense with no ledger effect.
	ForInventory bool

	// AcquiredAt defaults to now and becomes the batch's FIFO sort key.
	AcquiredAt time.Time

	Date    time.Time
	Comment string
}

// Service orchestrates purchase intake: it wraps the batch factory to
// append a new batch to the product's ledger and bumps the aggregate
// stock by the batch's added units.
type Service struct {
	repo      Repository
	products  product.Repository
	batches   ledger.BatchRepository
	numerator *numerator.Service
	events    domain.EventPublisher
	txManager tx.Manager // Optional. If nil, obtained from context.
}

// NewService creates a new purchase service.
func NewService(
	repo Repository,
	products product.Repository,
	batches ledger.BatchRepository,
	num *numerator.Service,
	events domain.EventPublisher,
	txManager tx.Manager,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		products:  products,
		batches:   batches,
		numerator: num,
		events:    events,
		txManager: txManager,
	}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tx.GetManager(ctx)
}

// Receive records a purchase. For inventory purchases the new batch and
// the raised aggregate persist together with the purchase record.
func (s *Service) Receive(ctx context.Context, in Input) (*Purchase, error) {
	if in.Packs < 0 || in.Units < 0 {
		return nil, apperror.NewInvalidQuantity(in.Packs, in.Units)
	}

	period := in.Date
	if period.IsZero() {
		period = time.Now()
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("PUR"), nil, period)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	var doc *Purchase
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err = s.performIntake(ctx, number, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase received",
		"id", doc.ID, "number", doc.Number,
		"product_id", doc.ProductID, "for_inventory", doc.ForInventory)
	return doc, nil
}

// performIntake builds and persists the purchase, plus its batch when the
// purchase is for inventory. Must be called inside a transaction.
func (s *Service) performIntake(ctx context.Context, number string, in Input) (*Purchase, error) {
	prod, err := s.products.GetForUpdate(ctx, in.ProductID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", in.ProductID.String())
		}
		return nil, err
	}

	doc := NewPurchase(prod.ID)
	doc.Number = number
	doc.Packs = in.Packs
	doc.LooseUnits = in.Units
	doc.Cost = in.Cost
	doc.CostBasis = in.CostBasis
	doc.ForInventory = in.ForInventory
	if !in.Date.IsZero() {
		doc.Date = in.Date
	}
	doc.Comment = in.Comment

	totalUnits := ledger.ComputeUnits(prod.PackSize, in.Packs, in.Units)
	doc.TotalCost = totalCost(in, prod.PackSize, totalUnits)

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	if in.ForInventory {
		if totalUnits <= 0 {
			return nil, apperror.NewInvalidQuantity(in.Packs, in.Units)
		}

		batch := ledger.NewBatch(prod.ID, ledger.BatchInput{
			Packs:      in.Packs,
			Units:      in.Units,
			PackSize:   prod.PackSize,
			Cost:       in.Cost,
			Basis:      in.CostBasis,
			AcquiredAt: in.AcquiredAt,
		})
		batch.PurchaseID = &doc.ID
		doc.BatchID = &batch.ID

		if err := s.batches.Create(ctx, batch); err != nil {
			return nil, apperror.NewPersistenceFailure("create batch", err)
		}

		aggregate := ledger.SumRemaining(prod.Batches) + batch.UnitsAdded
		if err := s.products.UpdateAggregate(ctx, prod.ID, aggregate); err != nil {
			return nil, apperror.NewPersistenceFailure("update aggregate", err)
		}
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, apperror.NewPersistenceFailure("create purchase", err)
	}

	if err := s.events.Publish(ctx, domain.Event{
		AggregateType: "Purchase",
		AggregateID:   doc.ID,
		Type:          domain.EventPurchaseReceived,
		Payload: map[string]any{
			"purchaseId":   doc.ID,
			"productId":    doc.ProductID,
			"units":        totalUnits,
			"forInventory": doc.ForInventory,
		},
	}); err != nil {
		return nil, err
	}

	return doc, nil
}

// Delete removes a purchase. An inventory purchase whose batch is still
// untouched takes its batch with it; a partially consumed batch blocks
// the deletion to keep existing sale allocations valid.
func (s *Service) Delete(ctx context.Context, purchaseID id.ID) error {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetByID(ctx, purchaseID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("purchase", purchaseID.String())
			}
			return err
		}

		if doc.BatchID != nil {
			prod, err := s.products.GetForUpdate(ctx, doc.ProductID)
			if err != nil {
				return err
			}

			for _, b := range prod.Batches {
				if b.ID != *doc.BatchID {
					continue
				}
				if b.RemainingUnits != b.UnitsAdded {
					return apperror.NewConflict("purchase batch already partially consumed").
						WithDetail("batchId", b.ID).
						WithDetail("consumed", b.UnitsAdded-b.RemainingUnits)
				}
				if err := s.batches.Delete(ctx, b.ID); err != nil {
					return apperror.NewPersistenceFailure("delete batch", err)
				}
				aggregate := ledger.SumRemaining(prod.Batches) - b.RemainingUnits
				if err := s.products.UpdateAggregate(ctx, prod.ID, ledger.ClampStock(aggregate)); err != nil {
					return apperror.NewPersistenceFailure("update aggregate", err)
				}
				break
			}
		}

		if err := s.repo.Delete(ctx, purchaseID); err != nil {
			return apperror.NewPersistenceFailure("delete purchase", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase deleted", "id", purchaseID)
	return nil
}

// GetByID retrieves a purchase.
func (s *Service) GetByID(ctx context.Context, purchaseID id.ID) (*Purchase, error) {
	doc, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("purchase", purchaseID.String())
		}
		return nil, err
	}
	return doc, nil
}

// List retrieves purchases with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Purchase], error) {
	return s.repo.List(ctx, filter)
}

// totalCost expands the basis cost to the full acquisition cost.
func totalCost(in Input, packSize, totalUnits int64) types.Money {
	switch in.CostBasis {
	case ledger.CostBasisPerPack:
		perUnit := in.Cost.Div(types.NewMoneyFromInt(packSize))
		return perUnit.Mul(types.NewMoneyFromInt(totalUnits))
	default:
		return in.Cost.Mul(types.NewMoneyFromInt(totalUnits))
	}
}

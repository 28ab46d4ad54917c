package sale

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

// Input carries the requested sale parameters.
type Input struct {
	ProductID id.ID

	// Packs and Units express the requested quantity.
	Packs int64
	Units int64

	// Optional price overrides. When both are nil the product's standing
	// prices apply; when only one is given the other is derived through
	// the pack size.
	PricePerUnit *types.Money
	PricePerPack *types.Money

	Date    time.Time
	Comment string
}

// Service orchestrates the sale workflow: quantity conversion, FIFO
// allocation, two-tier pricing, and all-or-nothing persistence of the
// mutated batches, the aggregate stock and the sale record.
type Service struct {
	repo      Repository
	products  product.Repository
	batches   ledger.BatchRepository
	numerator *numerator.Service
	events    domain.EventPublisher
	txManager tx.Manager // Optional. If nil, obtained from context.
}

// NewService creates a new sale service.
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

// Sell records a new sale. The batch decrements, the aggregate update and
// the sale record persist in a single transaction or not at all.
func (s *Service) Sell(ctx context.Context, in Input) (*Sale, error) {
	if in.Packs < 0 || in.Units < 0 {
		return nil, apperror.NewInvalidQuantity(in.Packs, in.Units)
	}

	// Numbering follows the document date so a back-dated sale lands
	// in that year's sequence.
	period := in.Date
	if period.IsZero() {
		period = time.Now()
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("SAL"), nil, period)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	var doc *Sale
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err = s.performSale(ctx, nil, number, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale recorded",
		"id", doc.ID, "number", doc.Number,
		"product_id", doc.ProductID, "units", doc.TotalUnitsSold,
		"profit", doc.Profit)
	return doc, nil
}

// Edit reverses the sale's allocation snapshot onto its source batches and
// re-runs the sale with the new parameters, all inside one transaction.
// The product may change: restoration goes to the old product, allocation
// runs against the new one. If the new allocation fails the transaction
// rolls back and the original sale stands untouched.
func (s *Service) Edit(ctx context.Context, saleID id.ID, in Input) (*Sale, error) {
	if in.Packs < 0 || in.Units < 0 {
		return nil, apperror.NewInvalidQuantity(in.Packs, in.Units)
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	var doc *Sale
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.getWithAllocations(ctx, saleID)
		if err != nil {
			return err
		}

		if err := s.restoreAllocations(ctx, existing); err != nil {
			return err
		}

		// The restored state is visible to the locked re-read below even
		// when the product is unchanged, because both run in the same
		// transaction.
		doc, err = s.performSale(ctx, existing, existing.Number, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale edited",
		"id", doc.ID, "number", doc.Number,
		"product_id", doc.ProductID, "units", doc.TotalUnitsSold)
	return doc, nil
}

// Delete reverses the sale's allocations and removes the record.
func (s *Service) Delete(ctx context.Context, saleID id.ID) error {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.getWithAllocations(ctx, saleID)
		if err != nil {
			return err
		}

		if err := s.restoreAllocations(ctx, existing); err != nil {
			return err
		}

		if err := s.repo.Delete(ctx, saleID); err != nil {
			return apperror.NewPersistenceFailure("delete sale", err)
		}

		return s.events.Publish(ctx, domain.Event{
			AggregateType: "Sale",
			AggregateID:   existing.ID,
			Type:          domain.EventSaleReversed,
			Payload: map[string]any{
				"saleId":    existing.ID,
				"productId": existing.ProductID,
				"units":     existing.TotalUnitsSold,
			},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "sale reversed", "id", saleID)
	return nil
}

// GetByID retrieves a sale with its allocation snapshot.
func (s *Service) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.getWithAllocations(ctx, saleID)
}

// List retrieves sales with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error) {
	return s.repo.List(ctx, filter)
}

// performSale runs the core workflow against the current ledger state.
// Must be called inside a transaction. When existing is non-nil the sale
// row is updated in place, keeping its identity and number.
func (s *Service) performSale(ctx context.Context, existing *Sale, number string, in Input) (*Sale, error) {
	prod, err := s.products.GetForUpdate(ctx, in.ProductID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", in.ProductID.String())
		}
		return nil, err
	}

	total := ledger.ComputeUnits(prod.PackSize, in.Packs, in.Units)
	if total <= 0 {
		return nil, apperror.NewInvalidQuantity(in.Packs, in.Units)
	}

	available := prod.AvailableUnits()
	if total > available {
		return nil, apperror.NewInsufficientStock(prod.ID.String(), total, available)
	}

	result := ledger.Allocate(prod.Batches, total)
	if result.Taken < total {
		// Sufficiency was just validated under lock; a shortfall here means
		// the batch snapshot disagrees with the aggregate.
		logger.Error(ctx, "allocation shortfall after sufficiency check",
			"product_id", prod.ID, "requested", total, "taken", result.Taken)
		return nil, apperror.NewConsistencyFault(prod.ID.String(), total, result.Taken)
	}

	unitPrice, packPrice := resolvePrices(prod, in)
	costTotal := ledger.CostTotal(result.Allocations)
	packsSold, remainder := ledger.SplitUnits(total, prod.PackSize)
	revenue := packPrice.Mul(types.NewMoneyFromInt(packsSold)).
		Add(unitPrice.Mul(types.NewMoneyFromInt(remainder)))

	doc := existing
	if doc == nil {
		doc = NewSale(prod.ID)
		doc.Number = number
	}
	doc.ProductID = prod.ID
	doc.Packs = in.Packs
	doc.LooseUnits = in.Units
	doc.TotalUnitsSold = total
	doc.PricePerUnit = unitPrice
	doc.PricePerPack = packPrice
	doc.Revenue = revenue
	doc.CostTotal = costTotal
	doc.Profit = revenue.Sub(costTotal)
	doc.CostPerUnitEffective = costTotal.Div(types.NewMoneyFromInt(total))
	doc.Allocations = result.Allocations
	if !in.Date.IsZero() {
		doc.Date = in.Date
	}
	if in.Comment != "" {
		doc.Comment = in.Comment
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	// Persistence order: batches, then aggregate, then the sale record.
	if err := s.batches.UpdateRemainders(ctx, result.Batches); err != nil {
		return nil, apperror.NewPersistenceFailure("update batches", err)
	}

	aggregate := ledger.SumRemaining(result.Batches)
	if err := s.products.UpdateAggregate(ctx, prod.ID, aggregate); err != nil {
		return nil, apperror.NewPersistenceFailure("update aggregate", err)
	}

	if existing == nil {
		if err := s.repo.Create(ctx, doc); err != nil {
			return nil, apperror.NewPersistenceFailure("create sale", err)
		}
	} else {
		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return nil, apperror.NewPersistenceFailure("update sale", err)
		}
	}
	if err := s.repo.SaveAllocations(ctx, doc.ID, doc.Allocations); err != nil {
		return nil, apperror.NewPersistenceFailure("save allocations", err)
	}

	if err := s.events.Publish(ctx, domain.Event{
		AggregateType: "Sale",
		AggregateID:   doc.ID,
		Type:          domain.EventSaleRecorded,
		Payload: map[string]any{
			"saleId":    doc.ID,
			"productId": doc.ProductID,
			"units":     doc.TotalUnitsSold,
			"revenue":   doc.Revenue,
			"profit":    doc.Profit,
		},
	}); err != nil {
		return nil, err
	}

	if prod.LowStockThreshold > 0 && aggregate <= prod.LowStockThreshold {
		if err := s.events.Publish(ctx, domain.Event{
			AggregateType: "Product",
			AggregateID:   prod.ID,
			Type:          domain.EventStockLow,
			Payload: map[string]any{
				"productId": prod.ID,
				"aggregate": aggregate,
				"threshold": prod.LowStockThreshold,
			},
		}); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// restoreAllocations replays the sale's snapshot back onto its source
// batches and persists the restored state. Allocations whose batch no
// longer exists are dropped with a warning. Must be called inside a
// transaction.
func (s *Service) restoreAllocations(ctx context.Context, doc *Sale) error {
	prod, err := s.products.GetForUpdate(ctx, doc.ProductID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("product", doc.ProductID.String())
		}
		return err
	}

	restored := ledger.Restore(prod.Batches, doc.Allocations)
	for _, orphan := range restored.Orphaned {
		logger.Warn(ctx, "allocation references missing batch, restoration dropped",
			"sale_id", doc.ID, "batch_id", orphan.BatchID, "units", orphan.UnitsTaken)
	}

	if err := s.batches.UpdateRemainders(ctx, restored.Batches); err != nil {
		return apperror.NewPersistenceFailure("restore batches", err)
	}
	if err := s.products.UpdateAggregate(ctx, prod.ID, ledger.SumRemaining(restored.Batches)); err != nil {
		return apperror.NewPersistenceFailure("restore aggregate", err)
	}
	return nil
}

func (s *Service) getWithAllocations(ctx context.Context, saleID id.ID) (*Sale, error) {
	doc, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, err
	}

	allocations, err := s.repo.GetAllocations(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("get allocations: %w", err)
	}
	doc.Allocations = allocations
	return doc, nil
}

// resolvePrices applies the price override rules: explicit values win,
// a single given tier derives the other through the pack size, and the
// product's standing prices fill whatever remains.
func resolvePrices(prod *product.Product, in Input) (unitPrice, packPrice types.Money) {
	packSize := types.NewMoneyFromInt(prod.PackSize)

	switch {
	case in.PricePerUnit != nil && in.PricePerPack != nil:
		return *in.PricePerUnit, *in.PricePerPack
	case in.PricePerUnit != nil:
		return *in.PricePerUnit, in.PricePerUnit.Mul(packSize)
	case in.PricePerPack != nil:
		return in.PricePerPack.Div(packSize), *in.PricePerPack
	default:
		return prod.PricePerUnit, prod.PricePerPack
	}
}

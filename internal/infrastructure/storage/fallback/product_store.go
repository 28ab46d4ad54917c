// Package fallback provides a two-tier read path over the primary product
// repository. Reads that hit an infrastructure failure are served from an
// in-memory last-known-good snapshot and the store reports itself degraded.
// Writes always go to the primary and never fall back.
package fallback

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/domain"
	"packstock/internal/domain/catalogs/product"
	"packstock/internal/domain/ledger"
	"packstock/pkg/logger"
)

// ProductStore decorates a product.Repository with snapshot-backed reads.
type ProductStore struct {
	primary product.Repository
	log     *logger.Logger

	mu     sync.RWMutex
	byID   map[id.ID]*product.Product
	byCode map[string]id.ID

	degraded atomic.Bool
}

var _ product.Repository = (*ProductStore)(nil)

// NewProductStore wraps the primary repository.
func NewProductStore(primary product.Repository, log *logger.Logger) *ProductStore {
	return &ProductStore{
		primary: primary,
		log:     log.WithComponent("fallback_store"),
		byID:    make(map[id.ID]*product.Product),
		byCode:  make(map[string]id.ID),
	}
}

// Degraded reports whether the last primary read failed and snapshots are
// being served.
func (s *ProductStore) Degraded() bool {
	return s.degraded.Load()
}

// isInfrastructure reports whether an error means the primary storage is
// unreachable, as opposed to a domain outcome like not-found. Raw errors
// from the driver count as infrastructure.
func isInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return true
	}
	switch appErr.Code {
	case apperror.CodeInternal, apperror.CodeDatabase, apperror.CodePersistence, apperror.CodeTimeout:
		return true
	}
	return false
}

// snapshot copies a product deeply enough that later mutations of the live
// entity cannot leak into the cache.
func snapshot(p *product.Product) *product.Product {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Batches = ledger.CloneAll(p.Batches)
	return &cp
}

func (s *ProductStore) remember(p *product.Product) {
	if p == nil {
		return
	}
	cp := snapshot(p)
	s.mu.Lock()
	// A plain row read must not erase a previously snapshotted ledger.
	if cp.Batches == nil {
		if prev, ok := s.byID[cp.ID]; ok {
			cp.Batches = ledger.CloneAll(prev.Batches)
		}
	}
	s.byID[cp.ID] = cp
	s.byCode[cp.Code] = cp.ID
	s.mu.Unlock()
	s.degraded.Store(false)
}

func (s *ProductStore) recall(productID id.ID) (*product.Product, bool) {
	s.mu.RLock()
	p, ok := s.byID[productID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return snapshot(p), true
}

func (s *ProductStore) serveStale(ctx context.Context, op string, err error) {
	s.degraded.Store(true)
	s.log.WithContext(ctx).Warnw("primary storage unreachable, serving last known good snapshot",
		"operation", op,
		"error", err,
	)
}

// --- Reads (fall back to snapshots) ---

// GetByID reads from the primary, falling back to the last snapshot when
// the primary is unreachable.
func (s *ProductStore) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := s.primary.GetByID(ctx, productID)
	if err != nil {
		if isInfrastructure(err) {
			if stale, ok := s.recall(productID); ok {
				s.serveStale(ctx, "get_by_id", err)
				return stale, nil
			}
		}
		return nil, err
	}
	s.remember(p)
	return p, nil
}

// GetByCode reads from the primary, falling back to the last snapshot.
func (s *ProductStore) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	p, err := s.primary.GetByCode(ctx, code)
	if err != nil {
		if isInfrastructure(err) {
			s.mu.RLock()
			productID, ok := s.byCode[code]
			s.mu.RUnlock()
			if ok {
				if stale, found := s.recall(productID); found {
					s.serveStale(ctx, "get_by_code", err)
					return stale, nil
				}
			}
		}
		return nil, err
	}
	s.remember(p)
	return p, nil
}

// GetWithBatches reads a product with its ledger, falling back to the last
// snapshot that had batches loaded.
func (s *ProductStore) GetWithBatches(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := s.primary.GetWithBatches(ctx, productID)
	if err != nil {
		if isInfrastructure(err) {
			if stale, ok := s.recall(productID); ok {
				s.serveStale(ctx, "get_with_batches", err)
				return stale, nil
			}
		}
		return nil, err
	}
	s.remember(p)
	return p, nil
}

// List reads from the primary; on infrastructure failure it rebuilds a page
// from the snapshot set, sorted by name.
func (s *ProductStore) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	result, err := s.primary.List(ctx, filter)
	if err != nil {
		if isInfrastructure(err) {
			s.serveStale(ctx, "list", err)
			return s.listFromSnapshots(filter, nil), nil
		}
		return domain.ListResult[*product.Product]{}, err
	}
	for _, p := range result.Items {
		s.remember(p)
	}
	return result, nil
}

// FindLowStock reads from the primary; on infrastructure failure it filters
// the snapshot set by threshold.
func (s *ProductStore) FindLowStock(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	result, err := s.primary.FindLowStock(ctx, filter)
	if err != nil {
		if isInfrastructure(err) {
			s.serveStale(ctx, "find_low_stock", err)
			return s.listFromSnapshots(filter, func(p *product.Product) bool {
				return p.IsLowStock()
			}), nil
		}
		return domain.ListResult[*product.Product]{}, err
	}
	for _, p := range result.Items {
		s.remember(p)
	}
	return result, nil
}

// Exists answers from the primary, falling back to snapshot presence.
func (s *ProductStore) Exists(ctx context.Context, productID id.ID) (bool, error) {
	ok, err := s.primary.Exists(ctx, productID)
	if err != nil && isInfrastructure(err) {
		if _, found := s.recall(productID); found {
			s.serveStale(ctx, "exists", err)
			return true, nil
		}
	}
	return ok, err
}

// ExistsByCode answers from the primary, falling back to snapshot presence.
func (s *ProductStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	ok, err := s.primary.ExistsByCode(ctx, code)
	if err != nil && isInfrastructure(err) {
		s.mu.RLock()
		_, found := s.byCode[code]
		s.mu.RUnlock()
		if found {
			s.serveStale(ctx, "exists_by_code", err)
			return true, nil
		}
	}
	return ok, err
}

func (s *ProductStore) listFromSnapshots(filter domain.ListFilter, keep func(*product.Product) bool) domain.ListResult[*product.Product] {
	s.mu.RLock()
	items := make([]*product.Product, 0, len(s.byID))
	for _, p := range s.byID {
		if !filter.IncludeDeleted && p.DeletionMark {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(p.Name), needle) &&
				!strings.Contains(strings.ToLower(p.Code), needle) {
				continue
			}
		}
		if keep != nil && !keep(p) {
			continue
		}
		items = append(items, snapshot(p))
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	total := int64(len(items))
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			items = nil
		} else {
			items = items[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	return domain.ListResult[*product.Product]{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
}

// --- Writes and locked reads (primary only, never fall back) ---

// Create inserts through the primary. On success the new row is snapshotted.
func (s *ProductStore) Create(ctx context.Context, p *product.Product) error {
	if err := s.primary.Create(ctx, p); err != nil {
		return err
	}
	s.remember(p)
	return nil
}

// Update writes through the primary. On success the row is snapshotted.
func (s *ProductStore) Update(ctx context.Context, p *product.Product) error {
	if err := s.primary.Update(ctx, p); err != nil {
		return err
	}
	s.remember(p)
	return nil
}

// Delete soft-deletes through the primary and evicts the snapshot.
func (s *ProductStore) Delete(ctx context.Context, productID id.ID) error {
	if err := s.primary.Delete(ctx, productID); err != nil {
		return err
	}
	s.evict(productID)
	return nil
}

// SetDeletionMark writes through the primary and evicts the snapshot; the
// next successful read repopulates it with the current mark.
func (s *ProductStore) SetDeletionMark(ctx context.Context, productID id.ID, marked bool) error {
	if err := s.primary.SetDeletionMark(ctx, productID, marked); err != nil {
		return err
	}
	s.evict(productID)
	return nil
}

// GetForUpdate takes a row lock and must see current data, so it never
// falls back.
func (s *ProductStore) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return s.primary.GetForUpdate(ctx, productID)
}

// UpdateAggregate writes through the primary and evicts the snapshot; the
// cached aggregate must not resurrect a pre-sale figure.
func (s *ProductStore) UpdateAggregate(ctx context.Context, productID id.ID, aggregate int64) error {
	if err := s.primary.UpdateAggregate(ctx, productID, aggregate); err != nil {
		return err
	}
	s.evict(productID)
	return nil
}

func (s *ProductStore) evict(productID id.ID) {
	s.mu.Lock()
	if p, ok := s.byID[productID]; ok {
		delete(s.byCode, p.Code)
		delete(s.byID, productID)
	}
	s.mu.Unlock()
}

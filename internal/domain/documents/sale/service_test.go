package sale

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packstock/internal/core/apperror"
	"packstock/internal/core/id"
	"packstock/internal/core/types"
	"packstock/internal/domain"
	"packstock/internal/domain/catalogs/product"
	"packstock/internal/domain/ledger"
	"packstock/pkg/numerator"
)

// --- In-memory fakes ---

type memStore struct {
	products map[id.ID]*product.Product
	batches  map[id.ID]*ledger.Batch
	sales    map[id.ID]*Sale
	allocs   map[id.ID][]ledger.Allocation
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[id.ID]*product.Product),
		batches:  make(map[id.ID]*ledger.Batch),
		sales:    make(map[id.ID]*Sale),
		allocs:   make(map[id.ID][]ledger.Allocation),
	}
}

type storeSnapshot struct {
	products map[id.ID]product.Product
	batches  map[id.ID]ledger.Batch
	sales    map[id.ID]Sale
	allocs   map[id.ID][]ledger.Allocation
}

func (m *memStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		products: make(map[id.ID]product.Product, len(m.products)),
		batches:  make(map[id.ID]ledger.Batch, len(m.batches)),
		sales:    make(map[id.ID]Sale, len(m.sales)),
		allocs:   make(map[id.ID][]ledger.Allocation, len(m.allocs)),
	}
	for k, v := range m.products {
		snap.products[k] = *v
	}
	for k, v := range m.batches {
		snap.batches[k] = *v
	}
	for k, v := range m.sales {
		snap.sales[k] = *v
	}
	for k, v := range m.allocs {
		snap.allocs[k] = append([]ledger.Allocation(nil), v...)
	}
	return snap
}

func (m *memStore) restore(snap storeSnapshot) {
	m.products = make(map[id.ID]*product.Product, len(snap.products))
	m.batches = make(map[id.ID]*ledger.Batch, len(snap.batches))
	m.sales = make(map[id.ID]*Sale, len(snap.sales))
	m.allocs = make(map[id.ID][]ledger.Allocation, len(snap.allocs))
	for k, v := range snap.products {
		p := v
		m.products[k] = &p
	}
	for k, v := range snap.batches {
		b := v
		m.batches[k] = &b
	}
	for k, v := range snap.sales {
		s := v
		m.sales[k] = &s
	}
	for k, v := range snap.allocs {
		m.allocs[k] = append([]ledger.Allocation(nil), v...)
	}
}

func (m *memStore) productBatches(productID id.ID) []*ledger.Batch {
	var out []*ledger.Batch
	for _, b := range m.batches {
		if b.ProductID == productID {
			out = append(out, b.Clone())
		}
	}
	return out
}

// fakeTxManager snapshots the store and restores it when fn fails,
// mimicking transactional rollback.
type fakeTxManager struct {
	store *memStore
}

func (f *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := f.store.snapshot()
	if err := fn(ctx); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

type fakeProductRepo struct {
	store *memStore
}

func (f *fakeProductRepo) Create(ctx context.Context, p *product.Product) error {
	f.store.products[p.ID] = p
	return nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := f.store.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	for _, p := range f.store.products {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("product", code)
}

func (f *fakeProductRepo) Update(ctx context.Context, p *product.Product) error {
	f.store.products[p.ID] = p
	return nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, productID id.ID) error {
	delete(f.store.products, productID)
	return nil
}

func (f *fakeProductRepo) SetDeletionMark(ctx context.Context, productID id.ID, marked bool) error {
	if p, ok := f.store.products[productID]; ok {
		p.DeletionMark = marked
	}
	return nil
}

func (f *fakeProductRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	return domain.ListResult[*product.Product]{}, nil
}

func (f *fakeProductRepo) Exists(ctx context.Context, productID id.ID) (bool, error) {
	_, ok := f.store.products[productID]
	return ok, nil
}

func (f *fakeProductRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := f.GetByCode(ctx, code)
	return err == nil, nil
}

func (f *fakeProductRepo) GetWithBatches(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := f.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	p.Batches = f.store.productBatches(productID)
	return p, nil
}

func (f *fakeProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return f.GetWithBatches(ctx, productID)
}

func (f *fakeProductRepo) UpdateAggregate(ctx context.Context, productID id.ID, aggregate int64) error {
	p, ok := f.store.products[productID]
	if !ok {
		return apperror.NewNotFound("product", productID.String())
	}
	p.AggregateStock = aggregate
	return nil
}

func (f *fakeProductRepo) FindLowStock(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	return domain.ListResult[*product.Product]{}, nil
}

type fakeBatchRepo struct {
	store *memStore
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *ledger.Batch) error {
	f.store.batches[b.ID] = b.Clone()
	return nil
}

func (f *fakeBatchRepo) GetByProduct(ctx context.Context, productID id.ID) ([]*ledger.Batch, error) {
	return f.store.productBatches(productID), nil
}

func (f *fakeBatchRepo) GetByProductForUpdate(ctx context.Context, productID id.ID) ([]*ledger.Batch, error) {
	return f.store.productBatches(productID), nil
}

func (f *fakeBatchRepo) UpdateRemainders(ctx context.Context, batches []*ledger.Batch) error {
	for _, b := range batches {
		if stored, ok := f.store.batches[b.ID]; ok {
			stored.RemainingUnits = b.RemainingUnits
		}
	}
	return nil
}

func (f *fakeBatchRepo) Delete(ctx context.Context, batchID id.ID) error {
	delete(f.store.batches, batchID)
	return nil
}

type fakeSaleRepo struct {
	store        *memStore
	failOnCreate bool
}

func (f *fakeSaleRepo) Create(ctx context.Context, doc *Sale) error {
	if f.failOnCreate {
		return errors.New("connection reset")
	}
	cp := *doc
	f.store.sales[doc.ID] = &cp
	return nil
}

func (f *fakeSaleRepo) GetByID(ctx context.Context, docID id.ID) (*Sale, error) {
	doc, ok := f.store.sales[docID]
	if !ok {
		return nil, apperror.NewNotFound("sale", docID.String())
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeSaleRepo) GetByNumber(ctx context.Context, number string) (*Sale, error) {
	for _, doc := range f.store.sales {
		if doc.Number == number {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("sale", number)
}

func (f *fakeSaleRepo) Update(ctx context.Context, doc *Sale) error {
	if _, ok := f.store.sales[doc.ID]; !ok {
		return apperror.NewNotFound("sale", doc.ID.String())
	}
	cp := *doc
	f.store.sales[doc.ID] = &cp
	return nil
}

func (f *fakeSaleRepo) Delete(ctx context.Context, docID id.ID) error {
	delete(f.store.sales, docID)
	delete(f.store.allocs, docID)
	return nil
}

func (f *fakeSaleRepo) GetAllocations(ctx context.Context, docID id.ID) ([]ledger.Allocation, error) {
	return append([]ledger.Allocation(nil), f.store.allocs[docID]...), nil
}

func (f *fakeSaleRepo) SaveAllocations(ctx context.Context, docID id.ID, allocations []ledger.Allocation) error {
	f.store.allocs[docID] = append([]ledger.Allocation(nil), allocations...)
	return nil
}

func (f *fakeSaleRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error) {
	return domain.ListResult[*Sale]{}, nil
}

type capturedEvents struct {
	events []domain.Event
}

func (c *capturedEvents) Publish(ctx context.Context, event domain.Event) error {
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) ofType(eventType string) []domain.Event {
	var out []domain.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// seqQuerier backs the numerator with an in-memory sequence.
type seqRow struct{ n int64 }

func (r seqRow) Scan(dest ...any) error {
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = r.n
		}
	}
	return nil
}

type seqQuerier struct{ n int64 }

func (q *seqQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.n++
	return seqRow{q.n}
}

// --- Fixtures ---

type testEnv struct {
	svc      *Service
	store    *memStore
	saleRepo *fakeSaleRepo
	events   *capturedEvents
}

func newTestEnv() *testEnv {
	store := newMemStore()
	saleRepo := &fakeSaleRepo{store: store}
	events := &capturedEvents{}
	svc := NewService(
		saleRepo,
		&fakeProductRepo{store: store},
		&fakeBatchRepo{store: store},
		numerator.New(&seqQuerier{}),
		events,
		&fakeTxManager{store: store},
	)
	return &testEnv{svc: svc, store: store, saleRepo: saleRepo, events: events}
}

func (e *testEnv) addProduct(packSize int64, pricePerUnit, pricePerPack string) *product.Product {
	p := product.NewProduct("PRD-001", "Bottled water", packSize)
	p.PricePerUnit = types.MustMoney(pricePerUnit)
	p.PricePerPack = types.MustMoney(pricePerPack)
	e.store.products[p.ID] = p
	return p
}

func (e *testEnv) addBatch(p *product.Product, createdAt time.Time, units int64, unitCost string) *ledger.Batch {
	b := ledger.NewBatch(p.ID, ledger.BatchInput{
		Units:      units,
		PackSize:   1,
		Cost:       types.MustMoney(unitCost),
		Basis:      ledger.CostBasisPerUnit,
		AcquiredAt: createdAt,
	})
	e.store.batches[b.ID] = b
	p.AggregateStock += units
	return b
}

var (
	jan1 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
)

// --- Tests ---

func TestSell_TwoTierPricing(t *testing.T) {
	// pack_size=10, one batch of 25 @ cost 5, prices 8/unit and 70/pack.
	// Selling 1 pack + 5 units: revenue 70 + 5*8 = 110, cost 15*5 = 75.
	env := newTestEnv()
	p := env.addProduct(10, "8", "70")
	b := env.addBatch(p, jan1, 25, "5")

	doc, err := env.svc.Sell(context.Background(), Input{
		ProductID: p.ID,
		Packs:     1,
		Units:     5,
		Date:      jan1,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(15), doc.TotalUnitsSold)
	assert.True(t, doc.Revenue.Equal(types.MustMoney("110")))
	assert.True(t, doc.CostTotal.Equal(types.MustMoney("75")))
	assert.True(t, doc.Profit.Equal(types.MustMoney("35")))
	assert.True(t, doc.CostPerUnitEffective.Equal(types.MustMoney("5")))
	assert.Equal(t, "SAL-2026-00001", doc.Number)

	require.Len(t, doc.Allocations, 1)
	assert.Equal(t, b.ID, doc.Allocations[0].BatchID)
	assert.Equal(t, int64(15), doc.Allocations[0].UnitsTaken)

	// committed state
	assert.Equal(t, int64(10), env.store.batches[b.ID].RemainingUnits)
	assert.Equal(t, int64(10), env.store.products[p.ID].AggregateStock)
	require.Contains(t, env.store.sales, doc.ID)
	assert.Len(t, env.events.ofType(domain.EventSaleRecorded), 1)
}

func TestSell_NumberFollowsDocumentDate(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	env.addBatch(p, jan1, 50, "5")

	backdated := time.Date(2031, 12, 30, 0, 0, 0, 0, time.UTC)
	doc, err := env.svc.Sell(context.Background(), Input{
		ProductID: p.ID,
		Units:     1,
		Date:      backdated,
	})
	require.NoError(t, err)

	// The sequence key comes from the document date, not the wall clock.
	assert.Equal(t, "SAL-2031-00001", doc.Number)
	assert.Equal(t, backdated, doc.Date)
}

func TestSell_FIFOAcrossBatches(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	b1 := env.addBatch(p, jan1, 10, "5")
	b2 := env.addBatch(p, jan2, 20, "6")

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 25})
	require.NoError(t, err)

	require.Len(t, doc.Allocations, 2)
	assert.Equal(t, b1.ID, doc.Allocations[0].BatchID)
	assert.Equal(t, int64(10), doc.Allocations[0].UnitsTaken)
	assert.Equal(t, b2.ID, doc.Allocations[1].BatchID)
	assert.Equal(t, int64(15), doc.Allocations[1].UnitsTaken)
	assert.True(t, doc.CostTotal.Equal(types.MustMoney("140")))

	assert.Equal(t, int64(0), env.store.batches[b1.ID].RemainingUnits)
	assert.Equal(t, int64(5), env.store.batches[b2.ID].RemainingUnits)
	assert.Equal(t, int64(5), env.store.products[p.ID].AggregateStock)
}

func TestSell_InvalidQuantity(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(10, "8", "70")
	env.addBatch(p, jan1, 25, "5")

	_, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidQuantity, appErr.Code)

	_, err = env.svc.Sell(context.Background(), Input{ProductID: p.ID, Packs: -1, Units: 5})
	require.Error(t, err)

	// nothing recorded
	assert.Empty(t, env.store.sales)
	assert.Equal(t, int64(25), env.store.products[p.ID].AggregateStock)
}

func TestSell_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(10, "8", "70")
	b := env.addBatch(p, jan1, 25, "5")

	_, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Packs: 2, Units: 6})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// no partial fill, nothing mutated
	assert.Equal(t, int64(25), env.store.batches[b.ID].RemainingUnits)
	assert.Equal(t, int64(25), env.store.products[p.ID].AggregateStock)
	assert.Empty(t, env.store.sales)
	assert.Empty(t, env.events.events)
}

func TestSell_ExactStockBoundary(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(10, "8", "70")
	b := env.addBatch(p, jan1, 25, "5")

	// exactly the available stock drains the batch
	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Packs: 2, Units: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(25), doc.TotalUnitsSold)
	assert.Equal(t, int64(0), env.store.batches[b.ID].RemainingUnits)
	assert.Equal(t, int64(0), env.store.products[p.ID].AggregateStock)

	// one more unit fails
	_, err = env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 1})
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestSell_ConsistencyFault(t *testing.T) {
	// The cached aggregate claims more stock than the batches hold.
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	env.addBatch(p, jan1, 25, "5")
	env.store.products[p.ID].AggregateStock = 30

	_, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 30})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConsistencyFault, appErr.Code)

	// rollback left the drifted state untouched
	assert.Empty(t, env.store.sales)
	assert.Equal(t, int64(30), env.store.products[p.ID].AggregateStock)
}

func TestSell_PersistenceFailureRollsBack(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(10, "8", "70")
	b := env.addBatch(p, jan1, 25, "5")
	env.saleRepo.failOnCreate = true

	_, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Packs: 1})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePersistence, appErr.Code)

	// batch decrements rolled back with the failed sale
	assert.Equal(t, int64(25), env.store.batches[b.ID].RemainingUnits)
	assert.Equal(t, int64(25), env.store.products[p.ID].AggregateStock)
	assert.Empty(t, env.store.sales)
}

func TestSell_PriceOverrides(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(10, "8", "70")
	env.addBatch(p, jan1, 100, "5")

	t.Run("unit price derives pack price", func(t *testing.T) {
		unit := types.MustMoney("9")
		doc, err := env.svc.Sell(context.Background(), Input{
			ProductID:    p.ID,
			Packs:        1,
			PricePerUnit: &unit,
		})
		require.NoError(t, err)
		assert.True(t, doc.PricePerPack.Equal(types.MustMoney("90")))
		assert.True(t, doc.Revenue.Equal(types.MustMoney("90")))
	})

	t.Run("pack price derives unit price", func(t *testing.T) {
		pack := types.MustMoney("60")
		doc, err := env.svc.Sell(context.Background(), Input{
			ProductID:    p.ID,
			Units:        5,
			PricePerPack: &pack,
		})
		require.NoError(t, err)
		assert.True(t, doc.PricePerUnit.Equal(types.MustMoney("6")))
		assert.True(t, doc.Revenue.Equal(types.MustMoney("30")))
	})
}

func TestSell_LowStockEvent(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(10, "8", "70")
	p.LowStockThreshold = 10
	env.addBatch(p, jan1, 25, "5")

	_, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Packs: 2})
	require.NoError(t, err)

	low := env.events.ofType(domain.EventStockLow)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].AggregateID)
}

func TestDelete_RestoresBatches(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	b1 := env.addBatch(p, jan1, 10, "5")
	b2 := env.addBatch(p, jan2, 20, "6")

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 25})
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(context.Background(), doc.ID))

	assert.Equal(t, int64(10), env.store.batches[b1.ID].RemainingUnits)
	assert.Equal(t, int64(20), env.store.batches[b2.ID].RemainingUnits)
	assert.Equal(t, int64(30), env.store.products[p.ID].AggregateStock)
	assert.NotContains(t, env.store.sales, doc.ID)
	assert.Len(t, env.events.ofType(domain.EventSaleReversed), 1)
}

func TestDelete_OrphanedAllocationDropped(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	b := env.addBatch(p, jan1, 10, "5")

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 8})
	require.NoError(t, err)

	// the source batch disappears before the reversal
	delete(env.store.batches, b.ID)

	require.NoError(t, env.svc.Delete(context.Background(), doc.ID))

	// restoration dropped, record still removed, aggregate reflects what exists
	assert.NotContains(t, env.store.sales, doc.ID)
	assert.Equal(t, int64(0), env.store.products[p.ID].AggregateStock)
}

func TestEdit_RequantifiesAgainstRestoredState(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	b1 := env.addBatch(p, jan1, 10, "5")
	b2 := env.addBatch(p, jan2, 20, "6")

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 25})
	require.NoError(t, err)

	edited, err := env.svc.Edit(context.Background(), doc.ID, Input{ProductID: p.ID, Units: 5})
	require.NoError(t, err)

	// same document, new quantity
	assert.Equal(t, doc.ID, edited.ID)
	assert.Equal(t, doc.Number, edited.Number)
	assert.Equal(t, int64(5), edited.TotalUnitsSold)
	assert.True(t, edited.CostTotal.Equal(types.MustMoney("25")))

	// restoration then FIFO reallocation: oldest batch serves the new quantity
	assert.Equal(t, int64(5), env.store.batches[b1.ID].RemainingUnits)
	assert.Equal(t, int64(20), env.store.batches[b2.ID].RemainingUnits)
	assert.Equal(t, int64(25), env.store.products[p.ID].AggregateStock)
}

func TestEdit_GrowsIntoRestoredUnits(t *testing.T) {
	// Editing from 20 to 25 out of 30 total only works if the original
	// allocation is restored before the sufficiency check.
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	env.addBatch(p, jan1, 30, "5")

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(10), env.store.products[p.ID].AggregateStock)

	edited, err := env.svc.Edit(context.Background(), doc.ID, Input{ProductID: p.ID, Units: 25})
	require.NoError(t, err)
	assert.Equal(t, int64(25), edited.TotalUnitsSold)
	assert.Equal(t, int64(5), env.store.products[p.ID].AggregateStock)
}

func TestEdit_ProductChange(t *testing.T) {
	env := newTestEnv()
	pA := env.addProduct(1, "8", "8")
	bA := env.addBatch(pA, jan1, 10, "5")

	pB := product.NewProduct("PRD-002", "Soda", 1)
	pB.PricePerUnit = types.MustMoney("3")
	pB.PricePerPack = types.MustMoney("3")
	env.store.products[pB.ID] = pB
	bB := env.addBatch(pB, jan1, 40, "2")

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: pA.ID, Units: 8})
	require.NoError(t, err)

	edited, err := env.svc.Edit(context.Background(), doc.ID, Input{ProductID: pB.ID, Units: 12})
	require.NoError(t, err)

	// old product fully restored, new product allocated
	assert.Equal(t, pB.ID, edited.ProductID)
	assert.Equal(t, int64(10), env.store.batches[bA.ID].RemainingUnits)
	assert.Equal(t, int64(10), env.store.products[pA.ID].AggregateStock)
	assert.Equal(t, int64(28), env.store.batches[bB.ID].RemainingUnits)
	assert.Equal(t, int64(28), env.store.products[pB.ID].AggregateStock)
}

func TestEdit_FailureLeavesOriginalSale(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	b := env.addBatch(p, jan1, 30, "5")

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 20})
	require.NoError(t, err)

	// 35 exceeds the restored total of 30
	_, err = env.svc.Edit(context.Background(), doc.ID, Input{ProductID: p.ID, Units: 35})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// pre-edit state intact: original sale and its allocation stand
	stored, getErr := env.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, int64(20), stored.TotalUnitsSold)
	assert.Equal(t, int64(10), env.store.batches[b.ID].RemainingUnits)
	assert.Equal(t, int64(10), env.store.products[p.ID].AggregateStock)
}

func TestSell_ConservationAfterEveryWorkflow(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1, "8", "8")
	env.addBatch(p, jan1, 10, "5")
	env.addBatch(p, jan2, 20, "6")

	checkConservation := func() {
		t.Helper()
		sum := int64(0)
		for _, b := range env.store.batches {
			sum += b.RemainingUnits
		}
		assert.Equal(t, sum, env.store.products[p.ID].AggregateStock)
	}

	doc, err := env.svc.Sell(context.Background(), Input{ProductID: p.ID, Units: 17})
	require.NoError(t, err)
	checkConservation()

	doc, err = env.svc.Edit(context.Background(), doc.ID, Input{ProductID: p.ID, Units: 4})
	require.NoError(t, err)
	checkConservation()

	require.NoError(t, env.svc.Delete(context.Background(), doc.ID))
	checkConservation()
}

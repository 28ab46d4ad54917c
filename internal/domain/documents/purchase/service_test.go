package purchase

import (
	"context"
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
	products  map[id.ID]*product.Product
	batches   map[id.ID]*ledger.Batch
	purchases map[id.ID]*Purchase
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[id.ID]*product.Product),
		batches:   make(map[id.ID]*ledger.Batch),
		purchases: make(map[id.ID]*Purchase),
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

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
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
	return false, nil
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

type fakePurchaseRepo struct {
	store *memStore
}

func (f *fakePurchaseRepo) Create(ctx context.Context, doc *Purchase) error {
	cp := *doc
	f.store.purchases[doc.ID] = &cp
	return nil
}

func (f *fakePurchaseRepo) GetByID(ctx context.Context, docID id.ID) (*Purchase, error) {
	doc, ok := f.store.purchases[docID]
	if !ok {
		return nil, apperror.NewNotFound("purchase", docID.String())
	}
	cp := *doc
	return &cp, nil
}

func (f *fakePurchaseRepo) GetByNumber(ctx context.Context, number string) (*Purchase, error) {
	for _, doc := range f.store.purchases {
		if doc.Number == number {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("purchase", number)
}

func (f *fakePurchaseRepo) Update(ctx context.Context, doc *Purchase) error {
	cp := *doc
	f.store.purchases[doc.ID] = &cp
	return nil
}

func (f *fakePurchaseRepo) Delete(ctx context.Context, docID id.ID) error {
	delete(f.store.purchases, docID)
	return nil
}

func (f *fakePurchaseRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Purchase], error) {
	return domain.ListResult[*Purchase]{}, nil
}

type capturedEvents struct {
	events []domain.Event
}

func (c *capturedEvents) Publish(ctx context.Context, event domain.Event) error {
	c.events = append(c.events, event)
	return nil
}

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
	svc    *Service
	store  *memStore
	events *capturedEvents
}

func newTestEnv() *testEnv {
	store := newMemStore()
	events := &capturedEvents{}
	svc := NewService(
		&fakePurchaseRepo{store: store},
		&fakeProductRepo{store: store},
		&fakeBatchRepo{store: store},
		numerator.New(&seqQuerier{}),
		events,
		passthroughTxManager{},
	)
	return &testEnv{svc: svc, store: store, events: events}
}

func (e *testEnv) addProduct(packSize int64) *product.Product {
	p := product.NewProduct("PRD-001", "Bottled water", packSize)
	e.store.products[p.ID] = p
	return p
}

// --- Tests ---

func TestReceive_ForInventoryCreatesBatch(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(12)

	doc, err := env.svc.Receive(context.Background(), Input{
		ProductID:    p.ID,
		Packs:        2,
		Units:        3,
		Cost:         types.MustMoney("24"),
		CostBasis:    ledger.CostBasisPerPack,
		ForInventory: true,
		Date:         time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NotNil(t, doc.BatchID)
	batch := env.store.batches[*doc.BatchID]
	require.NotNil(t, batch)

	// 2*12+3 = 27 units at 24/pack = 2 per unit
	assert.Equal(t, int64(27), batch.UnitsAdded)
	assert.Equal(t, int64(27), batch.RemainingUnits)
	assert.True(t, batch.CostPerUnit.Equal(types.MustMoney("2")))
	require.NotNil(t, batch.PurchaseID)
	assert.Equal(t, doc.ID, *batch.PurchaseID)

	assert.Equal(t, int64(27), env.store.products[p.ID].AggregateStock)
	assert.True(t, doc.TotalCost.Equal(types.MustMoney("54")))
	assert.Equal(t, "PUR-2026-00001", doc.Number)

	require.Len(t, env.events.events, 1)
	assert.Equal(t, domain.EventPurchaseReceived, env.events.events[0].Type)
}

func TestReceive_NotForInventorySkipsLedger(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(12)

	doc, err := env.svc.Receive(context.Background(), Input{
		ProductID: p.ID,
		Packs:     5,
		Cost:      types.MustMoney("10"),
		CostBasis: ledger.CostBasisPerPack,
	})
	require.NoError(t, err)

	assert.Nil(t, doc.BatchID)
	assert.Empty(t, env.store.batches)
	assert.Equal(t, int64(0), env.store.products[p.ID].AggregateStock)
	require.Contains(t, env.store.purchases, doc.ID)
}

func TestReceive_ExplicitAcquiredAt(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1)
	acquiredAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	doc, err := env.svc.Receive(context.Background(), Input{
		ProductID:    p.ID,
		Units:        10,
		Cost:         types.MustMoney("3"),
		CostBasis:    ledger.CostBasisPerUnit,
		ForInventory: true,
		AcquiredAt:   acquiredAt,
	})
	require.NoError(t, err)

	batch := env.store.batches[*doc.BatchID]
	assert.True(t, batch.CreatedAt.Equal(acquiredAt))
}

func TestReceive_ZeroUnitsForInventoryRejected(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(12)

	_, err := env.svc.Receive(context.Background(), Input{
		ProductID:    p.ID,
		Cost:         types.MustMoney("5"),
		CostBasis:    ledger.CostBasisPerUnit,
		ForInventory: true,
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidQuantity, appErr.Code)
	assert.Empty(t, env.store.purchases)
}

func TestReceive_UnknownProduct(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Receive(context.Background(), Input{
		ProductID: id.New(),
		Units:     1,
		Cost:      types.MustMoney("1"),
		CostBasis: ledger.CostBasisPerUnit,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDelete_UntouchedBatchRemoved(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1)

	doc, err := env.svc.Receive(context.Background(), Input{
		ProductID:    p.ID,
		Units:        10,
		Cost:         types.MustMoney("2"),
		CostBasis:    ledger.CostBasisPerUnit,
		ForInventory: true,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(context.Background(), doc.ID))

	assert.Empty(t, env.store.batches)
	assert.Empty(t, env.store.purchases)
	assert.Equal(t, int64(0), env.store.products[p.ID].AggregateStock)
}

func TestDelete_ConsumedBatchBlocksDeletion(t *testing.T) {
	env := newTestEnv()
	p := env.addProduct(1)

	doc, err := env.svc.Receive(context.Background(), Input{
		ProductID:    p.ID,
		Units:        10,
		Cost:         types.MustMoney("2"),
		CostBasis:    ledger.CostBasisPerUnit,
		ForInventory: true,
	})
	require.NoError(t, err)

	// a sale has drawn from the batch
	env.store.batches[*doc.BatchID].RemainingUnits = 6

	err = env.svc.Delete(context.Background(), doc.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)

	// nothing removed
	assert.Contains(t, env.store.purchases, doc.ID)
	assert.Contains(t, env.store.batches, *doc.BatchID)
}

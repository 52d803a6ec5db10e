package purchasing

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/procura-hq/procura/internal/catalog/categories"
	"github.com/procura-hq/procura/internal/catalog/items"
	"github.com/procura-hq/procura/internal/catalog/services"
	"github.com/procura-hq/procura/internal/catalog/vendors"
	"github.com/procura-hq/procura/internal/requisitions"
	"github.com/procura-hq/procura/internal/shared"
)

type fakeVendorCatalog struct {
	vendors map[int64]vendors.Vendor
	links   []vendors.CategoryLink
}

func (f *fakeVendorCatalog) ListActive(ctx context.Context) ([]vendors.Vendor, error) {
	var out []vendors.Vendor
	for _, v := range f.vendors {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVendorCatalog) Get(ctx context.Context, id int64) (vendors.Vendor, error) {
	v, ok := f.vendors[id]
	if !ok {
		return vendors.Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (f *fakeVendorCatalog) ListLinks(ctx context.Context) ([]vendors.CategoryLink, error) {
	return f.links, nil
}

type fakeCategoryCatalog struct {
	cats []categories.Category
}

func (f *fakeCategoryCatalog) ListAll(ctx context.Context) ([]categories.Category, error) {
	return f.cats, nil
}

type fakeItemCatalog struct {
	items map[int64]items.Item
}

func (f *fakeItemCatalog) GetMany(ctx context.Context, ids []int64) ([]items.Item, error) {
	var out []items.Item
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

type fakeServiceCatalog struct {
	services map[int64]services.Service
}

func (f *fakeServiceCatalog) GetMany(ctx context.Context, ids []int64) ([]services.Service, error) {
	var out []services.Service
	for _, id := range ids {
		if svc, ok := f.services[id]; ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

type fakeRequisitionSource struct {
	req          requisitions.Requisition
	itemLines    []requisitions.ItemLine
	serviceLines []requisitions.ServiceLine
}

func (f *fakeRequisitionSource) GetApproved(ctx context.Context, id int64) (requisitions.Requisition, []requisitions.ItemLine, []requisitions.ServiceLine, error) {
	if f.req.ID != id {
		return requisitions.Requisition{}, nil, nil, requisitions.ErrNotFound
	}
	if f.req.Status != requisitions.StatusApproved {
		return requisitions.Requisition{}, nil, nil, requisitions.ErrInvalidState
	}
	return f.req, f.itemLines, f.serviceLines, nil
}

type memoryPORepo struct {
	pos      map[int64]PurchaseOrder
	items    map[int64][]OrderItem
	services map[int64][]OrderService
	nextID   int64
}

type memoryPOTx struct {
	repo *memoryPORepo
}

func newMemoryPORepo() *memoryPORepo {
	return &memoryPORepo{
		pos:      make(map[int64]PurchaseOrder),
		items:    make(map[int64][]OrderItem),
		services: make(map[int64][]OrderService),
	}
}

func (r *memoryPORepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryPOTx{repo: r})
}

func (r *memoryPORepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, []OrderService, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, nil, nil, ErrNotFound
	}
	return po, append([]OrderItem(nil), r.items[id]...), append([]OrderService(nil), r.services[id]...), nil
}

func (r *memoryPORepo) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, po := range r.pos {
		out = append(out, po)
	}
	return out, len(out), nil
}

func (tx *memoryPOTx) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	tx.repo.pos[po.ID] = po
	return po.ID, nil
}

func (tx *memoryPOTx) InsertOrderItem(ctx context.Context, line OrderItem) error {
	tx.repo.items[line.OrderID] = append(tx.repo.items[line.OrderID], line)
	return nil
}

func (tx *memoryPOTx) InsertOrderService(ctx context.Context, line OrderService) error {
	tx.repo.services[line.OrderID] = append(tx.repo.services[line.OrderID], line)
	return nil
}

func (tx *memoryPOTx) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	po, ok := tx.repo.pos[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	tx.repo.pos[id] = po
	return nil
}

func (tx *memoryPOTx) SetPOApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	po := tx.repo.pos[id]
	po.ApprovedBy = approvedBy
	po.ApprovedAt = approvedAt
	tx.repo.pos[id] = po
	return nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeIdempotency struct {
	keys map[string]bool
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

type fakeNotifier struct {
	submitted []int64
}

func (f *fakeNotifier) OrderSubmitted(ctx context.Context, orderID int64, reference string) error {
	f.submitted = append(f.submitted, orderID)
	return nil
}

type serviceFixture struct {
	svc    *Service
	repo   *memoryPORepo
	audit  *fakeAudit
	notify *fakeNotifier
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	vendorCat := &fakeVendorCatalog{
		vendors: map[int64]vendors.Vendor{
			10: {ID: 10, Name: "Ampere Supplies", AllowsCash: true, AllowsDisbursement: true, IsActive: true},
			20: {ID: 20, Name: "Brush & Bolt", AllowsStoreCredit: true, IsActive: true},
			30: {ID: 30, Name: "Caretaker Services", AllowsCash: true, IsActive: true},
			40: {ID: 40, Name: "Dormant Trading", AllowsCash: true, IsActive: false},
		},
		links: []vendors.CategoryLink{
			{VendorID: 10, CategoryID: 1},
			{VendorID: 10, CategoryID: 2},
			{VendorID: 20, CategoryID: 1},
			{VendorID: 30, CategoryID: 3},
		},
	}
	categoryCat := &fakeCategoryCatalog{cats: []categories.Category{
		{ID: 1, Name: "Electrical", Type: categories.TypeItems},
		{ID: 2, Name: "Tools", Type: categories.TypeItems},
		{ID: 3, Name: "Repairs", Type: categories.TypeServices},
	}}
	itemCat := &fakeItemCatalog{items: map[int64]items.Item{
		100: {ID: 100, Name: "Cable Drum", CategoryID: 1, UnitPrice: 25},
		101: {ID: 101, Name: "Socket Set", CategoryID: 2, UnitPrice: 80},
	}}
	serviceCat := &fakeServiceCatalog{services: map[int64]services.Service{
		200: {ID: 200, Name: "Panel Inspection", CategoryID: 3, HourlyRate: 150},
	}}
	reqs := &fakeRequisitionSource{
		req: requisitions.Requisition{ID: 42, Number: "REQ-1", Status: requisitions.StatusApproved},
		itemLines: []requisitions.ItemLine{
			{ID: 1, RequisitionID: 42, ItemID: 100, Quantity: 3},
			{ID: 2, RequisitionID: 42, ItemID: 101, Quantity: 1},
		},
		serviceLines: []requisitions.ServiceLine{
			{ID: 3, RequisitionID: 42, ServiceID: 200},
		},
	}

	repo := newMemoryPORepo()
	audit := &fakeAudit{}
	notify := &fakeNotifier{}
	svc := NewService(ServiceParams{
		Vendors:      vendorCat,
		Categories:   categoryCat,
		Items:        itemCat,
		Services:     serviceCat,
		Requisitions: reqs,
		Drafts:       NewDraftStore(testRedis(t), time.Hour),
		IndexCache:   NewIndexCache(nil, 0),
		Repository:   repo,
		Audit:        audit,
		Idempotency:  &fakeIdempotency{},
		Notifier:     notify,
		Logger:       slog.Default(),
	})
	return serviceFixture{svc: svc, repo: repo, audit: audit, notify: notify}
}

func TestStartDraftBuildsLinesFromCatalog(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeItems, 42)
	require.NoError(t, err)
	require.NotEmpty(t, draft.ID)
	require.Len(t, draft.ItemLines, 2)
	require.Len(t, draft.ServiceLines, 1)

	require.Equal(t, "Cable Drum", draft.ItemLines[0].Name)
	require.Equal(t, 25.0, draft.ItemLines[0].UnitPrice)
	require.Equal(t, int64(1), draft.ItemLines[0].CategoryID)
	require.Equal(t, 3, draft.ItemLines[0].Quantity)
	require.Equal(t, 3, draft.ItemLines[0].FloorQty)

	require.Equal(t, 150.0, draft.ServiceLines[0].UnitPrice)
	require.Equal(t, 1, draft.ServiceLines[0].Quantity)

	loaded, err := f.svc.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, draft.RequisitionID, loaded.RequisitionID)
}

func TestStartDraftRejectsUnapprovedRequisition(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.StartDraft(context.Background(), OrderTypeItems, 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSelectVendorRejectsInactive(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeItems, 42)
	require.NoError(t, err)

	_, err = f.svc.SelectVendor(ctx, draft.ID, 40)
	require.ErrorIs(t, err, ErrValidation)
}

func TestPaymentTypesRequireVendor(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeItems, 42)
	require.NoError(t, err)

	types, err := f.svc.PaymentTypesFor(ctx, draft.ID)
	require.NoError(t, err)
	require.Empty(t, types)

	_, err = f.svc.SelectVendor(ctx, draft.ID, 10)
	require.NoError(t, err)

	types, err = f.svc.PaymentTypesFor(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, []PaymentType{PaymentCash, PaymentDisbursement}, types)
}

func TestSuggestForDraft(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeItems, 42)
	require.NoError(t, err)

	got, err := f.svc.Suggest(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(10), got[0].Vendor.ID)
	require.Equal(t, 100, got[0].MatchPercentage)
	require.True(t, got[0].BestMatch)
	require.Equal(t, int64(20), got[1].Vendor.ID)
	require.Equal(t, 50, got[1].MatchPercentage)
}

func TestEligibleVendorsForDraft(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeServices, 42)
	require.NoError(t, err)

	list, err := f.svc.EligibleVendors(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(30), list[0].ID)
}

func TestSubmitFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := shared.ContextWithActor(context.Background(), &shared.Actor{ID: 7, Email: "buyer@procura.test"})

	draft, err := f.svc.StartDraft(ctx, OrderTypeItems, 42)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, draft.ID)
	require.ErrorIs(t, err, ErrMissingVendor)

	_, err = f.svc.SelectVendor(ctx, draft.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.SetPaymentType(ctx, draft.ID, PaymentCash)
	require.NoError(t, err)
	_, err = f.svc.ToggleLine(ctx, draft.ID, 2)
	require.NoError(t, err)

	po, err := f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)
	require.NotZero(t, po.ID)
	require.Equal(t, POStatusSubmitted, po.Status)
	require.Equal(t, PaymentCash, po.PaymentType)
	require.Equal(t, int64(42), po.RequisitionID)
	require.Equal(t, 75.0, po.Total)
	require.Equal(t, int64(7), po.CreatedBy)

	stored, itemLines, serviceLines, err := f.svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, po.ReferenceNo, stored.ReferenceNo)
	require.Len(t, itemLines, 1)
	require.Equal(t, int64(100), itemLines[0].ItemID)
	require.Empty(t, serviceLines)

	// Draft is gone, so a resubmit cannot find it.
	_, err = f.svc.GetDraft(ctx, draft.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, []int64{po.ID}, f.notify.submitted)
	require.NotEmpty(t, f.audit.logs)
	require.Equal(t, "PO_SUBMIT", f.audit.logs[len(f.audit.logs)-1].Action)
}

func TestReferenceDerivedFromDraft(t *testing.T) {
	ref := generateReference("draft-abc")
	require.Equal(t, ref, generateReference("draft-abc"))
	require.NotEqual(t, ref, generateReference("draft-xyz"))

	require.True(t, strings.HasPrefix(ref, "PO-"))
	parsed, err := uuid.Parse(strings.TrimPrefix(ref, "PO-"))
	require.NoError(t, err)
	require.Equal(t, uuid.Version(5), parsed.Version())
}

func TestSubmitServicesOrder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeServices, 42)
	require.NoError(t, err)
	_, err = f.svc.SelectVendor(ctx, draft.ID, 30)
	require.NoError(t, err)
	_, err = f.svc.SetPaymentType(ctx, draft.ID, PaymentCash)
	require.NoError(t, err)

	po, err := f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, OrderTypeServices, po.OrderType)
	require.Equal(t, 150.0, po.Total)

	_, itemLines, serviceLines, err := f.svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Empty(t, itemLines)
	require.Len(t, serviceLines, 1)
	require.Equal(t, int64(200), serviceLines[0].ServiceID)
}

func TestOrderWorkflow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeItems, 42)
	require.NoError(t, err)
	_, err = f.svc.SelectVendor(ctx, draft.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.SetPaymentType(ctx, draft.ID, PaymentCash)
	require.NoError(t, err)
	po, err := f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)

	// Close requires approval first.
	require.ErrorIs(t, f.svc.ClosePO(ctx, po.ID), ErrInvalidState)

	require.NoError(t, f.svc.ApprovePO(ctx, po.ID, 9))
	stored, _, _, err := f.svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, stored.Status)
	require.Equal(t, int64(9), stored.ApprovedBy)

	require.ErrorIs(t, f.svc.CancelPO(ctx, po.ID), ErrInvalidState)

	require.NoError(t, f.svc.ClosePO(ctx, po.ID))
	stored, _, _, err = f.svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusClosed, stored.Status)
}

func TestCancelSubmittedOrder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	draft, err := f.svc.StartDraft(ctx, OrderTypeItems, 42)
	require.NoError(t, err)
	_, err = f.svc.SelectVendor(ctx, draft.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.SetPaymentType(ctx, draft.ID, PaymentCash)
	require.NoError(t, err)
	po, err := f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelPO(ctx, po.ID))
	stored, _, _, err := f.svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusCancelled, stored.Status)
}

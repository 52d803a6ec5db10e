package purchasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/procura-hq/procura/internal/catalog/categories"
	"github.com/procura-hq/procura/internal/catalog/items"
	"github.com/procura-hq/procura/internal/catalog/services"
	"github.com/procura-hq/procura/internal/catalog/vendors"
	"github.com/procura-hq/procura/internal/requisitions"
	"github.com/procura-hq/procura/internal/shared"
)

// VendorCatalog is the slice of the vendor catalog the composer consumes.
type VendorCatalog interface {
	ListActive(ctx context.Context) ([]vendors.Vendor, error)
	Get(ctx context.Context, id int64) (vendors.Vendor, error)
	ListLinks(ctx context.Context) ([]vendors.CategoryLink, error)
}

// CategoryCatalog exposes the category list used to derive vendor types.
type CategoryCatalog interface {
	ListAll(ctx context.Context) ([]categories.Category, error)
}

// ItemCatalog resolves the items referenced by requisition lines.
type ItemCatalog interface {
	GetMany(ctx context.Context, ids []int64) ([]items.Item, error)
}

// ServiceCatalog resolves the services referenced by requisition lines.
type ServiceCatalog interface {
	GetMany(ctx context.Context, ids []int64) ([]services.Service, error)
}

// RequisitionSource supplies approved requisitions to compose against.
type RequisitionSource interface {
	GetApproved(ctx context.Context, id int64) (requisitions.Requisition, []requisitions.ItemLine, []requisitions.ServiceLine, error)
}

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, []OrderService, error)
	ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards submission against duplicate processing.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Notifier enqueues follow-up work after submission.
type Notifier interface {
	OrderSubmitted(ctx context.Context, orderID int64, reference string) error
}

// Service orchestrates draft composition, vendor suggestion and the
// submitted-order workflow.
type Service struct {
	vendorCat   VendorCatalog
	categoryCat CategoryCatalog
	itemCat     ItemCatalog
	serviceCat  ServiceCatalog
	reqs        RequisitionSource
	drafts      *DraftStore
	index       *IndexCache
	repo        RepositoryPort
	audit       AuditPort
	idem        IdempotencyPort
	notify      Notifier
	logger      *slog.Logger
}

// ServiceParams groups the dependencies of NewService.
type ServiceParams struct {
	Vendors       VendorCatalog
	Categories    CategoryCatalog
	Items         ItemCatalog
	Services      ServiceCatalog
	Requisitions  RequisitionSource
	Drafts        *DraftStore
	IndexCache    *IndexCache
	Repository    RepositoryPort
	Audit         AuditPort
	Idempotency   IdempotencyPort
	Notifier      Notifier
	Logger        *slog.Logger
}

// NewService constructs the purchasing service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		vendorCat:   p.Vendors,
		categoryCat: p.Categories,
		itemCat:     p.Items,
		serviceCat:  p.Services,
		reqs:        p.Requisitions,
		drafts:      p.Drafts,
		index:       p.IndexCache,
		repo:        p.Repository,
		audit:       p.Audit,
		idem:        p.Idempotency,
		notify:      p.Notifier,
		logger:      logger,
	}
}

// StartDraft opens a new draft against an approved requisition. Both the
// item and service lines are materialised up front so switching the order
// type later does not lose edits.
func (s *Service) StartDraft(ctx context.Context, orderType OrderType, requisitionID int64) (Draft, error) {
	if !orderType.Valid() {
		return Draft{}, fmt.Errorf("%w: unknown order type %q", ErrValidation, orderType)
	}
	req, itemLines, serviceLines, err := s.reqs.GetApproved(ctx, requisitionID)
	if err != nil {
		if errors.Is(err, requisitions.ErrNotFound) {
			return Draft{}, ErrNotFound
		}
		if errors.Is(err, requisitions.ErrInvalidState) {
			return Draft{}, fmt.Errorf("%w: requisition is not approved", ErrInvalidState)
		}
		return Draft{}, err
	}

	draftItems, err := s.buildItemLines(ctx, itemLines)
	if err != nil {
		return Draft{}, err
	}
	draftServices, err := s.buildServiceLines(ctx, serviceLines)
	if err != nil {
		return Draft{}, err
	}

	draft, err := NewDraft(uuid.NewString(), orderType, req.ID, shared.ActorID(ctx), draftItems, draftServices)
	if err != nil {
		return Draft{}, err
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		return Draft{}, err
	}
	s.logger.InfoContext(ctx, "purchase draft started", "draft_id", draft.ID, "requisition_id", req.ID, "order_type", string(orderType))
	return draft, nil
}

func (s *Service) buildItemLines(ctx context.Context, lines []requisitions.ItemLine) ([]DraftLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	catalog, err := s.itemCat.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]items.Item, len(catalog))
	for _, item := range catalog {
		byID[item.ID] = item
	}
	out := make([]DraftLine, 0, len(lines))
	for _, line := range lines {
		item, ok := byID[line.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d no longer exists", ErrValidation, line.ItemID)
		}
		out = append(out, DraftLine{
			RefLineID:  line.ID,
			ItemID:     item.ID,
			CategoryID: item.CategoryID,
			Name:       item.Name,
			Quantity:   line.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}
	return out, nil
}

func (s *Service) buildServiceLines(ctx context.Context, lines []requisitions.ServiceLine) ([]DraftLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ServiceID)
	}
	catalog, err := s.serviceCat.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]services.Service, len(catalog))
	for _, svc := range catalog {
		byID[svc.ID] = svc
	}
	out := make([]DraftLine, 0, len(lines))
	for _, line := range lines {
		svc, ok := byID[line.ServiceID]
		if !ok {
			return nil, fmt.Errorf("%w: service %d no longer exists", ErrValidation, line.ServiceID)
		}
		out = append(out, DraftLine{
			RefLineID:  line.ID,
			ServiceID:  svc.ID,
			ItemID:     line.ItemID,
			CategoryID: svc.CategoryID,
			Name:       svc.Name,
			Quantity:   1,
			UnitPrice:  svc.HourlyRate,
		})
	}
	return out, nil
}

// GetDraft loads a draft by ID.
func (s *Service) GetDraft(ctx context.Context, id string) (Draft, error) {
	return s.drafts.Get(ctx, id)
}

func (s *Service) applyDraft(ctx context.Context, id string, fn func(Draft) (Draft, error)) (Draft, error) {
	draft, err := s.drafts.Get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	next, err := fn(draft)
	if err != nil {
		return Draft{}, err
	}
	if err := s.drafts.Save(ctx, next); err != nil {
		return Draft{}, err
	}
	return next, nil
}

// ToggleLine flips a line's selection.
func (s *Service) ToggleLine(ctx context.Context, draftID string, refLineID int64) (Draft, error) {
	return s.applyDraft(ctx, draftID, func(d Draft) (Draft, error) {
		return d.ToggleLine(refLineID)
	})
}

// IncreaseQuantity raises an item line by one.
func (s *Service) IncreaseQuantity(ctx context.Context, draftID string, refLineID int64) (Draft, error) {
	return s.applyDraft(ctx, draftID, func(d Draft) (Draft, error) {
		return d.IncreaseQuantity(refLineID)
	})
}

// DecreaseQuantity lowers an item line by one, floored at the requisition
// quantity.
func (s *Service) DecreaseQuantity(ctx context.Context, draftID string, refLineID int64) (Draft, error) {
	return s.applyDraft(ctx, draftID, func(d Draft) (Draft, error) {
		return d.DecreaseQuantity(refLineID)
	})
}

// SetOrderType switches the draft between item and service composition.
func (s *Service) SetOrderType(ctx context.Context, draftID string, orderType OrderType) (Draft, error) {
	return s.applyDraft(ctx, draftID, func(d Draft) (Draft, error) {
		return d.SetOrderType(orderType)
	})
}

// SetRemarks updates the draft remarks.
func (s *Service) SetRemarks(ctx context.Context, draftID, remarks string) (Draft, error) {
	return s.applyDraft(ctx, draftID, func(d Draft) (Draft, error) {
		return d.SetRemarks(remarks), nil
	})
}

// SelectVendor sets or clears the draft vendor. The vendor's accepted
// payment set is loaded so an incompatible payment choice is dropped.
func (s *Service) SelectVendor(ctx context.Context, draftID string, vendorID int64) (Draft, error) {
	if vendorID == 0 {
		return Draft{}, ErrMissingVendor
	}
	vendor, err := s.vendorCat.Get(ctx, vendorID)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: vendor %d", ErrNotFound, vendorID)
	}
	if !vendor.IsActive {
		return Draft{}, fmt.Errorf("%w: vendor %d is inactive", ErrValidation, vendorID)
	}
	return s.applyDraft(ctx, draftID, func(d Draft) (Draft, error) {
		return d.SelectVendor(vendorID, AvailablePaymentTypes(vendor))
	})
}

// SetPaymentType records the settlement method against the vendor's set.
func (s *Service) SetPaymentType(ctx context.Context, draftID string, t PaymentType) (Draft, error) {
	return s.applyDraft(ctx, draftID, func(d Draft) (Draft, error) {
		if d.VendorID == 0 {
			return d, ErrMissingVendor
		}
		vendor, err := s.vendorCat.Get(ctx, d.VendorID)
		if err != nil {
			return d, fmt.Errorf("%w: vendor %d", ErrNotFound, d.VendorID)
		}
		return d.SetPaymentType(t, AvailablePaymentTypes(vendor))
	})
}

// PaymentTypesFor lists the methods the draft's vendor accepts. Without a
// vendor the set is empty; the client cannot pick a payment first.
func (s *Service) PaymentTypesFor(ctx context.Context, draftID string) ([]PaymentType, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.VendorID == 0 {
		return nil, nil
	}
	vendor, err := s.vendorCat.Get(ctx, draft.VendorID)
	if err != nil {
		return nil, err
	}
	return AvailablePaymentTypes(vendor), nil
}

// typeIndex returns the derived vendor-type index, cache first.
func (s *Service) typeIndex(ctx context.Context) (TypeIndex, error) {
	if index, ok := s.index.Get(ctx); ok {
		return index, nil
	}
	index, err := s.RebuildTypeIndex(ctx)
	if err != nil {
		return nil, err
	}
	return index, nil
}

// RebuildTypeIndex recomputes the vendor-type index from the link table
// and stores it. Also invoked by the background rebuild job.
func (s *Service) RebuildTypeIndex(ctx context.Context) (TypeIndex, error) {
	var (
		links []vendors.CategoryLink
		cats  []categories.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		links, err = s.vendorCat.ListLinks(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = s.categoryCat.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	index := BuildTypeIndex(links, cats)
	if err := s.index.Put(ctx, index); err != nil {
		s.logger.WarnContext(ctx, "vendor type index cache write failed", "error", err)
	}
	return index, nil
}

// EligibleVendors lists the active vendors able to serve the draft's order
// type, pure matches first.
func (s *Service) EligibleVendors(ctx context.Context, draftID string) ([]vendors.Vendor, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	var list []vendors.Vendor
	var index TypeIndex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.vendorCat.ListActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		index, err = s.typeIndex(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return FilterVendorsByOrderType(list, index, draft.OrderType), nil
}

// Suggest ranks eligible vendors by how many of the draft's selected-line
// categories they cover.
func (s *Service) Suggest(ctx context.Context, draftID string) ([]Suggestion, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	var (
		list  []vendors.Vendor
		links []vendors.CategoryLink
		index TypeIndex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.vendorCat.ListActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		links, err = s.vendorCat.ListLinks(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		index, err = s.typeIndex(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return SuggestVendors(draft.SelectedCategoryIDs(), list, index, links, draft.OrderType), nil
}

// Submit validates the draft, persists it as a purchase order and discards
// the draft. The draft ID doubles as the idempotency key so a retried
// submit cannot create a second order.
func (s *Service) Submit(ctx context.Context, draftID string) (PurchaseOrder, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	vendor, err := s.vendorCat.Get(ctx, draft.VendorID)
	if err != nil {
		if draft.VendorID == 0 {
			return PurchaseOrder{}, ErrMissingVendor
		}
		return PurchaseOrder{}, fmt.Errorf("%w: vendor %d", ErrNotFound, draft.VendorID)
	}
	if err := draft.Validate(AvailablePaymentTypes(vendor)); err != nil {
		return PurchaseOrder{}, err
	}

	idemKey := "PODRAFT:" + draft.ID
	if err := s.idem.CheckAndInsert(ctx, idemKey, "purchasing"); err != nil {
		return PurchaseOrder{}, err
	}

	po := PurchaseOrder{
		ReferenceNo:   generateReference(draft.ID),
		OrderType:     draft.OrderType,
		PaymentType:   draft.PaymentType,
		VendorID:      draft.VendorID,
		RequisitionID: draft.RequisitionID,
		Status:        POStatusSubmitted,
		Remarks:       draft.Remarks,
		Total:         draft.Total(),
		CreatedBy:     shared.ActorID(ctx),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		for _, line := range draft.ActiveLines() {
			if !line.Selected {
				continue
			}
			if draft.OrderType == OrderTypeServices {
				if err := tx.InsertOrderService(ctx, OrderService{OrderID: id, ServiceID: line.ServiceID, HourlyRate: line.UnitPrice}); err != nil {
					return err
				}
				continue
			}
			if err := tx.InsertOrderItem(ctx, OrderItem{OrderID: id, ItemID: line.ItemID, Quantity: line.Quantity, UnitPrice: line.UnitPrice}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Release the key so the caller may retry after a transient failure.
		_ = s.idem.Delete(ctx, idemKey)
		return PurchaseOrder{}, err
	}

	if err := s.drafts.Delete(ctx, draft.ID); err != nil {
		s.logger.WarnContext(ctx, "draft cleanup after submit failed", "draft_id", draft.ID, "error", err)
	}
	s.recordAudit(ctx, "PO_SUBMIT", po.ID, map[string]any{"reference": po.ReferenceNo, "vendor": po.VendorID, "total": po.Total})
	if s.notify != nil {
		if err := s.notify.OrderSubmitted(ctx, po.ID, po.ReferenceNo); err != nil {
			s.logger.WarnContext(ctx, "order submitted notification enqueue failed", "order_id", po.ID, "error", err)
		}
	}
	return po, nil
}

// GetPO returns the purchase order with its lines.
func (s *Service) GetPO(ctx context.Context, id int64) (PurchaseOrder, []OrderItem, []OrderService, error) {
	return s.repo.GetPO(ctx, id)
}

// ListPOs returns purchase orders with the total match count.
func (s *Service) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	return s.repo.ListPOs(ctx, limit, offset, filters)
}

// ApprovePO moves a submitted order to Approved, recording the approver.
func (s *Service) ApprovePO(ctx context.Context, id int64, actorID int64) error {
	return s.advance(ctx, id, POStatusSubmitted, POStatusApproved, "PO_APPROVE", func(ctx context.Context, tx TxRepository) error {
		return tx.SetPOApproval(ctx, id, actorID, time.Now())
	})
}

// CancelPO voids a submitted order before approval.
func (s *Service) CancelPO(ctx context.Context, id int64) error {
	return s.advance(ctx, id, POStatusSubmitted, POStatusCancelled, "PO_CANCEL", nil)
}

// ClosePO finishes an approved order once deliveries complete.
func (s *Service) ClosePO(ctx context.Context, id int64) error {
	return s.advance(ctx, id, POStatusApproved, POStatusClosed, "PO_CLOSE", nil)
}

func (s *Service) advance(ctx context.Context, id int64, from, to POStatus, action string, extra func(context.Context, TxRepository) error) error {
	po, _, _, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return err
	}
	if po.Status != from {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdatePOStatus(ctx, id, to); err != nil {
			return err
		}
		if extra != nil {
			return extra(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, action, id, map[string]any{"reference": po.ReferenceNo})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: shared.ActorID(ctx), Action: action, Entity: "purchase_orders", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

// generateReference derives the order reference from the draft ID, so a
// retried submission produces the same reference as the first attempt.
func generateReference(draftID string) string {
	return "PO-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(draftID)).String()
}

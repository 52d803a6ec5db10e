package receiving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/procura-hq/procura/internal/purchasing"
	"github.com/procura-hq/procura/internal/requisitions"
	"github.com/procura-hq/procura/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDelivery(ctx context.Context, id int64) (Delivery, []DeliveryLine, error)
	ListDeliveries(ctx context.Context, limit, offset int, filters ListFilters) ([]Delivery, int, error)
	PostedQuantities(ctx context.Context, orderID int64) (map[int64]int, error)
	GetReturn(ctx context.Context, id int64) (Return, []ReturnLine, error)
	GetRework(ctx context.Context, id int64) (Rework, error)
}

// TxRepository groups the write operations executed inside a transaction.
type TxRepository interface {
	CreateDelivery(ctx context.Context, d Delivery) (int64, error)
	InsertDeliveryLine(ctx context.Context, line DeliveryLine) error
	UpdateDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus, postedAt time.Time) error
	CreateReturn(ctx context.Context, ret Return) (int64, error)
	InsertReturnLine(ctx context.Context, line ReturnLine) error
	CreateRework(ctx context.Context, rw Rework) (int64, error)
	UpdateReworkStatus(ctx context.Context, id int64, status ReworkStatus) error
	AdjustStock(ctx context.Context, itemID int64, delta int) error
}

// ListFilters narrows delivery listings.
type ListFilters struct {
	Status  string
	OrderID int64
	Search  string
}

// OrderSource supplies the purchase order a delivery posts against.
type OrderSource interface {
	GetPO(ctx context.Context, id int64) (purchasing.PurchaseOrder, []purchasing.OrderItem, []purchasing.OrderService, error)
}

// RequisitionPort advances the originating requisition as goods arrive.
type RequisitionPort interface {
	MarkDelivered(ctx context.Context, id int64) error
	MarkReceived(ctx context.Context, id int64) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards posting against duplicate processing.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates deliveries, returns and reworks.
type Service struct {
	repo   RepositoryPort
	orders OrderSource
	reqs   RequisitionPort
	audit  AuditPort
	idem   IdempotencyPort
	logger *slog.Logger
}

// NewService constructs the receiving service.
func NewService(repo RepositoryPort, orders OrderSource, reqs RequisitionPort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, orders: orders, reqs: reqs, audit: audit, idem: idem, logger: logger}
}

// DeliveryLineInput is one received quantity in a creation payload.
type DeliveryLineInput struct {
	ItemID   int64
	Quantity int
}

// CreateDeliveryInput describes a delivery creation payload.
type CreateDeliveryInput struct {
	OrderID int64
	Notes   string
	Lines   []DeliveryLineInput
}

// CreateDelivery opens a draft delivery against an approved item order.
// Lines must reference items on the order and stay within the quantity
// still outstanding across posted deliveries.
func (s *Service) CreateDelivery(ctx context.Context, input CreateDeliveryInput) (Delivery, error) {
	if len(input.Lines) == 0 {
		return Delivery{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	po, orderItems, _, err := s.orders.GetPO(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, purchasing.ErrNotFound) {
			return Delivery{}, fmt.Errorf("%w: purchase order %d", ErrNotFound, input.OrderID)
		}
		return Delivery{}, err
	}
	if po.Status != purchasing.POStatusApproved {
		return Delivery{}, fmt.Errorf("%w: purchase order must be approved", ErrInvalidState)
	}
	if po.OrderType != purchasing.OrderTypeItems {
		return Delivery{}, fmt.Errorf("%w: deliveries apply to item orders only", ErrValidation)
	}

	ordered := make(map[int64]int, len(orderItems))
	for _, line := range orderItems {
		ordered[line.ItemID] += line.Quantity
	}
	posted, err := s.repo.PostedQuantities(ctx, po.ID)
	if err != nil {
		return Delivery{}, err
	}
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.Quantity < 1 {
			return Delivery{}, fmt.Errorf("%w: delivery line requires item and quantity >= 1", ErrValidation)
		}
		total, ok := ordered[line.ItemID]
		if !ok {
			return Delivery{}, fmt.Errorf("%w: item %d", ErrLineNotOnOrder, line.ItemID)
		}
		if line.Quantity > total-posted[line.ItemID] {
			return Delivery{}, fmt.Errorf("%w: item %d", ErrQuantityExceeded, line.ItemID)
		}
	}

	delivery := Delivery{
		Number:        generateNumber("DLV"),
		OrderID:       po.ID,
		RequisitionID: po.RequisitionID,
		Status:        DeliveryStatusDraft,
		Notes:         input.Notes,
		ReceivedBy:    shared.ActorID(ctx),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateDelivery(ctx, delivery)
		if err != nil {
			return err
		}
		delivery.ID = id
		for _, line := range input.Lines {
			if err := tx.InsertDeliveryLine(ctx, DeliveryLine{DeliveryID: id, ItemID: line.ItemID, Quantity: line.Quantity}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Delivery{}, err
	}
	s.recordAudit(ctx, "DLV_CREATE", delivery.ID, map[string]any{"number": delivery.Number, "order": po.ID})
	return delivery, nil
}

// PostDelivery moves a draft to Posted and increments item stock. Posting
// is idempotent: a replayed request hits the idempotency key and fails
// without moving stock twice.
func (s *Service) PostDelivery(ctx context.Context, id int64) error {
	delivery, lines, err := s.repo.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	if delivery.Status != DeliveryStatusDraft {
		return ErrInvalidState
	}

	idemKey := fmt.Sprintf("DELIVERY:%d", id)
	if err := s.idem.CheckAndInsert(ctx, idemKey, "receiving"); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDeliveryStatus(ctx, id, DeliveryStatusPosted, time.Now()); err != nil {
			return err
		}
		for _, line := range lines {
			if err := tx.AdjustStock(ctx, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = s.idem.Delete(ctx, idemKey)
		return err
	}

	s.advanceRequisition(ctx, delivery)
	s.recordAudit(ctx, "DLV_POST", id, map[string]any{"number": delivery.Number, "order": delivery.OrderID})
	return nil
}

// advanceRequisition marks the requisition Delivered on the first posted
// delivery and Received once the order is fully covered. Later deliveries
// find the requisition already advanced; that is not an error.
func (s *Service) advanceRequisition(ctx context.Context, delivery Delivery) {
	if s.reqs == nil || delivery.RequisitionID == 0 {
		return
	}
	if err := s.reqs.MarkDelivered(ctx, delivery.RequisitionID); err != nil && !errors.Is(err, requisitions.ErrInvalidState) {
		s.logger.WarnContext(ctx, "mark requisition delivered failed", "requisition_id", delivery.RequisitionID, "error", err)
	}
	covered, err := s.orderFullyCovered(ctx, delivery.OrderID)
	if err != nil {
		s.logger.WarnContext(ctx, "coverage check failed", "order_id", delivery.OrderID, "error", err)
		return
	}
	if !covered {
		return
	}
	if err := s.reqs.MarkReceived(ctx, delivery.RequisitionID); err != nil && !errors.Is(err, requisitions.ErrInvalidState) {
		s.logger.WarnContext(ctx, "mark requisition received failed", "requisition_id", delivery.RequisitionID, "error", err)
	}
}

func (s *Service) orderFullyCovered(ctx context.Context, orderID int64) (bool, error) {
	_, orderItems, _, err := s.orders.GetPO(ctx, orderID)
	if err != nil {
		return false, err
	}
	posted, err := s.repo.PostedQuantities(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, line := range orderItems {
		if posted[line.ItemID] < line.Quantity {
			return false, nil
		}
	}
	return true, nil
}

// GetDelivery returns the delivery with its lines.
func (s *Service) GetDelivery(ctx context.Context, id int64) (Delivery, []DeliveryLine, error) {
	return s.repo.GetDelivery(ctx, id)
}

// ListDeliveries returns deliveries with the total match count.
func (s *Service) ListDeliveries(ctx context.Context, limit, offset int, filters ListFilters) ([]Delivery, int, error) {
	return s.repo.ListDeliveries(ctx, limit, offset, filters)
}

// ReturnLineInput is one returned quantity in a creation payload.
type ReturnLineInput struct {
	ItemID   int64
	Quantity int
}

// CreateReturnInput describes a return creation payload.
type CreateReturnInput struct {
	DeliveryID int64
	Reason     string
	Lines      []ReturnLineInput
}

// CreateReturn sends goods from a posted delivery back, decrementing
// stock. A reason is mandatory.
func (s *Service) CreateReturn(ctx context.Context, input CreateReturnInput) (Return, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return Return{}, fmt.Errorf("%w: return reason required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Return{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	delivery, deliveryLines, err := s.repo.GetDelivery(ctx, input.DeliveryID)
	if err != nil {
		return Return{}, err
	}
	if delivery.Status != DeliveryStatusPosted {
		return Return{}, fmt.Errorf("%w: delivery must be posted", ErrInvalidState)
	}

	delivered := make(map[int64]int, len(deliveryLines))
	for _, line := range deliveryLines {
		delivered[line.ItemID] += line.Quantity
	}
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.Quantity < 1 {
			return Return{}, fmt.Errorf("%w: return line requires item and quantity >= 1", ErrValidation)
		}
		if line.Quantity > delivered[line.ItemID] {
			return Return{}, fmt.Errorf("%w: item %d", ErrQuantityExceeded, line.ItemID)
		}
	}

	ret := Return{
		Number:     generateNumber("RET"),
		DeliveryID: delivery.ID,
		Reason:     input.Reason,
		CreatedBy:  shared.ActorID(ctx),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.ID = id
		for _, line := range input.Lines {
			if err := tx.InsertReturnLine(ctx, ReturnLine{ReturnID: id, ItemID: line.ItemID, Quantity: line.Quantity}); err != nil {
				return err
			}
			if err := tx.AdjustStock(ctx, line.ItemID, -line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Return{}, err
	}
	s.recordAudit(ctx, "RET_CREATE", ret.ID, map[string]any{"number": ret.Number, "delivery": delivery.ID, "reason": input.Reason})
	return ret, nil
}

// GetReturn returns the return with its lines.
func (s *Service) GetReturn(ctx context.Context, id int64) (Return, []ReturnLine, error) {
	return s.repo.GetReturn(ctx, id)
}

// CreateRework opens a rework against an existing return.
func (s *Service) CreateRework(ctx context.Context, returnID int64, notes string) (Rework, error) {
	ret, _, err := s.repo.GetReturn(ctx, returnID)
	if err != nil {
		return Rework{}, err
	}
	rw := Rework{
		Number:   generateNumber("RWK"),
		ReturnID: ret.ID,
		Status:   ReworkStatusOpen,
		Notes:    notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRework(ctx, rw)
		if err != nil {
			return err
		}
		rw.ID = id
		return nil
	})
	if err != nil {
		return Rework{}, err
	}
	s.recordAudit(ctx, "RWK_CREATE", rw.ID, map[string]any{"number": rw.Number, "return": ret.ID})
	return rw, nil
}

// CompleteRework closes an open rework.
func (s *Service) CompleteRework(ctx context.Context, id int64) error {
	rw, err := s.repo.GetRework(ctx, id)
	if err != nil {
		return err
	}
	if rw.Status != ReworkStatusOpen {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateReworkStatus(ctx, id, ReworkStatusCompleted)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RWK_COMPLETE", id, map[string]any{"number": rw.Number})
	return nil
}

// GetRework loads a rework by ID.
func (s *Service) GetRework(ctx context.Context, id int64) (Rework, error) {
	return s.repo.GetRework(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: shared.ActorID(ctx), Action: action, Entity: "receiving", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

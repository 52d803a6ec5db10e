package requisitions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/procura-hq/procura/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Requisition, []ItemLine, []ServiceLine, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]Requisition, int, error)
}

// TxRepository groups the write operations executed inside a transaction.
type TxRepository interface {
	Create(ctx context.Context, req Requisition) (int64, error)
	InsertItemLine(ctx context.Context, line ItemLine) error
	InsertServiceLine(ctx context.Context, line ServiceLine) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetRemarks(ctx context.Context, id int64, remarks string) error
}

// ListFilters narrows requisition listings.
type ListFilters struct {
	Status      string
	Priority    string
	RequestorID int64
	Search      string
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the requisition workflow.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the requisition service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes creation payload.
type CreateInput struct {
	Number       string
	Priority     Priority
	RequestorID  int64
	Notes        string
	ItemLines    []ItemLineInput
	ServiceLines []ServiceLineInput
}

// ItemLineInput describes a requested item.
type ItemLineInput struct {
	ItemID   int64
	Quantity int
}

// ServiceLineInput describes a requested service.
type ServiceLineInput struct {
	ServiceID int64
	ItemID    int64
}

// Create persists the requisition header and lines; new requisitions start Pending.
func (s *Service) Create(ctx context.Context, input CreateInput) (Requisition, error) {
	if len(input.ItemLines) == 0 && len(input.ServiceLines) == 0 {
		return Requisition{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	if input.Priority == "" {
		input.Priority = PriorityNormal
	}
	if !input.Priority.Valid() {
		return Requisition{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, input.Priority)
	}
	if input.Number == "" {
		input.Number = generateNumber("REQ")
	}
	req := Requisition{
		Number:      input.Number,
		Status:      StatusPending,
		Priority:    input.Priority,
		RequestorID: input.RequestorID,
		Notes:       input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Create(ctx, req)
		if err != nil {
			return err
		}
		for _, line := range input.ItemLines {
			if line.ItemID == 0 || line.Quantity < 1 {
				return fmt.Errorf("%w: item line requires item and quantity >= 1", ErrValidation)
			}
			if err := tx.InsertItemLine(ctx, ItemLine{RequisitionID: id, ItemID: line.ItemID, Quantity: line.Quantity}); err != nil {
				return err
			}
		}
		for _, line := range input.ServiceLines {
			if line.ServiceID == 0 {
				return fmt.Errorf("%w: service line requires a service", ErrValidation)
			}
			if err := tx.InsertServiceLine(ctx, ServiceLine{RequisitionID: id, ServiceID: line.ServiceID, ItemID: line.ItemID}); err != nil {
				return err
			}
		}
		req.ID = id
		return nil
	})
	if err != nil {
		return Requisition{}, err
	}
	s.recordAudit(ctx, "REQ_CREATE", req.ID, map[string]any{"number": req.Number, "priority": string(req.Priority)})
	return req, nil
}

// Approve transitions a pending requisition to Approved.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64) error {
	req, _, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, StatusApproved)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "REQ_APPROVE", id, map[string]any{"number": req.Number, "actor": actorID})
	return nil
}

// Reject transitions a pending requisition to Rejected with mandatory remarks.
func (s *Service) Reject(ctx context.Context, id int64, actorID int64, remarks string) error {
	if strings.TrimSpace(remarks) == "" {
		return fmt.Errorf("%w: rejection remarks required", ErrValidation)
	}
	req, _, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, StatusRejected); err != nil {
			return err
		}
		return tx.SetRemarks(ctx, id, remarks)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "REQ_REJECT", id, map[string]any{"number": req.Number, "actor": actorID})
	return nil
}

// MarkDelivered is invoked by receiving once a delivery covering the
// requisition is posted.
func (s *Service) MarkDelivered(ctx context.Context, id int64) error {
	return s.advance(ctx, id, StatusApproved, StatusDelivered, "REQ_DELIVERED")
}

// MarkReceived closes the loop after the requestor confirms receipt.
func (s *Service) MarkReceived(ctx context.Context, id int64) error {
	return s.advance(ctx, id, StatusDelivered, StatusReceived, "REQ_RECEIVED")
}

func (s *Service) advance(ctx context.Context, id int64, from, to Status, action string) error {
	req, _, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != from {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, to)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, action, id, map[string]any{"number": req.Number})
	return nil
}

// Get returns the requisition with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Requisition, []ItemLine, []ServiceLine, error) {
	return s.repo.Get(ctx, id)
}

// GetApproved returns the requisition only when it is Approved; the
// purchase-order composer builds drafts exclusively from approved requests.
func (s *Service) GetApproved(ctx context.Context, id int64) (Requisition, []ItemLine, []ServiceLine, error) {
	req, itemLines, serviceLines, err := s.repo.Get(ctx, id)
	if err != nil {
		return Requisition{}, nil, nil, err
	}
	if req.Status != StatusApproved {
		return Requisition{}, nil, nil, ErrInvalidState
	}
	return req, itemLines, serviceLines, nil
}

// List returns requisitions with the total match count.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Requisition, int, error) {
	return s.repo.List(ctx, limit, offset, filters)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: shared.ActorID(ctx), Action: action, Entity: "requisitions", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

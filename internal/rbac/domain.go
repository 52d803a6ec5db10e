package rbac

import "time"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// Well-known permission names guarded by route middleware.
const (
	PermCatalogView         = "catalog.view"
	PermCatalogEdit         = "catalog.edit"
	PermRequisitionsView    = "requisitions.view"
	PermRequisitionsEdit    = "requisitions.edit"
	PermRequisitionsApprove = "requisitions.approve"
	PermPurchasingView      = "purchasing.view"
	PermPurchasingEdit      = "purchasing.edit"
	PermPurchasingApprove   = "purchasing.approve"
	PermReceivingView       = "receiving.view"
	PermReceivingEdit       = "receiving.edit"
	PermAuditView           = "audit.view"
)

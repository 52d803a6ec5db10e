package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderSubmitted notifies the vendor desk about a new purchase order.
	TaskOrderSubmitted = "purchasing:order_submitted"
	// TaskIndexRebuild recomputes the cached vendor-type index.
	TaskIndexRebuild = "catalog:vendor_index_rebuild"
	// TaskCleanup prunes expired idempotency keys.
	TaskCleanup = "maintenance:cleanup"
)

// OrderSubmittedPayload identifies the submitted purchase order.
type OrderSubmittedPayload struct {
	OrderID     int64  `json:"order_id"`
	ReferenceNo string `json:"reference_no"`
}

// NewOrderSubmittedTask constructs an Asynq task.
func NewOrderSubmittedTask(payload OrderSubmittedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderSubmitted, data), nil
}

// NewIndexRebuildTask constructs an Asynq task.
func NewIndexRebuildTask() *asynq.Task {
	return asynq.NewTask(TaskIndexRebuild, nil)
}

// NewCleanupTask constructs an Asynq task.
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskCleanup, nil)
}

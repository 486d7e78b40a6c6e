package domain

import (
	"encoding/json"
	"time"
)

// Job states. A job is created pending, advances through paid and in_progress,
// and ends in completed or failed. Terminal states are never left.
const (
	JobStatePending    = "pending"
	JobStatePaid       = "paid"
	JobStateInProgress = "in_progress"
	JobStateCompleted  = "completed"
	JobStateFailed     = "failed"
)

// Fulfillment kinds from the service catalog.
const (
	KindText  = "text"
	KindImage = "image"
)

// Job is the central entity of the pipeline. The public ID (UUID) is the only
// handle external parties may use; the internal sequential key never leaves
// the storage layer.
type Job struct {
	PublicID   string
	ServiceKey string
	Requester  string
	Fulfiller  string
	Input      json.RawMessage
	Output     json.RawMessage
	Price      Amount
	TxHash     string
	State      string
	CreatedAt  time.Time
	PaidAt     *time.Time
	DoneAt     *time.Time
}

// IsTerminal reports whether the job has reached a final state.
func (j *Job) IsTerminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}

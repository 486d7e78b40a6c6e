package domain

import (
	"encoding/json"
	"time"
)

// Webhook event names, one per observable job transition.
const (
	EventJobPaid      = "job.paid"
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// WebhookEvent is the message published to the notifier queue whenever a job
// transitions. Fulfiller is routing metadata for endpoint lookup and is not
// part of the delivered payload.
type WebhookEvent struct {
	Event      string          `json:"event"`
	JobID      string          `json:"job_id"`
	ServiceKey string          `json:"service_key"`
	Fulfiller  string          `json:"fulfiller"`
	Input      json.RawMessage `json:"input"`
	Price      string          `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewWebhookEvent builds an event from a job snapshot.
func NewWebhookEvent(event string, job *Job) *WebhookEvent {
	return &WebhookEvent{
		Event:      event,
		JobID:      job.PublicID,
		ServiceKey: job.ServiceKey,
		Fulfiller:  job.Fulfiller,
		Input:      job.Input,
		Price:      job.Price.String(),
		Timestamp:  time.Now().UTC(),
	}
}

package dto

import (
	"encoding/json"
	"time"

	"github.com/paygenio/paygen/internal/domain"
)

type CreateJobRequest struct {
	ServiceKey string          `json:"service_key" binding:"required"`
	Requester  string          `json:"requester" binding:"required,eth_addr"`
	Fulfiller  string          `json:"fulfiller" binding:"required,eth_addr"`
	Input      json.RawMessage `json:"input" binding:"required"`
}

type ConfirmPaymentRequest struct {
	TxHash string `json:"tx_hash" binding:"required,txhash"`
}

type RegisterWebhookRequest struct {
	Fulfiller string `json:"fulfiller" binding:"required"`
	URL       string `json:"url" binding:"required,url"`
	Secret    string `json:"secret" binding:"required,min=16"`
}

type ListJobsRequest struct {
	Requester  string `form:"requester"`
	ServiceKey string `form:"service_key"`
	State      string `form:"state"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID      string          `json:"job_id"`
	ServiceKey string          `json:"service_key"`
	Requester  string          `json:"requester"`
	Fulfiller  string          `json:"fulfiller"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	Price      string          `json:"price"`
	TxHash     string          `json:"tx_hash,omitempty"`
	State      string          `json:"state"`
	CreatedAt  string          `json:"created_at"`
	PaidAt     string          `json:"paid_at,omitempty"`
	DoneAt     string          `json:"completed_at,omitempty"`
}

// FromDomain converts a domain job into its API shape.
func FromDomain(job *domain.Job) JobDTO {
	dto := JobDTO{
		JobID:      job.PublicID,
		ServiceKey: job.ServiceKey,
		Requester:  job.Requester,
		Fulfiller:  job.Fulfiller,
		Input:      job.Input,
		Output:     job.Output,
		Price:      job.Price.String(),
		TxHash:     job.TxHash,
		State:      job.State,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
	}
	if job.PaidAt != nil {
		dto.PaidAt = job.PaidAt.Format(time.RFC3339)
	}
	if job.DoneAt != nil {
		dto.DoneAt = job.DoneAt.Format(time.RFC3339)
	}
	return dto
}

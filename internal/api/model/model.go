package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paygenio/paygen/internal/domain"
)

// Job is the database row shape. The sequential id stays internal; external
// parties only ever see public_id.
type Job struct {
	ID         int64           `db:"id"`
	PublicID   string          `db:"public_id"`
	ServiceKey string          `db:"service_key"`
	Requester  string          `db:"requester"`
	Fulfiller  string          `db:"fulfiller"`
	Input      json.RawMessage `db:"input"`
	Output     json.RawMessage `db:"output"`
	Price      string          `db:"price"`
	TxHash     sql.NullString  `db:"tx_hash"`
	State      string          `db:"state"`
	CreatedAt  time.Time       `db:"created_at"`
	PaidAt     sql.NullTime    `db:"paid_at"`
	DoneAt     sql.NullTime    `db:"completed_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// ToDomain converts the row into the domain entity.
func (j *Job) ToDomain() (*domain.Job, error) {
	price, err := domain.ParseAmount(j.Price)
	if err != nil {
		return nil, fmt.Errorf("job %s has invalid price %q: %w", j.PublicID, j.Price, err)
	}

	job := &domain.Job{
		PublicID:   j.PublicID,
		ServiceKey: j.ServiceKey,
		Requester:  j.Requester,
		Fulfiller:  j.Fulfiller,
		Input:      j.Input,
		Output:     j.Output,
		Price:      price,
		State:      j.State,
		CreatedAt:  j.CreatedAt,
	}

	if j.TxHash.Valid {
		job.TxHash = j.TxHash.String
	}
	if j.PaidAt.Valid {
		t := j.PaidAt.Time
		job.PaidAt = &t
	}
	if j.DoneAt.Valid {
		t := j.DoneAt.Time
		job.DoneAt = &t
	}

	return job, nil
}

// WebhookEndpoint is a registered delivery target for a fulfiller.
type WebhookEndpoint struct {
	ID        int64     `db:"id"`
	Fulfiller string    `db:"fulfiller"`
	URL       string    `db:"url"`
	Secret    string    `db:"secret"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

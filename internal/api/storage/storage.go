package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paygenio/paygen/internal/api/model"
	"github.com/paygenio/paygen/internal/domain"
	"github.com/paygenio/paygen/shared/postgresql"
)

// Storage is the job store. All state mutation goes through the guarded
// transition methods in transitions.go; there is no generic field update.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

const jobColumns = `
	id, public_id, service_key, requester, fulfiller,
	input, output, price, tx_hash, state,
	created_at, paid_at, completed_at, updated_at
`

func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			public_id, service_key, requester, fulfiller,
			input, price, state, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`

	now := time.Now().UTC()
	job.CreatedAt = now
	job.State = domain.JobStatePending

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.PublicID,
		job.ServiceKey,
		job.Requester,
		job.Fulfiller,
		job.Input,
		job.Price.String(),
		job.State,
		job.CreatedAt,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByPublicID(ctx context.Context, publicID string) (*domain.Job, error) {
	var row model.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE public_id = $1`

	err := s.db.GetContext(ctx, &row, query, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.ToDomain()
}

type JobFilter struct {
	Requester  string
	ServiceKey string
	State      string
	PageSize   int
	Cursor     *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	PublicID  string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.Requester != "" {
		query += fmt.Sprintf(" AND requester = $%d", argIdx)
		args = append(args, filter.Requester)
		argIdx++
	}

	if filter.ServiceKey != "" {
		query += fmt.Sprintf(" AND service_key = $%d", argIdx)
		args = append(args, filter.ServiceKey)
		argIdx++
	}

	if filter.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, filter.State)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, public_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.PublicID)
		argIdx += 2
	}

	// Order by created_at DESC, public_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, public_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []model.Job
	err := s.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paygenio/paygen/internal/domain"
)

// The transition methods below are the only writers of job state. Each is a
// single conditional UPDATE keyed on the expected prior state, so two callers
// racing on the same job cannot both win: the loser's UPDATE matches zero
// rows and surfaces domain.ErrConflict.

// MarkPaid transitions pending -> paid and records the transaction hash. The
// hash column carries a unique index, so a transaction that already paid a
// different job is rejected with domain.ErrTxHashUsed.
func (s *Storage) MarkPaid(ctx context.Context, publicID, txHash string) error {
	query := `
		UPDATE jobs
		SET state = $1,
		    tx_hash = $2,
		    paid_at = NOW(),
		    updated_at = NOW()
		WHERE public_id = $3
		  AND state = $4
		  AND tx_hash IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatePaid, txHash, publicID, domain.JobStatePending)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTxHashUsed
		}
		return fmt.Errorf("failed to mark job paid: %w", err)
	}

	return s.checkTransition(ctx, result, publicID)
}

// MarkInProgress transitions paid -> in_progress.
func (s *Storage) MarkInProgress(ctx context.Context, publicID string) error {
	query := `
		UPDATE jobs
		SET state = $1,
		    updated_at = NOW()
		WHERE public_id = $2
		  AND state = $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStateInProgress, publicID, domain.JobStatePaid)
	if err != nil {
		return fmt.Errorf("failed to mark job in progress: %w", err)
	}

	return s.checkTransition(ctx, result, publicID)
}

// MarkCompleted transitions in_progress -> completed and stores the output.
func (s *Storage) MarkCompleted(ctx context.Context, publicID string, output json.RawMessage) error {
	query := `
		UPDATE jobs
		SET state = $1,
		    output = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE public_id = $3
		  AND state = $4
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStateCompleted, output, publicID, domain.JobStateInProgress)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	return s.checkTransition(ctx, result, publicID)
}

// MarkFailed transitions paid or in_progress -> failed. The failure reason is
// stored in the output column as a structured envelope for audit.
func (s *Storage) MarkFailed(ctx context.Context, publicID, reason, detail string) error {
	envelope, err := json.Marshal(map[string]string{
		"error":  reason,
		"detail": detail,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal failure envelope: %w", err)
	}

	query := `
		UPDATE jobs
		SET state = $1,
		    output = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE public_id = $3
		  AND state IN ($4, $5)
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStateFailed, envelope, publicID,
		domain.JobStatePaid, domain.JobStateInProgress)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return s.checkTransition(ctx, result, publicID)
}

// checkTransition turns a zero-row UPDATE into the right sentinel: the job
// either does not exist or is not in the expected prior state.
func (s *Storage) checkTransition(ctx context.Context, result interface{ RowsAffected() (int64, error) }, publicID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs WHERE public_id = $1)`, publicID); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return domain.ErrJobNotFound
	}

	return domain.ErrConflict
}

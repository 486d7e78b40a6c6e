package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paygenio/paygen/internal/api/dto"
	"github.com/paygenio/paygen/internal/domain"
)

// ConfirmPayment handles POST /api/v1/jobs/:job_id/payment
// Verifies the claimed transaction and, on acceptance, runs the job to a
// terminal state. The response carries the job as it stands when the pipeline
// returns: completed or failed on the happy path, the current state on an
// idempotent repeat.
func (h *JobHandler) ConfirmPayment(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tx_hash must be a 0x-prefixed 32-byte hash",
		})
		return
	}

	txHash := strings.ToLower(req.TxHash)

	h.logger.Info("Payment confirmation received",
		slog.String("job_id", jobID),
		slog.String("tx_hash", txHash),
	)

	job, err := h.orchestrator.ConfirmPayment(c.Request.Context(), jobID, txHash)
	if err != nil {
		h.respondPaymentError(c, jobID, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromDomain(job))
}

// respondPaymentError maps pipeline errors onto HTTP statuses with a
// structured, actionable reason. Raw internal errors never reach the caller.
func (h *JobHandler) respondPaymentError(c *gin.Context, jobID string, err error) {
	var verr *domain.VerificationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "payment rejected",
			"reason": verr.Reason,
			"detail": verr.Detail,
		})

	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})

	case errors.Is(err, domain.ErrTxHashUsed):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "payment conflict",
			"reason": "tx_already_used",
		})

	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "payment conflict",
			"reason": "job_already_paid",
		})

	default:
		h.logger.Error("Payment confirmation failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "verification temporarily unavailable",
		})
	}
}

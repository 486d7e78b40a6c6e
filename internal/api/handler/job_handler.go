package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paygenio/paygen/internal/api/dto"
	"github.com/paygenio/paygen/internal/api/storage"
	"github.com/paygenio/paygen/internal/domain"
)

// maxInputBytes bounds the schemaless input payload.
const maxInputBytes = 16 << 10

// CreateJob handles POST /api/v1/jobs
// Creates a new pending job with the price copied from the catalog. The price
// on the job is fixed here and never re-read, so catalog edits cannot
// invalidate in-flight work.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if len(req.Input) > maxInputBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "input payload too large",
		})
		return
	}

	if !json.Valid(req.Input) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "input must be valid JSON",
		})
		return
	}

	entry, err := h.catalog.Lookup(req.ServiceKey)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "unknown service key",
		})
		return
	}

	job := &domain.Job{
		PublicID:   uuid.New().String(),
		ServiceKey: req.ServiceKey,
		Requester:  strings.ToLower(req.Requester),
		Fulfiller:  strings.ToLower(req.Fulfiller),
		Input:      req.Input,
		Price:      entry.PriceAmount(),
	}

	if err := h.storage.CreateJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.PublicID),
		slog.String("service_key", job.ServiceKey),
		slog.String("price", job.Price.String()),
	)

	c.JSON(http.StatusCreated, dto.FromDomain(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Read-only poll of a job's current state and output.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByPublicID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.FromDomain(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		Requester:  strings.ToLower(req.Requester),
		ServiceKey: req.ServiceKey,
		State:      req.State,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = dto.FromDomain(job)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		cursorObj := storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			PublicID:  lastJob.PublicID,
		}
		nextCursor, err = EncodeJobCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

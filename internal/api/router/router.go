package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paygenio/paygen/internal/api/handler"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SetupRouter configures and returns the Gin router with all routes. Each
// checker guards a backing dependency; any failure makes /health report 503.
func SetupRouter(deps *handler.Dependencies, checks ...HealthChecker) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "paygen-api-service",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "paygen-api-service",
		})
	})

	// Initialize job handler
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a new job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Poll job state and output
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/payment - Confirm a payment claim
			jobs.POST("/:job_id/payment", jobHandler.ConfirmPayment)
		}

		// POST /api/v1/webhooks - Register a fulfiller webhook endpoint
		v1.POST("/webhooks", jobHandler.RegisterWebhook)
	}

	return r
}

package handler

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paygenio/paygen/internal/api/dto"
)

// RegisterWebhook handles POST /api/v1/webhooks
// Registers (or replaces) the delivery endpoint for a fulfiller.
func (h *JobHandler) RegisterWebhook(c *gin.Context) {
	var req dto.RegisterWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := validateEndpointURL(req.URL, h.environment); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	fulfiller := strings.ToLower(req.Fulfiller)
	if err := h.storage.RegisterEndpoint(c.Request.Context(), fulfiller, req.URL, req.Secret); err != nil {
		h.logger.Error("Failed to register webhook endpoint", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to register webhook endpoint",
		})
		return
	}

	h.logger.Info("Webhook endpoint registered",
		slog.String("fulfiller", fulfiller),
		slog.String("url", req.URL),
	)

	c.JSON(http.StatusCreated, gin.H{
		"fulfiller": fulfiller,
		"url":       req.URL,
	})
}

// validateEndpointURL enforces the registration policy: HTTPS only, and no
// loopback or private-range hosts in production. Plain HTTP stays allowed
// outside production so local receivers can be tested.
func validateEndpointURL(raw, environment string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL")
	}

	production := environment == "production"

	switch parsed.Scheme {
	case "https":
	case "http":
		if production {
			return fmt.Errorf("endpoint must use https")
		}
	default:
		return fmt.Errorf("endpoint must use https")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("endpoint URL has no host")
	}

	if !production {
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("endpoint host must be publicly reachable")
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("endpoint host must be publicly reachable")
		}
	}

	return nil
}

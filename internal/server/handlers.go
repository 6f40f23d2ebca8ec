package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

// ReceiveWebhook verifies and parses one inbound notification.
// POST /webhooks/:provider
func (s *Server) ReceiveWebhook(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": gin.H{"kind": "webhook", "message": "payload too large"}})
			return
		}
		AbortWithError(c, domain.NewWebhookError("", domain.CodeInvalidPayload, "unreadable body"))
		return
	}

	event, err := s.webhooks.IngestWebhook(c.Request.Context(), c.Param("provider"), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.log.Debug("webhook handled", zap.String("event_id", event.ID), zap.String("type", event.Type))
	c.JSON(http.StatusOK, gin.H{"received": true, "id": event.ID, "type": event.Type})
}

// GET /healthz
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports the configured processor and what it supports.
// GET /readyz
func (s *Server) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ready",
		"provider":     s.payments.Provider(),
		"capabilities": s.payments.Capabilities(),
	})
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// AbortWithError writes the canonical error body with the status its kind
// maps to.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func errorResponse(err error) (int, errorBody) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		return http.StatusInternalServerError, errorBody{Kind: "internal", Message: "internal error"}
	}
	body := errorBody{Kind: string(derr.Kind), Code: derr.Code, Message: derr.Message}
	switch {
	case derr.Kind == domain.KindWebhook && derr.Code == webhook.CodeUnknownProvider:
		return http.StatusNotFound, body
	case derr.Kind == domain.KindWebhook && derr.Code == domain.CodeInvalidSignature:
		return http.StatusUnauthorized, body
	case derr.Kind == domain.KindWebhook, derr.Kind == domain.KindValidation:
		return http.StatusBadRequest, body
	case derr.Kind == domain.KindNetwork:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

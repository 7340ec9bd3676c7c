package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	adminsvc "storefront/internal/service/admin"
)

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Verified  *bool  `json:"verified,omitempty"`
	Status    string `json:"status,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: err.Error()})
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		ve *domain.ValidationError
		te *domain.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: ve.Error(), Field: ve.Field})
	case errors.Is(err, domain.ErrSignatureInvalid):
		verified := false
		c.JSON(http.StatusBadRequest, errorBody{Error: "signature_invalid", Message: "payment verification failed", Verified: &verified})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "order not found"})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "gateway_unavailable", Message: "payment gateway unavailable, try again", Retryable: true})
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, errorBody{Error: "conflict", Message: "order already settled", Status: string(te.From)})
	case errors.Is(err, adminsvc.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid_credentials", Message: "invalid credentials"})
	case errors.Is(err, adminsvc.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing or invalid token"})
	default:
		logging.FromContext(c.Request.Context(), nil).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"})
	}
}

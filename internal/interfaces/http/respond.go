package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/infrastructure/llm"
	"github.com/loorksy/ERPwhatsapp/internal/usecases"
)

// fail maps a usecase error onto a status and JSON body. notFound is the
// message used for usecases.ErrNotFound.
func fail(c *gin.Context, err error, notFound string) {
	var verr *usecases.ValidationError
	switch {
	case errors.As(err, &verr):
		abortValidation(c, http.StatusBadRequest, verr.Errors)
	case errors.Is(err, usecases.ErrNotFound):
		if notFound == "" {
			notFound = "Not found"
		}
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": notFound})
	case errors.Is(err, usecases.ErrProviderSettingsMissing):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Provider settings not found for user"})
	case errors.Is(err, usecases.ErrUnsupportedProvider), errors.Is(err, llm.ErrUnsupportedProvider):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Unsupported provider"})
	case errors.Is(err, usecases.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.Is(err, usecases.ErrSessionNotReady):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "WhatsApp session is not ready"})
	case errors.Is(err, usecases.ErrRateLimited):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many messages, please slow down"})
	case errors.Is(err, usecases.ErrQuotaExceeded):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Monthly message limit reached"})
	case errors.Is(err, usecases.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
	case errors.Is(err, usecases.ErrAccountSuspended):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Account suspended"})
	case errors.Is(err, usecases.ErrInvalidResetToken):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired reset token"})
	default:
		zap.L().Error("http: request failed",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

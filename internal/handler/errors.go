package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/middleware"
)

const unexpectedError = "An unexpected error occurred"

// responder writes error bodies of the form {"message", "request_id"}.
// Outside development the cause of a 500 is only logged.
type responder struct {
	logger  *zap.Logger
	devMode bool
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindConflict, domain.KindInvalidOTP:
		return http.StatusBadRequest
	case domain.KindUnauthenticated, domain.KindInvalidToken, domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (r responder) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.RequestIDKey)

	var de *domain.Error
	if !errors.As(err, &de) {
		r.logger.Error("Unhandled error",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))

		body := gin.H{"message": unexpectedError, "request_id": requestID}
		if r.devMode {
			body["error"] = err.Error()
		}
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		return
	}

	status := statusFor(de.Kind)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		r.logger.Warn("Access denied",
			zap.String("request_id", requestID),
			zap.String("kind", string(de.Kind)),
			zap.String("path", c.FullPath()))
	}

	message := de.Message
	if message == "" {
		message = string(de.Kind)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message, "request_id": requestID})
}

// bindError reports a request body that failed to decode or validate.
func (r responder) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		r.respondError(c, domain.Validationf("%s failed on the '%s' rule", fe.Field(), fe.Tag()))
		return
	}
	r.respondError(c, domain.Validationf("invalid request body"))
}

// caller returns the authenticated account id. Routes using it sit behind
// middleware.Authenticate.
func (r responder) caller(c *gin.Context) (string, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		r.respondError(c, &domain.Error{Kind: domain.KindUnauthenticated, Message: "authentication required"})
		return "", false
	}
	return identity.ID, true
}

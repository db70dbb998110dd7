package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
)

const kindIdempotencyConflict = "idempotency_conflict"

// errorResponse переводит ошибку в HTTP-статус и тело {"error": {...}}.
func errorResponse(err error) (int, gin.H) {
	body := gin.H{"kind": domain.ErrorKind(err), "message": err.Error()}
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, idempotency.ErrKeyReused),
		errors.Is(err, idempotency.ErrInProgress),
		errors.Is(err, idempotency.ErrPreviousAttemptFailed):
		return http.StatusConflict, gin.H{"error": gin.H{"kind": kindIdempotencyConflict, "message": err.Error()}}
	}

	switch domain.ErrorKind(err) {
	case domain.KindValidation:
		code = http.StatusBadRequest
		var verr *domain.ValidationError
		if errors.As(err, &verr) && verr.Field != "" {
			body["field"] = verr.Field
		}
	case domain.KindNotFound:
		code = http.StatusNotFound
	case domain.KindInsufficientStock:
		code = http.StatusConflict
		var serr *domain.InsufficientStockError
		if errors.As(err, &serr) {
			body["productId"] = serr.ProductID
			body["name"] = serr.Name
			body["requested"] = serr.Requested
			body["available"] = serr.Available
		}
	case domain.KindIncompletePayment:
		code = http.StatusPaymentRequired
		var perr *domain.IncompletePaymentError
		if errors.As(err, &perr) {
			body["total"] = perr.Total
			body["paid"] = perr.Paid
			body["remaining"] = perr.Remaining()
		}
	default:
		body["message"] = "internal error"
	}
	return code, gin.H{"error": body}
}

func (s *Server) writeError(c *gin.Context, err error) {
	code, body := errorResponse(err)
	if code >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, body)
}

func badRequest(field, reason string) error {
	return domain.NewValidationError(field, reason)
}

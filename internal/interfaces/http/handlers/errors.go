package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/logging"
	"github.com/Berobasket/gdx-pay/internal/interfaces/http/response"
)

// respondError maps billing errors onto HTTP responses
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	defer func() {
		logger := logging.GetLogger(c)
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("billing request failed", zap.Int("status", c.Writer.Status()), zap.Error(err))
			return
		}
		logger.Debug("billing request rejected", zap.Int("status", c.Writer.Status()), zap.Error(err))
	}()

	if code, ok := domainErrors.ResponseCodeOf(err); ok {
		status := http.StatusBadGateway
		switch code {
		case valueobject.ResponseItemAlreadyOwned:
			status = http.StatusConflict
		case valueobject.ResponseItemUnavailable, valueobject.ResponseItemNotOwned:
			status = http.StatusNotFound
		case valueobject.ResponseServiceUnavailable, valueobject.ResponseBillingUnavailable:
			status = http.StatusServiceUnavailable
		}
		response.WithCode(c, status, "BILLING_ERROR", err.Error(), code.String())
		return
	}

	var decodeErr *domainErrors.DecodeError
	switch {
	case domainErrors.IsValidationError(err):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domainErrors.ErrPurchaseCanceled):
		response.Error(c, http.StatusConflict, "PURCHASE_CANCELED", err.Error())
	case errors.Is(err, domainErrors.ErrPurchaseInProgress):
		response.Conflict(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(c, err.Error())
	case domainErrors.IsConnectionError(err):
		response.Error(c, http.StatusServiceUnavailable, "NOT_CONNECTED", err.Error())
	case domainErrors.IsTransient(err), errors.Is(err, domainErrors.ErrRetryAbandoned):
		response.ServiceUnavailable(c, err.Error())
	case errors.As(err, &decodeErr):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, domainErrors.ErrPurchaseFailed):
		response.Error(c, http.StatusBadGateway, "PURCHASE_FAILED", err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

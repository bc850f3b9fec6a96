package command

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/application/dto"
	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// Purchaser starts purchase requests
type Purchaser interface {
	StartPurchaseRequest(ctx context.Context, productID string, purchaseType valueobject.PurchaseType, callback billing.PurchaseRequestCallback)
	IsTestPurchase(tx entity.Transaction) bool
}

// PurchaseCommand runs a purchase request to completion
type PurchaseCommand struct {
	purchaser Purchaser
	logger    *zap.Logger
}

// NewPurchaseCommand creates a new purchase command
func NewPurchaseCommand(purchaser Purchaser, logger *zap.Logger) *PurchaseCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseCommand{
		purchaser: purchaser,
		logger:    logger,
	}
}

// Execute starts the purchase and blocks until it resolves or ctx is done.
// A user cancellation is returned as errors.ErrPurchaseCanceled. When ctx
// ends first the request stays outstanding until its result arrives.
func (c *PurchaseCommand) Execute(ctx context.Context, req *dto.PurchaseRequest) (*dto.PurchaseResponse, error) {
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return nil, domainErrors.NewValidationError("product_id", domainErrors.ErrRequiredField, "product id is required")
	}
	if strings.ContainsAny(productID, " \t\r\n,") {
		return nil, domainErrors.NewValidationError("product_id", domainErrors.ErrInvalidProductID, "a purchase names exactly one product id")
	}

	purchaseType := valueobject.PurchaseTypeInApp
	if req.Type != "" {
		pt, err := valueobject.NewPurchaseType(req.Type)
		if err != nil {
			return nil, &domainErrors.ValidationError{Field: "type", Err: err}
		}
		purchaseType = pt
	}

	outcome := billing.NewChannelCallback()
	c.purchaser.StartPurchaseRequest(ctx, productID, purchaseType, outcome)

	select {
	case result := <-outcome:
		switch {
		case result.Canceled:
			c.logger.Info("Purchase canceled", zap.String("product_id", productID))
			return nil, domainErrors.ErrPurchaseCanceled
		case result.Err != nil:
			return nil, fmt.Errorf("purchase of '%s' failed: %w", productID, result.Err)
		}

		tx := dto.NewTransactionResponse(result.Transaction, c.purchaser.IsTestPurchase(result.Transaction))
		c.logger.Info("Purchase completed",
			zap.String("product_id", tx.ProductID),
			zap.String("order_id", tx.OrderID),
			zap.Bool("test", tx.Test),
		)
		return &dto.PurchaseResponse{
			Status:      dto.PurchaseStatusPurchased,
			Transaction: &tx,
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for purchase of '%s': %w", productID, ctx.Err())
	}
}

package iap

import (
	"context"
	"errors"

	"github.com/awa/go-iap/playstore"
	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// Verifier performs an online check of a decoded transaction
type Verifier interface {
	Verify(ctx context.Context, tx entity.Transaction) error
}

// Converter turns a purchase UI result into a transaction. When a public
// key is set the data signature is checked against it, and when a Verifier
// is set the purchase is confirmed online.
type Converter struct {
	publicKey string
	verifier  Verifier
	logger    *zap.Logger
}

// NewConverter creates a result converter. publicKey is the base64 encoded
// license key of the application; verifier may be nil.
func NewConverter(publicKey string, verifier Verifier, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		publicKey: publicKey,
		verifier:  verifier,
		logger:    logger.With(zap.String("component", "purchase-converter")),
	}
}

// Decode implements billing.ResultConverter
func (c *Converter) Decode(ctx context.Context, payload billing.ResultPayload) (entity.Transaction, error) {
	if payload.PurchaseData == "" {
		return entity.Transaction{}, &domainErrors.DecodeError{Reason: "purchase data missing"}
	}

	if c.publicKey != "" {
		if payload.DataSignature == "" {
			return entity.Transaction{}, &domainErrors.DecodeError{Reason: "data signature missing"}
		}
		valid, err := playstore.VerifySignature(c.publicKey, []byte(payload.PurchaseData), payload.DataSignature)
		if err != nil {
			return entity.Transaction{}, &domainErrors.DecodeError{Reason: "signature check failed", Err: err}
		}
		if !valid {
			return entity.Transaction{}, &domainErrors.DecodeError{Reason: "signature mismatch", Err: errors.New("purchase data was not signed by the store")}
		}
	}

	purchaseType := payload.PurchaseType
	if purchaseType == "" {
		purchaseType = valueobject.PurchaseTypeInApp
	}
	tx, err := entity.ParseTransaction(payload.PurchaseData, payload.DataSignature, purchaseType)
	if err != nil {
		return entity.Transaction{}, &domainErrors.DecodeError{Reason: "purchase data", Err: err}
	}

	if c.verifier != nil {
		if err := c.verifier.Verify(ctx, tx); err != nil {
			return entity.Transaction{}, &domainErrors.DecodeError{Reason: "online verification", Err: err}
		}
	}

	c.logger.Debug("Purchase result decoded",
		zap.String("product_id", tx.Identifier),
		zap.String("order_id", tx.OrderID),
	)
	return tx, nil
}

package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// GetProductsDetails looks up ids in a single remote query and returns the
// decoded records keyed by product id. Undecodable entries are skipped.
func (s *Service) GetProductsDetails(ctx context.Context, ids []string, purchaseType valueobject.PurchaseType) (map[string]entity.Information, error) {
	started := s.now().UnixMilli()

	docs, err := s.remote.ProductDetails(ctx, purchaseType, ids)
	if err != nil {
		return nil, &domainErrors.QueryError{Query: "product details", Err: err}
	}

	details := make(map[string]entity.Information, len(docs))
	for _, doc := range docs {
		info, err := entity.ParseInformation(doc)
		if err != nil {
			s.logger.Warn("Skipping undecodable product details", zap.Error(err))
			continue
		}
		details[info.ProductID] = info
	}

	s.logger.Debug("Fetched product details",
		zap.Int("requested", len(ids)),
		zap.Int("decoded", len(details)),
		zap.Int("elapsed_seconds", s.DeltaInSecondsSince(started)),
	)
	return details, nil
}

// GetPurchases returns owned in-app purchases followed by subscriptions.
// A failure of either query fails the whole call.
func (s *Service) GetPurchases(ctx context.Context) ([]entity.Transaction, error) {
	var transactions []entity.Transaction
	for _, purchaseType := range []valueobject.PurchaseType{
		valueobject.PurchaseTypeInApp,
		valueobject.PurchaseTypeSubscription,
	} {
		txs, err := s.purchasesOf(ctx, purchaseType)
		if err != nil {
			return nil, &domainErrors.QueryError{Query: "purchases", Err: err}
		}
		transactions = append(transactions, txs...)
	}
	return transactions, nil
}

// CancelTestPurchases consumes every in-app purchase carrying the test order
// marker. Real purchases are never touched.
func (s *Service) CancelTestPurchases(ctx context.Context) error {
	txs, err := s.purchasesOf(ctx, valueobject.PurchaseTypeInApp)
	if err != nil {
		return &domainErrors.QueryError{Query: "test purchases", Err: err}
	}

	var errs []error
	for _, tx := range txs {
		if !s.IsTestPurchase(tx) {
			continue
		}
		if err := s.remote.Consume(ctx, tx.PurchaseToken); err != nil {
			errs = append(errs, fmt.Errorf("consume '%s': %w", tx.Identifier, err))
			continue
		}
		s.logger.Info("Cancelled test purchase",
			zap.String("product_id", tx.Identifier),
			zap.String("order_id", tx.OrderID),
		)
	}
	return errors.Join(errs...)
}

// IsTestPurchase reports whether tx carries the test order marker
func (s *Service) IsTestPurchase(tx entity.Transaction) bool {
	return s.testOrder.MatchString(tx.OrderID)
}

func (s *Service) purchasesOf(ctx context.Context, purchaseType valueobject.PurchaseType) ([]entity.Transaction, error) {
	var (
		transactions []entity.Transaction
		token        string
	)
	for page := 0; page < s.maxPages; page++ {
		resp, err := s.remote.Purchases(ctx, purchaseType, token)
		if err != nil {
			return nil, err
		}
		for i, data := range resp.DataList {
			tx, err := entity.ParseTransaction(data, resp.SignatureList[i], purchaseType)
			if err != nil {
				return nil, &domainErrors.DecodeError{Reason: "purchase data", Err: err}
			}
			transactions = append(transactions, tx)
		}
		if resp.ContinuationToken == "" {
			return transactions, nil
		}
		token = resp.ContinuationToken
	}

	s.logger.Warn("Purchase list truncated",
		zap.String("type", purchaseType.String()),
		zap.Int("pages", s.maxPages),
	)
	return transactions, nil
}

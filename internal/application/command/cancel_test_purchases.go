package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/application/dto"
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
)

// TestPurchaseCleaner consumes sandbox purchases
type TestPurchaseCleaner interface {
	GetPurchases(ctx context.Context) ([]entity.Transaction, error)
	CancelTestPurchases(ctx context.Context) error
	IsTestPurchase(tx entity.Transaction) bool
}

// CancelTestPurchasesCommand consumes every owned test purchase
type CancelTestPurchasesCommand struct {
	cleaner TestPurchaseCleaner
	logger  *zap.Logger
}

// NewCancelTestPurchasesCommand creates a new cancel test purchases command
func NewCancelTestPurchasesCommand(cleaner TestPurchaseCleaner, logger *zap.Logger) *CancelTestPurchasesCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CancelTestPurchasesCommand{
		cleaner: cleaner,
		logger:  logger,
	}
}

// Execute consumes the test purchases and reports how many went away
func (c *CancelTestPurchasesCommand) Execute(ctx context.Context) (*dto.CancelTestPurchasesResponse, error) {
	before, err := c.cleaner.GetPurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	tests := c.countTests(before)

	if err := c.cleaner.CancelTestPurchases(ctx); err != nil {
		return nil, fmt.Errorf("failed to cancel test purchases: %w", err)
	}

	after, err := c.cleaner.GetPurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remaining purchases: %w", err)
	}

	resp := &dto.CancelTestPurchasesResponse{
		Canceled:  tests - c.countTests(after),
		Remaining: len(after),
	}
	c.logger.Info("Test purchases canceled",
		zap.Int("canceled", resp.Canceled),
		zap.Int("remaining", resp.Remaining),
	)
	return resp, nil
}

func (c *CancelTestPurchasesCommand) countTests(txs []entity.Transaction) int {
	count := 0
	for _, tx := range txs {
		if !tx.PurchaseType.IsSubscription() && c.cleaner.IsTestPurchase(tx) {
			count++
		}
	}
	return count
}

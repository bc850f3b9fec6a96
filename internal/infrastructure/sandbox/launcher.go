package sandbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// SetPurchaseMode changes how subsequent purchase flows are answered
func (p *Platform) SetPurchaseMode(mode PurchaseMode) error {
	switch mode {
	case PurchaseApprove, PurchaseCancel, PurchaseFail:
	default:
		return fmt.Errorf("unknown purchase mode '%s'", mode)
	}
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
	return nil
}

// Catalog returns the offered products in catalog order
func (p *Platform) Catalog() []Product {
	products := make([]Product, 0, len(p.order))
	for _, id := range p.order {
		products = append(products, p.catalog[id])
	}
	return products
}

// LaunchForResult runs the emulated purchase UI for intent. The result is
// dispatched to the registered result listeners after the UI delay.
func (p *Platform) LaunchForResult(intent billing.BuyIntent, requestCode int) error {
	p.mu.Lock()
	pending, ok := p.intents[intent.ID]
	delete(p.intents, intent.ID)
	mode := p.mode
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("buy intent '%s' is unknown or already used", intent.ID)
	}

	p.logger.Debug("Purchase UI launched",
		zap.String("intent", intent.ID),
		zap.String("product_id", intent.ProductID),
		zap.String("mode", string(mode)),
	)
	time.AfterFunc(p.uiDelay, func() { p.answer(pending, requestCode, mode) })
	return nil
}

func (p *Platform) answer(pending pendingIntent, requestCode int, mode PurchaseMode) {
	switch mode {
	case PurchaseCancel:
		p.deliverResult(requestCode, billing.ResultCanceled, billing.ResultPayload{
			ResponseCode: valueobject.ResponseUserCanceled,
		})

	case PurchaseFail:
		p.deliverResult(requestCode, resultFirstUser, billing.ResultPayload{
			ResponseCode: valueobject.ResponseError,
		})

	default:
		product := p.catalog[pending.intent.ProductID]
		owned, err := p.newPurchase(product, TestOrderPrefix+uuid.NewString(), pending.developerPayload)
		if err != nil {
			p.logger.Error("Failed to create sandbox purchase", zap.Error(err))
			p.deliverResult(requestCode, resultFirstUser, billing.ResultPayload{
				ResponseCode: valueobject.ResponseError,
			})
			return
		}

		p.mu.Lock()
		p.owned = append(p.owned, owned)
		p.mu.Unlock()

		p.deliverResult(requestCode, billing.ResultOK, billing.ResultPayload{
			ResponseCode:  valueobject.ResponseOK,
			PurchaseData:  owned.data,
			DataSignature: owned.signature,
			PurchaseType:  product.Type,
		})
	}
}

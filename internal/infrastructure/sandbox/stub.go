package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Berobasket/gdx-pay/internal/billing"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// TestOrderPrefix marks orders created by the sandbox as test purchases
const TestOrderPrefix = "transactionId.android.test."

type ownedPurchase struct {
	productID    string
	purchaseType valueobject.PurchaseType
	token        string
	data         string
	signature    string
}

// Stub is the sandbox implementation of the remote billing service
type Stub struct {
	platform *Platform
}

func (s *Stub) GetSkuDetails(ctx context.Context, apiVersion int, packageName string, itemType valueobject.PurchaseType, skus []string) (*billing.SkuDetailsResponse, error) {
	if code, err := s.precheck(ctx, apiVersion, packageName); err != nil || code != valueobject.ResponseOK {
		return &billing.SkuDetailsResponse{ResponseCode: code}, err
	}

	p := s.platform
	resp := &billing.SkuDetailsResponse{ResponseCode: valueobject.ResponseOK}
	for _, sku := range skus {
		product, ok := p.product(sku, itemType)
		if !ok {
			continue
		}
		doc, err := product.skuDetailsDocument()
		if err != nil {
			return nil, err
		}
		resp.DetailsList = append(resp.DetailsList, doc)
	}
	return resp, nil
}

func (s *Stub) GetPurchases(ctx context.Context, apiVersion int, packageName string, itemType valueobject.PurchaseType, continuationToken string) (*billing.PurchasesResponse, error) {
	if code, err := s.precheck(ctx, apiVersion, packageName); err != nil || code != valueobject.ResponseOK {
		return &billing.PurchasesResponse{ResponseCode: code}, err
	}

	offset := 0
	if continuationToken != "" {
		n, err := strconv.Atoi(continuationToken)
		if err != nil || n < 0 {
			return &billing.PurchasesResponse{ResponseCode: valueobject.ResponseDeveloperError}, nil
		}
		offset = n
	}

	p := s.platform
	p.mu.Lock()
	var matching []ownedPurchase
	for _, owned := range p.owned {
		if owned.purchaseType == itemType {
			matching = append(matching, owned)
		}
	}
	p.mu.Unlock()

	resp := &billing.PurchasesResponse{ResponseCode: valueobject.ResponseOK}
	for i := offset; i < len(matching) && i < offset+p.pageSize; i++ {
		resp.ItemList = append(resp.ItemList, matching[i].productID)
		resp.DataList = append(resp.DataList, matching[i].data)
		resp.SignatureList = append(resp.SignatureList, matching[i].signature)
	}
	if offset+p.pageSize < len(matching) {
		resp.ContinuationToken = strconv.Itoa(offset + p.pageSize)
	}
	return resp, nil
}

func (s *Stub) GetBuyIntent(ctx context.Context, apiVersion int, packageName, sku string, itemType valueobject.PurchaseType, developerPayload string) (*billing.BuyIntentResponse, error) {
	if code, err := s.precheck(ctx, apiVersion, packageName); err != nil || code != valueobject.ResponseOK {
		return &billing.BuyIntentResponse{ResponseCode: code}, err
	}

	p := s.platform
	if _, ok := p.product(sku, itemType); !ok {
		return &billing.BuyIntentResponse{ResponseCode: valueobject.ResponseItemUnavailable}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, owned := range p.owned {
		if owned.productID == sku {
			return &billing.BuyIntentResponse{ResponseCode: valueobject.ResponseItemAlreadyOwned}, nil
		}
	}

	intent := billing.BuyIntent{
		ID:           uuid.NewString(),
		ProductID:    sku,
		PurchaseType: itemType,
	}
	p.intents[intent.ID] = pendingIntent{intent: intent, developerPayload: developerPayload}
	return &billing.BuyIntentResponse{ResponseCode: valueobject.ResponseOK, BuyIntent: &intent}, nil
}

func (s *Stub) ConsumePurchase(ctx context.Context, apiVersion int, packageName, purchaseToken string) (valueobject.ResponseCode, error) {
	if code, err := s.precheck(ctx, apiVersion, packageName); err != nil || code != valueobject.ResponseOK {
		return code, err
	}

	p := s.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, owned := range p.owned {
		if owned.token == purchaseToken && owned.purchaseType == valueobject.PurchaseTypeInApp {
			p.owned = append(p.owned[:i], p.owned[i+1:]...)
			return valueobject.ResponseOK, nil
		}
	}
	return valueobject.ResponseItemNotOwned, nil
}

func (s *Stub) precheck(ctx context.Context, apiVersion int, packageName string) (valueobject.ResponseCode, error) {
	if err := ctx.Err(); err != nil {
		return valueobject.ResponseError, err
	}
	if !s.platform.isAlive() {
		return valueobject.ResponseServiceUnavailable, fmt.Errorf("sandbox billing service: %w", domainErrors.ErrRemoteDied)
	}
	if apiVersion != billing.APIVersion {
		return valueobject.ResponseBillingUnavailable, nil
	}
	if packageName != s.platform.packageName {
		return valueobject.ResponseDeveloperError, nil
	}
	return valueobject.ResponseOK, nil
}

// Grant records an owned purchase of productID under orderID, as if it had
// been bought outside this process. It returns the purchase token.
func (p *Platform) Grant(productID, orderID string) (string, error) {
	product, ok := p.catalog[productID]
	if !ok {
		return "", fmt.Errorf("unknown product '%s'", productID)
	}
	owned, err := p.newPurchase(product, orderID, billing.DefaultDeveloperPayload)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.owned = append(p.owned, owned)
	p.mu.Unlock()
	return owned.token, nil
}

// Owned returns the number of purchases currently owned
func (p *Platform) Owned() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.owned)
}

func (p *Platform) newPurchase(product Product, orderID, developerPayload string) (ownedPurchase, error) {
	token := uuid.NewString()
	data, err := json.Marshal(map[string]interface{}{
		"orderId":          orderID,
		"packageName":      p.packageName,
		"productId":        product.ID,
		"purchaseTime":     time.Now().UnixMilli(),
		"purchaseState":    0,
		"developerPayload": developerPayload,
		"purchaseToken":    token,
	})
	if err != nil {
		return ownedPurchase{}, err
	}
	signature, err := p.signer.Sign(string(data))
	if err != nil {
		return ownedPurchase{}, err
	}
	return ownedPurchase{
		productID:    product.ID,
		purchaseType: product.Type,
		token:        token,
		data:         string(data),
		signature:    signature,
	}, nil
}

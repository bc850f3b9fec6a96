package sandbox

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// Product is a catalog entry offered by the sandbox store
type Product struct {
	ID                 string                   `json:"productId"`
	Type               valueobject.PurchaseType `json:"type"`
	Title              string                   `json:"title"`
	Description        string                   `json:"description"`
	PriceAmount        decimal.Decimal          `json:"price_amount"`
	Currency           string                   `json:"price_currency_code"`
	SubscriptionPeriod string                   `json:"subscriptionPeriod,omitempty"`
	FreeTrialPeriod    string                   `json:"freeTrialPeriod,omitempty"`
}

// skuDetailsDocument renders p in the product details wire format
func (p Product) skuDetailsDocument() (string, error) {
	price, err := valueobject.NewMoney(p.PriceAmount, p.Currency)
	if err != nil {
		return "", fmt.Errorf("product '%s': %w", p.ID, err)
	}
	doc := map[string]interface{}{
		"productId":           p.ID,
		"type":                p.Type.String(),
		"title":               p.Title,
		"description":         p.Description,
		"price":               price.String(),
		"price_amount_micros": price.Micros(),
		"price_currency_code": price.Currency,
	}
	if p.SubscriptionPeriod != "" {
		doc["subscriptionPeriod"] = p.SubscriptionPeriod
	}
	if p.FreeTrialPeriod != "" {
		doc["freeTrialPeriod"] = p.FreeTrialPeriod
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DefaultCatalog returns the products a fresh sandbox offers
func DefaultCatalog() []Product {
	return []Product{
		{
			ID:          "com.badlogic.gdx.pay.full_edition",
			Type:        valueobject.PurchaseTypeInApp,
			Title:       "Full Edition",
			Description: "Unlock all levels",
			PriceAmount: decimal.RequireFromString("1.00"),
			Currency:    "EUR",
		},
		{
			ID:          "com.badlogic.gdx.pay.coins_100",
			Type:        valueobject.PurchaseTypeInApp,
			Title:       "100 Coins",
			Description: "A bag of coins",
			PriceAmount: decimal.RequireFromString("0.99"),
			Currency:    "EUR",
		},
		{
			ID:                 "com.badlogic.gdx.pay.gold_monthly",
			Type:               valueobject.PurchaseTypeSubscription,
			Title:              "Gold Membership",
			Description:        "Monthly gold membership",
			PriceAmount:        decimal.RequireFromString("4.99"),
			Currency:           "EUR",
			SubscriptionPeriod: "P1M",
			FreeTrialPeriod:    "P7D",
		},
	}
}

// LoadCatalog reads a JSON array of products from path
func LoadCatalog(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no productId", i)
		}
		if p.Type == "" {
			products[i].Type = valueobject.PurchaseTypeInApp
		} else if !p.Type.IsValid() {
			return nil, fmt.Errorf("catalog entry '%s': %w", p.ID, valueobject.ErrInvalidPurchaseType)
		}
		if _, err := valueobject.NewMoney(p.PriceAmount, p.Currency); err != nil {
			return nil, fmt.Errorf("catalog entry '%s': %w", p.ID, err)
		}
	}
	return products, nil
}

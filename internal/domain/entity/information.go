package entity

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// Information describes a product as reported by the billing service
type Information struct {
	ProductID          string
	Type               valueobject.PurchaseType
	Title              string
	Description        string
	Price              string
	PriceAmount        decimal.Decimal
	PriceCurrencyCode  string
	SubscriptionPeriod string
	FreeTrialPeriod    string
}

type skuDetails struct {
	ProductID          string `json:"productId"`
	Type               string `json:"type"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	Price              string `json:"price"`
	PriceAmountMicros  int64  `json:"price_amount_micros"`
	PriceCurrencyCode  string `json:"price_currency_code"`
	SubscriptionPeriod string `json:"subscriptionPeriod"`
	FreeTrialPeriod    string `json:"freeTrialPeriod"`
}

// ParseInformation decodes a single product details JSON document
func ParseInformation(data string) (Information, error) {
	var d skuDetails
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return Information{}, fmt.Errorf("failed to parse product details: %w", err)
	}
	if d.ProductID == "" {
		return Information{}, fmt.Errorf("product details have no productId")
	}

	purchaseType := valueobject.PurchaseTypeInApp
	if d.Type != "" {
		pt, err := valueobject.NewPurchaseType(d.Type)
		if err != nil {
			return Information{}, fmt.Errorf("product '%s': %w", d.ProductID, err)
		}
		purchaseType = pt
	}

	return Information{
		ProductID:          d.ProductID,
		Type:               purchaseType,
		Title:              d.Title,
		Description:        d.Description,
		Price:              d.Price,
		PriceAmount:        decimal.New(d.PriceAmountMicros, -6),
		PriceCurrencyCode:  d.PriceCurrencyCode,
		SubscriptionPeriod: d.SubscriptionPeriod,
		FreeTrialPeriod:    d.FreeTrialPeriod,
	}, nil
}

// Equal compares two records, treating prices numerically
func (i Information) Equal(other Information) bool {
	return i.ProductID == other.ProductID &&
		i.Type == other.Type &&
		i.Title == other.Title &&
		i.Description == other.Description &&
		i.Price == other.Price &&
		i.PriceAmount.Equal(other.PriceAmount) &&
		i.PriceCurrencyCode == other.PriceCurrencyCode &&
		i.SubscriptionPeriod == other.SubscriptionPeriod &&
		i.FreeTrialPeriod == other.FreeTrialPeriod
}

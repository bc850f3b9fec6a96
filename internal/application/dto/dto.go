package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Berobasket/gdx-pay/internal/domain/entity"
)

// ========== CONNECTION DTOs ==========

// StatusResponse represents the billing connection status
type StatusResponse struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Listening bool   `json:"listening"`
}

// ========== PRODUCT DTOs ==========

// ProductsRequest represents a product details lookup
type ProductsRequest struct {
	IDs  []string `form:"ids" json:"ids" binding:"required,min=1"`
	Type string   `form:"type" json:"type" binding:"omitempty,oneof=inapp subs"`
}

// ProductResponse represents a single product
type ProductResponse struct {
	ProductID          string          `json:"product_id"`
	Type               string          `json:"type"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Price              string          `json:"price"`
	PriceAmount        decimal.Decimal `json:"price_amount"`
	PriceCurrencyCode  string          `json:"price_currency_code"`
	SubscriptionPeriod string          `json:"subscription_period,omitempty"`
	FreeTrialPeriod    string          `json:"free_trial_period,omitempty"`
}

// ProductsResponse represents a product details lookup response
type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Missing  []string          `json:"missing,omitempty"`
}

// ========== PURCHASE DTOs ==========

// TransactionResponse represents a purchase record
type TransactionResponse struct {
	ProductID     string `json:"product_id"`
	OrderID       string `json:"order_id"`
	PurchaseToken string `json:"purchase_token"`
	Type          string `json:"type"`
	PurchaseTime  string `json:"purchase_time"`
	State         string `json:"state"`
	Active        bool   `json:"active"`
	Reversed      bool   `json:"reversed"`
	Test          bool   `json:"test"`
}

// PurchasesResponse represents the owned purchases
type PurchasesResponse struct {
	Purchases []TransactionResponse `json:"purchases"`
	Count     int                   `json:"count"`
}

// PurchaseRequest represents a purchase request
type PurchaseRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Type      string `json:"type" binding:"omitempty,oneof=inapp subs"`
}

// PurchaseResponse represents a purchase outcome
type PurchaseResponse struct {
	Status      string               `json:"status"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// Purchase outcome statuses
const (
	PurchaseStatusPurchased = "purchased"
	PurchaseStatusCanceled  = "canceled"
)

// CancelTestPurchasesResponse represents a test purchase cleanup
type CancelTestPurchasesResponse struct {
	Canceled  int `json:"canceled"`
	Remaining int `json:"remaining"`
}

// NewTransactionResponse maps a transaction; test marks sandbox orders
func NewTransactionResponse(tx entity.Transaction, test bool) TransactionResponse {
	return TransactionResponse{
		ProductID:     tx.Identifier,
		OrderID:       tx.OrderID,
		PurchaseToken: tx.PurchaseToken,
		Type:          tx.PurchaseType.String(),
		PurchaseTime:  tx.PurchaseTime.UTC().Format(time.RFC3339),
		State:         tx.PurchaseState.String(),
		Active:        tx.IsPurchased(),
		Reversed:      tx.IsReversed(),
		Test:          test,
	}
}

// NewProductResponse maps a product details record
func NewProductResponse(info entity.Information) ProductResponse {
	return ProductResponse{
		ProductID:          info.ProductID,
		Type:               info.Type.String(),
		Title:              info.Title,
		Description:        info.Description,
		Price:              info.Price,
		PriceAmount:        info.PriceAmount,
		PriceCurrencyCode:  info.PriceCurrencyCode,
		SubscriptionPeriod: info.SubscriptionPeriod,
		FreeTrialPeriod:    info.FreeTrialPeriod,
	}
}

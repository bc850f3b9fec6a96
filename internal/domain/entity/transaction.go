package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// StoreGooglePlay is the store name stamped on every transaction
const StoreGooglePlay = "GooglePlay"

type PurchaseState int

const (
	PurchaseStatePurchased PurchaseState = 0
	PurchaseStateCanceled  PurchaseState = 1
	PurchaseStateRefunded  PurchaseState = 2
)

func (s PurchaseState) String() string {
	switch s {
	case PurchaseStatePurchased:
		return "purchased"
	case PurchaseStateCanceled:
		return "canceled"
	case PurchaseStateRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Transaction is a purchase record decoded from the billing service.
// It is passed by value and never mutated after construction.
type Transaction struct {
	Identifier       string
	StoreName        string
	OrderID          string
	PurchaseToken    string
	PackageName      string
	PurchaseType     valueobject.PurchaseType
	PurchaseTime     time.Time
	PurchaseState    PurchaseState
	DeveloperPayload string
	TransactionData  string
	Signature        string
}

type purchaseData struct {
	OrderID          string `json:"orderId"`
	PackageName      string `json:"packageName"`
	ProductID        string `json:"productId"`
	PurchaseTime     int64  `json:"purchaseTime"`
	PurchaseState    int    `json:"purchaseState"`
	DeveloperPayload string `json:"developerPayload"`
	PurchaseToken    string `json:"purchaseToken"`
}

// ParseTransaction decodes a purchase data JSON document and its signature
func ParseTransaction(data, signature string, purchaseType valueobject.PurchaseType) (Transaction, error) {
	var p purchaseData
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Transaction{}, fmt.Errorf("failed to parse purchase data: %w", err)
	}
	if p.ProductID == "" {
		return Transaction{}, fmt.Errorf("purchase data has no productId")
	}
	if p.PurchaseToken == "" {
		return Transaction{}, fmt.Errorf("purchase data has no purchaseToken")
	}

	return Transaction{
		Identifier:       p.ProductID,
		StoreName:        StoreGooglePlay,
		OrderID:          p.OrderID,
		PurchaseToken:    p.PurchaseToken,
		PackageName:      p.PackageName,
		PurchaseType:     purchaseType,
		PurchaseTime:     time.UnixMilli(p.PurchaseTime),
		PurchaseState:    PurchaseState(p.PurchaseState),
		DeveloperPayload: p.DeveloperPayload,
		TransactionData:  data,
		Signature:        signature,
	}, nil
}

// IsPurchased returns true if the purchase is in good standing
func (t Transaction) IsPurchased() bool {
	return t.PurchaseState == PurchaseStatePurchased
}

// IsReversed returns true if the purchase was canceled or refunded
func (t Transaction) IsReversed() bool {
	return t.PurchaseState == PurchaseStateCanceled || t.PurchaseState == PurchaseStateRefunded
}

package valueobject

import (
	"errors"
)

var (
	ErrInvalidPurchaseType = errors.New("invalid purchase type")
)

// PurchaseType is the item type understood by the billing service.
type PurchaseType string

const (
	PurchaseTypeInApp        PurchaseType = "inapp"
	PurchaseTypeSubscription PurchaseType = "subs"
)

// NewPurchaseType creates a new PurchaseType value object
func NewPurchaseType(purchaseType string) (PurchaseType, error) {
	pt := PurchaseType(purchaseType)
	switch pt {
	case PurchaseTypeInApp, PurchaseTypeSubscription:
		return pt, nil
	default:
		return "", ErrInvalidPurchaseType
	}
}

// String returns the string representation of the purchase type
func (p PurchaseType) String() string {
	return string(p)
}

// IsValid returns true if the purchase type is valid
func (p PurchaseType) IsValid() bool {
	switch p {
	case PurchaseTypeInApp, PurchaseTypeSubscription:
		return true
	default:
		return false
	}
}

// IsSubscription returns true for subscription items
func (p PurchaseType) IsSubscription() bool {
	return p == PurchaseTypeSubscription
}

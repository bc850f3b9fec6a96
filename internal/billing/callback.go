package billing

import (
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
)

// PurchaseOutcome is the terminal result of a purchase request
type PurchaseOutcome struct {
	Transaction entity.Transaction
	Err         error
	Canceled    bool
}

// ChannelCallback delivers the purchase outcome on a channel.
// It is buffered for the single outcome a request can produce.
type ChannelCallback chan PurchaseOutcome

// NewChannelCallback creates a ChannelCallback
func NewChannelCallback() ChannelCallback {
	return make(ChannelCallback, 1)
}

// PurchaseSuccess sends the purchased transaction
func (c ChannelCallback) PurchaseSuccess(tx entity.Transaction) {
	c <- PurchaseOutcome{Transaction: tx}
}

// PurchaseError sends the failure
func (c ChannelCallback) PurchaseError(err error) {
	c <- PurchaseOutcome{Err: err}
}

// PurchaseCanceled sends a canceled outcome
func (c ChannelCallback) PurchaseCanceled() {
	c <- PurchaseOutcome{Canceled: true}
}

package billing

import (
	"context"
	"time"

	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// ServiceDescriptor identifies the platform billing service to bind to
type ServiceDescriptor struct {
	Action  string
	Package string
}

// Binder is the platform facility that binds to out-of-process services.
// Bind returns false, or ErrBindDenied-like errors, when the bind is refused.
// Connection results are reported asynchronously on the Binding.
type Binder interface {
	Bind(descriptor ServiceDescriptor, binding *Binding) (bool, error)
	Unbind(binding *Binding) error
}

// Stub is the raw remote billing service. Every method may fail with an
// error wrapping errors.ErrRemoteDied when the remote process has died.
type Stub interface {
	GetSkuDetails(ctx context.Context, apiVersion int, packageName string, itemType valueobject.PurchaseType, skus []string) (*SkuDetailsResponse, error)
	GetPurchases(ctx context.Context, apiVersion int, packageName string, itemType valueobject.PurchaseType, continuationToken string) (*PurchasesResponse, error)
	GetBuyIntent(ctx context.Context, apiVersion int, packageName, sku string, itemType valueobject.PurchaseType, developerPayload string) (*BuyIntentResponse, error)
	ConsumePurchase(ctx context.Context, apiVersion int, packageName, purchaseToken string) (valueobject.ResponseCode, error)
}

// SkuDetailsResponse carries one JSON document per product
type SkuDetailsResponse struct {
	ResponseCode valueobject.ResponseCode
	DetailsList  []string
}

// PurchasesResponse carries owned purchases as parallel lists
type PurchasesResponse struct {
	ResponseCode      valueobject.ResponseCode
	ItemList          []string
	DataList          []string
	SignatureList     []string
	ContinuationToken string
}

// BuyIntentResponse carries the descriptor that launches the purchase UI
type BuyIntentResponse struct {
	ResponseCode valueobject.ResponseCode
	BuyIntent    *BuyIntent
}

// BuyIntent is an opaque purchase-flow descriptor issued by the service
type BuyIntent struct {
	ID           string
	ProductID    string
	PurchaseType valueobject.PurchaseType
}

// Launcher starts the external purchase UI. The outcome is delivered later
// to the registered ResultListener under the same request code.
type Launcher interface {
	LaunchForResult(intent BuyIntent, requestCode int) error
}

// ResultPayload is the data returned by the purchase UI
type ResultPayload struct {
	ResponseCode  valueobject.ResponseCode
	PurchaseData  string
	DataSignature string
	// PurchaseType is filled in from the outstanding request when empty
	PurchaseType valueobject.PurchaseType
}

// ResultListener receives external UI results
type ResultListener interface {
	OnActivityResult(requestCode, resultCode int, payload ResultPayload)
}

// ResultRegistry is where result listeners are registered with the platform
type ResultRegistry interface {
	AddResultListener(listener ResultListener)
	RemoveResultListener(listener ResultListener)
}

// ResultConverter turns a successful purchase result into a transaction
type ResultConverter interface {
	Decode(ctx context.Context, payload ResultPayload) (entity.Transaction, error)
}

// Scheduler runs task once after delay, off the caller's goroutine
type Scheduler interface {
	Schedule(task func(), delay time.Duration) error
}

// ConnectionListener is notified about connection outcomes
type ConnectionListener interface {
	Connected()
	Disconnected(err error)
}

// PurchaseRequestCallback receives exactly one outcome per purchase request
type PurchaseRequestCallback interface {
	PurchaseSuccess(tx entity.Transaction)
	PurchaseError(err error)
	PurchaseCanceled()
}

// Recorder observes billing activity
type Recorder interface {
	ConnectionState(state valueobject.ConnectionState)
	BindAttempt(ok bool)
	RemoteCall(op string, err error)
	PurchaseRetry()
	PurchaseResolved(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionState(valueobject.ConnectionState) {}
func (nopRecorder) BindAttempt(bool)                            {}
func (nopRecorder) RemoteCall(string, error)                    {}
func (nopRecorder) PurchaseRetry()                              {}
func (nopRecorder) PurchaseResolved(string)                     {}

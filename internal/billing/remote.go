package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// APIVersion is the billing API version sent on every remote call
const APIVersion = 3

// Remote operation names, used in errors, logs and metrics
const (
	OpGetSkuDetails   = "getSkuDetails"
	OpGetPurchases    = "getPurchases"
	OpGetBuyIntent    = "getBuyIntent"
	OpConsumePurchase = "consumePurchase"
)

// Remote is the handle through which every remote billing call is made.
// Calls require a connected ConnectionManager and classify failures as
// transient (endpoint died) or permanent.
type Remote struct {
	conn        *ConnectionManager
	packageName string
	logger      *zap.Logger
	recorder    Recorder
}

// NewRemote creates a remote handle bound to conn
func NewRemote(conn *ConnectionManager, packageName string, logger *zap.Logger, recorder Recorder) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Remote{
		conn:        conn,
		packageName: packageName,
		logger:      logger.With(zap.String("component", "billing-remote")),
		recorder:    recorder,
	}
}

// ProductDetails returns the raw product detail documents for skus
func (r *Remote) ProductDetails(ctx context.Context, itemType valueobject.PurchaseType, skus []string) ([]string, error) {
	stub, err := r.conn.connectedStub(OpGetSkuDetails)
	if err != nil {
		return nil, err
	}

	resp, err := stub.GetSkuDetails(ctx, APIVersion, r.packageName, itemType, skus)
	if err != nil {
		return nil, r.fail(OpGetSkuDetails, err)
	}
	if err := r.check(OpGetSkuDetails, resp.ResponseCode); err != nil {
		return nil, err
	}
	r.recorder.RemoteCall(OpGetSkuDetails, nil)
	return resp.DetailsList, nil
}

// Purchases returns one page of owned purchases of itemType
func (r *Remote) Purchases(ctx context.Context, itemType valueobject.PurchaseType, continuationToken string) (*PurchasesResponse, error) {
	stub, err := r.conn.connectedStub(OpGetPurchases)
	if err != nil {
		return nil, err
	}

	resp, err := stub.GetPurchases(ctx, APIVersion, r.packageName, itemType, continuationToken)
	if err != nil {
		return nil, r.fail(OpGetPurchases, err)
	}
	if err := r.check(OpGetPurchases, resp.ResponseCode); err != nil {
		return nil, err
	}
	if len(resp.DataList) != len(resp.SignatureList) {
		err := &domainErrors.PermanentRemoteError{
			Op:   OpGetPurchases,
			Code: resp.ResponseCode,
			Err:  fmt.Errorf("%d purchases but %d signatures", len(resp.DataList), len(resp.SignatureList)),
		}
		r.recorder.RemoteCall(OpGetPurchases, err)
		return nil, err
	}
	r.recorder.RemoteCall(OpGetPurchases, nil)
	return resp, nil
}

// BuyIntent requests the purchase-flow descriptor for sku
func (r *Remote) BuyIntent(ctx context.Context, sku string, itemType valueobject.PurchaseType, developerPayload string) (BuyIntent, error) {
	stub, err := r.conn.connectedStub(OpGetBuyIntent)
	if err != nil {
		return BuyIntent{}, err
	}

	resp, err := stub.GetBuyIntent(ctx, APIVersion, r.packageName, sku, itemType, developerPayload)
	if err != nil {
		return BuyIntent{}, r.fail(OpGetBuyIntent, err)
	}
	if err := r.check(OpGetBuyIntent, resp.ResponseCode); err != nil {
		return BuyIntent{}, err
	}
	if resp.BuyIntent == nil {
		err := &domainErrors.PermanentRemoteError{
			Op:   OpGetBuyIntent,
			Code: resp.ResponseCode,
			Err:  errors.New("response carries no buy intent"),
		}
		r.recorder.RemoteCall(OpGetBuyIntent, err)
		return BuyIntent{}, err
	}
	r.recorder.RemoteCall(OpGetBuyIntent, nil)
	return *resp.BuyIntent, nil
}

// Consume consumes the purchase identified by purchaseToken
func (r *Remote) Consume(ctx context.Context, purchaseToken string) error {
	stub, err := r.conn.connectedStub(OpConsumePurchase)
	if err != nil {
		return err
	}

	code, err := stub.ConsumePurchase(ctx, APIVersion, r.packageName, purchaseToken)
	if err != nil {
		return r.fail(OpConsumePurchase, err)
	}
	if err := r.check(OpConsumePurchase, code); err != nil {
		return err
	}
	r.recorder.RemoteCall(OpConsumePurchase, nil)
	return nil
}

func (r *Remote) fail(op string, err error) error {
	var classified error
	if errors.Is(err, domainErrors.ErrRemoteDied) {
		classified = &domainErrors.TransientRemoteError{Op: op, Err: err}
	} else {
		classified = &domainErrors.PermanentRemoteError{Op: op, Code: valueobject.ResponseError, Err: err}
	}
	r.logger.Warn("Remote call failed", zap.String("op", op), zap.Error(classified))
	r.recorder.RemoteCall(op, classified)
	return classified
}

func (r *Remote) check(op string, code valueobject.ResponseCode) error {
	if code.IsOK() {
		return nil
	}
	err := &domainErrors.PermanentRemoteError{Op: op, Code: code}
	r.recorder.RemoteCall(op, err)
	return err
}

package billing_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/billing/mocks"
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

const (
	testPackageName   = "com.badlogic.gdx.pay.android.test"
	testRequestCode   = 1002
	fullEditionSKU    = "com.badlogic.gdx.pay.full_edition"
	realOrderID       = "GPA.1234-5678-9012-34567"
	sandboxOrderID    = "transactionId.android.test.purchased"
	fullEditionToken  = "purchase-token-full-edition"
	sandboxOrderToken = "purchase-token-sandbox"
)

type fixture struct {
	binder    *mocks.MockBinder
	stub      *mocks.MockStub
	launcher  *mocks.MockLauncher
	converter *mocks.MockConverter
	scheduler *mocks.MockScheduler
	registry  *mocks.MockRegistry
	listener  *mocks.MockConnectionListener
	callback  *mocks.MockPurchaseCallback
	service   *billing.Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOptions(t, billing.PurchaseOptions{RequestCode: testRequestCode})
}

func newFixtureWithOptions(t *testing.T, purchaseOpts billing.PurchaseOptions) *fixture {
	f := &fixture{
		binder:    mocks.NewMockBinder(),
		stub:      mocks.NewMockStub(),
		launcher:  mocks.NewMockLauncher(),
		converter: mocks.NewMockConverter(),
		scheduler: mocks.NewMockScheduler(),
		registry:  mocks.NewMockRegistry(),
		listener:  mocks.NewMockConnectionListener(),
		callback:  mocks.NewMockPurchaseCallback(),
	}
	f.registry.On("AddResultListener", mock.Anything).Return()
	f.listener.On("Connected").Return()
	f.listener.On("Disconnected", mock.Anything).Return()
	f.callback.On("PurchaseSuccess", mock.Anything).Return()
	f.callback.On("PurchaseError", mock.Anything).Return()
	f.callback.On("PurchaseCanceled").Return()

	service, err := billing.NewService(billing.Options{
		PackageName: testPackageName,
		Purchase:    purchaseOpts,
	}, billing.Dependencies{
		Binder:    f.binder,
		Launcher:  f.launcher,
		Converter: f.converter,
		Scheduler: f.scheduler,
		Registry:  f.registry,
	})
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *fixture) whenBindReturn(ok bool) {
	f.binder.On("Bind", mock.Anything, mock.Anything).Return(ok, nil)
	f.binder.On("Unbind", mock.Anything).Return(nil)
}

func (f *fixture) bindAndFetchBinding(t *testing.T) *billing.Binding {
	f.whenBindReturn(true)
	f.service.Connect(f.listener)
	f.binder.AssertNumberOfCalls(t, "Bind", 1)
	return f.binder.LastBinding()
}

func (f *fixture) bindAndConnect(t *testing.T) *billing.Binding {
	binding := f.bindAndFetchBinding(t)
	binding.Connected(f.stub)
	return binding
}

func (f *fixture) whenBuyIntentReturn(productID string, resp *billing.BuyIntentResponse) *mock.Call {
	return f.stub.On("GetBuyIntent", mock.Anything, billing.APIVersion, testPackageName, productID,
		valueobject.PurchaseTypeInApp, billing.DefaultDeveloperPayload).Return(resp, nil)
}

func (f *fixture) whenBuyIntentFail(productID string, err error) *mock.Call {
	return f.stub.On("GetBuyIntent", mock.Anything, billing.APIVersion, testPackageName, productID,
		valueobject.PurchaseTypeInApp, billing.DefaultDeveloperPayload).Return(nil, err)
}

func (f *fixture) whenPurchasesReturn(inApp, subs *billing.PurchasesResponse) {
	f.stub.On("GetPurchases", mock.Anything, billing.APIVersion, testPackageName, valueobject.PurchaseTypeInApp, "").Return(inApp, nil)
	f.stub.On("GetPurchases", mock.Anything, billing.APIVersion, testPackageName, valueobject.PurchaseTypeSubscription, "").Return(subs, nil)
}

func (f *fixture) bindConnectAndStartPurchaseRequest(t *testing.T) {
	f.bindAndConnect(t)
	f.whenBuyIntentReturn(fullEditionSKU, buyIntentResponseOK())
	f.launcher.On("LaunchForResult", mock.Anything, testRequestCode).Return(nil)

	f.service.StartPurchaseRequest(context.Background(), fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)
	f.launcher.AssertNumberOfCalls(t, "LaunchForResult", 1)
}

func remoteDied() error {
	return fmt.Errorf("purchase service died: %w", domainErrors.ErrRemoteDied)
}

func buyIntentResponseOK() *billing.BuyIntentResponse {
	return &billing.BuyIntentResponse{
		ResponseCode: valueobject.ResponseOK,
		BuyIntent: &billing.BuyIntent{
			ID:           "buy-intent-1",
			ProductID:    fullEditionSKU,
			PurchaseType: valueobject.PurchaseTypeInApp,
		},
	}
}

func skuDetailsFullEdition() string {
	return `{"productId":"` + fullEditionSKU + `","type":"inapp","price":"€ 1,00",` +
		`"price_amount_micros":1000000,"price_currency_code":"EUR",` +
		`"title":"Full Edition","description":"Unlock all levels"}`
}

func skuDetailsResponseOKFullEdition() *billing.SkuDetailsResponse {
	return &billing.SkuDetailsResponse{
		ResponseCode: valueobject.ResponseOK,
		DetailsList:  []string{skuDetailsFullEdition()},
	}
}

func purchaseData(orderID, token string) string {
	return fmt.Sprintf(`{"orderId":%q,"packageName":%q,"productId":%q,"purchaseTime":1456737616000,`+
		`"purchaseState":0,"developerPayload":%q,"purchaseToken":%q}`,
		orderID, testPackageName, fullEditionSKU, billing.DefaultDeveloperPayload, token)
}

func purchasesResponse(entries ...string) *billing.PurchasesResponse {
	resp := &billing.PurchasesResponse{ResponseCode: valueobject.ResponseOK}
	for _, data := range entries {
		resp.ItemList = append(resp.ItemList, fullEditionSKU)
		resp.DataList = append(resp.DataList, data)
		resp.SignatureList = append(resp.SignatureList, "signature")
	}
	return resp
}

func purchasesResponseOneTransactionFullEdition() *billing.PurchasesResponse {
	return purchasesResponse(purchaseData(realOrderID, fullEditionToken))
}

func purchasesResponseOneTransactionFullEditionSandboxOrder() *billing.PurchasesResponse {
	return purchasesResponse(purchaseData(sandboxOrderID, sandboxOrderToken))
}

func purchasesResponseEmpty() *billing.PurchasesResponse {
	return purchasesResponse()
}

func transactionFullEdition() entity.Transaction {
	tx, err := entity.ParseTransaction(purchaseData(realOrderID, fullEditionToken), "signature", valueobject.PurchaseTypeInApp)
	if err != nil {
		panic(err)
	}
	return tx
}

func activityResultPurchaseSuccess() billing.ResultPayload {
	return billing.ResultPayload{
		ResponseCode:  valueobject.ResponseOK,
		PurchaseData:  purchaseData(realOrderID, fullEditionToken),
		DataSignature: "signature",
		PurchaseType:  valueobject.PurchaseTypeInApp,
	}
}

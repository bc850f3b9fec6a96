package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/billing/mocks"
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

func TestPurchaseOrchestrator(t *testing.T) {
	ctx := context.Background()

	t.Run("Buy intent OK launches the purchase flow", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentReturn(fullEditionSKU, buyIntentResponseOK())
		f.launcher.On("LaunchForResult", mock.Anything, testRequestCode).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)

		f.launcher.AssertCalled(t, "LaunchForResult", *buyIntentResponseOK().BuyIntent, testRequestCode)
		f.callback.AssertNotCalled(t, "PurchaseError", mock.Anything)
	})

	t.Run("Transient failure reconnects and schedules one retry", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied())
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)

		f.binder.AssertNumberOfCalls(t, "Unbind", 1)
		f.binder.AssertNumberOfCalls(t, "Bind", 2)
		f.scheduler.AssertNumberOfCalls(t, "Schedule", 1)
		f.scheduler.AssertCalled(t, "Schedule", mock.AnythingOfType("func()"), billing.DefaultRetryDelay)
	})

	t.Run("Retry before reconnect reports exactly one error", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied())
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)
		f.scheduler.RunScheduled()

		f.callback.AssertNumberOfCalls(t, "PurchaseError", 1)
		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			return errors.Is(err, domainErrors.ErrRemoteDied) && errors.Is(err, domainErrors.ErrNotConnected)
		}))
		f.binder.AssertNumberOfCalls(t, "Unbind", 1)
		f.binder.AssertNumberOfCalls(t, "Bind", 2)
		f.stub.AssertNumberOfCalls(t, "GetBuyIntent", 1)
	})

	t.Run("Retry after reconnect launches the purchase flow", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied()).Once()
		f.whenBuyIntentReturn(fullEditionSKU, buyIntentResponseOK())
		f.launcher.On("LaunchForResult", mock.Anything, testRequestCode).Return(nil)
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)
		f.binder.LastBinding().Connected(f.stub)
		f.scheduler.RunScheduled()

		f.launcher.AssertNumberOfCalls(t, "LaunchForResult", 1)
		f.callback.AssertNotCalled(t, "PurchaseError", mock.Anything)

		f.service.OnActivityResult(testRequestCode, billing.ResultCanceled, billing.ResultPayload{})
		f.callback.AssertNumberOfCalls(t, "PurchaseCanceled", 1)
	})

	t.Run("Second transient failure does not reconnect again", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied())
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)
		f.binder.LastBinding().Connected(f.stub)
		f.scheduler.RunScheduled()

		f.stub.AssertNumberOfCalls(t, "GetBuyIntent", 2)
		f.binder.AssertNumberOfCalls(t, "Bind", 2)
		f.scheduler.AssertNumberOfCalls(t, "Schedule", 1)
		f.callback.AssertNumberOfCalls(t, "PurchaseError", 1)
	})

	t.Run("Retry after manual disconnect is dropped", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied())
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)
		f.service.Disconnect()
		f.scheduler.RunScheduled()

		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			return errors.Is(err, domainErrors.ErrRetryAbandoned)
		}))
		f.callback.AssertNumberOfCalls(t, "PurchaseError", 1)
		f.stub.AssertNumberOfCalls(t, "GetBuyIntent", 1)
	})

	t.Run("Disconnect during the failing call is not undone by the retry", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied()).Run(func(mock.Arguments) {
			f.service.Disconnect()
		})
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)

		f.binder.AssertNumberOfCalls(t, "Bind", 1)
		f.binder.AssertNumberOfCalls(t, "Unbind", 1)
		assert.False(t, f.service.IsListeningForConnections())
		assert.Equal(t, valueobject.StateDisconnected, f.service.State())
		f.callback.AssertNotCalled(t, "PurchaseError", mock.Anything)

		f.scheduler.RunScheduled()

		f.callback.AssertNumberOfCalls(t, "PurchaseError", 1)
		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			return errors.Is(err, domainErrors.ErrRetryAbandoned) && errors.Is(err, domainErrors.ErrRemoteDied)
		}))
		f.stub.AssertNumberOfCalls(t, "GetBuyIntent", 1)
		f.binder.AssertNumberOfCalls(t, "Bind", 1)
	})

	t.Run("Retry after manual disconnect is attempted when configured", func(t *testing.T) {
		f := newFixtureWithOptions(t, billing.PurchaseOptions{
			RequestCode:      testRequestCode,
			StaleRetryPolicy: billing.StaleRetryAttempt,
		})
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied())
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(nil)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)
		f.service.Disconnect()
		f.scheduler.RunScheduled()

		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			return domainErrors.IsConnectionError(err) && !errors.Is(err, domainErrors.ErrRetryAbandoned)
		}))
		f.callback.AssertNumberOfCalls(t, "PurchaseError", 1)
	})

	t.Run("Scheduler failure resolves the request", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentFail(fullEditionSKU, remoteDied())
		f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(errors.New("redis unavailable"))

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)

		f.callback.AssertNumberOfCalls(t, "PurchaseError", 1)
	})

	t.Run("Non-OK buy intent fails without retry", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentReturn(fullEditionSKU, &billing.BuyIntentResponse{ResponseCode: valueobject.ResponseItemAlreadyOwned})

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)

		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			code, ok := domainErrors.ResponseCodeOf(err)
			return ok && code == valueobject.ResponseItemAlreadyOwned
		}))
		f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
		f.binder.AssertNumberOfCalls(t, "Bind", 1)
	})

	t.Run("Purchase while disconnected fails with connection error", func(t *testing.T) {
		f := newFixture(t)

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)

		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(domainErrors.IsConnectionError))
		f.stub.AssertNotCalled(t, "GetBuyIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Launch failure reports purchase error", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentReturn(fullEditionSKU, buyIntentResponseOK())
		f.launcher.On("LaunchForResult", mock.Anything, testRequestCode).Return(errors.New("Intent cancelled"))

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, f.callback)

		f.launcher.AssertCalled(t, "LaunchForResult", mock.Anything, testRequestCode)
		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			var launchErr *domainErrors.LaunchError
			return errors.As(err, &launchErr)
		}))
	})

	t.Run("Result OK delivers the converted transaction", func(t *testing.T) {
		f := newFixture(t)
		f.bindConnectAndStartPurchaseRequest(t)
		f.converter.On("Decode", mock.Anything, activityResultPurchaseSuccess()).Return(transactionFullEdition(), nil)

		f.service.OnActivityResult(testRequestCode, billing.ResultOK, activityResultPurchaseSuccess())

		f.callback.AssertCalled(t, "PurchaseSuccess", mock.MatchedBy(func(tx entity.Transaction) bool {
			return tx.Identifier == fullEditionSKU && tx.OrderID == realOrderID
		}))
	})

	t.Run("Conversion failure reports purchase error", func(t *testing.T) {
		f := newFixture(t)
		f.bindConnectAndStartPurchaseRequest(t)
		f.converter.On("Decode", mock.Anything, mock.Anything).Return(entity.Transaction{}, errors.New("Exception parsing Json"))

		f.service.OnActivityResult(testRequestCode, billing.ResultOK, activityResultPurchaseSuccess())

		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			var decodeErr *domainErrors.DecodeError
			return errors.As(err, &decodeErr)
		}))
		f.callback.AssertNotCalled(t, "PurchaseSuccess", mock.Anything)
	})

	t.Run("Error result code reports purchase error without conversion", func(t *testing.T) {
		f := newFixture(t)
		f.bindConnectAndStartPurchaseRequest(t)

		f.service.OnActivityResult(testRequestCode, int(valueobject.ResponseBillingUnavailable), activityResultPurchaseSuccess())

		f.callback.AssertCalled(t, "PurchaseError", mock.MatchedBy(func(err error) bool {
			return errors.Is(err, domainErrors.ErrPurchaseFailed)
		}))
		f.converter.AssertNotCalled(t, "Decode", mock.Anything, mock.Anything)
	})

	t.Run("Canceled result reports cancellation without conversion", func(t *testing.T) {
		f := newFixture(t)
		f.bindConnectAndStartPurchaseRequest(t)

		f.service.OnActivityResult(testRequestCode, billing.ResultCanceled, billing.ResultPayload{})

		f.callback.AssertNumberOfCalls(t, "PurchaseCanceled", 1)
		f.callback.AssertNotCalled(t, "PurchaseError", mock.Anything)
		f.converter.AssertNotCalled(t, "Decode", mock.Anything, mock.Anything)
	})

	t.Run("Only the first result resolves the request", func(t *testing.T) {
		f := newFixture(t)
		f.bindConnectAndStartPurchaseRequest(t)

		f.service.OnActivityResult(testRequestCode, billing.ResultCanceled, billing.ResultPayload{})
		f.service.OnActivityResult(testRequestCode, billing.ResultCanceled, billing.ResultPayload{})
		f.service.OnActivityResult(testRequestCode, int(valueobject.ResponseError), billing.ResultPayload{})

		f.callback.AssertNumberOfCalls(t, "PurchaseCanceled", 1)
		f.callback.AssertNotCalled(t, "PurchaseError", mock.Anything)
	})

	t.Run("Results for other request codes are ignored", func(t *testing.T) {
		f := newFixture(t)
		f.bindConnectAndStartPurchaseRequest(t)

		f.service.OnActivityResult(testRequestCode+1, billing.ResultCanceled, billing.ResultPayload{})

		f.callback.AssertNotCalled(t, "PurchaseCanceled")
	})

	t.Run("Second purchase while one is pending is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.bindConnectAndStartPurchaseRequest(t)
		second := mocks.NewMockPurchaseCallback()
		second.On("PurchaseError", mock.Anything).Return()

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, second)

		second.AssertCalled(t, "PurchaseError", domainErrors.ErrPurchaseInProgress)
		f.launcher.AssertNumberOfCalls(t, "LaunchForResult", 1)
		f.callback.AssertNotCalled(t, "PurchaseError", mock.Anything)
	})

	t.Run("Channel callback receives the single outcome", func(t *testing.T) {
		f := newFixture(t)
		f.bindAndConnect(t)
		f.whenBuyIntentReturn(fullEditionSKU, buyIntentResponseOK())
		f.launcher.On("LaunchForResult", mock.Anything, testRequestCode).Return(nil)
		outcome := billing.NewChannelCallback()

		f.service.StartPurchaseRequest(ctx, fullEditionSKU, valueobject.PurchaseTypeInApp, outcome)
		f.service.OnActivityResult(testRequestCode, billing.ResultCanceled, billing.ResultPayload{})

		result := <-outcome
		assert.True(t, result.Canceled)
		assert.NoError(t, result.Err)
	})
}

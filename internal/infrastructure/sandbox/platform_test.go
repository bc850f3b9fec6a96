package sandbox_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Berobasket/gdx-pay/internal/billing"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/external/iap"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/sandbox"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/scheduler"
)

const (
	packageName = "com.badlogic.gdx.pay.android.test"
	fullEdition = "com.badlogic.gdx.pay.full_edition"
	coins       = "com.badlogic.gdx.pay.coins_100"
	gold        = "com.badlogic.gdx.pay.gold_monthly"
	waitFor     = 2 * time.Second
	tick        = 5 * time.Millisecond
)

var (
	_ billing.Binder         = (*sandbox.Platform)(nil)
	_ billing.Launcher       = (*sandbox.Platform)(nil)
	_ billing.ResultRegistry = (*sandbox.Platform)(nil)
	_ billing.Stub           = (*sandbox.Stub)(nil)
)

type harness struct {
	platform *sandbox.Platform
	service  *billing.Service
}

type recordingListener struct {
	disconnected chan error
}

func (l *recordingListener) Connected() {}

func (l *recordingListener) Disconnected(err error) {
	l.disconnected <- err
}

func newHarness(t *testing.T, opts sandbox.Options) *harness {
	opts.PackageName = packageName
	platform, err := sandbox.NewPlatform(opts, nil)
	require.NoError(t, err)
	publicKey, err := platform.PublicKeyBase64()
	require.NoError(t, err)

	timers := scheduler.NewTimerScheduler(nil)
	t.Cleanup(timers.Stop)

	service, err := billing.NewService(billing.Options{
		PackageName: packageName,
		Purchase:    billing.PurchaseOptions{RetryDelay: 50 * time.Millisecond},
	}, billing.Dependencies{
		Binder:    platform,
		Launcher:  platform,
		Converter: iap.NewConverter(publicKey, nil, nil),
		Scheduler: timers,
		Registry:  platform,
	})
	require.NoError(t, err)
	t.Cleanup(service.Dispose)

	return &harness{platform: platform, service: service}
}

func (h *harness) connect(t *testing.T) {
	h.service.Connect(nil)
	require.Eventually(t, h.service.IsConnected, waitFor, tick)
}

func (h *harness) buy(t *testing.T, productID string, purchaseType valueobject.PurchaseType) billing.PurchaseOutcome {
	outcome := billing.NewChannelCallback()
	h.service.StartPurchaseRequest(context.Background(), productID, purchaseType, outcome)
	select {
	case result := <-outcome:
		return result
	case <-time.After(waitFor):
		t.Fatal("purchase did not resolve")
		return billing.PurchaseOutcome{}
	}
}

func TestPlatformConnection(t *testing.T) {
	t.Run("Connect and disconnect manage one registration", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})

		h.connect(t)
		assert.Equal(t, 1, h.platform.Bound())

		h.service.Disconnect()
		assert.Equal(t, 0, h.platform.Bound())
		assert.False(t, h.service.IsConnected())
	})

	t.Run("Refused bind is reported to the listener", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		h.platform.RefuseBind(true)
		listener := &recordingListener{disconnected: make(chan error, 1)}

		h.service.Connect(listener)

		err := <-listener.disconnected
		assert.ErrorIs(t, err, domainErrors.ErrBindRefused)
		assert.False(t, h.service.IsListeningForConnections())
	})

	t.Run("Killed service disconnects and a restart reconnects", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		h.connect(t)

		h.platform.Kill()
		assert.False(t, h.service.IsConnected())
		assert.True(t, h.service.IsListeningForConnections())

		h.platform.Revive()
		require.Eventually(t, h.service.IsConnected, waitFor, tick)
	})

	t.Run("Dispose removes the result listener", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		assert.Equal(t, 1, h.platform.Listeners())

		h.service.Dispose()

		assert.Equal(t, 0, h.platform.Listeners())
	})
}

func TestPlatformQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("Product details come from the catalog", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		h.connect(t)

		details, err := h.service.GetProductsDetails(ctx, []string{fullEdition, coins, gold, "unknown"}, valueobject.PurchaseTypeInApp)

		require.NoError(t, err)
		assert.Len(t, details, 2)
		assert.True(t, decimal.RequireFromString("1").Equal(details[fullEdition].PriceAmount))
		assert.Equal(t, "1.00 EUR", details[fullEdition].Price)
	})

	t.Run("Purchases are paged", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{PageSize: 1})
		_, err := h.platform.Grant(fullEdition, "GPA.1111")
		require.NoError(t, err)
		_, err = h.platform.Grant(coins, "GPA.2222")
		require.NoError(t, err)
		_, err = h.platform.Grant(gold, "GPA.3333")
		require.NoError(t, err)
		h.connect(t)

		transactions, err := h.service.GetPurchases(ctx)

		require.NoError(t, err)
		require.Len(t, transactions, 3)
		assert.Equal(t, valueobject.PurchaseTypeSubscription, transactions[2].PurchaseType)
	})

	t.Run("Cancel test purchases keeps real orders", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		_, err := h.platform.Grant(fullEdition, "GPA.1234-5678-9012-34567")
		require.NoError(t, err)
		h.connect(t)
		result := h.buy(t, coins, valueobject.PurchaseTypeInApp)
		require.NoError(t, result.Err)
		require.Equal(t, 2, h.platform.Owned())

		require.NoError(t, h.service.CancelTestPurchases(ctx))

		assert.Equal(t, 1, h.platform.Owned())
		transactions, err := h.service.GetPurchases(ctx)
		require.NoError(t, err)
		require.Len(t, transactions, 1)
		assert.Equal(t, "GPA.1234-5678-9012-34567", transactions[0].OrderID)
	})
}

func TestPlatformPurchases(t *testing.T) {
	t.Run("Approved purchase yields a signature-verified transaction", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		h.connect(t)

		result := h.buy(t, fullEdition, valueobject.PurchaseTypeInApp)

		require.NoError(t, result.Err)
		assert.Equal(t, fullEdition, result.Transaction.Identifier)
		assert.True(t, strings.HasPrefix(result.Transaction.OrderID, sandbox.TestOrderPrefix))
		assert.Equal(t, billing.DefaultDeveloperPayload, result.Transaction.DeveloperPayload)
		assert.True(t, h.service.IsTestPurchase(result.Transaction))
	})

	t.Run("Subscription purchase carries its type", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		h.connect(t)

		result := h.buy(t, gold, valueobject.PurchaseTypeSubscription)

		require.NoError(t, result.Err)
		assert.Equal(t, valueobject.PurchaseTypeSubscription, result.Transaction.PurchaseType)
	})

	t.Run("Canceled purchase reports cancellation", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		require.NoError(t, h.platform.SetPurchaseMode(sandbox.PurchaseCancel))
		h.connect(t)

		result := h.buy(t, fullEdition, valueobject.PurchaseTypeInApp)

		assert.True(t, result.Canceled)
		assert.Equal(t, 0, h.platform.Owned())
	})

	t.Run("Failed purchase reports an error", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		require.NoError(t, h.platform.SetPurchaseMode(sandbox.PurchaseFail))
		h.connect(t)

		result := h.buy(t, fullEdition, valueobject.PurchaseTypeInApp)

		assert.ErrorIs(t, result.Err, domainErrors.ErrPurchaseFailed)
	})

	t.Run("Owned product cannot be bought again", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		_, err := h.platform.Grant(fullEdition, "GPA.1234")
		require.NoError(t, err)
		h.connect(t)

		result := h.buy(t, fullEdition, valueobject.PurchaseTypeInApp)

		code, ok := domainErrors.ResponseCodeOf(result.Err)
		require.True(t, ok)
		assert.Equal(t, valueobject.ResponseItemAlreadyOwned, code)
	})

	t.Run("Purchase survives a crashed service through the retry", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		h.connect(t)
		h.platform.Crash()

		outcome := billing.NewChannelCallback()
		h.service.StartPurchaseRequest(context.Background(), fullEdition, valueobject.PurchaseTypeInApp, outcome)
		h.platform.Revive()

		select {
		case result := <-outcome:
			require.NoError(t, result.Err)
			assert.Equal(t, fullEdition, result.Transaction.Identifier)
		case <-time.After(waitFor):
			t.Fatal("purchase did not resolve")
		}
		assert.Equal(t, 1, h.platform.Bound())
	})

	t.Run("Purchase fails when the service stays down", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})
		h.connect(t)
		h.platform.Crash()

		result := h.buy(t, fullEdition, valueobject.PurchaseTypeInApp)

		assert.ErrorIs(t, result.Err, domainErrors.ErrRemoteDied)
	})

	t.Run("Unknown purchase mode is rejected", func(t *testing.T) {
		h := newHarness(t, sandbox.Options{})

		assert.Error(t, h.platform.SetPurchaseMode("maybe"))
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Run("Reads products and defaults their type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"productId":"gems","title":"Gems","price_amount":"2.49","price_currency_code":"USD"},
			{"productId":"vip","type":"subs","price_amount":9.99,"price_currency_code":"USD","subscriptionPeriod":"P1Y"}
		]`), 0o600))

		products, err := sandbox.LoadCatalog(path)

		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, valueobject.PurchaseTypeInApp, products[0].Type)
		assert.Equal(t, "2.49", products[0].PriceAmount.String())
		assert.Equal(t, valueobject.PurchaseTypeSubscription, products[1].Type)
	})

	t.Run("Rejects unknown types", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"productId":"x","type":"bundle"}]`), 0o600))

		_, err := sandbox.LoadCatalog(path)

		assert.ErrorIs(t, err, valueobject.ErrInvalidPurchaseType)
	})

	t.Run("Rejects prices without a currency", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"productId":"x","price_amount":"1.00"}]`), 0o600))

		_, err := sandbox.LoadCatalog(path)

		assert.ErrorIs(t, err, valueobject.ErrInvalidCurrency)
	})
}

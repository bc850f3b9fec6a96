package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// MockBinder is a mock implementation of billing.Binder
type MockBinder struct {
	mock.Mock
}

// NewMockBinder creates a new mock binder
func NewMockBinder() *MockBinder {
	return &MockBinder{}
}

func (m *MockBinder) Bind(descriptor billing.ServiceDescriptor, binding *billing.Binding) (bool, error) {
	args := m.Called(descriptor, binding)
	return args.Bool(0), args.Error(1)
}

func (m *MockBinder) Unbind(binding *billing.Binding) error {
	args := m.Called(binding)
	return args.Error(0)
}

// LastBinding returns the binding passed to the most recent Bind call
func (m *MockBinder) LastBinding() *billing.Binding {
	var last *billing.Binding
	for _, call := range m.Calls {
		if call.Method == "Bind" {
			last = call.Arguments.Get(1).(*billing.Binding)
		}
	}
	return last
}

// MockStub is a mock implementation of billing.Stub
type MockStub struct {
	mock.Mock
}

// NewMockStub creates a new mock stub
func NewMockStub() *MockStub {
	return &MockStub{}
}

func (m *MockStub) GetSkuDetails(ctx context.Context, apiVersion int, packageName string, itemType valueobject.PurchaseType, skus []string) (*billing.SkuDetailsResponse, error) {
	args := m.Called(ctx, apiVersion, packageName, itemType, skus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.SkuDetailsResponse), args.Error(1)
}

func (m *MockStub) GetPurchases(ctx context.Context, apiVersion int, packageName string, itemType valueobject.PurchaseType, continuationToken string) (*billing.PurchasesResponse, error) {
	args := m.Called(ctx, apiVersion, packageName, itemType, continuationToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PurchasesResponse), args.Error(1)
}

func (m *MockStub) GetBuyIntent(ctx context.Context, apiVersion int, packageName, sku string, itemType valueobject.PurchaseType, developerPayload string) (*billing.BuyIntentResponse, error) {
	args := m.Called(ctx, apiVersion, packageName, sku, itemType, developerPayload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BuyIntentResponse), args.Error(1)
}

func (m *MockStub) ConsumePurchase(ctx context.Context, apiVersion int, packageName, purchaseToken string) (valueobject.ResponseCode, error) {
	args := m.Called(ctx, apiVersion, packageName, purchaseToken)
	return args.Get(0).(valueobject.ResponseCode), args.Error(1)
}

// MockLauncher is a mock implementation of billing.Launcher
type MockLauncher struct {
	mock.Mock
}

// NewMockLauncher creates a new mock launcher
func NewMockLauncher() *MockLauncher {
	return &MockLauncher{}
}

func (m *MockLauncher) LaunchForResult(intent billing.BuyIntent, requestCode int) error {
	args := m.Called(intent, requestCode)
	return args.Error(0)
}

// MockConverter is a mock implementation of billing.ResultConverter
type MockConverter struct {
	mock.Mock
}

// NewMockConverter creates a new mock converter
func NewMockConverter() *MockConverter {
	return &MockConverter{}
}

func (m *MockConverter) Decode(ctx context.Context, payload billing.ResultPayload) (entity.Transaction, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(entity.Transaction), args.Error(1)
}

// MockScheduler is a mock implementation of billing.Scheduler
type MockScheduler struct {
	mock.Mock
}

// NewMockScheduler creates a new mock scheduler
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

func (m *MockScheduler) Schedule(task func(), delay time.Duration) error {
	args := m.Called(task, delay)
	return args.Error(0)
}

// RunScheduled runs every task handed to Schedule, in order
func (m *MockScheduler) RunScheduled() {
	calls := append([]mock.Call(nil), m.Calls...)
	for _, call := range calls {
		if call.Method == "Schedule" {
			call.Arguments.Get(0).(func())()
		}
	}
}

// MockRegistry is a mock implementation of billing.ResultRegistry
type MockRegistry struct {
	mock.Mock
}

// NewMockRegistry creates a new mock registry
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{}
}

func (m *MockRegistry) AddResultListener(listener billing.ResultListener) {
	m.Called(listener)
}

func (m *MockRegistry) RemoveResultListener(listener billing.ResultListener) {
	m.Called(listener)
}

// MockConnectionListener is a mock implementation of billing.ConnectionListener
type MockConnectionListener struct {
	mock.Mock
}

// NewMockConnectionListener creates a new mock connection listener
func NewMockConnectionListener() *MockConnectionListener {
	return &MockConnectionListener{}
}

func (m *MockConnectionListener) Connected() {
	m.Called()
}

func (m *MockConnectionListener) Disconnected(err error) {
	m.Called(err)
}

// MockPurchaseCallback is a mock implementation of billing.PurchaseRequestCallback
type MockPurchaseCallback struct {
	mock.Mock
}

// NewMockPurchaseCallback creates a new mock purchase callback
func NewMockPurchaseCallback() *MockPurchaseCallback {
	return &MockPurchaseCallback{}
}

func (m *MockPurchaseCallback) PurchaseSuccess(tx entity.Transaction) {
	m.Called(tx)
}

func (m *MockPurchaseCallback) PurchaseError(err error) {
	m.Called(err)
}

func (m *MockPurchaseCallback) PurchaseCanceled() {
	m.Called()
}

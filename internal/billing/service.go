package billing

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// Play Store billing service identity
const (
	BillingServiceAction  = "com.android.vending.billing.InAppBillingService.BIND"
	BillingServicePackage = "com.android.vending"
)

const (
	// DefaultTestOrderPattern matches empty order ids and Play's reserved test orders
	DefaultTestOrderPattern = `^$|^transactionId\.android\.test`
	DefaultMaxPurchasePages = 10
)

// Options configures a Service
type Options struct {
	PackageName      string
	Descriptor       ServiceDescriptor
	Purchase         PurchaseOptions
	TestOrderPattern string
	MaxPurchasePages int
}

// Dependencies are the platform collaborators a Service is built on
type Dependencies struct {
	Binder    Binder
	Launcher  Launcher
	Converter ResultConverter
	Scheduler Scheduler
	Registry  ResultRegistry
	Logger    *zap.Logger
	Recorder  Recorder
	Now       func() time.Time
}

// Service is the billing client: connection lifecycle, purchases and queries
type Service struct {
	conn      *ConnectionManager
	remote    *Remote
	purchases *PurchaseOrchestrator
	registry  ResultRegistry
	testOrder *regexp.Regexp
	maxPages  int
	now       func() time.Time
	logger    *zap.Logger

	disposeOnce sync.Once
}

// NewService wires a Service and registers it for purchase UI results
func NewService(opts Options, deps Dependencies) (*Service, error) {
	if opts.PackageName == "" {
		return nil, fmt.Errorf("package name is required")
	}
	if deps.Binder == nil || deps.Launcher == nil || deps.Converter == nil || deps.Scheduler == nil || deps.Registry == nil {
		return nil, fmt.Errorf("binder, launcher, converter, scheduler and registry are required")
	}
	if opts.Descriptor == (ServiceDescriptor{}) {
		opts.Descriptor = ServiceDescriptor{Action: BillingServiceAction, Package: BillingServicePackage}
	}
	if opts.TestOrderPattern == "" {
		opts.TestOrderPattern = DefaultTestOrderPattern
	}
	if opts.MaxPurchasePages <= 0 {
		opts.MaxPurchasePages = DefaultMaxPurchasePages
	}
	testOrder, err := regexp.Compile(opts.TestOrderPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid test order pattern: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	conn := NewConnectionManager(deps.Binder, opts.Descriptor, logger, recorder)
	remote := NewRemote(conn, opts.PackageName, logger, recorder)
	purchases := NewPurchaseOrchestrator(conn, remote, deps.Launcher, deps.Converter, deps.Scheduler, opts.Purchase, logger, recorder)

	s := &Service{
		conn:      conn,
		remote:    remote,
		purchases: purchases,
		registry:  deps.Registry,
		testOrder: testOrder,
		maxPages:  opts.MaxPurchasePages,
		now:       now,
		logger:    logger.With(zap.String("component", "billing-service")),
	}
	deps.Registry.AddResultListener(s)
	return s, nil
}

// Connect binds to the billing service; see ConnectionManager.Connect
func (s *Service) Connect(listener ConnectionListener) {
	s.conn.Connect(listener)
}

// Disconnect unbinds from the billing service; it never fails
func (s *Service) Disconnect() {
	s.conn.Disconnect()
}

// IsConnected reports whether remote calls can be issued
func (s *Service) IsConnected() bool {
	return s.conn.IsConnected()
}

// IsListeningForConnections reports whether a platform registration exists
func (s *Service) IsListeningForConnections() bool {
	return s.conn.IsListeningForConnections()
}

// State returns the connection state
func (s *Service) State() valueobject.ConnectionState {
	return s.conn.State()
}

// StartPurchaseRequest starts a purchase; see PurchaseOrchestrator
func (s *Service) StartPurchaseRequest(ctx context.Context, productID string, purchaseType valueobject.PurchaseType, callback PurchaseRequestCallback) {
	s.purchases.StartPurchaseRequest(ctx, productID, purchaseType, callback)
}

// OnActivityResult implements ResultListener
func (s *Service) OnActivityResult(requestCode, resultCode int, payload ResultPayload) {
	s.purchases.OnActivityResult(requestCode, resultCode, payload)
}

// DeltaInSeconds returns whole seconds between two millisecond timestamps
func (s *Service) DeltaInSeconds(laterMillis, earlierMillis int64) int {
	return DeltaInSeconds(laterMillis, earlierMillis)
}

// DeltaInSecondsSince returns whole seconds elapsed since earlierMillis
func (s *Service) DeltaInSecondsSince(earlierMillis int64) int {
	return DeltaInSeconds(s.now().UnixMilli(), earlierMillis)
}

// Dispose removes the result listener registration and disconnects.
// Calling it more than once has no further effect.
func (s *Service) Dispose() {
	s.disposeOnce.Do(func() {
		s.registry.RemoveResultListener(s)
		s.conn.Disconnect()
		s.logger.Info("Billing service disposed")
	})
}

package sandbox

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// ErrNotRegistered is returned when unbinding a binding the platform does not hold
var ErrNotRegistered = errors.New("service not registered")

// PurchaseMode decides how the emulated purchase UI answers
type PurchaseMode string

const (
	// PurchaseApprove completes the purchase and returns signed data
	PurchaseApprove PurchaseMode = "approve"
	// PurchaseCancel behaves as if the user backed out
	PurchaseCancel PurchaseMode = "cancel"
	// PurchaseFail returns a result code the client does not expect
	PurchaseFail PurchaseMode = "fail"
)

// resultFirstUser is the first result code available to applications
const resultFirstUser = 1

// Options configures a Platform
type Options struct {
	PackageName string
	Catalog     []Product
	BindDelay   time.Duration
	UIDelay     time.Duration
	PageSize    int
}

type pendingIntent struct {
	intent           billing.BuyIntent
	developerPayload string
}

// Platform emulates the Play Store side of in-app billing in process:
// service binding, the remote billing stub, the purchase UI and the
// activity result dispatch.
type Platform struct {
	packageName string
	descriptor  billing.ServiceDescriptor
	catalog     map[string]Product
	order       []string
	bindDelay   time.Duration
	uiDelay     time.Duration
	pageSize    int
	signer      *Signer
	logger      *zap.Logger
	stub        *Stub

	mu         sync.Mutex
	alive      bool
	refuseBind bool
	mode       PurchaseMode
	bindings   map[*billing.Binding]struct{}
	listeners  []billing.ResultListener
	intents    map[string]pendingIntent
	owned      []ownedPurchase
}

// NewPlatform creates a running sandbox with its own signing key
func NewPlatform(opts Options, logger *zap.Logger) (*Platform, error) {
	signer, err := NewSigner()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}

	p := &Platform{
		packageName: opts.PackageName,
		descriptor: billing.ServiceDescriptor{
			Action:  billing.BillingServiceAction,
			Package: billing.BillingServicePackage,
		},
		catalog:   make(map[string]Product, len(opts.Catalog)),
		bindDelay: opts.BindDelay,
		uiDelay:   opts.UIDelay,
		pageSize:  opts.PageSize,
		signer:    signer,
		logger:    logger.With(zap.String("component", "billing-sandbox")),
		alive:     true,
		mode:      PurchaseApprove,
		bindings:  make(map[*billing.Binding]struct{}),
		intents:   make(map[string]pendingIntent),
	}
	for _, product := range opts.Catalog {
		if _, dup := p.catalog[product.ID]; !dup {
			p.order = append(p.order, product.ID)
		}
		p.catalog[product.ID] = product
	}
	p.stub = &Stub{platform: p}
	return p, nil
}

// PublicKeyBase64 returns the key purchase signatures verify against
func (p *Platform) PublicKeyBase64() (string, error) {
	return p.signer.PublicKeyBase64()
}

// Stub returns the remote billing stub handed to connected bindings
func (p *Platform) Stub() *Stub {
	return p.stub
}

// Bind registers binding and reports Connected on it after the bind delay
func (p *Platform) Bind(descriptor billing.ServiceDescriptor, binding *billing.Binding) (bool, error) {
	p.mu.Lock()
	if descriptor != p.descriptor {
		p.mu.Unlock()
		p.logger.Warn("Bind refused for unknown service",
			zap.String("action", descriptor.Action),
			zap.String("package", descriptor.Package),
		)
		return false, nil
	}
	if p.refuseBind {
		p.mu.Unlock()
		return false, nil
	}
	p.bindings[binding] = struct{}{}
	p.mu.Unlock()

	p.logger.Debug("Binding registered", zap.String("binding_id", binding.ID()))
	time.AfterFunc(p.bindDelay, func() { p.deliverConnected(binding) })
	return true, nil
}

// Unbind drops the registration of binding
func (p *Platform) Unbind(binding *billing.Binding) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.bindings[binding]; !ok {
		return ErrNotRegistered
	}
	delete(p.bindings, binding)
	return nil
}

// Bound returns the number of live registrations
func (p *Platform) Bound() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bindings)
}

// RefuseBind makes subsequent Bind calls return false
func (p *Platform) RefuseBind(refuse bool) {
	p.mu.Lock()
	p.refuseBind = refuse
	p.mu.Unlock()
}

// Kill stops the billing service. Registered bindings receive
// Disconnected and every stub call fails as a died remote.
func (p *Platform) Kill() {
	for _, binding := range p.stop() {
		binding.Disconnected()
	}
}

// Crash stops the billing service without telling registered bindings,
// so connected clients only notice on their next remote call.
func (p *Platform) Crash() {
	p.stop()
}

func (p *Platform) stop() []*billing.Binding {
	p.mu.Lock()
	p.alive = false
	bindings := p.snapshotBindingsLocked()
	p.mu.Unlock()

	p.logger.Info("Billing service stopped", zap.Int("bindings", len(bindings)))
	return bindings
}

// Revive restarts the billing service and reconnects registered bindings
func (p *Platform) Revive() {
	p.mu.Lock()
	p.alive = true
	bindings := p.snapshotBindingsLocked()
	p.mu.Unlock()

	p.logger.Info("Billing service restarted", zap.Int("bindings", len(bindings)))
	for _, binding := range bindings {
		time.AfterFunc(p.bindDelay, func() { p.deliverConnected(binding) })
	}
}

// AddResultListener implements billing.ResultRegistry
func (p *Platform) AddResultListener(listener billing.ResultListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, listener)
	p.mu.Unlock()
}

// RemoveResultListener implements billing.ResultRegistry
func (p *Platform) RemoveResultListener(listener billing.ResultListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, l := range p.listeners {
		if l == listener {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns the number of registered result listeners
func (p *Platform) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *Platform) deliverConnected(binding *billing.Binding) {
	p.mu.Lock()
	_, registered := p.bindings[binding]
	alive := p.alive
	p.mu.Unlock()

	if registered && alive {
		binding.Connected(p.stub)
	}
}

func (p *Platform) deliverResult(requestCode, resultCode int, payload billing.ResultPayload) {
	p.mu.Lock()
	listeners := append([]billing.ResultListener(nil), p.listeners...)
	p.mu.Unlock()

	for _, listener := range listeners {
		listener.OnActivityResult(requestCode, resultCode, payload)
	}
}

func (p *Platform) snapshotBindingsLocked() []*billing.Binding {
	bindings := make([]*billing.Binding, 0, len(p.bindings))
	for binding := range p.bindings {
		bindings = append(bindings, binding)
	}
	return bindings
}

func (p *Platform) isAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *Platform) product(id string, itemType valueobject.PurchaseType) (Product, bool) {
	product, ok := p.catalog[id]
	if !ok || product.Type != itemType {
		return Product{}, false
	}
	return product, true
}

package billing

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

type bindingEventKind int

const (
	eventConnected bindingEventKind = iota
	eventDisconnected
)

type bindingEvent struct {
	kind    bindingEventKind
	binding *Binding
	stub    Stub
}

// Binding is the token handed to the platform on every bind request.
// The platform reports connection changes through it.
type Binding struct {
	id      string
	manager *ConnectionManager
}

// ID returns the binding's unique id
func (b *Binding) ID() string {
	return b.id
}

// Connected reports that the remote service is bound and usable
func (b *Binding) Connected(stub Stub) {
	b.manager.handle(bindingEvent{kind: eventConnected, binding: b, stub: stub})
}

// Disconnected reports that the remote service went away
func (b *Binding) Disconnected() {
	b.manager.handle(bindingEvent{kind: eventDisconnected, binding: b})
}

type nopConnectionListener struct{}

func (nopConnectionListener) Connected()         {}
func (nopConnectionListener) Disconnected(error) {}

// ConnectionManager owns the bind/unbind lifecycle of the billing service.
// At most one binding is live at a time.
type ConnectionManager struct {
	binder     Binder
	descriptor ServiceDescriptor
	logger     *zap.Logger
	recorder   Recorder

	mu       sync.Mutex
	state    valueobject.ConnectionState
	binding  *Binding
	stub     Stub
	listener ConnectionListener
	epoch    uint64
}

// NewConnectionManager creates a disconnected connection manager
func NewConnectionManager(binder Binder, descriptor ServiceDescriptor, logger *zap.Logger, recorder Recorder) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ConnectionManager{
		binder:     binder,
		descriptor: descriptor,
		logger:     logger.With(zap.String("component", "billing-connection")),
		recorder:   recorder,
		listener:   nopConnectionListener{},
		state:      valueobject.StateDisconnected,
	}
}

// Connect binds to the billing service. It is a no-op while a connection
// is pending or established. Bind failures are reported to listener
// synchronously as *errors.ConnectionError.
func (m *ConnectionManager) Connect(listener ConnectionListener) {
	if listener == nil {
		listener = nopConnectionListener{}
	}

	m.mu.Lock()
	if m.state != valueobject.StateDisconnected {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("Connect ignored", zap.Stringer("state", state))
		return
	}
	stale := m.binding
	m.listener = listener
	binding := m.newBindingLocked()
	m.mu.Unlock()

	if stale != nil {
		m.unbind(stale)
	}
	m.bind(binding)
}

// Disconnect unbinds from the billing service. It never fails; unbind
// errors are logged and swallowed.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	binding := m.binding
	m.binding = nil
	m.stub = nil
	m.epoch++
	m.setStateLocked(valueobject.StateDisconnected)
	m.mu.Unlock()

	if binding != nil {
		m.unbind(binding)
	}
}

// IsConnected reports whether remote calls can be issued
func (m *ConnectionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == valueobject.StateConnected
}

// IsListeningForConnections reports whether a platform registration exists
func (m *ConnectionManager) IsListeningForConnections() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binding != nil
}

// State returns the current connection state
func (m *ConnectionManager) State() valueobject.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Epoch changes on every manual Disconnect
func (m *ConnectionManager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// reconnect drops the current binding and binds again with the last
// listener. It does nothing and returns false when the connection was
// manually closed since expectedEpoch was read.
func (m *ConnectionManager) reconnect(expectedEpoch uint64) bool {
	m.mu.Lock()
	if m.epoch != expectedEpoch || (m.state == valueobject.StateDisconnected && m.binding == nil) {
		m.mu.Unlock()
		return false
	}
	old := m.binding
	m.stub = nil
	binding := m.newBindingLocked()
	m.mu.Unlock()

	m.logger.Info("Reconnecting to billing service", zap.String("binding", binding.id))
	if old != nil {
		m.unbind(old)
	}
	m.bind(binding)
	return true
}

func (m *ConnectionManager) connectedStub(op string) (Stub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != valueobject.StateConnected || m.stub == nil {
		return nil, &domainErrors.ConnectionError{Op: op, Err: domainErrors.ErrNotConnected}
	}
	return m.stub, nil
}

func (m *ConnectionManager) newBindingLocked() *Binding {
	binding := &Binding{id: uuid.NewString(), manager: m}
	m.binding = binding
	m.setStateLocked(valueobject.StateConnecting)
	return binding
}

func (m *ConnectionManager) setStateLocked(state valueobject.ConnectionState) {
	if m.state == state {
		return
	}
	m.state = state
	m.recorder.ConnectionState(state)
}

func (m *ConnectionManager) bind(binding *Binding) {
	ok, err := m.binder.Bind(m.descriptor, binding)
	m.recorder.BindAttempt(err == nil && ok)
	if err == nil && ok {
		m.logger.Debug("Bind requested", zap.String("binding", binding.id))
		return
	}

	cause := domainErrors.ErrBindRefused
	if err != nil {
		cause = fmt.Errorf("%w: %v", domainErrors.ErrBindDenied, err)
	}
	connErr := &domainErrors.ConnectionError{Op: "bind", Err: cause}

	m.mu.Lock()
	if m.binding != binding {
		m.mu.Unlock()
		return
	}
	m.binding = nil
	m.stub = nil
	m.setStateLocked(valueobject.StateDisconnected)
	listener := m.listener
	m.mu.Unlock()

	m.logger.Warn("Failed to bind billing service", zap.Error(connErr))
	listener.Disconnected(connErr)
}

func (m *ConnectionManager) unbind(binding *Binding) {
	if err := m.binder.Unbind(binding); err != nil {
		m.logger.Warn("Unbind failed, ignoring",
			zap.String("binding", binding.id),
			zap.Error(err),
		)
	}
}

func (m *ConnectionManager) handle(ev bindingEvent) {
	m.mu.Lock()
	if ev.binding != m.binding {
		m.mu.Unlock()
		m.logger.Debug("Ignoring event from stale binding", zap.String("binding", ev.binding.id))
		return
	}

	switch ev.kind {
	case eventConnected:
		if m.state == valueobject.StateConnected {
			m.mu.Unlock()
			m.logger.Debug("Duplicate connected event ignored", zap.String("binding", ev.binding.id))
			return
		}
		m.stub = ev.stub
		m.setStateLocked(valueobject.StateConnected)
		listener := m.listener
		m.mu.Unlock()

		m.logger.Info("Billing service connected", zap.String("binding", ev.binding.id))
		listener.Connected()

	case eventDisconnected:
		m.stub = nil
		m.setStateLocked(valueobject.StateDisconnected)
		m.mu.Unlock()

		m.logger.Warn("Billing service disconnected", zap.String("binding", ev.binding.id))
	default:
		m.mu.Unlock()
	}
}

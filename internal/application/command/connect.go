package command

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/billing"
)

const connectPollInterval = 20 * time.Millisecond

// Connector manages the billing service connection
type Connector interface {
	Connect(listener billing.ConnectionListener)
	Disconnect()
	IsConnected() bool
}

// connectWaiter forwards the first connection outcome
type connectWaiter struct {
	done chan error
}

func (w *connectWaiter) Connected() {
	w.notify(nil)
}

func (w *connectWaiter) Disconnected(err error) {
	if err == nil {
		return
	}
	w.notify(err)
}

func (w *connectWaiter) notify(err error) {
	select {
	case w.done <- err:
	default:
	}
}

// ConnectCommand connects to the billing service and waits for the outcome
type ConnectCommand struct {
	connector Connector
	logger    *zap.Logger
}

// NewConnectCommand creates a new connect command
func NewConnectCommand(connector Connector, logger *zap.Logger) *ConnectCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectCommand{
		connector: connector,
		logger:    logger,
	}
}

// Execute connects and blocks until the service is bound, the bind fails or
// ctx is done. A connection that is already pending is waited on.
func (c *ConnectCommand) Execute(ctx context.Context) error {
	if c.connector.IsConnected() {
		return nil
	}

	waiter := &connectWaiter{done: make(chan error, 1)}
	c.connector.Connect(waiter)

	ticker := time.NewTicker(connectPollInterval)
	defer ticker.Stop()

	for {
		if c.connector.IsConnected() {
			c.logger.Info("Billing service connected")
			return nil
		}
		select {
		case err := <-waiter.done:
			if err != nil {
				return fmt.Errorf("failed to connect to billing service: %w", err)
			}
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("waiting for billing service: %w", ctx.Err())
		}
	}
}

// DisconnectCommand unbinds from the billing service
type DisconnectCommand struct {
	connector Connector
}

// NewDisconnectCommand creates a new disconnect command
func NewDisconnectCommand(connector Connector) *DisconnectCommand {
	return &DisconnectCommand{connector: connector}
}

// Execute disconnects; it never fails
func (c *DisconnectCommand) Execute() {
	c.connector.Disconnect()
}

package errors

import (
	"errors"
	"fmt"

	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

var (
	// Connection errors
	ErrNotConnected = errors.New("billing service not connected")
	ErrBindDenied   = errors.New("not allowed to bind to billing service")
	ErrBindRefused  = errors.New("billing service bind returned false")

	// Remote errors
	ErrRemoteDied = errors.New("remote billing endpoint died")

	// Purchase errors
	ErrPurchaseInProgress = errors.New("another purchase request is in progress")
	ErrRetryAbandoned     = errors.New("purchase retry abandoned after disconnect")
	ErrPurchaseCanceled   = errors.New("purchase canceled by user")
	ErrPurchaseFailed     = errors.New("purchase failed")
)

// ConnectionError reports that the billing service could not be bound or is not bound
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("billing connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransientRemoteError reports that the remote endpoint process has died.
// The service is callable again only after rebinding.
type TransientRemoteError struct {
	Op  string
	Err error
}

func (e *TransientRemoteError) Error() string {
	return fmt.Sprintf("billing service %s failed transiently: %v", e.Op, e.Err)
}

func (e *TransientRemoteError) Unwrap() error {
	return e.Err
}

// PermanentRemoteError reports a malformed request or a non-OK service status
type PermanentRemoteError struct {
	Op   string
	Code valueobject.ResponseCode
	Err  error
}

func (e *PermanentRemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("billing service %s returned %s", e.Op, e.Code)
	}
	return fmt.Sprintf("billing service %s failed: %v", e.Op, e.Err)
}

func (e *PermanentRemoteError) Unwrap() error {
	return e.Err
}

// QueryError wraps a failed query operation
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// LaunchError reports that the purchase UI could not be started
type LaunchError struct {
	ProductID string
	Err       error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch purchase flow for '%s': %v", e.ProductID, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed purchase result payload
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to decode purchase result: %s", e.Reason)
	}
	return fmt.Sprintf("failed to decode purchase result: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err was caused by the remote endpoint dying
func IsTransient(err error) bool {
	var transient *TransientRemoteError
	return errors.As(err, &transient)
}

// IsConnectionError reports whether err is a connection failure
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// ResponseCodeOf extracts the service response code carried by err, if any
func ResponseCodeOf(err error) (valueobject.ResponseCode, bool) {
	var permanent *PermanentRemoteError
	if errors.As(err, &permanent) && permanent.Err == nil {
		return permanent.Code, true
	}
	return 0, false
}

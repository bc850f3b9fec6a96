package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// External UI result codes
const (
	ResultOK       = -1
	ResultCanceled = 0
)

const (
	DefaultRequestCode      = 1002
	DefaultRetryDelay       = 3 * time.Second
	DefaultDecodeTimeout    = 10 * time.Second
	DefaultDeveloperPayload = "JustRandomStringTooHardToRememberTralala"
)

// Purchase outcomes reported to the Recorder
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// StaleRetryPolicy decides what a delayed retry does when the connection
// was manually closed after the retry was scheduled.
type StaleRetryPolicy string

const (
	// StaleRetryDrop resolves the request with errors.ErrRetryAbandoned
	StaleRetryDrop StaleRetryPolicy = "drop"
	// StaleRetryAttempt issues the call anyway
	StaleRetryAttempt StaleRetryPolicy = "attempt"
)

// PurchaseOptions tunes the purchase orchestrator
type PurchaseOptions struct {
	RequestCode      int
	RetryDelay       time.Duration
	DeveloperPayload string
	StaleRetryPolicy StaleRetryPolicy
	DecodeTimeout    time.Duration
}

func (o PurchaseOptions) withDefaults() PurchaseOptions {
	if o.RequestCode == 0 {
		o.RequestCode = DefaultRequestCode
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.DeveloperPayload == "" {
		o.DeveloperPayload = DefaultDeveloperPayload
	}
	if o.StaleRetryPolicy == "" {
		o.StaleRetryPolicy = StaleRetryDrop
	}
	if o.DecodeTimeout <= 0 {
		o.DecodeTimeout = DefaultDecodeTimeout
	}
	return o
}

type purchasePhase int

const (
	phaseIssuing purchasePhase = iota
	phaseAwaitingResult
	phaseRetrying
	phaseResolved
)

type purchaseRequest struct {
	id           string
	productID    string
	purchaseType valueobject.PurchaseType
	callback     PurchaseRequestCallback
	phase        purchasePhase
	once         sync.Once
}

// retryAttempt captures everything a delayed retry needs
type retryAttempt struct {
	request *purchaseRequest
	attempt int
	epoch   uint64
	cause   error
}

// PurchaseOrchestrator drives buy intent -> purchase UI -> result callback,
// retrying once after a transient remote failure.
type PurchaseOrchestrator struct {
	conn      *ConnectionManager
	remote    *Remote
	launcher  Launcher
	converter ResultConverter
	scheduler Scheduler
	opts      PurchaseOptions
	logger    *zap.Logger
	recorder  Recorder

	mu      sync.Mutex
	pending *purchaseRequest
}

// NewPurchaseOrchestrator creates a purchase orchestrator
func NewPurchaseOrchestrator(
	conn *ConnectionManager,
	remote *Remote,
	launcher Launcher,
	converter ResultConverter,
	scheduler Scheduler,
	opts PurchaseOptions,
	logger *zap.Logger,
	recorder Recorder,
) *PurchaseOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &PurchaseOrchestrator{
		conn:      conn,
		remote:    remote,
		launcher:  launcher,
		converter: converter,
		scheduler: scheduler,
		opts:      opts.withDefaults(),
		logger:    logger.With(zap.String("component", "billing-purchase")),
		recorder:  recorder,
	}
}

// RequestCode returns the request code purchase results are expected under
func (o *PurchaseOrchestrator) RequestCode() int {
	return o.opts.RequestCode
}

// StartPurchaseRequest requests a buy intent for productID and launches the
// purchase UI. callback receives exactly one outcome. After a transient
// failure the first error is held back until the single retry resolves: a
// failed retry delivers one error wrapping both causes, a successful retry
// delivers only the purchase result.
func (o *PurchaseOrchestrator) StartPurchaseRequest(ctx context.Context, productID string, purchaseType valueobject.PurchaseType, callback PurchaseRequestCallback) {
	req := &purchaseRequest{
		id:           uuid.NewString(),
		productID:    productID,
		purchaseType: purchaseType,
		callback:     callback,
	}

	o.mu.Lock()
	if o.pending != nil {
		busy := o.pending.id
		o.mu.Unlock()
		o.logger.Warn("Purchase request rejected",
			zap.String("product_id", productID),
			zap.String("pending_request", busy),
		)
		o.recorder.PurchaseResolved(OutcomeError)
		callback.PurchaseError(domainErrors.ErrPurchaseInProgress)
		return
	}
	o.pending = req
	o.mu.Unlock()

	o.logger.Info("Starting purchase request",
		zap.String("request_id", req.id),
		zap.String("product_id", productID),
		zap.String("type", purchaseType.String()),
	)
	o.issue(ctx, req)
}

// OnActivityResult delivers the purchase UI outcome
func (o *PurchaseOrchestrator) OnActivityResult(requestCode, resultCode int, payload ResultPayload) {
	if requestCode != o.opts.RequestCode {
		o.logger.Debug("Ignoring result for foreign request code", zap.Int("request_code", requestCode))
		return
	}

	o.mu.Lock()
	req := o.pending
	if req == nil || req.phase != phaseAwaitingResult {
		o.mu.Unlock()
		o.logger.Warn("Purchase result without an outstanding request", zap.Int("result_code", resultCode))
		return
	}
	req.phase = phaseResolved
	o.pending = nil
	o.mu.Unlock()

	if payload.PurchaseType == "" {
		payload.PurchaseType = req.purchaseType
	}

	switch resultCode {
	case ResultOK:
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.DecodeTimeout)
		defer cancel()

		tx, err := o.converter.Decode(ctx, payload)
		if err != nil {
			var decodeErr *domainErrors.DecodeError
			if !errors.As(err, &decodeErr) {
				err = &domainErrors.DecodeError{Reason: "converter rejected payload", Err: err}
			}
			o.resolveError(req, err)
			return
		}
		o.resolve(req, OutcomeSuccess, func(cb PurchaseRequestCallback) {
			cb.PurchaseSuccess(tx)
		})

	case ResultCanceled:
		o.resolve(req, OutcomeCanceled, func(cb PurchaseRequestCallback) {
			cb.PurchaseCanceled()
		})

	default:
		o.resolveError(req, fmt.Errorf("%w: unexpected result code %d (%s)",
			domainErrors.ErrPurchaseFailed, resultCode, payload.ResponseCode))
	}
}

func (o *PurchaseOrchestrator) issue(ctx context.Context, req *purchaseRequest) {
	epoch := o.conn.Epoch()
	intent, err := o.remote.BuyIntent(ctx, req.productID, req.purchaseType, o.opts.DeveloperPayload)
	switch {
	case err == nil:
		o.launch(req, intent)
	case domainErrors.IsTransient(err):
		o.scheduleRetry(req, err, epoch)
	default:
		o.resolveError(req, err)
	}
}

func (o *PurchaseOrchestrator) launch(req *purchaseRequest, intent BuyIntent) {
	// Results may be delivered before LaunchForResult returns.
	o.setPhase(req, phaseAwaitingResult)

	if err := o.launcher.LaunchForResult(intent, o.opts.RequestCode); err != nil {
		o.resolveError(req, &domainErrors.LaunchError{ProductID: req.productID, Err: err})
		return
	}
	o.logger.Debug("Purchase flow launched",
		zap.String("request_id", req.id),
		zap.String("intent", intent.ID),
	)
}

// scheduleRetry reconnects and schedules the second attempt. epoch is the
// connection epoch observed before the failed call.
func (o *PurchaseOrchestrator) scheduleRetry(req *purchaseRequest, cause error, epoch uint64) {
	o.setPhase(req, phaseRetrying)
	o.recorder.PurchaseRetry()

	retry := retryAttempt{
		request: req,
		attempt: 2,
		epoch:   epoch,
		cause:   cause,
	}

	o.logger.Warn("Billing service died during purchase request, reconnecting",
		zap.String("request_id", req.id),
		zap.Duration("retry_in", o.opts.RetryDelay),
		zap.Error(cause),
	)
	if !o.conn.reconnect(epoch) {
		o.logger.Info("Connection closed during purchase request, not reconnecting",
			zap.String("request_id", req.id),
		)
	}

	if err := o.scheduler.Schedule(func() { o.runRetry(retry) }, o.opts.RetryDelay); err != nil {
		o.resolveError(req, fmt.Errorf("failed to schedule purchase retry: %w (cause: %w)", err, cause))
	}
}

func (o *PurchaseOrchestrator) runRetry(retry retryAttempt) {
	req := retry.request

	if retry.epoch != o.conn.Epoch() && o.opts.StaleRetryPolicy != StaleRetryAttempt {
		o.logger.Info("Dropping purchase retry after disconnect", zap.String("request_id", req.id))
		o.resolveError(req, fmt.Errorf("%w: %w", domainErrors.ErrRetryAbandoned, retry.cause))
		return
	}

	o.setPhase(req, phaseIssuing)
	o.logger.Info("Retrying purchase request",
		zap.String("request_id", req.id),
		zap.Int("attempt", retry.attempt),
	)

	intent, err := o.remote.BuyIntent(context.Background(), req.productID, req.purchaseType, o.opts.DeveloperPayload)
	if err != nil {
		o.resolveError(req, fmt.Errorf("purchase retry failed: %w (first attempt: %w)", err, retry.cause))
		return
	}
	o.launch(req, intent)
}

func (o *PurchaseOrchestrator) setPhase(req *purchaseRequest, phase purchasePhase) {
	o.mu.Lock()
	if req.phase != phaseResolved {
		req.phase = phase
	}
	o.mu.Unlock()
}

func (o *PurchaseOrchestrator) resolveError(req *purchaseRequest, err error) {
	o.resolve(req, OutcomeError, func(cb PurchaseRequestCallback) {
		cb.PurchaseError(err)
	})
}

func (o *PurchaseOrchestrator) resolve(req *purchaseRequest, outcome string, deliver func(PurchaseRequestCallback)) {
	o.mu.Lock()
	req.phase = phaseResolved
	if o.pending == req {
		o.pending = nil
	}
	o.mu.Unlock()

	req.once.Do(func() {
		o.logger.Info("Purchase request resolved",
			zap.String("request_id", req.id),
			zap.String("product_id", req.productID),
			zap.String("outcome", outcome),
		)
		o.recorder.PurchaseResolved(outcome)
		deliver(req.callback)
	})
}

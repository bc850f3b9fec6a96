package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

const namespace = "gdxpay"

// Remote call results
const (
	ResultOK           = "ok"
	ResultTransient    = "transient"
	ResultPermanent    = "permanent"
	ResultNotConnected = "not_connected"
)

// Recorder exports billing activity as Prometheus metrics
type Recorder struct {
	registry         *prometheus.Registry
	connectionState  prometheus.Gauge
	bindAttempts     *prometheus.CounterVec
	remoteCalls      *prometheus.CounterVec
	purchaseRetries  prometheus.Counter
	purchaseOutcomes *prometheus.CounterVec
}

// NewRecorder creates a Recorder backed by its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Billing service connection state (0 disconnected, 1 connecting, 2 connected).",
		}),
		bindAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bind_attempts_total",
			Help:      "Bind requests issued to the platform.",
		}, []string{"accepted"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote billing service calls by operation and result.",
		}, []string{"op", "result"}),
		purchaseRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_retries_total",
			Help:      "Purchase requests retried after the billing service died.",
		}),
		purchaseOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_resolved_total",
			Help:      "Purchase requests resolved by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(
		r.connectionState,
		r.bindAttempts,
		r.remoteCalls,
		r.purchaseRetries,
		r.purchaseOutcomes,
		prometheus.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ConnectionState(state valueobject.ConnectionState) {
	r.connectionState.Set(float64(state))
}

func (r *Recorder) BindAttempt(ok bool) {
	r.bindAttempts.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (r *Recorder) RemoteCall(op string, err error) {
	r.remoteCalls.WithLabelValues(op, classify(err)).Inc()
}

func (r *Recorder) PurchaseRetry() {
	r.purchaseRetries.Inc()
}

func (r *Recorder) PurchaseResolved(outcome string) {
	r.purchaseOutcomes.WithLabelValues(outcome).Inc()
}

func classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case domainErrors.IsTransient(err):
		return ResultTransient
	case domainErrors.IsConnectionError(err):
		return ResultNotConnected
	default:
		return ResultPermanent
	}
}

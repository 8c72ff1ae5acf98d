package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Deletion reasons for ProfilesDeleted.
const (
	ReasonWithdrawn    = "withdrawn"
	ReasonForceRemoved = "force_removed"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	ProfilesAdded     prometheus.Counter
	ProfilesUpdated   prometheus.Counter
	ProfilesDeleted   *prometheus.CounterVec
	DepositReserved   prometheus.Counter
	DepositUnreserved prometheus.Counter
	DepositSlashed    prometheus.Counter
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
}

// New creates and registers all registry metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProfilesAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_profiles_added_total",
			Help: "Total number of profile submissions that stored an entry",
		}),
		ProfilesUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_profiles_updated_total",
			Help: "Total number of submissions that overwrote an existing entry",
		}),
		ProfilesDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_profiles_deleted_total",
			Help: "Total number of deleted entries by reason",
		}, []string{"reason"}),
		DepositReserved: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_deposit_reserved_total",
			Help: "Total deposit value reserved by the registry",
		}),
		DepositUnreserved: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_deposit_unreserved_total",
			Help: "Total deposit value released back to owners",
		}),
		DepositSlashed: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_deposit_slashed_total",
			Help: "Total deposit value forfeited by administrative removal",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		OperationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_operation_errors_total",
			Help: "Total failed registry operations by error code",
		}, []string{"operation", "code"}),
	}
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementOperationError(operation, code string) {
	m.OperationErrors.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) IncrementProfileDeleted(reason string) {
	m.ProfilesDeleted.WithLabelValues(reason).Inc()
}

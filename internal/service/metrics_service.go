package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/consejo-api/internal/models"
)

// Vote outcomes reported on votes_cast_total.
const (
	VoteOutcomeRecorded = "recorded"
	VoteOutcomeUpdated  = "updated"
	VoteOutcomeRejected = "rejected"
)

// MetricsService owns the Prometheus registry. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	votesCast           *prometheus.CounterVec
	budgetRejections    prometheus.Counter
	rateLimitRejections prometheus.Counter
	resolutions         *prometheus.CounterVec
	txDuration          *prometheus.HistogramVec
	exportJobs          *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "votes_cast_total",
			Help: "Votes processed by target, choice and outcome",
		}, []string{"target", "choice", "outcome"}),
		budgetRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vote_budget_rejections_total",
			Help: "Votes refused because the voter had no budget left",
		}),
		rateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vote_daily_cap_rejections_total",
			Help: "Approvals refused by the daily approval cap",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_resolutions_total",
			Help: "Membership requests that reached a terminal state",
		}, []string{"state"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vote_transaction_duration_seconds",
			Help:    "Duration of vote casting units of work",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "export_jobs_total",
			Help: "Export jobs by terminal status",
		}, []string{"status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency.(prometheus.Collector), m.cacheWrite.(prometheus.Collector), m.cacheLookups,
		m.votesCast, m.budgetRejections, m.rateLimitRejections, m.resolutions, m.txDuration, m.exportJobs,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordVote counts a processed vote.
func (m *MetricsService) RecordVote(target models.VoteTarget, choice models.VoteChoice, outcome string) {
	if m == nil {
		return
	}
	m.votesCast.WithLabelValues(string(target), string(choice), outcome).Inc()
}

// RecordBudgetRejection counts a vote refused for lack of budget.
func (m *MetricsService) RecordBudgetRejection() {
	if m == nil {
		return
	}
	m.budgetRejections.Inc()
}

// RecordRateLimited counts an approval refused by the daily cap.
func (m *MetricsService) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejections.Inc()
}

// RecordMembershipResolution counts a request reaching a terminal state.
func (m *MetricsService) RecordMembershipResolution(state models.MembershipRequestState) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(string(state)).Inc()
}

// ObserveVoteTransaction records how long a cast took including retries.
func (m *MetricsService) ObserveVoteTransaction(target models.VoteTarget, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(string(target)).Observe(duration.Seconds())
}

// RecordExportJob counts an export job reaching a terminal status.
func (m *MetricsService) RecordExportJob(status models.ExportStatus) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(string(status)).Inc()
}

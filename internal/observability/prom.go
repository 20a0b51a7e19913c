package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "civicfix"

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Domain
	DefectEvents  *prometheus.CounterVec
	UploadsTotal  *prometheus.CounterVec
	NoticesTotal  *prometheus.CounterVec
	NoticeCircuit prometheus.Gauge
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Store operation latency (logical op, not raw query)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"backend", "op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "Store errors by backend, logical op and class.",
			},
			[]string{"backend", "op", "class"},
		),
		DefectEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "defects",
				Name:      "events_total",
				Help:      "Defect lifecycle events (created, updated, status_changed, commented, read, deleted).",
			},
			[]string{"event"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "uploads",
				Name:      "total",
				Help:      "Image uploads by result.",
			},
			[]string{"result"}, // stored|rejected|failed|cleaned
		),
		NoticesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "notices_total",
				Help:      "Outbound comment notices by result.",
			},
			[]string{"result"}, // sent|failed
		),
		NoticeCircuit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "circuit_open",
				Help:      "1 while the notice circuit breaker is open or half open.",
			},
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal,
		p.DefectEvents, p.UploadsTotal, p.NoticesTotal, p.NoticeCircuit)

	return p
}

func (p *Prom) RecordDefectEvent(event string) {
	p.DefectEvents.WithLabelValues(event).Inc()
}

func (p *Prom) RecordUpload(result string) {
	p.UploadsTotal.WithLabelValues(result).Inc()
}

func (p *Prom) RecordNotice(result string) {
	p.NoticesTotal.WithLabelValues(result).Inc()
}

// SetNoticeCircuit mirrors the notifier breaker state.
func (p *Prom) SetNoticeCircuit(state string) {
	if state == "closed" {
		p.NoticeCircuit.Set(0)
		return
	}
	p.NoticeCircuit.Set(1)
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

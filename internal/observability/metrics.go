package observability

import (
	"net/http"
	"salus-bridge/internal/domain/model"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	devices         prometheus.Gauge
	currentTemp     *prometheus.GaugeVec
	targetTemp      *prometheus.GaugeVec
	available       *prometheus.GaugeVec
}

// NewMetrics registers the bridge collectors on reg. gatherer backs the
// /metrics handler and is normally the same registry.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salus_http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "salus_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salus_gateway_calls_total",
			Help: "Gateway calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "salus_gateway_call_duration_seconds",
			Help:    "Gateway call latency by operation.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"operation"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "salus_devices",
			Help: "Climate devices in the last gateway listing.",
		}),
		currentTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_device_current_temperature_celsius",
			Help: "Last reported room temperature.",
		}, []string{"device_id"}),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_device_target_temperature_celsius",
			Help: "Last reported heating setpoint.",
		}, []string{"device_id"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_device_available",
			Help: "1 when the device is online.",
		}, []string{"device_id"}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.gatewayCalls, m.gatewayDuration,
		m.devices, m.currentTemp, m.targetTemp, m.available,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveGatewayCall(operation, outcome string, took time.Duration) {
	m.gatewayCalls.WithLabelValues(operation, outcome).Inc()
	m.gatewayDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *Metrics) SetDeviceCount(n int) {
	m.devices.Set(float64(n))
}

// ObserveDevice records the gauges of one device state. Unknown
// temperatures leave the previous sample in place.
func (m *Metrics) ObserveDevice(d *model.Device) {
	if d.CurrentTemperature != nil {
		m.currentTemp.WithLabelValues(d.ID).Set(*d.CurrentTemperature)
	}
	if d.TargetTemperature != nil {
		m.targetTemp.WithLabelValues(d.ID).Set(*d.TargetTemperature)
	}
	avail := 0.0
	if d.Available {
		avail = 1
	}
	m.available.WithLabelValues(d.ID).Set(avail)
}

// Middleware counts and traces every request except /metrics. Routes are
// labelled by their chi pattern so device ids do not explode cardinality.
func (m *Metrics) Middleware(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			if rid := middleware.GetReqID(ctx); rid != "" {
				span.SetAttributes(attribute.String("http.request_id", rid))
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

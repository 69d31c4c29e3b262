// Package telemetry decorates the gateway port with metrics and spans.
package telemetry

import (
	"context"
	"errors"
	"salus-bridge/internal/domain/model"
	"salus-bridge/internal/observability"
	"salus-bridge/internal/ports"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Gateway struct {
	next    ports.GatewayPort
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewGateway(next ports.GatewayPort, metrics *observability.Metrics, tracer trace.Tracer) *Gateway {
	return &Gateway{next: next, metrics: metrics, tracer: tracer}
}

func (g *Gateway) Connect(ctx context.Context) error {
	return g.observe(ctx, "connect", "", func(ctx context.Context) error {
		return g.next.Connect(ctx)
	})
}

func (g *Gateway) ListDevices(ctx context.Context) ([]*model.Device, error) {
	var devices []*model.Device
	err := g.observe(ctx, "list_devices", "", func(ctx context.Context) (err error) {
		devices, err = g.next.ListDevices(ctx)
		return err
	})
	if err == nil {
		g.metrics.SetDeviceCount(len(devices))
		for _, d := range devices {
			g.metrics.ObserveDevice(d)
		}
	}
	return devices, err
}

func (g *Gateway) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	return g.device(ctx, "get_device", id, func(ctx context.Context) (*model.Device, error) {
		return g.next.GetDevice(ctx, id)
	})
}

func (g *Gateway) SetTemperature(ctx context.Context, id string, celsius float64) (*model.Device, error) {
	return g.device(ctx, "set_temperature", id, func(ctx context.Context) (*model.Device, error) {
		return g.next.SetTemperature(ctx, id, celsius)
	})
}

func (g *Gateway) SetMode(ctx context.Context, id string, mode model.HVACMode) (*model.Device, error) {
	return g.device(ctx, "set_mode", id, func(ctx context.Context) (*model.Device, error) {
		return g.next.SetMode(ctx, id, mode)
	})
}

func (g *Gateway) SetPreset(ctx context.Context, id string, preset model.Preset) (*model.Device, error) {
	return g.device(ctx, "set_preset", id, func(ctx context.Context) (*model.Device, error) {
		return g.next.SetPreset(ctx, id, preset)
	})
}

func (g *Gateway) Close() error {
	return g.next.Close()
}

func (g *Gateway) device(ctx context.Context, op, id string, call func(context.Context) (*model.Device, error)) (*model.Device, error) {
	var d *model.Device
	err := g.observe(ctx, op, id, func(ctx context.Context) (err error) {
		d, err = call(ctx)
		return err
	})
	if err == nil && d != nil {
		g.metrics.ObserveDevice(d)
	}
	return d, err
}

func (g *Gateway) observe(ctx context.Context, op, id string, call func(context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	if id != "" {
		span.SetAttributes(attribute.String("device.id", id))
	}

	start := time.Now()
	err := call(ctx)
	result := Outcome(err)
	g.metrics.ObserveGatewayCall(op, result, time.Since(start))

	span.SetAttributes(attribute.String("gateway.outcome", result))
	if result == "unavailable" {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway unavailable")
	}
	return err
}

// Outcome is the metric label for a gateway call result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case model.IsValidation(err):
		return "invalid"
	default:
		return "unavailable"
	}
}

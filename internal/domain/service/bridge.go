package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"salus-bridge/internal/domain/model"
	"salus-bridge/internal/ports"
	"time"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	GatewayHost     string
	Version         string
	CacheTTL        time.Duration
	ZoneConcurrency int
}

// publishTimeout bounds one state publish, independently of the command
// that produced the state.
const publishTimeout = 2 * time.Second

type BridgeService struct {
	gateway   ports.GatewayPort
	publisher ports.StatePublisher
	opts      Options
	registry  *registry
	logger    *slog.Logger
}

// NewBridgeService wires the use cases to the gateway session. publisher
// may be nil. The gateway bounds each call with its own request timeout.
func NewBridgeService(gateway ports.GatewayPort, publisher ports.StatePublisher, opts Options, logger *slog.Logger) *BridgeService {
	if opts.ZoneConcurrency < 1 {
		opts.ZoneConcurrency = 1
	}
	return &BridgeService{
		gateway:   gateway,
		publisher: publisher,
		opts:      opts,
		registry:  newRegistry(opts.CacheTTL),
		logger:    logger,
	}
}

func (s *BridgeService) Status() ports.Status {
	return ports.Status{Status: "ok", Gateway: s.opts.GatewayHost, Version: s.opts.Version}
}

func (s *BridgeService) GetDevices(ctx context.Context) ([]*model.Device, error) {
	if !s.registry.enabled() {
		devices, err := s.gateway.ListDevices(ctx)
		if err != nil {
			return nil, s.gatewayError("list devices", err)
		}
		return devices, nil
	}

	if devices, ok := s.registry.list(); ok {
		return devices, nil
	}
	v, err, _ := s.registry.group.Do("devices", func() (any, error) {
		generation := s.registry.currentGeneration()
		// shared by every waiting caller, so detached from the first one's cancellation
		devices, err := s.gateway.ListDevices(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.registry.store(generation, devices)
		return devices, nil
	})
	if err != nil {
		return nil, s.gatewayError("list devices", err)
	}
	return cloneAll(v.([]*model.Device)), nil
}

func (s *BridgeService) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	if id == "" {
		return nil, model.ErrNotFound
	}
	if s.registry.enabled() {
		if d, ok := s.registry.get(id); ok {
			return d, nil
		}
	}
	d, err := s.gateway.GetDevice(ctx, id)
	if err != nil {
		return nil, s.gatewayError("get device", err)
	}
	return d, nil
}

func (s *BridgeService) SetTemperature(ctx context.Context, id string, celsius float64) (*model.Device, error) {
	if err := validateTemperature(celsius); err != nil {
		return nil, err
	}
	return s.command(ctx, "set temperature", id, func(ctx context.Context) (*model.Device, error) {
		return s.gateway.SetTemperature(ctx, id, celsius)
	})
}

func (s *BridgeService) SetMode(ctx context.Context, id string, mode string) (*model.Device, error) {
	m, err := model.ParseHVACMode(mode)
	if err != nil {
		return nil, err
	}
	return s.command(ctx, "set mode", id, func(ctx context.Context) (*model.Device, error) {
		return s.gateway.SetMode(ctx, id, m)
	})
}

func (s *BridgeService) SetPreset(ctx context.Context, id string, preset string) (*model.Device, error) {
	p, err := model.ParsePreset(preset)
	if err != nil {
		return nil, err
	}
	return s.command(ctx, "set preset", id, func(ctx context.Context) (*model.Device, error) {
		return s.gateway.SetPreset(ctx, id, p)
	})
}

func (s *BridgeService) ZoneTemperature(ctx context.Context, ids []string, celsius float64) ([]model.ZoneOutcome, error) {
	if err := validateTemperature(celsius); err != nil {
		return nil, err
	}
	return s.fanOut(ctx, ids, func(ctx context.Context, id string) error {
		_, err := s.SetTemperature(ctx, id, celsius)
		return err
	}), nil
}

func (s *BridgeService) ZonePreset(ctx context.Context, ids []string, preset string) ([]model.ZoneOutcome, error) {
	p, err := model.ParsePreset(preset)
	if err != nil {
		return nil, err
	}
	return s.fanOut(ctx, ids, func(ctx context.Context, id string) error {
		_, err := s.SetPreset(ctx, id, string(p))
		return err
	}), nil
}

// command runs one gateway write. The cache is invalidated whatever the
// outcome since a failed write may still have reached the device.
func (s *BridgeService) command(ctx context.Context, op, id string, call func(context.Context) (*model.Device, error)) (*model.Device, error) {
	if id == "" {
		return nil, model.ErrNotFound
	}
	defer s.registry.invalidate()

	d, err := call(ctx)
	if err != nil {
		return nil, s.gatewayError(op, err)
	}
	s.logger.Info("command applied", "op", op, "device_id", id)
	s.publish(ctx, d)
	return d, nil
}

// fanOut attempts op for every id. Failures are recorded per id and never
// stop the remaining ids.
func (s *BridgeService) fanOut(ctx context.Context, ids []string, op func(context.Context, string) error) []model.ZoneOutcome {
	results := make([]model.ZoneOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.opts.ZoneConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = outcome(id, op(ctx, id))
			return nil
		})
	}
	_ = g.Wait()

	if ok := model.Succeeded(results); ok < len(results) {
		s.logger.Warn("zone command partially failed", "succeeded", ok, "total", len(results))
	}
	return results
}

func outcome(id string, err error) model.ZoneOutcome {
	var verr *model.ValidationError
	switch {
	case err == nil:
		return model.ZoneOutcome{DeviceID: id, Status: model.ZoneStatusOK}
	case errors.Is(err, model.ErrNotFound):
		return model.ZoneOutcome{DeviceID: id, Status: model.ZoneStatusNotFound, Error: "device not found"}
	case errors.As(err, &verr):
		return model.ZoneOutcome{DeviceID: id, Status: model.ZoneStatusInvalid, Error: verr.Message}
	default:
		return model.ZoneOutcome{DeviceID: id, Status: model.ZoneStatusUnavailable, Error: model.ErrUpstreamUnavailable.Error()}
	}
}

func (s *BridgeService) publish(ctx context.Context, d *model.Device) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishState(ctx, d); err != nil {
		s.logger.Warn("state publish failed", "device_id", d.ID, "error", err)
	}
}

// gatewayError folds every gateway failure into the bridge's error
// taxonomy.
func (s *BridgeService) gatewayError(op string, err error) error {
	if errors.Is(err, model.ErrNotFound) || model.IsValidation(err) {
		return err
	}
	s.logger.Warn("gateway call failed", "op", op, "error", err)
	if errors.Is(err, model.ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", model.ErrUpstreamUnavailable, op, err)
}

func validateTemperature(celsius float64) error {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return &model.ValidationError{Field: "temperature", Message: "temperature must be a finite number"}
	}
	return nil
}

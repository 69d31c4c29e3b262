package ports

import (
	"context"
	"salus-bridge/internal/domain/model"
)

// GatewayPort is the session to the local heating gateway. Command
// methods return the device as acknowledged by the gateway.
type GatewayPort interface {
	Connect(ctx context.Context) error
	ListDevices(ctx context.Context) ([]*model.Device, error)
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	SetTemperature(ctx context.Context, id string, celsius float64) (*model.Device, error)
	SetMode(ctx context.Context, id string, mode model.HVACMode) (*model.Device, error)
	SetPreset(ctx context.Context, id string, preset model.Preset) (*model.Device, error)
	Close() error
}

type StatePublisher interface {
	PublishState(ctx context.Context, device *model.Device) error
}

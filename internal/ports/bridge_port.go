package ports

import (
	"context"
	"salus-bridge/internal/domain/model"
)

type Status struct {
	Status  string `json:"status"`
	Gateway string `json:"gateway"`
	Version string `json:"version"`
}

type BridgePort interface {
	Status() Status
	GetDevices(ctx context.Context) ([]*model.Device, error)
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	SetTemperature(ctx context.Context, id string, celsius float64) (*model.Device, error)
	SetMode(ctx context.Context, id string, mode string) (*model.Device, error)
	SetPreset(ctx context.Context, id string, preset string) (*model.Device, error)

	// Zone operations attempt every id and never fail as a whole once
	// the shared value is valid.
	ZoneTemperature(ctx context.Context, ids []string, celsius float64) ([]model.ZoneOutcome, error)
	ZonePreset(ctx context.Context, ids []string, preset string) ([]model.ZoneOutcome, error)
}

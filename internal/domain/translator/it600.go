package translator

import (
	"salus-bridge/internal/domain/model"
)

const it600Cluster = "sIT600TH"

type IT600Strategy struct{}

func (s *IT600Strategy) ToDevice(raw map[string]any) *model.Device {
	d := decodeCommon(raw, model.DeviceFamilyIT600)
	block, _ := raw[it600Cluster].(map[string]any)
	decodeThermostat(d, block)
	return d
}

func (s *IT600Strategy) SetpointPayload(celsius float64) map[string]any {
	return map[string]any{
		it600Cluster: map[string]any{"SetHeatingSetpoint_x100": toX100(celsius)},
	}
}

func (s *IT600Strategy) HoldPayload(hold HoldType) map[string]any {
	return map[string]any{
		it600Cluster: map[string]any{"SetHoldType": int(hold)},
	}
}

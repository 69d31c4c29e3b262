package translator

import (
	"salus-bridge/internal/domain/model"
)

const thersCluster = "sTherS"

// TherSStrategy handles the older thermostats that report through the
// sTherS cluster. They take the hold type as a plain attribute write.
type TherSStrategy struct{}

func (s *TherSStrategy) ToDevice(raw map[string]any) *model.Device {
	d := decodeCommon(raw, model.DeviceFamilyTherS)
	block, _ := raw[thersCluster].(map[string]any)
	decodeThermostat(d, block)
	return d
}

func (s *TherSStrategy) SetpointPayload(celsius float64) map[string]any {
	return map[string]any{
		thersCluster: map[string]any{"SetHeatingSetpoint_x100": toX100(celsius)},
	}
}

func (s *TherSStrategy) HoldPayload(hold HoldType) map[string]any {
	return map[string]any{
		thersCluster: map[string]any{"HoldType": int(hold)},
	}
}

package translator

import (
	"encoding/json"
	"maps"
	"math"
	"salus-bridge/internal/domain/model"
)

type HoldType int

const (
	HoldFollowSchedule HoldType = 0
	HoldTemporary      HoldType = 1
	HoldPermanent      HoldType = 2
	HoldOff            HoldType = 7
)

const (
	defaultMinSetpoint = 5.0
	defaultMaxSetpoint = 35.0
)

func HoldForPreset(p model.Preset) HoldType {
	switch p {
	case model.PresetOff:
		return HoldOff
	case model.PresetPermanentHold:
		return HoldPermanent
	default:
		return HoldFollowSchedule
	}
}

func HoldForMode(m model.HVACMode) HoldType {
	switch m {
	case model.HVACModeOff:
		return HoldOff
	case model.HVACModeHeat:
		return HoldPermanent
	default:
		return HoldFollowSchedule
	}
}

// A temporary hold reverts to the schedule, so it reads as Follow Schedule.
func PresetForHold(h HoldType) model.Preset {
	switch h {
	case HoldOff:
		return model.PresetOff
	case HoldPermanent:
		return model.PresetPermanentHold
	default:
		return model.PresetFollowSchedule
	}
}

func ModeForHold(h HoldType) model.HVACMode {
	switch h {
	case HoldOff:
		return model.HVACModeOff
	case HoldPermanent:
		return model.HVACModeHeat
	default:
		return model.HVACModeAuto
	}
}

// ApplyHold updates d as the gateway does once it accepted a hold type.
func ApplyHold(d *model.Device, h HoldType) {
	d.Preset = PresetForHold(h)
	d.HVACMode = ModeForHold(h)
	if h == HoldOff {
		d.HVACAction = model.HVACActionOff
	} else if d.HVACAction == model.HVACActionOff {
		d.HVACAction = model.HVACActionIdle
	}
	setAttribute(d, "HoldType", float64(h))
}

func ApplySetpoint(d *model.Device, celsius float64) {
	x100 := toX100(celsius)
	d.TargetTemperature = model.Float64(fromX100(x100))
	setAttribute(d, "HeatingSetpoint_x100", float64(x100))
}

// setAttribute keeps the raw block in step with the decoded fields. The map
// is copied since it may be shared with the listing it was read from.
func setAttribute(d *model.Device, key string, v float64) {
	if d.Attributes == nil {
		return
	}
	d.Attributes = maps.Clone(d.Attributes)
	d.Attributes[key] = v
}

// toX100 converts degrees to the gateway's hundredths representation.
func toX100(celsius float64) int {
	return int(math.Round(celsius * 100))
}

func fromX100(v int) float64 {
	return float64(v) / 100
}

// decodeCommon fills the identity fields shared by every family.
func decodeCommon(raw map[string]any, family model.DeviceFamily) *model.Device {
	d := &model.Device{Family: family, Available: true}
	if data, ok := raw["data"].(map[string]any); ok {
		d.ID, _ = data["UniID"].(string)
	}
	d.Name = d.ID
	if zdo, ok := raw["sZDO"].(map[string]any); ok {
		if s, ok := zdo["DeviceName"].(string); ok {
			var n struct {
				DeviceName string `json:"deviceName"`
			}
			if err := json.Unmarshal([]byte(s), &n); err == nil && n.DeviceName != "" {
				d.Name = n.DeviceName
			}
		}
	}
	if info, ok := raw["sZDOInfo"].(map[string]any); ok {
		if v, ok := number(info, "OnlineStatus_i"); ok {
			d.Available = v == 1
		}
	}
	return d
}

// decodeThermostat reads the x100 temperature block shared by sIT600TH and
// sTherS.
func decodeThermostat(d *model.Device, block map[string]any) {
	if v, ok := number(block, "LocalTemperature_x100"); ok {
		d.CurrentTemperature = model.Float64(v / 100)
	}
	if v, ok := number(block, "HeatingSetpoint_x100"); ok {
		d.TargetTemperature = model.Float64(v / 100)
	}
	d.MinTemperature = defaultMinSetpoint
	if v, ok := number(block, "MinHeatSetpoint_x100"); ok {
		d.MinTemperature = v / 100
	}
	d.MaxTemperature = defaultMaxSetpoint
	if v, ok := number(block, "MaxHeatSetpoint_x100"); ok {
		d.MaxTemperature = v / 100
	}

	hold := HoldFollowSchedule
	if v, ok := number(block, "HoldType"); ok {
		hold = HoldType(v)
	}
	d.Preset = PresetForHold(hold)
	d.HVACMode = ModeForHold(hold)

	running, _ := number(block, "RunningState")
	switch {
	case hold == HoldOff:
		d.HVACAction = model.HVACActionOff
	case int(running)%2 == 1:
		d.HVACAction = model.HVACActionHeating
	default:
		d.HVACAction = model.HVACActionIdle
	}
	d.Attributes = block
}

func number(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

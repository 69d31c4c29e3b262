package model

import "maps"

type DeviceFamily string

const (
	// iT600 thermostats and TRVs (sIT600TH cluster)
	DeviceFamilyIT600 DeviceFamily = "it600"
	// legacy thermostats (sTherS cluster)
	DeviceFamilyTherS DeviceFamily = "thers"
)

type HVACMode string

const (
	HVACModeOff  HVACMode = "off"
	HVACModeHeat HVACMode = "heat"
	HVACModeAuto HVACMode = "auto"
)

type HVACAction string

const (
	HVACActionOff     HVACAction = "off"
	HVACActionIdle    HVACAction = "idle"
	HVACActionHeating HVACAction = "heating"
)

type Preset string

const (
	PresetFollowSchedule Preset = "Follow Schedule"
	PresetPermanentHold  Preset = "Permanent Hold"
	PresetOff            Preset = "Off"
)

var (
	HVACModes = []HVACMode{HVACModeOff, HVACModeHeat, HVACModeAuto}
	Presets   = []Preset{PresetFollowSchedule, PresetPermanentHold, PresetOff}
)

// Device is a climate device as reported by the gateway.
type Device struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Family             DeviceFamily   `json:"family"`
	CurrentTemperature *float64       `json:"current_temperature"`
	TargetTemperature  *float64       `json:"target_temperature"`
	HVACMode           HVACMode       `json:"hvac_mode"`
	HVACAction         HVACAction     `json:"hvac_action"`
	Preset             Preset         `json:"preset_mode"`
	Available          bool           `json:"available"`
	MinTemperature     float64        `json:"min_temperature"`
	MaxTemperature     float64        `json:"max_temperature"`
	Attributes         map[string]any `json:"attributes,omitempty"`
}

// Clone returns a copy that shares nothing mutable with d except the
// nested values of Attributes.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	c := *d
	if d.CurrentTemperature != nil {
		v := *d.CurrentTemperature
		c.CurrentTemperature = &v
	}
	if d.TargetTemperature != nil {
		v := *d.TargetTemperature
		c.TargetTemperature = &v
	}
	c.Attributes = maps.Clone(d.Attributes)
	return &c
}

func ParseHVACMode(s string) (HVACMode, error) {
	for _, m := range HVACModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", &ValidationError{Field: "mode", Message: `mode must be one of "off", "heat", "auto"`}
}

func ParsePreset(s string) (Preset, error) {
	for _, p := range Presets {
		if string(p) == s {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "preset", Message: `preset must be one of "Follow Schedule", "Permanent Hold", "Off"`}
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

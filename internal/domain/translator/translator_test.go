package translator

import (
	"salus-bridge/internal/domain/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func it600Raw() map[string]any {
	return map[string]any{
		"data": map[string]any{"UniID": "001E5E0D32906128", "Endpoint": 1.0},
		"sIT600TH": map[string]any{
			"LocalTemperature_x100": 2150.0,
			"HeatingSetpoint_x100":  2100.0,
			"MinHeatSetpoint_x100":  500.0,
			"MaxHeatSetpoint_x100":  3000.0,
			"HoldType":              2.0,
			"RunningState":          1.0,
		},
		"sZDO":     map[string]any{"DeviceName": `{"deviceName": "Living Room"}`},
		"sZDOInfo": map[string]any{"OnlineStatus_i": 1.0},
	}
}

func TestIT600Strategy(t *testing.T) {
	s := &IT600Strategy{}
	d := s.ToDevice(it600Raw())

	assert.Equal(t, "001E5E0D32906128", d.ID)
	assert.Equal(t, "Living Room", d.Name)
	assert.Equal(t, model.DeviceFamilyIT600, d.Family)
	require.NotNil(t, d.CurrentTemperature)
	assert.Equal(t, 21.5, *d.CurrentTemperature)
	require.NotNil(t, d.TargetTemperature)
	assert.Equal(t, 21.0, *d.TargetTemperature)
	assert.Equal(t, 5.0, d.MinTemperature)
	assert.Equal(t, 30.0, d.MaxTemperature)
	assert.Equal(t, model.PresetPermanentHold, d.Preset)
	assert.Equal(t, model.HVACModeHeat, d.HVACMode)
	assert.Equal(t, model.HVACActionHeating, d.HVACAction)
	assert.True(t, d.Available)
	assert.Equal(t, 2100.0, d.Attributes["HeatingSetpoint_x100"])

	assert.Equal(t, map[string]any{"sIT600TH": map[string]any{"SetHeatingSetpoint_x100": 2250}}, s.SetpointPayload(22.5))
	assert.Equal(t, map[string]any{"sIT600TH": map[string]any{"SetHoldType": 7}}, s.HoldPayload(HoldOff))
}

func TestTherSStrategy(t *testing.T) {
	s := &TherSStrategy{}
	raw := map[string]any{
		"data":     map[string]any{"UniID": "abc"},
		"sTherS":   map[string]any{"LocalTemperature_x100": 1999.0, "HoldType": 7.0, "RunningState": 1.0},
		"sZDOInfo": map[string]any{"OnlineStatus_i": 0.0},
	}
	d := s.ToDevice(raw)

	assert.Equal(t, "abc", d.ID)
	assert.Equal(t, "abc", d.Name, "name falls back to the id")
	assert.Equal(t, 19.99, *d.CurrentTemperature)
	assert.Nil(t, d.TargetTemperature)
	assert.Equal(t, model.PresetOff, d.Preset)
	assert.Equal(t, model.HVACModeOff, d.HVACMode)
	assert.Equal(t, model.HVACActionOff, d.HVACAction)
	assert.False(t, d.Available)
	assert.Equal(t, defaultMinSetpoint, d.MinTemperature)
	assert.Equal(t, defaultMaxSetpoint, d.MaxTemperature)

	assert.Equal(t, map[string]any{"sTherS": map[string]any{"HoldType": 0}}, s.HoldPayload(HoldFollowSchedule))
	assert.Equal(t, map[string]any{"sTherS": map[string]any{"SetHeatingSetpoint_x100": 1825}}, s.SetpointPayload(18.25))
}

func TestHoldMappings(t *testing.T) {
	assert.Equal(t, HoldOff, HoldForPreset(model.PresetOff))
	assert.Equal(t, HoldPermanent, HoldForPreset(model.PresetPermanentHold))
	assert.Equal(t, HoldFollowSchedule, HoldForPreset(model.PresetFollowSchedule))

	assert.Equal(t, HoldOff, HoldForMode(model.HVACModeOff))
	assert.Equal(t, HoldPermanent, HoldForMode(model.HVACModeHeat))
	assert.Equal(t, HoldFollowSchedule, HoldForMode(model.HVACModeAuto))

	assert.Equal(t, model.PresetFollowSchedule, PresetForHold(HoldTemporary))
	assert.Equal(t, model.HVACModeAuto, ModeForHold(HoldTemporary))
}

func TestApplyHold(t *testing.T) {
	d := &model.Device{HVACAction: model.HVACActionHeating}
	ApplyHold(d, HoldOff)
	assert.Equal(t, model.PresetOff, d.Preset)
	assert.Equal(t, model.HVACModeOff, d.HVACMode)
	assert.Equal(t, model.HVACActionOff, d.HVACAction)

	ApplyHold(d, HoldFollowSchedule)
	assert.Equal(t, model.PresetFollowSchedule, d.Preset)
	assert.Equal(t, model.HVACModeAuto, d.HVACMode)
	assert.Equal(t, model.HVACActionIdle, d.HVACAction)
}

func TestApplySetpoint(t *testing.T) {
	d := &model.Device{}
	ApplySetpoint(d, 22.456)
	assert.Equal(t, 22.46, *d.TargetTemperature)
	assert.Nil(t, d.Attributes)
}

func TestApply_KeepsAttributesInStep(t *testing.T) {
	listed := map[string]any{"HeatingSetpoint_x100": 2100.0, "HoldType": 0.0, "RunningState": 1.0}
	d := &model.Device{Attributes: listed}

	ApplySetpoint(d, 19.5)
	ApplyHold(d, HoldPermanent)

	assert.Equal(t, 1950.0, d.Attributes["HeatingSetpoint_x100"])
	assert.Equal(t, float64(HoldPermanent), d.Attributes["HoldType"])
	assert.Equal(t, 1.0, d.Attributes["RunningState"])
	assert.Equal(t, 2100.0, listed["HeatingSetpoint_x100"])
	assert.Equal(t, 0.0, listed["HoldType"])
}

func TestCalibrator(t *testing.T) {
	c, err := NewCalibrator(map[string]string{"abc": "x - 0.5", "def": "x * 2"})
	require.NoError(t, err)

	d := &model.Device{ID: "abc", CurrentTemperature: model.Float64(20)}
	c.Apply(d)
	assert.Equal(t, 19.5, *d.CurrentTemperature)

	other := &model.Device{ID: "zzz", CurrentTemperature: model.Float64(20)}
	c.Apply(other)
	assert.Equal(t, 20.0, *other.CurrentTemperature)

	var nilCal *Calibrator
	nilCal.Apply(d)
	assert.Equal(t, 19.5, *d.CurrentTemperature)

	_, err = NewCalibrator(map[string]string{"abc": "x * ("})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestCalibrator_EvaluateFallback(t *testing.T) {
	c, err := NewCalibrator(map[string]string{"abc": "x > 5"})
	require.NoError(t, err)

	d := &model.Device{ID: "abc", CurrentTemperature: model.Float64(7)}
	c.Apply(d)
	assert.Equal(t, 7.0, *d.CurrentTemperature)
}

func TestFactory(t *testing.T) {
	cal, err := NewCalibrator(map[string]string{"001E5E0D32906128": "x + 1"})
	require.NoError(t, err)
	f := NewFactory(cal)

	tr, ok := f.GetTranslator(model.DeviceFamilyIT600)
	assert.True(t, ok)
	assert.IsType(t, &IT600Strategy{}, tr)
	tr, ok = f.GetTranslator(model.DeviceFamilyTherS)
	assert.True(t, ok)
	assert.IsType(t, &TherSStrategy{}, tr)

	d, ok := f.ToDevice(it600Raw())
	require.True(t, ok)
	assert.Equal(t, 22.5, *d.CurrentTemperature)

	_, ok = f.ToDevice(map[string]any{"data": map[string]any{"UniID": "gw"}, "sGateway": map[string]any{}})
	assert.False(t, ok, "non-climate devices are skipped")

	_, ok = f.ToDevice(map[string]any{"sIT600TH": map[string]any{}})
	assert.False(t, ok, "devices without an id are skipped")
}

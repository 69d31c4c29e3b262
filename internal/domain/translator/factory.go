package translator

import (
	"salus-bridge/internal/domain/model"
)

type Factory struct {
	strategies map[model.DeviceFamily]Translator
	calibrator *Calibrator
}

// NewFactory builds the family strategies. calibrator may be nil.
func NewFactory(calibrator *Calibrator) *Factory {
	return &Factory{
		strategies: map[model.DeviceFamily]Translator{
			model.DeviceFamilyIT600: &IT600Strategy{},
			model.DeviceFamilyTherS: &TherSStrategy{},
		},
		calibrator: calibrator,
	}
}

// Detect reports the family of a raw gateway document, or false when the
// document is not a climate device.
func (f *Factory) Detect(raw map[string]any) (model.DeviceFamily, bool) {
	if _, ok := raw[it600Cluster].(map[string]any); ok {
		return model.DeviceFamilyIT600, true
	}
	if _, ok := raw[thersCluster].(map[string]any); ok {
		return model.DeviceFamilyTherS, true
	}
	return "", false
}

func (f *Factory) GetTranslator(family model.DeviceFamily) (Translator, bool) {
	t, ok := f.strategies[family]
	return t, ok
}

// ToDevice translates a raw document and applies calibration.
func (f *Factory) ToDevice(raw map[string]any) (*model.Device, bool) {
	family, ok := f.Detect(raw)
	if !ok {
		return nil, false
	}
	d := f.strategies[family].ToDevice(raw)
	if d.ID == "" {
		return nil, false
	}
	f.calibrator.Apply(d)
	return d, true
}

package translator

import (
	"salus-bridge/internal/domain/model"
)

// Translator converts between the gateway's raw device documents and
// the bridge's device model for one device family.
type Translator interface {
	ToDevice(raw map[string]any) *model.Device
	SetpointPayload(celsius float64) map[string]any
	HoldPayload(hold HoldType) map[string]any
}

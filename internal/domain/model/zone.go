package model

type ZoneStatus string

const (
	ZoneStatusOK          ZoneStatus = "ok"
	ZoneStatusNotFound    ZoneStatus = "not_found"
	ZoneStatusInvalid     ZoneStatus = "invalid"
	ZoneStatusUnavailable ZoneStatus = "unavailable"
)

// ZoneOutcome is the result of one device's share of a zone command.
type ZoneOutcome struct {
	DeviceID string     `json:"device_id"`
	Status   ZoneStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// Succeeded reports how many outcomes in results are ok.
func Succeeded(results []ZoneOutcome) int {
	n := 0
	for _, r := range results {
		if r.Status == ZoneStatusOK {
			n++
		}
	}
	return n
}

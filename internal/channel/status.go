package channel

import "encoding/json"

// Status is the device report a listener pushes after each applied action.
// Inbound frames are otherwise opaque; this is the one shape we recognize.
type Status struct {
	MainVolume   uint8 `json:"main_volume"`
	Input        uint8 `json:"input"`
	Standby      bool  `json:"standby"`
	Muted        bool  `json:"muted"`
	Input1Effect uint8 `json:"input_1_effect"`
	Input2Effect uint8 `json:"input_2_effect"`
	Input6Effect uint8 `json:"input_6_effect"`
}

// DecodeStatus reports whether data is a status report and returns it.
// A report must carry at least main_volume and standby.
func DecodeStatus(data []byte) (Status, bool) {
	var probe struct {
		MainVolume *uint8 `json:"main_volume"`
		Standby    *bool  `json:"standby"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Status{}, false
	}
	if probe.MainVolume == nil || probe.Standby == nil {
		return Status{}, false
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, false
	}
	return st, true
}

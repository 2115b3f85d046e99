package nrgkick

import (
	"strings"

	"nrgkick-panel/internal/models"
)

// Field candidates are probed in order and the first defined value wins.
// The nested paths of the richer /info,/control,/values API come first;
// flat legacy names from older firmware variants follow as fallbacks.
// New firmware variants extend these lists, they never add branching logic.
var (
	serialCandidates = []string{"general.serial_number", "serial_number", "serialNumber", "sn"}
	modelCandidates  = []string{"general.model_type", "general.device_name", "model_type", "model"}
	fwCandidates     = []string{"versions.sw_sm", "versions.smartmodule", "firmware_version", "sw_version"}
	phasesCandidates = []string{"connector.phase_count", "phase_count", "phases"}
	maxAmpCandidates = []string{"connector.max_current", "general.rated_current", "max_current"}

	stateCandidates     = []string{"general.status", "general.charging_status", "status", "state"}
	powerCandidates     = []string{"powerflow.total_active_power", "powerflow.active_power", "charging_power", "power"}
	sessionWhCandidates = []string{"energy.charged_energy", "powerflow.charged_energy", "charged_energy", "session_energy"}
	totalWhCandidates   = []string{"energy.total_charged_energy", "total_charged_energy", "total_energy"}
	currentCandidates   = []string{"powerflow.total_current", "powerflow.l1.current", "charging_current", "current"}
	voltageCandidates   = []string{"powerflow.l1.voltage", "powerflow.voltage", "voltage"}
	tempCandidates      = []string{"temperatures.housing", "temperatures.main", "temperature", "temp"}

	limitCandidates       = []string{"current_set", "max_current", "charging_current"}
	ctrlPhasesCandidates  = []string{"phase_count", "phases"}
	ctrlPauseCandidates   = []string{"charge_pause", "pause"}
	ctrlCurrentCandidates = []string{"actual_current", "current"}
)

// lookup walks a dotted path through nested JSON objects.
func (d document) lookup(path string) (any, bool) {
	var node any = map[string]any(d)
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func probeString(d document, candidates []string) (string, bool) {
	for _, path := range candidates {
		if value, ok := d.lookup(path); ok {
			if s, ok := value.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func probeFloat(d document, candidates []string) (float64, bool) {
	for _, path := range candidates {
		if value, ok := d.lookup(path); ok {
			if f, ok := value.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func probeInt(d document, candidates []string) (int, bool) {
	if f, ok := probeFloat(d, candidates); ok {
		return int(f), true
	}
	return 0, false
}

func floatPtr(d document, candidates []string) *float64 {
	if f, ok := probeFloat(d, candidates); ok {
		return &f
	}
	return nil
}

func intPtr(d document, candidates []string) *int {
	if i, ok := probeInt(d, candidates); ok {
		return &i
	}
	return nil
}

// boolPtr accepts both JSON booleans and the 0/1 integers older firmware
// reports for flags.
func boolPtr(d document, candidates []string) *bool {
	for _, path := range candidates {
		value, ok := d.lookup(path)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case bool:
			return &v
		case float64:
			b := v != 0
			return &b
		}
	}
	return nil
}

func normalizeDeviceInfo(doc document) models.DeviceInfo {
	info := models.NewDeviceInfo()

	if serial, ok := probeString(doc, serialCandidates); ok {
		info.SerialNumber = serial
	}
	if model, ok := probeString(doc, modelCandidates); ok {
		info.ModelName = model
	}
	if fw, ok := probeString(doc, fwCandidates); ok {
		info.FirmwareVersion = fw
	}
	if phases, ok := probeInt(doc, phasesCandidates); ok {
		info.PhaseCount = phases
	}
	if maxCurrent, ok := probeFloat(doc, maxAmpCandidates); ok {
		info.MaxCurrent = maxCurrent
	}

	return info
}

// normalizeValues fills the measurement side of a status from /values.
func normalizeValues(doc document, status *models.LiveStatus) {
	status.ChargingState = intPtr(doc, stateCandidates)
	status.PowerW = floatPtr(doc, powerCandidates)
	status.SessionWh = floatPtr(doc, sessionWhCandidates)
	status.TotalWh = floatPtr(doc, totalWhCandidates)
	status.CurrentA = floatPtr(doc, currentCandidates)
	status.VoltageV = floatPtr(doc, voltageCandidates)
	status.TemperatureC = floatPtr(doc, tempCandidates)
}

// normalizeControl fills the settings side of a status from /control.
// The measured current from /values wins over the control echo.
func normalizeControl(doc document, status *models.LiveStatus) {
	status.CurrentLimitA = floatPtr(doc, limitCandidates)
	status.PhaseCount = intPtr(doc, ctrlPhasesCandidates)
	status.ChargePaused = boolPtr(doc, ctrlPauseCandidates)
	if status.CurrentA == nil {
		status.CurrentA = floatPtr(doc, ctrlCurrentCandidates)
	}
}

package nrgkick

import (
	"fmt"

	"nrgkick-panel/internal/models"
)

// Display formatting rules are fixed: power and energy arrive in base SI
// units (W, Wh) and are shown in kW/kWh with two decimals; current and
// temperature keep device-native units with one decimal, voltage with none.

func FormatPower(watts *float64) string {
	if watts == nil {
		return models.Placeholder
	}
	return fmt.Sprintf("%.2f kW", *watts/1000)
}

func FormatEnergy(wh *float64) string {
	if wh == nil {
		return models.Placeholder
	}
	return fmt.Sprintf("%.2f kWh", *wh/1000)
}

func FormatCurrent(amps *float64) string {
	if amps == nil {
		return models.Placeholder
	}
	return fmt.Sprintf("%.1f A", *amps)
}

func FormatVoltage(volts *float64) string {
	if volts == nil {
		return models.Placeholder
	}
	return fmt.Sprintf("%.0f V", *volts)
}

func FormatTemperature(celsius *float64) string {
	if celsius == nil {
		return models.Placeholder
	}
	return fmt.Sprintf("%.1f °C", *celsius)
}

// DisplayStatus is the flat, presentation-ready projection of a LiveStatus.
type DisplayStatus struct {
	State            string `json:"state"`
	StateClass       string `json:"state_class"`
	Power            string `json:"power"`
	SessionEnergy    string `json:"session_energy"`
	TotalEnergy      string `json:"total_energy"`
	Current          string `json:"current"`
	Voltage          string `json:"voltage"`
	Temperature      string `json:"temperature"`
	CurrentLimit     string `json:"current_limit"`
	PhaseCount       string `json:"phase_count"`
	VehicleConnected bool   `json:"vehicle_connected"`
}

func NewDisplayStatus(status models.LiveStatus) DisplayStatus {
	state := models.ChargingStateOf(status.ChargingState)

	phases := models.Placeholder
	if status.PhaseCount != nil {
		phases = fmt.Sprintf("%d", *status.PhaseCount)
	}

	return DisplayStatus{
		State:            state.Label,
		StateClass:       state.Class,
		Power:            FormatPower(status.PowerW),
		SessionEnergy:    FormatEnergy(status.SessionWh),
		TotalEnergy:      FormatEnergy(status.TotalWh),
		Current:          FormatCurrent(status.CurrentA),
		Voltage:          FormatVoltage(status.VoltageV),
		Temperature:      FormatTemperature(status.TemperatureC),
		CurrentLimit:     FormatCurrent(status.CurrentLimitA),
		PhaseCount:       phases,
		VehicleConnected: status.VehicleConnected(),
	}
}

package nrgkick

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nrgkick-panel/internal/models"
)

func floatp(v float64) *float64 { return &v }
func intp(v int) *int           { return &v }

func TestFormatPower(t *testing.T) {
	assert.Equal(t, "1.50 kW", FormatPower(floatp(1500)))
	assert.Equal(t, "0.00 kW", FormatPower(floatp(0)))
	assert.Equal(t, "--", FormatPower(nil))
}

func TestFormatEnergy(t *testing.T) {
	assert.Equal(t, "2.35 kWh", FormatEnergy(floatp(2345)))
	assert.Equal(t, "--", FormatEnergy(nil))
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "16.0 A", FormatCurrent(floatp(16)))
	assert.Equal(t, "230 V", FormatVoltage(floatp(230.4)))
	assert.Equal(t, "24.5 °C", FormatTemperature(floatp(24.49)))
}

func TestDisplayStatusChargingStates(t *testing.T) {
	charging := NewDisplayStatus(models.LiveStatus{ChargingState: intp(models.StateCharging)})
	assert.Equal(t, "Charging", charging.State)
	assert.Equal(t, "state-charging", charging.StateClass)
	assert.True(t, charging.VehicleConnected)

	errored := NewDisplayStatus(models.LiveStatus{ChargingState: intp(models.StateError)})
	assert.Equal(t, "Error", errored.State)
	assert.Equal(t, "state-error", errored.StateClass)

	absent := NewDisplayStatus(models.LiveStatus{})
	assert.Equal(t, "--", absent.State)
	assert.Equal(t, "", absent.StateClass)
	assert.False(t, absent.VehicleConnected)
}

func TestDisplayStatusUnrecognizedCode(t *testing.T) {
	display := NewDisplayStatus(models.LiveStatus{ChargingState: intp(42)})

	assert.Equal(t, "Unknown", display.State)
	assert.Equal(t, "", display.StateClass)
}

func TestDisplayStatusValues(t *testing.T) {
	status := models.LiveStatus{
		ChargingState: intp(models.StateCharging),
		PowerW:        floatp(7360),
		SessionWh:     floatp(2345),
		TotalWh:       floatp(1234567),
		CurrentA:      floatp(16),
		VoltageV:      floatp(231.2),
		TemperatureC:  floatp(24.5),
		CurrentLimitA: floatp(16),
		PhaseCount:    intp(3),
	}

	display := NewDisplayStatus(status)

	assert.Equal(t, "7.36 kW", display.Power)
	assert.Equal(t, "2.35 kWh", display.SessionEnergy)
	assert.Equal(t, "1234.57 kWh", display.TotalEnergy)
	assert.Equal(t, "16.0 A", display.Current)
	assert.Equal(t, "231 V", display.Voltage)
	assert.Equal(t, "24.5 °C", display.Temperature)
	assert.Equal(t, "16.0 A", display.CurrentLimit)
	assert.Equal(t, "3", display.PhaseCount)
}

package models

import (
	"time"
)

// ConnectionState tracks the lifecycle of a device session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// DeviceConfig identifies the charger a session talks to. It is resolved
// once at startup and never changes for the lifetime of the session.
type DeviceConfig struct {
	Host     string
	Username string
	Password string
}

func (c DeviceConfig) Configured() bool {
	return c.Host != ""
}

func (c DeviceConfig) HasAuth() bool {
	return c.Username != "" && c.Password != ""
}

// DeviceInfo holds the static identity of the charger, fetched once per
// connect. Fields the device does not report keep their placeholder.
type DeviceInfo struct {
	SerialNumber    string  `json:"serial_number"`
	ModelName       string  `json:"model_name"`
	FirmwareVersion string  `json:"firmware_version"`
	PhaseCount      int     `json:"phase_count"`
	MaxCurrent      float64 `json:"max_current"`
}

// Placeholder is shown for any value the device did not report.
const Placeholder = "--"

func NewDeviceInfo() DeviceInfo {
	return DeviceInfo{
		SerialNumber:    Placeholder,
		ModelName:       Placeholder,
		FirmwareVersion: Placeholder,
	}
}

// Charging state codes as reported by the device.
const (
	StateUnknown  = 0
	StateStandby  = 1
	StateVehicle  = 2
	StateCharging = 3
	StateError    = 6
	StateWakeup   = 7
)

// LiveStatus is the merged result of one poll tick. Nil pointers mean the
// device did not report the value; the previous display value stays stale.
type LiveStatus struct {
	ChargingState *int     `json:"charging_state,omitempty"`
	PowerW        *float64 `json:"power_w,omitempty"`
	SessionWh     *float64 `json:"session_energy_wh,omitempty"`
	TotalWh       *float64 `json:"total_energy_wh,omitempty"`
	CurrentA      *float64 `json:"current_a,omitempty"`
	VoltageV      *float64 `json:"voltage_v,omitempty"`
	TemperatureC  *float64 `json:"temperature_c,omitempty"`
	CurrentLimitA *float64 `json:"current_limit_a,omitempty"`
	PhaseCount    *int     `json:"phase_count,omitempty"`
	ChargePaused  *bool    `json:"charge_paused,omitempty"`
}

// VehicleConnected reports whether a vehicle is plugged in. Any state from
// "connected" upwards counts, including error and wakeup.
func (s LiveStatus) VehicleConnected() bool {
	return s.ChargingState != nil && *s.ChargingState >= StateVehicle
}

// ChargingStateInfo maps a status code to its display label and style class.
type ChargingStateInfo struct {
	Label string `json:"label"`
	Class string `json:"class"`
}

var chargingStates = map[int]ChargingStateInfo{
	StateUnknown:  {Label: "Unknown", Class: ""},
	StateStandby:  {Label: "Standby", Class: "state-standby"},
	StateVehicle:  {Label: "Connected", Class: "state-connected"},
	StateCharging: {Label: "Charging", Class: "state-charging"},
	StateError:    {Label: "Error", Class: "state-error"},
	StateWakeup:   {Label: "Wakeup", Class: "state-wakeup"},
}

// ChargingStateOf returns the display mapping for a status code. Unrecognized
// codes map to Unknown with a neutral style; an absent code maps to the
// placeholder with no style class.
func ChargingStateOf(code *int) ChargingStateInfo {
	if code == nil {
		return ChargingStateInfo{Label: Placeholder, Class: ""}
	}
	if info, ok := chargingStates[*code]; ok {
		return info
	}
	return chargingStates[StateUnknown]
}

// AlertKind classifies user-visible failures.
type AlertKind string

const (
	AlertConfig     AlertKind = "config"
	AlertNetwork    AlertKind = "network"
	AlertDevice     AlertKind = "device"
	AlertValidation AlertKind = "validation"
)

// Alert is a user-visible failure banner. Alerts auto-clear after a fixed
// delay and can be dismissed manually at any time.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
	Raised  time.Time `json:"raised"`
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"nrgkick-panel/internal/models"
	"nrgkick-panel/internal/session"
)

// Collector exposes the latest session snapshot as Prometheus metrics.
// It reads the cached values only and never triggers a device fetch.
type Collector struct {
	session *session.Controller

	connectionState *prometheus.Desc
	chargingState   *prometheus.Desc
	vehicle         *prometheus.Desc
	power           *prometheus.Desc
	sessionEnergy   *prometheus.Desc
	totalEnergy     *prometheus.Desc
	current         *prometheus.Desc
	voltage         *prometheus.Desc
	temperature     *prometheus.Desc
	currentLimit    *prometheus.Desc
	phaseCount      *prometheus.Desc
	info            *prometheus.Desc
}

func NewCollector(sess *session.Controller) *Collector {
	labels := []string{"serial"}
	return &Collector{
		session: sess,
		connectionState: prometheus.NewDesc(
			"nrgkick_connected",
			"Session connection state (1=connected, 0=not connected)",
			labels, nil,
		),
		chargingState: prometheus.NewDesc(
			"nrgkick_charging_state_code",
			"Charging state code reported by the device",
			labels, nil,
		),
		vehicle: prometheus.NewDesc(
			"nrgkick_vehicle_connected",
			"Vehicle plugged in (1=yes, 0=no)",
			labels, nil,
		),
		power: prometheus.NewDesc(
			"nrgkick_power_watts",
			"Charging power in watts",
			labels, nil,
		),
		sessionEnergy: prometheus.NewDesc(
			"nrgkick_session_energy_wh",
			"Energy charged in the current session (Wh)",
			labels, nil,
		),
		totalEnergy: prometheus.NewDesc(
			"nrgkick_total_energy_wh",
			"Total energy charged (Wh)",
			labels, nil,
		),
		current: prometheus.NewDesc(
			"nrgkick_current_amps",
			"Charging current in amps",
			labels, nil,
		),
		voltage: prometheus.NewDesc(
			"nrgkick_voltage_volts",
			"Grid voltage in volts",
			labels, nil,
		),
		temperature: prometheus.NewDesc(
			"nrgkick_temperature_celsius",
			"Device temperature in degrees Celsius",
			labels, nil,
		),
		currentLimit: prometheus.NewDesc(
			"nrgkick_current_limit_amps",
			"Configured charging current limit in amps",
			labels, nil,
		),
		phaseCount: prometheus.NewDesc(
			"nrgkick_phase_count",
			"Number of AC phases used for charging",
			labels, nil,
		),
		info: prometheus.NewDesc(
			"nrgkick_device_info",
			"Device information",
			[]string{"serial", "model", "firmware"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectionState
	ch <- c.chargingState
	ch <- c.vehicle
	ch <- c.power
	ch <- c.sessionEnergy
	ch <- c.totalEnergy
	ch <- c.current
	ch <- c.voltage
	ch <- c.temperature
	ch <- c.currentLimit
	ch <- c.phaseCount
	ch <- c.info
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.session.Snapshot()

	serial := models.Placeholder
	if snap.Info != nil {
		serial = snap.Info.SerialNumber
		ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1,
			snap.Info.SerialNumber, snap.Info.ModelName, snap.Info.FirmwareVersion)
	}

	connected := 0.0
	if snap.State == models.Connected.String() {
		connected = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.connectionState, prometheus.GaugeValue, connected, serial)

	if snap.Status == nil {
		return
	}

	status := snap.Status
	if status.ChargingState != nil {
		ch <- prometheus.MustNewConstMetric(c.chargingState, prometheus.GaugeValue, float64(*status.ChargingState), serial)
	}
	vehicle := 0.0
	if status.VehicleConnected() {
		vehicle = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.vehicle, prometheus.GaugeValue, vehicle, serial)

	c.emitFloat(ch, c.power, status.PowerW, serial)
	c.emitFloat(ch, c.sessionEnergy, status.SessionWh, serial)
	c.emitFloat(ch, c.totalEnergy, status.TotalWh, serial)
	c.emitFloat(ch, c.current, status.CurrentA, serial)
	c.emitFloat(ch, c.voltage, status.VoltageV, serial)
	c.emitFloat(ch, c.temperature, status.TemperatureC, serial)
	c.emitFloat(ch, c.currentLimit, status.CurrentLimitA, serial)
	if status.PhaseCount != nil {
		ch <- prometheus.MustNewConstMetric(c.phaseCount, prometheus.GaugeValue, float64(*status.PhaseCount), serial)
	}
}

func (c *Collector) emitFloat(ch chan<- prometheus.Metric, desc *prometheus.Desc, value *float64, serial string) {
	if value == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, *value, serial)
}

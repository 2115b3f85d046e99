package mqtt

import (
	"encoding/json"
	"strings"

	"nrgkick-panel/internal/models"
)

// Home Assistant MQTT discovery payloads, published retained under
// homeassistant/<component>/<unique_id>/config.

type haDevice struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Model       string   `json:"model,omitempty"`
	SwVersion   string   `json:"sw_version,omitempty"`
}

type haEntity struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic,omitempty"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Min               *int     `json:"min,omitempty"`
	Max               *int     `json:"max,omitempty"`
	Options           []string `json:"options,omitempty"`
	Device            haDevice `json:"device"`
}

func (b *Bridge) publishDiscovery(info models.DeviceInfo) {
	device := haDevice{
		Identifiers: []string{"nrgkick_" + info.SerialNumber},
		Name:        "NRGKick " + info.SerialNumber,
		Model:       info.ModelName,
		SwVersion:   info.FirmwareVersion,
	}
	avail := b.topicRoot + "/availability"

	sensors := []struct {
		name        string
		topic       string
		deviceClass string
		unit        string
	}{
		{"Charging State", "charging_state", "", ""},
		{"Power", "power_w", "power", "W"},
		{"Session Energy", "session_energy_wh", "energy", "Wh"},
		{"Total Energy", "total_energy_wh", "energy", "Wh"},
		{"Current", "current_a", "current", "A"},
		{"Voltage", "voltage_v", "voltage", "V"},
		{"Temperature", "temperature_c", "temperature", "°C"},
	}

	for _, s := range sensors {
		entity := haEntity{
			Name:              s.name,
			UniqueID:          uniqueID(info.SerialNumber, s.topic),
			StateTopic:        b.topicRoot + "/" + s.topic,
			AvailabilityTopic: avail,
			DeviceClass:       s.deviceClass,
			UnitOfMeasurement: s.unit,
			Device:            device,
		}
		if s.unit != "" {
			entity.StateClass = "measurement"
		}
		b.publishConfig("sensor", entity)
	}

	b.publishConfig("binary_sensor", haEntity{
		Name:              "Vehicle Connected",
		UniqueID:          uniqueID(info.SerialNumber, "vehicle_connected"),
		StateTopic:        b.topicRoot + "/vehicle_connected",
		AvailabilityTopic: avail,
		DeviceClass:       "plug",
		PayloadOn:         "1",
		PayloadOff:        "0",
		Device:            device,
	})

	b.publishConfig("switch", haEntity{
		Name:              "Charge Pause",
		UniqueID:          uniqueID(info.SerialNumber, "charge_pause"),
		StateTopic:        b.topicRoot + "/charge_paused",
		CommandTopic:      b.topicRoot + "/set/charge_pause",
		AvailabilityTopic: avail,
		PayloadOn:         "1",
		PayloadOff:        "0",
		Device:            device,
	})

	minAmps, maxAmps := 6, 32
	b.publishConfig("number", haEntity{
		Name:              "Current Limit",
		UniqueID:          uniqueID(info.SerialNumber, "current_limit"),
		StateTopic:        b.topicRoot + "/current_limit_a",
		CommandTopic:      b.topicRoot + "/set/current_limit",
		AvailabilityTopic: avail,
		UnitOfMeasurement: "A",
		Min:               &minAmps,
		Max:               &maxAmps,
		Device:            device,
	})

	b.publishConfig("select", haEntity{
		Name:              "Phase Count",
		UniqueID:          uniqueID(info.SerialNumber, "phase_count"),
		StateTopic:        b.topicRoot + "/phase_count",
		CommandTopic:      b.topicRoot + "/set/phase_count",
		AvailabilityTopic: avail,
		Options:           []string{"1", "3"},
		Device:            device,
	})

	b.logger.Info("Published Home Assistant discovery configs")
}

func (b *Bridge) publishConfig(component string, entity haEntity) {
	payload, err := json.Marshal(entity)
	if err != nil {
		b.logger.Errorf("Marshal discovery config for %s: %v", entity.UniqueID, err)
		return
	}
	topic := "homeassistant/" + component + "/" + entity.UniqueID + "/config"
	b.publish(topic, string(payload), true)
}

func uniqueID(serial, suffix string) string {
	return "nrgkick_" + strings.ToLower(serial) + "_" + suffix
}

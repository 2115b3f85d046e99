package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"nrgkick-panel/internal/config"
	"nrgkick-panel/internal/nrgkick"
	"nrgkick-panel/internal/session"
)

// Bridge publishes session snapshots to an MQTT broker and routes command
// topics back to the session dispatcher. It is optional and only created
// when a broker is configured.
type Bridge struct {
	client  mqtt.Client
	config  *config.Config
	session *session.Controller
	logger  *logrus.Logger

	mu        sync.Mutex
	topicRoot string
}

func NewBridge(cfg *config.Config, sess *session.Controller, logger *logrus.Logger) (*Bridge, error) {
	if !cfg.MQTT.Enabled() {
		return nil, fmt.Errorf("no MQTT broker configured")
	}

	b := &Bridge{
		config:  cfg,
		session: sess,
		logger:  logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID("nrgkick-panel")
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetConnectionLostHandler(b.onConnectionLost)
	opts.SetOnConnectHandler(b.onConnect)

	b.client = mqtt.NewClient(opts)

	return b, nil
}

func (b *Bridge) Connect() error {
	b.logger.Info("Connecting to MQTT broker...")

	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	b.logger.Info("Connected to MQTT broker")
	return nil
}

func (b *Bridge) Disconnect() {
	if root := b.root(); root != "" {
		b.publish(root+"/availability", "offline", true)
	}
	b.logger.Info("Disconnecting from MQTT broker...")
	b.client.Disconnect(250)
}

// Publish pushes one snapshot to the broker. Registered as a session
// listener; topics are rooted at <base_topic>/<serial> once the serial is
// known.
func (b *Bridge) Publish(snap session.Snapshot) {
	if !b.client.IsConnected() {
		return
	}

	root := b.resolveTopicRoot(snap)
	if root == "" {
		return
	}

	b.publish(root+"/availability", "online", true)
	b.publish(root+"/connection", snap.State, true)

	if snap.Status == nil {
		return
	}

	payload, err := json.Marshal(snap.Status)
	if err != nil {
		b.logger.Errorf("Marshal status: %v", err)
		return
	}
	b.publish(root+"/status", string(payload), false)

	state := nrgkick.NewDisplayStatus(*snap.Status)
	b.publish(root+"/charging_state", state.State, false)
	b.publishFloat(root+"/power_w", snap.Status.PowerW)
	b.publishFloat(root+"/session_energy_wh", snap.Status.SessionWh)
	b.publishFloat(root+"/total_energy_wh", snap.Status.TotalWh)
	b.publishFloat(root+"/current_a", snap.Status.CurrentA)
	b.publishFloat(root+"/voltage_v", snap.Status.VoltageV)
	b.publishFloat(root+"/temperature_c", snap.Status.TemperatureC)
	b.publishFloat(root+"/current_limit_a", snap.Status.CurrentLimitA)
	b.publish(root+"/vehicle_connected", boolPayload(snap.Status.VehicleConnected()), false)
	if snap.Status.PhaseCount != nil {
		b.publish(root+"/phase_count", strconv.Itoa(*snap.Status.PhaseCount), false)
	}
	if snap.Status.ChargePaused != nil {
		b.publish(root+"/charge_paused", boolPayload(*snap.Status.ChargePaused), false)
	}
}

// resolveTopicRoot fixes the topic root the first time a serial number is
// seen, publishes Home Assistant discovery, and subscribes to the command
// topics.
func (b *Bridge) resolveTopicRoot(snap session.Snapshot) string {
	b.mu.Lock()
	if b.topicRoot != "" {
		root := b.topicRoot
		b.mu.Unlock()
		return root
	}
	if snap.Info == nil || snap.Info.SerialNumber == "" || snap.Info.SerialNumber == "--" {
		b.mu.Unlock()
		return ""
	}
	root := b.config.MQTT.BaseTopic + "/" + snap.Info.SerialNumber
	b.topicRoot = root
	b.mu.Unlock()

	b.subscribeCommands(root)
	if b.config.MQTT.HADiscovery {
		b.publishDiscovery(*snap.Info)
	}
	return root
}

func (b *Bridge) root() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topicRoot
}

func (b *Bridge) subscribeCommands(root string) {
	commands := map[string]mqtt.MessageHandler{
		root + "/set/charge_pause":  b.handleChargePause,
		root + "/set/current_limit": b.handleCurrentLimit,
		root + "/set/phase_count":   b.handlePhaseCount,
	}

	for topic, handler := range commands {
		if token := b.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			b.logger.Errorf("Failed to subscribe to %s: %v", topic, token.Error())
		} else {
			b.logger.Infof("Subscribed to command topic: %s", topic)
		}
	}
}

func (b *Bridge) handleChargePause(_ mqtt.Client, msg mqtt.Message) {
	payload := string(msg.Payload())
	paused := payload == "1" || payload == "true" || payload == "ON"

	ctx, cancel := commandContext()
	defer cancel()
	if err := b.session.SetChargePause(ctx, paused); err != nil {
		b.logger.Errorf("MQTT charge_pause command failed: %v", err)
	}
}

func (b *Bridge) handleCurrentLimit(_ mqtt.Client, msg mqtt.Message) {
	amps, err := strconv.Atoi(string(msg.Payload()))
	if err != nil {
		b.logger.Errorf("Failed to parse current limit payload %q: %v", msg.Payload(), err)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := b.session.SetCurrentLimit(ctx, amps); err != nil {
		b.logger.Errorf("MQTT current_limit command failed: %v", err)
	}
}

func (b *Bridge) handlePhaseCount(_ mqtt.Client, msg mqtt.Message) {
	phases, err := strconv.Atoi(string(msg.Payload()))
	if err != nil {
		b.logger.Errorf("Failed to parse phase count payload %q: %v", msg.Payload(), err)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := b.session.SetPhaseCount(ctx, phases); err != nil {
		b.logger.Errorf("MQTT phase_count command failed: %v", err)
	}
}

func (b *Bridge) onConnect(client mqtt.Client) {
	b.logger.Info("MQTT connected")
	if root := b.root(); root != "" {
		b.subscribeCommands(root)
		b.publish(root+"/availability", "online", true)
	}
}

func (b *Bridge) onConnectionLost(client mqtt.Client, err error) {
	b.logger.Errorf("MQTT connection lost: %v", err)
}

func (b *Bridge) publish(topic, payload string, retain bool) {
	if token := b.client.Publish(topic, 0, retain, payload); token.Wait() && token.Error() != nil {
		b.logger.Errorf("Failed to publish to %s: %v", topic, token.Error())
	}
}

func (b *Bridge) publishFloat(topic string, value *float64) {
	if value == nil {
		return
	}
	b.publish(topic, strconv.FormatFloat(*value, 'f', -1, 64), false)
}

func boolPayload(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"nrgkick-panel/internal/models"
)

type Config struct {
	Server Server `mapstructure:"server"`
	Device Device `mapstructure:"device"`
	Poll   Poll   `mapstructure:"poll"`
	Panel  Panel  `mapstructure:"panel"`
	MQTT   MQTT   `mapstructure:"mqtt"`
}

type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type Device struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Poll struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type Panel struct {
	// ShowForm reveals the connection form even when the device address
	// is pre-configured.
	ShowForm bool `mapstructure:"show_form"`
}

type MQTT struct {
	Broker      string `mapstructure:"broker"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	BaseTopic   string `mapstructure:"base_topic"`
	HADiscovery bool   `mapstructure:"ha_discovery"`
}

func (m MQTT) Enabled() bool {
	return m.Broker != ""
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("poll.interval_seconds", 2)
	viper.SetDefault("panel.show_form", false)
	viper.SetDefault("mqtt.base_topic", "nrgkick")
	viper.SetDefault("mqtt.ha_discovery", true)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Device.Host == "" {
		config.Device.Host = os.Getenv("NRGKICK_HOST")
	}
	if config.Device.Username == "" {
		config.Device.Username = os.Getenv("NRGKICK_USERNAME")
	}
	if config.Device.Password == "" {
		config.Device.Password = os.Getenv("NRGKICK_PASSWORD")
	}
	if config.MQTT.Broker == "" {
		config.MQTT.Broker = os.Getenv("MQTT_BROKER")
	}
	if config.MQTT.Username == "" {
		config.MQTT.Username = os.Getenv("MQTT_USERNAME")
	}
	if config.MQTT.Password == "" {
		config.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			config.Server.Port = p
		}
	}

	return &config, nil
}

// DeviceConfig returns the immutable per-session device identity.
func (c *Config) DeviceConfig() models.DeviceConfig {
	return models.DeviceConfig{
		Host:     c.Device.Host,
		Username: c.Device.Username,
		Password: c.Device.Password,
	}
}

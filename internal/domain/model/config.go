package model

import "time"

type GatewayConfig struct {
	Host           string        `yaml:"host"`
	EUID           string        `yaml:"euid"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type HTTPConfig struct {
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://mosquitto:1883, empty disables publishing
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type Config struct {
	Gateway         GatewayConfig `yaml:"gateway"`
	HTTP            HTTPConfig    `yaml:"http"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	ZoneConcurrency int           `yaml:"zone_concurrency"`
	Log             LogConfig     `yaml:"log"`
	MQTT            MQTTConfig    `yaml:"mqtt"`
	Tracing         TracingConfig `yaml:"tracing"`

	// Device id -> govaluate expression over x, applied to the reported
	// current temperature (sensor calibration).
	TemperatureFormulas map[string]string `yaml:"temperature_formulas"`
}

// DefaultConfig returns the values used for every key neither the config
// file nor the environment sets.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:           80,
			RequestTimeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			Listen:      ":8000",
			CORSOrigins: []string{"*"},
		},
		ZoneConcurrency: 4,
		Log:             LogConfig{Level: "info", Format: "text"},
		MQTT:            MQTTConfig{TopicPrefix: "salus", ClientID: "salus-bridge"},
	}
}

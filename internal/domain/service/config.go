package service

import (
	"context"
	"errors"
	"fmt"
	"salus-bridge/internal/domain/model"
	"salus-bridge/internal/ports"
	"strconv"
	"strings"
	"time"
)

// ConfigService resolves the bridge configuration: the file repository
// first, then SALUS_* environment variables on top.
type ConfigService struct {
	repo   ports.ConfigRepository
	lookup func(string) (string, bool)
}

func NewConfigService(repo ports.ConfigRepository, lookup func(string) (string, bool)) *ConfigService {
	return &ConfigService{
		repo:   repo,
		lookup: lookup,
	}
}

func (s *ConfigService) Load(ctx context.Context) (*model.Config, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	var errs []error
	s.str("SALUS_GATEWAY_HOST", &cfg.Gateway.Host)
	s.str("SALUS_GATEWAY_EUID", &cfg.Gateway.EUID)
	errs = append(errs, s.integer("SALUS_GATEWAY_PORT", &cfg.Gateway.Port))
	errs = append(errs, s.duration("SALUS_REQUEST_TIMEOUT", &cfg.Gateway.RequestTimeout))
	s.str("SALUS_LISTEN_ADDR", &cfg.HTTP.Listen)
	if v, ok := s.lookup("SALUS_CORS_ORIGINS"); ok {
		cfg.HTTP.CORSOrigins = splitList(v)
	}
	errs = append(errs, s.duration("SALUS_CACHE_TTL", &cfg.CacheTTL))
	errs = append(errs, s.integer("SALUS_ZONE_CONCURRENCY", &cfg.ZoneConcurrency))
	s.str("SALUS_LOG_LEVEL", &cfg.Log.Level)
	s.str("SALUS_LOG_FORMAT", &cfg.Log.Format)
	s.str("SALUS_MQTT_BROKER", &cfg.MQTT.Broker)
	s.str("SALUS_MQTT_TOPIC_PREFIX", &cfg.MQTT.TopicPrefix)
	s.str("SALUS_MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	s.str("SALUS_MQTT_USERNAME", &cfg.MQTT.Username)
	s.str("SALUS_MQTT_PASSWORD", &cfg.MQTT.Password)
	s.str("SALUS_OTLP_ENDPOINT", &cfg.Tracing.OTLPEndpoint)

	errs = append(errs, validate(cfg)...)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *model.Config) []error {
	var errs []error
	if strings.TrimSpace(cfg.Gateway.Host) == "" {
		errs = append(errs, fmt.Errorf("%w: SALUS_GATEWAY_HOST is required", model.ErrInvalidConfig))
	}
	if strings.TrimSpace(cfg.Gateway.EUID) == "" {
		errs = append(errs, fmt.Errorf("%w: SALUS_GATEWAY_EUID is required", model.ErrInvalidConfig))
	}
	if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: gateway port %d out of range", model.ErrInvalidConfig, cfg.Gateway.Port))
	}
	if cfg.Gateway.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: request timeout must be positive", model.ErrInvalidConfig))
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: cache ttl must not be negative", model.ErrInvalidConfig))
	}
	if cfg.ZoneConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: zone concurrency must be at least 1", model.ErrInvalidConfig))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log format %q", model.ErrInvalidConfig, cfg.Log.Format))
	}
	return errs
}

func (s *ConfigService) str(key string, dst *string) {
	if v, ok := s.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (s *ConfigService) integer(key string, dst *int) error {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", model.ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func (s *ConfigService) duration(key string, dst *time.Duration) error {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a duration", model.ErrInvalidConfig, key, v)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

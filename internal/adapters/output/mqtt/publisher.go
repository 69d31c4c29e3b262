// Package mqtt publishes acknowledged device states to a broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"salus-bridge/internal/domain/model"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// client is the part of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client client
	prefix string
	logger *slog.Logger
}

// NewPublisher builds a publisher for cfg. The broker keeps the last state
// of every device (retained messages) and marks the bridge offline through
// the will message when the connection drops.
func NewPublisher(cfg model.MQTTConfig, logger *slog.Logger) *Publisher {
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(statusTopic(prefix), "offline", 1, true)

	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
		if token := c.Publish(statusTopic(prefix), 1, true, "online"); token.Wait() && token.Error() != nil {
			logger.Warn("mqtt online status not published", "error", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return newPublisher(paho.NewClient(opts), prefix, logger)
}

func newPublisher(c client, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{client: c, prefix: prefix, logger: logger}
}

func (p *Publisher) Connect(ctx context.Context) error {
	if err := wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// PublishState sends the device as retained JSON to <prefix>/<id>/state.
func (p *Publisher) PublishState(ctx context.Context, d *model.Device) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	topic := p.StateTopic(d.ID)
	if err := wait(ctx, p.client.Publish(topic, 1, true, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug("state published", "topic", topic)
	return nil
}

func (p *Publisher) StateTopic(id string) string {
	return p.prefix + "/" + id + "/state"
}

func (p *Publisher) Close() error {
	p.client.Publish(statusTopic(p.prefix), 1, true, "offline").WaitTimeout(time.Second)
	p.client.Disconnect(250)
	return nil
}

func statusTopic(prefix string) string {
	return prefix + "/bridge/status"
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

package mqtt

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/observability/metrics"
	"github.com/campuskit/faceroll/internal/privacy"
	"github.com/campuskit/faceroll/internal/session"
)

// Component identifier for MQTT errors
const ComponentMQTT = "mqtt"

// client implements the Client interface over paho.
type client struct {
	config          Config
	metrics         *metrics.MQTTMetrics
	mu              sync.Mutex
	internalClient  pahomqtt.Client
	lastConnAttempt time.Time
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopOnce        sync.Once
}

// NewClient creates an MQTT client from the realtime settings. The
// broker URL and topic must be configured; everything else takes the
// defaults.
func NewClient(settings *conf.Settings, m *metrics.MQTTMetrics) (Client, error) {
	mq := settings.Realtime.MQTT
	if mq.Broker == "" {
		return nil, errors.Newf("mqtt: broker URL is not configured").
			Component(ComponentMQTT).
			Category(errors.CategoryValidation).
			Context("setting", "realtime.mqtt.broker").
			Build()
	}
	if mq.Topic == "" {
		return nil, errors.Newf("mqtt: topic is not configured").
			Component(ComponentMQTT).
			Category(errors.CategoryValidation).
			Context("setting", "realtime.mqtt.topic").
			Build()
	}

	cfg := DefaultConfig()
	cfg.Broker = mq.Broker
	cfg.ClientID = settings.Main.Name
	cfg.Username = mq.Username
	cfg.Password = mq.Password
	cfg.Topic = mq.Topic

	return &client{
		config:        cfg,
		metrics:       m,
		reconnectStop: make(chan struct{}),
	}, nil
}

// Connect resolves the broker host and establishes the connection.
// Attempts within the reconnect cooldown are rejected so a flapping
// broker cannot trigger a connect storm.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("mqtt: connection attempt too recent, last was %v ago", since.Round(time.Millisecond)).
			Component(ComponentMQTT).
			Category(errors.CategoryMQTTConnection).
			Context("cooldown", c.config.ReconnectCooldown.String()).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return errors.New(err).
			Component(ComponentMQTT).
			Category(errors.CategoryValidation).
			Context("broker", privacy.SanitizeBrokerURL(c.config.Broker)).
			Build()
	}

	// Resolving up front turns a bad hostname into a clear error
	// instead of a paho retry loop.
	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(err).
				Component(ComponentMQTT).
				Category(errors.CategoryMQTTConnection).
				Context("host", host).
				Build()
		}
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = pahomqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return errors.Newf("mqtt: connection timeout after %v", c.config.ConnectTimeout).
			Component(ComponentMQTT).
			Category(errors.CategoryMQTTConnection).
			Context("broker", privacy.SanitizeBrokerURL(c.config.Broker)).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component(ComponentMQTT).
			Category(errors.CategoryMQTTConnection).
			Context("broker", privacy.SanitizeBrokerURL(c.config.Broker)).
			Build()
	}

	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
	return nil
}

// Publish sends a message to the given topic.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		return errors.Newf("mqtt: not connected to broker").
			Component(ComponentMQTT).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		timer := c.metrics.StartPublishTimer()
		defer timer.ObserveDuration()
	}

	token := internal.Publish(topic, 0, c.config.Retain, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		return errors.Newf("mqtt: publish timeout after %v", c.config.PublishTimeout).
			Component(ComponentMQTT).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		return errors.New(err).
			Component(ComponentMQTT).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		c.metrics.IncrementMessagesDelivered()
		c.metrics.ObserveMessageSize(float64(len(payload)))
	}
	getLogger().Debug("published attendance message",
		"topic", topic,
		"size", len(payload))
	return nil
}

// PublishEvent serializes one attendance event and publishes it to
// the configured topic.
func (c *client) PublishEvent(ctx context.Context, ev session.Event) error {
	payload, err := json.Marshal(&ev)
	if err != nil {
		return errors.New(err).
			Component(ComponentMQTT).
			Category(errors.CategoryMQTTPublish).
			Context("person_id", ev.PersonID).
			Build()
	}
	return c.Publish(ctx, c.config.Topic, string(payload))
}

// IsConnected reports whether the broker connection is up.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the broker connection and stops any pending
// reconnect. Safe to call more than once.
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internalClient
	timer := c.reconnectTimer
	c.mu.Unlock()

	if internal != nil && internal.IsConnected() {
		internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		if c.metrics != nil {
			c.metrics.UpdateConnectionStatus(false)
		}
	}
	if timer != nil {
		timer.Stop()
	}
	c.stopOnce.Do(func() { close(c.reconnectStop) })
}

func (c *client) onConnect(_ pahomqtt.Client) {
	getLogger().Info("connected to MQTT broker", "broker", privacy.SanitizeBrokerURL(c.config.Broker))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
}

func (c *client) onConnectionLost(_ pahomqtt.Client, err error) {
	getLogger().Warn("connection to MQTT broker lost",
		"broker", privacy.SanitizeBrokerURL(c.config.Broker),
		"error", err)
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
		c.metrics.IncrementErrors()
	}
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
		default:
			c.reconnectWithBackoff()
		}
	})
}

// reconnectWithBackoff retries the connection with exponential
// backoff until it succeeds or Disconnect stops it.
func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	const maxBackoff = 5 * time.Minute

	for {
		if c.metrics != nil {
			c.metrics.IncrementReconnectAttempts()
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			getLogger().Info("reconnected to MQTT broker", "broker", privacy.SanitizeBrokerURL(c.config.Broker))
			return
		}

		getLogger().Warn("MQTT reconnect failed",
			"broker", privacy.SanitizeBrokerURL(c.config.Broker),
			"retry_in", backoff.String(),
			"error", err)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		case <-c.reconnectStop:
			return
		}
	}
}

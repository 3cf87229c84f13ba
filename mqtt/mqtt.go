package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"climate-monitor/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

type Options struct {
	Broker   string
	Port     int
	ClientID string
	// Topic carries raw sensor records to ingest. Empty disables ingest.
	Topic string
	// AlertTopic receives published alerts.
	AlertTopic string
}

// Client ingests raw sensor records from one topic and publishes alerts to
// another over a single broker connection.
type Client struct {
	client mqtt.Client
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	handler   func(models.RawRecord) error

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	o.SetClientID(opts.ClientID)
	o.SetCleanSession(true)

	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(5 * time.Second)
	o.SetMaxReconnectInterval(60 * time.Second)

	o.SetKeepAlive(30 * time.Second)
	o.SetPingTimeout(10 * time.Second)

	// Subscribing from the connect callback restores the subscription after
	// every automatic reconnect.
	o.SetOnConnectHandler(func(client mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", opts.Broker, "port", opts.Port)
		c.subscribe(client)
	})
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(o)
	return c
}

// SetMessageHandler registers the callback for every valid ingested record.
func (c *Client) SetMessageHandler(handler func(models.RawRecord) error) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Connect starts connecting and waits until the broker accepts the
// connection, ctx is done, or the client is stopped.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.client.Disconnect(0)
		return ctx.Err()
	case <-c.stopCh:
		c.client.Disconnect(0)
		return ErrStopped
	}
}

// Publish sends the alert as JSON on the alert topic with QoS 1.
func (c *Client) Publish(ctx context.Context, alert models.Alert) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	token := c.client.Publish(c.opts.AlertTopic, 1, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s: %w", c.opts.AlertTopic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) subscribe(client mqtt.Client) {
	topic := c.opts.Topic
	if topic == "" {
		return
	}
	const qos = byte(1)
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Topic(), msg.Payload())
	})
	// Waiting inside the connect callback would block paho's router.
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			c.logger.Warn("mqtt subscribe timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Error("mqtt subscribe failed", "topic", topic, "error", err)
			return
		}
		c.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	}()
}

func (c *Client) handleMessage(topic string, payload []byte) {
	c.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var rec models.RawRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		c.logger.Warn("failed to parse sensor message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}
	if err := rec.Validate(); err != nil {
		c.logger.Warn("invalid sensor message", "topic", topic, "error", err)
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}
	if err := handler(rec); err != nil {
		c.logger.Error("message handler failed", "topic", topic, "error", err)
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. Safe to call more than once.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.IsConnected() && c.opts.Topic != "" {
		token := c.client.Unsubscribe(c.opts.Topic)
		token.WaitTimeout(2 * time.Second)
	}
	c.client.Disconnect(250)
	c.setConnected(false)
	c.logger.Info("mqtt client disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

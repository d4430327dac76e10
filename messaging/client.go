// Package messaging publishes rack events to Kafka or MQTT.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"rackcore/config"
)

// ErrDisabled is returned by Publish when no backend is configured.
var ErrDisabled = errors.New("messaging disabled")

const connectTimeout = 5 * time.Second

type Client struct {
	mu     sync.RWMutex
	cfg    config.MessagingConfig
	writer *kafka.Writer
	mqtt   mqtt.Client
}

func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: *cfg}
}

func (c *Client) Backend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Backend
}

// Connect opens the configured backend. "none" connects to nothing.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	switch c.cfg.Backend {
	case "kafka":
		return c.connectKafka()
	case "mqtt":
		return c.connectMQTT()
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported messaging backend: %s", c.cfg.Backend)
	}
}

// connectKafka installs the writer even when the probe dial fails; the
// writer dials per batch, so publishing resumes once a broker is reachable.
func (c *Client) connectKafka() error {
	if len(c.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}
	c.writer = &kafka.Writer{
		Addr:                   kafka.TCP(c.cfg.Kafka.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	conn, err := kafka.DialContext(ctx, "tcp", c.cfg.Kafka.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial %s: %w", c.cfg.Kafka.Brokers[0], err)
	}
	conn.Close()
	return nil
}

func (c *Client) connectMQTT() error {
	if c.cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt: no broker configured")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.MQTT.Broker).
		SetClientID(c.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("messaging: mqtt connection lost: %v", err)
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect %s: timeout", c.cfg.MQTT.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.cfg.MQTT.Broker, err)
	}
	c.mqtt = client
	return nil
}

// IsConnected reports whether Publish can be attempted. For Kafka that is
// true as long as a writer exists; a failed write does not latch it off.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mqtt != nil {
		return c.mqtt.IsConnectionOpen()
	}
	return c.writer != nil
}

// Publish sends one message. key is used for Kafka partitioning and ignored by MQTT.
func (c *Client) Publish(topic, key string, data []byte) error {
	c.mu.RLock()
	writer, client, qos := c.writer, c.mqtt, c.cfg.MQTT.QoS
	c.mu.RUnlock()

	switch {
	case writer != nil:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: data})
	case client != nil:
		token := client.Publish(topic, qos, false, data)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("mqtt publish %s: timeout", topic)
		}
		return token.Error()
	default:
		return ErrDisabled
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			log.Printf("messaging: close kafka writer: %v", err)
		}
		c.writer = nil
	}
	if c.mqtt != nil {
		c.mqtt.Disconnect(250)
		c.mqtt = nil
	}
}

// Reconfigure closes the current backend and connects with cfg.
func (c *Client) Reconfigure(cfg *config.MessagingConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.cfg = *cfg
	return c.connectLocked()
}

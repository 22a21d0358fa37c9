// Package messaging connects the service to the factory floor: sensor
// readings arrive over MQTT, raised alerts fan out to downstream
// consumers over Kafka. Either side can be disabled in config and the
// rest of the service runs without it.
package messaging

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"binwatch/config"
)

// ReadingHandler receives one raw sensor reading with the bin identity
// parsed out of the topic.
type ReadingHandler func(binID string, payload []byte)

type Client struct {
	mu       sync.RWMutex
	cfg      *config.MessagingConfig
	mqttConn mqtt.Client
	kafkaW   *kafka.Writer
}

func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect brings up whichever transports are enabled. An MQTT failure
// is fatal (no readings means no service); Kafka setup cannot fail
// until the first publish.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MQTT.Enabled {
		if err := c.connectMQTT(); err != nil {
			return err
		}
	}
	if c.cfg.Kafka.Enabled {
		c.connectKafka()
	}
	return nil
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.mqttConn = client
	log.Printf("messaging: mqtt connected to %s", broker)
	return nil
}

func (c *Client) connectKafka() {
	c.kafkaW = &kafka.Writer{
		Addr:         kafka.TCP(c.cfg.Kafka.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	c.ensureAlertTopic()
	log.Printf("messaging: kafka writer ready for %v", c.cfg.Kafka.Brokers)
}

// ensureAlertTopic creates the alerts topic if the cluster does not
// have it yet. Errors are logged but not fatal since the broker may
// auto-create topics anyway.
func (c *Client) ensureAlertTopic() {
	var conn *kafka.Conn
	var err error
	for _, broker := range c.cfg.Kafka.Brokers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn, err = kafka.DialContext(ctx, "tcp", broker)
		cancel()
		if err == nil {
			break
		}
	}
	if err != nil {
		log.Printf("messaging: kafka not reachable for topic creation: %v", err)
		return
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Printf("messaging: cannot find controller for topic creation: %v", err)
		return
	}
	controllerConn, err := kafka.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Printf("messaging: cannot connect to controller: %v", err)
		return
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             c.cfg.AlertsTopic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.Printf("messaging: topic auto-create: %v", err)
	}
}

// SubscribeReadings registers a handler for sensor readings. The
// readings topic carries the bin identity in its second segment
// (bins/<bin_id>/reading); messages on malformed topics are dropped.
func (c *Client) SubscribeReadings(handler ReadingHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mqttConn == nil {
		return fmt.Errorf("mqtt not connected")
	}
	token := c.mqttConn.Subscribe(c.cfg.ReadingsTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		binID, ok := binIDFromTopic(msg.Topic())
		if !ok {
			log.Printf("messaging: reading on unexpected topic %q, dropped", msg.Topic())
			return
		}
		handler(binID, msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", c.cfg.ReadingsTopic, err)
	}
	log.Printf("messaging: subscribed to %s", c.cfg.ReadingsTopic)
	return nil
}

func binIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Publish writes one message to a Kafka topic.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.kafkaW == nil {
		return fmt.Errorf("kafka not connected")
	}
	return c.kafkaW.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: payload,
	})
}

// KafkaEnabled reports whether the alert feed transport is up.
func (c *Client) KafkaEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kafkaW != nil
}

// MQTTConnected reports whether the readings transport is up.
func (c *Client) MQTTConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttConn != nil && c.mqttConn.IsConnected()
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	if c.kafkaW != nil {
		c.kafkaW.Close()
		c.kafkaW = nil
	}
}

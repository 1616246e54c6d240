package mqtt

import (
	"fmt"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/evtop/evtop/internal/engine"
)

// SubscriberConfig holds the broker connection settings.
type SubscriberConfig struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Username string
	Password string
}

// Subscriber handles the MQTT connection and message processing.
type Subscriber struct {
	config *SubscriberConfig
	client pahomqtt.Client
	engine *engine.Engine
	logger zerolog.Logger

	// Statistics
	messagesReceived atomic.Int64
	messagesFailed   atomic.Int64
	eventsIngested   atomic.Int64
	bytesReceived    atomic.Int64
}

// NewSubscriber creates an MQTT subscriber feeding the engine.
func NewSubscriber(config *SubscriberConfig, eng *engine.Engine, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		config: config,
		engine: eng,
		logger: logger.With().Str("component", "mqtt").Str("topic", config.Topic).Logger(),
	}
}

// Start connects to the broker and subscribes.
func (s *Subscriber) Start() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(s.config.Broker).
		SetClientID(s.config.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			s.logger.Warn().Err(err).Msg("Connection lost, reconnecting")
		}).
		SetOnConnectHandler(func(client pahomqtt.Client) {
			// Resubscribe after every (re)connect.
			token := client.Subscribe(s.config.Topic, s.config.QoS, s.handleMessage)
			token.Wait()
			if token.Error() != nil {
				s.logger.Error().Err(token.Error()).Msg("Subscribe failed")
				return
			}
			s.logger.Info().Msg("Subscribed")
		})

	if s.config.Username != "" {
		opts.SetUsername(s.config.Username)
		opts.SetPassword(s.config.Password)
	}

	s.client = pahomqtt.NewClient(opts)

	token := s.client.Connect()
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker %s: %w", s.config.Broker, token.Error())
	}

	s.logger.Info().Str("broker", s.config.Broker).Msg("MQTT subscriber started")
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	s.logger.Info().
		Int64("messages", s.messagesReceived.Load()).
		Int64("failed", s.messagesFailed.Load()).
		Int64("events", s.eventsIngested.Load()).
		Msg("MQTT subscriber stopped")
}

func (s *Subscriber) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	s.messagesReceived.Add(1)
	s.bytesReceived.Add(int64(len(msg.Payload())))

	events, err := decodeBatch(msg.Payload())
	if err != nil {
		s.messagesFailed.Add(1)
		s.logger.Warn().Err(err).Msg("Dropping malformed message")
		return
	}

	for _, evt := range events {
		s.engine.Submit(evt)
	}
	s.eventsIngested.Add(int64(len(events)))
}

// Stats returns the subscriber counters.
func (s *Subscriber) Stats() (received, failed, events, bytes int64) {
	return s.messagesReceived.Load(), s.messagesFailed.Load(),
		s.eventsIngested.Load(), s.bytesReceived.Load()
}

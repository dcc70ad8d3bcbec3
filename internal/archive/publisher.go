// Package archive publishes a copy of every inbound location request to a
// message bus before the request is parsed. The bus is reached through
// watermill, either over NATS or an in-process channel.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Metadata keys set on every published message.
const (
	MetaExchange   = "exchange"
	MetaRoutingKey = "routing_key"
	MetaDevID      = "devid"
	MetaReceivedAt = "received_at"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher is closed")

var publishTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archive_publish_total",
		Help: "Raw messages published to the bus, by result.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(publishTotal)
}

// Publisher sends a payload to exchange under routingKey.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload []byte) error
}

// Message is an outbound payload with its metadata.
type Message struct {
	Payload  []byte
	Metadata map[string]string
}

// WatermillPublisher implements Publisher over a watermill message.Publisher.
// The topic is "{exchange}.{routingKey}".
type WatermillPublisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	setMsgID       bool

	mu     sync.RWMutex
	closed bool
}

// NewWatermillPublisher wraps pub.
func NewWatermillPublisher(pub message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: pub}
}

// SetCircuitBreaker routes every publish through cb.
func (p *WatermillPublisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// Publish implements Publisher.
func (p *WatermillPublisher) Publish(ctx context.Context, exchange, routingKey string, payload []byte) error {
	return p.PublishMessage(ctx, exchange, routingKey, Message{Payload: payload})
}

// PublishMessage publishes m, adding the exchange and routing key to its
// metadata.
func (p *WatermillPublisher) PublishMessage(ctx context.Context, exchange, routingKey string, m Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		publishTotal.WithLabelValues("error").Inc()
		return ErrClosed
	}

	msg := message.NewMessage(watermill.NewUUID(), m.Payload)
	msg.SetContext(ctx)
	for k, v := range m.Metadata {
		msg.Metadata.Set(k, v)
	}
	msg.Metadata.Set(MetaExchange, exchange)
	msg.Metadata.Set(MetaRoutingKey, routingKey)
	if p.setMsgID {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	topic := exchange + "." + routingKey

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (interface{}, error) {
			return nil, p.publisher.Publish(topic, msg)
		})
	} else {
		err = p.publisher.Publish(topic, msg)
	}
	if err != nil {
		publishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	publishTotal.WithLabelValues("ok").Inc()
	return nil
}

// Close closes the underlying publisher. It is safe to call more than once.
func (p *WatermillPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// NATSConfig configures NewNATSPublisher.
type NATSConfig struct {
	URL           string
	JetStream     bool
	MaxReconnects int
	ReconnectWait time.Duration
}

// NewNATSPublisher connects to NATS. With JetStream enabled, streams are
// auto-provisioned and messages carry a Nats-Msg-Id for server-side dedup.
func NewNATSPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (*WatermillPublisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: cfg.JetStream,
			TrackMsgId:    cfg.JetStream,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	p := NewWatermillPublisher(pub)
	p.setMsgID = cfg.JetStream
	return p, nil
}

// NewMemoryPublisher returns a publisher over an in-process channel together
// with the channel itself, so callers can subscribe to archived messages.
func NewMemoryPublisher(logger watermill.LoggerAdapter) (*WatermillPublisher, *gochannel.GoChannel) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return NewWatermillPublisher(ch), ch
}

// NewCircuitBreaker opens after failures consecutive publish errors and
// probes again after timeout.
func NewCircuitBreaker(name string, failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
}

// Package eventbus carries interaction events from the API to the
// personalization feed over watermill, in-process or via NATS JetStream.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
	"github.com/kailas-cloud/discovery/internal/metrics"
)

// Drivers.
const (
	DriverMemory = "memory"
	DriverNATS   = "nats"
)

// DefaultTopic is the interaction event topic.
const DefaultTopic = "discovery.interactions"

// Config selects and tunes the transport.
type Config struct {
	Driver           string
	URL              string
	Topic            string
	QueueGroup       string
	DurableName      string
	SubscribersCount int
	AckWait          time.Duration
	MaxDeliver       int
	MaxReconnects    int
	ReconnectWait    time.Duration
	// Buffer is the in-process channel size.
	Buffer int64
}

// Handler consumes one decoded event. A non-nil error nacks the message
// for redelivery.
type Handler func(ctx context.Context, ev dominteraction.Event) error

// Bus publishes and consumes interaction events.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	shared bool
	topic  string
	logger *zap.Logger
}

// New builds a bus for cfg.Driver.
func New(cfg Config, logger *zap.Logger) (*Bus, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	wlog := NewLoggerAdapter(logger.Named("watermill"))

	switch cfg.Driver {
	case "", DriverMemory:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.Buffer}, wlog)
		return &Bus{pub: ch, sub: ch, shared: true, topic: cfg.Topic, logger: logger}, nil
	case DriverNATS:
		return newNATS(cfg, wlog, logger)
	default:
		return nil, fmt.Errorf("unknown event bus driver %q", cfg.Driver)
	}
}

func newNATS(cfg Config, wlog watermill.LoggerAdapter, logger *zap.Logger) (*Bus, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWait,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: cfg.DurableName,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(cfg.MaxDeliver),
				natsgo.AckWait(cfg.AckWait),
			},
		},
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Bus{pub: pub, sub: sub, topic: cfg.Topic, logger: logger}, nil
}

// Publish sends ev. The event id doubles as the message id, so JetStream
// drops re-published duplicates inside its dedup window.
func (b *Bus) Publish(_ context.Context, ev dominteraction.Event) error {
	data, err := encode(&ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(ev.ID(), data)
	msg.Metadata.Set(natsgo.MsgIdHdr, ev.ID())
	msg.Metadata.Set("user_id", ev.UserID())

	if err := b.pub.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.ID(), err)
	}
	return nil
}

// Consume subscribes to the topic and hands events to h in the background
// until ctx is cancelled or the bus is closed. The returned channel is
// closed when consumption stops. A message is acked once h returns nil and
// nacked for redelivery otherwise. Undecodable messages are acked and
// counted; they would never succeed.
func (b *Bus) Consume(ctx context.Context, h Handler) (<-chan struct{}, error) {
	messages, err := b.sub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.process(msg, h)
			}
		}
	}()
	return done, nil
}

func (b *Bus) process(msg *message.Message, h Handler) {
	ev, err := decode(msg.Payload)
	if err != nil {
		metrics.FeedEventsTotal.WithLabelValues("invalid").Inc()
		b.logger.Warn("Discarding invalid interaction event",
			zap.String("message_uuid", msg.UUID),
			zap.Error(err),
		)
		msg.Ack()
		return
	}

	if err := h(msg.Context(), ev); err != nil {
		b.logger.Warn("Interaction event handler failed",
			zap.String("event_id", ev.ID()),
			zap.Error(err),
		)
		msg.Nack()
		return
	}
	msg.Ack()
}

// Close shuts down the publisher and subscriber.
func (b *Bus) Close() error {
	var errs []error
	if err := b.pub.Close(); err != nil {
		errs = append(errs, err)
	}
	if !b.shared {
		if err := b.sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package messaging

import (
	"context"
	"fmt"
	"net"
	"time"

	"api/internal/models"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/jetstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	natsJs "github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// ackWait bounds how long JetStream waits for the notifications worker to
// ack a delivery before handing it out again.
const ackWait = 5 * time.Second

func dialNATS(config *models.JetStreamEventsConfig) *nats.Conn {
	address := net.JoinHostPort(config.Host, config.Port)
	nc, err := nats.Connect(address)
	if err != nil {
		zap.L().Fatal("Cannot reach NATS", zap.String("address", address), zap.Error(err))
	}
	return nc
}

type jetStreamPublisher struct {
	topic     string
	publisher *jetstream.Publisher
}

func NewJetStreamPublisher(config *models.JetStreamEventsConfig, topic string) IPublisher {
	publisher, err := jetstream.NewPublisher(jetstream.PublisherConfig{
		Conn: dialNATS(config),
	})
	if err != nil {
		zap.L().Fatal("Cannot build JetStream publisher", zap.Error(err))
	}

	return &jetStreamPublisher{topic: topic, publisher: publisher}
}

func (p *jetStreamPublisher) Publish(messages ...*message.Message) error {
	return p.publisher.Publish(p.topic, messages...)
}

func (p *jetStreamPublisher) Close() error {
	return p.publisher.Close()
}

type jetStreamSubscriber struct {
	topic      string
	subscriber *jetstream.Subscriber
}

// NewJetStreamSubscriber provisions a work-queue stream and a durable
// consumer for the topic, then binds to that consumer. Deliveries therefore
// survive worker restarts and are shared between replicas.
func NewJetStreamSubscriber(config *models.JetStreamEventsConfig, topic string) ISubscriber {
	nc := dialNATS(config)

	js, err := natsJs.New(nc)
	if err != nil {
		zap.L().Fatal("Cannot open JetStream context", zap.Error(err))
	}

	stream, err := js.CreateStream(context.Background(), natsJs.StreamConfig{
		Name:      topic,
		Subjects:  []string{topic},
		Retention: natsJs.WorkQueuePolicy,
	})
	if err != nil {
		zap.L().Fatal("Cannot provision stream", zap.String("stream", topic), zap.Error(err))
	}

	consumer := fmt.Sprintf("%s_worker", topic)
	_, err = stream.CreateOrUpdateConsumer(context.Background(), natsJs.ConsumerConfig{
		Name:      consumer,
		AckPolicy: natsJs.AckExplicitPolicy,
	})
	if err != nil {
		zap.L().Fatal("Cannot provision consumer", zap.String("consumer", consumer), zap.Error(err))
	}

	var configurator jetstream.ConsumerConfigurator
	subscriber, err := jetstream.NewSubscriber(jetstream.SubscriberConfig{
		Conn:                nc,
		AckWaitTimeout:      ackWait,
		ResourceInitializer: jetstream.ExistingConsumer(configurator, consumer),
		Logger:              watermill.NopLogger{},
	})
	if err != nil {
		zap.L().Fatal("Cannot build JetStream subscriber", zap.Error(err))
	}

	return &jetStreamSubscriber{topic: topic, subscriber: subscriber}
}

func (s *jetStreamSubscriber) Subscribe() <-chan *message.Message {
	deliveries, err := s.subscriber.Subscribe(context.Background(), s.topic)
	if err != nil {
		zap.L().Fatal("Cannot subscribe", zap.String("topic", s.topic), zap.Error(err))
	}
	return deliveries
}

func (s *jetStreamSubscriber) Close() error {
	return s.subscriber.Close()
}

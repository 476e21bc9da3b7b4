package messaging

import (
	"context"

	"api/internal/models"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-googlecloud/pkg/googlecloud"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

type pubSubPublisher struct {
	topic     string
	publisher *googlecloud.Publisher
}

func NewGCPPublisher(config *models.PubSubConfiguration, topic string) IPublisher {
	publisher, err := googlecloud.NewPublisher(googlecloud.PublisherConfig{
		ProjectID: config.ProjectID,
	}, watermill.NopLogger{})
	if err != nil {
		zap.L().Fatal("Cannot build Pub/Sub publisher", zap.Error(err))
	}

	return &pubSubPublisher{topic: topic, publisher: publisher}
}

func (p *pubSubPublisher) Publish(messages ...*message.Message) error {
	return p.publisher.Publish(p.topic, messages...)
}

func (p *pubSubPublisher) Close() error {
	return p.publisher.Close()
}

type pubSubSubscriber struct {
	topic      string
	subscriber *googlecloud.Subscriber
}

// NewGCPSubscriber binds to a pre-provisioned subscription named after the
// topic plus a per-deployment suffix, so environments sharing a project do
// not steal each other's deliveries.
func NewGCPSubscriber(config *models.PubSubConfiguration, topic string) ISubscriber {
	subscriber, err := googlecloud.NewSubscriber(
		googlecloud.SubscriberConfig{
			ProjectID: config.ProjectID,
			GenerateSubscriptionName: func(topic string) string {
				return topic + config.SubscriptionSuffix
			},
			DoNotCreateSubscriptionIfMissing: true,
		},
		watermill.NopLogger{},
	)
	if err != nil {
		zap.L().Fatal("Cannot build Pub/Sub subscriber", zap.Error(err))
	}

	return &pubSubSubscriber{topic: topic, subscriber: subscriber}
}

func (s *pubSubSubscriber) Subscribe() <-chan *message.Message {
	deliveries, err := s.subscriber.Subscribe(context.Background(), s.topic)
	if err != nil {
		zap.L().Fatal("Cannot subscribe", zap.String("topic", s.topic), zap.Error(err))
	}
	return deliveries
}

func (s *pubSubSubscriber) Close() error {
	return s.subscriber.Close()
}

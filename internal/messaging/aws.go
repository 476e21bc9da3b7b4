package messaging

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"
)

// Queues are provisioned by infrastructure, never from here, so a missing
// queue surfaces as a deployment fault instead of being papered over.
func loadAWSEnvironment() awssdk.Config {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		zap.L().Fatal("Cannot load AWS configuration", zap.Error(err))
	}
	return cfg
}

type sqsPublisher struct {
	queue     string
	publisher *sqs.Publisher
}

func NewAWSPublisher(queueName string) IPublisher {
	publisher, err := sqs.NewPublisher(sqs.PublisherConfig{
		AWSConfig:                   loadAWSEnvironment(),
		DoNotCreateQueueIfNotExists: true,
		Marshaler:                   sqs.DefaultMarshalerUnmarshaler{},
	}, watermill.NopLogger{})
	if err != nil {
		zap.L().Fatal("Cannot build SQS publisher", zap.Error(err))
	}

	return &sqsPublisher{queue: queueName, publisher: publisher}
}

func (p *sqsPublisher) Publish(messages ...*message.Message) error {
	return p.publisher.Publish(p.queue, messages...)
}

func (p *sqsPublisher) Close() error {
	return p.publisher.Close()
}

type sqsSubscriber struct {
	queue      string
	subscriber *sqs.Subscriber
}

func NewAWSSubscriber(queueName string) ISubscriber {
	subscriber, err := sqs.NewSubscriber(sqs.SubscriberConfig{
		AWSConfig:                   loadAWSEnvironment(),
		DoNotCreateQueueIfNotExists: true,
	}, watermill.NopLogger{})
	if err != nil {
		zap.L().Fatal("Cannot build SQS subscriber", zap.Error(err))
	}

	return &sqsSubscriber{queue: queueName, subscriber: subscriber}
}

func (s *sqsSubscriber) Subscribe() <-chan *message.Message {
	deliveries, err := s.subscriber.Subscribe(context.Background(), s.queue)
	if err != nil {
		zap.L().Fatal("Cannot subscribe", zap.String("queue", s.queue), zap.Error(err))
	}
	return deliveries
}

func (s *sqsSubscriber) Close() error {
	return s.subscriber.Close()
}

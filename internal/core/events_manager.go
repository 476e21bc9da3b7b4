package core

import (
	"api/internal/configuration"
	"api/internal/messaging"
	"api/internal/models"

	"go.uber.org/zap"
)

// EventsManager owns one publisher and one subscriber per configured topic,
// all backed by the same broker type.
type EventsManager struct {
	publishers  map[string]messaging.IPublisher
	subscribers map[string]messaging.ISubscriber
	config      models.EventsConfiguration
}

func NewEventsManager(config models.EventsConfiguration) *EventsManager {
	manager := &EventsManager{
		publishers:  make(map[string]messaging.IPublisher),
		subscribers: make(map[string]messaging.ISubscriber),
		config:      config,
	}

	for topicKey, topicConfig := range config.Queues {
		manager.wireTopic(topicKey, topicConfig.Name)
	}

	return manager
}

// wireTopic builds both ends of one topic. The memory provider hands the
// same GoChannel to publisher and subscriber, every other provider keeps
// that state on the broker side.
func (em *EventsManager) wireTopic(topicKey, topicName string) {
	switch em.config.Type {
	case configuration.ProviderJetstream:
		cfg := &models.JetStreamEventsConfig{
			Host: em.config.Jetstream.Host,
			Port: em.config.Jetstream.Port,
		}
		em.publishers[topicKey] = messaging.NewJetStreamPublisher(cfg, topicName)
		em.subscribers[topicKey] = messaging.NewJetStreamSubscriber(cfg, topicName)
	case configuration.ProviderGCP:
		cfg := &models.PubSubConfiguration{
			ProjectID:          em.config.PubSub.ProjectID,
			SubscriptionSuffix: em.config.PubSub.SubscriptionSuffix,
		}
		em.publishers[topicKey] = messaging.NewGCPPublisher(cfg, topicName)
		em.subscribers[topicKey] = messaging.NewGCPSubscriber(cfg, topicName)
	case configuration.ProviderAWS:
		em.publishers[topicKey] = messaging.NewAWSPublisher(topicName)
		em.subscribers[topicKey] = messaging.NewAWSSubscriber(topicName)
	case configuration.ProviderMemory:
		ch := messaging.NewMemoryChannel()
		em.publishers[topicKey] = messaging.NewMemoryPublisher(ch, topicName)
		em.subscribers[topicKey] = messaging.NewMemorySubscriber(ch, topicName)
	}

	zap.L().Info("Wired events topic",
		zap.String("topic_key", topicKey),
		zap.String("topic_name", topicName),
		zap.String("provider", em.config.Type))
}

func (em *EventsManager) GetPublisher(topicKey string) messaging.IPublisher {
	publisher, exists := em.publishers[topicKey]
	if !exists {
		zap.L().Warn("Publisher not found", zap.String("topic_key", topicKey))
		return nil
	}
	return publisher
}

func (em *EventsManager) GetSubscriber(topicKey string) messaging.ISubscriber {
	subscriber, exists := em.subscribers[topicKey]
	if !exists {
		zap.L().Warn("Subscriber not found", zap.String("topic_key", topicKey))
		return nil
	}
	return subscriber
}

func (em *EventsManager) Close() {
	for topicKey, publisher := range em.publishers {
		if err := publisher.Close(); err != nil {
			zap.L().Error("Failed to close publisher",
				zap.String("topic_key", topicKey),
				zap.Error(err))
		}
	}

	for topicKey, subscriber := range em.subscribers {
		if err := subscriber.Close(); err != nil {
			zap.L().Error("Failed to close subscriber",
				zap.String("topic_key", topicKey),
				zap.Error(err))
		}
	}
}

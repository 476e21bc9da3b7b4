package messaging

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// memoryTopic adapts one gochannel topic to both broker interfaces. The
// default profile runs the API and the notifications worker in a single
// process, so an in-memory channel is all the transport needed.
type memoryTopic struct {
	name    string
	channel *gochannel.GoChannel
}

// NewMemoryChannel is persistent so events published before the worker
// subscribes are not lost during startup.
func NewMemoryChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		Persistent: true,
	}, watermill.NopLogger{})
}

func NewMemoryPublisher(channel *gochannel.GoChannel, topic string) IPublisher {
	return &memoryTopic{name: topic, channel: channel}
}

func NewMemorySubscriber(channel *gochannel.GoChannel, topic string) ISubscriber {
	return &memoryTopic{name: topic, channel: channel}
}

func (m *memoryTopic) Publish(messages ...*message.Message) error {
	return m.channel.Publish(m.name, messages...)
}

func (m *memoryTopic) Subscribe() <-chan *message.Message {
	deliveries, err := m.channel.Subscribe(context.Background(), m.name)
	if err != nil {
		zap.L().Error("Cannot subscribe to in-memory topic", zap.String("topic", m.name), zap.Error(err))
		return nil
	}
	return deliveries
}

func (m *memoryTopic) Close() error {
	return m.channel.Close()
}

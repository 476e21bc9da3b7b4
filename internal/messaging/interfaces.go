package messaging

import "github.com/ThreeDotsLabs/watermill/message"

// IPublisher fans security events out to the configured broker. The topic is
// fixed at construction time.
type IPublisher interface {
	Publish(messages ...*message.Message) error
	Close() error
}

// ISubscriber is the consuming side used by the notifications worker.
type ISubscriber interface {
	Subscribe() <-chan *message.Message
	Close() error
}

package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiveTimeout = 2 * time.Second

func awaitMessage(t *testing.T, deliveries <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-deliveries:
		return msg
	case <-time.After(receiveTimeout):
		require.FailNow(t, "no message arrived before the timeout")
		return nil
	}
}

func newNotificationsTopic(t *testing.T) (IPublisher, ISubscriber) {
	t.Helper()
	ch := NewMemoryChannel()
	pub := NewMemoryPublisher(ch, "notifications")
	sub := NewMemorySubscriber(ch, "notifications")
	t.Cleanup(func() { _ = pub.Close() })
	return pub, sub
}

func TestMemoryTopicDeliversPayloadIntact(t *testing.T) {
	pub, sub := newNotificationsTopic(t)
	deliveries := sub.Subscribe()

	payload, err := json.Marshal(map[string]string{
		"type":  "two_factor.enabled",
		"email": "borrower@loanpilot.test",
	})
	require.NoError(t, err)

	id := watermill.NewUUID()
	require.NoError(t, pub.Publish(message.NewMessage(id, payload)))

	msg := awaitMessage(t, deliveries)
	assert.Equal(t, id, msg.UUID)
	assert.JSONEq(t, string(payload), string(msg.Payload))
	msg.Ack()
}

func TestMemoryTopicDeliversEveryMessageInABurst(t *testing.T) {
	pub, sub := newNotificationsTopic(t)
	deliveries := sub.Subscribe()

	published := make([]string, 0, 5)
	for range 5 {
		id := watermill.NewUUID()
		published = append(published, id)
		require.NoError(t, pub.Publish(message.NewMessage(id, []byte(`{"type":"auth.password_reset"}`))))
	}

	received := make([]string, 0, len(published))
	for range published {
		msg := awaitMessage(t, deliveries)
		received = append(received, msg.UUID)
		msg.Ack()
	}
	assert.ElementsMatch(t, published, received)
}

func TestMemoryTopicAckFreesTheNextDelivery(t *testing.T) {
	pub, sub := newNotificationsTopic(t)
	deliveries := sub.Subscribe()

	require.NoError(t, pub.Publish(message.NewMessage(watermill.NewUUID(), []byte(`{"seq":1}`))))
	first := awaitMessage(t, deliveries)
	first.Ack()

	require.NoError(t, pub.Publish(message.NewMessage(watermill.NewUUID(), []byte(`{"seq":2}`))))
	second := awaitMessage(t, deliveries)
	assert.JSONEq(t, `{"seq":2}`, string(second.Payload))
	second.Ack()
}

func TestMemoryTopicPublishAfterCloseFails(t *testing.T) {
	pub, _ := newNotificationsTopic(t)
	require.NoError(t, pub.Close())

	err := pub.Publish(message.NewMessage(watermill.NewUUID(), []byte(`{}`)))
	assert.Error(t, err)
}

func TestMemoryTopicsDoNotLeakAcrossChannels(t *testing.T) {
	chA := NewMemoryChannel()
	pubA := NewMemoryPublisher(chA, "notifications")
	subA := NewMemorySubscriber(chA, "notifications")
	t.Cleanup(func() { _ = pubA.Close() })

	chB := NewMemoryChannel()
	subB := NewMemorySubscriber(chB, "notifications")
	t.Cleanup(func() { _ = subB.Close() })

	deliveriesA := subA.Subscribe()
	deliveriesB := subB.Subscribe()

	id := watermill.NewUUID()
	require.NoError(t, pubA.Publish(message.NewMessage(id, []byte(`{"type":"two_factor.disabled"}`))))

	msg := awaitMessage(t, deliveriesA)
	assert.Equal(t, id, msg.UUID)
	msg.Ack()

	select {
	case stray := <-deliveriesB:
		t.Fatalf("channel B should stay quiet, received %s", stray.UUID)
	case <-time.After(150 * time.Millisecond):
	}
}

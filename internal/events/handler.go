package events

import (
	"encoding/json"

	"api/internal/notifier"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

type EventParams struct {
	Notifier notifier.INotifier
}

// HandleEvents drains the notifications subscription until the channel
// closes. Undecodable messages are acked and dropped; delivery failures are
// nacked so the broker can redeliver.
func HandleEvents(params *EventParams, messages <-chan *message.Message) {
	for msg := range messages {
		var event Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			zap.L().Error("Failed to decode event, dropping",
				zap.String("message_id", msg.UUID),
				zap.Error(err))
			msg.Ack()
			continue
		}

		if err := params.Notifier.NotifyFromTemplate(
			event.To,
			event.Subject,
			event.Template,
			event.Data,
		); err != nil {
			zap.L().Error("Failed to deliver notification",
				zap.String("event_type", event.Type),
				zap.String("to", event.To),
				zap.Error(err))
			msg.Nack()
			continue
		}

		zap.L().Info("Notification delivered",
			zap.String("event_type", event.Type),
			zap.String("to", event.To))
		msg.Ack()
	}
}

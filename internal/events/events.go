package events

import (
	"encoding/json"
	"fmt"
	"strconv"

	"api/internal/configuration"
	"api/internal/messaging"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

const (
	TypePasswordResetChallenge  = "password_reset_challenge"
	TypePasswordResetSuccess    = "password_reset_success"
	TypePasswordChanged         = "password_changed"
	TypeTwoFactorEnabled        = "two_factor_enabled"
	TypeTwoFactorDisabled       = "two_factor_disabled"
	TypeBackupCodesRegenerated  = "backup_codes_regenerated"
	TypeVerificationRateLimited = "verification_rate_limited"
)

// Event is a security notification on its way to the notifications worker.
// Trigger never fails the calling operation; publish errors are logged.
type Event struct {
	Type     string            `json:"type"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`

	publisher messaging.IPublisher
}

func (e Event) Trigger() {
	payload, err := json.Marshal(e)
	if err != nil {
		zap.L().Error("Failed to marshal event", zap.String("type", e.Type), zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("topic_key", configuration.EventsNotifications)
	msg.Metadata.Set("event_type", e.Type)

	if err = e.publisher.Publish(msg); err != nil {
		zap.L().Error("Failed to publish event", zap.String("type", e.Type), zap.Error(err))
	}
}

func NewPasswordResetChallenge(
	publisher messaging.IPublisher,
	secret string,
	email string,
	challengeID string,
	webURL string,
) Event {
	return Event{
		Type:     TypePasswordResetChallenge,
		To:       email,
		Subject:  "Reset your LoanPilot password",
		Template: "password_reset",
		Data: map[string]string{
			"Secret":       secret,
			"ChallengeURL": fmt.Sprintf("%s/reset-password/%s", webURL, challengeID),
			"WebURL":       webURL,
		},
		publisher: publisher,
	}
}

func NewPasswordResetSuccess(
	publisher messaging.IPublisher,
	email string,
	webURL string,
	resetDate string,
) Event {
	return Event{
		Type:     TypePasswordResetSuccess,
		To:       email,
		Subject:  "Your LoanPilot password was reset",
		Template: "password_reset_success",
		Data: map[string]string{
			"WebURL":    webURL,
			"ResetDate": resetDate,
		},
		publisher: publisher,
	}
}

func NewPasswordChanged(
	publisher messaging.IPublisher,
	email string,
	webURL string,
	changeDate string,
) Event {
	return Event{
		Type:     TypePasswordChanged,
		To:       email,
		Subject:  "Your LoanPilot password was changed",
		Template: "password_changed",
		Data: map[string]string{
			"WebURL":     webURL,
			"ChangeDate": changeDate,
		},
		publisher: publisher,
	}
}

func NewTwoFactorEnabled(publisher messaging.IPublisher, email string, webURL string) Event {
	return Event{
		Type:     TypeTwoFactorEnabled,
		To:       email,
		Subject:  "Two-factor authentication enabled",
		Template: "two_factor_enabled",
		Data:     map[string]string{"WebURL": webURL},

		publisher: publisher,
	}
}

func NewTwoFactorDisabled(publisher messaging.IPublisher, email string, webURL string) Event {
	return Event{
		Type:     TypeTwoFactorDisabled,
		To:       email,
		Subject:  "Two-factor authentication disabled",
		Template: "two_factor_disabled",
		Data:     map[string]string{"WebURL": webURL},

		publisher: publisher,
	}
}

func NewBackupCodesRegenerated(publisher messaging.IPublisher, email string, webURL string) Event {
	return Event{
		Type:     TypeBackupCodesRegenerated,
		To:       email,
		Subject:  "New backup codes issued",
		Template: "backup_codes_regenerated",
		Data:     map[string]string{"WebURL": webURL},

		publisher: publisher,
	}
}

func NewVerificationRateLimited(
	publisher messaging.IPublisher,
	email string,
	webURL string,
	retryAfterSeconds int,
) Event {
	retryMinutes := (retryAfterSeconds + 59) / 60

	return Event{
		Type:     TypeVerificationRateLimited,
		To:       email,
		Subject:  "Too many verification attempts",
		Template: "account_locked",
		Data: map[string]string{
			"WebURL":       webURL,
			"RetryMinutes": strconv.Itoa(retryMinutes),
		},
		publisher: publisher,
	}
}

package notifier

import (
	"crypto/tls"
	"fmt"

	"api/internal/models"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type SMTPNotifier struct {
	client *mail.Client
	sender string
}

func NewSMTPNotifier(config models.MailerConfiguration) *SMTPNotifier {
	options := []mail.Option{
		mail.WithPort(config.Port),
	}

	if config.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if config.EnableTLS {
		options = append(options, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		options = append(options, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if config.SkipVerifyTLS {
		options = append(options, mail.WithTLSConfig(&tls.Config{
			ServerName:         config.Host,
			InsecureSkipVerify: true, //nolint:gosec // explicit opt-in for self-signed relays
		}))
	}

	client, err := mail.NewClient(config.Host, options...)
	if err != nil {
		zap.L().Fatal("Failed to create SMTP client", zap.Error(err))
	}

	return &SMTPNotifier{client: client, sender: config.Sender}
}

func (s *SMTPNotifier) NotifyFromTemplate(
	to string,
	subject string,
	templateName string,
	data any,
) error {
	body, err := renderTemplate(templateName, data)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err = msg.From(s.sender); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = msg.To(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err = s.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	zap.L().Info("Notification sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("template", templateName),
	)

	return nil
}

package notifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"api/internal/models"

	"go.uber.org/zap"
)

// FilesystemNotifier writes notifications to disk for local development.
// The rendered body is included so template regressions surface without a
// mail relay.
type FilesystemNotifier struct {
	directory string
}

// notificationRecord is one delivered email as stored on disk.
type notificationRecord struct {
	To           string `json:"to"`
	Subject      string `json:"subject"`
	TemplateName string `json:"template_name"`
	Args         any    `json:"args"`
	Body         string `json:"body"`
	Timestamp    string `json:"timestamp"`
}

func NewFilesystemNotifier(config models.FilesystemNotifierConfiguration) *FilesystemNotifier {
	if err := os.MkdirAll(config.Directory, 0750); err != nil {
		zap.L().Fatal("Failed to create notification directory", zap.Error(err))
	}
	return &FilesystemNotifier{directory: config.Directory}
}

func (f *FilesystemNotifier) NotifyFromTemplate(
	to string,
	subject string,
	templateName string,
	data any,
) error {
	body, err := renderTemplate(templateName, data)
	if err != nil {
		return err
	}

	record := notificationRecord{
		To:           to,
		Subject:      subject,
		TemplateName: templateName,
		Args:         data,
		Body:         body,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	path := filepath.Join(f.directory, fmt.Sprintf("%d.json", time.Now().UnixNano()))
	if err = os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write notification file: %w", err)
	}

	zap.L().Info("Notification written to filesystem",
		zap.String("path", path),
		zap.String("to", to),
		zap.String("template", templateName),
	)

	return nil
}

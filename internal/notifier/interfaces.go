package notifier

// INotifier delivers user-facing security notifications. Implementations
// resolve templateName against the built-in template set.
type INotifier interface {
	NotifyFromTemplate(to string, subject string, templateName string, data any) error
}

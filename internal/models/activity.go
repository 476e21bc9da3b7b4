package models

// LogFilter carries the indexable key/value pairs of an activity record plus
// the moment it happened, as unix nanoseconds rendered in decimal.
type LogFilter struct {
	Timestamp string            `json:"timestamp"`
	Fields    map[string]string `json:"fields"`
}

// Activity is one security-relevant action to index: a human message, the
// affected object snapshot and the filterable fields.
type Activity struct {
	Message string    `json:"message"`
	Object  any       `json:"object,omitempty"`
	Filter  LogFilter `json:"filter"`
}

package models

// Error is the wire shape of every non-2xx response: the machine-checkable
// codes, the human message for the first one and, on 429s, the seconds left
// in the window.
type Error struct {
	Errors            []string `json:"errors"`
	Message           string   `json:"message"`
	RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
}

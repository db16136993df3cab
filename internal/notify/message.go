package notify

import "time"

const (
	ColorGood    = "good"
	ColorWarning = "warning"
	ColorDanger  = "danger"
	ColorNewItem = "#36a64f"
	ColorStatus  = "#3AA3E3"
	ColorBlocked = "#ff0000"
	ColorScalar  = "#2196F3"
)

type Field struct {
	Title      string `json:"title"`
	Value      string `json:"value"`
	Emphasized bool   `json:"emphasized,omitempty"`
	Inline     bool   `json:"inline,omitempty"`
}

// Message is transport-neutral. Transports decide how to render it.
type Message struct {
	Headline  string    `json:"headline"`
	Link      string    `json:"link,omitempty"`
	Fields    []Field   `json:"fields,omitempty"`
	Color     string    `json:"color,omitempty"`
	Footer    string    `json:"footer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Thumbnail string    `json:"thumbnail,omitempty"`

	// IdempotencyKey, when set, lets the Router drop a repeat delivery.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

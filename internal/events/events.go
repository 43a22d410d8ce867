package events

import "context"

// Event topic constants
const (
	TopicLoadCompleted = "propertygrid.load.completed"
	TopicLoadFailed    = "propertygrid.load.failed"

	// TopicAll matches every grid event.
	TopicAll = "propertygrid.>"
)

// LoadCompleted is emitted when a load produced a result.
type LoadCompleted struct {
	RequestID    string `json:"request_id"`
	Seq          uint64 `json:"seq"`
	Table        string `json:"table"`
	Operation    string `json:"operation"`
	TotalCount   int    `json:"total_count"`
	Items        int    `json:"items"`
	Pages        int    `json:"pages"`
	ServerDriven bool   `json:"server_driven"`
	DurationMs   int64  `json:"duration_ms"`
}

// LoadFailed is emitted when a load fell back to the empty state.
type LoadFailed struct {
	RequestID  string `json:"request_id"`
	Seq        uint64 `json:"seq"`
	Table      string `json:"table"`
	Operation  string `json:"operation"`
	Page       int    `json:"page"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event interface{}) error
	Close() error
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

package domain

// EventType tags a live notification.
type EventType string

const (
	EventConnected EventType = "connected"
	EventUpdate    EventType = "update"
	EventAnswer    EventType = "answer"
	EventResult    EventType = "result"
	EventDB        EventType = "db"
)

// Event is pushed to observers as a flat JSON object. Result fields are only
// present on result events.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	*ResultPayload
}

// ResultPayload is the structured outcome carried by a result event.
type ResultPayload struct {
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	Correct      bool   `json:"correct"`
	ResponseTime int64  `json:"responseTime"`
	Domain       Domain `json:"domain"`
}

// MessageEvent builds an event that only carries a message.
func MessageEvent(t EventType, msg string) Event {
	return Event{Type: t, Message: msg}
}

// ResultEvent builds a result event.
func ResultEvent(p ResultPayload) Event {
	return Event{Type: EventResult, ResultPayload: &p}
}

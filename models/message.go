package models

// Message is the chat relay payload. It carries only the text; the relay
// attaches no sender identity or timestamp.
type Message struct {
	Text string `json:"text"`
}

package chat

import "time"

// Session captures the conversation context around one uploaded file.
type Session struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	BoundIdentity string    `json:"boundIdentity,omitempty"`
}

// SessionSummary is the lightweight sidebar entry. It carries no
// messages; the full log is fetched on demand when switching.
type SessionSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

package chat

import "time"

// Roles of conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Artifact kinds.
const (
	ArtifactStem  = "stem"
	ArtifactRemix = "remix"
)

// Artifact references a server-held derived audio file. The client
// only ever holds the locator, never the bytes.
type Artifact struct {
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	Locator string `json:"locator"`
}

// Message is one turn of the conversation log. Only assistant
// messages carry artifacts.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

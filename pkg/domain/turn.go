package domain

// Request is one conversational turn.
type Request struct {
	// SessionID is empty to start a new intake.
	SessionID string `json:"session_id,omitempty"`
	// OwnerID is the verified caller identity.
	OwnerID string `json:"owner_id"`
	// Token echoes Response.Token. When present it must match the stored position.
	Token string `json:"token,omitempty"`
	// LastQuestion is the prompt the user is answering.
	LastQuestion string `json:"last_question,omitempty"`
	Message      string `json:"message"`
}

// Response tells the caller what to show next.
type Response struct {
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id"`
	Phase     Phase  `json:"phase"`
	Token     string `json:"token"`

	// Prompt is the next question. Empty once Complete is set.
	Prompt string `json:"prompt,omitempty"`
	// Clarification is set when Prompt re-asks a rejected field.
	Clarification bool `json:"clarification,omitempty"`
	// Attempts counts rejections of the pending field.
	Attempts int `json:"attempts,omitempty"`
	// Escalated is set once Attempts reaches the configured maximum.
	Escalated bool `json:"escalated,omitempty"`
	// Optional lists best-effort prompts (media uploads) the client may offer.
	Optional []string `json:"optional,omitempty"`
	// Complete is the completion signal.
	Complete bool `json:"complete,omitempty"`
}

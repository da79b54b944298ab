package llm

import (
	"context"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type AttachmentKind string

const (
	AttachmentFile  AttachmentKind = "file"
	AttachmentImage AttachmentKind = "image"
)

// Attachment is binary content sent alongside a user message.
type Attachment struct {
	Kind      AttachmentKind
	Filename  string
	MediaType string
	Data      []byte
}

// Message is one chat turn. Attachments are only honored on user messages.
type Message struct {
	Role        Role
	Text        string
	Attachments []Attachment
}

// StructuredRequest asks for a JSON object conforming to Schema.
type StructuredRequest struct {
	Name     string
	Schema   map[string]any
	Messages []Message
}

// StructuredCompleter is the structured-completion collaborator. The
// returned bytes have already been validated against req.Schema. A model
// refusal is reported as an error wrapping common.ErrRefusal.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, req StructuredRequest) ([]byte, error)
}

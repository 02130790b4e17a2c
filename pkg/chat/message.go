package chat

import "fmt"

// Roles a message may carry.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single role-tagged message in a conversation.
type Message struct {
	Role    string   `json:"role"`             // "system", "user", "assistant"
	Content string   `json:"content"`          // The message text
	Images  []string `json:"images,omitempty"` // Optional base64-encoded images (for multimodal prompts)
}

// Validate checks that the message names a known role and carries either
// text or at least one image.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("message role %q is not one of system, user, assistant", m.Role)
	}
	if m.Content == "" && len(m.Images) == 0 {
		return fmt.Errorf("%s message has neither text nor images", m.Role)
	}
	return nil
}

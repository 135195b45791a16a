package models

import (
	"fmt"
)

// Message represents one turn of a conversation. The ID only exists on the client side to locate the
// in-progress assistant message, it is never sent to the relay nor to the provider.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed (or picked from a suggestion) by the student.
	RoleUser Role = "user"
	// RoleAssistant represents a message streamed back from the provider.
	RoleAssistant Role = "assistant"
)

// ParseRole returns the Role named by s, or an error if s is neither "user" nor "assistant".
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler, so decoding a Message from JSON rejects unknown
// roles instead of carrying them to the provider.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// StripIDs returns a copy of messages with every ID cleared, ready to be transmitted.
func StripIDs(messages []Message) []Message {
	res := make([]Message, len(messages))
	for i, msg := range messages {
		res[i] = Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return res
}

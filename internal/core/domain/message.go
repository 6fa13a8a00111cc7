package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who authored a message in a conversation.
type Role string

const (
	RoleAI    Role = "AI"
	RoleHuman Role = "Human"
)

// ChatMessageType is the only type currently produced for agent replies.
const ChatMessageType = "chat"

// Message is a turn in a conversation: either a UserMessage or a ChatMessage.
type Message interface {
	Role() Role
	Body() string
	Author() string
}

// UserMessage is what a human sent.
type UserMessage struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

func (m UserMessage) Role() Role     { return RoleHuman }
func (m UserMessage) Body() string   { return m.Text }
func (m UserMessage) Author() string { return m.UserID }

// UserMessageFromPayload extracts a UserMessage from a free-form request
// payload. text and user_id are required strings; other keys are ignored.
func UserMessageFromPayload(payload map[string]any) (UserMessage, error) {
	verr := &ValidationError{Model: "UserMessage"}

	text, ok := payload["text"]
	if !ok {
		verr.Add("text", "field required")
	} else if _, isString := text.(string); !isString {
		verr.Add("text", "input should be a valid string")
	}

	userID, ok := payload["user_id"]
	if !ok {
		verr.Add("user_id", "field required")
	} else if _, isString := userID.(string); !isString {
		verr.Add("user_id", "input should be a valid string")
	}

	if verr.HasErrors() {
		return UserMessage{}, verr
	}
	return UserMessage{Text: text.(string), UserID: userID.(string)}, nil
}

// ChatMessage is the agent's reply to a user.
type ChatMessage struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	UserID  string      `json:"user_id"`
	Why     *MessageWhy `json:"why"`
}

// NewChatMessage returns a reply of the default chat type.
func NewChatMessage(userID, content string, why *MessageWhy) *ChatMessage {
	return &ChatMessage{
		Type:    ChatMessageType,
		Content: content,
		UserID:  userID,
		Why:     why,
	}
}

func (m ChatMessage) Role() Role     { return RoleAI }
func (m ChatMessage) Body() string   { return m.Content }
func (m ChatMessage) Author() string { return m.UserID }

// MessageWhy explains how a reply was produced.
type MessageWhy struct {
	Input             string         `json:"input"`
	IntermediateSteps []any          `json:"intermediate_steps"`
	Memory            map[string]any `json:"memory"`
	ModelInteractions []Interaction  `json:"model_interactions"`
}

// UnmarshalJSON decodes model_interactions by their model_type tag.
func (w *MessageWhy) UnmarshalJSON(data []byte) error {
	var aux struct {
		Input             string            `json:"input"`
		IntermediateSteps []any             `json:"intermediate_steps"`
		Memory            map[string]any    `json:"memory"`
		ModelInteractions []json.RawMessage `json:"model_interactions"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	now := time.Now()
	interactions := make([]Interaction, 0, len(aux.ModelInteractions))
	for i, raw := range aux.ModelInteractions {
		inter, err := DecodeInteraction(raw, now)
		if err != nil {
			return fmt.Errorf("model_interactions[%d]: %w", i, err)
		}
		interactions = append(interactions, inter)
	}

	w.Input = aux.Input
	w.IntermediateSteps = aux.IntermediateSteps
	w.Memory = aux.Memory
	w.ModelInteractions = interactions
	return nil
}

// HistoryEntry is one message in a conversation history.
type HistoryEntry struct {
	When    time.Time
	Content Message
}

// Role is derived from the content: AI for chat messages, Human otherwise.
func (h HistoryEntry) Role() Role {
	if h.Content == nil {
		return RoleHuman
	}
	return h.Content.Role()
}

type historyEntryJSON struct {
	When    float64         `json:"when"`
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes the entry with its derived role.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(h.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(historyEntryJSON{
		When:    unixSeconds(h.When),
		Role:    h.Role(),
		Content: content,
	})
}

// UnmarshalJSON decodes the content according to the role.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	var aux historyEntryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch aux.Role {
	case RoleAI:
		var msg ChatMessage
		if err := json.Unmarshal(aux.Content, &msg); err != nil {
			return fmt.Errorf("decode chat message: %w", err)
		}
		h.Content = msg
	case RoleHuman, "":
		var msg UserMessage
		if err := json.Unmarshal(aux.Content, &msg); err != nil {
			return fmt.Errorf("decode user message: %w", err)
		}
		h.Content = msg
	default:
		return fmt.Errorf("unknown role %q", aux.Role)
	}

	h.When = fromUnixSeconds(aux.When)
	return nil
}

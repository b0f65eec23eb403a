package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Message is a single entry in a conversation's message log. Messages are
// immutable once created; ordering is defined by position in the log, not
// by timestamp (timestamps may be client-supplied and out of order).
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	IsFromHost bool      `json:"isFromHost"`
	Timestamp  time.Time `json:"timestamp"`
	Sender     string    `json:"sender"`
	IsAIReply  bool      `json:"isAiReply,omitempty"`
}

// Conversation is the message exchange between a host/AI and one guest,
// scoped to one property. The message log is stored as a single serialized
// value; Revision guards log updates against concurrent writers.
type Conversation struct {
	ID         string    `db:"id" json:"id"`
	PropertyID string    `db:"property_id" json:"propertyId"`
	GuestName  string    `db:"guest_name" json:"guestName"`
	GuestEmail string    `db:"guest_email" json:"guestEmail"`
	Platform   string    `db:"platform" json:"platform"`
	Status     string    `db:"status" json:"status"`
	CheckIn    string    `db:"check_in" json:"checkIn"`
	CheckOut   string    `db:"check_out" json:"checkOut"`
	AutoPilot  bool      `db:"auto_pilot" json:"autoPilot"`
	Revision   int64     `db:"revision" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"-"`
	UpdatedAt  time.Time `db:"updated_at" json:"-"`

	Messages []Message `db:"-" json:"messages"`
}

// Property is a rental unit a host manages. Instructions carry the
// per-property AI guidance rendered into prompts.
type Property struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Address     string    `db:"address" json:"address"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`

	Instructions []AIInstruction `db:"-" json:"aiInstructions"`
}

// Instruction types recognized by the prompt builder.
const (
	InstructionTone      = "tone"
	InstructionKnowledge = "knowledge"
	InstructionRules     = "rules"
)

// AIInstruction is one piece of per-property AI guidance. Instructions are
// rendered in priority-ascending order; inactive ones are excluded.
type AIInstruction struct {
	ID         string    `db:"id" json:"id"`
	PropertyID string    `db:"property_id" json:"propertyId"`
	Type       string    `db:"type" json:"type"`
	Content    string    `db:"content" json:"content"`
	IsActive   bool      `db:"is_active" json:"isActive"`
	Priority   int       `db:"priority" json:"priority"`
	CreatedAt  time.Time `db:"created_at" json:"-"`
	UpdatedAt  time.Time `db:"updated_at" json:"-"`
}

// Conversation status values.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// EncodeMessageLog serializes a message log for storage in the single
// messages column. A nil log encodes as an empty array.
func EncodeMessageLog(messages []Message) (string, error) {
	if messages == nil {
		messages = []Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("failed to encode message log: %w", err)
	}
	return string(raw), nil
}

// ParseMessageLog deserializes a stored message log. A malformed value
// degrades to an empty log (logged, not fatal) so that a single corrupt
// record cannot take a conversation view down with it.
func ParseMessageLog(raw string, log *slog.Logger) []Message {
	if raw == "" {
		return []Message{}
	}
	var messages []Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		if log != nil {
			log.Warn("Failed to parse message log, degrading to empty log", "error", err, "raw_length", len(raw))
		}
		return []Message{}
	}
	if messages == nil {
		return []Message{}
	}
	return messages
}

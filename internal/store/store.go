// Package store provides the conversation and property record store:
// models, SQLite persistence, and the demo in-memory fallback.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates an unknown property or conversation id.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates an append lost the revision race more times
	// than the bounded retry allows.
	ErrConflict = errors.New("conversation was modified concurrently")

	// ErrStoreUnavailable indicates the backing store is unreachable or
	// not configured. Read paths may degrade to demo data; writes always
	// fail with this error.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store defines the record store boundary for conversations, properties,
// and AI instructions. Methods accept context.Context for cancellation
// and timeouts.
type Store interface {
	// Ping checks the store connection.
	Ping(ctx context.Context) error

	// GetProperty retrieves a property with its instructions.
	// Returns ErrNotFound for an unknown id.
	GetProperty(ctx context.Context, id string) (*Property, error)

	// ListProperties retrieves all properties with their instructions.
	ListProperties(ctx context.Context) ([]*Property, error)

	// SaveProperty inserts or updates a property record.
	SaveProperty(ctx context.Context, property *Property) error

	// SaveInstruction inserts or updates an AI instruction.
	SaveInstruction(ctx context.Context, instruction *AIInstruction) error

	// GetConversation retrieves a conversation with its full message log.
	// Returns ErrNotFound for an unknown id.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversationsByProperty retrieves all conversations for a property.
	ListConversationsByProperty(ctx context.Context, propertyID string) ([]*Conversation, error)

	// FindConversationByGuest retrieves the conversation keyed by
	// (propertyID, guestEmail). Returns nil, nil when none exists.
	FindConversationByGuest(ctx context.Context, propertyID, guestEmail string) (*Conversation, error)

	// CreateConversation inserts a new conversation record.
	CreateConversation(ctx context.Context, conversation *Conversation) error

	// AppendMessage appends one message to a conversation's log and
	// returns the updated conversation. The append is a revision-checked
	// read-modify-write with a bounded retry; exhausting the retry budget
	// returns ErrConflict.
	AppendMessage(ctx context.Context, conversationID string, message Message) (*Conversation, error)

	// SetAutoPilot toggles the persisted auto-pilot flag on a conversation.
	SetAutoPilot(ctx context.Context, conversationID string, enabled bool) error

	// ArchiveStaleConversations marks conversations whose last update is
	// older than the cutoff as archived and returns how many changed.
	ArchiveStaleConversations(ctx context.Context, olderThanDays int) (int64, error)

	// RunMaintenance performs store maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

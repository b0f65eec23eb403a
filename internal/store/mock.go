package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// mockStore is the read-only fallback used when no database is configured.
// Reads serve a seeded demo dataset; every write fails with
// ErrStoreUnavailable so callers cannot mistake demo mode for persistence.
type mockStore struct {
	logger *slog.Logger

	mu            sync.RWMutex
	properties    map[string]*Property
	conversations map[string]*Conversation
}

// NewMockStore creates the demo store with one seeded property and
// conversation.
func NewMockStore(logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "mock_store")
	log.Warn("Store not configured, serving read-only demo data")

	now := time.Now().UTC()
	property := &Property{
		ID:          "demo-property",
		Name:        "Demo Property",
		Address:     "123 Demo Street",
		Description: "A demo property for development",
		CreatedAt:   now,
		UpdatedAt:   now,
		Instructions: []AIInstruction{
			{
				ID:         "demo-instruction-1",
				PropertyID: "demo-property",
				Type:       InstructionKnowledge,
				Content:    "WiFi name is Demo_WiFi, password is demo123",
				IsActive:   true,
				Priority:   1,
			},
			{
				ID:         "demo-instruction-2",
				PropertyID: "demo-property",
				Type:       InstructionRules,
				Content:    "No smoking, no parties",
				IsActive:   true,
				Priority:   2,
			},
		},
	}

	conversation := &Conversation{
		ID:         "demo-conversation",
		PropertyID: "demo-property",
		GuestName:  "Demo Guest",
		GuestEmail: "demo@example.com",
		Platform:   "whatsapp",
		Status:     StatusActive,
		CheckIn:    now.AddDate(0, 0, 2).Format("2006-01-02"),
		CheckOut:   now.AddDate(0, 0, 7).Format("2006-01-02"),
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages: []Message{
			{
				ID:         "demo-message-1",
				Text:       "Welcome to your stay!",
				IsFromHost: true,
				Timestamp:  now,
				Sender:     "Host",
			},
		},
	}

	return &mockStore{
		logger:        log,
		properties:    map[string]*Property{property.ID: property},
		conversations: map[string]*Conversation{conversation.ID: conversation},
	}
}

func (s *mockStore) Ping(_ context.Context) error {
	return nil
}

func (s *mockStore) GetProperty(_ context.Context, id string) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	property, ok := s.properties[id]
	if !ok {
		return nil, fmt.Errorf("property %s: %w", id, ErrNotFound)
	}
	copied := *property
	return &copied, nil
}

func (s *mockStore) ListProperties(_ context.Context) ([]*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	properties := make([]*Property, 0, len(s.properties))
	for _, property := range s.properties {
		copied := *property
		properties = append(properties, &copied)
	}
	return properties, nil
}

func (s *mockStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversation, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	copied := *conversation
	copied.Messages = append([]Message(nil), conversation.Messages...)
	return &copied, nil
}

func (s *mockStore) ListConversationsByProperty(_ context.Context, propertyID string) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conversations []*Conversation
	for _, conversation := range s.conversations {
		if conversation.PropertyID != propertyID {
			continue
		}
		copied := *conversation
		copied.Messages = append([]Message(nil), conversation.Messages...)
		conversations = append(conversations, &copied)
	}
	return conversations, nil
}

func (s *mockStore) FindConversationByGuest(_ context.Context, propertyID, guestEmail string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conversation := range s.conversations {
		if conversation.PropertyID == propertyID && conversation.GuestEmail == guestEmail {
			copied := *conversation
			copied.Messages = append([]Message(nil), conversation.Messages...)
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *mockStore) SaveProperty(ctx context.Context, _ *Property) error {
	return s.writeUnavailable(ctx, "SaveProperty")
}

func (s *mockStore) SaveInstruction(ctx context.Context, _ *AIInstruction) error {
	return s.writeUnavailable(ctx, "SaveInstruction")
}

func (s *mockStore) CreateConversation(ctx context.Context, _ *Conversation) error {
	return s.writeUnavailable(ctx, "CreateConversation")
}

func (s *mockStore) AppendMessage(ctx context.Context, _ string, _ Message) (*Conversation, error) {
	return nil, s.writeUnavailable(ctx, "AppendMessage")
}

func (s *mockStore) SetAutoPilot(ctx context.Context, _ string, _ bool) error {
	return s.writeUnavailable(ctx, "SetAutoPilot")
}

func (s *mockStore) ArchiveStaleConversations(ctx context.Context, _ int) (int64, error) {
	return 0, s.writeUnavailable(ctx, "ArchiveStaleConversations")
}

func (s *mockStore) RunMaintenance(_ context.Context) error {
	return nil
}

func (s *mockStore) writeUnavailable(ctx context.Context, operation string) error {
	s.logger.WarnContext(ctx, "Write rejected in demo mode", "operation", operation)
	return fmt.Errorf("%s: %w", operation, ErrStoreUnavailable)
}

// Package autopilot implements the two-step message flow: persist the
// incoming turn, then conditionally generate and persist exactly one AI
// reply. The generated reply is marked so it can never trigger another
// generation.
package autopilot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maelis/hostpilot/internal/ai"
	"github.com/maelis/hostpilot/internal/store"
)

// SenderAI labels generated replies in the message log.
const SenderAI = "AI Assistant"

// Store is the persistence surface the controller needs.
type Store interface {
	AppendMessage(ctx context.Context, conversationID string, message store.Message) (*store.Conversation, error)
	GetProperty(ctx context.Context, id string) (*store.Property, error)
}

// Controller appends messages and drives auto-pilot replies.
type Controller struct {
	store      Store
	generator  ai.Generator
	logger     *slog.Logger
	replyCfg   ai.Config
	genTimeout time.Duration
}

// New creates a controller. genTimeout bounds each generation call
// independently of the caller's context.
func New(st Store, generator ai.Generator, replyCfg ai.Config, genTimeout time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:      st,
		generator:  generator,
		logger:     logger.With("component", "autopilot"),
		replyCfg:   replyCfg,
		genTimeout: genTimeout,
	}
}

// Process appends message to the conversation and, when the conversation
// has auto-pilot enabled and the message is a guest turn, appends exactly
// one generated reply. Generated replies carry IsAIReply and never
// re-enter generation, so one inbound message produces at most one AI
// turn.
//
// A non-nil conversation alongside a non-nil error means the inbound turn
// persisted but the AI turn did not; callers decide whether that is fatal.
func (c *Controller) Process(ctx context.Context, conversationID string, message store.Message) (*store.Conversation, error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	conversation, err := c.store.AppendMessage(ctx, conversationID, message)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if !conversation.AutoPilot || message.IsAIReply || message.IsFromHost {
		return conversation, nil
	}

	reply, err := c.generateReply(ctx, conversation, message)
	if err != nil {
		c.logger.ErrorContext(ctx, "Auto-pilot reply failed, guest message kept",
			"conversation_id", conversationID, "error", err)
		return conversation, err
	}

	updated, err := c.store.AppendMessage(ctx, conversationID, reply)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist generated reply",
			"conversation_id", conversationID, "error", err)
		return conversation, fmt.Errorf("append generated reply: %w", err)
	}

	c.logger.InfoContext(ctx, "Auto-pilot reply sent",
		"conversation_id", conversationID, "message_id", reply.ID)
	return updated, nil
}

func (c *Controller) generateReply(ctx context.Context, conversation *store.Conversation, message store.Message) (store.Message, error) {
	property, err := c.store.GetProperty(ctx, conversation.PropertyID)
	if err != nil {
		return store.Message{}, fmt.Errorf("load property %s: %w", conversation.PropertyID, err)
	}

	genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	booking := ai.BookingFromConversation(conversation)
	text, err := c.generator.GenerateReply(genCtx, message, property, booking, conversation.Messages, c.replyCfg)
	if err != nil {
		return store.Message{}, err
	}

	return store.Message{
		ID:         uuid.NewString(),
		Text:       text,
		IsFromHost: true,
		Timestamp:  time.Now().UTC(),
		Sender:     SenderAI,
		IsAIReply:  true,
	}, nil
}

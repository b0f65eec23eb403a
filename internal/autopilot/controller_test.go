package autopilot_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/maelis/hostpilot/internal/ai"
	"github.com/maelis/hostpilot/internal/autopilot"
	"github.com/maelis/hostpilot/internal/store"
)

type fakeStore struct {
	mu           sync.Mutex
	conversation *store.Conversation
	property     *store.Property

	appendErr      error
	replyAppendErr error
	appendCalls    int
}

func (f *fakeStore) AppendMessage(_ context.Context, conversationID string, message store.Message) (*store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.appendCalls++
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	if message.IsAIReply && f.replyAppendErr != nil {
		return nil, f.replyAppendErr
	}
	if f.conversation == nil || f.conversation.ID != conversationID {
		return nil, store.ErrNotFound
	}

	f.conversation.Messages = append(f.conversation.Messages, message)
	copied := *f.conversation
	copied.Messages = append([]store.Message(nil), f.conversation.Messages...)
	return &copied, nil
}

func (f *fakeStore) GetProperty(_ context.Context, id string) (*store.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.property == nil || f.property.ID != id {
		return nil, store.ErrNotFound
	}
	copied := *f.property
	return &copied, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (g *fakeGenerator) GenerateReply(_ context.Context, _ store.Message, _ *store.Property, _ ai.BookingContext, _ []store.Message, _ ai.Config) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newFixture(autoPilot bool) (*fakeStore, *fakeGenerator, *autopilot.Controller) {
	st := &fakeStore{
		property: &store.Property{ID: "prop-1", Name: "Sea View Loft"},
		conversation: &store.Conversation{
			ID:         "conv-1",
			PropertyID: "prop-1",
			GuestName:  "Alice",
			AutoPilot:  autoPilot,
			CheckIn:    "2026-06-20",
			CheckOut:   "2026-06-25",
		},
	}
	generator := &fakeGenerator{reply: "Le check-in est à 15h."}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	controller := autopilot.New(st, generator, ai.Config{Language: "fr"}, time.Second, logger)
	return st, generator, controller
}

func guestMessage(text string) store.Message {
	return store.Message{Text: text, Sender: "Alice"}
}

func TestProcess_GuestMessageGetsOneReply(t *testing.T) {
	t.Parallel()

	_, generator, controller := newFixture(true)

	conversation, err := controller.Process(context.Background(), "conv-1", guestMessage("Bonjour"))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if generator.callCount() != 1 {
		t.Errorf("generator calls = %d, want 1", generator.callCount())
	}
	if len(conversation.Messages) != 2 {
		t.Fatalf("message log length = %d, want 2", len(conversation.Messages))
	}

	reply := conversation.Messages[1]
	if !reply.IsAIReply || !reply.IsFromHost {
		t.Errorf("reply flags = %+v, want IsAIReply and IsFromHost", reply)
	}
	if reply.Sender != autopilot.SenderAI {
		t.Errorf("reply sender = %q, want %q", reply.Sender, autopilot.SenderAI)
	}
	if reply.ID == "" || reply.Timestamp.IsZero() {
		t.Error("reply should get an id and timestamp")
	}
	if reply.Text != "Le check-in est à 15h." {
		t.Errorf("reply text = %q", reply.Text)
	}
}

func TestProcess_AutoPilotOff(t *testing.T) {
	t.Parallel()

	_, generator, controller := newFixture(false)

	conversation, err := controller.Process(context.Background(), "conv-1", guestMessage("Bonjour"))
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if generator.callCount() != 0 {
		t.Errorf("generator calls = %d, want 0", generator.callCount())
	}
	if len(conversation.Messages) != 1 {
		t.Errorf("message log length = %d, want 1", len(conversation.Messages))
	}
}

func TestProcess_AIReplyNeverTriggersGeneration(t *testing.T) {
	t.Parallel()

	_, generator, controller := newFixture(true)

	message := store.Message{Text: "canned", Sender: autopilot.SenderAI, IsFromHost: true, IsAIReply: true}
	conversation, err := controller.Process(context.Background(), "conv-1", message)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if generator.callCount() != 0 {
		t.Errorf("generator calls = %d, want 0 for an AI-marked message", generator.callCount())
	}
	if len(conversation.Messages) != 1 {
		t.Errorf("message log length = %d, want 1", len(conversation.Messages))
	}
}

func TestProcess_HostMessageNeverTriggersGeneration(t *testing.T) {
	t.Parallel()

	_, generator, controller := newFixture(true)

	message := store.Message{Text: "Bienvenue", Sender: "Host", IsFromHost: true}
	if _, err := controller.Process(context.Background(), "conv-1", message); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if generator.callCount() != 0 {
		t.Errorf("generator calls = %d, want 0 for a host message", generator.callCount())
	}
}

func TestProcess_GenerationFailureKeepsGuestMessage(t *testing.T) {
	t.Parallel()

	st, generator, controller := newFixture(true)
	generator.err = ai.ErrGeneration

	conversation, err := controller.Process(context.Background(), "conv-1", guestMessage("Bonjour"))
	if err == nil {
		t.Fatal("expected generation failure to surface")
	}
	if !errors.Is(err, ai.ErrGeneration) {
		t.Errorf("error = %v, want ErrGeneration", err)
	}
	if conversation == nil {
		t.Fatal("conversation should be returned despite the failed reply")
	}
	if len(st.conversation.Messages) != 1 {
		t.Errorf("persisted messages = %d, want guest message only", len(st.conversation.Messages))
	}
}

func TestProcess_AppendFailure(t *testing.T) {
	t.Parallel()

	st, generator, controller := newFixture(true)
	st.appendErr = store.ErrStoreUnavailable

	conversation, err := controller.Process(context.Background(), "conv-1", guestMessage("Bonjour"))
	if !errors.Is(err, store.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
	if conversation != nil {
		t.Error("no conversation should be returned when the append itself fails")
	}
	if generator.callCount() != 0 {
		t.Error("generation should not run when the append fails")
	}
}

func TestProcess_ReplyAppendFailure(t *testing.T) {
	t.Parallel()

	st, generator, controller := newFixture(true)
	st.replyAppendErr = store.ErrConflict

	conversation, err := controller.Process(context.Background(), "conv-1", guestMessage("Bonjour"))
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
	if conversation == nil {
		t.Fatal("guest append succeeded, conversation should be returned")
	}
	if generator.callCount() != 1 {
		t.Errorf("generator calls = %d, want 1", generator.callCount())
	}
	if len(conversation.Messages) != 1 {
		t.Errorf("returned log length = %d, want guest message only", len(conversation.Messages))
	}
}

func TestProcess_FillsMessageDefaults(t *testing.T) {
	t.Parallel()

	st, _, controller := newFixture(false)

	if _, err := controller.Process(context.Background(), "conv-1", guestMessage("Bonjour")); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	persisted := st.conversation.Messages[0]
	if persisted.ID == "" {
		t.Error("message id should be generated when empty")
	}
	if persisted.Timestamp.IsZero() {
		t.Error("message timestamp should be set when zero")
	}
}

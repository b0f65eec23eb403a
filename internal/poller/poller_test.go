package poller_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/maelis/hostpilot/internal/poller"
	"github.com/maelis/hostpilot/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	fetches int
	err     error
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.fetches++
	return &store.Conversation{
		ID:       id,
		Messages: make([]store.Message, f.fetches),
	}, nil
}

func (f *fakeStore) failNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatch_EmitsFreshSnapshots(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := poller.New(&fakeStore{}, 10*time.Millisecond, testLogger())
	snapshots, err := watcher.Watch(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}

	first := <-snapshots
	if first == nil || first.ID != "conv-1" {
		t.Fatalf("first snapshot = %+v, want conv-1", first)
	}

	second, ok := <-snapshots
	if !ok {
		t.Fatal("channel closed before second snapshot")
	}
	if len(second.Messages) <= len(first.Messages) {
		t.Errorf("second snapshot should reflect a fresher read: first=%d second=%d",
			len(first.Messages), len(second.Messages))
	}
}

func TestWatch_InitialFetchErrorSurfaces(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	st.failNext(store.ErrNotFound)

	watcher := poller.New(st, 10*time.Millisecond, testLogger())
	_, err := watcher.Watch(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Watch error = %v, want ErrNotFound", err)
	}
}

func TestWatch_RefreshFailuresAreSkipped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := &fakeStore{}
	watcher := poller.New(st, 10*time.Millisecond, testLogger())
	snapshots, err := watcher.Watch(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}
	<-snapshots

	st.failNext(store.ErrStoreUnavailable)
	time.Sleep(35 * time.Millisecond)
	st.failNext(nil)

	select {
	case snapshot, ok := <-snapshots:
		if !ok {
			t.Fatal("channel closed while watcher should keep retrying")
		}
		if snapshot == nil {
			t.Fatal("nil snapshot after recovery")
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot after the store recovered")
	}
}

func TestWatch_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	watcher := poller.New(&fakeStore{}, 10*time.Millisecond, testLogger())
	snapshots, err := watcher.Watch(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}
	<-snapshots

	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-snapshots:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancellation")
		}
	}
}

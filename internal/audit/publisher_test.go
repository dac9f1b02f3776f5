package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), Event{Action: ActionSubmissionSucceeded, SiteID: "svc", ReferenceNumber: "R-1"})
	require.NoError(t, err)

	events, err := store.ListBySite(context.Background(), "svc")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "R-1", events[0].ReferenceNumber)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionEligibilityDenied, SiteID: "svc"}))
	}
	pub.Close()

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")

	assert.ErrorIs(t, pub.Emit(context.Background(), Event{SiteID: "svc"}), ErrBufferFull)
}

func TestPublisher_BufferFullNeverBlocks(t *testing.T) {
	blocking := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(blocking, WithAsyncBuffer(1))

	var wg sync.WaitGroup
	var mu sync.Mutex
	dropped := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pub.Emit(context.Background(), Event{SiteID: "svc"}); errors.Is(err, ErrBufferFull) {
				mu.Lock()
				dropped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(blocking.release)
	pub.Close()

	assert.Positive(t, dropped)
}

func TestPublisher_Timestamps(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), Event{SiteID: "a"}))
	require.NoError(t, pub.Emit(context.Background(), Event{SiteID: "b", Timestamp: custom}))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, custom, events[1].Timestamp)
}

func TestWorker_ContinuesAfterStoreError(t *testing.T) {
	store := &flakyStore{failFirst: true}
	inbox := make(chan Event, 2)
	inbox <- Event{SiteID: "first"}
	inbox <- Event{SiteID: "second"}
	close(inbox)

	require.NoError(t, NewWorker(store, inbox, nil).Run(context.Background()))
	assert.Equal(t, []string{"second"}, store.sites)
}

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, _ Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

type flakyStore struct {
	failFirst bool
	sites     []string
}

func (s *flakyStore) Append(_ context.Context, e Event) error {
	if s.failFirst {
		s.failFirst = false
		return errors.New("broker down")
	}
	s.sites = append(s.sites, e.SiteID)
	return nil
}

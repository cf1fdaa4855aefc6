package eventbus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(storyID, eventType string) Event {
	return Event{
		Agent:     "coordinator",
		EventType: eventType,
		StoryID:   storyID,
	}
}

func TestHub_PublishDeliversToSubscribers(t *testing.T) {
	hub := NewHub(10, 4)

	all := hub.Subscribe("")
	only1 := hub.Subscribe("s1")
	defer hub.Unsubscribe(all)
	defer hub.Unsubscribe(only1)

	delivered := hub.Publish(testEvent("s1", "story_accepted"))
	assert.Equal(t, 2, delivered)

	delivered = hub.Publish(testEvent("s2", "story_accepted"))
	assert.Equal(t, 1, delivered)

	// Global events reach everyone
	delivered = hub.Publish(testEvent("", "bus_started"))
	assert.Equal(t, 2, delivered)

	assert.Len(t, drain(all), 3)
	assert.Len(t, drain(only1), 2)
}

func drain(s *Subscriber) []Event {
	out := make([]Event, 0)
	for {
		select {
		case ev := <-s.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHub_FullSubscriberQueueNeverBlocksOthers(t *testing.T) {
	hub := NewHub(100, 2)

	stalled := hub.Subscribe("")
	healthy := hub.Subscribe("")
	defer hub.Unsubscribe(stalled)
	defer hub.Unsubscribe(healthy)

	done := make(chan struct{})
	go func() {
		// Nobody reads stalled; its 2-slot queue fills immediately
		for i := 0; i < 50; i++ {
			hub.Publish(testEvent("s1", fmt.Sprintf("ev-%d", i)))
			drain(healthy)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}

	assert.Equal(t, 48, stalled.Dropped())
}

func TestHub_PublishPreservesOrderPerSubscriber(t *testing.T) {
	hub := NewHub(100, 100)
	sub := hub.Subscribe("")
	defer hub.Unsubscribe(sub)

	for i := 0; i < 20; i++ {
		hub.Publish(testEvent("s1", fmt.Sprintf("ev-%d", i)))
	}

	got := drain(sub)
	require.Len(t, got, 20)
	for i, ev := range got {
		assert.Equal(t, fmt.Sprintf("ev-%d", i), ev.EventType)
	}
}

func TestHub_HistoryRetainsMostRecentN(t *testing.T) {
	hub := NewHub(5, 4)

	for i := 0; i < 12; i++ {
		hub.Publish(testEvent("s1", fmt.Sprintf("ev-%d", i)))
	}

	got := hub.History(time.Time{}, "", 0)
	require.Len(t, got, 5)
	assert.Equal(t, "ev-7", got[0].EventType)
	assert.Equal(t, "ev-11", got[4].EventType)
}

func TestHub_HistorySinceOlderThanOldestReturnsOldestSubset(t *testing.T) {
	hub := NewHub(3, 4)

	for i := 0; i < 6; i++ {
		hub.Publish(testEvent("s1", fmt.Sprintf("ev-%d", i)))
	}

	// A since far older than anything retained is not an error
	since := time.Now().Add(-24 * time.Hour)
	got := hub.History(since, "", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "ev-3", got[0].EventType)
}

func TestHub_HistoryFiltersAndLimits(t *testing.T) {
	hub := NewHub(100, 4)

	hub.Publish(testEvent("s1", "a"))
	hub.Publish(testEvent("s2", "b"))
	hub.Publish(testEvent("s1", "c"))
	hub.Publish(testEvent("", "global"))

	s1 := hub.History(time.Time{}, "s1", 0)
	require.Len(t, s1, 3) // two s1 events plus the global one
	assert.Equal(t, "a", s1[0].EventType)
	assert.Equal(t, "global", s1[2].EventType)

	limited := hub.History(time.Time{}, "", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "c", limited[0].EventType)
	assert.Equal(t, "global", limited[1].EventType)
}

func TestHub_HistoryStoresEverythingUnfiltered(t *testing.T) {
	hub := NewHub(100, 1)

	// No subscribers at all; history still records
	hub.Publish(testEvent("s1", "a"))
	hub.Publish(testEvent("s2", "b"))

	assert.Len(t, hub.History(time.Time{}, "", 0), 2)
}

func TestHub_ConcurrentPublishAndSubscribe(t *testing.T) {
	hub := NewHub(1000, 8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish(testEvent(fmt.Sprintf("s%d", n), "tick"))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sub := hub.Subscribe("")
				drain(sub)
				hub.Unsubscribe(sub)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 0, hub.SubscriberCount())
	assert.Len(t, hub.History(time.Time{}, "", 0), 800)
}

func TestHub_UnsubscribeTwiceIsSafe(t *testing.T) {
	hub := NewHub(10, 4)
	sub := hub.Subscribe("")
	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestEvent_Normalize(t *testing.T) {
	ev := testEvent("s1", "a").normalize()
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())

	// Existing identity is preserved
	fixed := ev.normalize()
	assert.Equal(t, ev.ID, fixed.ID)
	assert.Equal(t, ev.Timestamp, fixed.Timestamp)
}

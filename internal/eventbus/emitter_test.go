package eventbus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_PostsEventInBackground(t *testing.T) {
	var mu sync.Mutex
	received := make([]Event, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		w.Write([]byte(`{"status":"success","subscribers_notified":0}`))
	}))
	defer srv.Close()

	emitter := NewEmitter(srv.URL)
	emitter.Emit(Event{Agent: "coordinator", EventType: "story_accepted", StoryID: "s1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "story_accepted", received[0].EventType)
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestEmitter_UnreachableBusNeverBlocksCaller(t *testing.T) {
	emitter := NewEmitter("http://127.0.0.1:1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			emitter.Emit(Event{Agent: "coordinator", EventType: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on an unreachable bus")
	}
}

func TestNopSink(t *testing.T) {
	// Must be callable without side effects when the bus is disabled
	NopSink{}.Emit(Event{Agent: "coordinator", EventType: "tick"})
}

package eventbus_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote-go/internal/domain/eventbus"
)

func TestPublishSubscribe(t *testing.T) {
	bus := eventbus.New()

	var got eventbus.TranscriptEventData
	require.NoError(t, bus.Subscribe(eventbus.EventTranscriptDone, func(data eventbus.TranscriptEventData) {
		got = data
	}))

	bus.Publish(eventbus.EventTranscriptDone, eventbus.TranscriptEventData{
		NoteID: "n1", Generation: 3, Text: "hello",
	})

	assert.Equal(t, "n1", got.NoteID)
	assert.Equal(t, uint64(3), got.Generation)
	assert.Equal(t, "hello", got.Text)
}

func TestSubscribeAsync(t *testing.T) {
	bus := eventbus.New()

	var mu sync.Mutex
	var phases []string
	require.NoError(t, bus.SubscribeAsync(eventbus.EventEnginePhase, func(data eventbus.PhaseEventData) {
		mu.Lock()
		phases = append(phases, data.Phase)
		mu.Unlock()
	}))

	bus.Publish(eventbus.EventEnginePhase, eventbus.PhaseEventData{Phase: "downloading"})
	bus.Publish(eventbus.EventEnginePhase, eventbus.PhaseEventData{Phase: "ready"})
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, phases, 2)
}

func TestUnsubscribe(t *testing.T) {
	bus := eventbus.New()

	calls := 0
	handler := func(string) { calls++ }
	require.NoError(t, bus.Subscribe(eventbus.EventRecordingStarted, handler))
	assert.True(t, bus.HasCallback(eventbus.EventRecordingStarted))

	bus.Publish(eventbus.EventRecordingStarted, "sess-1")
	require.NoError(t, bus.Unsubscribe(eventbus.EventRecordingStarted, handler))
	bus.Publish(eventbus.EventRecordingStarted, "sess-2")

	assert.Equal(t, 1, calls)
}

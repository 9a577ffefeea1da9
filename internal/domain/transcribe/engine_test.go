package transcribe_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote-go/internal/domain/eventbus"
	"voxnote-go/internal/domain/transcribe"
)

// fakeModel is a controllable speech runtime: load/run delays, scripted
// failures, call counting.
type fakeModel struct {
	mu        sync.Mutex
	loadErr   error
	loadDelay time.Duration
	loadCalls int32
	runDelay  time.Duration
	runErr    error
	result    string
	lastSpec  transcribe.ModelSpec
}

func (m *fakeModel) Load(ctx context.Context, spec transcribe.ModelSpec) (transcribe.ModelHandle, error) {
	atomic.AddInt32(&m.loadCalls, 1)
	m.mu.Lock()
	m.lastSpec = spec
	delay, err := m.loadDelay, m.loadErr
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return "handle", nil
}

func (m *fakeModel) Run(ctx context.Context, handle transcribe.ModelHandle, audioData []byte) (string, error) {
	m.mu.Lock()
	delay, err, result := m.runDelay, m.runErr, m.result
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

func (m *fakeModel) setLoadErr(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

func newTestEngine(model transcribe.SpeechModel) (*transcribe.Engine, *eventbus.Bus) {
	bus := eventbus.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return transcribe.NewEngine(model, transcribe.ModelSpec{ModelID: "base.en", CacheDir: "/tmp/models"}, bus, logger), bus
}

func TestInitializeHappyPath(t *testing.T) {
	model := &fakeModel{result: "hello"}
	engine, _ := newTestEngine(model)

	assert.Equal(t, transcribe.PhaseIdle, engine.Phase())
	require.NoError(t, engine.Initialize(context.Background()))
	assert.Equal(t, transcribe.PhaseReady, engine.Phase())

	// already ready: no second download
	require.NoError(t, engine.Initialize(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&model.loadCalls))
}

func TestInitializePassesModelSpec(t *testing.T) {
	model := &fakeModel{}
	engine, _ := newTestEngine(model)

	require.NoError(t, engine.Initialize(context.Background()))

	model.mu.Lock()
	spec := model.lastSpec
	model.mu.Unlock()
	assert.Equal(t, "base.en", spec.ModelID)
	assert.Equal(t, "/tmp/models", spec.CacheDir)
}

func TestInitializeConcurrentCallsLoadOnce(t *testing.T) {
	model := &fakeModel{loadDelay: 50 * time.Millisecond}
	engine, _ := newTestEngine(model)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = engine.Initialize(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, transcribe.PhaseReady, engine.Phase())
	assert.Equal(t, int32(1), atomic.LoadInt32(&model.loadCalls))
}

func TestInitializeErrorThenRetry(t *testing.T) {
	model := &fakeModel{result: "ok"}
	model.setLoadErr(errors.New("download interrupted"))
	engine, _ := newTestEngine(model)

	require.Error(t, engine.Initialize(context.Background()))
	assert.Equal(t, transcribe.PhaseError, engine.Phase())

	// transcribing while errored fails fast instead of hanging
	_, err := engine.Transcribe(context.Background(), []byte("audio"), nil)
	assert.ErrorIs(t, err, transcribe.ErrEngineNotReady)

	model.setLoadErr(nil)
	require.NoError(t, engine.Initialize(context.Background()))
	assert.Equal(t, transcribe.PhaseReady, engine.Phase())
}

func TestTranscribeLazilyInitializes(t *testing.T) {
	model := &fakeModel{result: "lazy text"}
	engine, _ := newTestEngine(model)

	text, err := engine.Transcribe(context.Background(), []byte("audio"), nil)
	require.NoError(t, err)
	assert.Equal(t, "lazy text", text)
	assert.Equal(t, transcribe.PhaseReady, engine.Phase())
}

func TestTranscribeCancelledBeforeStart(t *testing.T) {
	model := &fakeModel{result: "never"}
	engine, _ := newTestEngine(model)

	token := transcribe.NewToken()
	token.Cancel()

	_, err := engine.Transcribe(context.Background(), []byte("audio"), token)
	assert.ErrorIs(t, err, transcribe.ErrCancelled)
}

func TestTranscribeCancelledMidFlight(t *testing.T) {
	model := &fakeModel{result: "partial", runDelay: 100 * time.Millisecond}
	engine, _ := newTestEngine(model)
	require.NoError(t, engine.Initialize(context.Background()))

	token := transcribe.NewToken()
	go func() {
		time.Sleep(20 * time.Millisecond)
		engine.Cancel(token)
	}()

	_, err := engine.Transcribe(context.Background(), []byte("audio"), token)
	assert.ErrorIs(t, err, transcribe.ErrCancelled)
}

func TestPhaseEventsPublished(t *testing.T) {
	model := &fakeModel{result: "ok"}
	engine, bus := newTestEngine(model)

	var mu sync.Mutex
	var phases []string
	require.NoError(t, bus.Subscribe(eventbus.EventEnginePhase, func(data eventbus.PhaseEventData) {
		mu.Lock()
		phases = append(phases, data.Phase)
		mu.Unlock()
	}))

	require.NoError(t, engine.Initialize(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"downloading", "ready"}, phases)
}

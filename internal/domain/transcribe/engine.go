package transcribe

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"voxnote-go/internal/domain/eventbus"
	"voxnote-go/internal/platform/errors"
	"voxnote-go/internal/platform/observability"
)

// Phase is the coarse lifecycle state of the speech model.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDownloading Phase = "downloading"
	PhaseReady       Phase = "ready"
	PhaseError       Phase = "error"
)

var (
	ErrEngineNotReady = errors.New(errors.KindTranscription, "engine.transcribe", "speech model not ready")
	ErrCancelled      = errors.New(errors.KindTranscription, "engine.transcribe", "transcription cancelled")
)

// ModelHandle is the loaded model, opaque to the engine.
type ModelHandle interface{}

// ModelSpec names the model weights to load and where to cache them.
type ModelSpec struct {
	ModelID  string
	CacheDir string
}

// SpeechModel abstracts the on-device inference runtime. Load downloads and
// caches weights on first use; Run blocks until inference completes.
type SpeechModel interface {
	Load(ctx context.Context, spec ModelSpec) (ModelHandle, error)
	Run(ctx context.Context, handle ModelHandle, audioData []byte) (string, error)
}

// Token is a cooperative cancellation handle for one transcription call.
// A fresh token per task avoids the cleared-and-reused flag race that a
// shared cancelled-ids set would have.
type Token struct {
	cancelled atomic.Bool
}

func NewToken() *Token {
	return &Token{}
}

func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Engine owns the model phase state machine and the cancellable
// transcribe-one-file operation. Phase changes fan out on the event bus;
// ordering between subscribers is not guaranteed.
type Engine struct {
	model  SpeechModel
	spec   ModelSpec
	bus    *eventbus.Bus
	logger *slog.Logger

	mu      sync.Mutex
	phase   Phase
	lastErr error
	handle  ModelHandle
	changed chan struct{}

	initGroup singleflight.Group
}

func NewEngine(model SpeechModel, spec ModelSpec, bus *eventbus.Bus, logger *slog.Logger) *Engine {
	return &Engine{
		model:   model,
		spec:    spec,
		bus:     bus,
		logger:  logger,
		phase:   PhaseIdle,
		changed: make(chan struct{}),
	}
}

// Phase returns the current model phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) setPhase(phase Phase, cause error) {
	e.mu.Lock()
	e.phase = phase
	e.lastErr = cause
	close(e.changed)
	e.changed = make(chan struct{})
	e.mu.Unlock()

	data := eventbus.PhaseEventData{Phase: string(phase)}
	if cause != nil {
		data.Err = cause.Error()
	}
	e.bus.Publish(eventbus.EventEnginePhase, data)
	e.logger.Info("[transcribe] engine phase", "phase", phase)
}

// Initialize downloads and loads the model at most once per process
// lifetime. Concurrent calls while downloading, and calls after ready, are
// no-ops that never re-trigger a download. A fresh call retries from error.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.phase == PhaseReady {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	_, err, _ := e.initGroup.Do("initialize", func() (interface{}, error) {
		e.mu.Lock()
		if e.phase == PhaseReady {
			e.mu.Unlock()
			return nil, nil
		}
		e.mu.Unlock()

		e.setPhase(PhaseDownloading, nil)
		e.logger.Info("[transcribe] loading model", "model", e.spec.ModelID, "cache", e.spec.CacheDir)
		handle, err := e.model.Load(ctx, e.spec)
		if err != nil {
			err = errors.Wrap(errors.KindTranscription, "engine.initialize", "failed to load speech model", err)
			e.setPhase(PhaseError, err)
			return nil, err
		}

		e.mu.Lock()
		e.handle = handle
		e.mu.Unlock()
		e.setPhase(PhaseReady, nil)
		return nil, nil
	})
	return err
}

// awaitReady blocks until the engine is ready, kicking Initialize when the
// engine is still idle. While the phase is error, callers fail fast until
// someone retries Initialize explicitly.
func (e *Engine) awaitReady(ctx context.Context) error {
	for {
		e.mu.Lock()
		phase := e.phase
		changed := e.changed
		e.mu.Unlock()

		switch phase {
		case PhaseReady:
			return nil
		case PhaseError:
			return ErrEngineNotReady
		case PhaseIdle:
			go func() { _ = e.Initialize(context.WithoutCancel(ctx)) }()
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Transcribe runs inference over one audio file. Cancellation is
// cooperative: the token is checked before inference starts and again after
// it returns, before the result is surfaced; a cancelled call never yields
// a partial transcript.
func (e *Engine) Transcribe(ctx context.Context, audioData []byte, token *Token) (text string, err error) {
	ctx, endSpan := observability.StartSpan(ctx, "transcribe", "run")
	defer func() { endSpan(err) }()

	if token != nil && token.Cancelled() {
		return "", ErrCancelled
	}

	if err := e.awaitReady(ctx); err != nil {
		return "", err
	}

	if token != nil && token.Cancelled() {
		return "", ErrCancelled
	}

	e.mu.Lock()
	handle := e.handle
	e.mu.Unlock()

	text, err = e.model.Run(ctx, handle, audioData)
	if err != nil {
		return "", errors.Wrap(errors.KindTranscription, "engine.transcribe", "inference failed", err)
	}

	if token != nil && token.Cancelled() {
		return "", ErrCancelled
	}
	return text, nil
}

// Cancel requests cooperative cancellation of the call holding the token.
func (e *Engine) Cancel(token *Token) {
	if token != nil {
		token.Cancel()
	}
}

// SubscribePhase registers a bus handler for phase change events.
func (e *Engine) SubscribePhase(fn func(eventbus.PhaseEventData)) error {
	return e.bus.Subscribe(eventbus.EventEnginePhase, fn)
}

// UnsubscribePhase removes a previously registered handler.
func (e *Engine) UnsubscribePhase(fn func(eventbus.PhaseEventData)) error {
	return e.bus.Unsubscribe(eventbus.EventEnginePhase, fn)
}

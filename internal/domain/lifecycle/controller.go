package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voxnote-go/internal/domain/artifact"
	"voxnote-go/internal/domain/capture"
	"voxnote-go/internal/domain/eventbus"
	"voxnote-go/internal/domain/note"
	"voxnote-go/internal/domain/promote"
	"voxnote-go/internal/domain/transcribe"
	"voxnote-go/internal/platform/errors"
)

// State is the top-level recording flow state.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
)

var (
	ErrNotRecording  = errors.New(errors.KindCapture, "lifecycle.stop", "no recording in progress")
	ErrNothingToSave = errors.New(errors.KindCapture, "lifecycle.commit", "no finalized recording to commit")
)

// Controller sequences capture, promotion and transcription for one
// recording at a time, and reacts to app background transitions so a
// finished-but-unconfirmed recording is never lost to process death.
type Controller struct {
	capture      *capture.Manager
	pipeline     *promote.Pipeline
	orchestrator *transcribe.Orchestrator
	artifacts    *artifact.Store
	bus          *eventbus.Bus
	logger       *slog.Logger

	mu        sync.Mutex
	state     State
	session   *capture.Session
	pending   *artifact.Artifact
	autoSaved bool
}

func NewController(cap *capture.Manager, pipeline *promote.Pipeline, orchestrator *transcribe.Orchestrator, artifacts *artifact.Store, bus *eventbus.Bus, logger *slog.Logger) *Controller {
	return &Controller{
		capture:      cap,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		artifacts:    artifacts,
		bus:          bus,
		logger:       logger,
		state:        StateIdle,
	}
}

// Bind subscribes the controller to app lifecycle signals.
func (c *Controller) Bind() error {
	if err := c.bus.Subscribe(eventbus.EventAppBackground, c.OnBackground); err != nil {
		return err
	}
	return c.bus.Subscribe(eventbus.EventAppForeground, c.OnForeground)
}

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed reports the current recording duration for display. It freezes at
// the stopped value once the session is finalized.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return c.session.Duration()
}

// StartRecording begins a new session. The auto-save guard resets here so
// one artifact can never be auto-saved twice across recordings.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return capture.ErrSessionAlreadyActive
	}
	c.autoSaved = false
	c.pending = nil
	c.mu.Unlock()

	session, err := c.capture.Start(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.state = StateRecording
	c.mu.Unlock()

	c.bus.Publish(eventbus.EventRecordingStarted, session.ID)
	return nil
}

// StopRecording finalizes the capture into a temp artifact and waits for the
// user to confirm a title (or for auto-save).
func (c *Controller) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording || c.session == nil {
		c.mu.Unlock()
		return ErrNotRecording
	}
	session := c.session
	c.mu.Unlock()

	art, err := c.capture.Stop(ctx, session)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.session = nil
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.pending = art
	c.state = StateFinalizing
	c.mu.Unlock()
	return nil
}

// Commit promotes the pending artifact under the user's title.
func (c *Controller) Commit(ctx context.Context, title string) (*note.Note, error) {
	c.mu.Lock()
	if c.state != StateFinalizing || c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNothingToSave
	}
	art := c.pending
	session := c.session
	c.pending = nil
	c.mu.Unlock()

	return c.commit(ctx, art, session, title)
}

func (c *Controller) commit(ctx context.Context, art *artifact.Artifact, session *capture.Session, title string) (*note.Note, error) {
	var fallback float64
	if session != nil {
		fallback = session.Duration().Seconds()
	}

	n, err := c.pipeline.Commit(ctx, art, promote.Metadata{
		Title:    title,
		Duration: fallback,
	})
	if err != nil {
		// The artifact stays pending so the user can retry or discard.
		c.mu.Lock()
		if c.state == StateFinalizing && c.pending == nil {
			c.pending = art
		}
		c.mu.Unlock()
		return nil, err
	}

	c.artifacts.ReleaseOwner(art.SessionID)

	c.mu.Lock()
	c.state = StateIdle
	c.session = nil
	c.mu.Unlock()

	c.bus.Publish(eventbus.EventRecordingCommitted, n.ID)

	// Transcription is fire-and-forget; its failure never blocks the note.
	if err := c.orchestrator.StartFor(ctx, n.ID); err != nil {
		c.logger.Warn("[lifecycle] failed to start transcription", "note", n.ID, "error", err)
	}
	return n, nil
}

// Discard drops the in-progress or finalized recording. An auto-saved
// artifact can never be discarded afterwards; the guard flag cleared the
// pending artifact when it committed.
func (c *Controller) Discard(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	art := c.pending
	c.session = nil
	c.pending = nil
	c.state = StateIdle
	c.mu.Unlock()

	if session != nil && session.State() == capture.StateRecording {
		c.capture.Discard(session)
	}
	if art != nil {
		if err := c.artifacts.Delete(art); err != nil {
			// Best-effort; the sweep reclaims it later.
			c.logger.Warn("[lifecycle] failed to delete discarded artifact", "name", art.Name, "error", err)
		}
		c.artifacts.ReleaseOwner(art.SessionID)
	}

	if session != nil || art != nil {
		c.bus.Publish(eventbus.EventRecordingDiscarded, "")
	}
	return nil
}

// OnBackground implements the auto-save rule: a finalized recording whose
// title was never confirmed commits immediately under a default title,
// exactly once, rather than risk dying with the process.
func (c *Controller) OnBackground() {
	c.mu.Lock()
	if c.state != StateFinalizing || c.pending == nil || c.autoSaved {
		c.mu.Unlock()
		return
	}
	art := c.pending
	session := c.session
	c.pending = nil
	c.autoSaved = true
	c.mu.Unlock()

	c.logger.Info("[lifecycle] auto-saving on background", "session", art.SessionID)
	if _, err := c.commit(context.Background(), art, session, note.DefaultTitle(time.Now())); err != nil {
		c.logger.Error("[lifecycle] auto-save failed", "session", art.SessionID, "error", err)
	}
}

// OnForeground is a hook for symmetry; nothing to restore today.
func (c *Controller) OnForeground() {}

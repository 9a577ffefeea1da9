package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"voxnote-go/internal/domain/eventbus"
	"voxnote-go/internal/domain/note"
	"voxnote-go/internal/platform/storage"
	"voxnote-go/internal/util/work"
)

const retryPriority = 10

// Orchestrator binds committed notes to transcription tasks. A note has at
// most one live task; starting a new task implicitly cancels the prior one,
// and a stale task's result can never overwrite a newer task's write.
type Orchestrator struct {
	engine   *Engine
	repo     *note.Repository
	files    storage.FileStore
	audioDir string
	pool     *work.Pool
	bus      *eventbus.Bus
	logger   *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
}

// task is one transient transcription attempt for a note.
type task struct {
	noteID     string
	generation uint64
	token      *Token
}

type transcribeJob struct {
	task *task
}

func NewOrchestrator(engine *Engine, repo *note.Repository, files storage.FileStore, audioDir string, pool *work.Pool, bus *eventbus.Bus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		repo:     repo,
		files:    files,
		audioDir: audioDir,
		pool:     pool,
		bus:      bus,
		logger:   logger,
		tasks:    make(map[string]*task),
	}
}

// SetPool installs the worker pool after construction. The pool's handler
// needs the orchestrator, so the two are wired in stages.
func (o *Orchestrator) SetPool(pool *work.Pool) {
	o.pool = pool
}

// JobHandler adapts the orchestrator to the work pool.
func (o *Orchestrator) JobHandler() work.JobHandler {
	return func(j work.Job) error {
		job, ok := j.(transcribeJob)
		if !ok {
			return nil
		}
		o.run(job.task)
		// Transcription failure is recorded on the note, never retried by
		// the pool; retry is a user action.
		return nil
	}
}

// StartFor begins (or restarts) transcription for a committed note. It is
// fire-and-forget: completion lands on the note row and the event bus.
func (o *Orchestrator) StartFor(ctx context.Context, noteID string) error {
	return o.start(ctx, noteID, 0)
}

// RetryFor is a user-triggered retry. It bumps the persisted retry count
// and schedules the task ahead of first-time work.
func (o *Orchestrator) RetryFor(ctx context.Context, noteID string) error {
	n, err := o.repo.GetByID(ctx, noteID)
	if err != nil {
		return err
	}
	retries := n.RetryCount + 1
	if err := o.repo.Update(ctx, noteID, note.Update{RetryCount: &retries}); err != nil {
		return err
	}
	return o.start(ctx, noteID, retryPriority)
}

func (o *Orchestrator) start(ctx context.Context, noteID string, priority int) error {
	generation, err := o.repo.BumpGeneration(ctx, noteID)
	if err != nil {
		return err
	}

	t := &task{
		noteID:     noteID,
		generation: generation,
		token:      NewToken(),
	}

	o.mu.Lock()
	if prior, ok := o.tasks[noteID]; ok {
		// Starting a new task implicitly cancels the prior one.
		prior.token.Cancel()
	}
	o.tasks[noteID] = t
	o.mu.Unlock()

	o.logger.Info("[transcribe] task started", "note", noteID, "generation", generation)
	return o.pool.SubmitWithOptions(transcribeJob{task: t}, priority, 0)
}

// CancelFor cancels the note's live task, if any. The note returns to
// pending unless a newer task has already claimed it.
func (o *Orchestrator) CancelFor(ctx context.Context, noteID string) {
	o.mu.Lock()
	t, ok := o.tasks[noteID]
	if ok {
		delete(o.tasks, noteID)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	o.engine.Cancel(t.token)

	pending := note.StatusPending
	applied, err := o.repo.FinishTranscription(ctx, noteID, t.generation, note.Update{
		TranscriptStatus: &pending,
	})
	if err != nil {
		o.logger.Warn("[transcribe] failed to reset cancelled note", "note", noteID, "error", err)
		return
	}
	if applied {
		o.logger.Info("[transcribe] task cancelled", "note", noteID, "generation", t.generation)
	}
}

// run executes one task on a pool worker.
func (o *Orchestrator) run(t *task) {
	ctx := context.Background()
	defer o.forget(t)

	n, err := o.repo.GetByID(ctx, t.noteID)
	if err != nil {
		// The note may have been deleted while queued; nothing to record.
		o.logger.Debug("[transcribe] note gone before task ran", "note", t.noteID)
		return
	}

	audioData, err := o.files.Read(filepath.Join(o.audioDir, n.AudioFile))
	if err != nil {
		o.fail(ctx, t, "audio missing")
		return
	}

	text, err := o.engine.Transcribe(ctx, audioData, t.token)
	switch {
	case errors.Is(err, ErrCancelled) || (t.token != nil && t.token.Cancelled()):
		// A cancelled task stops writing; CancelFor or the newer task owns
		// the note's status now.
		o.logger.Debug("[transcribe] task cancelled mid-flight", "note", t.noteID, "generation", t.generation)
		return
	case err != nil:
		o.fail(ctx, t, err.Error())
		return
	}

	completed := note.StatusCompleted
	empty := ""
	applied, err := o.repo.FinishTranscription(ctx, t.noteID, t.generation, note.Update{
		Transcript:       &text,
		TranscriptStatus: &completed,
		TranscriptError:  &empty,
	})
	if err != nil {
		o.logger.Warn("[transcribe] failed to record transcript", "note", t.noteID, "error", err)
		return
	}
	if !applied {
		o.logger.Debug("[transcribe] stale result dropped", "note", t.noteID, "generation", t.generation)
		return
	}

	o.bus.Publish(eventbus.EventTranscriptDone, eventbus.TranscriptEventData{
		NoteID:     t.noteID,
		Generation: t.generation,
		Text:       text,
	})
	o.logger.Info("[transcribe] transcript completed", "note", t.noteID, "generation", t.generation)
}

// fail records a non-fatal transcription failure. Any prior transcript is
// preserved; the note stays fully usable.
func (o *Orchestrator) fail(ctx context.Context, t *task, message string) {
	failed := note.StatusFailed
	applied, err := o.repo.FinishTranscription(ctx, t.noteID, t.generation, note.Update{
		TranscriptStatus: &failed,
		TranscriptError:  &message,
	})
	if err != nil {
		o.logger.Warn("[transcribe] failed to record failure", "note", t.noteID, "error", err)
		return
	}
	if applied {
		o.bus.Publish(eventbus.EventTranscriptFailed, eventbus.TranscriptEventData{
			NoteID:     t.noteID,
			Generation: t.generation,
			Err:        message,
		})
		o.logger.Info("[transcribe] transcript failed", "note", t.noteID, "error", message)
	}
}

func (o *Orchestrator) forget(t *task) {
	o.mu.Lock()
	if current, ok := o.tasks[t.noteID]; ok && current == t {
		delete(o.tasks, t.noteID)
	}
	o.mu.Unlock()
}

package lifecycle_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote-go/internal/domain/artifact"
	"voxnote-go/internal/domain/capture"
	"voxnote-go/internal/domain/eventbus"
	"voxnote-go/internal/domain/lifecycle"
	"voxnote-go/internal/domain/note"
	"voxnote-go/internal/domain/promote"
	"voxnote-go/internal/domain/transcribe"
	"voxnote-go/internal/platform/config"
	"voxnote-go/internal/platform/storage"
	"voxnote-go/internal/util/work"
)

type fakeStream struct {
	chunks chan []byte
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 16)}
}

func (f *fakeStream) Chunks() <-chan []byte      { return f.chunks }
func (f *fakeStream) Encoding() capture.Encoding { return capture.EncodingPCM }
func (f *fakeStream) SampleRate() int            { return 16000 }
func (f *fakeStream) Channels() int              { return 1 }
func (f *fakeStream) Close() error {
	close(f.chunks)
	return nil
}

type fakeMic struct {
	stream *fakeStream
}

func (f *fakeMic) RequestPermission(context.Context) (bool, error) { return true, nil }
func (f *fakeMic) Open(context.Context) (capture.RawAudioStream, error) {
	return f.stream, nil
}

type instantModel struct{}

func (instantModel) Load(context.Context, transcribe.ModelSpec) (transcribe.ModelHandle, error) {
	return "ok", nil
}
func (instantModel) Run(context.Context, transcribe.ModelHandle, []byte) (string, error) {
	return "buy milk and eggs", nil
}

type controllerFixture struct {
	controller *lifecycle.Controller
	repo       *note.Repository
	artifacts  *artifact.Store
	bus        *eventbus.Bus
	mic        *fakeMic
	tempDir    string
	audioDir   string
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	root := t.TempDir()
	tempDir := filepath.Join(root, "tmp")
	audioDir := filepath.Join(root, "audio")

	db, err := storage.Open(filepath.Join(root, "notes.db"))
	require.NoError(t, err)
	repo := note.NewRepository(db)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files := storage.NewLocalFileStore()
	artifacts := artifact.NewStore(tempDir, files, logger)
	bus := eventbus.New()

	mic := &fakeMic{stream: newFakeStream()}
	captureMgr := capture.NewManager(mic, artifacts, config.CaptureConfig{SampleRate: 16000, Channels: 1}, logger)
	pipeline := promote.NewPipeline(repo, artifacts, files, audioDir, logger)
	engine := transcribe.NewEngine(instantModel{}, transcribe.ModelSpec{ModelID: "base.en"}, bus, logger)

	orch := transcribe.NewOrchestrator(engine, repo, files, audioDir, nil, bus, logger)
	pool := work.NewPool(2, 0, orch.JobHandler())
	orch.SetPool(pool)
	t.Cleanup(pool.Stop)

	controller := lifecycle.NewController(captureMgr, pipeline, orch, artifacts, bus, logger)
	require.NoError(t, controller.Bind())

	return &controllerFixture{
		controller: controller,
		repo:       repo,
		artifacts:  artifacts,
		bus:        bus,
		mic:        mic,
		tempDir:    tempDir,
		audioDir:   audioDir,
	}
}

func (f *controllerFixture) record(t *testing.T, seconds float64) {
	t.Helper()
	require.NoError(t, f.controller.StartRecording(context.Background()))
	f.mic.stream.chunks <- make([]byte, int(seconds*16000)*2)
	require.NoError(t, f.controller.StopRecording(context.Background()))
	f.mic.stream = newFakeStream()
}

func waitForTranscript(t *testing.T, repo *note.Repository, id string) *note.Note {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		if n.TranscriptStatus == note.StatusCompleted {
			return n
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("transcription never completed")
	return nil
}

func TestRecordStopCommitFlow(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	f.record(t, 5)
	assert.Equal(t, lifecycle.StateFinalizing, f.controller.State())

	n, err := f.controller.Commit(ctx, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", n.Title)
	assert.InDelta(t, 5.0, n.Duration, 0.01)
	assert.Empty(t, n.Transcript)
	assert.Equal(t, lifecycle.StateIdle, f.controller.State())

	// transcription completes in the background
	done := waitForTranscript(t, f.repo, n.ID)
	assert.Equal(t, "buy milk and eggs", done.Transcript)
}

func TestCommitWithoutStop(t *testing.T) {
	f := newControllerFixture(t)
	_, err := f.controller.Commit(context.Background(), "nothing")
	assert.ErrorIs(t, err, lifecycle.ErrNothingToSave)
}

func TestStopWithoutStart(t *testing.T) {
	f := newControllerFixture(t)
	assert.ErrorIs(t, f.controller.StopRecording(context.Background()), lifecycle.ErrNotRecording)
}

func TestSecondStartWhileRecording(t *testing.T) {
	f := newControllerFixture(t)
	require.NoError(t, f.controller.StartRecording(context.Background()))
	assert.ErrorIs(t, f.controller.StartRecording(context.Background()), capture.ErrSessionAlreadyActive)
	require.NoError(t, f.controller.Discard(context.Background()))
}

func TestAutoSaveOnBackgroundIsIdempotent(t *testing.T) {
	f := newControllerFixture(t)
	f.record(t, 1)

	// two background transitions in a row commit exactly one note
	f.controller.OnBackground()
	f.controller.OnBackground()

	notes, err := f.repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Title, "Recording ")
	assert.Equal(t, lifecycle.StateIdle, f.controller.State())
}

func TestBackgroundWhileIdleIsNoOp(t *testing.T) {
	f := newControllerFixture(t)
	f.controller.OnBackground()

	notes, err := f.repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestManualCommitThenBackgroundDoesNotDoubleSave(t *testing.T) {
	f := newControllerFixture(t)
	f.record(t, 1)

	_, err := f.controller.Commit(context.Background(), "Confirmed")
	require.NoError(t, err)

	f.controller.OnBackground()

	notes, err := f.repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Confirmed", notes[0].Title)
}

func TestDiscardFinalizedRecording(t *testing.T) {
	f := newControllerFixture(t)
	f.record(t, 1)

	require.NoError(t, f.controller.Discard(context.Background()))
	assert.Equal(t, lifecycle.StateIdle, f.controller.State())

	notes, err := f.repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notes)

	// no stray temp artifacts left behind
	entries, err := os.ReadDir(f.tempDir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestBusBackgroundEventTriggersAutoSave(t *testing.T) {
	f := newControllerFixture(t)
	f.record(t, 1)

	f.bus.Publish(eventbus.EventAppBackground)
	f.bus.WaitAsync()

	notes, err := f.repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
}

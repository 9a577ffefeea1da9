package capture_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxnote-go/internal/domain/artifact"
	"voxnote-go/internal/domain/capture"
	"voxnote-go/internal/platform/config"
	"voxnote-go/internal/platform/storage"
	"voxnote-go/internal/util/audio"
)

type fakeStream struct {
	chunks   chan []byte
	encoding capture.Encoding
	rate     int
	channels int
}

func newFakeStream(encoding capture.Encoding, rate, channels int) *fakeStream {
	return &fakeStream{
		chunks:   make(chan []byte, 16),
		encoding: encoding,
		rate:     rate,
		channels: channels,
	}
}

func (f *fakeStream) Chunks() <-chan []byte       { return f.chunks }
func (f *fakeStream) Encoding() capture.Encoding  { return f.encoding }
func (f *fakeStream) SampleRate() int             { return f.rate }
func (f *fakeStream) Channels() int               { return f.channels }
func (f *fakeStream) Close() error {
	close(f.chunks)
	return nil
}

type fakeMic struct {
	grant     bool
	permErr   error
	openErr   error
	stream    *fakeStream
	permCalls int
}

func (f *fakeMic) RequestPermission(context.Context) (bool, error) {
	f.permCalls++
	return f.grant, f.permErr
}

func (f *fakeMic) Open(context.Context) (capture.RawAudioStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func newTestManager(t *testing.T, mic capture.MicrophoneCapture) (*capture.Manager, *artifact.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := artifact.NewStore(t.TempDir(), storage.NewLocalFileStore(), logger)
	cfg := config.CaptureConfig{SampleRate: 16000, Channels: 1}
	return capture.NewManager(mic, store, cfg, logger), store
}

func TestStartStopProducesWavArtifact(t *testing.T) {
	stream := newFakeStream(capture.EncodingPCM, 16000, 1)
	mic := &fakeMic{grant: true, stream: stream}
	mgr, store := newTestManager(t, mic)

	session, err := mgr.Start(context.Background())
	require.NoError(t, err)

	// half a second of silence in two chunks
	stream.chunks <- make([]byte, 8000)
	stream.chunks <- make([]byte, 8000)

	art, err := mgr.Stop(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, session.ID, art.SessionID)
	assert.Equal(t, audio.FormatWav, art.Encoding)

	data, err := store.Read(art)
	require.NoError(t, err)
	info, pcm, err := audio.ParseWav(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Len(t, pcm, 16000)

	assert.Nil(t, mgr.Active())
}

func TestStreamWithoutParamsUsesConfiguredDefaults(t *testing.T) {
	// the device reports neither sample rate nor channel count
	stream := newFakeStream(capture.EncodingPCM, 0, 0)
	mic := &fakeMic{grant: true, stream: stream}
	mgr, store := newTestManager(t, mic)

	session, err := mgr.Start(context.Background())
	require.NoError(t, err)

	stream.chunks <- make([]byte, 8000)

	art, err := mgr.Stop(context.Background(), session)
	require.NoError(t, err)

	data, err := store.Read(art)
	require.NoError(t, err)
	info, _, err := audio.ParseWav(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
}

func TestHighRateMonoCaptureResampledToConfiguredRate(t *testing.T) {
	stream := newFakeStream(capture.EncodingPCM, 48000, 1)
	mic := &fakeMic{grant: true, stream: stream}
	mgr, store := newTestManager(t, mic)

	session, err := mgr.Start(context.Background())
	require.NoError(t, err)

	// half a second at 48kHz
	stream.chunks <- make([]byte, 48000)

	art, err := mgr.Stop(context.Background(), session)
	require.NoError(t, err)

	data, err := store.Read(art)
	require.NoError(t, err)
	info, pcm, err := audio.ParseWav(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Len(t, pcm, 16000)
}

func TestSecondStartRejectedWhileRecording(t *testing.T) {
	stream := newFakeStream(capture.EncodingPCM, 16000, 1)
	mic := &fakeMic{grant: true, stream: stream}
	mgr, _ := newTestManager(t, mic)

	session, err := mgr.Start(context.Background())
	require.NoError(t, err)

	_, err = mgr.Start(context.Background())
	assert.ErrorIs(t, err, capture.ErrSessionAlreadyActive)

	mgr.Discard(session)
	mic.stream = newFakeStream(capture.EncodingPCM, 16000, 1)
	_, err = mgr.Start(context.Background())
	assert.NoError(t, err)
}

func TestPermissionDenied(t *testing.T) {
	mic := &fakeMic{grant: false}
	mgr, _ := newTestManager(t, mic)

	_, err := mgr.Start(context.Background())
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.Nil(t, mgr.Active())
}

func TestPermissionRequestedOnce(t *testing.T) {
	mic := &fakeMic{grant: true, stream: newFakeStream(capture.EncodingPCM, 16000, 1)}
	mgr, _ := newTestManager(t, mic)

	s1, err := mgr.Start(context.Background())
	require.NoError(t, err)
	mgr.Discard(s1)

	mic.stream = newFakeStream(capture.EncodingPCM, 16000, 1)
	s2, err := mgr.Start(context.Background())
	require.NoError(t, err)
	mgr.Discard(s2)

	assert.Equal(t, 1, mic.permCalls)
}

func TestDeviceUnavailable(t *testing.T) {
	mic := &fakeMic{grant: true, openErr: errors.New("no such device")}
	mgr, _ := newTestManager(t, mic)

	_, err := mgr.Start(context.Background())
	assert.Error(t, err)
	assert.Nil(t, mgr.Active())
}

func TestStopWithoutActiveSession(t *testing.T) {
	mic := &fakeMic{grant: true, stream: newFakeStream(capture.EncodingPCM, 16000, 1)}
	mgr, _ := newTestManager(t, mic)

	_, err := mgr.Stop(context.Background(), nil)
	assert.ErrorIs(t, err, capture.ErrNoActiveSession)
}

func TestDiscardReleasesOwnershipForSweep(t *testing.T) {
	stream := newFakeStream(capture.EncodingPCM, 16000, 1)
	mic := &fakeMic{grant: true, stream: stream}
	mgr, _ := newTestManager(t, mic)

	session, err := mgr.Start(context.Background())
	require.NoError(t, err)

	mgr.Discard(session)
	assert.Equal(t, capture.StateDiscarded, session.State())
	assert.Nil(t, mgr.Active())
}

func TestContainerChunksStoredAsIs(t *testing.T) {
	wav, err := audio.EncodeWav(make([]byte, 3200), 16000, 1)
	require.NoError(t, err)

	stream := newFakeStream(capture.EncodingWav, 16000, 1)
	mic := &fakeMic{grant: true, stream: stream}
	mgr, store := newTestManager(t, mic)

	session, err := mgr.Start(context.Background())
	require.NoError(t, err)
	stream.chunks <- wav

	art, err := mgr.Stop(context.Background(), session)
	require.NoError(t, err)

	data, err := store.Read(art)
	require.NoError(t, err)
	assert.Equal(t, wav, data)
}

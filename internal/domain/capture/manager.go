package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxnote-go/internal/domain/artifact"
	"voxnote-go/internal/platform/config"
	"voxnote-go/internal/platform/errors"
	"voxnote-go/internal/util/audio"
)

var (
	ErrPermissionDenied     = errors.New(errors.KindPermission, "capture.start", "microphone permission denied")
	ErrDeviceUnavailable    = errors.New(errors.KindCapture, "capture.start", "audio device unavailable")
	ErrSessionAlreadyActive = errors.New(errors.KindCapture, "capture.start", "a recording session is already active")
	ErrNoActiveSession      = errors.New(errors.KindCapture, "capture.stop", "no active recording session")
)

// Manager owns microphone capture. At most one session may be acquiring or
// recording at any time process-wide.
type Manager struct {
	mic    MicrophoneCapture
	store  *artifact.Store
	cfg    config.CaptureConfig
	logger *slog.Logger

	mu                sync.Mutex
	active            *Session
	permissionGranted bool
}

func NewManager(mic MicrophoneCapture, store *artifact.Store, cfg config.CaptureConfig, logger *slog.Logger) *Manager {
	return &Manager{
		mic:    mic,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Start acquires the microphone and begins recording. A second concurrent
// Start fails with ErrSessionAlreadyActive rather than silently replacing an
// in-progress recording.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.active != nil {
		state := m.active.State()
		if state == StateAcquiring || state == StateRecording || state == StateStopping {
			m.mu.Unlock()
			return nil, ErrSessionAlreadyActive
		}
	}

	session := &Session{
		ID:      uuid.New().String(),
		state:   StateAcquiring,
		drained: make(chan struct{}),
	}
	m.active = session
	m.mu.Unlock()

	// Register ownership before any artifact can exist so the sweep can
	// never reclaim this session's file.
	m.store.RegisterOwner(session.ID)

	if err := m.ensurePermission(ctx); err != nil {
		m.clearActive(session, StateDiscarded)
		return nil, err
	}

	stream, err := m.mic.Open(ctx)
	if err != nil {
		m.clearActive(session, StateDiscarded)
		return nil, errors.Wrap(errors.KindCapture, "capture.start", ErrDeviceUnavailable.Message, err)
	}

	session.mu.Lock()
	session.stream = stream
	session.startedAt = time.Now()
	session.state = StateRecording
	session.mu.Unlock()

	go session.drain()

	m.logger.Info("[capture] recording started", "session", session.ID, "encoding", stream.Encoding())
	return session, nil
}

// ensurePermission requests microphone permission once, synchronously,
// before capture is attempted.
func (m *Manager) ensurePermission(ctx context.Context) error {
	m.mu.Lock()
	granted := m.permissionGranted
	m.mu.Unlock()
	if granted {
		return nil
	}

	ok, err := m.mic.RequestPermission(ctx)
	if err != nil {
		return errors.Wrap(errors.KindPermission, "capture.start", "permission request failed", err)
	}
	if !ok {
		return ErrPermissionDenied
	}

	m.mu.Lock()
	m.permissionGranted = true
	m.mu.Unlock()
	return nil
}

// Stop finalizes the session's buffer and writes it to a temp artifact.
func (m *Manager) Stop(ctx context.Context, session *Session) (*artifact.Artifact, error) {
	if session == nil || !m.isActive(session) {
		return nil, ErrNoActiveSession
	}
	if session.State() != StateRecording {
		return nil, ErrNoActiveSession
	}

	session.mu.Lock()
	session.state = StateStopping
	session.stoppedAt = time.Now()
	stream := session.stream
	session.mu.Unlock()

	if err := stream.Close(); err != nil {
		m.logger.Warn("[capture] stream close failed", "session", session.ID, "error", err)
	}
	<-session.drained

	data, format, err := m.finalize(session, stream)
	if err != nil {
		session.setState(StateDiscarded)
		m.clearActive(session, StateDiscarded)
		return nil, err
	}

	art, err := m.store.Save(session.ID, data, format)
	if err != nil {
		m.clearActive(session, StateDiscarded)
		return nil, err
	}

	session.setState(StateFinalized)
	m.mu.Lock()
	if m.active == session {
		m.active = nil
	}
	m.mu.Unlock()

	m.logger.Info("[capture] recording stopped", "session", session.ID,
		"duration", session.Duration().Seconds(), "bytes", art.Size)
	return art, nil
}

// finalize normalizes the accumulated chunks into a storable container.
func (m *Manager) finalize(session *Session, stream RawAudioStream) ([]byte, audio.Format, error) {
	session.mu.Lock()
	chunks := session.chunks
	total := session.byteCount
	session.mu.Unlock()

	// Devices that do not report their parameters fall back to the
	// configured capture defaults.
	sampleRate := stream.SampleRate()
	if sampleRate <= 0 {
		sampleRate = m.cfg.SampleRate
	}
	channels := stream.Channels()
	if channels <= 0 {
		channels = m.cfg.Channels
	}

	switch stream.Encoding() {
	case EncodingPCM:
		pcm := make([]byte, 0, total)
		for _, c := range chunks {
			pcm = append(pcm, c...)
		}
		// Linear resampling is only valid on a single channel; stereo
		// devices keep their native rate.
		if m.cfg.SampleRate > 0 && channels == 1 && sampleRate != m.cfg.SampleRate {
			pcm = audio.ResamplePCMBytes(pcm, sampleRate, m.cfg.SampleRate)
			sampleRate = m.cfg.SampleRate
		}
		data, err := audio.EncodeWav(pcm, sampleRate, channels)
		if err != nil {
			return nil, audio.FormatUnknown, errors.Wrap(errors.KindCapture, "capture.stop", "failed to encode wav", err)
		}
		return data, audio.FormatWav, nil

	case EncodingOpus:
		dec, err := audio.NewOpusDecoder(&audio.OpusDecoderConfig{
			SampleRate:  sampleRate,
			MaxChannels: channels,
		})
		if err != nil {
			return nil, audio.FormatUnknown, errors.Wrap(errors.KindCapture, "capture.stop", "failed to init opus decoder", err)
		}
		defer dec.Close()
		pcm, err := dec.DecodeFrames(chunks)
		if err != nil {
			return nil, audio.FormatUnknown, errors.Wrap(errors.KindCapture, "capture.stop", "failed to decode opus frames", err)
		}
		data, err := audio.EncodeWav(pcm, sampleRate, channels)
		if err != nil {
			return nil, audio.FormatUnknown, errors.Wrap(errors.KindCapture, "capture.stop", "failed to encode wav", err)
		}
		return data, audio.FormatWav, nil

	case EncodingMP3:
		data := make([]byte, 0, total)
		for _, c := range chunks {
			data = append(data, c...)
		}
		return data, audio.FormatMP3, nil

	default:
		// Container bytes delivered by the device, stored as-is. The
		// promotion pipeline sniffs the real format before trusting it.
		data := make([]byte, 0, total)
		for _, c := range chunks {
			data = append(data, c...)
		}
		return data, audio.FormatWav, nil
	}
}

// Discard abandons the session, closing the stream and releasing artifact
// ownership so the sweep can reclaim anything it wrote.
func (m *Manager) Discard(session *Session) {
	if session == nil {
		return
	}

	session.mu.Lock()
	stream := session.stream
	running := session.state == StateRecording || session.state == StateStopping
	session.state = StateDiscarded
	session.mu.Unlock()

	if stream != nil && running {
		_ = stream.Close()
		<-session.drained
	}

	m.clearActive(session, StateDiscarded)
	m.logger.Info("[capture] recording discarded", "session", session.ID)
}

// Active returns the in-flight session, if any.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) isActive(session *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active == session
}

func (m *Manager) clearActive(session *Session, state State) {
	session.setState(state)
	m.store.ReleaseOwner(session.ID)
	m.mu.Lock()
	if m.active == session {
		m.active = nil
	}
	m.mu.Unlock()
}

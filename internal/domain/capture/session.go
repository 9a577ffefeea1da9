package capture

import (
	"sync"
	"time"
)

// State is the capture state of one recording session.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateFinalized State = "finalized"
	StateDiscarded State = "discarded"
)

// Session is one transient recording attempt. It is never persisted.
type Session struct {
	ID string

	mu        sync.Mutex
	state     State
	startedAt time.Time // when the underlying capture actually began
	stoppedAt time.Time
	stream    RawAudioStream
	chunks    [][]byte
	byteCount int
	drained   chan struct{}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Duration is wall-clock elapsed since capture actually began, so
// permission-prompt latency never inflates it. It freezes at stop.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	if !s.stoppedAt.IsZero() {
		return s.stoppedAt.Sub(s.startedAt)
	}
	return time.Since(s.startedAt)
}

func (s *Session) appendChunk(chunk []byte) {
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.byteCount += len(chunk)
	s.mu.Unlock()
}

// drain runs on its own goroutine, accumulating chunks until the stream ends.
func (s *Session) drain() {
	defer close(s.drained)
	for chunk := range s.stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		s.appendChunk(buf)
	}
}

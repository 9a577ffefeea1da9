package eventbus

// Topic constants for the recording and transcription lifecycle.
const (
	// Transcription engine phase changes.
	EventEnginePhase = "engine:phase"

	// Note transcription outcomes.
	EventTranscriptDone   = "transcript:done"
	EventTranscriptFailed = "transcript:failed"

	// App lifecycle signals consumed by the recording controller.
	EventAppBackground = "app:background"
	EventAppForeground = "app:foreground"

	// Recording lifecycle.
	EventRecordingStarted   = "recording:started"
	EventRecordingCommitted = "recording:committed"
	EventRecordingDiscarded = "recording:discarded"
)

// PhaseEventData accompanies EventEnginePhase.
type PhaseEventData struct {
	Phase string `json:"phase"`
	Err   string `json:"error,omitempty"`
}

// TranscriptEventData accompanies transcript events.
type TranscriptEventData struct {
	NoteID     string `json:"note_id"`
	Generation uint64 `json:"generation"`
	Text       string `json:"text,omitempty"`
	Err        string `json:"error,omitempty"`
}

package capture

import "context"

// Encoding identifies how a capture stream frames its audio chunks.
type Encoding string

const (
	// EncodingPCM yields raw 16-bit little-endian PCM chunks.
	EncodingPCM Encoding = "pcm"
	// EncodingOpus yields one raw opus frame per chunk.
	EncodingOpus Encoding = "opus"
	// EncodingWav and EncodingMP3 yield container bytes to concatenate as-is.
	EncodingWav Encoding = "wav"
	EncodingMP3 Encoding = "mp3"
)

// RawAudioStream is one open microphone stream. The chunk channel is closed
// by the device when the stream ends; Close stops capture from our side.
type RawAudioStream interface {
	Chunks() <-chan []byte
	Encoding() Encoding
	SampleRate() int
	Channels() int
	Close() error
}

// MicrophoneCapture abstracts the OS-level audio capture API.
type MicrophoneCapture interface {
	RequestPermission(ctx context.Context) (bool, error)
	Open(ctx context.Context) (RawAudioStream, error)
}

package audio

import (
	"fmt"
	"sync"

	opus "github.com/qrtc/opus-go"
)

// Opus permits frames up to 120ms of audio.
const maxOpusFrameMillis = 120

// OpusDecoderConfig configures opus frame decoding.
type OpusDecoderConfig struct {
	SampleRate  int
	MaxChannels int
}

// OpusDecoder decodes raw opus frames to 16-bit PCM.
type OpusDecoder struct {
	decoder *opus.OpusDecoder
	config  *OpusDecoderConfig
	pcmBuf  []byte
	mu      sync.Mutex
	closed  bool
}

// NewOpusDecoder creates a decoder; a nil config selects 16kHz mono.
func NewOpusDecoder(config *OpusDecoderConfig) (*OpusDecoder, error) {
	if config == nil {
		config = &OpusDecoderConfig{
			SampleRate:  16000,
			MaxChannels: 1,
		}
	}

	decoder, err := opus.CreateOpusDecoder(&opus.OpusDecoderConfig{
		SampleRate:  config.SampleRate,
		MaxChannels: config.MaxChannels,
	})
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	bufSize := config.SampleRate * maxOpusFrameMillis / 1000 * config.MaxChannels * 2
	return &OpusDecoder{
		decoder: decoder,
		config:  config,
		pcmBuf:  make([]byte, bufSize),
	}, nil
}

// Decode converts a single opus frame into PCM bytes. Empty input yields nil.
func (d *OpusDecoder) Decode(opusData []byte) ([]byte, error) {
	if len(opusData) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("opus decoder closed")
	}

	n, err := d.decoder.Decode(opusData, d.pcmBuf)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	pcm := make([]byte, n)
	copy(pcm, d.pcmBuf[:n])
	return pcm, nil
}

// DecodeFrames decodes a sequence of opus frames into one PCM stream.
func (d *OpusDecoder) DecodeFrames(frames [][]byte) ([]byte, error) {
	var out []byte
	for i, frame := range frames {
		pcm, err := d.Decode(frame)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out = append(out, pcm...)
	}
	return out, nil
}

// Close releases the underlying codec state; safe to call twice.
func (d *OpusDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.decoder.Close()
}

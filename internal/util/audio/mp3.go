package audio

import (
	"bytes"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// mp3 decoding always yields 16-bit stereo PCM at the source sample rate.
const mp3BytesPerFrame = 4

// DecodeMP3 decodes an MP3 stream to 16-bit stereo PCM.
func DecodeMP3(data []byte) (pcm []byte, sampleRate int, err error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}

	var out bytes.Buffer
	if _, err := io.Copy(&out, dec); err != nil {
		return nil, 0, fmt.Errorf("mp3 read: %w", err)
	}
	return out.Bytes(), dec.SampleRate(), nil
}

// MP3Duration returns the playback duration in seconds without decoding
// the full stream into memory twice.
func MP3Duration(data []byte) (float64, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("mp3 decode: %w", err)
	}
	if dec.SampleRate() == 0 {
		return 0, fmt.Errorf("mp3 reports zero sample rate")
	}
	return float64(dec.Length()) / float64(mp3BytesPerFrame) / float64(dec.SampleRate()), nil
}

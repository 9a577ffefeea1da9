package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

const wavHeaderSize = 44

// writeWavHeader writes a canonical 44-byte PCM WAV header.
func writeWavHeader(w io.Writer, dataSize, sampleRate, channels, bitsPerSample int) error {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf [wavHeaderSize]byte
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	_, err := w.Write(buf[:])
	return err
}

// EncodeWav wraps raw 16-bit PCM in a WAV container.
func EncodeWav(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid wav parameters: rate=%d channels=%d", sampleRate, channels)
	}
	buf := &sliceWriter{buf: make([]byte, 0, wavHeaderSize+len(pcm))}
	if err := writeWavHeader(buf, len(pcm), sampleRate, channels, 16); err != nil {
		return nil, err
	}
	buf.buf = append(buf.buf, pcm...)
	return buf.buf, nil
}

type sliceWriter struct{ buf []byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// WavInfo describes the PCM payload of a WAV container.
type WavInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

// ParseWav validates a WAV container and returns its format info and PCM payload.
func ParseWav(data []byte) (*WavInfo, []byte, error) {
	if len(data) < wavHeaderSize {
		return nil, nil, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("not a wav container")
	}

	info := &WavInfo{
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
	}
	if info.SampleRate <= 0 || info.Channels <= 0 || info.BitsPerSample <= 0 {
		return nil, nil, fmt.Errorf("corrupt wav format chunk")
	}

	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	payload := data[wavHeaderSize:]
	if dataSize > len(payload) {
		return nil, nil, fmt.Errorf("wav data chunk truncated: header=%d actual=%d", dataSize, len(payload))
	}
	info.DataSize = dataSize
	return info, payload[:dataSize], nil
}

// WavDuration returns the playback duration in seconds of a WAV payload.
func WavDuration(data []byte) (float64, error) {
	info, _, err := ParseWav(data)
	if err != nil {
		return 0, err
	}
	byteRate := info.SampleRate * info.Channels * info.BitsPerSample / 8
	if byteRate == 0 {
		return 0, fmt.Errorf("zero byte rate")
	}
	return float64(info.DataSize) / float64(byteRate), nil
}

// resamplePCM performs linear interpolation between sample rates.
func resamplePCM(input []int16, inputRate, outputRate int) []int16 {
	if inputRate == outputRate || len(input) == 0 {
		return input
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLen := int(float64(len(input)) * ratio)
	if outputLen == 0 {
		outputLen = 1
	}
	output := make([]int16, outputLen)

	for i := range output {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(input)-1 {
			output[i] = input[len(input)-1]
			continue
		}
		frac := pos - float64(idx)
		output[i] = int16(float64(input[idx])*(1-frac) + float64(input[idx+1])*frac)
	}
	return output
}

// ResamplePCMBytes resamples little-endian 16-bit PCM between sample rates.
func ResamplePCMBytes(data []byte, inputRate, outputRate int) []byte {
	if inputRate == outputRate {
		return data
	}
	return Int16ToBytes(resamplePCM(BytesToInt16(data), inputRate, outputRate))
}

// BytesToInt16 reinterprets little-endian 16-bit PCM bytes as samples.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Int16ToBytes serializes samples as little-endian 16-bit PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

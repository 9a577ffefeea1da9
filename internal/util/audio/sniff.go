package audio

// Format identifies an audio container/codec detected from byte signatures.
type Format string

const (
	FormatWav     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
	FormatUnknown Format = "unknown"
)

// DetectFormat sniffs the container format from leading signature bytes.
// The file extension is never consulted; the negotiated capture encoding can
// legitimately differ from the name a file was saved under.
func DetectFormat(data []byte) Format {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWav
	}
	if len(data) >= 4 && string(data[0:4]) == "OggS" {
		return FormatOgg
	}
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return FormatMP3
	}
	// Bare MPEG audio frame sync: 11 set bits, then a valid layer field.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0 {
		return FormatMP3
	}
	return FormatUnknown
}

// Extension returns the canonical file extension for a format.
func (f Format) Extension() string {
	switch f {
	case FormatWav:
		return ".wav"
	case FormatMP3:
		return ".mp3"
	case FormatOgg:
		return ".ogg"
	default:
		return ".bin"
	}
}

package audio

import "fmt"

// Duration probes the playback duration in seconds of an encoded audio blob.
// The format is sniffed from content, never from a filename.
func Duration(data []byte) (float64, error) {
	switch DetectFormat(data) {
	case FormatWav:
		return WavDuration(data)
	case FormatMP3:
		return MP3Duration(data)
	default:
		return 0, fmt.Errorf("cannot probe duration of %s audio", DetectFormat(data))
	}
}

// Verify confirms that data is a readable audio blob in a supported format.
func Verify(data []byte) (Format, error) {
	format := DetectFormat(data)
	switch format {
	case FormatWav:
		if _, _, err := ParseWav(data); err != nil {
			return format, err
		}
	case FormatMP3:
		if _, err := MP3Duration(data); err != nil {
			return format, err
		}
	case FormatOgg:
		// Accepted container; deep verification happens when it is decoded.
	default:
		return format, fmt.Errorf("unrecognized audio signature")
	}
	return format, nil
}

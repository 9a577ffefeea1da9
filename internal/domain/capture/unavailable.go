package capture

import "context"

// UnavailableMicrophone stands in when the host application has not wired
// a real capture device. Every open attempt reports the device as absent.
type UnavailableMicrophone struct{}

func (UnavailableMicrophone) RequestPermission(context.Context) (bool, error) {
	return false, nil
}

func (UnavailableMicrophone) Open(context.Context) (RawAudioStream, error) {
	return nil, ErrDeviceUnavailable
}

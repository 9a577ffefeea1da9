package transcribe

import (
	"context"

	platformerrors "voxnote-go/internal/platform/errors"
)

// UnavailableModel stands in when the host application has not wired a
// speech runtime. Loading always fails, so the engine parks in the error
// phase and transcription requests fail fast until Initialize is called
// again.
type UnavailableModel struct{}

func (UnavailableModel) Load(context.Context, ModelSpec) (ModelHandle, error) {
	return nil, platformerrors.New(platformerrors.KindTranscription,
		"transcribe.UnavailableModel.Load", "no speech model configured")
}

func (UnavailableModel) Run(context.Context, ModelHandle, []byte) (string, error) {
	return "", ErrEngineNotReady
}

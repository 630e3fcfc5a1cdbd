package media

import (
	"context"

	"github.com/dkeye/peercall/internal/domain"
)

type VideoConstraints struct {
	Width     int
	Height    int
	FrameRate int
}

type Constraints struct {
	Audio bool
	Video *VideoConstraints
}

// ConstraintsFor derives capture constraints from the call kind.
// Audio is always requested; video only for video calls.
func ConstraintsFor(kind domain.MediaKind) Constraints {
	c := Constraints{Audio: true}
	if kind.HasVideo() {
		c.Video = &VideoConstraints{Width: 1280, Height: 720, FrameRate: 30}
	}
	return c
}

// Devices opens camera and microphone capture.
// Failures must be reported as *MediaAccessError.
type Devices interface {
	GetUserMedia(ctx context.Context, c Constraints) (*Stream, error)
}

// DisplayCapturer opens a screen capture track.
type DisplayCapturer interface {
	GetDisplayMedia(ctx context.Context) (*Track, error)
}

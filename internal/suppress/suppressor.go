package suppress

import (
	"context"

	"github.com/vigil-labs/vigil-core/internal/audio"
)

// Suppressor cleans a raw clip before detection. Implementations must
// return a clip of the same length and sample rate as the input.
type Suppressor interface {
	Suppress(ctx context.Context, clip audio.Clip) (audio.Clip, error)
}

type passthrough struct{}

// NewPassthrough returns the identity suppressor.
func NewPassthrough() Suppressor {
	return passthrough{}
}

func (passthrough) Suppress(_ context.Context, clip audio.Clip) (audio.Clip, error) {
	return clip, nil
}

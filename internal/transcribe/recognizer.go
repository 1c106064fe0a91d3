package transcribe

import (
	"context"
	"time"

	"github.com/vigil-labs/vigil-core/internal/audio"
)

// Result captures recognizer output for one clip.
type Result struct {
	Text       string
	Language   string
	Confidence float64
	Latency    time.Duration
}

// Recognizer abstracts transcription backends.
type Recognizer interface {
	Transcribe(ctx context.Context, clip audio.Clip) (Result, error)
}

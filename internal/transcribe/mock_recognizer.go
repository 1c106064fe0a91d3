package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-labs/vigil-core/internal/audio"
)

type mockRecognizer struct {
	delay time.Duration
}

// NewMockRecognizer returns a recognizer producing synthetic transcripts.
func NewMockRecognizer(delay time.Duration) Recognizer {
	return &mockRecognizer{delay: delay}
}

func (m *mockRecognizer) Transcribe(ctx context.Context, clip audio.Clip) (Result, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	return Result{
		Text:       fmt.Sprintf("[mock transcript samples=%d]", len(clip.PCM)/2),
		Language:   "en",
		Confidence: 0,
		Latency:    m.delay,
	}, nil
}

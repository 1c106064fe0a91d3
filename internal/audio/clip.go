package audio

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// Clip is one fixed-duration PCM capture. Immutable once built; the
// pipeline owns it for the duration of a single run and drops it after.
type Clip struct {
	ID         string
	SessionID  string
	PCM        []byte
	SampleRate int
	Channels   int
	Duration   time.Duration
}

var (
	ErrEmptyClip  = errors.New("audio clip is empty")
	ErrUnaligned  = errors.New("pcm payload not aligned to 16-bit samples")
	ErrBadFormat  = errors.New("audio clip has invalid sample rate or channel count")
	ErrZeroLength = errors.New("audio clip has zero duration")
)

// NewClip validates the raw capture and derives its duration from the
// sample count when none is supplied.
func NewClip(sessionID string, pcm []byte, sampleRate, channels int, duration time.Duration) (Clip, error) {
	if len(pcm) == 0 {
		return Clip{}, ErrEmptyClip
	}
	if len(pcm)%2 != 0 {
		return Clip{}, ErrUnaligned
	}
	if sampleRate <= 0 || channels <= 0 {
		return Clip{}, ErrBadFormat
	}
	if duration <= 0 {
		samples := len(pcm) / 2 / channels
		duration = time.Duration(samples) * time.Second / time.Duration(sampleRate)
	}
	if duration <= 0 {
		return Clip{}, ErrZeroLength
	}
	return Clip{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   duration,
	}, nil
}

// Samples decodes the little-endian 16-bit payload.
func (c Clip) Samples() []int16 {
	samples := make([]int16, len(c.PCM)/2)
	for i := range samples {
		samples[i] = int16(uint16(c.PCM[i*2]) | uint16(c.PCM[i*2+1])<<8)
	}
	return samples
}

// Slice returns a sub-clip covering samples [from, to). Shares the
// backing PCM; callers must not mutate it.
func (c Clip) Slice(from, to int) Clip {
	total := len(c.PCM) / 2
	if from < 0 {
		from = 0
	}
	if to > total {
		to = total
	}
	if from >= to {
		return Clip{ID: c.ID, SessionID: c.SessionID, SampleRate: c.SampleRate, Channels: c.Channels}
	}
	sub := c
	sub.PCM = c.PCM[from*2 : to*2]
	sub.Duration = time.Duration(to-from) / time.Duration(c.Channels) * time.Second / time.Duration(c.SampleRate)
	return sub
}

// RMS computes the root-mean-square level of a frame, normalized to [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

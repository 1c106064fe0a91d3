package vad

import (
	"github.com/vigil-labs/vigil-core/internal/audio"
	"github.com/vigil-labs/vigil-core/internal/config"
)

// Segment is a speech-bearing sample range within a clip.
type Segment struct {
	Start int // inclusive sample index
	End   int // exclusive sample index
}

// Detector finds speech segments by RMS energy with hysteresis: a run of
// loud frames opens a segment, a longer run of quiet frames closes it.
// Stateless across clips.
type Detector struct {
	cfg config.VADConfig
}

func NewDetector(cfg config.VADConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns ordered, non-overlapping speech segments, or nil when the
// clip contains no speech.
func (d *Detector) Detect(clip audio.Clip) []Segment {
	if !d.cfg.Enabled {
		total := len(clip.PCM) / 2
		if total == 0 {
			return nil
		}
		return []Segment{{Start: 0, End: total}}
	}

	samples := clip.Samples()
	frameLen := clip.SampleRate * clip.Channels * d.cfg.FrameMS / 1000
	if frameLen <= 0 || len(samples) == 0 {
		return nil
	}

	var (
		segments     []Segment
		inSpeech     bool
		speechCount  int
		silenceCount int
		segStart     int
	)

	for off := 0; off < len(samples); off += frameLen {
		end := off + frameLen
		if end > len(samples) {
			end = len(samples)
		}
		level := audio.RMS(samples[off:end])

		if inSpeech {
			if level < d.cfg.SilenceThreshold {
				silenceCount++
				if silenceCount >= d.cfg.SilenceFrames {
					segments = append(segments, Segment{Start: segStart, End: off})
					inSpeech = false
					silenceCount = 0
				}
			} else {
				silenceCount = 0
			}
		} else {
			if level >= d.cfg.SpeechThreshold {
				speechCount++
				if speechCount >= d.cfg.SpeechFrames {
					// Segment opens at the first frame of the run.
					segStart = off - (d.cfg.SpeechFrames-1)*frameLen
					if segStart < 0 {
						segStart = 0
					}
					inSpeech = true
					speechCount = 0
				}
			} else {
				speechCount = 0
			}
		}
	}

	if inSpeech {
		segments = append(segments, Segment{Start: segStart, End: len(samples)})
	}
	return segments
}

// Extract returns the sub-clips covered by segments, in order.
func (d *Detector) Extract(clip audio.Clip, segments []Segment) []audio.Clip {
	clips := make([]audio.Clip, 0, len(segments))
	for _, seg := range segments {
		sub := clip.Slice(seg.Start, seg.End)
		if len(sub.PCM) > 0 {
			clips = append(clips, sub)
		}
	}
	return clips
}

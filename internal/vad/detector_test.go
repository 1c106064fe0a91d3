package vad

import (
	"testing"

	"github.com/vigil-labs/vigil-core/internal/audio"
	"github.com/vigil-labs/vigil-core/internal/config"
)

func testConfig() config.VADConfig {
	return config.VADConfig{
		Enabled:          true,
		FrameMS:          20,
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechFrames:     3,
		SilenceFrames:    5,
	}
}

// buildClip lays out alternating loud and silent spans, one bool per frame.
func buildClip(t *testing.T, frames []bool) audio.Clip {
	t.Helper()
	const frameSamples = 320 // 20ms at 16kHz mono
	pcm := make([]byte, 0, len(frames)*frameSamples*2)
	for _, loud := range frames {
		for i := 0; i < frameSamples; i++ {
			var sample int16
			if loud {
				sample = 8000
			}
			pcm = append(pcm, byte(uint16(sample)), byte(uint16(sample)>>8))
		}
	}
	clip, err := audio.NewClip("s1", pcm, 16000, 1, 0)
	if err != nil {
		t.Fatalf("build clip: %v", err)
	}
	return clip
}

func TestDetectSilenceReturnsNoSegments(t *testing.T) {
	d := NewDetector(testConfig())
	clip := buildClip(t, make([]bool, 50))
	if segments := d.Detect(clip); segments != nil {
		t.Fatalf("expected no segments for silence, got %v", segments)
	}
}

func TestDetectSpeechRun(t *testing.T) {
	d := NewDetector(testConfig())
	frames := make([]bool, 40)
	for i := 10; i < 30; i++ {
		frames[i] = true
	}
	segments := d.Detect(buildClip(t, frames))
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Start >= seg.End {
		t.Fatalf("degenerate segment: %+v", seg)
	}
	// Segment opens at the first loud frame of the qualifying run.
	if seg.Start != 10*320 {
		t.Fatalf("expected segment start at sample %d, got %d", 10*320, seg.Start)
	}
}

func TestDetectShortBurstIgnored(t *testing.T) {
	d := NewDetector(testConfig())
	frames := make([]bool, 40)
	frames[5] = true
	frames[6] = true // two frames, below the 3-frame hysteresis
	if segments := d.Detect(buildClip(t, frames)); segments != nil {
		t.Fatalf("expected burst below hysteresis to be ignored, got %v", segments)
	}
}

func TestDetectDisabledCoversWholeClip(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	d := NewDetector(cfg)
	clip := buildClip(t, make([]bool, 10))
	segments := d.Detect(clip)
	if len(segments) != 1 || segments[0].Start != 0 || segments[0].End != len(clip.PCM)/2 {
		t.Fatalf("expected whole-clip segment, got %v", segments)
	}
}

func TestExtract(t *testing.T) {
	d := NewDetector(testConfig())
	frames := make([]bool, 40)
	for i := 10; i < 30; i++ {
		frames[i] = true
	}
	clip := buildClip(t, frames)
	segments := d.Detect(clip)
	subs := d.Extract(clip, segments)
	if len(subs) != len(segments) {
		t.Fatalf("expected %d sub-clips, got %d", len(segments), len(subs))
	}
	for _, sub := range subs {
		if len(sub.PCM) == 0 {
			t.Fatal("expected non-empty sub-clip")
		}
	}
}

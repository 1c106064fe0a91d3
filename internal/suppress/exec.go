package suppress

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/vigil-labs/vigil-core/internal/audio"
	"github.com/vigil-labs/vigil-core/internal/config"
)

// execSuppressor shells out to a denoiser. The command receives the clip
// via --input and must write a same-format WAV to the --output path.
type execSuppressor struct {
	cmd []string
	mu  sync.Mutex
}

func NewExecSuppressor(cfg config.SuppressorConfig) (Suppressor, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse suppressor command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("suppressor command is empty")
	}
	return &execSuppressor{cmd: args}, nil
}

func (s *execSuppressor) Suppress(ctx context.Context, clip audio.Clip) (audio.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := os.CreateTemp(os.TempDir(), "vigil_denoise_in_*.wav")
	if err != nil {
		return clip, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(in.Name())
	defer in.Close()

	if err := audio.WritePCM(in, clip.PCM, clip.SampleRate, clip.Channels); err != nil {
		return clip, err
	}

	out, err := os.CreateTemp(os.TempDir(), "vigil_denoise_out_*.wav")
	if err != nil {
		return clip, fmt.Errorf("temp file: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := append([]string{}, s.cmd[1:]...)
	args = append(args, "--input", in.Name(), "--output", outPath)

	command := exec.CommandContext(ctx, s.cmd[0], args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return clip, fmt.Errorf("suppressor command failed: %w: %s", err, stderr.String())
	}

	pcm, rate, channels, err := audio.ReadWavFile(outPath)
	if err != nil {
		return clip, err
	}
	if rate != clip.SampleRate || channels != clip.Channels || len(pcm) != len(clip.PCM) {
		return clip, fmt.Errorf("suppressor changed clip format")
	}

	cleaned := clip
	cleaned.PCM = pcm
	return cleaned, nil
}

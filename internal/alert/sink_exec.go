package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/vigil-labs/vigil-core/internal/protocol"
)

// execSink runs an external command per alert, feeding the alert as JSON
// on stdin. Covers LED drivers, buzzers, and other physical feedback.
type execSink struct {
	cmd []string
	mu  sync.Mutex
}

func NewExecSink(command string) (Sink, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse alert command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("alert command is empty")
	}
	return &execSink{cmd: args}, nil
}

func (s *execSink) Name() string { return "exec" }

func (s *execSink) Deliver(ctx context.Context, alert protocol.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, s.cmd[0], s.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("alert command failed: %w: %s", err, output)
	}
	return nil
}

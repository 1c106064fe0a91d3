package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execClassifier struct {
	cmd []string
	mu  sync.Mutex
}

type execClassifyRequest struct {
	Text string `json:"text"`
}

type execClassifyResponse struct {
	Labels []Label `json:"labels"`
}

// NewExecClassifier wraps an external classifier command. It receives
// {"text": ...} on stdin and must print {"labels": [...]} on stdout.
func NewExecClassifier(command string) (Classifier, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse classifier command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("classifier command is empty")
	}
	return &execClassifier{cmd: args}, nil
}

func (c *execClassifier) Classify(ctx context.Context, text string) ([]Label, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	input, err := json.Marshal(execClassifyRequest{Text: text})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.cmd[0], c.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("classifier command failed: %w", err)
	}

	var resp execClassifyResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return resp.Labels, nil
}

// Package producer wraps the external assembly program that turns raw
// episode input into an audio artifact and a cover artifact on local
// disk. Production may take minutes and is never retried here: the
// price of a re-run belongs to whoever submitted the job.
package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var execCommandContext = exec.CommandContext

// Failure reports that external production failed. It carries the
// command output so the error lands in failure_reason with context.
type Failure struct {
	Output string
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("producer failed: %v", f.Err)
	if out := strings.TrimSpace(f.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Result is what a successful production run yields: two files under
// the media directory.
type Result struct {
	AudioPath       string  `json:"audio_path"`
	CoverPath       string  `json:"cover_path"`
	DurationSeconds float64 `json:"duration"`
}

// Producer produces the two artifacts for an episode. Implementations
// must leave the files on local disk until the caller confirms the
// durable upload.
type Producer interface {
	Produce(ctx context.Context, episodeID string, input []byte) (*Result, error)
}

// ExecProducer shells out to the configured assembly command. The
// episode input JSON goes to stdin; the command writes its artifacts
// under OutputDir and prints a JSON result.
type ExecProducer struct {
	Command   string
	OutputDir string
}

// Produce runs the assembly command for one episode.
func (p *ExecProducer) Produce(ctx context.Context, episodeID string, input []byte) (*Result, error) {
	outDir := filepath.Join(p.OutputDir, "assembly", episodeID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create assembly dir: %w", err)
	}

	cmd := execCommandContext(ctx, p.Command,
		"--episode", episodeID,
		"--output-dir", outDir,
	)
	cmd.Stdin = bytes.NewReader(input)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &Failure{Output: string(output), Err: err}
	}

	// The command may print progress lines before the JSON result.
	jsonStartIndex := bytes.IndexByte(output, '{')
	if jsonStartIndex == -1 {
		return nil, &Failure{Output: string(output), Err: fmt.Errorf("no JSON result in producer output")}
	}

	var result Result
	if err := json.Unmarshal(output[jsonStartIndex:], &result); err != nil {
		return nil, &Failure{Output: string(output), Err: fmt.Errorf("unmarshal producer output: %w", err)}
	}

	for _, path := range []string{result.AudioPath, result.CoverPath} {
		if path == "" {
			return nil, &Failure{Output: string(output), Err: fmt.Errorf("producer result is missing an artifact path")}
		}
		if _, err := os.Stat(path); err != nil {
			return nil, &Failure{Output: string(output), Err: fmt.Errorf("producer artifact missing: %w", err)}
		}
	}
	return &result, nil
}

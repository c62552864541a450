package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecCommandContext reroutes the assembly command to this test
// binary's TestHelperProcess, which plays the role configured by mode.
func mockExecCommandContext(t *testing.T, mode, artifactDir string) {
	t.Helper()
	original := execCommandContext
	execCommandContext = func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, arg...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"PRODUCER_MODE=" + mode,
			"PRODUCER_ARTIFACT_DIR=" + artifactDir,
		}
		return cmd
	}
	t.Cleanup(func() { execCommandContext = original })
}

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExecProducerParsesResult(t *testing.T) {
	artifactDir := t.TempDir()
	audioPath := writeArtifact(t, artifactDir, "audio.m4a", "audio bytes")
	coverPath := writeArtifact(t, artifactDir, "cover.jpg", "img")
	mockExecCommandContext(t, "ok", artifactDir)

	p := &ExecProducer{Command: "assembler", OutputDir: t.TempDir()}
	result, err := p.Produce(context.Background(), "ep-1", []byte(`{"source": "take-3.wav"}`))

	require.NoError(t, err)
	assert.Equal(t, audioPath, result.AudioPath)
	assert.Equal(t, coverPath, result.CoverPath)
	assert.Equal(t, 123.4, result.DurationSeconds)
}

func TestExecProducerCommandFailure(t *testing.T) {
	mockExecCommandContext(t, "fail", t.TempDir())

	p := &ExecProducer{Command: "assembler", OutputDir: t.TempDir()}
	_, err := p.Produce(context.Background(), "ep-1", nil)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Output, "boom: out of memory")
	assert.Contains(t, failure.Error(), "boom: out of memory")
}

func TestExecProducerNoJSONInOutput(t *testing.T) {
	mockExecCommandContext(t, "no-json", t.TempDir())

	p := &ExecProducer{Command: "assembler", OutputDir: t.TempDir()}
	_, err := p.Produce(context.Background(), "ep-1", nil)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, err.Error(), "no JSON result")
}

func TestExecProducerMissingArtifact(t *testing.T) {
	artifactDir := t.TempDir()
	writeArtifact(t, artifactDir, "audio.m4a", "audio bytes")
	mockExecCommandContext(t, "missing-artifact", artifactDir)

	p := &ExecProducer{Command: "assembler", OutputDir: t.TempDir()}
	_, err := p.Produce(context.Background(), "ep-1", nil)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, err.Error(), "producer artifact missing")
}

func TestFailureUnwrapsCause(t *testing.T) {
	cause := errors.New("exit status 1")
	failure := &Failure{Output: "stderr noise", Err: cause}
	assert.ErrorIs(t, failure, cause)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	dir := os.Getenv("PRODUCER_ARTIFACT_DIR")

	switch os.Getenv("PRODUCER_MODE") {
	case "ok":
		// Progress lines precede the JSON result, as the real
		// assembler's do.
		fmt.Println("assembling episode...")
		out, _ := json.Marshal(Result{
			AudioPath:       filepath.Join(dir, "audio.m4a"),
			CoverPath:       filepath.Join(dir, "cover.jpg"),
			DurationSeconds: 123.4,
		})
		fmt.Println(string(out))
		os.Exit(0)
	case "missing-artifact":
		out, _ := json.Marshal(Result{
			AudioPath:       filepath.Join(dir, "audio.m4a"),
			CoverPath:       filepath.Join(dir, "gone.jpg"),
			DurationSeconds: 1,
		})
		fmt.Println(string(out))
		os.Exit(0)
	case "no-json":
		fmt.Println("renderer exploded before writing a result")
		os.Exit(0)
	case "fail":
		fmt.Println("boom: out of memory")
		os.Exit(1)
	}
	os.Exit(1)
}

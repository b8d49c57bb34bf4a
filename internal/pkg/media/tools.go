package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mediavault/backend/internal/pkg/logger"
)

// Tools wraps the external transcoder binaries used for probing and
// derivative generation. Binary paths are resolved once at construction and
// never re-detected per call.
type Tools struct {
	log *logger.Logger

	ffmpegPath    string
	ffprobePath   string
	pdfToTextPath string

	scratchRoot string
	timeout     time.Duration
}

func NewTools(log *logger.Logger, ffmpegPath, ffprobePath, pdfToTextPath, scratchRoot string, timeout time.Duration) *Tools {
	return &Tools{
		log:           log.With("component", "media-tools"),
		ffmpegPath:    ffmpegPath,
		ffprobePath:   ffprobePath,
		pdfToTextPath: pdfToTextPath,
		scratchRoot:   scratchRoot,
		timeout:       timeout,
	}
}

// AssertReady verifies the required binaries exist and the scratch root is
// writable. Called once at startup.
func (t *Tools) AssertReady() error {
	for _, bin := range []string{t.ffmpegPath, t.ffprobePath, t.pdfToTextPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if err := os.MkdirAll(t.scratchRoot, 0o755); err != nil {
		return fmt.Errorf("create scratch root: %w", err)
	}
	return nil
}

// NewScratchDir creates a per-asset-per-run scratch directory. The returned
// cleanup func removes the whole directory and must be called on every exit
// path.
func (t *Tools) NewScratchDir(assetID uuid.UUID) (string, func(), error) {
	dir := filepath.Join(t.scratchRoot, fmt.Sprintf("%s-%d", assetID, time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	return dir, cleanup, nil
}

func (t *Tools) runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := t.runCommandBytes(ctx, name, args...)
	return string(out), err
}

// runCommandBytes executes a subprocess under a hard timeout. A process that
// outlives the ceiling is killed and the error is returned to the caller; the
// caller decides whether that is fatal.
func (t *Tools) runCommandBytes(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

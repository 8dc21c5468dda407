package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Recorder is the interface for audio capture devices.
// A Recording returned by Start must be released by exactly one Stop or
// Cancel call.
type Recorder interface {
	Start() (*Recording, error)
	Stop(rec *Recording) ([]byte, error)
	Cancel(rec *Recording) error
}

// Recording is a handle to an in-progress capture.
type Recording struct {
	path      string
	cmd       *exec.Cmd
	startedAt time.Time
	released  bool
}

// StartedAt returns when the capture began.
func (r *Recording) StartedAt() time.Time { return r.startedAt }

// CommandRecorder records audio by running an external capture command
// (e.g. "sox -d -q" or "arecord -f cd") that writes a WAV file until it
// receives SIGINT. The output path is appended as the final argument.
type CommandRecorder struct {
	Command []string
	TempDir string
}

// NewCommandRecorder creates a recorder driving the given capture command.
func NewCommandRecorder(command []string) *CommandRecorder {
	return &CommandRecorder{Command: command}
}

// Start launches the capture command writing into a temp file.
func (c *CommandRecorder) Start() (*Recording, error) {
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("no capture command configured")
	}

	dir := c.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("innervoice-%d.wav", time.Now().UnixNano()))

	args := append(append([]string{}, c.Command[1:]...), path)
	cmd := exec.Command(c.Command[0], args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting capture command %q: %w", strings.Join(c.Command, " "), err)
	}

	return &Recording{path: path, cmd: cmd, startedAt: time.Now()}, nil
}

// Stop interrupts the capture command and returns the recorded bytes.
func (c *CommandRecorder) Stop(rec *Recording) ([]byte, error) {
	if err := c.release(rec); err != nil {
		return nil, err
	}
	defer os.Remove(rec.path)

	audio, err := os.ReadFile(rec.path)
	if err != nil {
		return nil, fmt.Errorf("reading capture output: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("capture produced no audio")
	}
	return audio, nil
}

// Cancel interrupts the capture command and discards its output.
func (c *CommandRecorder) Cancel(rec *Recording) error {
	err := c.release(rec)
	os.Remove(rec.path)
	return err
}

func (c *CommandRecorder) release(rec *Recording) error {
	if rec == nil {
		return fmt.Errorf("nil recording handle")
	}
	if rec.released {
		return fmt.Errorf("recording already released")
	}
	rec.released = true

	if rec.cmd != nil && rec.cmd.Process != nil {
		// SIGINT lets the capture tool finalize the WAV header.
		if err := rec.cmd.Process.Signal(syscall.SIGINT); err != nil {
			rec.cmd.Process.Kill()
		}
		rec.cmd.Wait()
	}
	return nil
}

// FileRecorder serves pre-recorded audio from a fixed file. Used when the
// answer audio comes from disk rather than a microphone.
type FileRecorder struct {
	Path string
}

// Start checks that the source file exists.
func (f *FileRecorder) Start() (*Recording, error) {
	if _, err := os.Stat(f.Path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}
	return &Recording{path: f.Path, startedAt: time.Now()}, nil
}

// Stop reads the source file.
func (f *FileRecorder) Stop(rec *Recording) ([]byte, error) {
	if rec == nil || rec.released {
		return nil, fmt.Errorf("recording not active")
	}
	rec.released = true
	audio, err := os.ReadFile(rec.path)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}
	return audio, nil
}

// Cancel releases the handle without reading the file.
func (f *FileRecorder) Cancel(rec *Recording) error {
	if rec == nil || rec.released {
		return fmt.Errorf("recording not active")
	}
	rec.released = true
	return nil
}

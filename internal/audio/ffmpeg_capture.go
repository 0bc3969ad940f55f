package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"oceanmic/internal/ports"
)

const (
	startupWindow = 250 * time.Millisecond
	stopTimeout   = 1200 * time.Millisecond
)

// FFMPEGCapture captures raw microphone PCM (s16le) with an ffmpeg-compatible command.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

// Available reports whether the recorder command can be resolved.
func (c *FFMPEGCapture) Available() bool {
	_, err := exec.LookPath(c.command)
	return err == nil
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	// The read end outlives the process so samples written before exit are not lost.
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder output pipe: %w", err)
	}

	session := &ffmpegSession{
		output: reader,
		exited: make(chan struct{}),
	}
	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	cmd.Stdout = writer
	cmd.Stderr = &session.stderr

	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("failed to start recorder %q: %w", c.command, err)
	}
	_ = writer.Close()
	session.process = cmd.Process

	go func() {
		session.exitErr = cmd.Wait()
		close(session.exited)
	}()

	select {
	case <-session.exited:
		_ = reader.Close()
		if session.exitErr != nil {
			return nil, fmt.Errorf("recorder exited before capture started: %w: %s", session.exitErr, session.stderrTail())
		}
		return nil, errors.New("recorder exited before capture started")
	case <-time.After(startupWindow):
	}

	return session, nil
}

func captureArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type ffmpegSession struct {
	output  *os.File
	stderr  bytes.Buffer
	process *os.Process

	// exitErr is written once before exited is closed.
	exited  chan struct{}
	exitErr error

	stopOnce  sync.Once
	stopErr   error
	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.output.Read(p)
}

// Stop interrupts the recorder and waits for it to exit, killing it after
// stopTimeout. Output already produced stays readable until EOF.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		timer := time.NewTimer(stopTimeout)
		defer timer.Stop()
		select {
		case <-s.exited:
		case <-timer.C:
			_ = s.process.Kill()
			<-s.exited
		}

		s.stopErr = normalizeStopErr(s.exitErr)
		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, s.stderrTail())
		}
	})
	return s.stopErr
}

// Close stops the recorder if needed and releases the output pipe.
func (s *ffmpegSession) Close() error {
	s.closeOnce.Do(func() {
		stopErr := s.Stop()
		if err := s.output.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = err
			return
		}
		s.closeErr = stopErr
	})
	return s.closeErr
}

// stderrTail is only safe to call after the process has exited.
func (s *ffmpegSession) stderrTail() string {
	return string(bytes.TrimSpace(s.stderr.Bytes()))
}

// normalizeStopErr treats a non-zero exit as a clean stop: ffmpeg exits 255
// on interrupt.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"oceanmic/internal/domain"
	"oceanmic/internal/observability/logging"
	"oceanmic/internal/observability/metrics"
	"oceanmic/internal/ports"
)

// Config selects and tunes the voice path.
type Config struct {
	Mode      domain.CaptureMode
	Session   domain.SessionConfig
	Restart   RestartPolicy
	Audio     ports.AudioConfig
	ChunkSize int
	// Debounce delays transcript delivery to the host; zero delivers immediately.
	Debounce time.Duration
}

type capturePath interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset()
	Close()
	Engaged() bool
	Supported() bool
}

// VoiceController is the single start/stop/transcript/error surface the host
// drives, whichever path is configured.
type VoiceController struct {
	mode    domain.CaptureMode
	path    capturePath
	events  ports.EventSink
	deliver func(f func())
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu         sync.Mutex
	active     bool
	closed     bool
	transcript string
	lastErr    *domain.VoiceError
}

func NewVoiceController(
	recognizer ports.SpeechRecognizer,
	capture ports.AudioCapture,
	transcriber ports.Transcriber,
	events ports.EventSink,
	cfg Config,
	m *metrics.Metrics,
) *VoiceController {
	if cfg.Mode != domain.CaptureModeRecord {
		cfg.Mode = domain.CaptureModeLive
	}

	c := &VoiceController{
		mode:    cfg.Mode,
		events:  events,
		deliver: immediate,
		metrics: m,
		logger:  logging.WithComponent("voice_controller"),
	}
	if cfg.Debounce > 0 {
		c.deliver = debounce.New(cfg.Debounce)
	}

	switch cfg.Mode {
	case domain.CaptureModeRecord:
		c.path = NewRecordSession(capture, transcriber, c, RecordConfig{
			Audio:     cfg.Audio,
			ChunkSize: cfg.ChunkSize,
			Language:  cfg.Session.Language,
		}, m)
	default:
		c.path = NewLiveSession(recognizer, c, cfg.Session, cfg.Restart, m)
	}
	return c
}

// Toggle starts the configured path when it is idle and stops it otherwise.
func (c *VoiceController) Toggle(ctx context.Context) error {
	if c.mode == domain.CaptureModeLive && !c.path.Supported() {
		err := domain.NewError(domain.ErrorKindUnsupported, "Speech recognition is not supported here. Configure a Deepgram API key and audio recorder, or switch to record mode.")
		c.sessionError(err)
		return err
	}

	if c.path.Engaged() {
		return c.path.Stop(ctx)
	}

	c.Reset()
	return c.path.Start(ctx)
}

func (c *VoiceController) Start(ctx context.Context) error {
	return c.path.Start(ctx)
}

func (c *VoiceController) Stop(ctx context.Context) error {
	return c.path.Stop(ctx)
}

// Reset clears transcript and error for the host and the path.
func (c *VoiceController) Reset() {
	c.path.Reset()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = ""
	c.lastErr = nil
}

// Close tears the active path down and releases its device. No transcript
// is delivered after Close returns.
func (c *VoiceController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	// Replaces any pending trailing delivery.
	c.deliver(func() {})
	c.path.Close()
}

func (c *VoiceController) Mode() domain.CaptureMode {
	return c.mode
}

// Snapshot returns the state the host renders.
func (c *VoiceController) Snapshot() domain.Snapshot {
	supported := c.path.Supported()

	c.mu.Lock()
	defer c.mu.Unlock()

	var message *string
	if c.lastErr != nil {
		text := c.lastErr.Message
		message = &text
	}
	return domain.Snapshot{
		Transcript:  c.transcript,
		IsActive:    c.active,
		IsSupported: supported,
		Error:       message,
		Mode:        string(c.mode),
	}
}

func (c *VoiceController) activityChanged(active bool) {
	c.mu.Lock()
	if c.active == active {
		c.mu.Unlock()
		return
	}
	c.active = active
	if active {
		c.lastErr = nil
	}
	c.mu.Unlock()

	if active {
		c.metrics.SessionStarted(string(c.mode))
		c.logger.Info().Str("mode", string(c.mode)).Msg("voice input active")
		c.events.ActivityStarted()
		return
	}
	c.metrics.SessionStopped()
	c.logger.Info().Str("mode", string(c.mode)).Msg("voice input stopped")
	c.events.ActivityStopped()
}

func (c *VoiceController) transcriptChanged(text string) {
	c.mu.Lock()
	c.transcript = text
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return
	}
	c.deliver(c.flushTranscript)
}

func (c *VoiceController) flushTranscript() {
	c.mu.Lock()
	text := c.transcript
	closed := c.closed
	c.mu.Unlock()

	if closed || strings.TrimSpace(text) == "" {
		return
	}
	c.events.Transcript(text)
}

func (c *VoiceController) sessionError(err *domain.VoiceError) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	c.metrics.ErrorSurfaced(string(err.Kind))
	c.events.SessionError(err)
}

func (c *VoiceController) notice(notice domain.Notice) {
	c.events.Notice(notice)
}

func immediate(f func()) {
	f()
}

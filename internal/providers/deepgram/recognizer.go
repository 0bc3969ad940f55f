package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"oceanmic/internal/domain"
	"oceanmic/internal/observability/logging"
	"oceanmic/internal/ports"
)

// ErrAlreadyRunning is returned when Start is called on a running recognition.
var ErrAlreadyRunning = errors.New("recognition is already running")

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// CloseGrace bounds how long a stopping stream may take to flush final results.
	CloseGrace time.Duration
	ChunkSize  int
}

// Recognizer turns microphone audio into Deepgram streaming recognitions.
type Recognizer struct {
	cfg     Config
	capture ports.AudioCapture
	audio   ports.AudioConfig
	dialer  *websocket.Dialer
}

func NewRecognizer(cfg Config, capture ports.AudioCapture, audio ports.AudioConfig) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.CloseGrace <= 0 {
		cfg.CloseGrace = 2 * time.Second
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	return &Recognizer{
		cfg:     cfg,
		capture: capture,
		audio:   audio,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Supported reports whether an API key and a usable microphone capture are configured.
func (r *Recognizer) Supported() bool {
	return strings.TrimSpace(r.cfg.APIKey) != "" && ports.CaptureAvailable(r.capture)
}

func (r *Recognizer) NewRecognition(cfg domain.SessionConfig) (ports.Recognition, error) {
	if !r.Supported() {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}
	return &recognition{
		recognizer: r,
		session:    cfg,
		logger:     logging.WithComponent("deepgram"),
	}, nil
}

type recognition struct {
	recognizer *Recognizer
	session    domain.SessionConfig
	logger     zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopping bool
	stop     chan struct{}
}

// Start begins one run. The run connects, opens the microphone and reports
// started; it always ends with exactly one end event.
func (c *recognition) Start(ctx context.Context, emit ports.EmitFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.stopping = false
	c.stop = make(chan struct{})

	go c.run(ctx, emit, c.stop)
	return nil
}

// Stop asks the current run to finish. It does not wait.
func (c *recognition) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.stopping {
		return nil
	}
	c.stopping = true
	close(c.stop)
	return nil
}

func (c *recognition) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *recognition) finish(emit ports.EmitFunc) {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	emit(domain.EndEvent())
}

func (c *recognition) run(ctx context.Context, emit ports.EmitFunc, stop <-chan struct{}) {
	defer c.finish(emit)

	r := c.recognizer
	dialCtx, cancelDial := context.WithCancel(ctx)
	go func() {
		select {
		case <-stop:
			cancelDial()
		case <-dialCtx.Done():
		}
	}()

	s, err := openStream(dialCtx, r.dialer, r.cfg, streamConfig{
		Encoding:       "linear16",
		SampleRate:     r.audio.SampleRate,
		Channels:       r.audio.Channels,
		InterimResults: c.session.InterimResults,
		Language:       c.session.Language,
	})
	cancelDial()
	if err != nil {
		if c.stopRequested() {
			emit(domain.ErrorEvent(domain.CodeAborted, "stopped while connecting"))
			return
		}
		c.logger.Warn().Err(err).Msg("deepgram connection failed")
		emit(eventForError(err))
		return
	}

	if c.stopRequested() {
		_ = s.Close()
		emit(domain.ErrorEvent(domain.CodeAborted, "stopped while connecting"))
		return
	}

	mic, err := r.capture.Start(ctx, r.audio)
	if err != nil {
		_ = s.Close()
		c.logger.Warn().Err(err).Msg("microphone capture failed")
		emit(domain.ErrorEvent(domain.CodeAudioCapture, err.Error()))
		return
	}
	defer func() {
		if err := mic.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("microphone release failed")
		}
	}()

	emit(domain.StartedEvent())

	pumpDone := make(chan struct{})
	go pumpAudio(mic, s, r.cfg.ChunkSize, c.logger, pumpDone)

	var (
		timer *time.Timer
		grace <-chan time.Time
	)
	ctxDone := ctx.Done()
	for results := s.Results(); results != nil; {
		select {
		case result, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if !result.Final && !c.session.InterimResults {
				continue
			}
			if result.Final {
				for i := range result.Alternatives {
					result.Alternatives[i].Transcript += " "
				}
			}
			emit(domain.ResultEvent(result))
		case <-stop:
			stop = nil
			_ = mic.Stop()
			timer = time.NewTimer(r.cfg.CloseGrace)
			grace = timer.C
		case <-grace:
			grace = nil
			c.logger.Debug().Msg("deepgram did not finalize in time, closing stream")
			_ = s.Close()
		case <-ctxDone:
			ctxDone = nil
			_ = s.Close()
		}
	}

	if timer != nil {
		timer.Stop()
	}
	_ = mic.Stop()
	<-pumpDone
	streamErr := s.Close()

	if streamErr != nil && !c.stopRequested() {
		c.logger.Warn().Err(streamErr).Msg("deepgram stream ended with an error")
		emit(eventForError(streamErr))
	}
}

// pumpAudio forwards microphone chunks until capture ends, then half-closes the stream.
func pumpAudio(mic io.Reader, s *stream, chunkSize int, logger zerolog.Logger, done chan<- struct{}) {
	defer close(done)
	defer func() { _ = s.CloseSend() }()

	buf := make([]byte, chunkSize)
	for {
		n, err := mic.Read(buf)
		if n > 0 {
			if sendErr := s.SendAudio(buf[:n]); sendErr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Warn().Err(err).Msg("audio capture error")
			}
			return
		}
	}
}

// eventForError maps a connection failure onto a recognition error code.
func eventForError(err error) domain.RecognitionEvent {
	var handshake *handshakeError
	if errors.As(err, &handshake) {
		switch handshake.StatusCode {
		case http.StatusUnauthorized:
			return domain.ErrorEvent(domain.CodeNotAllowed, err.Error())
		case http.StatusForbidden, http.StatusPaymentRequired:
			return domain.ErrorEvent(domain.CodeServiceNotAllowed, err.Error())
		}
		return domain.ErrorEvent(domain.CodeNetwork, err.Error())
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseInternalServerErr {
		return domain.ErrorEvent(domain.CodeNoSpeech, closeErr.Text)
	}
	if strings.Contains(strings.ToUpper(err.Error()), "NET-0001") {
		return domain.ErrorEvent(domain.CodeNoSpeech, err.Error())
	}

	return domain.ErrorEvent(domain.CodeNetwork, err.Error())
}

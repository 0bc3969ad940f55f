package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"oceanmic/internal/domain"
	"oceanmic/internal/observability/logging"
	"oceanmic/internal/observability/metrics"
	"oceanmic/internal/ports"
)

// sessionSink receives path events. Paths call it with their own lock held,
// so implementations must not call back into the path.
type sessionSink interface {
	activityChanged(active bool)
	transcriptChanged(text string)
	sessionError(err *domain.VoiceError)
	notice(notice domain.Notice)
}

// LiveSession keeps one logical listening session alive on top of a
// recognition that may end on its own.
//
// State transitions:
//
//	Idle ── Start ──> (pending) ── started ──> Listening
//	Listening ── end, continuous ──> Listening (scheduled restart)
//	Listening ── Stop ──> StoppingByUser ── end ──> Idle
//	Listening ── not-allowed ──> Idle
//
// Every event carries the token of the recognition it came from; events with a
// token that is no longer current are dropped.
type LiveSession struct {
	recognizer ports.SpeechRecognizer
	sink       sessionSink
	cfg        domain.SessionConfig
	restarts   *restartBudget
	schedule   scheduleFunc
	metrics    *metrics.Metrics

	mu            sync.Mutex
	logger        zerolog.Logger
	ctx           context.Context
	state         domain.SessionState
	token         uuid.UUID
	current       ports.Recognition
	pending       bool
	stopRequested bool
	startDeferred bool
	announced     bool
	runEnded      bool
	cancelRestart func() bool
	transcript    transcriptAccumulator
	lastErr       *domain.VoiceError
}

func NewLiveSession(
	recognizer ports.SpeechRecognizer,
	sink sessionSink,
	cfg domain.SessionConfig,
	policy RestartPolicy,
	m *metrics.Metrics,
) *LiveSession {
	return &LiveSession{
		recognizer: recognizer,
		sink:       sink,
		cfg:        cfg,
		restarts:   newRestartBudget(policy),
		schedule:   afterFunc,
		metrics:    m,
		logger:     logging.WithComponent("live_session"),
		state:      domain.SessionStateIdle,
	}
}

// Start opens a new recognition. The session becomes Listening once the
// recognition confirms activation. ctx bounds the session including restarts.
// While a stopped recognition is still winding down, the start is deferred
// until it reports its end.
func (s *LiveSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recognizer.Supported() {
		return s.failLocked(domain.NewError(domain.ErrorKindUnsupported, "Speech recognition is not supported in this environment"))
	}
	if s.state == domain.SessionStateListening || s.pending || s.startDeferred {
		return nil
	}
	if s.current != nil && s.stopRequested {
		s.startDeferred = true
		s.ctx = ctx
		s.logger.Debug().Msg("start deferred until the previous recognition ends")
		return nil
	}
	return s.openLocked(ctx)
}

func (s *LiveSession) openLocked(ctx context.Context) error {
	s.cancelRestartLocked()
	s.stopRequested = false

	recognition, err := s.recognizer.NewRecognition(s.cfg)
	if err != nil {
		return s.failLocked(domain.WrapError(domain.ErrorKindStartFailure, "Failed to start speech recognition", err))
	}

	token := uuid.New()
	s.logger = logging.WithSession("live_session", token.String())
	s.ctx = ctx
	s.token = token
	s.current = recognition
	s.pending = true
	s.state = domain.SessionStateIdle
	s.restarts.Reset()
	s.transcript.Reset()

	if err := recognition.Start(ctx, s.emitter(token)); err != nil {
		s.clearLocked()
		return s.failLocked(domain.WrapError(domain.ErrorKindStartFailure, "Failed to start speech recognition", err))
	}

	s.logger.Info().
		Str("language", s.cfg.Language).
		Bool("continuous", s.cfg.ContinuousMode).
		Bool("interim", s.cfg.InterimResults).
		Msg("recognition starting")
	return nil
}

// Stop asks the recognition to stop and reports inactive immediately.
func (s *LiveSession) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startDeferred {
		// The previous stop is still winding down; just drop the queued start.
		s.startDeferred = false
		return nil
	}
	if s.current == nil || (s.state != domain.SessionStateListening && !s.pending) {
		return nil
	}

	s.stopRequested = true
	s.cancelRestartLocked()
	s.pending = false

	if s.runEnded {
		// The run already ended while waiting for a restart; no end event will follow.
		s.stopRequested = false
		s.clearLocked()
	} else {
		s.state = domain.SessionStateStoppingByUser
		if err := s.current.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("recognition stop failed")
		}
	}

	s.announceLocked(false)
	s.logger.Info().Msg("stop requested")
	return nil
}

// Reset clears the transcript and error state without touching listening state.
func (s *LiveSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Reset()
	s.lastErr = nil
}

// Close releases the recognition unconditionally.
func (s *LiveSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelRestartLocked()
	if s.current != nil {
		s.stopRequested = true
		_ = s.current.Stop()
	}
	s.clearLocked()
	s.announceLocked(false)
}

func (s *LiveSession) Supported() bool {
	return s.recognizer.Supported()
}

func (s *LiveSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports the externally observable listening flag.
func (s *LiveSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announced
}

// Engaged reports whether a start is pending or the session is listening.
func (s *LiveSession) Engaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending || s.startDeferred || s.state == domain.SessionStateListening
}

func (s *LiveSession) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Text()
}

func (s *LiveSession) Err() *domain.VoiceError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *LiveSession) emitter(token uuid.UUID) ports.EmitFunc {
	return func(event domain.RecognitionEvent) {
		s.handle(token, event)
	}
}

func (s *LiveSession) handle(token uuid.UUID, event domain.RecognitionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || token != s.token {
		s.metrics.StaleEvent()
		s.logger.Debug().
			Str("event", string(event.Kind)).
			Str("eventToken", token.String()).
			Msg("dropping stale recognition event")
		return
	}

	switch event.Kind {
	case domain.RecognitionEventStarted:
		s.onStartedLocked()
	case domain.RecognitionEventResult:
		s.onResultLocked(event.Results)
	case domain.RecognitionEventError:
		s.onErrorLocked(event)
	case domain.RecognitionEventEnd:
		s.onEndLocked()
	}
}

func (s *LiveSession) onStartedLocked() {
	if s.stopRequested {
		return
	}
	s.pending = false
	if s.state == domain.SessionStateListening {
		s.logger.Debug().Msg("recognition restarted")
		return
	}
	s.state = domain.SessionStateListening
	s.lastErr = nil
	s.announceLocked(true)
	s.logger.Info().Msg("listening")
}

func (s *LiveSession) onResultLocked(results []domain.RecognitionResult) {
	if (s.state == domain.SessionStateIdle && !s.pending) || s.startDeferred {
		return
	}
	text := s.transcript.Apply(results)
	s.restarts.Reset()
	s.sink.transcriptChanged(text)
}

func (s *LiveSession) onErrorLocked(event domain.RecognitionEvent) {
	kind := event.Code.Classify()
	switch kind {
	case domain.ErrorKindTransientNoise:
		s.metrics.NoiseSwallowed(string(event.Code))
		s.logger.Debug().Str("code", string(event.Code)).Msg("suppressed recognition noise")
		return
	case domain.ErrorKindPermissionRevoke:
		s.stopRequested = true
		s.cancelRestartLocked()
		s.pending = false
		s.state = domain.SessionStateIdle
		_ = s.current.Stop()
		s.announceLocked(false)
	}

	verr := &domain.VoiceError{
		Kind:    kind,
		Code:    event.Code,
		Message: fmt.Sprintf("Speech recognition error: %s", event.Code),
	}
	if event.Message != "" {
		verr.Err = errors.New(event.Message)
	}
	s.logger.Warn().Str("code", string(event.Code)).Str("detail", event.Message).Msg("recognition error")
	s.surfaceLocked(verr)
}

func (s *LiveSession) onEndLocked() {
	switch {
	case s.stopRequested:
		deferred := s.startDeferred
		s.stopRequested = false
		s.clearLocked()
		s.logger.Info().Msg("recognition ended")
		if deferred {
			_ = s.openLocked(s.ctx)
		}
		return
	case s.pending:
		// Ended before activation; any cause was already reported as an error event.
		s.clearLocked()
		s.logger.Info().Msg("recognition ended before activation")
		return
	case !s.cfg.ContinuousMode:
		s.clearLocked()
		s.announceLocked(false)
		s.logger.Info().Msg("recognition finished")
		return
	}

	delay, ok := s.restarts.Next()
	if !ok {
		s.restartFailedLocked(fmt.Errorf("recognition ended %d times without a result", s.restarts.Attempts()))
		return
	}

	token := s.token
	s.runEnded = true
	s.metrics.RestartScheduled()
	s.cancelRestart = s.schedule(delay, func() { s.restart(token) })
	s.logger.Debug().Dur("delay", delay).Int("attempt", s.restarts.Attempts()).Msg("recognition ended unexpectedly, restart scheduled")
}

func (s *LiveSession) restart(token uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || token != s.token || s.stopRequested || s.state != domain.SessionStateListening {
		s.metrics.StaleEvent()
		return
	}
	s.cancelRestart = nil
	s.runEnded = false

	if err := s.current.Start(s.ctx, s.emitter(token)); err != nil {
		s.restartFailedLocked(err)
	}
}

func (s *LiveSession) restartFailedLocked(cause error) {
	s.metrics.RestartFailed()
	s.logger.Error().Err(cause).Msg("recognition restart failed")
	if s.current != nil {
		_ = s.current.Stop()
	}
	s.clearLocked()
	s.announceLocked(false)
	s.surfaceLocked(domain.WrapError(domain.ErrorKindRestartFailure, "Speech recognition stopped and could not be restarted", cause))
}

func (s *LiveSession) cancelRestartLocked() {
	if s.cancelRestart == nil {
		return
	}
	s.cancelRestart()
	s.cancelRestart = nil
}

func (s *LiveSession) clearLocked() {
	s.current = nil
	s.token = uuid.Nil
	s.pending = false
	s.startDeferred = false
	s.runEnded = false
	s.state = domain.SessionStateIdle
}

func (s *LiveSession) announceLocked(active bool) {
	if s.announced == active {
		return
	}
	s.announced = active
	s.sink.activityChanged(active)
}

func (s *LiveSession) surfaceLocked(err *domain.VoiceError) {
	s.lastErr = err
	s.sink.sessionError(err)
}

func (s *LiveSession) failLocked(err *domain.VoiceError) error {
	s.logger.Warn().Err(err).Str("kind", string(err.Kind)).Msg("start failed")
	s.surfaceLocked(err)
	return err
}

package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"oceanmic/internal/domain"
	"oceanmic/internal/observability/logging"
	"oceanmic/internal/observability/metrics"
	"oceanmic/internal/ports"
)

// RecordConfig controls the record-and-upload path.
type RecordConfig struct {
	Audio     ports.AudioConfig
	ChunkSize int
	Language  string
}

// RecordSession captures audio between Start and Stop, then uploads it once.
type RecordSession struct {
	capture   ports.AudioCapture
	finalizer uploadFinalizer
	sink      sessionSink
	cfg       RecordConfig
	logger    zerolog.Logger

	mu      sync.Mutex
	current *recording
}

func NewRecordSession(
	capture ports.AudioCapture,
	transcriber ports.Transcriber,
	sink sessionSink,
	cfg RecordConfig,
	m *metrics.Metrics,
) *RecordSession {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	logger := logging.WithComponent("record_session")
	return &RecordSession{
		capture:   capture,
		finalizer: newUploadFinalizer(transcriber, sink, m, logger),
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start opens the microphone and begins buffering.
func (s *RecordSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil
	}

	audio, err := s.capture.Start(ctx, s.cfg.Audio)
	if err != nil {
		verr := domain.WrapError(domain.ErrorKindDeviceAccess, "Could not access microphone. Please check permissions.", err)
		s.logger.Warn().Err(err).Msg("audio capture unavailable")
		s.sink.sessionError(verr)
		return verr
	}

	s.current = startRecording(audio, s.cfg.ChunkSize, s.logger)
	s.sink.activityChanged(true)
	s.logger.Info().Str("device", s.cfg.Audio.InputDevice).Msg("recording started")
	return nil
}

// Stop finalizes the buffer, releases the device and uploads the recording.
func (s *RecordSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	rec := s.current
	if rec == nil {
		s.mu.Unlock()
		return nil
	}
	s.current = nil
	s.sink.activityChanged(false)

	payload, stopErr := rec.finish(s.cfg.Audio, s.cfg.Language)
	s.mu.Unlock()

	if stopErr != nil {
		s.logger.Warn().Err(stopErr).Msg("audio capture did not stop cleanly")
	}
	if rec.releaseErr != nil {
		s.logger.Warn().Err(rec.releaseErr).Msg("audio device release failed")
	}
	s.logger.Info().Int("bytes", len(payload.Data)).Msg("recording stopped")

	_, err := s.finalizer.Finalize(ctx, payload)
	return err
}

// Reset is a no-op: the record path keeps no transcript of its own.
func (s *RecordSession) Reset() {}

// Close discards an open recording and releases the device.
func (s *RecordSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.current.discard()
	s.current = nil
	s.sink.activityChanged(false)
}

func (s *RecordSession) Supported() bool {
	return ports.CaptureAvailable(s.capture)
}

func (s *RecordSession) Engaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

func (s *RecordSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return domain.SessionStateListening
	}
	return domain.SessionStateIdle
}

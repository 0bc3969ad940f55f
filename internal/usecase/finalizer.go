package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"oceanmic/internal/domain"
	"oceanmic/internal/observability/metrics"
	"oceanmic/internal/ports"
)

type uploadFinalizer struct {
	transcriber ports.Transcriber
	sink        sessionSink
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func newUploadFinalizer(transcriber ports.Transcriber, sink sessionSink, m *metrics.Metrics, logger zerolog.Logger) uploadFinalizer {
	return uploadFinalizer{transcriber: transcriber, sink: sink, metrics: m, logger: logger}
}

// Finalize submits one payload. It never retries; on failure the payload is dropped.
func (f uploadFinalizer) Finalize(ctx context.Context, payload domain.AudioPayload) (domain.UploadResult, error) {
	if len(payload.Data) == 0 {
		verr := domain.NewError(domain.ErrorKindUpload, "No audio captured. Please try again.")
		f.sink.sessionError(verr)
		return domain.UploadResult{}, verr
	}

	started := time.Now()
	result, err := f.transcriber.Transcribe(ctx, payload)
	elapsed := time.Since(started)
	if err != nil {
		f.metrics.UploadFinished("failure", len(payload.Data), elapsed)
		f.logger.Error().Err(err).Int("bytes", len(payload.Data)).Dur("elapsed", elapsed).Msg("recording upload failed")
		verr := domain.WrapError(domain.ErrorKindUpload, "Failed to process speech. Please try again.", err)
		f.sink.sessionError(verr)
		return domain.UploadResult{}, verr
	}

	f.metrics.UploadFinished("success", len(payload.Data), elapsed)
	result.Confidence = clampConfidence(result.Confidence)
	f.logger.Info().
		Int("bytes", len(payload.Data)).
		Float64("confidence", result.Confidence).
		Str("method", result.Method).
		Dur("elapsed", elapsed).
		Msg("recording transcribed")

	f.sink.transcriptChanged(result.Text)
	f.sink.notice(domain.Notice{
		Title:   "Speech Recognized",
		Message: fmt.Sprintf("Confidence: %.1f%%", result.Confidence*100),
	})
	return result, nil
}

func clampConfidence(value float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}

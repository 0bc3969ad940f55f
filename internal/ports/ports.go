package ports

import (
	"context"
	"io"

	"oceanmic/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
//
// Stop ends capture; buffered bytes stay readable until EOF. Close releases the
// input device and is safe to call more than once.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture opens microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// AvailabilityChecker is implemented by captures that can tell up front whether
// their backend exists.
type AvailabilityChecker interface {
	Available() bool
}

// CaptureAvailable reports whether capture is set and, when it can tell,
// usable.
func CaptureAvailable(capture AudioCapture) bool {
	if capture == nil {
		return false
	}
	if checker, ok := capture.(AvailabilityChecker); ok {
		return checker.Available()
	}
	return true
}

// EmitFunc receives the ordered event stream of one recognition.
type EmitFunc func(event domain.RecognitionEvent)

// Recognition is one continuous speech-recognition instance.
//
// Start begins a run and may be called again after the run ended. Events are
// delivered from the recognition's own goroutines, never from inside Start, and
// every run ends with exactly one end event.
type Recognition interface {
	Start(ctx context.Context, emit EmitFunc) error
	Stop() error
}

// SpeechRecognizer creates recognitions for a session configuration.
type SpeechRecognizer interface {
	Supported() bool
	NewRecognition(cfg domain.SessionConfig) (Recognition, error)
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, payload domain.AudioPayload) (domain.UploadResult, error)
}

// EventSink receives normalized voice events for the host UI.
type EventSink interface {
	ActivityStarted()
	ActivityStopped()
	Transcript(text string)
	SessionError(err *domain.VoiceError)
	Notice(notice domain.Notice)
}

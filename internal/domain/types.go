package domain

// SessionState models the lifecycle of one capture path.
type SessionState string

const (
	SessionStateIdle           SessionState = "idle"
	SessionStateListening      SessionState = "listening"
	SessionStateStoppingByUser SessionState = "stopping_by_user"
)

// CaptureMode selects which voice path the controller drives.
type CaptureMode string

const (
	CaptureModeLive   CaptureMode = "live"
	CaptureModeRecord CaptureMode = "record"
)

// SessionConfig is fixed for the lifetime of one session.
type SessionConfig struct {
	ContinuousMode bool   `json:"continuousMode"`
	InterimResults bool   `json:"interimResults"`
	Language       string `json:"language"`
}

// RecognitionEventKind identifies what a recognition reported.
type RecognitionEventKind string

const (
	RecognitionEventStarted RecognitionEventKind = "started"
	RecognitionEventResult  RecognitionEventKind = "result"
	RecognitionEventError   RecognitionEventKind = "error"
	RecognitionEventEnd     RecognitionEventKind = "end"
)

// Alternative is one candidate transcription of a result entry.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult is one entry of a result event.
type RecognitionResult struct {
	Final        bool          `json:"final"`
	Alternatives []Alternative `json:"alternatives"`
}

// Best returns the transcript of the first alternative.
func (r RecognitionResult) Best() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// RecognitionEvent is a single item of a recognition's ordered event stream.
type RecognitionEvent struct {
	Kind    RecognitionEventKind `json:"kind"`
	Results []RecognitionResult  `json:"results,omitempty"`
	Code    RecognitionErrorCode `json:"code,omitempty"`
	Message string               `json:"message,omitempty"`
}

func StartedEvent() RecognitionEvent {
	return RecognitionEvent{Kind: RecognitionEventStarted}
}

func ResultEvent(results ...RecognitionResult) RecognitionEvent {
	return RecognitionEvent{Kind: RecognitionEventResult, Results: results}
}

func ErrorEvent(code RecognitionErrorCode, message string) RecognitionEvent {
	return RecognitionEvent{Kind: RecognitionEventError, Code: code, Message: message}
}

func EndEvent() RecognitionEvent {
	return RecognitionEvent{Kind: RecognitionEventEnd}
}

// AudioPayload is a finalized recording ready for upload.
type AudioPayload struct {
	FileName    string
	ContentType string
	Data        []byte
	Language    string
}

// UploadResult is the transcript returned by a transcription endpoint.
type UploadResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
	Method     string  `json:"method,omitempty"`
}

// Notice is a short user-facing notification.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Snapshot is the reactive state published to the host UI.
type Snapshot struct {
	Transcript  string  `json:"transcript"`
	IsActive    bool    `json:"isActive"`
	IsSupported bool    `json:"isSupported"`
	Error       *string `json:"error"`
	Mode        string  `json:"mode"`
}

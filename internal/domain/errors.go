package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies voice-capture failures.
type ErrorKind string

const (
	ErrorKindUnsupported      ErrorKind = "unsupported_capability"
	ErrorKindDeviceAccess     ErrorKind = "device_access"
	ErrorKindPermissionRevoke ErrorKind = "permission_revoked"
	ErrorKindTransientNoise   ErrorKind = "transient_recognition_noise"
	ErrorKindRestartFailure   ErrorKind = "restart_failure"
	ErrorKindUpload           ErrorKind = "recognition_upload"
	ErrorKindRecognition      ErrorKind = "recognition"
	ErrorKindStartFailure     ErrorKind = "start_failure"
)

// Fatal reports whether the kind ends the current attempt.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrorKindRecognition, ErrorKindTransientNoise:
		return false
	default:
		return true
	}
}

// RecognitionErrorCode is the string code a speech capability reports.
type RecognitionErrorCode string

const (
	CodeAborted           RecognitionErrorCode = "aborted"
	CodeNoSpeech          RecognitionErrorCode = "no-speech"
	CodeNotAllowed        RecognitionErrorCode = "not-allowed"
	CodeServiceNotAllowed RecognitionErrorCode = "service-not-allowed"
	CodeNetwork           RecognitionErrorCode = "network"
	CodeAudioCapture      RecognitionErrorCode = "audio-capture"
)

// Classify maps a recognition error code onto the error taxonomy.
func (c RecognitionErrorCode) Classify() ErrorKind {
	switch c {
	case CodeAborted, CodeNoSpeech:
		return ErrorKindTransientNoise
	case CodeNotAllowed, CodeServiceNotAllowed:
		return ErrorKindPermissionRevoke
	default:
		return ErrorKindRecognition
	}
}

// VoiceError is a user-visible failure of a voice path.
type VoiceError struct {
	Kind    ErrorKind
	Code    RecognitionErrorCode
	Message string
	Err     error
}

func (e *VoiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *VoiceError) Unwrap() error {
	return e.Err
}

// NewError builds a VoiceError without a cause.
func NewError(kind ErrorKind, message string) *VoiceError {
	return &VoiceError{Kind: kind, Message: message}
}

// WrapError builds a VoiceError around a cause.
func WrapError(kind ErrorKind, message string, err error) *VoiceError {
	return &VoiceError{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is a VoiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var voiceErr *VoiceError
	if !errors.As(err, &voiceErr) {
		return false
	}
	return voiceErr.Kind == kind
}

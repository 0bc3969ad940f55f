package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"oceanmic/internal/bootstrap"
	"oceanmic/internal/config"
	"oceanmic/internal/domain"
)

const (
	eventActivity   = "oceanmic:activity"
	eventTranscript = "oceanmic:transcript"
	eventError      = "oceanmic:error"
	eventNotice     = "oceanmic:notice"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	cfg      config.Config
	bootErr  error
	emit     func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.WrapError(domain.ErrorKindStartFailure, "Startup failed", err))
		return
	}

	a.cfg = services.Config
	a.services = services
	services.Start()
}

func (a *App) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = a.services.Shutdown(shutdownCtx)
}

// ToggleVoice starts voice input when idle and stops it otherwise.
func (a *App) ToggleVoice() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return a.GetVoiceState(), err
	}
	err := a.services.Controller.Toggle(a.ctx)
	return a.services.Controller.Snapshot(), err
}

// StartVoice starts voice input.
func (a *App) StartVoice() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return a.GetVoiceState(), err
	}
	err := a.services.Controller.Start(a.ctx)
	return a.services.Controller.Snapshot(), err
}

// StopVoice stops voice input. In record mode it returns after the upload.
func (a *App) StopVoice() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return a.GetVoiceState(), err
	}
	err := a.services.Controller.Stop(a.ctx)
	return a.services.Controller.Snapshot(), err
}

// ResetVoice clears transcript and error state.
func (a *App) ResetVoice() domain.Snapshot {
	if a.requireReady() != nil {
		return a.GetVoiceState()
	}
	a.services.Controller.Reset()
	return a.services.Controller.Snapshot()
}

// GetVoiceState returns the current voice snapshot.
func (a *App) GetVoiceState() domain.Snapshot {
	if a.services.Controller == nil {
		snapshot := domain.Snapshot{Mode: a.cfg.Voice.Mode}
		if a.bootErr != nil {
			message := a.bootErr.Error()
			snapshot.Error = &message
		}
		return snapshot
	}
	return a.services.Controller.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"mode":             a.cfg.Voice.Mode,
		"language":         a.cfg.Voice.Language,
		"continuous":       fmt.Sprintf("%t", a.cfg.Voice.Continuous),
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
	if a.cfg.Voice.Mode == config.ModeRecord {
		info["transcriber"] = a.cfg.Upload.Transcriber
		if a.cfg.Upload.Transcriber == config.TranscriberBackend {
			info["endpoint"] = a.cfg.Upload.URL
		}
	} else {
		info["provider"] = "Deepgram"
		info["model"] = a.cfg.Deepgram.Model
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ActivityStarted tells the frontend that voice input is live.
func (a *App) ActivityStarted() {
	a.send(eventActivity, map[string]any{"active": true})
}

// ActivityStopped tells the frontend that voice input ended.
func (a *App) ActivityStopped() {
	a.send(eventActivity, map[string]any{"active": false})
}

// Transcript pushes the current transcript into the frontend input.
func (a *App) Transcript(text string) {
	a.send(eventTranscript, map[string]string{"text": text})
}

// SessionError emits voice errors to the UI.
func (a *App) SessionError(err *domain.VoiceError) {
	detail := ""
	if err.Err != nil {
		detail = err.Err.Error()
	}
	a.send(eventError, map[string]string{
		"kind":    string(err.Kind),
		"code":    string(err.Code),
		"title":   errorTitle(err.Kind),
		"message": err.Message,
		"detail":  detail,
	})
}

// Notice emits a short notification toast.
func (a *App) Notice(notice domain.Notice) {
	a.send(eventNotice, notice)
}

func (a *App) send(name string, payload any) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func errorTitle(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrorKindUnsupported:
		return "Voice input unavailable"
	case domain.ErrorKindDeviceAccess:
		return "Microphone error"
	case domain.ErrorKindPermissionRevoke:
		return "Microphone permission denied"
	case domain.ErrorKindRestartFailure:
		return "Voice input stopped"
	case domain.ErrorKindUpload:
		return "Speech recognition failed"
	case domain.ErrorKindRecognition:
		return "Speech recognition error"
	case domain.ErrorKindStartFailure:
		return "Voice input failed to start"
	default:
		return "Voice input error"
	}
}

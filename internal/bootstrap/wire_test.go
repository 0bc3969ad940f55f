package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"oceanmic/internal/domain"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OCEANMIC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("OCEANMIC_LOG_LEVEL", "disabled")
	t.Setenv("OCEANMIC_METRICS_ADDR", "")
}

func TestBuildLiveMode(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("OCEANMIC_FFMPEG_COMMAND", "sh")
	t.Setenv("OCEANMIC_VOICE_MODE", "live")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil || services.Registry == nil {
		t.Fatalf("expected controller and registry")
	}
	if services.Controller.Mode() != domain.CaptureModeLive {
		t.Fatalf("unexpected mode: %s", services.Controller.Mode())
	}
	if !services.Controller.Snapshot().IsSupported {
		t.Fatalf("expected live mode to be supported with an API key")
	}
	if services.Observability != nil {
		t.Fatalf("expected no observability server without an address")
	}
	if err := services.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestBuildLiveModeWithoutKeyIsUnsupported(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("OCEANMIC_VOICE_MODE", "live")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller.Snapshot().IsSupported {
		t.Fatalf("expected live mode without a key to be unsupported")
	}
}

func TestBuildRecordMode(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OCEANMIC_VOICE_MODE", "record")
	t.Setenv("OCEANMIC_TRANSCRIBER", "backend")
	t.Setenv("OCEANMIC_METRICS_ADDR", "127.0.0.1:0")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller.Mode() != domain.CaptureModeRecord {
		t.Fatalf("unexpected mode: %s", services.Controller.Mode())
	}
	if services.Observability == nil {
		t.Fatalf("expected observability server when an address is set")
	}
}

func TestBuildFailsWithoutOpenAIKey(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OCEANMIC_VOICE_MODE", "record")
	t.Setenv("OCEANMIC_TRANSCRIBER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Build(noopEventSink{}); err == nil {
		t.Fatalf("expected build error without an OpenAI key")
	}
}

func TestBuildFailsOnInvalidMode(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OCEANMIC_VOICE_MODE", "broadcast")

	if _, err := Build(noopEventSink{}); err == nil {
		t.Fatalf("expected build error due to invalid mode")
	}
}

type noopEventSink struct{}

func (noopEventSink) ActivityStarted()                  {}
func (noopEventSink) ActivityStopped()                  {}
func (noopEventSink) Transcript(_ string)               {}
func (noopEventSink) SessionError(_ *domain.VoiceError) {}
func (noopEventSink) Notice(_ domain.Notice)            {}

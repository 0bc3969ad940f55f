package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OCEANMIC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Voice.Mode != ModeLive || !cfg.Voice.Continuous || !cfg.Voice.Interim || cfg.Voice.Language != "en-US" {
		t.Fatalf("unexpected voice config: %+v", cfg.Voice)
	}
	if cfg.Voice.Debounce != 100*time.Millisecond {
		t.Fatalf("unexpected debounce: %s", cfg.Voice.Debounce)
	}
	if cfg.Restart.Delay != 100*time.Millisecond || cfg.Restart.Multiplier != 2 || cfg.Restart.MaxDelay != 3*time.Second || cfg.Restart.MaxAttempts != 10 {
		t.Fatalf("unexpected restart config: %+v", cfg.Restart)
	}
	if cfg.Upload.Transcriber != TranscriberBackend || cfg.Upload.URL != "http://localhost:8000/speech-to-text" || cfg.Upload.Timeout != time.Minute {
		t.Fatalf("unexpected upload config: %+v", cfg.Upload)
	}
	if cfg.Deepgram.Model != "nova-2" || !cfg.Deepgram.SmartFormat || cfg.Deepgram.CloseGrace != 2*time.Second {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.OpenAI.Model != "whisper-1" || cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Fatalf("unexpected openai/log config: %+v %+v", cfg.OpenAI, cfg.Log)
	}
}

func TestLoadRespectsOverridesAndFallbacks(t *testing.T) {
	t.Setenv("OCEANMIC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("DEEPGRAM_API_BASE", "https://example.com/v1")
	t.Setenv("DEEPGRAM_MODEL", "nova-3")
	t.Setenv("DEEPGRAM_LANGUAGE", "en")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("DEEPGRAM_STREAMING_GRACE_MS", "25")
	t.Setenv("OCEANMIC_VOICE_MODE", "RECORD")
	t.Setenv("OCEANMIC_CONTINUOUS", "no")
	t.Setenv("OCEANMIC_INTERIM_RESULTS", "0")
	t.Setenv("OCEANMIC_LANGUAGE", "fr-FR")
	t.Setenv("OCEANMIC_TRANSCRIPT_DEBOUNCE_MS", "0")
	t.Setenv("OCEANMIC_RESTART_DELAY_MS", "250")
	t.Setenv("OCEANMIC_RESTART_MULTIPLIER", "1.5")
	t.Setenv("OCEANMIC_RESTART_MAX_DELAY_MS", "1000")
	t.Setenv("OCEANMIC_RESTART_MAX_ATTEMPTS", "0")
	t.Setenv("OCEANMIC_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("OCEANMIC_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("OCEANMIC_AUDIO_INPUT_DEVICE", "mic0")
	t.Setenv("OCEANMIC_SAMPLE_RATE", "22050")
	t.Setenv("OCEANMIC_CHANNELS", "2")
	t.Setenv("OCEANMIC_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("OCEANMIC_TRANSCRIBER", "openai")
	t.Setenv("OCEANMIC_SPEECH_TO_TEXT_URL", "http://backend:9000/speech-to-text")
	t.Setenv("OCEANMIC_SPEECH_TO_TEXT_METHOD", "google")
	t.Setenv("OCEANMIC_UPLOAD_TIMEOUT_MS", "1500")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OCEANMIC_METRICS_ADDR", ":9464")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Deepgram.APIKey != "test-key" || cfg.Deepgram.APIBaseURL != "https://example.com/v1" {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Deepgram.Model != "nova-3" || cfg.Deepgram.Language != "en" || cfg.Deepgram.SmartFormat || cfg.Deepgram.CloseGrace != 25*time.Millisecond {
		t.Fatalf("unexpected deepgram model/language/smart format: %+v", cfg.Deepgram)
	}
	if cfg.Voice.Mode != ModeRecord || cfg.Voice.Continuous || cfg.Voice.Interim || cfg.Voice.Language != "fr-FR" || cfg.Voice.Debounce != 0 {
		t.Fatalf("unexpected voice config: %+v", cfg.Voice)
	}
	if cfg.Restart.Delay != 250*time.Millisecond || cfg.Restart.Multiplier != 1.5 || cfg.Restart.MaxDelay != time.Second || cfg.Restart.MaxAttempts != 0 {
		t.Fatalf("unexpected restart config: %+v", cfg.Restart)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.InputFormat != "alsa" || cfg.Audio.InputDevice != "mic0" {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 22050 || cfg.Audio.Channels != 2 || cfg.Audio.ChunkSize != 512 {
		t.Fatalf("unexpected sample/channels/chunk: %+v", cfg.Audio)
	}
	if cfg.Upload.Transcriber != TranscriberOpenAI || cfg.Upload.URL != "http://backend:9000/speech-to-text" || cfg.Upload.Method != "google" || cfg.Upload.Timeout != 1500*time.Millisecond {
		t.Fatalf("unexpected upload config: %+v", cfg.Upload)
	}
	if cfg.OpenAI.APIKey != "sk-test" || cfg.Metrics.Addr != ":9464" {
		t.Fatalf("unexpected openai/metrics config: %+v %+v", cfg.OpenAI, cfg.Metrics)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	t.Setenv("OCEANMIC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("OCEANMIC_SAMPLE_RATE", "bad")
	t.Setenv("OCEANMIC_CHANNELS", "-1")
	t.Setenv("OCEANMIC_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("OCEANMIC_TRANSCRIPT_DEBOUNCE_MS", "-3")
	t.Setenv("OCEANMIC_RESTART_DELAY_MS", "bad")
	t.Setenv("OCEANMIC_RESTART_MULTIPLIER", "0.2")
	t.Setenv("OCEANMIC_RESTART_MAX_DELAY_MS", "10")
	t.Setenv("OCEANMIC_RESTART_MAX_ATTEMPTS", "-1")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("expected audio fallbacks, got %+v", cfg.Audio)
	}
	if cfg.Voice.Debounce != 100*time.Millisecond {
		t.Fatalf("expected default debounce, got %s", cfg.Voice.Debounce)
	}
	if cfg.Restart.Delay != 100*time.Millisecond || cfg.Restart.Multiplier != 2 || cfg.Restart.MaxDelay != 100*time.Millisecond || cfg.Restart.MaxAttempts != 10 {
		t.Fatalf("expected restart fallbacks, got %+v", cfg.Restart)
	}
	if !cfg.Deepgram.SmartFormat {
		t.Fatalf("expected default smart format true")
	}
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	t.Setenv("OCEANMIC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("OCEANMIC_VOICE_MODE", "telepathy")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown mode error")
	}

	t.Setenv("OCEANMIC_VOICE_MODE", "live")
	t.Setenv("OCEANMIC_TRANSCRIBER", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown transcriber error")
	}
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "oceanmic.env")
	contents := "DEEPGRAM_MODEL=nova-3\nOCEANMIC_LANGUAGE=de-DE\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("OCEANMIC_ENV_FILE", envFile)
	unsetForTest(t, "DEEPGRAM_MODEL")
	t.Setenv("OCEANMIC_LANGUAGE", "es-ES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Deepgram.Model != "nova-3" {
		t.Fatalf("expected env file value, got %q", cfg.Deepgram.Model)
	}
	if cfg.Voice.Language != "es-ES" {
		t.Fatalf("expected environment to win over env file, got %q", cfg.Voice.Language)
	}
}

func TestLoadFailsOnUnreadableEnvFile(t *testing.T) {
	t.Setenv("OCEANMIC_ENV_FILE", t.TempDir())
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when env file is a directory")
	}
}

// unsetForTest removes key for the duration of the test.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

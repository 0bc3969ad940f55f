package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeLive   = "live"
	ModeRecord = "record"

	TranscriberBackend = "backend"
	TranscriberOpenAI  = "openai"
)

// Config stores runtime configuration for the voice subsystem.
type Config struct {
	Voice    VoiceConfig
	Restart  RestartConfig
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Upload   UploadConfig
	OpenAI   OpenAIConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type VoiceConfig struct {
	Mode       string
	Continuous bool
	Interim    bool
	Language   string
	Debounce   time.Duration
}

type RestartConfig struct {
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	CloseGrace  time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

type UploadConfig struct {
	Transcriber string
	URL         string
	Method      string
	Timeout     time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Addr string
}

// Load resolves configuration from an optional .env file, environment
// variables and sensible defaults. Variables already set in the environment
// win over the file.
func Load() (Config, error) {
	if err := loadEnvFile(envOrDefault("OCEANMIC_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Voice: VoiceConfig{
			Mode:       strings.ToLower(envOrDefault("OCEANMIC_VOICE_MODE", ModeLive)),
			Continuous: envOrDefaultBool("OCEANMIC_CONTINUOUS", true),
			Interim:    envOrDefaultBool("OCEANMIC_INTERIM_RESULTS", true),
			Language:   envOrDefault("OCEANMIC_LANGUAGE", "en-US"),
			Debounce:   time.Duration(firstNonNegativeInt("OCEANMIC_TRANSCRIPT_DEBOUNCE_MS", "", 100)) * time.Millisecond,
		},
		Restart: RestartConfig{
			Delay:       time.Duration(envOrDefaultInt("OCEANMIC_RESTART_DELAY_MS", 100)) * time.Millisecond,
			Multiplier:  envOrDefaultFloat("OCEANMIC_RESTART_MULTIPLIER", 2),
			MaxDelay:    time.Duration(envOrDefaultInt("OCEANMIC_RESTART_MAX_DELAY_MS", 3000)) * time.Millisecond,
			MaxAttempts: firstNonNegativeInt("OCEANMIC_RESTART_MAX_ATTEMPTS", "", 10),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			CloseGrace:  time.Duration(firstNonNegativeInt("DEEPGRAM_CLOSE_GRACE_MS", "DEEPGRAM_STREAMING_GRACE_MS", 2000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("OCEANMIC_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("OCEANMIC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("OCEANMIC_AUDIO_INPUT_DEVICE"),
				os.Getenv("DEEPGRAM_PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("OCEANMIC_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("OCEANMIC_CHANNELS", 1),
			ChunkSize:  envOrDefaultInt("OCEANMIC_AUDIO_CHUNK_SIZE", 4096),
		},
		Upload: UploadConfig{
			Transcriber: strings.ToLower(envOrDefault("OCEANMIC_TRANSCRIBER", TranscriberBackend)),
			URL:         envOrDefault("OCEANMIC_SPEECH_TO_TEXT_URL", "http://localhost:8000/speech-to-text"),
			Method:      strings.TrimSpace(os.Getenv("OCEANMIC_SPEECH_TO_TEXT_METHOD")),
			Timeout:     time.Duration(envOrDefaultInt("OCEANMIC_UPLOAD_TIMEOUT_MS", 60000)) * time.Millisecond,
		},
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   envOrDefault("OCEANMIC_WHISPER_MODEL", "whisper-1"),
		},
		Log: LogConfig{
			Level:  envOrDefault("OCEANMIC_LOG_LEVEL", "info"),
			Format: envOrDefault("OCEANMIC_LOG_FORMAT", "console"),
		},
		Metrics: MetricsConfig{
			Addr: strings.TrimSpace(os.Getenv("OCEANMIC_METRICS_ADDR")),
		},
	}

	if cfg.Voice.Mode != ModeLive && cfg.Voice.Mode != ModeRecord {
		return Config{}, fmt.Errorf("unknown voice mode %q (want %q or %q)", cfg.Voice.Mode, ModeLive, ModeRecord)
	}
	if cfg.Upload.Transcriber != TranscriberBackend && cfg.Upload.Transcriber != TranscriberOpenAI {
		return Config{}, fmt.Errorf("unknown transcriber %q (want %q or %q)", cfg.Upload.Transcriber, TranscriberBackend, TranscriberOpenAI)
	}

	if cfg.Restart.Delay <= 0 {
		cfg.Restart.Delay = 100 * time.Millisecond
	}
	if cfg.Restart.Multiplier < 1 {
		cfg.Restart.Multiplier = 2
	}
	if cfg.Restart.MaxDelay < cfg.Restart.Delay {
		cfg.Restart.MaxDelay = cfg.Restart.Delay
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Upload.Timeout <= 0 {
		cfg.Upload.Timeout = 60 * time.Second
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func firstNonNegativeInt(primary string, secondary string, fallback int) int {
	for _, key := range []string{primary, secondary} {
		if key == "" {
			continue
		}
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}

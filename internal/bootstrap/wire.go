package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"oceanmic/internal/audio"
	"oceanmic/internal/config"
	"oceanmic/internal/domain"
	"oceanmic/internal/observability"
	"oceanmic/internal/observability/logging"
	"oceanmic/internal/observability/metrics"
	"oceanmic/internal/ports"
	"oceanmic/internal/providers/backend"
	"oceanmic/internal/providers/deepgram"
	"oceanmic/internal/providers/whisper"
	"oceanmic/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller    *usecase.VoiceController
	Config        config.Config
	Registry      *prometheus.Registry
	Observability *observability.Server
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	audioCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}
	capture := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)

	var (
		recognizer  ports.SpeechRecognizer
		transcriber ports.Transcriber
	)
	mode := domain.CaptureMode(cfg.Voice.Mode)
	switch mode {
	case domain.CaptureModeRecord:
		transcriber, err = buildTranscriber(cfg)
		if err != nil {
			return Services{}, err
		}
	default:
		recognizer = deepgram.NewRecognizer(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
			CloseGrace:  cfg.Deepgram.CloseGrace,
			ChunkSize:   cfg.Audio.ChunkSize,
		}, capture, audioCfg)
	}

	controller := usecase.NewVoiceController(
		recognizer,
		capture,
		transcriber,
		eventSink,
		usecase.Config{
			Mode: mode,
			Session: domain.SessionConfig{
				ContinuousMode: cfg.Voice.Continuous,
				InterimResults: cfg.Voice.Interim,
				Language:       cfg.Voice.Language,
			},
			Restart: usecase.RestartPolicy{
				Delay:       cfg.Restart.Delay,
				Multiplier:  cfg.Restart.Multiplier,
				MaxDelay:    cfg.Restart.MaxDelay,
				MaxAttempts: cfg.Restart.MaxAttempts,
			},
			Audio:     audioCfg,
			ChunkSize: cfg.Audio.ChunkSize,
			Debounce:  cfg.Voice.Debounce,
		},
		recorder,
	)

	services := Services{Controller: controller, Config: cfg, Registry: registry}
	if cfg.Metrics.Addr != "" {
		services.Observability = observability.NewServer(cfg.Metrics.Addr, registry)
	}
	return services, nil
}

// Start launches optional background listeners.
func (s Services) Start() {
	if s.Observability != nil {
		s.Observability.Start()
	}
}

// Shutdown releases the voice path and stops background listeners.
func (s Services) Shutdown(ctx context.Context) error {
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.Observability != nil {
		return s.Observability.Shutdown(ctx)
	}
	return nil
}

func buildTranscriber(cfg config.Config) (ports.Transcriber, error) {
	switch cfg.Upload.Transcriber {
	case config.TranscriberOpenAI:
		t, err := whisper.NewTranscriber(whisper.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure whisper transcriber: %w", err)
		}
		return t, nil
	default:
		return backend.NewTranscriber(backend.Config{
			URL:     cfg.Upload.URL,
			Method:  cfg.Upload.Method,
			Timeout: cfg.Upload.Timeout,
		}), nil
	}
}

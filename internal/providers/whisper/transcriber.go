package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"

	"oceanmic/internal/domain"
)

const method = "openai-whisper"

// Config controls the OpenAI Whisper client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Transcriber sends recordings to OpenAI's transcription endpoint.
type Transcriber struct {
	client *openai.Client
	model  string
}

func NewTranscriber(cfg Config) (*Transcriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, payload domain.AudioPayload) (domain.UploadResult, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: payload.FileName,
		Reader:   bytes.NewReader(payload.Data),
		Language: baseLanguage(payload.Language),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("whisper transcription failed: %w", err)
	}

	return domain.UploadResult{
		Text:       strings.TrimSpace(resp.Text),
		Confidence: confidence(resp),
		Language:   resp.Language,
		Method:     method,
	}, nil
}

// confidence averages the per-segment token probability.
func confidence(resp openai.AudioResponse) float64 {
	if len(resp.Segments) == 0 {
		return 0
	}
	var total float64
	for _, segment := range resp.Segments {
		total += math.Exp(segment.AvgLogprob)
	}
	return total / float64(len(resp.Segments))
}

// baseLanguage turns a BCP 47 tag such as en-US into the ISO-639-1 code Whisper expects.
func baseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

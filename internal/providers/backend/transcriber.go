package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"oceanmic/internal/domain"
)

const audioField = "audio_file"

// Config controls the analysis backend speech-to-text client.
type Config struct {
	URL     string
	Method  string
	Timeout time.Duration
}

// Transcriber uploads recordings to the analysis backend.
type Transcriber struct {
	cfg    Config
	client *http.Client
}

func NewTranscriber(cfg Config) *Transcriber {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:8000/speech-to-text"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Transcriber{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type response struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Method     string  `json:"method"`
}

func (t *Transcriber) Transcribe(ctx context.Context, payload domain.AudioPayload) (domain.UploadResult, error) {
	endpoint, err := t.endpoint(payload.Language)
	if err != nil {
		return domain.UploadResult{}, err
	}

	body, contentType, err := encodeAudio(payload)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to encode recording: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to build speech-to-text request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("speech-to-text request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to read speech-to-text response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.UploadResult{}, fmt.Errorf("speech-to-text returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.UploadResult{}, fmt.Errorf("invalid speech-to-text response: %w", err)
	}

	return domain.UploadResult{
		Text:       decoded.Text,
		Confidence: decoded.Confidence,
		Language:   decoded.Language,
		Method:     decoded.Method,
	}, nil
}

func (t *Transcriber) endpoint(language string) (string, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid speech-to-text URL: %w", err)
	}
	query := u.Query()
	if t.cfg.Method != "" {
		query.Set("method", t.cfg.Method)
	}
	if language != "" {
		query.Set("language", language)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func encodeAudio(payload domain.AudioPayload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := payload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		`form-data; name="`+escapeQuotes(audioField)+`"; filename="`+escapeQuotes(payload.FileName)+`"`)
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

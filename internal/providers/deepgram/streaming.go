package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"oceanmic/internal/domain"
)

// streamConfig describes the audio sent over one listen connection.
type streamConfig struct {
	Encoding       string
	SampleRate     int
	Channels       int
	InterimResults bool
	Language       string
}

// handshakeError reports a rejected websocket upgrade.
type handshakeError struct {
	StatusCode int
	Err        error
}

func (e *handshakeError) Error() string {
	return fmt.Sprintf("deepgram rejected the connection with status %d: %v", e.StatusCode, e.Err)
}

func (e *handshakeError) Unwrap() error {
	return e.Err
}

// providerError is an Error message sent by Deepgram over an open stream.
type providerError struct {
	Message string
}

func (e *providerError) Error() string {
	return e.Message
}

func openStream(ctx context.Context, dialer *websocket.Dialer, cfg Config, scfg streamConfig) (*stream, error) {
	wsURL, err := buildListenURL(cfg, scfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, &handshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	s := &stream{
		conn:     conn,
		results:  make(chan domain.RecognitionResult, 64),
		audio:    make(chan []byte, 32),
		readDone: make(chan struct{}),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		_ = conn.Close()
		close(s.done)
	}()

	return s, nil
}

// stream is one Deepgram listen connection. Results is closed when the
// provider side of the connection ends.
type stream struct {
	conn *websocket.Conn

	results  chan domain.RecognitionResult
	audio    chan []byte
	readDone chan struct{}
	closing  chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.readDone:
		return errors.New("stream closed")
	case <-s.closing:
		return errors.New("stream closed")
	}
}

// CloseSend flushes queued audio and asks Deepgram to finalize the stream.
func (s *stream) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *stream) Results() <-chan domain.RecognitionResult {
	return s.results
}

// Close tears the connection down and waits for both loops to exit.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.Err()
}

// Err returns the first failure observed on the connection.
func (s *stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setWriteErr(fmt.Errorf("failed to send audio: %w", err))
			s.drain()
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setWriteErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

// setWriteErr keeps write failures that happen after the provider hung up out of Err.
func (s *stream) setWriteErr(err error) {
	select {
	case <-s.readDone:
	case <-s.closing:
	default:
		s.setErr(err)
		_ = s.conn.Close()
	}
}

func (s *stream) drain() {
	for range s.audio {
	}
}

func (s *stream) readLoop() {
	defer s.wg.Done()
	defer close(s.results)
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
			default:
				s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Description)
			if message == "" {
				message = strings.TrimSpace(response.Message)
			}
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(&providerError{Message: message})
			return
		}

		alternatives := extractAlternatives(response)
		if len(alternatives) == 0 {
			continue
		}

		result := domain.RecognitionResult{
			Final:        response.IsFinal || response.SpeechFinal,
			Alternatives: alternatives,
		}
		select {
		case s.results <- result:
		case <-s.closing:
			return
		}
	}
}

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []deepgramAlternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []deepgramAlternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractAlternatives(response deepgramResponse) []domain.Alternative {
	source := response.Channel.Alternatives
	if len(source) == 0 && len(response.Results.Channels) > 0 {
		source = response.Results.Channels[0].Alternatives
	}

	var alternatives []domain.Alternative
	for _, alt := range source {
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		alternatives = append(alternatives, domain.Alternative{Transcript: text, Confidence: alt.Confidence})
	}
	return alternatives
}

func buildListenURL(providerCfg Config, streamCfg streamConfig) (string, error) {
	base := providerCfg.APIBaseURL
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	base = strings.TrimSpace(base)

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}
	language := streamCfg.Language
	if language == "" {
		language = providerCfg.Language
	}
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if language != "" {
		query.Set("language", language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

package deepgram

import (
	"errors"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, streamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "wss://api.deepgram.com/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "encoding=linear16") {
		t.Fatalf("expected default encoding in url: %s", url)
	}
	if !strings.Contains(url, "sample_rate=16000") {
		t.Fatalf("expected default sample_rate in url: %s", url)
	}
	if !strings.Contains(url, "channels=1") {
		t.Fatalf("expected default channels in url: %s", url)
	}
	if !strings.Contains(url, "interim_results=false") {
		t.Fatalf("expected interim_results in url: %s", url)
	}
	if strings.Contains(url, "language=") {
		t.Fatalf("expected no language by default: %s", url)
	}
}

func TestBuildListenURLSessionLanguageWins(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "en", SmartFormat: true},
		streamConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true, Language: "en-US"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "ws://localhost:8080/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "language=en-US") {
		t.Fatalf("expected session language in url: %s", url)
	}
	if !strings.Contains(url, "smart_format=true") || !strings.Contains(url, "interim_results=true") {
		t.Fatalf("expected flags in url: %s", url)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, streamConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestExtractAlternatives(t *testing.T) {
	t.Parallel()

	r1 := deepgramResponse{}
	r1.Channel.Alternatives = []deepgramAlternative{{Transcript: " channel ", Confidence: 0.8}, {Transcript: " "}}
	got := extractAlternatives(r1)
	if len(got) != 1 || got[0].Transcript != "channel" || got[0].Confidence != 0.8 {
		t.Fatalf("unexpected alternatives from channel: %+v", got)
	}

	r2 := deepgramResponse{}
	r2.Results.Channels = append(r2.Results.Channels, struct {
		Alternatives []deepgramAlternative "json:\"alternatives\""
	}{Alternatives: []deepgramAlternative{{Transcript: "results"}}})
	if got := extractAlternatives(r2); len(got) != 1 || got[0].Transcript != "results" {
		t.Fatalf("unexpected alternatives from results: %+v", got)
	}

	if got := extractAlternatives(deepgramResponse{}); len(got) != 0 {
		t.Fatalf("expected no alternatives, got %+v", got)
	}
}

func TestStreamSendAudioClosed(t *testing.T) {
	t.Parallel()

	s := &stream{sendClosed: true}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

func TestStreamCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &stream{audio: make(chan []byte, 1)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
}

func TestStreamSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &stream{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.Err() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.setErr(errors.New("boom"))
	if s.Err() == nil || s.Err().Error() != "boom" {
		t.Fatalf("expected non-close error to be captured")
	}
}

func TestStreamSetErrFirstWins(t *testing.T) {
	t.Parallel()

	s := &stream{}
	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.Err() == nil || s.Err().Error() != "first" {
		t.Fatalf("expected first error to win")
	}
}

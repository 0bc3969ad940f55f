package usecase

import (
	"sync"

	"github.com/rs/zerolog"

	"oceanmic/internal/domain"
	"oceanmic/internal/ports"
)

const (
	recordingFileName    = "recording.wav"
	recordingContentType = "audio/wav"
)

// recording is one open capture of the record-and-upload path.
type recording struct {
	audio  ports.AudioSession
	buffer *audioBuffer
	done   chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

func startRecording(audio ports.AudioSession, chunkSize int, logger zerolog.Logger) *recording {
	r := &recording{
		audio:  audio,
		buffer: &audioBuffer{},
		done:   make(chan struct{}),
	}
	go bufferAudioChunks(audio, r.buffer, chunkSize, logger, r.done)
	return r
}

// finish ends capture, waits for the buffer to finalize and releases the
// device before returning, whatever happens next. An empty capture yields a
// payload without data.
func (r *recording) finish(cfg ports.AudioConfig, language string) (domain.AudioPayload, error) {
	defer r.release()

	stopErr := r.audio.Stop()
	<-r.done

	payload := domain.AudioPayload{
		FileName:    recordingFileName,
		ContentType: recordingContentType,
		Language:    language,
	}
	if pcm := r.buffer.Flush(); len(pcm) > 0 {
		payload.Data = encodeWAV(pcm, cfg.SampleRate, cfg.Channels)
	}
	return payload, stopErr
}

// discard ends capture and drops whatever was buffered.
func (r *recording) discard() {
	defer r.release()
	_ = r.audio.Stop()
	<-r.done
	_ = r.buffer.Flush()
}

func (r *recording) release() {
	r.releaseOnce.Do(func() {
		r.releaseErr = r.audio.Close()
	})
}

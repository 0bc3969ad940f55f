package usecase

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// audioBuffer is an append-only sequence of chunks, flushed exactly once.
type audioBuffer struct {
	mu      sync.Mutex
	chunks  [][]byte
	size    int
	flushed bool
}

func (b *audioBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushed {
		return
	}
	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
	b.size += len(chunk)
}

// Flush returns the combined payload and clears the buffer. Later calls return nil.
func (b *audioBuffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushed {
		return nil
	}
	b.flushed = true
	payload := bytes.Join(b.chunks, nil)
	b.chunks = nil
	b.size = 0
	return payload
}

func (b *audioBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *audioBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

func bufferAudioChunks(
	audio io.Reader,
	buffer *audioBuffer,
	chunkSize int,
	logger zerolog.Logger,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			buffer.Append(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Warn().Err(err).Msg("audio capture error")
			}
			return
		}
	}
}

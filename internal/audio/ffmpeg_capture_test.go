package audio

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"oceanmic/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nexec sleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Close()

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestFFMPEGCaptureOutputReadableAfterStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcm-samples'\nexec sleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	started := time.Now()
	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if time.Since(started) > time.Second {
		t.Fatalf("expected interrupt to end capture promptly")
	}

	data, err := io.ReadAll(session)
	if err != nil {
		t.Fatalf("read after stop failed: %v", err)
	}
	if string(data) != "pcm-samples" {
		t.Fatalf("expected buffered output after stop, got %q", data)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "recorder exited before capture started") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFFMPEGCaptureMissingCommand(t *testing.T) {
	t.Parallel()

	capture := NewFFMPEGCapture(filepath.Join(t.TempDir(), "missing-ffmpeg"))
	if _, err := capture.Start(context.Background(), ports.AudioConfig{}); err == nil {
		t.Fatalf("expected start error for missing command")
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func TestCaptureArgsDefaults(t *testing.T) {
	t.Parallel()

	got := strings.Join(captureArgs(ports.AudioConfig{}), " ")
	want := "-nostdin -hide_banner -loglevel warning -f pulse -i default -ac 1 -ar 16000 -f s16le -"
	if got != want {
		t.Fatalf("unexpected args: %q", got)
	}

	got = strings.Join(captureArgs(ports.AudioConfig{SampleRate: 48000, Channels: 2, InputFormat: "alsa", InputDevice: "hw:1"}), " ")
	if !strings.Contains(got, "-f alsa -i hw:1 -ac 2 -ar 48000") {
		t.Fatalf("unexpected custom args: %q", got)
	}
}

func TestFFMPEGCaptureAvailable(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nexit 0\n")
	if !NewFFMPEGCapture(script).Available() {
		t.Fatalf("expected script recorder to be available")
	}
	if NewFFMPEGCapture(filepath.Join(t.TempDir(), "missing-ffmpeg")).Available() {
		t.Fatalf("expected missing recorder to be unavailable")
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

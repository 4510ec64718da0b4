package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTranscoderToMP3(t *testing.T) {
	tr := Transcoder{Path: fakeFFmpeg(t), Timeout: 10 * time.Second}
	dest := filepath.Join(t.TempDir(), "out.mp3")

	if err := tr.ToMP3(context.Background(), bytes.NewReader(wavBytes), dest); err != nil {
		t.Fatalf("unexpected transcode error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("ID3")) {
		t.Fatalf("unexpected output %q", data)
	}
}

func TestTranscoderFailureRemovesOutput(t *testing.T) {
	tr := Transcoder{Path: failingFFmpeg(t), Timeout: 10 * time.Second}
	dest := filepath.Join(t.TempDir(), "out.mp3")

	err := tr.ToMP3(context.Background(), bytes.NewReader(wavBytes), dest)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if uerr.Service != "ffmpeg" || !strings.Contains(uerr.Detail, "Invalid data") {
		t.Fatalf("unexpected upstream error %+v", uerr)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("partial output should be removed, stat err = %v", err)
	}
}

func TestTranscoderMissingBinary(t *testing.T) {
	tr := Transcoder{Path: filepath.Join(t.TempDir(), "no-ffmpeg")}
	err := tr.ToMP3(context.Background(), bytes.NewReader(wavBytes), filepath.Join(t.TempDir(), "out.mp3"))
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestTranscoderTimeout(t *testing.T) {
	slow := writeScript(t, "ffmpeg", "cat > /dev/null\nexec sleep 5")
	tr := Transcoder{Path: slow, Timeout: 100 * time.Millisecond}

	err := tr.ToMP3(context.Background(), bytes.NewReader(wavBytes), filepath.Join(t.TempDir(), "out.mp3"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestProberDuration(t *testing.T) {
	probe := writeScript(t, "ffprobe", `echo '{"format":{"duration":"12.480000"}}'`)
	d, err := Prober{Path: probe}.Duration(context.Background(), "whatever.mp3")
	if err != nil {
		t.Fatalf("unexpected probe error: %v", err)
	}
	if d == nil || *d != 12.48 {
		t.Fatalf("unexpected duration %v", d)
	}

	none := writeScript(t, "ffprobe", `echo '{"format":{"duration":"N/A"}}'`)
	if d, err := (Prober{Path: none}).Duration(context.Background(), "x.mp3"); err != nil || d != nil {
		t.Fatalf("N/A duration: got %v, %v", d, err)
	}

	if d, err := (Prober{}).Duration(context.Background(), "x.mp3"); err != nil || d != nil {
		t.Fatalf("disabled prober: got %v, %v", d, err)
	}
}

package media

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

const maxStderr = 4096

// Transcoder converts uploads to MP3 with an external ffmpeg binary.
type Transcoder struct {
	Path    string
	Timeout time.Duration
}

// ToMP3 pipes r through ffmpeg into dest and blocks until the process exits.
// On failure dest is removed and an *UpstreamError carries ffmpeg's stderr.
func (t Transcoder) ToMP3(ctx context.Context, r io.Reader, dest string) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	bin := t.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", "pipe:0",
		"-vn", "-f", "mp3",
		dest,
	)
	cmd.Stdin = r
	stderr := &cappedBuffer{max: maxStderr}
	cmd.Stderr = stderr
	// don't hang on pipes held open by ffmpeg children after a kill
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		_ = os.Remove(dest)
		detail := strings.TrimSpace(stderr.String())
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &UpstreamError{Service: "ffmpeg", Detail: detail, Err: err}
	}
	return nil
}

// cappedBuffer keeps the first max bytes written and discards the rest.
type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Prober reads durations with ffprobe. A zero Path disables probing.
type Prober struct {
	Path    string
	Timeout time.Duration
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration in seconds, or nil when probing is
// disabled or the format reports none.
func (p Prober) Duration(ctx context.Context, path string) (*float64, error) {
	if p.Path == "" {
		return nil, nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.Path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("ffprobe output: %w", err)
	}
	if parsed.Format.Duration == "" || parsed.Format.Duration == "N/A" {
		return nil, nil
	}
	secs, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("ffprobe duration %q: %w", parsed.Format.Duration, err)
	}
	return &secs, nil
}

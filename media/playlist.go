package media

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPlaylistLimit = 500
	MaxPlaylistLimit     = 1000
)

// M3UContentType is served with playlist exports.
const M3UContentType = "audio/x-mpegurl; charset=utf-8"

// Track is one playlist entry.
type Track struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Duration *float64 `json:"duration,omitempty"`
}

// ClampLimit parses a limit query value: missing or unparsable means the
// default, anything else is clipped to [1, MaxPlaylistLimit].
func ClampLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPlaylistLimit
	}
	if n < 1 {
		return 1
	}
	if n > MaxPlaylistLimit {
		return MaxPlaylistLimit
	}
	return n
}

// BuildM3U renders tracks as an extended M3U document.
func BuildM3U(tracks []Track) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, t := range tracks {
		secs := -1
		if t.Duration != nil {
			secs = int(math.Round(*t.Duration))
		}
		b.WriteString("#EXTINF:")
		b.WriteString(strconv.Itoa(secs))
		b.WriteByte(',')
		b.WriteString(oneLine(t.Title))
		b.WriteByte('\n')
		b.WriteString(oneLine(t.URL))
		b.WriteByte('\n')
	}
	return b.String()
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string {
	return lineBreaks.Replace(s)
}

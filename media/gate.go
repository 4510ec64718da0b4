package media

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// TargetType is the codec family every stored audio item ends up in.
const TargetType = "audio/mpeg"

// SniffLen is how much of an upload the gate inspects.
const SniffLen = 3072

// Decision is the gate's verdict for one upload.
type Decision int

const (
	Reject Decision = iota
	Direct
	Transcode
)

func (d Decision) String() string {
	switch d {
	case Direct:
		return "direct"
	case Transcode:
		return "transcode"
	default:
		return "reject"
	}
}

// browser recorders hand out these containers for audio-only captures
var recorderContainers = map[string]bool{
	"video/webm": true,
	"video/ogg":  true,
}

// Classify maps a client-declared media type to a decision. Parameters such as
// "; codecs=opus" are ignored and matching is case-insensitive.
func Classify(declared string) Decision {
	mt := normalizeType(declared)
	switch {
	case mt == "":
		return Reject
	case mt == TargetType:
		return Direct
	case strings.HasPrefix(mt, "audio/"), recorderContainers[mt]:
		return Transcode
	default:
		return Reject
	}
}

func normalizeType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		// fall back to the bare type for malformed parameter lists
		mt = strings.SplitN(declared, ";", 2)[0]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Gate validates uploads before anything touches the disk or the database.
type Gate struct {
	// TrustDeclared disables magic-byte inspection.
	TrustDeclared bool
}

// Check decides how an upload is handled. head is the start of the payload,
// at most SniffLen bytes. allowTranscode is false on the batch path, which only
// takes content that is already MP3.
func (g Gate) Check(declared string, head []byte, allowTranscode bool) (Decision, error) {
	d := Classify(declared)
	if d == Reject {
		return Reject, unsupported(declared)
	}
	if !g.TrustDeclared {
		d = g.refine(d, head)
	}
	if d == Transcode && !allowTranscode {
		return Reject, unsupported(declared)
	}
	if d == Reject {
		return Reject, unsupported(declared)
	}
	return d, nil
}

// refine corrects a declared decision with what the bytes say.
func (g Gate) refine(d Decision, head []byte) Decision {
	sniffed := mimetype.Detect(head)
	if sniffed.Is(TargetType) {
		// mislabelled MP3 needs no encoder run
		return Direct
	}
	if d == Direct {
		return Transcode
	}
	if isOpaque(sniffed) || isAudioVisual(sniffed) {
		return d
	}
	return Reject
}

func isOpaque(m *mimetype.MIME) bool {
	return m.Is("application/octet-stream")
}

func isAudioVisual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") || s == "application/ogg" {
			return true
		}
	}
	return false
}

func unsupported(declared string) error {
	if declared == "" {
		declared = "unknown"
	}
	return &typeError{declared: declared}
}

type typeError struct{ declared string }

func (e *typeError) Error() string {
	return "only MP3 (audio/mpeg) or convertible audio is accepted, got " + e.declared
}

func (e *typeError) Unwrap() error { return ErrUnsupportedType }

// SniffImage reports the detected image type and its extension (with the dot)
// or ok=false when head is not an image.
func SniffImage(head []byte) (mt, ext string, ok bool) {
	m := mimetype.Detect(head)
	if !strings.HasPrefix(m.String(), "image/") {
		return "", "", false
	}
	return m.String(), m.Extension(), true
}

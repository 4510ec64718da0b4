package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/radiocms/utils"
)

// seq disambiguates names generated within the same nanosecond.
var seq atomic.Uint64

// Storage writes uploads below Root and exposes them under URLPrefix.
type Storage struct {
	Root      string
	URLPrefix string
	MaxBytes  int64
}

// Stored describes a file the writer created.
type Stored struct {
	AbsPath string
	URL     string
	Size    int64
}

// Dir returns the absolute directory for a sub-folder such as a collection.
func (s Storage) Dir(sub string) (string, error) {
	return filepath.Abs(filepath.Join(s.Root, sub))
}

// Write streams r into a fresh file named after base. It never overwrites: the
// name carries a timestamp and a sequence number and the file is opened with
// O_EXCL.
func (s Storage) Write(sub, base, ext string, r io.Reader) (Stored, error) {
	f, st, err := s.create(sub, uniqueName(base, ext))
	if err != nil {
		return Stored{}, err
	}
	return s.fill(f, st, r)
}

// WriteUUID is Write with a random name, used for post images.
func (s Storage) WriteUUID(sub, ext string, r io.Reader) (Stored, error) {
	f, st, err := s.create(sub, uuid.NewString()+normalizeExt(ext))
	if err != nil {
		return Stored{}, err
	}
	return s.fill(f, st, r)
}

// Reserve creates an empty file for a producer that writes by path, such as
// the encoder.
func (s Storage) Reserve(sub, base, ext string) (Stored, error) {
	f, st, err := s.create(sub, uniqueName(base, ext))
	if err != nil {
		return Stored{}, err
	}
	return st, f.Close()
}

// Stat refreshes Size for a file written by somebody else.
func (s Storage) Stat(st Stored) (Stored, error) {
	fi, err := os.Stat(st.AbsPath)
	if err != nil {
		return st, err
	}
	st.Size = fi.Size()
	return st, nil
}

// Exists reports whether absPath is a regular file.
func (s Storage) Exists(absPath string) bool {
	fi, err := os.Stat(absPath)
	return err == nil && fi.Mode().IsRegular()
}

// Limit caps r at MaxBytes for producers that bypass Write, such as the
// encoder. Reading stops one byte past the cap so Exceeded can tell.
func (s Storage) Limit(r io.Reader) *LimitedReader {
	lr := &LimitedReader{r: r, max: s.MaxBytes}
	if s.MaxBytes > 0 {
		lr.r = io.LimitReader(r, s.MaxBytes+1)
	}
	return lr
}

// LimitedReader counts what passes through it.
type LimitedReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	return n, err
}

// Exceeded reports whether more than the cap was offered.
func (l *LimitedReader) Exceeded() bool {
	return l.max > 0 && l.n > l.max
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s Storage) Remove(absPath string) error {
	if absPath == "" {
		return nil
	}
	if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s Storage) create(sub, name string) (*os.File, Stored, error) {
	dir, err := s.Dir(sub)
	if err != nil {
		return nil, Stored{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Stored{}, fmt.Errorf("create upload dir: %w", err)
	}
	abs := filepath.Join(dir, name)
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, Stored{}, fmt.Errorf("create %s: %w", name, err)
	}
	return f, Stored{AbsPath: abs, URL: path.Join(s.URLPrefix, filepath.ToSlash(sub), name)}, nil
}

func (s Storage) fill(f *os.File, st Stored, r io.Reader) (Stored, error) {
	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && n > s.MaxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(st.AbsPath)
		return Stored{}, err
	}
	st.Size = n
	return st, nil
}

func uniqueName(base, ext string) string {
	safe := utils.Slugify(base)
	if safe == "" {
		safe = "audio"
	}
	// leave room for the suffix inside common filename limits
	if len(safe) > 100 {
		safe = strings.TrimRight(safe[:100], "-")
	}
	return fmt.Sprintf("%s-%d-%d%s", safe, time.Now().UnixNano(), seq.Add(1), normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

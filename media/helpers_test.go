package media

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gorm.io/gorm"

	"github.com/cppla/radiocms/config"
	"github.com/cppla/radiocms/models"
)

var (
	mp3Bytes  = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x0a"), bytes.Repeat([]byte{0}, 64)...)
	wavBytes  = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), bytes.Repeat([]byte{0}, 64)...)
	textBytes = []byte("definitely not audio, just some text in a file")
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := config.Migrate(db, &models.User{}, &models.Post{}, &models.MediaItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string, roles ...string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: name + "@example.com", Roles: roles, IsActive: true}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func upload(filename, title, declared string, data []byte) Upload {
	return Upload{
		Filename:     filename,
		Title:        title,
		DeclaredType: declared,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// writeScript installs an executable shell script standing in for an external tool.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// fakeFFmpeg drains stdin and writes an MP3 stub to the last argument.
func fakeFFmpeg(t *testing.T) string {
	return writeScript(t, "ffmpeg", `cat > /dev/null
for last; do :; done
printf 'ID3converted' > "$last"`)
}

func failingFFmpeg(t *testing.T) string {
	return writeScript(t, "ffmpeg", `cat > /dev/null
for last; do :; done
printf 'partial' > "$last"
echo "pipe:0: Invalid data found when processing input" >&2
exit 1`)
}

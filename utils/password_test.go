package utils

import (
	"errors"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatal("matching password rejected")
	}
	if CheckPassword(hash, "wrong horse!") {
		t.Fatal("wrong password accepted")
	}
	if CheckPassword("", "correct horse") {
		t.Fatal("empty hash must never match")
	}
}

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"  <b>Rock</b> & Roll ": "Rock & Roll",
		"<script>x()</script>":  "",
		"plain":                 "plain",
	}
	for in, want := range cases {
		if got := SanitizeText(in); got != want {
			t.Fatalf("SanitizeText(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Sanitize(`<p onclick="x()">hi</p>`); got != "<p>hi</p>" {
		t.Fatalf("Sanitize dropped the wrong parts: %q", got)
	}
}

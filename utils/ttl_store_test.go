package utils

import (
	"testing"
	"time"
)

func TestStateIsSingleUse(t *testing.T) {
	SaveState("state-abc", time.Minute)
	if !ConsumeState("state-abc") {
		t.Fatal("fresh state should be accepted")
	}
	if ConsumeState("state-abc") {
		t.Fatal("state must not be accepted twice")
	}
	if ConsumeState("") || ConsumeState("never-issued") {
		t.Fatal("unknown state accepted")
	}
}

func TestStateExpires(t *testing.T) {
	s := newTTLStore("test:")
	s.put("k", 20*time.Millisecond)
	if !s.has("k", false) {
		t.Fatal("key should be present")
	}
	time.Sleep(40 * time.Millisecond)
	if s.has("k", false) {
		t.Fatal("key should have expired")
	}
}

func TestTokenBlacklist(t *testing.T) {
	BlacklistToken("tok-1", time.Now().Add(time.Hour))
	if !IsTokenBlacklisted("tok-1") || !IsTokenBlacklisted("tok-1") {
		t.Fatal("revoked token should stay revoked")
	}
	BlacklistToken("tok-2", time.Now().Add(-time.Minute))
	if IsTokenBlacklisted("tok-2") {
		t.Fatal("already expired token need not be stored")
	}
}

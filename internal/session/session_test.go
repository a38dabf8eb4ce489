package session

import (
	"testing"
	"time"
)

func TestAddExchange_TruncatesToLimit(t *testing.T) {
	s := New("sess1", "user1", time.Now())
	for i := 0; i < DefaultHistoryLimit+5; i++ {
		AddExchange(s, Exchange{UserUtterance: "hi", Timestamp: time.Now()}, 0)
	}
	if len(s.History) != DefaultHistoryLimit {
		t.Fatalf("History len = %d, want %d", len(s.History), DefaultHistoryLimit)
	}
}

func TestAddDelivered_NoDuplicates(t *testing.T) {
	s := New("sess1", "user1", time.Now())
	AddDelivered(s, []string{"fp1", "fp2"})
	AddDelivered(s, []string{"fp2", "fp3"})
	if len(s.Delivered) != 3 {
		t.Fatalf("Delivered = %v, want 3 unique entries", s.Delivered)
	}
	if !s.HasDelivered("fp1") || !s.HasDelivered("fp3") {
		t.Error("expected fp1 and fp3 to be recorded as delivered")
	}
}

func TestFingerprint_ShortContentUnchanged(t *testing.T) {
	if got := Fingerprint("short"); got != "short" {
		t.Errorf("Fingerprint(short) = %q, want %q", got, "short")
	}
}

func TestFingerprint_TruncatesToLength(t *testing.T) {
	long := make([]byte, FingerprintLength+20)
	for i := range long {
		long[i] = 'a'
	}
	got := Fingerprint(string(long))
	if len(got) != FingerprintLength {
		t.Fatalf("Fingerprint length = %d, want %d", len(got), FingerprintLength)
	}
}

func TestIsFirstTurn(t *testing.T) {
	s := New("sess1", "user1", time.Now())
	if !s.IsFirstTurn() {
		t.Error("expected new session to be first-turn")
	}
	AddExchange(s, Exchange{UserUtterance: "hi"}, 0)
	if s.IsFirstTurn() {
		t.Error("expected session with history to not be first-turn")
	}
}

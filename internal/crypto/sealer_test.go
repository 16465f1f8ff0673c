package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestNewSealer_RejectsBadKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := NewSealer(make([]byte, n)); err == nil {
			t.Errorf("NewSealer with %d-byte key should fail", n)
		}
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := NewSealer(testKey(1))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	for _, plain := range []string{"Ada", "Lovelace", "çok uzun bir isim", "x"} {
		sealed, err := s.Seal(plain)
		if err != nil {
			t.Fatalf("Seal(%q): %v", plain, err)
		}
		if sealed == plain {
			t.Errorf("Seal(%q) returned plaintext", plain)
		}
		got, err := s.Open(sealed)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if got != plain {
			t.Errorf("round trip = %q, want %q", got, plain)
		}
	}
}

func TestSealEmptyPassesThrough(t *testing.T) {
	s, _ := NewSealer(testKey(1))
	sealed, err := s.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("Seal(\"\") = (%q, %v), want (\"\", nil)", sealed, err)
	}
	plain, err := s.Open("")
	if err != nil || plain != "" {
		t.Errorf("Open(\"\") = (%q, %v), want (\"\", nil)", plain, err)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	s, _ := NewSealer(testKey(1))
	a, _ := s.Seal("same input")
	b, _ := s.Seal("same input")
	if a == b {
		t.Error("two seals of the same input should differ (random nonce)")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := NewSealer(testKey(1))
	sealed, _ := s.Seal("sensitive")

	// Flip one character of the base64 payload.
	mutated := []byte(sealed)
	if mutated[len(mutated)-5] == 'A' {
		mutated[len(mutated)-5] = 'B'
	} else {
		mutated[len(mutated)-5] = 'A'
	}
	if _, err := s.Open(string(mutated)); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open(tampered) = %v, want ErrDecrypt", err)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	s1, _ := NewSealer(testKey(1))
	s2, _ := NewSealer(testKey(2))

	sealed, _ := s1.Seal("sensitive")
	if _, err := s2.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open with wrong key = %v, want ErrDecrypt", err)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	s, _ := NewSealer(testKey(1))
	for _, bad := range []string{"not base64 !!!", "YWJj"} {
		if _, err := s.Open(bad); !errors.Is(err, ErrDecrypt) {
			t.Errorf("Open(%q) = %v, want ErrDecrypt", bad, err)
		}
	}
}

package ratelimit

import "testing"

func TestAllowConsumesBurst(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		if !l.Allow("src-a", 3, 0) {
			t.Fatalf("request %d should pass within burst", i)
		}
	}
	if l.Allow("src-a", 3, 0) {
		t.Fatal("request beyond burst should be rejected")
	}
}

func TestAllowIsPerKey(t *testing.T) {
	l := New()

	if !l.Allow("src-a", 1, 0) {
		t.Fatal("first request for src-a should pass")
	}
	if l.Allow("src-a", 1, 0) {
		t.Fatal("second request for src-a should be rejected")
	}
	if !l.Allow("src-b", 1, 0) {
		t.Fatal("src-b has its own bucket and should pass")
	}
}

package httpmiddleware

import (
	"testing"
	"time"
)

func TestAllowLocalExhaustsAndRefills(t *testing.T) {
	l := NewRateLimiter(nil, 3)
	base := time.Now()

	for i := 0; i < 3; i++ {
		if !l.allowLocal("10.0.0.1", base) {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if l.allowLocal("10.0.0.1", base) {
		t.Fatal("fourth request in the same minute should be denied")
	}
	if !l.allowLocal("10.0.0.2", base) {
		t.Fatal("other clients are counted separately")
	}
	if !l.allowLocal("10.0.0.1", base.Add(time.Minute)) {
		t.Fatal("bucket should refill after a minute")
	}
}

func TestNewRateLimiterDefaultsRate(t *testing.T) {
	l := NewRateLimiter(nil, 0)
	if l.rate != 60 {
		t.Fatalf("rate = %d, want 60", l.rate)
	}
}

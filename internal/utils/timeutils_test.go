package utils

import (
	"testing"
	"time"
)

func TestUnixSecondsRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 15, 500_000_000, time.UTC)
	sec := UnixSeconds(now)
	back := FromUnixSeconds(sec)
	if diff := back.Sub(now); diff > time.Microsecond || diff < -time.Microsecond {
		t.Fatalf("round trip drifted by %v", diff)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	base := NewAppError("predict", "invalid metric map", errSentinel)
	appErr, ok := AsAppError(base)
	if !ok || appErr.Op != "predict" {
		t.Fatalf("expected AppError, got %v", base)
	}
}

var errSentinel = &AppError{Op: "validate", Msg: "bad"}

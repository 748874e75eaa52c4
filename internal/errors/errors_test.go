package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestExitCodePartition(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is ok", nil, ExitOK},
		{"invalid credentials", New(InvalidCredentials, "login error indicator"), ExitInvalidCredentials},
		{"game start timeout", New(GameStartTimeout, "no game window"), ExitGameStart},
		{"time budget", New(TimeBudget, "budget exhausted"), ExitTimeBudget},
		{"generic", New(Generic, "boom"), ExitFailure},
		{"no progress", New(NoProgress, "stale state"), ExitFailure},
		{"plain error", stderrors.New("plain"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}

	// The three terminal codes must be pairwise disjoint and nonzero.
	codes := []int{ExitInvalidCredentials, ExitGameStart, ExitTimeBudget, ExitFailure}
	seen := map[int]bool{ExitOK: true}
	for _, c := range codes {
		if seen[c] {
			t.Errorf("exit code %d not disjoint", c)
		}
		seen[c] = true
	}
}

func TestKindFromExitCodeRoundTrip(t *testing.T) {
	for _, k := range []Kind{InvalidCredentials, GameStartTimeout, TimeBudget} {
		got, failed := KindFromExitCode(k.ExitCode())
		if !failed {
			t.Fatalf("exit code %d should classify as failure", k.ExitCode())
		}
		if got != k {
			t.Errorf("round trip for %v: got %v", k, got)
		}
	}
	if _, failed := KindFromExitCode(ExitOK); failed {
		t.Error("ExitOK should not classify as failure")
	}
	if k, failed := KindFromExitCode(127); !failed || k != Generic {
		t.Errorf("unknown code should be generic failure, got %v %v", k, failed)
	}
}

func TestKindOfUnwraps(t *testing.T) {
	inner := New(InvalidCredentials, "indicator seen")
	wrapped := fmt.Errorf("login: %w", inner)
	if KindOf(wrapped) != InvalidCredentials {
		t.Error("KindOf should see through fmt wrapping")
	}
	double := Wrap(wrapped, Generic, "outer")
	if KindOf(double) != Generic {
		t.Error("outermost kind wins")
	}
	if !stderrors.Is(double, inner) {
		t.Error("Unwrap chain broken")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(New(InvalidCredentials, "x")) {
		t.Error("invalid credentials must never be retryable")
	}
	if !IsRetryable(New(GameStartTimeout, "x")) {
		t.Error("game start timeout is retried at the outer level")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

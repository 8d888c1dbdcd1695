package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestUnreachableOnlyForTransportAnd5xx(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&RemoteError{Kind: FailureTransport, Err: errors.New("refused")}, true},
		{&RemoteError{Kind: FailureHTTP, StatusCode: 502}, true},
		{fmt.Errorf("wrapped: %w", &RemoteError{Kind: FailureHTTP, StatusCode: 500}), true},
		{&RemoteError{Kind: FailureHTTP, StatusCode: 400}, false},
		{&RemoteError{Kind: FailureHTTP, StatusCode: 401}, false},
		{&RemoteError{Kind: FailureDomain, Message: "nope"}, false},
		{errors.New("plain"), false},
	}
	for _, c := range cases {
		if got := Unreachable(c.err); got != c.want {
			t.Fatalf("Unreachable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
	if !ShouldFallback(&RemoteError{Kind: FailureHTTP, StatusCode: 400}) {
		t.Fatalf("client errors still fall back to the cache for the current fetch")
	}
}

func TestNormalizeDifficulty(t *testing.T) {
	for in, want := range map[string]string{"easy": DifficultyEasy, "MEDIUM": DifficultyMedium, " Hard ": DifficultyHard} {
		got, ok := NormalizeDifficulty(in)
		if !ok || got != want {
			t.Fatalf("NormalizeDifficulty(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := NormalizeDifficulty("expert"); ok {
		t.Fatalf("expert should not normalize")
	}
}

package main

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: FailureUnknown},
		{name: "plain error", err: errors.New("boom"), want: FailureUnknown},
		{name: "media error", err: newMediaError(FailureOversize, "", ErrTooLarge), want: FailureOversize},
		{name: "wrapped", err: fmt.Errorf("deliver: %w", newMediaError(FailureFetch, "u", ErrNoFiles)), want: FailureFetch},
		{name: "joined", err: errors.Join(errors.New("x"), newMediaError(FailureSend, "", errors.New("y"))), want: FailureSend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMediaErrorUnwrap(t *testing.T) {
	err := newMediaError(FailureDomain, "https://example.com", ErrDomain)
	if !errors.Is(err, ErrDomain) {
		t.Fatal("expected errors.Is to reach the sentinel")
	}
	if want := "domain https://example.com: domain is not allowed"; err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

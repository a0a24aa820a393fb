package e

import (
	"errors"
	"fmt"
	"testing"
)

func TestJoin(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Join(ErrConnectionRefused, cause)

	if !errors.Is(err, ErrConnectionRefused) || !errors.Is(err, cause) {
		t.Fatalf("Join lost a wrapped error: %v", err)
	}
	if Join(ErrFetchFailed, nil) != ErrFetchFailed {
		t.Fatal("Join with nil cause must return the kind")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "wrapped not found",
			err:  Wrap("Fetcher.Fetch", ErrImageNotFound),
			want: "The image was not found at the given URL (404).",
		},
		{
			name: "unsupported content wins over decode cause",
			err:  Join(ErrUnsupportedFormat, Join(ErrImageDecode, errors.New("unknown format"))),
			want: "The URL does not point to a supported image (JPEG, PNG, WebP, GIF or TIFF).",
		},
		{
			name: "catch-all fetch failure",
			err:  Join(ErrFetchFailed, fmt.Errorf("unexpected status 502")),
			want: "The image could not be downloaded.",
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: "Internal server error.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserMessage_Distinct(t *testing.T) {
	seen := make(map[string]error)
	for _, m := range userMessages {
		if prev, ok := seen[m.msg]; ok {
			t.Fatalf("%v and %v share message %q", prev, m.err, m.msg)
		}
		seen[m.msg] = m.err
	}
}

func TestHasUserMessage(t *testing.T) {
	if !HasUserMessage(Wrap("op", ErrFetchTimeout)) {
		t.Error("taxonomy error must have a user message")
	}
	if HasUserMessage(fmt.Errorf("boom")) || HasUserMessage(nil) {
		t.Error("unknown errors must fall back to the internal message")
	}
}

package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"tunevault/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "conversion", "ffmpeg", "transcode failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"external tool error", "conversion", "ffmpeg", "transcode failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestDetails(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind services.ErrorKind
		wantOp   string
	}{
		{
			name:     "wrapped service error",
			err:      fmt.Errorf("pipeline: %w", services.Wrap(services.ErrNotImplemented, "download", "spotify", "unsupported", nil)),
			wantKind: services.KindNotImplemented,
			wantOp:   "spotify",
		},
		{
			name:     "bare sentinel",
			err:      services.ErrContention,
			wantKind: services.KindContention,
		},
		{
			name:     "plain error",
			err:      errors.New("disk full"),
			wantKind: services.KindUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := services.Details(tt.err)
			if details.Kind != tt.wantKind {
				t.Fatalf("kind = %q, want %q", details.Kind, tt.wantKind)
			}
			if details.Operation != tt.wantOp {
				t.Fatalf("operation = %q, want %q", details.Operation, tt.wantOp)
			}
		})
	}
}

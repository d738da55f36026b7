package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"coded error", New(CodeConflict, "already processed"), CodeConflict},
		{"wrapped coded error", fmt.Errorf("handler: %w", NotFound("invoice", "abc")), CodeNotFound},
		{"double wrap keeps outer code", Wrap(NotFound("invoice", "abc"), CodeUpstream, "query failed"), CodeUpstream},
		{"plain error is upstream", errors.New("pg: connection refused"), CodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidInput("contact_response", "required"), http.StatusBadRequest},
		{NotFound("approval", "h"), http.StatusNotFound},
		{PreconditionFailed("disclosures not all approved"), http.StatusConflict},
		{Conflict("already processed"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageOf_HidesInternalDetail(t *testing.T) {
	internal := Wrap(errors.New("pg: relation missing"), CodeUpstream, "failed to load approval")
	if got := MessageOf(internal); got != "internal error" {
		t.Errorf("MessageOf(upstream) = %q, want generic message", got)
	}

	coded := PreconditionFailed("disclosures not all approved")
	if got := MessageOf(coded); got != "disclosures not all approved" {
		t.Errorf("MessageOf(coded) = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrap(cause, CodeUpstream, "gateway call failed")
	if !errors.Is(err, cause) {
		t.Error("wrapped error should match its cause with errors.Is")
	}
}

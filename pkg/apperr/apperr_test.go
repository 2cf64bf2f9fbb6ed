package apperr

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
		{"direct", E(Forbidden, "nope"), Forbidden},
		{"wrapped", fmt.Errorf("outer: %w", E(NotFound, "gone")), NotFound},
		{"wrap helper", Wrap(InvalidArgument, errors.New("boom"), "bad input"), InvalidArgument},
		{"foreign error defaults to transient", errors.New("i/o timeout"), Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(Transient, cause, "push failed")
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}
	if !IsTransient(err) {
		t.Fatal("expected transient")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{Unauthenticated, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{InvalidArgument, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Transient, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.code); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

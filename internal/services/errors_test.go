package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		validation bool
		notFound   bool
		persist    bool
	}{
		{"validation", NewValidationError("bad id %q", "x"), true, false, false},
		{"not found", NewNotFoundError("session", "s-1"), false, true, false},
		{"persistence", NewPersistenceError("save message", errors.New("conn reset")), false, false, true},
		{"wrapped validation", fmt.Errorf("outer: %w", NewValidationError("empty content")), true, false, false},
		{"plain error", errors.New("something"), false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation = %v, want %v", got, tt.validation)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsPersistence(tt.err); got != tt.persist {
				t.Errorf("IsPersistence = %v, want %v", got, tt.persist)
			}
		})
	}
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("server selection timeout")
	err := NewPersistenceError("get session", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Error() != "failed to get session: server selection timeout" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

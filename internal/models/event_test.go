package models

import (
	"math"
	"testing"
	"time"
)

func TestPartIsValid(t *testing.T) {
	tests := []struct {
		name string
		part Part
		want bool
	}{
		{"text only", Part{Text: "hello"}, true},
		{"function call only", Part{FunctionCall: &FunctionCall{Name: "create_task"}}, true},
		{"function response only", Part{FunctionResponse: &FunctionResponse{Name: "create_task"}}, true},
		{"empty", Part{}, false},
		{"text and call", Part{Text: "hi", FunctionCall: &FunctionCall{Name: "f"}}, false},
		{"call and response", Part{FunctionCall: &FunctionCall{Name: "f"}, FunctionResponse: &FunctionResponse{Name: "f"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.part.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEpochSeconds(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 500_000_000, time.UTC)
	got := EpochSeconds(ts)
	want := float64(ts.Unix()) + 0.5

	if math.Abs(got-want) > 1e-6 {
		t.Errorf("EpochSeconds() = %f, want %f", got, want)
	}
}

func TestValidConversationStatus(t *testing.T) {
	for _, s := range []string{ConversationStatusActive, ConversationStatusCompleted, ConversationStatusArchived} {
		if !ValidConversationStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "deleted", "Active", "open"} {
		if ValidConversationStatus(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

package services

import (
	"context"
	"testing"
)

func TestSaveMessageRejectsEmptyContent(t *testing.T) {
	// Validation fires before any collection access, so a zero-value
	// service is enough here.
	s := &MessageService{}
	ctx := context.Background()
	convID := "507f1f77bcf86cd799439011"

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"spaces only", "   "},
		{"whitespace mix", " \t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, deduplicated, err := s.SaveUserMessage(ctx, convID, tt.content, nil)
			if msg != nil || deduplicated {
				t.Errorf("expected no message, got %+v (deduplicated=%v)", msg, deduplicated)
			}
			if !IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	// Agent and system senders share the same guard
	if _, _, err := s.SaveAgentMessage(ctx, convID, "  ", nil); !IsValidation(err) {
		t.Errorf("expected validation error for agent message, got %v", err)
	}
	if _, _, err := s.SaveSystemMessage(ctx, convID, "", nil); !IsValidation(err) {
		t.Errorf("expected validation error for system message, got %v", err)
	}
}

func TestSaveMessageRejectsInvalidConversationID(t *testing.T) {
	s := &MessageService{}

	for _, id := range []string{"", "not-a-hex-id", "507f1f77bcf86cd79943901"} {
		msg, _, err := s.SaveUserMessage(context.Background(), id, "hello", nil)
		if msg != nil {
			t.Errorf("expected no message for id %q, got %+v", id, msg)
		}
		if !IsValidation(err) {
			t.Errorf("expected validation error for id %q, got %v", id, err)
		}
	}
}

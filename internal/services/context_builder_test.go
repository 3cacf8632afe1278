package services

import (
	"testing"
	"time"

	"taskpilot/internal/models"
)

func TestSenderToRole(t *testing.T) {
	tests := []struct {
		sender string
		role   string
		ok     bool
	}{
		{models.SenderUser, "user", true},
		{models.SenderAgent, "model", true},
		{models.SenderSystem, "model", true},
		{"webhook", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.sender, func(t *testing.T) {
			role, ok := senderToRole(tt.sender)
			if role != tt.role || ok != tt.ok {
				t.Errorf("senderToRole(%q) = (%q, %v), want (%q, %v)", tt.sender, role, ok, tt.role, tt.ok)
			}
		})
	}
}

func TestMessageToContent(t *testing.T) {
	now := time.Now()

	msg := models.Message{Sender: models.SenderAgent, Content: "done", CreatedAt: now}
	content, ok := messageToContent(msg)
	if !ok {
		t.Fatal("expected conversion to succeed")
	}
	if content.Role != "model" {
		t.Errorf("role = %q, want model", content.Role)
	}
	if len(content.Parts) != 1 || content.Parts[0].Text != "done" {
		t.Errorf("unexpected parts: %+v", content.Parts)
	}

	// Messages that cannot be represented are dropped individually
	if _, ok := messageToContent(models.Message{Sender: models.SenderUser, Content: ""}); ok {
		t.Error("empty content should not convert")
	}
	if _, ok := messageToContent(models.Message{Sender: "unknown", Content: "hi"}); ok {
		t.Error("unknown sender should not convert")
	}
}

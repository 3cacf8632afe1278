package services

import (
	"testing"

	"taskpilot/internal/models"
)

func newTestConnection(id string) *models.UserConnection {
	return &models.UserConnection{
		ConnID:    id,
		UserID:    "user-1",
		WriteChan: make(chan models.ServerMessage, 1),
		StopChan:  make(chan bool, 1),
	}
}

func TestConnectionManagerAddRemove(t *testing.T) {
	cm := NewConnectionManager()

	conn := newTestConnection("conn-1")
	cm.Add(conn)

	if cm.Count() != 1 {
		t.Fatalf("expected 1 connection, got %d", cm.Count())
	}
	if got, ok := cm.Get("conn-1"); !ok || got != conn {
		t.Error("expected to retrieve the added connection")
	}

	cm.Remove("conn-1")
	if cm.Count() != 0 {
		t.Errorf("expected 0 connections after remove, got %d", cm.Count())
	}
	if _, ok := cm.Get("conn-1"); ok {
		t.Error("removed connection should not be retrievable")
	}

	// Removing an unknown id is a no-op
	cm.Remove("conn-1")
}

func TestConnectionManagerCloseAll(t *testing.T) {
	cm := NewConnectionManager()
	a := newTestConnection("a")
	b := newTestConnection("b")
	cm.Add(a)
	cm.Add(b)

	cm.CloseAll()

	if cm.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", cm.Count())
	}
	if !a.IsClosed() || !b.IsClosed() {
		t.Error("connections should be marked closed")
	}
	// SafeSend on a closed connection must not panic and must report failure
	if a.SafeSend(models.ServerMessage{Type: "error"}) {
		t.Error("SafeSend should fail after CloseAll")
	}
}

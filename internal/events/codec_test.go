package events

import (
	"testing"

	"taskpilot/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validEventDoc(id string) bson.M {
	return bson.M{
		"id":        id,
		"timestamp": 1700000000.5,
		"author":    "agent",
		"content": bson.M{
			"role": "model",
			"parts": primitive.A{
				bson.M{"text": "hello"},
			},
		},
	}
}

func TestSerializeReconstructRoundTrip(t *testing.T) {
	ev := &models.Event{
		ID:           "evt-1",
		Timestamp:    1700000123.25,
		Author:       "agent",
		InvocationID: "inv-9",
		TurnComplete: true,
		Content: &models.Content{
			Role: "model",
			Parts: []models.Part{
				{Text: "first"},
				{FunctionCall: &models.FunctionCall{Name: "create_task", ID: "fc-1", Args: map[string]interface{}{"title": "demo"}}},
				{Text: "second"},
			},
		},
		Actions: &models.EventActions{
			StateDelta: map[string]interface{}{"counter": 1},
		},
	}

	doc := Serialize(ev)
	got, ok := Reconstruct(doc)
	if !ok {
		t.Fatal("expected reconstruction to succeed")
	}

	if got.ID != ev.ID || got.Author != ev.Author || got.Timestamp != ev.Timestamp {
		t.Errorf("identity fields not preserved: got %+v", got)
	}
	if !got.TurnComplete {
		t.Error("turn_complete flag not preserved")
	}
	if got.Content == nil || got.Content.Role != "model" {
		t.Fatalf("content role not preserved: %+v", got.Content)
	}
	if len(got.Content.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(got.Content.Parts))
	}
	// Text parts must survive in original order
	if got.Content.Parts[0].Text != "first" || got.Content.Parts[2].Text != "second" {
		t.Errorf("text part order not preserved: %+v", got.Content.Parts)
	}
	if got.Content.Parts[1].FunctionCall == nil || got.Content.Parts[1].FunctionCall.Name != "create_task" {
		t.Errorf("function call not preserved: %+v", got.Content.Parts[1])
	}
}

func TestSerializeNeverFails(t *testing.T) {
	doc := Serialize(nil)
	if doc["error"] != "Serialization failed" {
		t.Errorf("expected fallback document, got %v", doc)
	}
}

func TestSerializeDropsInvalidParts(t *testing.T) {
	ev := &models.Event{
		ID:        "evt-2",
		Timestamp: 1,
		Author:    "agent",
		Content: &models.Content{
			Role: "model",
			Parts: []models.Part{
				{}, // no variant populated
				{Text: "kept"},
			},
		},
	}

	doc := Serialize(ev)
	content, _ := doc["content"].(bson.M)
	if content == nil {
		t.Fatal("expected content to survive")
	}
	parts, _ := content["parts"].([]bson.M)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
}

func TestCleanEventDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  bson.M
		want func(t *testing.T, cleaned bson.M)
	}{
		{
			name: "unknown part keys dropped",
			doc: bson.M{
				"id": "e", "timestamp": 1.0, "author": "a",
				"content": bson.M{
					"role":  "model",
					"parts": primitive.A{bson.M{"text": "hi", "type": "foo"}},
				},
			},
			want: func(t *testing.T, cleaned bson.M) {
				content := cleaned["content"].(bson.M)
				part := content["parts"].([]bson.M)[0]
				if len(part) != 1 || part["text"] != "hi" {
					t.Errorf("expected part to contain only text, got %v", part)
				}
			},
		},
		{
			name: "unknown top-level fields dropped",
			doc: bson.M{
				"id": "e", "timestamp": 1.0, "author": "a",
				"internal_debug": "junk", "branch": "main",
			},
			want: func(t *testing.T, cleaned bson.M) {
				if _, ok := cleaned["internal_debug"]; ok {
					t.Error("unknown field survived cleaning")
				}
				if _, ok := cleaned["branch"]; ok {
					t.Error("unknown field survived cleaning")
				}
			},
		},
		{
			name: "part with no recognized keys dropped, then content dropped",
			doc: bson.M{
				"id": "e", "timestamp": 1.0, "author": "a",
				"content": bson.M{
					"role":  "model",
					"parts": primitive.A{bson.M{"type": "weird", "blob": 42}},
				},
			},
			want: func(t *testing.T, cleaned bson.M) {
				if _, ok := cleaned["content"]; ok {
					t.Error("content with no surviving parts should be dropped")
				}
			},
		},
		{
			name: "actions keep only deltas",
			doc: bson.M{
				"id": "e", "timestamp": 1.0, "author": "a",
				"actions": bson.M{
					"state_delta": bson.M{"k": "v"},
					"transfer_to": "other-agent",
				},
			},
			want: func(t *testing.T, cleaned bson.M) {
				actions := cleaned["actions"].(bson.M)
				if _, ok := actions["transfer_to"]; ok {
					t.Error("unknown action key survived cleaning")
				}
				if _, ok := actions["state_delta"]; !ok {
					t.Error("state_delta should survive cleaning")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, CleanEventDocument(tt.doc))
		})
	}
}

func TestReconstructRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  bson.M
	}{
		{"missing id", bson.M{"timestamp": 1.0, "author": "a"}},
		{"missing author", bson.M{"id": "e", "timestamp": 1.0}},
		{"missing timestamp", bson.M{"id": "e", "author": "a"}},
		{"id wrong type", bson.M{"id": 42, "timestamp": 1.0, "author": "a"}},
		{"timestamp wrong type", bson.M{"id": "e", "timestamp": "yesterday", "author": "a"}},
		{
			"part with two variants",
			bson.M{
				"id": "e", "timestamp": 1.0, "author": "a",
				"content": bson.M{
					"role": "model",
					"parts": primitive.A{bson.M{
						"text":          "hi",
						"function_call": bson.M{"name": "f"},
					}},
				},
			},
		},
		{
			"function call without name",
			bson.M{
				"id": "e", "timestamp": 1.0, "author": "a",
				"content": bson.M{
					"role":  "model",
					"parts": primitive.A{bson.M{"function_call": bson.M{"args": bson.M{}}}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Reconstruct(tt.doc); ok {
				t.Error("expected reconstruction to be skipped")
			}
		})
	}
}

func TestReconstructAcceptsIntegerTimestamp(t *testing.T) {
	doc := bson.M{"id": "e", "timestamp": int64(1700000000), "author": "a"}
	ev, ok := Reconstruct(doc)
	if !ok {
		t.Fatal("integer timestamps from the driver must reconstruct")
	}
	if ev.Timestamp != 1700000000 {
		t.Errorf("timestamp = %v, want 1700000000", ev.Timestamp)
	}
}

func TestReconstructAllSkipsCorrupted(t *testing.T) {
	docs := []bson.M{
		validEventDoc("e1"),
		validEventDoc("e2"),
		{"garbage": true}, // corrupted: no required fields
		validEventDoc("e3"),
		validEventDoc("e4"),
		validEventDoc("e5"),
	}

	evs, skipped := ReconstructAll("sess-1", docs)
	if len(evs) != 5 {
		t.Fatalf("expected 5 recovered events, got %d", len(evs))
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped event, got %d", skipped)
	}
	// Insertion order must be preserved across the skip
	wantOrder := []string{"e1", "e2", "e3", "e4", "e5"}
	for i, ev := range evs {
		if ev.ID != wantOrder[i] {
			t.Errorf("event %d = %s, want %s", i, ev.ID, wantOrder[i])
		}
	}
}

func TestReconstructAllEmpty(t *testing.T) {
	evs, skipped := ReconstructAll("sess-1", nil)
	if len(evs) != 0 || skipped != 0 {
		t.Errorf("expected no events and no skips, got %d/%d", len(evs), skipped)
	}
}

// Package events translates between in-memory Event values and the documents
// stored in the sessions collection. Reads prioritize availability over
// completeness: a stored event that cannot be rebuilt is skipped, never fatal
// to the session load.
package events

import (
	"log"

	"taskpilot/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Serialize converts an event into a storable document, extracting only the
// known fields. It never fails: on any unexpected internal shape it falls
// back to a minimal placeholder document so an append is never aborted by
// serialization.
func Serialize(ev *models.Event) (doc bson.M) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ [EVENTS] Serialization failed for event %v: %v", eventID(ev), r)
			doc = bson.M{
				"id":        eventID(ev),
				"timestamp": eventTimestamp(ev),
				"error":     "Serialization failed",
			}
		}
	}()

	if ev == nil {
		panic("nil event")
	}

	doc = bson.M{
		"id":        ev.ID,
		"timestamp": ev.Timestamp,
		"author":    ev.Author,
	}
	if ev.InvocationID != "" {
		doc["invocation_id"] = ev.InvocationID
	}
	if ev.Partial {
		doc["partial"] = true
	}
	if ev.TurnComplete {
		doc["turn_complete"] = true
	}
	if ev.Interrupted {
		doc["interrupted"] = true
	}
	if ev.ErrorCode != "" {
		doc["error_code"] = ev.ErrorCode
	}
	if ev.ErrorMessage != "" {
		doc["error_message"] = ev.ErrorMessage
	}

	if ev.Content != nil && len(ev.Content.Parts) > 0 {
		parts := make([]bson.M, 0, len(ev.Content.Parts))
		for _, p := range ev.Content.Parts {
			if !p.IsValid() {
				continue
			}
			part := bson.M{}
			switch {
			case p.Text != "":
				part["text"] = p.Text
			case p.FunctionCall != nil:
				fc := bson.M{"name": p.FunctionCall.Name}
				if p.FunctionCall.ID != "" {
					fc["id"] = p.FunctionCall.ID
				}
				if len(p.FunctionCall.Args) > 0 {
					fc["args"] = p.FunctionCall.Args
				}
				part["function_call"] = fc
			case p.FunctionResponse != nil:
				fr := bson.M{"name": p.FunctionResponse.Name}
				if p.FunctionResponse.ID != "" {
					fr["id"] = p.FunctionResponse.ID
				}
				if len(p.FunctionResponse.Response) > 0 {
					fr["response"] = p.FunctionResponse.Response
				}
				part["function_response"] = fr
			}
			parts = append(parts, part)
		}
		if len(parts) > 0 {
			doc["content"] = bson.M{
				"role":  ev.Content.Role,
				"parts": parts,
			}
		}
	}

	if ev.Actions != nil {
		actions := bson.M{}
		if len(ev.Actions.StateDelta) > 0 {
			actions["state_delta"] = ev.Actions.StateDelta
		}
		if len(ev.Actions.ArtifactDelta) > 0 {
			actions["artifact_delta"] = ev.Actions.ArtifactDelta
		}
		if len(actions) > 0 {
			doc["actions"] = actions
		}
	}

	return doc
}

// Top-level fields copied through by CleanEventDocument. Anything else in a
// stored event document is dropped during reconstruction.
var knownEventFields = []string{
	"id", "timestamp", "author", "invocation_id",
	"partial", "turn_complete", "interrupted",
	"error_code", "error_message",
}

// CleanEventDocument strips a stored event document down to the fields the
// reconstruction understands. For content parts only the recognized variant
// keys (text, function_call, function_response) survive; a part left with no
// recognized keys is dropped, and content with no surviving parts is dropped
// entirely.
func CleanEventDocument(doc bson.M) bson.M {
	cleaned := bson.M{}
	for _, field := range knownEventFields {
		if v, ok := doc[field]; ok {
			cleaned[field] = v
		}
	}

	if content := asMap(doc["content"]); content != nil {
		parts := make([]bson.M, 0)
		for _, raw := range asSlice(content["parts"]) {
			part := asMap(raw)
			if part == nil {
				continue
			}
			kept := bson.M{}
			for _, key := range []string{"text", "function_call", "function_response"} {
				if v, ok := part[key]; ok {
					kept[key] = v
				}
			}
			if len(kept) > 0 {
				parts = append(parts, kept)
			}
		}
		if len(parts) > 0 {
			cleanedContent := bson.M{"parts": parts}
			if role, ok := content["role"]; ok {
				cleanedContent["role"] = role
			}
			cleaned["content"] = cleanedContent
		}
	}

	if actions := asMap(doc["actions"]); actions != nil {
		cleanedActions := bson.M{}
		if v, ok := actions["state_delta"]; ok {
			cleanedActions["state_delta"] = v
		}
		if v, ok := actions["artifact_delta"]; ok {
			cleanedActions["artifact_delta"] = v
		}
		if len(cleanedActions) > 0 {
			cleaned["actions"] = cleanedActions
		}
	}

	return cleaned
}

// Reconstruct attempts to build an Event from a stored document. The second
// return value is false when the document cannot yield a usable event; the
// caller excludes it from the event list. It never returns an error and
// never panics across this boundary.
func Reconstruct(doc bson.M) (ev *models.Event, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ [EVENTS] Event reconstruction panicked, skipping: %v", r)
			ev, ok = nil, false
		}
	}()

	cleaned := CleanEventDocument(doc)

	id, hasID := asString(cleaned["id"])
	author, hasAuthor := asString(cleaned["author"])
	timestamp, hasTimestamp := asFloat(cleaned["timestamp"])
	if !hasID || id == "" || !hasAuthor || author == "" || !hasTimestamp {
		return nil, false
	}

	ev = &models.Event{
		ID:        id,
		Author:    author,
		Timestamp: timestamp,
	}
	ev.InvocationID, _ = asString(cleaned["invocation_id"])
	ev.Partial = asBool(cleaned["partial"])
	ev.TurnComplete = asBool(cleaned["turn_complete"])
	ev.Interrupted = asBool(cleaned["interrupted"])
	ev.ErrorCode, _ = asString(cleaned["error_code"])
	ev.ErrorMessage, _ = asString(cleaned["error_message"])

	if content := asMap(cleaned["content"]); content != nil {
		role, _ := asString(content["role"])
		parts := make([]models.Part, 0)
		for _, raw := range asSlice(content["parts"]) {
			partDoc := asMap(raw)
			if partDoc == nil {
				continue
			}
			part, partOK := reconstructPart(partDoc)
			if !partOK {
				return nil, false
			}
			parts = append(parts, part)
		}
		if len(parts) > 0 {
			ev.Content = &models.Content{Role: role, Parts: parts}
		}
	}

	if actions := asMap(cleaned["actions"]); actions != nil {
		ea := &models.EventActions{}
		if sd := asMap(actions["state_delta"]); sd != nil {
			ea.StateDelta = map[string]interface{}(sd)
		}
		if ad := asMap(actions["artifact_delta"]); ad != nil {
			ea.ArtifactDelta = map[string]interface{}(ad)
		}
		if ea.StateDelta != nil || ea.ArtifactDelta != nil {
			ev.Actions = ea
		}
	}

	return ev, true
}

// reconstructPart builds a part from a cleaned part document, enforcing the
// exactly-one-variant invariant.
func reconstructPart(doc bson.M) (models.Part, bool) {
	var part models.Part

	if text, ok := asString(doc["text"]); ok && text != "" {
		part.Text = text
	}
	if fc := asMap(doc["function_call"]); fc != nil {
		name, ok := asString(fc["name"])
		if !ok || name == "" {
			return part, false
		}
		call := &models.FunctionCall{Name: name}
		call.ID, _ = asString(fc["id"])
		if args := asMap(fc["args"]); args != nil {
			call.Args = map[string]interface{}(args)
		}
		part.FunctionCall = call
	}
	if fr := asMap(doc["function_response"]); fr != nil {
		name, ok := asString(fr["name"])
		if !ok || name == "" {
			return part, false
		}
		resp := &models.FunctionResponse{Name: name}
		resp.ID, _ = asString(fr["id"])
		if r := asMap(fr["response"]); r != nil {
			resp.Response = map[string]interface{}(r)
		}
		part.FunctionResponse = resp
	}

	return part, part.IsValid()
}

// ReconstructAll filter-maps raw stored documents into events, preserving
// order and skipping anything that cannot be rebuilt. It returns the
// surviving events and the number skipped.
func ReconstructAll(sessionID string, docs []bson.M) ([]*models.Event, int) {
	evs := make([]*models.Event, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		ev, ok := Reconstruct(doc)
		if !ok {
			skipped++
			continue
		}
		evs = append(evs, ev)
	}
	if skipped > 0 {
		log.Printf("⚠️ [EVENTS] Session %s: recovered %d of %d stored events (%d skipped)",
			sessionID, len(evs), len(docs), skipped)
	}
	return evs, skipped
}

// asMap normalizes the map shapes the mongo driver can hand back
func asMap(v interface{}) bson.M {
	switch m := v.(type) {
	case bson.M:
		return m
	case map[string]interface{}:
		return bson.M(m)
	case bson.D:
		return m.Map()
	}
	return nil
}

// asSlice normalizes the array shapes the mongo driver can hand back
func asSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case primitive.A:
		return []interface{}(s)
	case []interface{}:
		return s
	case []bson.M:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	}
	return nil
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asBool(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func eventID(ev *models.Event) string {
	if ev == nil {
		return "<nil>"
	}
	return ev.ID
}

func eventTimestamp(ev *models.Event) float64 {
	if ev == nil {
		return 0
	}
	return ev.Timestamp
}

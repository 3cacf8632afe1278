package models

import "time"

// Event is one atomic step in a session: a model turn, a tool call, or a
// tool result. Events are append-only — once appended to a session they are
// never mutated or removed.
type Event struct {
	ID           string        `bson:"id" json:"id"`
	Timestamp    float64       `bson:"timestamp" json:"timestamp"` // epoch seconds
	Author       string        `bson:"author" json:"author"`
	InvocationID string        `bson:"invocation_id,omitempty" json:"invocation_id,omitempty"`
	Partial      bool          `bson:"partial,omitempty" json:"partial,omitempty"`
	TurnComplete bool          `bson:"turn_complete,omitempty" json:"turn_complete,omitempty"`
	Interrupted  bool          `bson:"interrupted,omitempty" json:"interrupted,omitempty"`
	ErrorCode    string        `bson:"error_code,omitempty" json:"error_code,omitempty"`
	ErrorMessage string        `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Content      *Content      `bson:"content,omitempty" json:"content,omitempty"`
	Actions      *EventActions `bson:"actions,omitempty" json:"actions,omitempty"`
}

// Content is an ordered list of parts attributed to a role
type Content struct {
	Role  string `bson:"role" json:"role"`
	Parts []Part `bson:"parts" json:"parts"`
}

// Part is exactly one of: text, function call, or function response
type Part struct {
	Text             string            `bson:"text,omitempty" json:"text,omitempty"`
	FunctionCall     *FunctionCall     `bson:"function_call,omitempty" json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `bson:"function_response,omitempty" json:"function_response,omitempty"`
}

// IsValid reports whether exactly one variant of the part is populated
func (p Part) IsValid() bool {
	n := 0
	if p.Text != "" {
		n++
	}
	if p.FunctionCall != nil {
		n++
	}
	if p.FunctionResponse != nil {
		n++
	}
	return n == 1
}

// FunctionCall is a tool invocation requested by the model
type FunctionCall struct {
	ID   string                 `bson:"id,omitempty" json:"id,omitempty"`
	Name string                 `bson:"name" json:"name"`
	Args map[string]interface{} `bson:"args,omitempty" json:"args,omitempty"`
}

// FunctionResponse carries the result of a tool invocation back to the model
type FunctionResponse struct {
	ID       string                 `bson:"id,omitempty" json:"id,omitempty"`
	Name     string                 `bson:"name" json:"name"`
	Response map[string]interface{} `bson:"response,omitempty" json:"response,omitempty"`
}

// EventActions carries side effects attached to an event
type EventActions struct {
	StateDelta    map[string]interface{} `bson:"state_delta,omitempty" json:"state_delta,omitempty"`
	ArtifactDelta map[string]interface{} `bson:"artifact_delta,omitempty" json:"artifact_delta,omitempty"`
}

// EpochSeconds converts a time to the float epoch-seconds representation
// used for event timestamps and session last_update_time
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

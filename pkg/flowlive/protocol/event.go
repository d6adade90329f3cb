package protocol

import (
	"bytes"
	"encoding/json"

	flerrors "github.com/randalmurphal/flowlive/pkg/flowlive/errors"
)

// Event types.
const (
	TypeBegin    = "begin"
	TypeClose    = "close"
	TypeOver     = "over"
	TypeEnd      = "end"
	TypeStart    = "start"
	TypeProgress = "progress"
	TypeStream   = "stream"
	TypeEndCover = "end_cover"
)

// Event categories.
const (
	CategoryQuestion            = "question"
	CategoryAnswer              = "answer"
	CategoryStream              = "stream"
	CategorySeparator           = "separator"
	CategoryNodeRun             = "node_run"
	CategoryGuideWord           = "guide_word"
	CategoryGuideQuestion       = "guide_question"
	CategoryInput               = "input"
	CategoryOutputMsg           = "output_msg"
	CategoryOutputWithInputMsg  = "output_with_input_msg"
	CategoryOutputWithChooseMsg = "output_with_choose_msg"
	CategoryEndCover            = "end_cover"
	CategoryProcessing          = "processing"
	CategorySystem              = "system"
)

// Event is one inbound frame.
type Event struct {
	Type      string          `json:"type"`
	Category  string          `json:"category"`
	Message   json.RawMessage `json:"message,omitempty"`
	MessageID ID              `json:"message_id,omitempty"`
	ChatID    string          `json:"chat_id,omitempty"`
	FlowID    string          `json:"flow_id,omitempty"`
	Source    int             `json:"source,omitempty"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

// DecodeEvent parses one frame. Frames that are not a JSON object, or that
// carry neither a type nor a category, yield a *errors.ProtocolError.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, &flerrors.ProtocolError{Reason: "malformed envelope", Raw: data, Err: err}
	}
	if ev.Type == "" && ev.Category == "" {
		return Event{}, &flerrors.ProtocolError{Reason: "envelope has no type or category", Raw: data}
	}
	return ev, nil
}

// Payload returns the decoded message field. Objects decode to
// map[string]any, strings holding JSON are parsed, and anything that cannot
// be decoded comes back as its raw text. A missing message yields nil.
func (e Event) Payload() any {
	raw := e.payloadJSON()
	if raw == nil {
		if len(e.Message) == 0 {
			return nil
		}
		var v any
		if err := json.Unmarshal(e.Message, &v); err != nil {
			return string(e.Message)
		}
		return v
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// payloadJSON returns the message field as a JSON object or array, unwrapping
// one level of string encoding. It returns nil when the field is not
// structured.
func (e Event) payloadJSON() []byte {
	msg := bytes.TrimSpace(e.Message)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return nil
	}
	if msg[0] == '"' {
		var s string
		if json.Unmarshal(msg, &s) != nil {
			return nil
		}
		inner := bytes.TrimSpace([]byte(s))
		if len(inner) > 0 && (inner[0] == '{' || inner[0] == '[') && json.Valid(inner) {
			return inner
		}
		return nil
	}
	if (msg[0] == '{' || msg[0] == '[') && json.Valid(msg) {
		return msg
	}
	return nil
}

// decodeInto unmarshals the structured message field into v. It reports
// false when the field is not a JSON object or does not fit v.
func (e Event) decodeInto(v any) bool {
	raw := e.payloadJSON()
	if raw == nil || raw[0] != '{' {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// Text returns a display string for the message field: the "msg" member of
// an object payload, the string itself for string payloads, or the raw text.
func (e Event) Text() string {
	switch p := e.Payload().(type) {
	case nil:
		return ""
	case string:
		return p
	case map[string]any:
		if s, ok := p["msg"].(string); ok {
			return s
		}
	}
	return string(e.Message)
}

// StreamChunk is the message payload of a streaming delta.
type StreamChunk struct {
	Msg              string `json:"msg"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	UniqueID         string `json:"unique_id"`
	OutputKey        string `json:"output_key"`
	NodeID           string `json:"node_id,omitempty"`
}

// StreamChunk decodes the payload of a stream event.
func (e Event) StreamChunk() (StreamChunk, bool) {
	var c StreamChunk
	ok := e.decodeInto(&c)
	return c, ok
}

// NodeRun is the message payload of a node lifecycle event.
type NodeRun struct {
	UniqueID string `json:"unique_id"`
	NodeID   string `json:"node_id"`
	Name     string `json:"name,omitempty"`
	Status   string `json:"status,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// NodeRun decodes the payload of a node_run event.
func (e Event) NodeRun() (NodeRun, bool) {
	var r NodeRun
	ok := e.decodeInto(&r)
	return r, ok
}

// InputRequest is the message payload of an input event.
type InputRequest struct {
	NodeID string          `json:"node_id"`
	Schema json.RawMessage `json:"input_schema,omitempty"`
}

// InputRequest decodes the payload of an input event.
func (e Event) InputRequest() (InputRequest, bool) {
	var r InputRequest
	ok := e.decodeInto(&r)
	return r, ok
}

// NodeID returns the node_id member of an object payload, if any.
func (e Event) NodeID() string {
	var probe struct {
		NodeID string `json:"node_id"`
	}
	if !e.decodeInto(&probe) {
		return ""
	}
	return probe.NodeID
}

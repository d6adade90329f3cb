package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flerrors "github.com/randalmurphal/flowlive/pkg/flowlive/errors"
)

func TestID_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ID
	}{
		{"string", `"abc"`, "abc"},
		{"integer", `12345`, "12345"},
		{"large integer", `9007199254740993`, "9007199254740993"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.input), &id))
			assert.Equal(t, tt.want, id)
		})
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestID_MarshalAsString(t *testing.T) {
	data, err := json.Marshal(struct {
		ID ID `json:"id"`
	}{ID: "42"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42"}`, string(data))
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"over","category":"answer","message":"hi","message_id":7,"chat_id":"c1","source":1}`))
	require.NoError(t, err)
	assert.Equal(t, TypeOver, ev.Type)
	assert.Equal(t, CategoryAnswer, ev.Category)
	assert.Equal(t, ID("7"), ev.MessageID)
	assert.Equal(t, "c1", ev.ChatID)
	assert.Equal(t, 1, ev.Source)
	assert.Equal(t, "hi", ev.Text())
}

func TestDecodeEvent_Malformed(t *testing.T) {
	_, err := DecodeEvent([]byte(`not json`))
	var protoErr *flerrors.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "malformed envelope", protoErr.Reason)

	_, err = DecodeEvent([]byte(`{"message":"x"}`))
	require.ErrorAs(t, err, &protoErr)
	assert.False(t, flerrors.IsRetryable(err))
}

func TestEvent_Payload(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    any
	}{
		{"missing", ``, nil},
		{"plain string", `"hello"`, "hello"},
		{"object", `{"msg":"a"}`, map[string]any{"msg": "a"}},
		{"string holding json", `"{\"msg\":\"b\"}"`, map[string]any{"msg": "b"}},
		{"string holding broken json", `"{\"msg\":"`, `{"msg":`},
		{"number", `3`, float64(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Message: json.RawMessage(tt.message)}
			assert.Equal(t, tt.want, ev.Payload())
		})
	}
}

func TestEvent_StreamChunk(t *testing.T) {
	ev := Event{
		Type:     TypeStream,
		Category: CategoryStream,
		Message:  json.RawMessage(`{"msg":"A","reasoning_content":"r","unique_id":"u1","output_key":"o1","node_id":"llm_1"}`),
	}
	chunk, ok := ev.StreamChunk()
	require.True(t, ok)
	assert.Equal(t, StreamChunk{Msg: "A", ReasoningContent: "r", UniqueID: "u1", OutputKey: "o1", NodeID: "llm_1"}, chunk)
	assert.Equal(t, "llm_1", ev.NodeID())

	_, ok = Event{Message: json.RawMessage(`"plain"`)}.StreamChunk()
	assert.False(t, ok)
}

func TestEvent_NodeRunFromStringEncodedPayload(t *testing.T) {
	inner := `{"unique_id":"run-1","node_id":"code_1","name":"Code","status":"success"}`
	quoted, err := json.Marshal(inner)
	require.NoError(t, err)

	run, ok := Event{Category: CategoryNodeRun, Message: quoted}.NodeRun()
	require.True(t, ok)
	assert.Equal(t, "run-1", run.UniqueID)
	assert.Equal(t, "code_1", run.NodeID)
	assert.Equal(t, "success", run.Status)
}

func TestEvent_InputRequest(t *testing.T) {
	ev := Event{Category: CategoryInput, MessageID: "m1", Message: json.RawMessage(`{"node_id":"input_1","input_schema":{"value":[]}}`)}
	req, ok := ev.InputRequest()
	require.True(t, ok)
	assert.Equal(t, "input_1", req.NodeID)
	assert.JSONEq(t, `{"value":[]}`, string(req.Schema))
}

func TestCommandConstructors(t *testing.T) {
	cmd := Input("f1", "c1", "input_1", "m9", map[string]any{"user_input": "yes"})
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"action":"input","flow_id":"f1","chat_id":"c1",
		"data":{"input_1":{"node_id":"input_1","message_id":"m9","data":{"user_input":"yes"}}}
	}`, string(data))

	data, err = json.Marshal(Stop("f1", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"stop","flow_id":"f1"}`, string(data))

	assert.Equal(t, ActionInitData, InitData("f", "c", nil).Action)
	assert.Equal(t, ActionRefreshFlow, RefreshFlow("f", "c").Action)
	assert.Equal(t, ActionCheckStatus, CheckStatus("f", "c").Action)
}

func TestClassifyClose(t *testing.T) {
	tests := []struct {
		code    int
		lock    bool
		noRetry bool
	}{
		{CloseNormal, false, false},
		{CloseGoingAway, true, false},
		{CloseNoStatus, true, true},
		{CloseAbnormal, true, false},
		{ClosePolicyViolated, true, true},
		{CloseTooBig, true, true},
	}
	for _, tt := range tests {
		info := ClassifyClose(tt.code, "bye")
		assert.Equal(t, tt.lock, info.Lock, "code %d", tt.code)
		assert.Equal(t, tt.noRetry, info.NoRetry, "code %d", tt.code)
		assert.Equal(t, "bye", info.Reason)
	}
}

func TestCloseInfo_Err(t *testing.T) {
	assert.NoError(t, ClassifyClose(CloseNormal, "").Err())

	err := ClassifyClose(ClosePolicyViolated, "policy").Err()
	assert.True(t, flerrors.IsLocked(err))

	err = ClassifyClose(CloseAbnormal, "").Err()
	assert.True(t, flerrors.IsRetryable(err))
}

func TestClosePolicy_Custom(t *testing.T) {
	p := ClosePolicy{4001}
	assert.True(t, p.Classify(4001, "").NoRetry)
	assert.False(t, p.Classify(ClosePolicyViolated, "").NoRetry)

	def := DefaultClosePolicy()
	def[0] = 1
	assert.Equal(t, CloseNoStatus, LockCloseCodes[0])
}

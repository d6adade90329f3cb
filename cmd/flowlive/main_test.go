package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowlive/pkg/flowlive"
	"github.com/randalmurphal/flowlive/pkg/flowlive/history"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

const validFlow = `{
  "id": "flow-1",
  "nodes": [
    {"id": "start", "type": "start", "ports": {}},
    {"id": "ask", "type": "input", "ports": {}},
    {"id": "end", "type": "end", "ports": {}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "ask"},
    {"id": "e2", "source": "ask", "target": "end"}
  ]
}`

const danglingFlow = `{
  "nodes": [
    {"id": "start", "type": "start", "ports": {}},
    {"id": "ask", "type": "input", "ports": {}},
    {"id": "orphan", "type": "output", "ports": {}},
    {"id": "end", "type": "end", "ports": {}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "ask"},
    {"id": "e2", "source": "ask", "target": "end"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate_OK(t *testing.T) {
	out, err := run(t, "validate", writeFile(t, "flow.json", validFlow))
	require.NoError(t, err)
	assert.Equal(t, "ok: 3 nodes, 2 edges\n", out)
}

func TestValidate_Issues(t *testing.T) {
	out, err := run(t, "validate", writeFile(t, "flow.json", danglingFlow))
	require.ErrorIs(t, err, errInvalid)
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, out, flowlive.MsgUnconnectedNode)
	assert.Contains(t, out, "[orphan]")
	assert.Contains(t, out, "1 issue(s), 1 node(s) flagged")
}

func TestValidate_JSON(t *testing.T) {
	out, err := run(t, "validate", "--json", writeFile(t, "flow.json", danglingFlow))
	require.ErrorIs(t, err, errInvalid)

	var res flowlive.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"orphan"}, res.InvalidNodeIDs)
	assert.Equal(t, []string{flowlive.MsgUnconnectedNode}, res.Errors)
}

func TestValidate_StructuralOff(t *testing.T) {
	_, err := run(t, "validate", "--structural=false", writeFile(t, "flow.json", danglingFlow))
	assert.NoError(t, err)
}

func TestValidate_BadInput(t *testing.T) {
	_, err := run(t, "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))

	_, err = run(t, "validate", writeFile(t, "flow.json", "{not json"))
	assert.ErrorIs(t, err, flowlive.ErrInvalidDocument)
}

func TestValidate_ConfigFile(t *testing.T) {
	cfg := writeFile(t, "flowlive.yaml", "server_url: ws://localhost:7860/chat\nmax_paths: 5\n")
	_, err := run(t, "--config", cfg, "validate", writeFile(t, "flow.json", validFlow))
	assert.NoError(t, err)

	bad := writeFile(t, "bad.yaml", "server_url: ftp://nowhere\n")
	_, err = run(t, "--config", bad, "validate", writeFile(t, "flow.json", validFlow))
	assert.Error(t, err)
}

func TestHistoryCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewSQLiteStore(db)
	require.NoError(t, err)
	var msgs []transcript.Message
	for _, id := range []string{"m1", "m2", "m3"} {
		msgs = append(msgs, transcript.Message{ID: protocol.ID(id), Category: "answer", Text: "text " + id, Terminal: true})
	}
	require.NoError(t, store.Append(context.Background(), "chat-1", msgs))
	require.NoError(t, store.Close())

	out, err := run(t, "history", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "chat-1\n", out)

	out, err = run(t, "history", "show", "chat-1", "--db", db, "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "m2\t[answer]\ttext m2\nm3\t[answer]\ttext m3\nmore: --before m2\n", out)

	out, err = run(t, "history", "show", "chat-1", "--db", db, "--before", "m2")
	require.NoError(t, err)
	assert.Equal(t, "m1\t[answer]\ttext m1\n", out)

	_, err = run(t, "history", "delete", "chat-1", "--db", db)
	require.Error(t, err)

	_, err = run(t, "history", "delete", "chat-1", "--db", db, "--yes")
	require.NoError(t, err)
	out, err = run(t, "history", "list", "--db", db)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestHistory_NoDatabase(t *testing.T) {
	_, err := run(t, "history", "list")
	assert.Error(t, err)
}

func TestPrinter_TracksEntriesByID(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, nil)

	streaming := transcript.Message{ID: "s1", Category: protocol.CategoryStream, Text: "par", Key: transcript.StreamKey{UniqueID: "u1", OutputKey: "o"}}
	p.tailOf([]transcript.Message{
		{ID: "m1", Category: protocol.CategoryAnswer, Text: "one", Terminal: true},
		{ID: "m2", Category: protocol.CategoryQuestion, Text: "whole, not over"},
		streaming,
		{ID: "m3", Category: protocol.CategoryAnswer, Text: "three", Terminal: true},
	})
	assert.Equal(t, "[answer] one\n[question] whole, not over\n[answer] three\n", out.String())

	// The oldest entries were evicted and the stream finished.
	out.Reset()
	streaming.Terminal, streaming.Text = true, "partial done"
	p.tailOf([]transcript.Message{
		{ID: "m3", Category: protocol.CategoryAnswer, Text: "three", Terminal: true},
		streaming,
		{ID: "m4", Category: protocol.CategoryAnswer, Text: "four", Terminal: true},
	})
	assert.Equal(t, "[stream] partial done\n[answer] four\n", out.String())

	out.Reset()
	p.dumpOf([]transcript.Message{{ID: "h1", Category: protocol.CategoryAnswer, Text: "old", HistoryOnly: true, Terminal: true}})
	p.tailOf([]transcript.Message{{ID: "h1", Category: protocol.CategoryAnswer, Text: "old", HistoryOnly: true, Terminal: true}})
	assert.Equal(t, "[answer] old\n", out.String())
}

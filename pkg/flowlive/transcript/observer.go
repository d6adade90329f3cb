package transcript

import (
	"encoding/json"

	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

// InputRequest tells the input collaborator that a node is waiting for the
// user. Answers must echo NodeID and MessageID.
type InputRequest struct {
	ChatID    string          `json:"chat_id,omitempty"`
	NodeID    string          `json:"node_id"`
	MessageID protocol.ID     `json:"message_id,omitempty"`
	Category  string          `json:"category"`
	Schema    json.RawMessage `json:"input_schema,omitempty"`
}

// Observer receives the out-of-band signals produced while folding. Calls
// happen synchronously inside Fold.
type Observer interface {
	// NodeRunFinished is called when a node run ends, after its progress
	// entry has left the transcript.
	NodeRunFinished(run protocol.NodeRun)

	// InputRequested is called when the run waits for user input.
	InputRequested(req InputRequest)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	OnNodeRunFinished func(run protocol.NodeRun)
	OnInputRequested  func(req InputRequest)
}

// NodeRunFinished implements Observer.
func (o ObserverFuncs) NodeRunFinished(run protocol.NodeRun) {
	if o.OnNodeRunFinished != nil {
		o.OnNodeRunFinished(run)
	}
}

// InputRequested implements Observer.
func (o ObserverFuncs) InputRequested(req InputRequest) {
	if o.OnInputRequested != nil {
		o.OnInputRequested(req)
	}
}

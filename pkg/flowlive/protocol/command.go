package protocol

// Command actions.
const (
	ActionInput       = "input"
	ActionInitData    = "init_data"
	ActionStop        = "stop"
	ActionRefreshFlow = "refresh_flow"
	ActionCheckStatus = "check_status"
)

// Command is one outbound frame.
type Command struct {
	Action string         `json:"action"`
	FlowID string         `json:"flow_id"`
	ChatID string         `json:"chat_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// InitData starts (or resumes) a run for chatID. data carries per-node
// initial values keyed by node id and may be nil.
func InitData(flowID, chatID string, data map[string]any) Command {
	return Command{Action: ActionInitData, FlowID: flowID, ChatID: chatID, Data: data}
}

// Input answers a pending input request. The node id and message id of the
// request are echoed back so the server can match the answer.
func Input(flowID, chatID, nodeID string, messageID ID, values map[string]any) Command {
	if values == nil {
		values = map[string]any{}
	}
	return Command{
		Action: ActionInput,
		FlowID: flowID,
		ChatID: chatID,
		Data: map[string]any{
			nodeID: map[string]any{
				"node_id":    nodeID,
				"message_id": messageID.String(),
				"data":       values,
			},
		},
	}
}

// Stop asks the server to abort the current run.
func Stop(flowID, chatID string) Command {
	return Command{Action: ActionStop, FlowID: flowID, ChatID: chatID}
}

// RefreshFlow asks the server to reload the flow definition.
func RefreshFlow(flowID, chatID string) Command {
	return Command{Action: ActionRefreshFlow, FlowID: flowID, ChatID: chatID}
}

// CheckStatus asks the server to report the run status.
func CheckStatus(flowID, chatID string) Command {
	return Command{Action: ActionCheckStatus, FlowID: flowID, ChatID: chatID}
}

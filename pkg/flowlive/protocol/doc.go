// Package protocol defines the JSON envelopes exchanged with a flow run
// server over the live connection.
//
// Inbound frames decode into Event. The Type and Category fields drive the
// transcript fold; everything else is category-specific and stays opaque
// until a typed view (StreamChunk, NodeRun, InputRequest) is requested.
//
// Outbound frames are Command values built by the constructors in this
// package:
//
//	cmd := protocol.InitData(flowID, chatID, nil)
//	err := manager.Send(ctx, cmd)
//
// Close frames are interpreted by a ClosePolicy. Every abnormal close locks
// user input; codes in the policy's set additionally forbid an automatic
// reconnect.
package protocol

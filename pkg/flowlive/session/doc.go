// Package session ties a connection, a reconciler, a history store and an
// event bus into one live chat view.
//
// A Session follows one chat at a time. Switch moves it to another chat:
// the old connection is closed, the transcript and input state are reset
// and the new run is started with init_data. Inbound events for any other
// chat are ignored. Terminal messages are written to the history store so
// LoadOlder can page back through them later.
//
// Sessions never reconnect on their own. After an abnormal close input
// stays locked until Reconnect succeeds; closes under the lock policy
// refuse Reconnect altogether.
package session

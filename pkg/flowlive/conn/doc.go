/*
Package conn manages the duplex connection to a flow run server.

A Manager owns at most one live WebSocket. Open is idempotent: callers
that arrive while a dial is in flight share it, and callers that arrive
while open get the existing Session. Inbound frames are decoded on a
single read goroutine and handed to the Handler in arrival order.

	m := conn.New(
	    conn.WithHandler(func(ev protocol.Event) { ... }),
	    conn.WithCloseHandler(func(info protocol.CloseInfo) { ... }),
	)
	if _, err := m.Open(ctx, "wss://runs.example.com/chat/flow-1"); err != nil {
	    return err
	}
	defer m.Close()
	err := m.Send(ctx, protocol.InitData(flowID, chatID, nil))

The Manager never reconnects on its own. A remote close moves it to
StateClosed and reports a protocol.CloseInfo; whether to reconnect is
the caller's decision.

Handlers run on the read goroutine, one event at a time. A Handler may call
Close; it then returns without waiting for the read loop.
*/
package conn

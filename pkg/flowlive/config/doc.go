/*
Package config loads flowlive settings from YAML or JSON.

# Accessors

Config wraps a decoded document and extracts typed values with defaults.
Keys may be dotted to reach into nested sections:

	cfg, err := config.FromFile("flowlive.yaml")
	timeout := cfg.Duration("connection.write_timeout", 10*time.Second)
	codes := cfg.IntSlice("connection.lock_close_codes", nil)

A missing key, or a value of the wrong shape, yields the default.

# Settings

Settings is the typed view used by the CLI and by chat sessions. Load
reads a file, fills defaults and validates the result:

	s, err := config.Load("flowlive.yaml")
	if err != nil {
	    return err // *ValidationError lists every bad field
	}

Recognized keys:

	server_url                 websocket endpoint (required)
	flow_id                    flow to run
	structural                 run structural validation
	max_paths                  traversal bound for structural validation
	form_concurrency           concurrent form validators (0 = unbounded)
	connection.handshake_timeout
	connection.write_timeout
	connection.read_limit      max inbound frame size in bytes
	connection.lock_close_codes
	history.db                 sqlite file for the history cache ("" = memory)
	history.page_size
	history.max_transcript     transcript cap (0 = unbounded)
	reconnect.max_attempts
	reconnect.initial_backoff
	reconnect.max_backoff
	reconnect.backoff_factor
	reconnect.jitter

Config values are safe for concurrent reads.
*/
package config

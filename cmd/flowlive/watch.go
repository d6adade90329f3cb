package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowlive/pkg/flowlive"
	"github.com/randalmurphal/flowlive/pkg/flowlive/event"
	"github.com/randalmurphal/flowlive/pkg/flowlive/history"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
	"github.com/randalmurphal/flowlive/pkg/flowlive/session"
	"github.com/randalmurphal/flowlive/pkg/flowlive/transcript"
)

type watchFlags struct {
	url      string
	flowID   string
	flowFile string
	db       string
}

func newWatchCmd(g *globals) *cobra.Command {
	f := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch <chat-id>",
		Short: "Follow a live chat run and answer its input requests",
		Long: `Connects to the run server, starts the chat and prints the transcript as
it changes. Lines typed on stdin answer pending input requests. Commands:

  /stop     abort the run
  /status   ask the server for the run status
  /refresh  reload the flow definition
  /older    load older messages from history
  /retry    reconnect after the server closed the connection`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, g, f, args[0])
		},
	}
	cmd.Flags().StringVar(&f.url, "url", "", "run server URL (overrides server_url)")
	cmd.Flags().StringVar(&f.flowID, "flow", "", "flow id (overrides flow_id)")
	cmd.Flags().StringVar(&f.flowFile, "flow-file", "", "flow document; events for unknown nodes are ignored")
	cmd.Flags().StringVar(&f.db, "db", "", "SQLite history cache (overrides history.db)")
	return cmd
}

func runWatch(cmd *cobra.Command, g *globals, f *watchFlags, chatID string) error {
	settings, err := g.settings()
	if err != nil {
		return err
	}
	if f.url != "" {
		settings.ServerURL = f.url
	}
	if f.flowID != "" {
		settings.FlowID = f.flowID
	}
	if f.db != "" {
		settings.HistoryDB = f.db
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := g.logger(cmd.ErrOrStderr())
	bus := event.NewBus(event.DefaultBusConfig)
	defer bus.Close()

	opts := []session.Option{
		session.WithBus(bus),
		session.WithLogger(logger),
		session.WithMetrics(g.metrics()),
	}
	if settings.HistoryDB != "" {
		store, err := history.NewSQLiteStore(settings.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, session.WithHistory(store))
	}
	if f.flowFile != "" {
		data, err := os.ReadFile(f.flowFile)
		if err != nil {
			return fmt.Errorf("read flow: %w", err)
		}
		graph, err := flowlive.ParseDocument(data)
		if err != nil {
			return err
		}
		opts = append(opts, session.WithGraph(graph))
	}

	s := session.New(session.ConfigFrom(settings), opts...)
	defer s.Close()

	p := newPrinter(cmd.OutOrStdout(), s)
	p.subscribe(bus)

	if err := s.Switch(ctx, chatID); err != nil {
		return err
	}

	lines := make(chan string)
	go scanLines(cmd.InOrStdin(), lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			if err := handleLine(ctx, s, p, line); err != nil {
				p.printf("! %v\n", err)
			}
		}
	}
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func handleLine(ctx context.Context, s *session.Session, p *printer, line string) error {
	switch strings.TrimSpace(line) {
	case "":
		return nil
	case "/stop":
		return s.Stop(ctx)
	case "/status":
		return s.CheckStatus(ctx)
	case "/refresh":
		return s.RefreshFlow(ctx)
	case "/retry":
		return s.Reconnect(ctx)
	case "/older":
		n, err := s.LoadOlder(ctx, 0)
		if err != nil {
			return err
		}
		p.printf("loaded %d older message(s)\n", n)
		p.dump()
		return nil
	}
	err := s.SubmitInput(ctx, map[string]any{"input": line})
	if errors.Is(err, session.ErrInputLocked) {
		return errors.New("no input is pending")
	}
	return err
}

// printer writes transcript and input changes as they are published.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	s       *session.Session
	printed map[protocol.ID]bool
}

func newPrinter(w io.Writer, s *session.Session) *printer {
	return &printer{w: w, s: s, printed: make(map[protocol.ID]bool)}
}

func (p *printer) subscribe(bus event.Bus) {
	event.TranscriptTopic.Subscribe(bus, func(_ context.Context, c event.TranscriptChanged, _ event.Metadata) error {
		if c.Prepended > 0 {
			return nil
		}
		p.tail()
		return nil
	})
	event.NodeStatusTopic.Subscribe(bus, func(_ context.Context, st event.NodeStatus, _ event.Metadata) error {
		p.printf("  node %s %s %s\n", st.NodeID, st.Status, st.Reason)
		return nil
	})
	event.InputStateTopic.Subscribe(bus, func(_ context.Context, in event.InputState, _ event.Metadata) error {
		if !in.Locked {
			p.printf("? input requested by %s\n", in.NodeID)
		}
		return nil
	})
	event.InputLockTopic.Subscribe(bus, func(_ context.Context, l event.InputLock, _ event.Metadata) error {
		hint := "type /retry to reconnect"
		if l.NoRetry {
			hint = "the server refused further input"
		}
		p.printf("x connection closed (%d %s): %s\n", l.Code, l.Reason, hint)
		return nil
	})
}

func (p *printer) tail() { p.tailOf(p.s.Transcript()) }

// tailOf prints the entries of msgs not printed before. Streams and node
// runs wait until they are terminal; everything else prints on arrival.
func (p *printer) tailOf(msgs []transcript.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if p.printed[m.ID] || (!m.Terminal && !m.Key.IsZero()) {
			continue
		}
		p.printed[m.ID] = true
		fmt.Fprintf(p.w, "[%s] %s\n", m.Category, m.Text)
	}
}

func (p *printer) dump() { p.dumpOf(p.s.Transcript()) }

// dumpOf prints every entry of msgs again.
func (p *printer) dumpOf(msgs []transcript.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		fmt.Fprintf(p.w, "[%s] %s\n", m.Category, m.Text)
		p.printed[m.ID] = true
	}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowlive/pkg/flowlive/history"
	"github.com/randalmurphal/flowlive/pkg/flowlive/protocol"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the local transcript history cache",
	}
	cmd.PersistentFlags().StringVar(&db, "db", "", "SQLite history cache (overrides history.db)")

	open := func() (*history.SQLiteStore, error) {
		settings, err := g.settings()
		if err != nil {
			return nil, err
		}
		path := settings.HistoryDB
		if db != "" {
			path = db
		}
		if path == "" {
			return nil, fmt.Errorf("no history database: set history.db or pass --db")
		}
		return history.NewSQLiteStore(path)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List chats with stored messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			chats, err := store.Chats(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range chats {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	var limit int
	var before string
	show := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print one page of a chat, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			page, err := store.Page(cmd.Context(), history.PageRequest{
				ChatID:   args[0],
				BeforeID: protocol.ID(before),
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, m := range page.Messages {
				fmt.Fprintf(w, "%s\t[%s]\t%s\n", m.ID, m.Category, m.Text)
			}
			if page.HasMore && len(page.Messages) > 0 {
				fmt.Fprintf(w, "more: --before %s\n", page.Messages[0].ID)
			}
			return nil
		},
	}
	show.Flags().IntVarP(&limit, "limit", "n", history.DefaultPageSize, "page size")
	show.Flags().StringVar(&before, "before", "", "only messages older than this id")

	var yes bool
	del := &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Remove every stored message of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete chat %s without --yes", args[0])
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteChat(cmd.Context(), args[0])
		},
	}
	del.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	cmd.AddCommand(list, show, del)
	return cmd
}

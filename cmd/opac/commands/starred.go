package commands

import (
	"errors"
	"fmt"
	"time"

	"opacbridge/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(starCmd)
	rootCmd.AddCommand(unstarCmd)
	rootCmd.AddCommand(starredCmd)
	rootCmd.AddCommand(historyCmd)
}

var starCmd = &cobra.Command{
	Use:   "star <id>",
	Short: "Remembers an item.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := env.library()
		if err != nil {
			return err
		}
		a, err := env.adapter(lib)
		if err != nil {
			return err
		}
		item, err := a.Detail(ctx, args[0])
		if err != nil {
			return err
		}
		db, err := env.store(ctx)
		if err != nil {
			return err
		}
		err = db.Star(ctx, lib.Ident, item.ID, item.Title, item.MediaType)
		if err != nil {
			return err
		}
		fmt.Printf("starred '%s'\n", item.Title)
		return nil
	},
}

var unstarCmd = &cobra.Command{
	Use:   "unstar <id | title>",
	Short: "Forgets a starred item.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := env.library()
		if err != nil {
			return err
		}
		db, err := env.store(ctx)
		if err != nil {
			return err
		}

		itemID := args[0]
		starred, err := db.IsStarred(ctx, lib.Ident, itemID)
		if err != nil {
			return err
		}
		if !starred {
			found, err := db.FindStarred(ctx, lib.Ident, args[0])
			if errors.Is(err, store.ErrNoMatch) {
				return fmt.Errorf("'%s' is not starred", args[0])
			}
			if err != nil {
				return err
			}
			itemID = found.ItemID
		}
		return db.Unstar(ctx, lib.Ident, itemID)
	},
}

var starredCmd = &cobra.Command{
	Use:   "starred",
	Short: "Lists the starred items of the selected library.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := env.library()
		if err != nil {
			return err
		}
		db, err := env.store(ctx)
		if err != nil {
			return err
		}
		items, err := db.StarredItems(ctx, lib.Ident)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Title", "Media", "Starred"})
		for _, item := range items {
			t.AppendRow(table.Row{item.ItemID, item.Title, item.MediaType.String(), item.CreatedAt.Format(time.DateOnly)})
		}
		t.Render()
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists the lending history recorded by the account command.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, err := env.library()
		if err != nil {
			return err
		}
		db, err := env.store(ctx)
		if err != nil {
			return err
		}
		items, err := db.History(ctx, lib.Ident)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Title", "Author", "From", "Last seen", "Due", "Renewals", "Lent"})
		for _, item := range items {
			t.AppendRow(table.Row{
				item.Title,
				item.Author,
				formatDate(item.FirstDate),
				formatDate(item.LastDate),
				formatDate(item.Deadline),
				item.Renewals,
				yesNo(item.Lending),
			})
		}
		t.Render()
		return nil
	},
}

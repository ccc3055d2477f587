package commands

import (
	"fmt"

	"opacbridge/internal/opac"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(detailCmd)
}

var detailCmd = &cobra.Command{
	Use:   "detail <id>",
	Short: "Shows the details and copies of an item.",
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
		printDetail(a, item)

		db, err := env.store(ctx)
		if err != nil {
			return err
		}
		starred, err := db.IsStarred(ctx, lib.Ident, item.ID)
		if err != nil {
			return err
		}
		if starred {
			fmt.Println("starred")
		}
		return nil
	},
}

func printDetail(a opac.Adapter, item opac.DetailedItem) {
	fmt.Println(item.Title)
	if item.MediaType != opac.MediaNone {
		fmt.Println(item.MediaType.String())
	}
	if url := a.ShareURL(item.ID, item.Title); url != "" {
		fmt.Println(url)
	}

	details := newTable()
	for _, d := range item.Details {
		details.AppendRow(table.Row{d.Label, d.Value})
	}
	details.Render()

	if len(item.Copies) == 0 {
		return
	}
	copies := newTable()
	copies.AppendHeader(table.Row{"Branch", "Department", "Location", "Shelfmark", "Status", "Return", "Reservations", "Reservable"})
	for _, c := range item.Copies {
		copies.AppendRow(table.Row{
			c.Branch,
			c.Department,
			c.Location,
			c.Shelfmark,
			c.Status,
			formatDate(c.ReturnDate),
			c.Reservations,
			yesNo(c.Reservable()),
		})
	}
	copies.Render()
}

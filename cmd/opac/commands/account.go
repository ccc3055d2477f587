package commands

import (
	"context"
	"fmt"
	"strings"

	"opacbridge/internal/opac"
	"opacbridge/internal/store"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks the credentials of the configured account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := env.library()
		if err != nil {
			return err
		}
		a, err := env.adapter(lib)
		if err != nil {
			return err
		}
		acc, err := env.account(lib)
		if err != nil {
			return err
		}
		err = a.CheckAccount(cmd.Context(), acc)
		if err != nil {
			return err
		}
		fmt.Println("login ok")
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Shows the lent and reserved items of the configured account and records them in the history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lib, a, acc, err := openAccount()
		if err != nil {
			return err
		}
		data, err := a.Account(ctx, acc)
		if err != nil {
			return err
		}
		printAccount(data)

		db, err := env.store(ctx)
		if err != nil {
			return err
		}
		changes, err := db.UpdateLending(ctx, lib.Ident, data.Lent)
		if err != nil {
			return err
		}
		if changes.Inserted > 0 || changes.Ended > 0 {
			fmt.Printf("history: %d new, %d returned\n", changes.Inserted, changes.Ended)
		}
		return nil
	},
}

func openAccount() (opac.Library, opac.Adapter, opac.Account, error) {
	lib, err := env.library()
	if err != nil {
		return opac.Library{}, nil, opac.Account{}, err
	}
	a, err := env.adapter(lib)
	if err != nil {
		return opac.Library{}, nil, opac.Account{}, err
	}
	acc, err := env.account(lib)
	if err != nil {
		return opac.Library{}, nil, opac.Account{}, err
	}
	return lib, a, acc, nil
}

func printAccount(data opac.AccountData) {
	if data.Warning != "" {
		fmt.Println(data.Warning)
	}
	if data.PendingFees != "" {
		fmt.Printf("fees: %s\n", data.PendingFees)
	}
	if !data.ValidUntil.IsZero() {
		fmt.Printf("valid until: %s\n", formatDate(data.ValidUntil))
	}

	lent := newTable()
	lent.SetTitle("Lent")
	lent.AppendHeader(table.Row{"ID", "Title", "Author", "Due", "Branch", "Status", "Renewable"})
	for _, item := range data.Lent {
		renewable := yesNo(item.Renewable())
		if !item.Renewable() {
			renewable = item.NotRenewableReason
		}
		lent.AppendRow(table.Row{item.ItemID, item.Title, item.Author, formatDate(item.DueDate), item.Branch, item.Status, renewable})
	}
	lent.Render()

	reserved := newTable()
	reserved.SetTitle("Reserved")
	reserved.AppendHeader(table.Row{"ID", "Title", "Author", "Ready", "Expires", "Branch", "Status"})
	for _, item := range data.Reserved {
		ready := yesNo(item.Ready)
		if !item.ReadyDate.IsZero() {
			ready = formatDate(item.ReadyDate)
		}
		reserved.AppendRow(table.Row{item.ItemID, item.Title, item.Author, ready, formatDate(item.ExpirationDate), item.Branch, item.Status})
	}
	reserved.Render()
}

// findItem looks an account item up by id, then by the most similar title.
func findItem[T any](items []T, query string, accountItem func(T) opac.AccountItem) (T, error) {
	for _, item := range items {
		if accountItem(item).ItemID == query {
			return item, nil
		}
	}

	var best T
	var bestSimilarity float64
	for _, item := range items {
		similarity := matchr.JaroWinkler(strings.ToLower(query), strings.ToLower(accountItem(item).Title), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = item
		}
	}
	if bestSimilarity < store.MinTitleSimilarity {
		var zero T
		return zero, fmt.Errorf("no item matches '%s'", query)
	}
	return best, nil
}

func fetchAccount(ctx context.Context, a opac.Adapter, acc opac.Account) (opac.AccountData, error) {
	data, err := a.Account(ctx, acc)
	if err != nil {
		return opac.AccountData{}, err
	}
	if data.Warning != "" {
		fmt.Println(data.Warning)
	}
	return data, nil
}

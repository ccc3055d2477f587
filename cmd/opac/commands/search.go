package commands

import (
	"context"
	"fmt"

	"opacbridge/internal/opac"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchPage    *int
	fieldsRefresh *bool
)

func init() {
	searchPage = searchCmd.Flags().Int("page", 1, "The page of results to show.")
	fieldsRefresh = fieldsCmd.Flags().Bool("refresh", false, "Ask the library again instead of using the cached fields.")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fieldsCmd)
}

// searchFields returns the fields of lib from the store, asking the
// adapter and caching its answer when they are missing or stale.
func searchFields(ctx context.Context, a opac.Adapter, lib opac.Library, refresh bool) ([]opac.SearchField, error) {
	db, err := env.store(ctx)
	if err != nil {
		return nil, err
	}
	if !refresh {
		fields, ok, err := db.SearchFields(ctx, lib.Ident, env.cfg.Language)
		if err != nil {
			return nil, err
		}
		if ok {
			return fields, nil
		}
	}

	fields, err := a.SearchFields(ctx)
	if err != nil {
		return nil, err
	}
	err = db.SaveSearchFields(ctx, lib.Ident, env.cfg.Language, fields)
	if err != nil {
		env.tel.ReportWarning("fields.cache", err, "library", lib.Ident)
	}
	return fields, nil
}

var fieldsCmd = &cobra.Command{
	Use:   "fields [--refresh]",
	Short: "Lists the search fields of the selected library.",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := env.library()
		if err != nil {
			return err
		}
		a, err := env.adapter(lib)
		if err != nil {
			return err
		}
		fields, err := searchFields(cmd.Context(), a, lib, *fieldsRefresh)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "Type", "Meaning", "Advanced", "Options"})
		for _, f := range fields {
			options := ""
			for i, o := range f.Options {
				if i > 0 {
					options += ", "
				}
				options += fmt.Sprintf("%s=%s", o.Key, o.Value)
			}
			t.AppendRow(table.Row{f.ID, f.DisplayName, f.Kind.String(), string(f.Meaning), yesNo(f.Advanced), options})
		}
		t.Render()
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [--page <n>] <field=value | free text>...",
	Short: "Searches the catalog of the selected library.",
	Args:  cobra.MinimumNArgs(1),
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
		fields, err := searchFields(ctx, a, lib, false)
		if err != nil {
			return err
		}
		queries, err := parseQueries(fields, args)
		if err != nil {
			return err
		}

		res, err := a.Search(ctx, queries)
		if err != nil {
			return err
		}
		if *searchPage > 1 {
			res, err = a.FetchPage(ctx, *searchPage)
			if err != nil {
				return err
			}
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Title", "Author", "Media", "Availability"})
		for _, r := range res.Results {
			t.AppendRow(table.Row{r.ID, r.Title, r.Author, r.MediaType.String(), r.Availability.String()})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("page %d", res.Page), fmt.Sprintf("%d results", res.TotalCount)})
		t.Render()
		return nil
	},
}

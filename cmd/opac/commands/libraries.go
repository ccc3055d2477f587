package commands

import (
	"fmt"
	"strings"

	"opacbridge/internal/backends"
	"opacbridge/internal/opac"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(librariesCmd)
	rootCmd.AddCommand(languagesCmd)
}

var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "Lists the configured libraries.",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := newTable()
		t.AppendHeader(table.Row{"Ident", "API", "Name", "Account", "Capabilities"})
		for _, lib := range env.cfg.Libraries {
			var capabilities string
			a, err := env.adapter(lib)
			if err == nil {
				capabilities = formatCapabilities(a.Capabilities())
			} else {
				capabilities = err.Error()
			}
			t.AppendRow(table.Row{lib.Ident, lib.API, lib.DisplayName(), yesNo(lib.Account), capabilities})
		}
		t.Render()
		fmt.Printf("supported apis: %s\n", strings.Join(backends.APIs(), ", "))
		return nil
	},
}

var capabilityNames = []struct {
	flag opac.Capability
	name string
}{
	{opac.CapAccount, "account"},
	{opac.CapReservation, "reservation"},
	{opac.CapCancel, "cancel"},
	{opac.CapRenewAll, "renew all"},
	{opac.CapEndlessScrolling, "endless scrolling"},
	{opac.CapWarnReservationFees, "reservation fees"},
}

func formatCapabilities(c opac.Capability) string {
	var names []string
	for _, n := range capabilityNames {
		if c.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ", ")
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Lists the interface languages the selected library offers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := env.library()
		if err != nil {
			return err
		}
		a, err := env.adapter(lib)
		if err != nil {
			return err
		}
		languages, err := a.Languages(cmd.Context())
		if err != nil {
			return err
		}
		if len(languages) == 0 {
			fmt.Println("the library does not offer a language choice")
			return nil
		}
		fmt.Println(strings.Join(languages, "\n"))
		return nil
	},
}

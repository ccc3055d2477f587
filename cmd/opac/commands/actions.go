package commands

import (
	"fmt"
	"os"

	"opacbridge/internal/opac"

	"github.com/spf13/cobra"
)

var pickFlag = new(string)

func init() {
	for _, cmd := range []*cobra.Command{reserveCmd, renewCmd, renewAllCmd, cancelCmd} {
		cmd.Flags().StringVar(pickFlag, "pick", "", "The label of the option to choose when the library asks, skips the prompt.")
		rootCmd.AddCommand(cmd)
	}
}

func choose() chooser {
	if *pickFlag != "" {
		return pickByLabel(*pickFlag)
	}
	return promptChoice(stdin, os.Stderr)
}

// runFlow drives flow and prints its result, an error result fails the
// command.
func runFlow(cmd *cobra.Command, flow *opac.Flow) error {
	res, err := drive(cmd.Context(), flow, choose())
	if err != nil {
		return err
	}
	printResult(os.Stdout, res)
	if res.Status == opac.StatusError {
		return fmt.Errorf("%s failed", res.Kind)
	}
	return nil
}

var reserveCmd = &cobra.Command{
	Use:   "reserve [--pick <label>] <id>",
	Short: "Reserves an item.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, acc, err := openAccount()
		if err != nil {
			return err
		}
		item, err := a.Detail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if a.Capabilities().Has(opac.CapWarnReservationFees) {
			os.Stderr.WriteString("this library may charge a fee for reservations\n")
		}
		return runFlow(cmd, opac.Reservation(a, item, acc, env.strings))
	},
}

var renewCmd = &cobra.Command{
	Use:   "renew [--pick <label>] <id | title>",
	Short: "Renews a lent item.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, acc, err := openAccount()
		if err != nil {
			return err
		}
		data, err := fetchAccount(cmd.Context(), a, acc)
		if err != nil {
			return err
		}
		item, err := findItem(data.Lent, args[0], func(l opac.LentItem) opac.AccountItem { return l.AccountItem })
		if err != nil {
			return err
		}
		return runFlow(cmd, opac.Renewal(a, item, acc, env.strings))
	},
}

var renewAllCmd = &cobra.Command{
	Use:   "renewall [--pick <label>]",
	Short: "Renews every renewable lent item.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, acc, err := openAccount()
		if err != nil {
			return err
		}
		return runFlow(cmd, opac.RenewalAll(a, acc, env.strings))
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [--pick <label>] <id | title>",
	Short: "Cancels a reservation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, acc, err := openAccount()
		if err != nil {
			return err
		}
		data, err := fetchAccount(cmd.Context(), a, acc)
		if err != nil {
			return err
		}
		item, err := findItem(data.Reserved, args[0], func(r opac.ReservedItem) opac.AccountItem { return r.AccountItem })
		if err != nil {
			return err
		}
		return runFlow(cmd, opac.Cancellation(a, item, acc, env.strings))
	},
}

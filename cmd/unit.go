package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stasyk411/gbr/app"
	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Manage response units",
}

var (
	unitContact string
	unitPhone   string
	unitNotes   string
	unitStatus  string
)

var unitAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			u, err := e.Units.CreateUnit(ctx, dispatch.UnitInput{
				Name: args[0], ContactHandle: unitContact, Phone: unitPhone, Notes: unitNotes,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "unit %d %q registered\n", u.ID, u.Name)
			return err
		})
	},
}

var unitLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List units",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var f store.UnitFilter
		if unitStatus != "" {
			st, err := model.ParseUnitStatus(unitStatus)
			if err != nil {
				return err
			}
			f.Status = &st
		}
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			units, err := e.Units.ListUnits(ctx, f)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCONTACT\tPHONE")
			for _, u := range units {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Status, u.ContactHandle, u.Phone)
			}
			return tw.Flush()
		})
	},
}

var unitStatusCmd = &cobra.Command{
	Use:   "status <id> <free|busy|arrived>",
	Short: "Set a unit status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		st, err := model.ParseUnitStatus(args[1])
		if err != nil {
			return err
		}
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			u, err := e.Units.SetUnitStatus(ctx, id, st)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "unit %d is %s\n", u.ID, u.Status)
			return err
		})
	},
}

var unitBindCmd = &cobra.Command{
	Use:   "bind <id> <contact-handle>",
	Short: "Bind a crew contact handle to a unit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			u, err := e.Units.BindContactHandle(ctx, id, args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "unit %d bound to %s\n", u.ID, u.ContactHandle)
			return err
		})
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Validationf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	unitAddCmd.Flags().StringVar(&unitContact, "contact", "", "crew contact handle")
	unitAddCmd.Flags().StringVar(&unitPhone, "phone", "", "crew phone number")
	unitAddCmd.Flags().StringVar(&unitNotes, "notes", "", "free-form notes")
	unitLsCmd.Flags().StringVar(&unitStatus, "status", "", "only units in this status")
	unitCmd.AddCommand(unitAddCmd, unitLsCmd, unitStatusCmd, unitBindCmd)
	rootCmd.AddCommand(unitCmd)
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stasyk411/gbr/app"
	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/notify"
	"github.com/stasyk411/gbr/infra/mqtt"
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Manage calls",
}

var (
	callDescription string
	callLat         float64
	callLon         float64
	callStatuses    []string
	callUnit        int64
	callStats       bool
	callNotify      bool
)

var callAddCmd = &cobra.Command{
	Use:   "add <object-name> <address>",
	Short: "Record a pending call",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := dispatch.CallInput{ObjectName: args[0], Address: args[1], Description: callDescription}
		if cmd.Flags().Changed("lat") {
			in.Latitude = model.Ptr(callLat)
		}
		if cmd.Flags().Changed("lon") {
			in.Longitude = model.Ptr(callLon)
		}
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			c, err := e.Calls.CreateCall(ctx, in)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "call %d %q at %q recorded\n", c.ID, c.ObjectName, c.Address)
			return err
		})
	},
}

var callLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var statuses []model.CallStatus
		for _, raw := range callStatuses {
			st, err := model.ParseCallStatus(raw)
			if err != nil {
				return err
			}
			statuses = append(statuses, st)
		}
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			if callStats {
				st, err := dispatch.Snapshot(ctx, e.Store)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			var calls []model.Call
			var err error
			switch {
			case callUnit != 0:
				calls, err = e.Calls.GetCallsByUnit(ctx, callUnit)
			case len(statuses) > 0:
				calls, err = e.Calls.GetCallsByStatus(ctx, statuses...)
			default:
				calls, err = e.Calls.GetAllCalls(ctx)
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOBJECT\tADDRESS\tSTATUS\tUNIT\tCREATED")
			for _, c := range calls {
				unit := "-"
				if c.UnitID != nil {
					unit = fmt.Sprint(*c.UnitID)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.ObjectName, c.Address, c.Status, unit,
					c.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		})
	},
}

var callAssignCmd = &cobra.Command{
	Use:   "assign <call-id> <unit-id>",
	Short: "Assign a call to a unit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		callID, err := parseID(args[0])
		if err != nil {
			return err
		}
		unitID, err := parseID(args[1])
		if err != nil {
			return err
		}
		var notifier notify.Notifier
		if callNotify {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.MQTT.Enabled() {
				return fmt.Errorf("--notify needs mqtt.broker to be configured")
			}
			client, err := mqtt.NewClient(cfg.MQTT)
			if err != nil {
				return fmt.Errorf("mqtt client: %w", err)
			}
			defer client.Disconnect()
			n, err := mqtt.NewNotifier(client)
			if err != nil {
				return err
			}
			notifier = n
		}
		return withEngine(cmd, notifier, func(ctx context.Context, e *app.Engine) error {
			c, err := e.Coordinator.AssignAndNotify(ctx, callID, unitID)
			if err != nil && !errors.Is(err, dispatch.ErrNotification) {
				return err
			}
			if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "call %d assigned to unit %d\n", c.ID, unitID); werr != nil {
				return werr
			}
			return err
		})
	},
}

var callStatusCmd = &cobra.Command{
	Use:   "status <id> <pending|assigned|in_progress|completed>",
	Short: "Set a call status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		st, err := model.ParseCallStatus(args[1])
		if err != nil {
			return err
		}
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			c, err := e.Calls.SetCallStatus(ctx, id, st)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "call %d is %s\n", c.ID, c.Status)
			return err
		})
	},
}

func init() {
	callAddCmd.Flags().StringVar(&callDescription, "description", "", "call description")
	callAddCmd.Flags().Float64Var(&callLat, "lat", 0, "latitude")
	callAddCmd.Flags().Float64Var(&callLon, "lon", 0, "longitude")
	callLsCmd.Flags().StringSliceVar(&callStatuses, "status", nil, "only calls in these statuses")
	callLsCmd.Flags().Int64Var(&callUnit, "unit", 0, "only calls of this unit")
	callLsCmd.Flags().BoolVar(&callStats, "stats", false, "print counts by status instead")
	callAssignCmd.Flags().BoolVar(&callNotify, "notify", false, "alert the crew over MQTT")
	callCmd.AddCommand(callAddCmd, callLsCmd, callAssignCmd, callStatusCmd)
	rootCmd.AddCommand(callCmd)
}

package cmd

import (
	"context"
	"fmt"

	fake "github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/stasyk411/gbr/app"
	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/model"
)

var (
	seedUnits int
	seedCalls int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the store with demo units and calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedValue != 0 {
			fake.Seed(seedValue)
		}
		return withEngine(cmd, nil, func(ctx context.Context, e *app.Engine) error {
			return seed(ctx, e, seedUnits, seedCalls, cmd)
		})
	},
}

func seed(ctx context.Context, e *app.Engine, units, calls int, cmd *cobra.Command) error {
	for i := 0; i < units; i++ {
		u, err := e.Units.CreateUnit(ctx, dispatch.UnitInput{
			Name:          fmt.Sprintf("ГБР-%d %s", i+1, fake.LastName()),
			ContactHandle: fmt.Sprint(fake.Number(100000000, 999999999)),
			Phone:         fake.Phone(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unit %d %q\n", u.ID, u.Name)
	}
	for i := 0; i < calls; i++ {
		in := dispatch.CallInput{
			ObjectName:  fake.Company(),
			Address:     fake.Street(),
			Description: fake.Sentence(6),
		}
		// Roughly half of the calls carry coordinates.
		if fake.Bool() {
			lat, _ := fake.LatitudeInRange(55.55, 55.90)
			lon, _ := fake.LongitudeInRange(37.35, 37.85)
			in.Latitude, in.Longitude = model.Ptr(lat), model.Ptr(lon)
		}
		c, err := e.Calls.CreateCall(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "call %d %q at %q\n", c.ID, c.ObjectName, c.Address)
	}
	return nil
}

func init() {
	seedCmd.Flags().IntVar(&seedUnits, "units", 5, "number of units")
	seedCmd.Flags().IntVar(&seedCalls, "calls", 10, "number of calls")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "random seed, 0 for a random one")
	rootCmd.AddCommand(seedCmd)
}

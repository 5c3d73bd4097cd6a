package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			plans, err := core.Checkout.Plans(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PLAN\tPRICE\tDAYS\tFEATURES")
			for _, p := range plans {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Name, p.Amount.StringFixed(2), p.Duration, strings.Join(p.Features, ", "))
			}
			return w.Flush()
		},
	}
}

func newSubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <plan>",
		Short: "Buy a subscription plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			act, err := core.Checkout.Subscribe(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subscribed to %s until %s.\n",
				act.Plan.Name, act.ValidUntil.Local().Format("2006-01-02"))
			return nil
		},
	}
}

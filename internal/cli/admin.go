package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/loandesk/loandesk/internal/admin"
)

var errAdminOnly = errors.New("admin role required")

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra only runs the nearest hook, so chain to the root one.
			if root := cmd.Root(); root.PersistentPreRunE != nil {
				if err := root.PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			sess, err := requireSession()
			if err != nil {
				return err
			}
			if !sess.IsAdmin() {
				return errAdminOnly
			}
			return nil
		},
	}
	cmd.AddCommand(
		newAdminStatsCmd(),
		newAdminUsersCmd(),
		newAdminStatusCmd(),
		newAdminPaymentCmd(),
	)
	return cmd
}

func newAdminStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show platform statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			st, err := core.Admin.Stats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Users:        %d\n", st.TotalUsers)
			fmt.Fprintf(out, "Revenue:      %s\n", st.TotalRevenue.StringFixed(2))
			fmt.Fprintf(out, "Applications: %d\n", st.TotalApplications)
			fmt.Fprintf(out, "Low balance:  %d\n", st.LowBalanceUsers)
			return nil
		},
	}
}

func newAdminUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			users, err := core.Admin.Users(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSTATUS\tBALANCE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.Status, u.Balance.StringFixed(2))
			}
			return w.Flush()
		},
	}
}

func newAdminStatusCmd() *cobra.Command {
	var status, current string

	cmd := &cobra.Command{
		Use:   "status <user-id>",
		Short: "Block or activate a user",
		Long:  "Set a user's status with --set, or flip it from --current.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if status == "" {
				_, next, err := core.Admin.Toggle(ctx, args[0], current)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s.\n", args[0], next)
				return nil
			}
			if _, err := core.Admin.SetStatus(ctx, args[0], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s.\n", args[0], status)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "set", "", "New status (active, blocked)")
	cmd.Flags().StringVar(&current, "current", "active", "Current status, flipped when --set is empty")
	return cmd
}

func newAdminPaymentCmd() *cobra.Command {
	var userID, amount, ref string

	cmd := &cobra.Command{
		Use:   "manual-payment",
		Short: "Record an offline payment for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return admin.ErrIncompleteForm
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			ack, err := core.Admin.ManualPayment(ctx, userID, value, ref)
			if err != nil {
				return err
			}
			msg := ack.Message
			if msg == "" {
				msg = "Manual payment recorded."
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount")
	cmd.Flags().StringVar(&ref, "ref", "", "Transaction reference")
	return cmd
}

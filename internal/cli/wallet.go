package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/loandesk/loandesk/internal/checkout"
	"github.com/loandesk/loandesk/internal/forms"
	"github.com/loandesk/loandesk/internal/policy"
)

func newWalletCmd() *cobra.Command {
	var resync bool

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show the wallet balance and form access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			if resync {
				ctx, cancel := commandContext(cmd)
				defer cancel()
				if _, err := core.Wallet.Resync(ctx); err != nil {
					return err
				}
			}
			sum := core.Wallet.Summary()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance:  %s %s\n", sum.Currency, sum.Balance.StringFixed(2))
			fmt.Fprintf(out, "Status:   %s\n", sum.Status)
			fmt.Fprintf(out, "Access:   %s", sum.AccessType)
			if sum.ValidUntil != nil {
				fmt.Fprintf(out, " (until %s)", sum.ValidUntil.Local().Format("2006-01-02"))
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Basic:    %s (rate %s)\n", yesNo(sum.Access.CanSubmitBasic), sum.Access.Rates.For(policy.FormBasic).StringFixed(2))
			fmt.Fprintf(out, "Realtime: %s (rate %s)\n", yesNo(sum.Access.CanSubmitRealtime), sum.Access.Rates.For(policy.FormRealtime).StringFixed(2))
			return nil
		},
	}

	cmd.Flags().BoolVar(&resync, "resync", false, "Reload the balance from the backend first")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List wallet transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			txns := core.Wallet.Transactions(limit)
			if len(txns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transactions.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tDESCRIPTION\tID")
			for _, t := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					t.Timestamp.Local().Format("2006-01-02 15:04"), t.Kind, t.Amount.StringFixed(2), t.Description, t.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show (0 for all)")
	return cmd
}

func newRechargeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recharge <amount>",
		Short: "Add funds to the wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return checkout.ErrInvalidAmount
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			receipt, err := core.Checkout.Recharge(ctx, checkout.RechargeIntent{RequestedAmount: amount})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recharged %s via %s (payment %s). New balance: %s\n",
				receipt.Amount.StringFixed(2), receipt.PaymentMode, receipt.TxnID, receipt.Balance.StringFixed(2))
			return nil
		},
	}
}

func newSubmitCmd() *cobra.Command {
	var (
		app    forms.Application
		amount string
	)

	cmd := &cobra.Command{
		Use:   "submit <basic|realtime>",
		Short: "Submit a loan application",
		Long:  "Submit a loan application. The wallet is charged the form rate unless a subscription is active.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			class, err := policy.ParseFormClass(args[0])
			if err != nil {
				return err
			}
			if amount != "" {
				if app.LoanAmount, err = decimal.NewFromString(amount); err != nil {
					return fmt.Errorf("invalid --amount %q", amount)
				}
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			res, err := core.Forms.Submit(ctx, class, app)
			if err != nil {
				printNotifications(cmd)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if res.TxnID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Transaction: %s\n", res.TxnID)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&app.ApplicantName, "name", "", "Applicant name")
	flags.StringVar(&amount, "amount", "", "Loan amount")
	flags.StringVar(&app.Purpose, "purpose", "", "Loan purpose")
	flags.StringVar(&app.Aadhaar, "aadhaar", "", "Aadhaar number (realtime only)")
	flags.StringVar(&app.PAN, "pan", "", "PAN (realtime only)")
	flags.StringVar(&app.BankAccount, "bank-account", "", "Bank account number (realtime only)")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

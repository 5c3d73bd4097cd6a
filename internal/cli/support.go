package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List or open support tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			tickets, mock, err := core.Support.Tickets(ctx)
			if err != nil {
				return err
			}
			if len(tickets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tickets.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUBJECT\tPRIORITY\tSTATUS")
			for _, t := range tickets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Subject, t.Priority, t.Status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if mock {
				fmt.Fprintln(cmd.OutOrStdout(), "(sample data, backend unavailable)")
			}
			return nil
		},
	}
	cmd.AddCommand(newTicketCreateCmd())
	return cmd
}

func newTicketCreateCmd() *cobra.Command {
	var subject, description, priority string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a support ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			ack, err := core.Support.Create(ctx, subject, description, priority)
			if err != nil {
				return err
			}
			msg := ack.Message
			if msg == "" {
				msg = "Ticket created successfully!"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Ticket subject")
	cmd.Flags().StringVar(&description, "description", "", "Problem description")
	cmd.Flags().StringVar(&priority, "priority", "medium", "Priority (low, medium, high, urgent)")
	return cmd
}

package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loandesk/loandesk/internal/auth"
	"github.com/loandesk/loandesk/internal/session"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to LoanDesk",
		Long:  "Sign in with email and password. When the backend is unreachable a demo session is started.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			sess, err := core.Auth.Login(ctx, email, password)
			if err != nil {
				return err
			}
			mode := "backend"
			if sess.IsDemo() {
				mode = "demo"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s> (%s, %s session)\n", sess.DisplayName, sess.Email, sess.Role, mode)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := core.Auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var reg auth.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a LoanDesk account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			ack, err := core.Auth.Register(ctx, reg)
			if err != nil {
				return err
			}
			msg := ack.Message
			if msg == "" {
				msg = "Registration successful! Please login."
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email")
	cmd.Flags().StringVar(&reg.Mobile, "mobile", "", "10-digit mobile number")
	cmd.Flags().StringVar(&reg.Role, "role", "DSA", "Role (DSA, NBFC, Co-op)")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Password (at least 6 characters)")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, ok := core.Sessions.Current()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:  %s (%s)\n", sess.DisplayName, sess.UserID)
			fmt.Fprintf(out, "Email: %s\n", sess.Email)
			fmt.Fprintf(out, "Role:  %s\n", sess.Role)
			fmt.Fprintf(out, "State: %s\n", sess.State())
			if sess.ExpiresAt != nil {
				fmt.Fprintf(out, "Valid: until %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			if sess.ReauthRequired {
				fmt.Fprintln(out, "The backend rejected a recent update; please log in again.")
			}
			return nil
		},
	}
}

func requireSession() (session.Session, error) {
	sess, err := core.Sessions.Require()
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: run 'loandesk login' first", err)
	}
	return sess, nil
}

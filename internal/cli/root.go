package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/loandesk/loandesk/internal/app"
	"github.com/loandesk/loandesk/internal/config"
	"github.com/loandesk/loandesk/internal/logging"
)

var (
	flagAPIURL      string
	flagSessionFile string
	flagDebug       bool
	flagLogLevel    string
	flagLogFormat   string
	flagStrict      bool

	logger *slog.Logger
	core   *app.App
)

// NewRootCmd creates the root cobra command for the loandesk CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "loandesk",
		Short: "LoanDesk wallet and loan application console",
		Long:  "loandesk manages the prepaid wallet, submits loan applications and talks to the LoanDesk backend.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			flags := cmd.Flags()
			if flags.Changed("api-url") {
				cfg.APIBaseURL = flagAPIURL
			}
			if flags.Changed("session-file") {
				cfg.SessionFile = flagSessionFile
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			if flagStrict {
				cfg.DemoFallback = false
			}
			logger = logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			core = app.New(cfg, nil, logger, app.Options{})

			if _, _, err := core.Restore(cmd.Context()); err != nil {
				logger.Warn("restore session", slog.Any("error", err))
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if core == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), core.Cfg.ShutdownPeriod)
			defer cancel()
			return core.Close(ctx)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Backend base URL (or API_BASE_URL env)")
	root.PersistentFlags().StringVar(&flagSessionFile, "session-file", "", "Session file path (or SESSION_FILE env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().BoolVar(&flagStrict, "strict", false, "Disable demo fallback responses")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newWhoamiCmd(),
		newWalletCmd(),
		newHistoryCmd(),
		newRechargeCmd(),
		newSubmitCmd(),
		newPlansCmd(),
		newSubscribeCmd(),
		newTicketsCmd(),
		newAdminCmd(),
	)

	return root
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 2*time.Minute)
}

// printNotifications writes queued toasts and empties the feed.
func printNotifications(cmd *cobra.Command) {
	for _, msg := range core.Feed.Drain() {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", msg.Level, msg.Body)
	}
}

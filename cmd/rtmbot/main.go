package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/EgorLis/slackrtm/internal/bot"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	load := func() (*bot.Config, error) {
		cfg, err := bot.Load(configPath)
		if err != nil {
			return nil, err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
		}
		return cfg, nil
	}

	root := &cobra.Command{
		Use:           "rtmbot",
		Short:         "Run a Slack RTM bot for every configured workspace.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			log := cfg.Logger()

			b, err := bot.New(cfg, bot.WithLogger(log))
			if err != nil {
				log.WithError(err).Error("cannot build bot")
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			log.WithField("workspaces", len(cfg.Workspaces)).Info("running, press Ctrl+C to stop")
			if err := b.Run(ctx); err != nil {
				log.WithError(err).Error("bot stopped")
				return err
			}
			log.Info("bye")
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "rtmbot.yaml", "Path to the YAML config.")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log_level from the config (debug|info|warn|error).")

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and show the resolved workspaces.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range cfg.Workspaces {
				tokenState := "ok"
				if _, err := w.ResolveToken(); err != nil {
					tokenState = err.Error()
				}
				fmt.Fprintf(out, "%s\tmethod=%s\tping=%s/%s\tmax_backoff=%s\ttoken=%s\n",
					w.Name, w.ConnectMethod, w.PingInterval, w.PingTimeout, w.MaxBackoff, tokenState)
			}
			return nil
		},
	}
	root.AddCommand(check)

	return root
}

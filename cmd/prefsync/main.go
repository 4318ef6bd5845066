package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"reminder_service/internal/domain/notification"
	"reminder_service/internal/infra/logger"
	"reminder_service/internal/infra/settingsync"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "prefsync",
		Short:   "Push a local notification preference file to the reminder service",
		Version: Version,
	}

	rootCmd.AddCommand(pushCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type syncFlags struct {
	baseURL  string
	token    string
	timezone string
	logLevel string
	debounce time.Duration
	timeout  time.Duration
}

func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", envOr("REMINDER_BASE_URL", "http://127.0.0.1:8080"), "reminder service base URL")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("REMINDER_TOKEN"), "user bearer token (default $REMINDER_TOKEN)")
	cmd.Flags().StringVar(&f.timezone, "timezone", notification.DefaultTimezone, "timezone used when the file has none")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level")
	cmd.Flags().DurationVar(&f.debounce, "debounce", settingsync.DefaultDebounce, "quiet period before a change is pushed")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 15*time.Second, "request timeout")
}

func (f *syncFlags) syncer() (*settingsync.Syncer, *logrus.Entry) {
	logger.Configure(logger.Log, f.logLevel, "development")
	log := logrus.NewEntry(logger.Log)
	s := settingsync.NewSyncer(f.baseURL, f.debounce, f.timeout, log)
	s.SetToken(f.token)
	return s, log
}

func pushCmd() *cobra.Command {
	flags := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "push [file]",
		Short: "Sanitize a preference file and push it once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, _ := flags.syncer()
			prefs, err := settingsync.LoadFile(args[0], flags.timezone)
			if err != nil {
				return err
			}
			if err := syncer.Update(prefs); err != nil {
				return err
			}
			return syncer.Close(cmd.Context())
		},
	}
	flags.register(cmd)
	return cmd
}

func watchCmd() *cobra.Command {
	flags := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Push the preference file now and after every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, log := flags.syncer()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if prefs, err := settingsync.LoadFile(args[0], flags.timezone); err != nil {
				log.WithError(err).Warn("Initial read failed, waiting for changes")
			} else if err := syncer.Update(prefs); err != nil {
				return err
			}

			watchErr := settingsync.WatchFile(ctx, args[0], flags.timezone, syncer, log)

			closeCtx, cancel := context.WithTimeout(context.Background(), flags.timeout)
			defer cancel()
			if err := syncer.Close(closeCtx); err != nil {
				log.WithError(err).Warn("Final sync failed")
			}
			return watchErr
		},
	}
	flags.register(cmd)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

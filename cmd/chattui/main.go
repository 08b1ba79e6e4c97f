package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/storechat/internal/app"
	"github.com/matheus3301/storechat/internal/config"
	"github.com/matheus3301/storechat/internal/profile"
	"github.com/matheus3301/storechat/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/multierr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		user      string
		noDaemon  bool
		configure bool
	)
	cmd := &cobra.Command{
		Use:           "chattui [counterpart]",
		Short:         "Chat with a store from the terminal",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := profile.EnsureDirs(); err != nil {
				return err
			}
			cfg, err := config.LoadOrDefault(profile.ConfigPath())
			if err != nil {
				return err
			}
			name, err := profile.ResolveUser(user, cfg)
			if err != nil {
				return err
			}
			counterpart := cfg.DefaultCounterpart
			if len(args) == 1 {
				counterpart = args[0]
			}
			if configure {
				cfg.UserName = name
				cfg.DefaultCounterpart = counterpart
				if err := config.Save(profile.ConfigPath(), cfg); err != nil {
					return err
				}
			}

			if !noDaemon && !probeDaemon(cfg) {
				fmt.Fprintln(os.Stderr, "chatd not running, starting...")
				if err := startDaemon(); err != nil {
					return fmt.Errorf("start chatd: %w", err)
				}
				if !waitForDaemon(cfg, 10*time.Second) {
					return fmt.Errorf("chatd did not become ready")
				}
			}
			return run(app.Params{UserName: name, Counterpart: counterpart, Config: cfg})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user name (overrides config)")
	cmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "do not start chatd when it is not running")
	cmd.Flags().BoolVar(&configure, "save", false, "store --user and counterpart as defaults")
	return cmd
}

func run(p app.Params) error {
	var session *app.Session
	fxApp := fx.New(app.Module(p), fx.Populate(&session), fx.NopLogger)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	runErr := tui.NewApp(session).Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	return multierr.Append(runErr, fxApp.Stop(stopCtx))
}

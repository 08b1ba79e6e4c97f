package main

import (
	"fmt"
	"os"

	"github.com/matheus3301/storechat/internal/config"
	"github.com/matheus3301/storechat/internal/daemon"
	"github.com/matheus3301/storechat/internal/profile"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dataDir     string
		listenGRPC  string
		listenHTTP  string
		joinHistory int
		console     bool
	)
	cmd := &cobra.Command{
		Use:           "chatd",
		Short:         "Storechat backend: message store and live channel",
		Args:          cobra.NoArgs,
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
			p := daemon.Params{
				DataDir:     cfg.Server.DataDir,
				ListenGRPC:  cfg.Server.ListenGRPC,
				ListenHTTP:  cfg.Server.ListenHTTP,
				JoinHistory: joinHistory,
				Console:     console,
			}
			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				p.DataDir = dataDir
			}
			if flags.Changed("grpc") {
				p.ListenGRPC = listenGRPC
			}
			if flags.Changed("http") {
				p.ListenHTTP = listenHTTP
			}

			app := fx.New(
				daemon.Module(p),
				fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: l}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "database directory (overrides config)")
	cmd.Flags().StringVar(&listenGRPC, "grpc", "", "gRPC listen address (overrides config)")
	cmd.Flags().StringVar(&listenHTTP, "http", "", "websocket listen address (overrides config)")
	cmd.Flags().IntVar(&joinHistory, "join-history", 0, "messages sent with room.joined (0 = default)")
	cmd.Flags().BoolVar(&console, "console", false, "also log to stderr")
	return cmd
}

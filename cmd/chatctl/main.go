package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/storechat/internal/api"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/config"
	"github.com/matheus3301/storechat/internal/profile"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatctl",
		Short:         "Inspect and drive storechat conversations from scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("user", "", "user name (overrides config)")
	cmd.PersistentFlags().String("addr", "", "backend gRPC address (overrides config)")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "per-command deadline")

	cmd.AddCommand(
		newWhoamiCmd(),
		newConversationsCmd(),
		newOpenCmd(),
		newHistoryCmd(),
		newSendCmd(),
		newMarkReadCmd(),
	)
	return cmd
}

// cmdContext is the state every subcommand starts from.
type cmdContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	client  *api.Client
	self    chat.Identity
	jsonOut bool
	out     io.Writer
}

func (c *cmdContext) Close() error {
	c.cancel()
	return c.client.Close()
}

// newContext dials the backend and resolves the local user.
func newContext(cmd *cobra.Command) (*cmdContext, error) {
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	userFlag, _ := flags.GetString("user")
	addr, _ := flags.GetString("addr")
	jsonOut, _ := flags.GetBool("json")
	timeout, _ := flags.GetDuration("timeout")

	name, err := profile.ResolveUser(userFlag, cfg)
	if err != nil {
		return nil, err
	}
	if addr == "" {
		addr = cfg.Server.BackendAddr
	}

	client, err := api.Dial(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	self, err := client.ResolveIdentity(ctx, name)
	if err != nil {
		cancel()
		return nil, multierr.Append(fmt.Errorf("cannot reach chatd at %s: %w", addr, err), client.Close())
	}
	return &cmdContext{
		ctx:     ctx,
		cancel:  cancel,
		client:  client,
		self:    self,
		jsonOut: jsonOut,
		out:     cmd.OutOrStdout(),
	}, nil
}

// withContext wraps a subcommand body with context setup and teardown.
func withContext(fn func(c *cmdContext, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		c, err := newContext(cmd)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, c.Close()) }()
		return fn(c, args)
	}
}

func (c *cmdContext) outputJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openspdm/spdm-go/internal/logger"
)

var authSlot uint8

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Run connection establishment (VERSION..CHALLENGE) against a Responder",
	RunE:  runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().Uint8Var(&authSlot, "auth-slot", 0, "certificate slot CHALLENGE authenticates against")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx := context.Background()
	c, trustAnchors, closeTransport, err := dialAndBuildContext(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	if err := c.Connect(ctx, handshakeTimeout(cfg), authSlot, trustAnchors); err != nil {
		return fmt.Errorf("spdm-requester: connect failed: %w", err)
	}

	log.Info("connection established", logger.String("state", c.State.String()))
	fmt.Printf("connected: version=%d.%d state=%s\n", c.Version.Major, c.Version.Minor, c.State)
	return nil
}

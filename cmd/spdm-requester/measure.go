package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openspdm/spdm-go/connection"
)

var (
	measureOperation uint8
	measureSign      bool
	measureSlot      uint8
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Connect and retrieve measurement blocks via GET_MEASUREMENTS",
	RunE:  runMeasure,
}

func init() {
	rootCmd.AddCommand(measureCmd)
	measureCmd.Flags().Uint8Var(&measureOperation, "operation", 0xFF, "GET_MEASUREMENTS operation byte (0x00=count, 0xFF=all, else one index)")
	measureCmd.Flags().BoolVar(&measureSign, "sign", false, "request a signed measurement response")
	measureCmd.Flags().Uint8Var(&measureSlot, "auth-slot", 0, "certificate slot CHALLENGE authenticates against before measuring")
}

func runMeasure(cmd *cobra.Command, args []string) error {
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

	if err := c.Connect(ctx, handshakeTimeout(cfg), measureSlot, trustAnchors); err != nil {
		return fmt.Errorf("spdm-requester: connect failed: %w", err)
	}

	send := connection.NewTransportSender(ctx, c.Transport, handshakeTimeout(cfg))
	blocks, err := c.GetMeasurements(send, measureOperation, measureSign, measureSlot)
	if err != nil {
		return fmt.Errorf("spdm-requester: measure failed: %w", err)
	}

	for _, b := range blocks {
		fmt.Printf("block %d spec=0x%02x data=%s\n", b.Index, b.MeasurementSpec, hex.EncodeToString(b.MeasurementData))
	}
	return nil
}

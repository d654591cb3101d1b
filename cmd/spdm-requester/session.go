package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/session"
)

var (
	sessionSlot       uint8
	sessionPeerSlot   uint8
	sessionMutualAuth bool
	sessionSummary    uint8
	sessionPSKHintHex string
	sessionPSKHex     string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Connect and establish a session via KEY_EXCHANGE or PSK_EXCHANGE",
	RunE:  runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.Flags().Uint8Var(&sessionSlot, "slot", 0, "certificate slot KEY_EXCHANGE is requested against (ignored for PSK)")
	sessionCmd.Flags().Uint8Var(&sessionPeerSlot, "peer-slot", 0, "certificate slot that verifies KEY_EXCHANGE_RSP's signature")
	sessionCmd.Flags().BoolVar(&sessionMutualAuth, "mutual-auth", false, "sign FINISH with the local signing key")
	sessionCmd.Flags().Uint8Var(&sessionSummary, "summary-type", 0, "MeasurementSummaryHashType requested in KEY_EXCHANGE")
	sessionCmd.Flags().StringVar(&sessionPSKHintHex, "psk-hint", "", "hex-encoded PSK hint; when set, PSK_EXCHANGE is used instead of KEY_EXCHANGE")
	sessionCmd.Flags().StringVar(&sessionPSKHex, "psk", "", "hex-encoded PSK matching --psk-hint")
}

func runSession(cmd *cobra.Command, args []string) error {
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

	if err := c.Connect(ctx, handshakeTimeout(cfg), sessionSlot, trustAnchors); err != nil {
		return fmt.Errorf("spdm-requester: connect failed: %w", err)
	}

	send := connection.NewTransportSender(ctx, c.Transport, handshakeTimeout(cfg))
	mgr := session.NewManager(nil, log)
	defer mgr.Close()

	var sess *session.Session
	if sessionPSKHintHex != "" {
		hint, err := decodeHex("psk-hint", sessionPSKHintHex)
		if err != nil {
			return err
		}
		psk, err := decodeHex("psk", sessionPSKHex)
		if err != nil {
			return err
		}
		sess, err = mgr.EstablishPSKSession(c, send, hint, psk, sessionSummary)
		if err != nil {
			return fmt.Errorf("spdm-requester: PSK session establishment failed: %w", err)
		}
	} else {
		sess, err = mgr.EstablishSession(c, send, sessionSlot, sessionSummary, sessionPeerSlot, sessionMutualAuth)
		if err != nil {
			return fmt.Errorf("spdm-requester: session establishment failed: %w", err)
		}
	}

	fmt.Printf("session established: id=0x%08x\n", sess.ID())
	return nil
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("spdm-requester: invalid hex for --%s: %w", field, err)
	}
	return b, nil
}

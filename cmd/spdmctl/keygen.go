package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	keygenCurve  string
	keygenOutput string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ECDSA signing key",
	Long: `Generate a new ECDSA private key for use as a Context.LocalSigningKey.

Supported curves:
  - ecdsa-p256 (default)
  - ecdsa-p384`,
	Example: `  # Generate a P-256 key and print SEC1 PEM to stdout
  spdmctl keygen

  # Generate a P-384 key and save it
  spdmctl keygen --curve ecdsa-p384 --output responder.key.pem`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenCurve, "curve", "c", "ecdsa-p256", "curve (ecdsa-p256, ecdsa-p384)")
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "", "output file (default: stdout)")
}

func curveForName(name string) (elliptic.Curve, error) {
	switch name {
	case "ecdsa-p256":
		return elliptic.P256(), nil
	case "ecdsa-p384":
		return elliptic.P384(), nil
	default:
		return nil, fmt.Errorf("unsupported curve: %s", name)
	}
}

func runKeygen(cmd *cobra.Command, args []string) error {
	curve, err := curveForName(keygenCurve)
	if err != nil {
		return err
	}

	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	return writeOutput(keygenOutput, pem.EncodeToMemory(block))
}

package main

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/openspdm/spdm-go/internal/keymaterial"
)

var (
	chainKeyPath    string
	chainSubject    string
	chainCA         bool
	chainIssuerCert string
	chainIssuerKey  string
	chainValidDays  int
	chainOutput     string
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Generate a self-signed or issuer-signed certificate chain",
	Long: `Generate one certificate for --key and emit it (and, when
--issuer-cert is given, the issuer's own certificate) as a concatenated
PEM cert_chain, the layout internal/keymaterial.LoadCertChain and
Context.LocalCertChains expect.

With no --issuer-cert, the certificate is self-signed, suitable as a
standalone trust anchor for a slot's trust root.`,
	Example: `  # Self-signed root, usable as both leaf and trust anchor
  spdmctl keygen -o root.key.pem
  spdmctl chain --key root.key.pem --ca --subject "CN=spdm-root" -o root.chain.pem

  # Leaf signed by that root
  spdmctl keygen -o leaf.key.pem
  spdmctl chain --key leaf.key.pem --subject "CN=spdm-responder" \
    --issuer-cert root.chain.pem --issuer-key root.key.pem -o leaf.chain.pem`,
	RunE: runChain,
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.Flags().StringVar(&chainKeyPath, "key", "", "path to the ECDSA private key this certificate certifies (required)")
	chainCmd.Flags().StringVar(&chainSubject, "subject", "CN=spdm-endpoint", "subject common name, as \"CN=...\"")
	chainCmd.Flags().BoolVar(&chainCA, "ca", false, "mark the certificate as a CA (required for a trust anchor)")
	chainCmd.Flags().StringVar(&chainIssuerCert, "issuer-cert", "", "issuer's cert_chain PEM; omit for a self-signed certificate")
	chainCmd.Flags().StringVar(&chainIssuerKey, "issuer-key", "", "issuer's private key PEM; required with --issuer-cert")
	chainCmd.Flags().IntVar(&chainValidDays, "valid-days", 825, "certificate validity period in days")
	chainCmd.Flags().StringVarP(&chainOutput, "output", "o", "", "output file (default: stdout)")
	chainCmd.MarkFlagRequired("key")
}

func runChain(cmd *cobra.Command, args []string) error {
	subjectKey, err := keymaterial.LoadECDSAPrivateKey(chainKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load --key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: chainSubject},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Duration(chainValidDays) * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  chainCA,
	}

	issuerTemplate := template
	issuerKey := subjectKey
	var issuerChainDER []byte

	if chainIssuerCert != "" {
		if chainIssuerKey == "" {
			return fmt.Errorf("--issuer-key is required with --issuer-cert")
		}
		issuerChainDER, err = keymaterial.LoadCertChain(chainIssuerCert)
		if err != nil {
			return fmt.Errorf("failed to load --issuer-cert: %w", err)
		}
		issuerCert, err := x509.ParseCertificate(issuerChainDER)
		if err != nil {
			return fmt.Errorf("failed to parse --issuer-cert: %w", err)
		}
		issuerTemplate = issuerCert
		issuerKey, err = keymaterial.LoadECDSAPrivateKey(chainIssuerKey)
		if err != nil {
			return fmt.Errorf("failed to load --issuer-key: %w", err)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, issuerTemplate, &subjectKey.PublicKey, issuerKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	out := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if issuerChainDER != nil {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: issuerChainDER})...)
	}
	return writeOutput(chainOutput, out)
}

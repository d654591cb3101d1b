package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spdmctl",
	Short: "Offline key and certificate-chain generation for SPDM endpoints",
	Long: `spdmctl generates the ECDSA signing keys and self-signed certificate
chains cmd/spdm-responder and cmd/spdm-requester load at startup. It does
not speak SPDM itself; it only produces the PEM material those two
binaries' config files point at.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// Command spdm-responder runs an SPDM Responder endpoint: it serves
// GET_VERSION through CHALLENGE/GET_MEASUREMENTS over a WebSocket
// transport, establishes sessions via KEY_EXCHANGE/PSK_EXCHANGE, and
// relays session-scoped traffic through the record layer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "spdm-responder",
	Short: "SPDM Responder endpoint",
	Long: `spdm-responder serves the Responder role of the SPDM connection and
session engines: version/capability/algorithm negotiation, certificate
provisioning, CHALLENGE-based authentication, measurement retrieval, and
KEY_EXCHANGE/PSK_EXCHANGE-established sessions over a WebSocket transport.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to responder config (YAML or JSON); SPDM_* env vars are used if omitted")
}

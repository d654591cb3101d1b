// Command spdm-requester drives the Requester role of the SPDM connection
// and session engines against a Responder reachable over WebSocket:
// connection establishment, measurement retrieval, and session
// establishment, each exposed as its own subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	dialURL string
)

var rootCmd = &cobra.Command{
	Use:   "spdm-requester",
	Short: "SPDM Requester client",
	Long: `spdm-requester drives the Requester role against a Responder endpoint:
VERSION/CAPABILITIES/ALGORITHMS negotiation, certificate retrieval and
CHALLENGE authentication, measurement retrieval, and session establishment
via KEY_EXCHANGE or PSK_EXCHANGE.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to requester config (YAML or JSON); SPDM_* env vars are used if omitted")
	rootCmd.PersistentFlags().StringVar(&dialURL, "url", "", "override transport.address from config (ws://host:port/spdm)")
}

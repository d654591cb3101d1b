package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openspdm/spdm-go/config"
	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/encap"
	"github.com/openspdm/spdm-go/internal/keymaterial"
	"github.com/openspdm/spdm-go/internal/logger"
	"github.com/openspdm/spdm-go/internal/metrics"
	"github.com/openspdm/spdm-go/session"
	"github.com/openspdm/spdm-go/spdmcrypto/software"
	"github.com/openspdm/spdm-go/transport"
	"github.com/openspdm/spdm-go/transport/wstransport"
)

var (
	listenAddr string
	pskHintHex string
	pskHex     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept WebSocket connections and serve the Responder role",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "override transport.address from config")
	serveCmd.Flags().StringVar(&pskHintHex, "psk-hint", "", "hex-encoded PSK hint this responder resolves (optional)")
	serveCmd.Flags().StringVar(&pskHex, "psk", "", "hex-encoded PSK matching --psk-hint (optional)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	addr := cfg.Transport.Address
	if listenAddr != "" {
		addr = listenAddr
	}
	if addr == "" {
		return fmt.Errorf("spdm-responder: no listen address (set transport.address in config or pass --listen)")
	}

	backend := software.New()
	psk, err := pskLookupFromFlags()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upgrader := wstransport.NewUpgrader(cfg.Transport.DialTimeout)
	mux := http.NewServeMux()
	mux.HandleFunc("/spdm", func(w http.ResponseWriter, r *http.Request) {
		t, err := upgrader.Accept(w, r)
		if err != nil {
			log.Error("websocket upgrade failed", logger.Error(err))
			return
		}
		go serveConnection(ctx, cfg, backend, psk, log, t)
	})

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		go func() {
			metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("metrics listening", logger.String("addr", metricsAddr))
			if err := metrics.StartServer(metricsAddr); err != nil {
				log.Error("metrics server exited", logger.Error(err))
			}
		}()
	}

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("responder listening", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("responder http server exited", logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// serveConnection drives one accepted transport end to completion: build a
// fresh Context per connection (spec.md's connection state is per-peer),
// wire the session engine and encapsulated-request driver, then loop
// receiving whole SPDM messages and answering them until the transport
// closes.
func serveConnection(ctx context.Context, cfg *config.Config, backend *software.Backend, psk session.PSKLookup, log logger.Logger, t transport.Transport) {
	defer t.Close()

	c := connection.NewContext(connection.RoleResponder, t, backend, log, cfg.Version.Version(), cfg.Capabilities.Flags())
	if hash, asym, dhe, aead, err := cfg.Algorithms.Resolve(); err == nil {
		c.Algorithms = connection.NegotiatedAlgorithms{BaseHash: hash, BaseAsym: asym, Dhe: dhe, Aead: aead}
	}
	if err := provisionCertificates(c, cfg); err != nil {
		log.Error("failed to provision local certificates", logger.Error(err))
		return
	}

	sessions := session.NewManager(psk, log)
	defer sessions.Close()
	c.Sessions = sessions
	encap.NewDriver(c)

	for {
		msg, err := t.Receive(ctx, 0)
		if err != nil {
			if err != transport.ErrClosed && err != context.Canceled {
				log.Warn("receive failed, closing connection", logger.Error(err))
			}
			return
		}

		var reply []byte
		if msg.InSession {
			plaintext, err := sessions.DecryptRecord(msg.SessionID, msg.Data)
			if err != nil {
				log.Warn("failed to decrypt session record", logger.Error(err))
				return
			}
			resp := c.HandleSessionRequest(ctx, msg.SessionID, plaintext)
			reply, err = sessions.EncryptRecord(msg.SessionID, resp)
			if err != nil {
				log.Warn("failed to encrypt session record", logger.Error(err))
				return
			}
		} else {
			reply = c.HandleRequest(ctx, msg.Data)
		}

		out := transport.Message{InSession: msg.InSession, SessionID: msg.SessionID, Data: reply}
		if err := t.Send(ctx, out); err != nil {
			log.Warn("send failed, closing connection", logger.Error(err))
			return
		}
	}
}

func provisionCertificates(c *connection.Context, cfg *config.Config) error {
	for slotKey, slot := range cfg.Certificates.Slots {
		idx, err := slotIndex(slotKey)
		if err != nil {
			return err
		}
		chain, err := keymaterial.LoadCertChain(slot.ChainPath)
		if err != nil {
			return err
		}
		c.LocalCertChains[idx] = chain

		if slot.KeyPath != "" {
			key, err := keymaterial.LoadECDSAPrivateKey(slot.KeyPath)
			if err != nil {
				return err
			}
			c.LocalSigningKey = key
		}
	}
	return nil
}

func slotIndex(key string) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(key, "%d", &idx); err != nil {
		return 0, fmt.Errorf("spdm-responder: invalid slot key %q: %w", key, err)
	}
	if idx < 0 || idx > 7 {
		return 0, fmt.Errorf("spdm-responder: slot %d out of range 0..7", idx)
	}
	return idx, nil
}

func pskLookupFromFlags() (session.PSKLookup, error) {
	if pskHintHex == "" {
		return nil, nil
	}
	hint, err := decodeHex("psk-hint", pskHintHex)
	if err != nil {
		return nil, err
	}
	psk, err := decodeHex("psk", pskHex)
	if err != nil {
		return nil, err
	}
	return func(h []byte) ([]byte, error) {
		if string(h) != string(hint) {
			return nil, fmt.Errorf("spdm-responder: no PSK registered for hint %x", h)
		}
		return psk, nil
	}, nil
}

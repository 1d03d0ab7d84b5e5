// Command ockam-channel-demo drives one initiator and one responder over an
// in-process router.InMemory, sends one message into the initiator's
// encryptor, and prints the session summary as JSON. The message is not
// echoed back or printed by the responder. It follows cmd/ardents-node's
// flag-plus-JSON style with a single default action rather than that
// command's node-agent bootstrap flow, since a secure channel has no on-disk
// node state of its own.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/build-trust/ockam-go/internal/config"
	"github.com/build-trust/ockam-go/internal/telemetry"
	"github.com/build-trust/ockam-go/pkg/identity"
	"github.com/build-trust/ockam-go/pkg/router"
	"github.com/build-trust/ockam-go/pkg/routing"
	"github.com/build-trust/ockam-go/pkg/securechannel"
)

const (
	exitOK           = 0
	exitInvalidInput = 10
	exitHandshake    = 20
)

func main() {
	fs := flag.NewFlagSet("ockam-channel-demo", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a channel config YAML file")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus /metrics on this address")
	message := fs.String("message", "hello from the initiator", "application payload to send through the channel")
	if err := fs.Parse(os.Args[1:]); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	cfg := config.LoadFromPath(*configPath)
	logger := telemetry.NewLogger(cfg.LogLevel, "ockam-channel-demo")
	registry := telemetry.NewRegistry()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry.Gatherer, promhttp.HandlerOpts{}))
		go func() {
			_ = http.ListenAndServe(*metricsAddr, mux)
		}()
	}

	if err := run(cfg, logger, registry, *message); err != nil {
		telemetry.LogError(logger, registry.ErrorsByCategory, "handshake", "run", "", err)
		writeStderrln(err.Error(), exitHandshake)
	}
	os.Exit(exitOK)
}

func run(cfg config.Channel, logger *slog.Logger, registry *telemetry.Registry, message string) error {
	scCfg, err := cfg.ToSecureChannelConfig()
	if err != nil {
		return err
	}
	scCfg.Metrics = securechannel.NewMetrics(registry.Registerer)

	r := router.NewInMemory()

	initiatorIdentity, err := identity.NewManager()
	if err != nil {
		return err
	}
	responderIdentity, err := identity.NewManager()
	if err != nil {
		return err
	}

	responderAddr := routing.LocalSegment("responder")
	responderEP := securechannel.Endpoint{
		Router:    r,
		Identity:  responderIdentity,
		Config:    scCfg,
		Lifecycle: securechannel.NewLifecycleStream(),
	}
	unregister, err := securechannel.CreateChannelListener(responderEP, responderAddr, func(h securechannel.SessionHandle) {
		logger.Info("responder established", "peer_identity", h.PeerIdentity.ID, "session_id", h.SessionID)
	})
	if err != nil {
		return err
	}
	defer unregister()

	initiatorEP := securechannel.Endpoint{
		Router:    r,
		Identity:  initiatorIdentity,
		Config:    scCfg,
		Lifecycle: securechannel.NewLifecycleStream(),
	}
	handle, err := securechannel.CreateChannel(initiatorEP, routing.Route{responderAddr})
	if err != nil {
		return err
	}
	defer handle.Close()
	logger.Info("initiator established", "peer_identity", handle.PeerIdentity.ID, "session_id", handle.SessionID)

	if err := r.Send(router.Envelope{
		OnwardRoute: routing.Route{handle.EncryptorAddr},
		Body:        []byte(message),
	}); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)

	return printJSON(map[string]any{
		"session_id":       handle.SessionID,
		"initiator":        initiatorIdentity.Identity().ID,
		"responder":        responderIdentity.Identity().ID,
		"message_sent":     message,
		"suite":            scCfg.Suite,
		"handshake_timeout": scCfg.HandshakeTimeout.String(),
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStderrln(msg string, code int) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}

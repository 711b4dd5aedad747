package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/EzCall/internal/logger"
	"github.com/yok-tottii/EzCall/internal/metrics"
	"github.com/yok-tottii/EzCall/internal/signaling"
)

const relayShutdownTimeout = 5 * time.Second

func newRelayCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the signaling relay",
		Long:  "Run a websocket relay at /ws that forwards call setup messages between peers in the same room.",
		Annotations: map[string]string{
			"skipConfigLoad": "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := logger.DefaultConfig()
			cfg.FilePrefix = "relay"
			cfg.Mirror = cmd.ErrOrStderr()
			if verbose {
				cfg.Level = logger.DEBUG
			}
			log, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "relay listening on ws://%s/ws\n", listener.Addr())
			return serveRelay(runCtx, listener, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8088", "Listen address")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every relayed message")
	return cmd
}

// newRelayMux wires the relay and its metrics into one handler
func newRelayMux(relay *signaling.Relay, m *metrics.Metrics) *http.ServeMux {
	relay.OnForward = func(_ string, msg signaling.Message) {
		m.RelayForwarded(string(msg.Type))
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", relay)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "ok rooms=%d\n", relay.Rooms())
	})
	return mux
}

// serveRelay serves until ctx is cancelled, then shuts down gracefully
func serveRelay(ctx context.Context, listener net.Listener, log *logger.Logger) error {
	relay := signaling.NewRelay(log)
	srv := &http.Server{
		Handler:           newRelayMux(relay, metrics.New()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("リレーサーバー起動: %s", listener.Addr())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("リレーサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), relayShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown relay: %w", err)
	}
	return nil
}

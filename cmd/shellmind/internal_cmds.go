package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shellmind/cli/internal/ptymux"
)

func newInternalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "internal",
		Short:  "Internal plumbing commands",
		Hidden: true,
	}
	cmd.AddCommand(newMultiplexerCmd())
	return cmd
}

func newMultiplexerCmd() *cobra.Command {
	var useWebsocket bool
	var port int
	cmd := &cobra.Command{
		Use:   "multiplexer",
		Short: "Run the pty-agent multiplexer",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			mux := ptymux.New(ptymux.Config{Logger: logger})

			registry := prometheus.NewRegistry()
			if err := registerAll(registry, mux.Collectors()); err != nil {
				return err
			}

			socketPath, err := ptymux.RemoteSocketPath()
			if err != nil {
				return err
			}
			if err := ptymux.EnsureSocketDir(socketPath); err != nil {
				return err
			}
			listener, err := net.Listen("unix", socketPath)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", socketPath, err)
			}
			defer os.Remove(socketPath)

			// SIGINT or SIGTERM stops the whole multiplexer; per-session
			// failures never do.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go mux.Run(ctx)

			if useWebsocket {
				wsHost := ptymux.NewWebSocketHost(mux)
				httpMux := http.NewServeMux()
				httpMux.Handle("/host", wsHost)
				httpMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				server := &http.Server{
					Addr:    fmt.Sprintf("127.0.0.1:%d", port),
					Handler: httpMux,
				}
				go func() {
					<-ctx.Done()
					server.Close()
				}()
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("websocket host server failed", "error", err)
					}
				}()
			} else {
				stdio := ptymux.NewStdioHost(mux, os.Stdout)
				go func() {
					if err := stdio.Run(ctx, os.Stdin); err != nil {
						logger.Error("stdio host channel failed", "error", err)
					}
					stop()
				}()
			}

			logger.Info("multiplexer listening", "socket", socketPath, "websocket", useWebsocket)
			return mux.Serve(ctx, listener)
		},
	}
	cmd.Flags().BoolVar(&useWebsocket, "websocket", false, "serve the host channel over a localhost websocket")
	cmd.Flags().IntVar(&port, "port", 8456, "websocket/metrics port")
	return cmd
}

func registerAll(r *prometheus.Registry, collectors []prometheus.Collector) error {
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"whiteboard-server/api"
	"whiteboard-server/config"
	"whiteboard-server/hub"
	"whiteboard-server/metrics"
)

var (
	flagLogLevel  string
	flagHost      string
	flagPort      int
	flagStaticDir string
)

var rootCmd = &cobra.Command{
	Use:   "whiteboard-server",
	Short: "Shared whiteboard room server",
	Long: `Serves shared drawing rooms over WebSocket.

Clients connect to /websocket (or /ws), send a Join frame and then exchange
figures, mouse positions and room queries with everyone else in the room.

Settings come from the environment (and .env); flags override them.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagLogLevel, "log", "l", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVarP(&flagHost, "addr", "a", "", "listen host")
	rootCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "listen port")
	rootCmd.Flags().StringVar(&flagStaticDir, "static-dir", "", "directory with the client bundle")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if cmd.Flags().Changed("log") {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.Flags().Changed("addr") {
		cfg.Host = flagHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if cmd.Flags().Changed("static-dir") {
		cfg.StaticDir = flagStaticDir
	}

	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	registry := hub.New(
		hub.WithLogger(logger),
		hub.WithMetrics(m),
		hub.WithMailboxSize(cfg.MailboxSize),
	)
	go registry.Run(ctx)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.NewRouter(cfg, logger, registry, m),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr(), "env", cfg.Env)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

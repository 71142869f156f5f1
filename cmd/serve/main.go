package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/algo-explorer/internal/config"
	"github.com/danielpatrickdp/algo-explorer/internal/journal"
	"github.com/danielpatrickdp/algo-explorer/internal/logging"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/danielpatrickdp/algo-explorer/internal/snapshotrpc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to explorer YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LoggingConfig("serve"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	opts := []session.Option{session.WithLogger(logger)}
	if cfg.Journal.Path != "" {
		store, err := journal.NewStore(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer store.Close()
		opts = append(opts, session.WithRecorder(store))
	}
	sess, err := session.New(cfg.SessionConfig(), cfg.Rand(), opts...)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Server.GRPCAddr, err)
	}
	srv := grpc.NewServer(grpc.UnaryInterceptor(snapshotrpc.UnaryLogger(logger)))
	snapshotrpc.Register(srv, snapshotrpc.NewServer(sess))

	var metrics *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.GracefulStop()
		if metrics != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx)
		}
	}()

	logger.Info("serving",
		"session_id", sess.ID(),
		"grpc_addr", cfg.Server.GRPCAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
	)
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
// #endregion main

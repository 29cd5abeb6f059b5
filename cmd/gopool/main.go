// Command gopool serves hello.html and 404.html from a document root, one
// request per connection, using a fixed-size worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jzx17/gopool/internal/config"
	"github.com/jzx17/gopool/internal/fileserver"
	"github.com/jzx17/gopool/internal/logging"
	"github.com/jzx17/gopool/internal/metrics"
	"github.com/jzx17/gopool/internal/server"
	"github.com/jzx17/gopool/pkg/worker"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("gopool: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}

	policy, err := worker.ParsePanicPolicy(cfg.PanicPolicy)
	if err != nil {
		return err
	}

	var poolMetrics *worker.Metrics
	if cfg.MetricsAddr != "" {
		reg := metrics.NewRegistry()
		poolMetrics = worker.NewMetrics(reg, "gopool")

		metricsServer := metrics.NewServer(reg, logger)
		go func() {
			if err := metricsServer.ListenAndServe(cfg.MetricsAddr); err != nil {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
		defer metricsServer.Shutdown()
	}

	pool, err := worker.NewPool(&worker.PoolConfig{
		Size:        cfg.Workers,
		Logger:      logger,
		PanicPolicy: policy,
		Metrics:     poolMetrics,
	})
	if err != nil {
		return err
	}

	handler, err := fileserver.NewHandler(&fileserver.Config{
		Docs:       os.DirFS(cfg.DocRoot),
		SleepDelay: cfg.SleepDelay,
		Logger:     logger,
	})
	if err != nil {
		pool.Close()
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		pool.Close()
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	srv, err := server.New(&server.Config{
		Listener:       ln,
		Pool:           pool,
		Handler:        handler,
		MaxConnections: cfg.MaxConnections,
		Logger:         logger,
	})
	if err != nil {
		ln.Close()
		pool.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(log.Fields{
		"addr":    ln.Addr().String(),
		"workers": cfg.Workers,
	}).Info("gopool starting")

	serveErr := srv.Serve(ctx)

	logger.Info("shutting down")
	pool.Close()
	return serveErr
}

// Command oef-broker runs the OEF broker: it accepts agent connections
// on a TCP listener, drives the scheduler (spec.md C5), and optionally
// serves Prometheus metrics and a live operator dashboard. Grounded on
// the teacher's cmd/server/main.go for the wiring style (construct
// components, log, block on Serve).
package main

import (
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocx/oefbroker/internal/broker"
	"github.com/ocx/oefbroker/internal/config"
	"github.com/ocx/oefbroker/internal/metrics"
	"github.com/ocx/oefbroker/internal/ratelimit"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; defaults are used otherwise)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("oef-broker: loading config: %v", err)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var brokerMetrics *metrics.Broker
	if cfg.Metrics.Enabled {
		brokerMetrics = metrics.NewBroker(registerer)
	}

	scheduler := broker.New(cfg.Broker.DispatchQueueLen, brokerMetrics, logger)
	defer scheduler.Stop()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}, logger)
		defer limiter.Stop()
	}

	server := broker.NewServer(scheduler, cfg.Broker.MaxFrameBytes, limiter, logger)

	listener, err := net.Listen("tcp", cfg.Broker.ListenAddress)
	if err != nil {
		log.Fatalf("oef-broker: listening on %s: %v", cfg.Broker.ListenAddress, err)
	}
	logger.Info("oef-broker: listening", "address", cfg.Broker.ListenAddress)

	if cfg.Metrics.Enabled {
		go serveMetricsAndDashboard(cfg.Metrics.Address, scheduler, logger)
	}

	go func() {
		if err := server.Serve(listener); err != nil {
			logger.Error("oef-broker: listener stopped", "error", err)
		}
	}()

	waitForShutdown(logger)
}

func serveMetricsAndDashboard(address string, scheduler *broker.Scheduler, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	dashboard := broker.NewDashboard(scheduler, logger)
	mux.HandleFunc("/dashboard", dashboard.Handler)

	stop := make(chan struct{})
	go dashboard.Broadcast(5*time.Second, stop)

	logger.Info("oef-broker: serving metrics and dashboard", "address", address)
	if err := http.ListenAndServe(address, mux); err != nil {
		logger.Error("oef-broker: metrics server stopped", "error", err)
	}
	close(stop)
}

func waitForShutdown(logger *slog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("oef-broker: shutting down")
}

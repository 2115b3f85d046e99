package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"nrgkick-panel/internal/config"
	"nrgkick-panel/internal/metrics"
	"nrgkick-panel/internal/mqtt"
	"nrgkick-panel/internal/proxy"
	"nrgkick-panel/internal/server"
	"nrgkick-panel/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if os.Getenv("DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := cfg.DeviceConfig()

	var sess *session.Controller
	if device.Configured() {
		pollInterval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second
		sess, err = session.NewController(device, pollInterval, logger)
		if err != nil {
			logger.Fatalf("Failed to create session: %v", err)
		}
		logger.Infof("Device configured at %s (auth: %v)", device.Host, device.HasAuth())
	} else {
		logger.Warn("No NRGKick device address configured; serving path-addressed proxy only")
	}

	forwarder := proxy.NewForwarder(device, logger)

	var metricsHandler http.Handler
	if sess != nil {
		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.NewCollector(sess))
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	srv := server.NewServer(cfg, sess, forwarder, metricsHandler, logger)

	var bridge *mqtt.Bridge
	if sess != nil {
		sess.Subscribe(srv.Broadcast)

		if cfg.MQTT.Enabled() {
			bridge, err = mqtt.NewBridge(cfg, sess, logger)
			if err != nil {
				logger.Fatalf("Failed to create MQTT bridge: %v", err)
			}
			sess.Subscribe(bridge.Publish)
			if err := bridge.Connect(); err != nil {
				logger.Fatalf("Failed to connect to MQTT: %v", err)
			}
			defer bridge.Disconnect()
		}
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(ctx); err != nil {
			logger.Errorf("Panel server error: %v", err)
			cancel()
		}
	}()

	if sess != nil {
		go func() {
			if err := sess.Connect(ctx); err != nil {
				logger.Errorf("Initial connect failed: %v", err)
			}
		}()
	}

	logger.Info("All services started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down...")
	cancel()

	if sess != nil {
		sess.Disconnect()
	}
	srv.Stop()

	wg.Wait()
	logger.Info("Shutdown complete")
}

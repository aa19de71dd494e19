package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgmonteleone/pubsub-webhook/internal/config"
	"github.com/mgmonteleone/pubsub-webhook/internal/doctor"
	"github.com/mgmonteleone/pubsub-webhook/internal/log"
	"github.com/mgmonteleone/pubsub-webhook/internal/metric"
	"github.com/mgmonteleone/pubsub-webhook/internal/publisher"
	"github.com/mgmonteleone/pubsub-webhook/internal/webhook"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "check":
		os.Exit(runCheck(args))
	case "version":
		fmt.Printf("pubsub-webhook version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`pubsub-webhook - Webhook-to-pub/sub relay with CIDR origin filtering

Usage:
  pubsub-webhook <command> [flags]

Commands:
  start     Start the webhook server in foreground
  check     Validate configuration without starting
  version   Show version information
  help      Show this help message

Configuration is read from --config (YAML) and environment variables
(NATS_URL, TOPIC_NAME, TOPIC_PROJECT, IP_WHITELIST, LISTEN_ADDR).
`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (optional)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("pubsub-webhook starting", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Missing required configuration degrades the process instead of
	// crash-looping: every request is answered with 500 until redeployed.
	server, cleanup := buildServer(cfg, logger)
	defer cleanup()

	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		// Start returns only after the HTTP server has drained in-flight
		// requests; wait for it so responses are not cut off.
		if err := <-done; err != nil && err != context.Canceled {
			logger.Error("server shutdown failed", "error", err)
			return 1
		}
		return 0
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	}
}

// buildServer wires config, publisher and metrics into the webhook server,
// falling back to a degraded server when startup configuration is invalid.
func buildServer(cfg *config.Config, logger *slog.Logger) (*webhook.Server, func()) {
	noop := func() {}

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid, serving degraded", "error", err)
		return webhook.NewDegraded(cfg.Webhook.Listen, err, log.WithComponent("webhook")), noop
	}

	webhookCfg, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("configuration invalid, serving degraded", "error", err)
		return webhook.NewDegraded(cfg.Webhook.Listen, err, log.WithComponent("webhook")), noop
	}

	pub, err := publisher.Connect(publisher.Options{
		URL:       cfg.Broker.URL,
		Timeout:   cfg.Broker.PublishTimeout,
		JetStream: cfg.Broker.JetStream,
		Logger:    log.WithComponent("publisher"),
	})
	if err != nil {
		logger.Error("broker connection failed, serving degraded", "error", err)
		return webhook.NewDegraded(cfg.Webhook.Listen, err, log.WithComponent("webhook")), noop
	}

	logger.Info("broker connected",
		"url", cfg.Broker.URL,
		"subject", cfg.Broker.Subject(),
		"jetstream", cfg.Broker.JetStream,
	)

	metrics := metric.New()
	server := webhook.New(webhookCfg, pub, metrics, log.WithComponent("webhook"))
	return server, pub.Close
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (optional)")
	jsonOut := fs.Bool("json", false, "Emit the report as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printReport(result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printReport(r *doctor.Result) {
	for _, e := range r.Errors {
		fmt.Printf("ERROR  [%s] %s", e.Category, e.Message)
		if e.Field != "" {
			fmt.Printf(" (%s)", e.Field)
		}
		fmt.Println()
	}
	for _, w := range r.Warnings {
		fmt.Printf("WARN   [%s] %s", w.Category, w.Message)
		if w.Field != "" {
			fmt.Printf(" (%s)", w.Field)
		}
		fmt.Println()
	}
	if r.Valid {
		fmt.Println("Configuration OK")
	} else {
		fmt.Printf("Configuration invalid: %d error(s)\n", len(r.Errors))
	}
}

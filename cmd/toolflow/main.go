// Command toolflow runs a step pipeline over a set of entities against a
// JSON-RPC tool endpoint, with an optional monitoring dashboard.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"toolflow/pkg/config"
	"toolflow/pkg/eventlog"
	"toolflow/pkg/logx"
	"toolflow/pkg/persistence"
	"toolflow/pkg/pipeline"
	"toolflow/pkg/tool"
	"toolflow/pkg/tool/circuit"
	"toolflow/pkg/tool/metrics"
	"toolflow/pkg/tool/retry"
	"toolflow/pkg/tool/rpc"
	"toolflow/pkg/version"
	"toolflow/pkg/webui"
)

func main() {
	var (
		configPath   string
		pipelinePath string
		entitiesArg  string
		endpoint     string
		serve        bool
		addr         string
		showVersion  bool
	)
	flag.StringVar(&configPath, "config", config.DefaultConfigFile, "Path to config file")
	flag.StringVar(&pipelinePath, "pipeline", "", "Path to pipeline definition (YAML)")
	flag.StringVar(&entitiesArg, "entities", "", "Comma-separated entity IDs (or pass as arguments)")
	flag.StringVar(&endpoint, "endpoint", "", "JSON-RPC tool endpoint (overrides config)")
	flag.BoolVar(&serve, "serve", false, "Start the monitoring dashboard")
	flag.StringVar(&addr, "addr", "", "Dashboard listen address (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("toolflow %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if endpoint != "" {
		cfg.Tool.Endpoint = endpoint
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if serve {
		cfg.Server.Enabled = true
	}

	entities := splitEntities(entitiesArg)
	entities = append(entities, flag.Args()...)

	if pipelinePath == "" && !cfg.Server.Enabled {
		log.Fatalf("Nothing to do: provide -pipeline or -serve")
	}
	if pipelinePath != "" && cfg.Tool.Endpoint == "" {
		log.Fatalf("Tool endpoint required: set -endpoint, TOOLFLOW_ENDPOINT, or tool.endpoint in config")
	}
	if pipelinePath != "" && len(entities) == 0 {
		log.Fatalf("No entities to process: set -entities or pass them as arguments")
	}

	if err := run(cfg, pipelinePath, entities); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *config.Config, pipelinePath string, entities []string) error {
	logger := logx.NewLogger("toolflow")

	breakers := circuit.NewRegistry(circuit.Config{
		FailureThreshold: cfg.Tool.BreakerFailureThreshold,
		ReopenDelay:      cfg.Tool.BreakerReopenDelay(),
	})
	stats := metrics.NewRegistry()
	recorder := metrics.Multi(stats, metrics.NewPrometheusRecorder())

	client := tool.NewClient(tool.Options{
		Transport: rpc.NewHTTPTransport(cfg.Tool.Endpoint, cfg.Tool.Timeout()),
		Breakers:  breakers,
		Retry: retry.NewPolicy(retry.Config{
			MaxRetries:    cfg.Tool.MaxRetries,
			BaseDelay:     cfg.Tool.RetryBaseDelay(),
			MaxDelay:      cfg.Tool.RetryMaxDelay(),
			BackoffFactor: cfg.Tool.RetryBackoffFactor,
			Jitter:        cfg.Tool.RetryJitter,
		}, nil),
		Recorder: recorder,
		Timeout:  cfg.Tool.Timeout(),
	})

	writer, err := eventlog.NewWriter(cfg.EventLog.Dir)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer writer.Close() //nolint:errcheck

	store, err := persistence.Open(cfg.Persistence.Path)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer store.Close() //nolint:errcheck

	broker := webui.NewBroker()
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpServer *http.Server
	if cfg.Server.Enabled {
		mux := http.NewServeMux()
		webui.NewServer(broker, stats, breakers, store, prometheus.DefaultGatherer).RegisterRoutes(mux)
		httpServer = &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("dashboard listening on %s", cfg.Server.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("dashboard server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
	}

	if pipelinePath == "" {
		// Dashboard-only mode: serve until interrupted.
		<-ctx.Done()
		return nil
	}

	spec, steps, err := pipeline.Load(pipelinePath)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}

	orch, err := pipeline.New(client, steps, pipeline.Options{
		Concurrency: cfg.Orchestrator.Concurrency,
		EventBuffer: cfg.Orchestrator.EventBuffer,
	})
	if err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}

	runID := uuid.New().String()
	if err := store.BeginRun(runID, spec.Name, len(entities), time.Now()); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	logger.Info("run %s: pipeline %s, %d entities", runID, spec.Name, len(entities))

	encoder := json.NewEncoder(os.Stdout)
	var failed int
	for ev := range orch.Run(ctx, entities) {
		if err := encoder.Encode(ev); err != nil {
			logger.Error("failed to write event: %v", err)
		}
		if err := writer.Append(ev); err != nil {
			logger.Error("failed to log event: %v", err)
		}
		broker.Publish(ev)

		switch ev.Type {
		case pipeline.EventEntityEnd:
			if err := store.RecordEntity(persistence.EntityOutcome{
				RunID:       runID,
				Entity:      ev.Entity,
				Success:     ev.Success,
				Error:       ev.Error,
				CompletedAt: ev.Timestamp,
			}); err != nil {
				logger.Error("failed to record entity %s: %v", ev.Entity, err)
			}
		case pipeline.EventWorkflowEnd:
			failed = ev.Failed
			if err := store.CompleteRun(runID, ev.Succeeded, ev.Failed, ev.Timestamp); err != nil {
				logger.Error("failed to record run completion: %v", err)
			}
		}
	}

	if err := store.RecordToolStats(runID, stats.Snapshot()); err != nil {
		logger.Error("failed to record tool stats: %v", err)
	}

	if cfg.Server.Enabled {
		logger.Info("run complete, dashboard still serving (Ctrl-C to exit)")
		<-ctx.Done()
	}

	if failed > 0 {
		return fmt.Errorf("run %s: %d of %d entities failed", runID, failed, len(entities))
	}
	return nil
}

func splitEntities(arg string) []string {
	if arg == "" {
		return nil
	}
	parts := strings.Split(arg, ",")
	entities := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			entities = append(entities, p)
		}
	}
	return entities
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parlavoice/core/internal/capture"
	"github.com/parlavoice/core/internal/config"
	"github.com/parlavoice/core/internal/db"
	"github.com/parlavoice/core/internal/history"
	"github.com/parlavoice/core/internal/logging"
	"github.com/parlavoice/core/internal/models"
	"github.com/parlavoice/core/internal/monitor"
	parlasync "github.com/parlavoice/core/internal/sync"
	"github.com/parlavoice/core/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	dataDir := flag.String("data", "", "override the data directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Init(os.Stdout, logging.LevelInfo)
		logging.Error("failed to load config", err, nil)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	logging.Init(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	log := logging.Scoped("desktop")

	queue := capture.NewQueue(cfg.Capture.QueueCapacity)
	cols := capture.NewColumnCache(nil)
	interceptor := capture.NewInterceptor(queue, cols)

	database, err := db.Open(cfg.DataDir, interceptor)
	if err != nil {
		log.Error("failed to open database", err, map[string]interface{}{
			"data_dir": cfg.DataDir,
		})
		os.Exit(1)
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		log.Error("failed to apply migrations", err, nil)
		os.Exit(1)
	}

	cols.Bind(database.DB)
	if err := cols.Warm(); err != nil {
		log.Warn("failed to warm column cache", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cache, err := db.NewContactCache(db.DefaultContactCacheSize)
	if err != nil {
		log.Error("failed to create contact cache", err, nil)
		os.Exit(1)
	}

	ledger := history.NewLedger(database.DB)
	repo := db.NewRepository(database.DB, ledger, cache)
	defer repo.Close()

	transport := parlasync.NewDataTransport(parlasync.NoopSender{}, cfg.Transport.MaxRetries)

	hub := NewWSHub()

	dispatcher := capture.NewDispatcher(queue)
	dispatcher.SetCallback(hub.BroadcastChange)
	dispatcher.Start()
	defer dispatcher.Stop()

	mon := monitor.New(ledger, cfg.Monitor.PollInterval, cfg.Monitor.Batch)
	mon.RegisterHandler(models.EntityContact, parlasync.NewContactHandler(repo, transport, ledger, cache))
	mon.RegisterHandler(models.EntityMessage, parlasync.NewMessageHandler(repo, transport, ledger))
	mon.Start()
	defer mon.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", HandleWebSocket(hub))
	mux.HandleFunc("/api/health", handleHealth(hub))
	mux.HandleFunc("/api/history", handleHistory(ledger))
	mux.HandleFunc("/api/network", handleNetwork(transport, hub))

	server := &http.Server{
		Addr:    cfg.Desktop.WebSocketAddr,
		Handler: mux,
	}

	if cfg.Desktop.MetricsAddr != "" {
		go serveMetrics(cfg.Desktop.MetricsAddr, log)
	}

	go func() {
		log.Info("desktop host listening", map[string]interface{}{
			"addr": cfg.Desktop.WebSocketAddr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", err, nil)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("server shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleHealth reports process liveness and client count.
func handleHealth(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"service": "parla-desktop",
			"clients": hub.ClientCount(),
		})
	}
}

// handleHistory dumps the full history ledger as JSON.
func handleHistory(ledger *history.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		records, err := ledger.All()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []models.HistoryRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

// handleNetwork toggles transport availability: POST {"available": bool}.
func handleNetwork(transport *parlasync.DataTransport, hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]bool{
				"available": transport.NetworkAvailable(),
			})
		case http.MethodPost:
			var body struct {
				Available bool `json:"available"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid body", http.StatusBadRequest)
				return
			}
			transport.SetNetworkAvailable(body.Available)
			hub.BroadcastNetwork(body.Available)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// serveMetrics exposes the counters in Prometheus text format on a
// separate listener so the UI port stays private to the hub.
func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		text, err := telemetry.Gather()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(text))
	})

	log.Info("metrics listening", map[string]interface{}{"addr": addr})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkadio/tontine/internal/service"
	"github.com/mkadio/tontine/internal/storage/sqlite"
	"github.com/mkadio/tontine/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/tontine.db")
	port := getEnv("PORT", "8080")

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	locks := service.NewAssociationLocks()
	ledgers := service.NewLedgerService(store, locks)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	// Batch reconciliation, the ops replacement for ad-hoc fix scripts:
	// rebuilds every association's ledger aggregates from source records,
	// skipping failures.
	mux.HandleFunc("/admin/reconcile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		reports, err := ledgers.ReconcileAll(r.Context())
		if err != nil {
			slog.Error("Batch reconciliation failed", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		type entry struct {
			AssociationID string `json:"association_id"`
			Drift         bool   `json:"drift"`
			Error         string `json:"error,omitempty"`
		}
		out := make([]entry, 0, len(reports))
		for _, rep := range reports {
			e := entry{AssociationID: rep.AssociationID, Drift: rep.Drift}
			if rep.Err != nil {
				e.Error = rep.Err.Error()
			}
			out = append(out, e)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	handler := loggingMiddleware(mux)

	addr := ":" + port
	slog.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// loggingMiddleware logs all incoming requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

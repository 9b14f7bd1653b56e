package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pbtavares/gympay/internal/api"
	"github.com/pbtavares/gympay/internal/config"
	"github.com/pbtavares/gympay/internal/gateway"
	"github.com/pbtavares/gympay/internal/notify"
	"github.com/pbtavares/gympay/internal/report"
	"github.com/pbtavares/gympay/internal/service"
	"github.com/pbtavares/gympay/internal/storage/sqlite"
	"github.com/pbtavares/gympay/pkg/logging"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the payment API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

func serve(configPath string) error {
	logging.Setup()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.Database.Path)

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if cfg.NATS.URL != "" {
		nd, err := notify.NewNATSDispatcher(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nd.Close()
		dispatcher = nd
		slog.Info("notification dispatch via nats", "url", cfg.NATS.URL)
	}

	authorizer := gateway.NewSimulatedAuthorizer(
		gateway.WithDecider(gateway.RandomDecider{ApprovalRate: cfg.Gateway.ApprovalRate}),
	)

	payments := service.NewPaymentService(store, dispatcher, authorizer)
	reconciler := service.NewReconciler(store, dispatcher)
	reports := report.NewBuilder(store)

	mux := http.NewServeMux()
	api.NewHandler(payments, reconciler, reports).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := loggingMiddleware(corsMiddleware(mux))

	// h2c lets gRPC-style clients reach us over HTTP/2 without TLS; a
	// reverse proxy terminates TLS in front.
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	slog.Info("payment server starting", "address", cfg.Server.Addr)
	return http.ListenAndServe(cfg.Server.Addr, h2cHandler)
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Info("request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		next.ServeHTTP(w, r)

		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for the mobile/web clients
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfolio/fundfacts/internal/budget"
	"github.com/quantfolio/fundfacts/internal/model"
	"github.com/quantfolio/fundfacts/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fund-facts lookup server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLookup(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Background budget checks while the server runs.
		checker := monitoring.NewChecker(env.Collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, cfg.Server.APIKey),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP surface: health, stats, and the lookup endpoint.
func newRouter(env *lookupEnv, apiKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := env.Store.Ping(req.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{
			"status":  status,
			"breaker": env.Fetcher.BreakerState().String(),
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(apiKey))

		r.Get("/v1/stats", func(w http.ResponseWriter, req *http.Request) {
			snap, err := env.Collector.Collect(req.Context())
			if err != nil {
				zap.L().Error("stats collection failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Post("/v1/funds/lookup", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Name          string `json:"name"`
				AMFICode      string `json:"amfi_code"`
				ISIN          string `json:"isin"`
				MinConfidence string `json:"min_confidence"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}

			fund := model.FundIdentity{
				Name:         body.Name,
				RegistryCode: body.AMFICode,
				ISIN:         body.ISIN,
			}

			var minConf model.Confidence
			if body.MinConfidence != "" {
				mc, err := model.ParseConfidence(body.MinConfidence)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
					return
				}
				minConf = mc
			}

			resp, err := env.Orchestrator.Lookup(req.Context(), fund, minConf)
			if err != nil {
				var limitErr *budget.LimitError
				if errors.As(err, &limitErr) {
					w.Header().Set("Retry-After", strconv.Itoa(limitErr.RetryAfterSecs))
					writeJSON(w, http.StatusTooManyRequests, limitErr)
					return
				}
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}

			writeJSON(w, http.StatusOK, resp)
		})
	})

	return r
}

// requireAPIKey rejects requests missing the configured key. An empty
// configured key disables the check.
func requireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if apiKey != "" && req.Header.Get("X-API-Key") != apiKey {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

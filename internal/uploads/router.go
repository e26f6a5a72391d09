package uploads

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"wayfinder/internal/observability"
	"wayfinder/internal/session"
)

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Signer         *Signer
	Verifier       *session.Verifier
	Metrics        *observability.Collector
	MetricsPath    string
	AllowedOrigins []string
	CORSMaxAge     int
	Logger         *zap.Logger
}

// NewRouter builds the HTTP handler of the upload signing service.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("uploads")

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Logger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           cfg.CORSMaxAge,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics.Handler())
	}

	r.Route("/api/upload", func(r chi.Router) {
		r.Use(Authenticate(cfg.Verifier, logger))
		r.Get("/signature", signatureHandler(cfg.Signer, logger))
	})
	return r
}

func signatureHandler(s *Signer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sig := s.Sign()
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			logger.Debug("Issued upload signature",
				zap.String("user_id", claims.UserID),
				zap.Int64("timestamp", sig.Timestamp),
			)
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, sig)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/metrics"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterOptions struct {
	Limit   RateLimit
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Pingers map[string]Pinger
}

// NewRouter wires the websocket endpoint, the REST surface, health and metrics.
func NewRouter(service *app.QuizService, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()
	r.Use(opts.Metrics.Middleware)

	r.HandleFunc("/healthz", healthFunc(opts.Pingers, logger)).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws", NewWSHandler(service, opts.Limit, logger, opts.Metrics).ServeWS)
	NewQuizHandler(service, logger).Register(r)

	stdLog := zap.NewStdLog(logger)
	var h http.Handler = r
	h = handlers.CombinedLoggingHandler(stdLog.Writer(), h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(stdLog), handlers.PrintRecoveryStack(true))(h)
	return h
}

func healthFunc(pingers map[string]Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				returnHTTPMessage(w, http.StatusServiceUnavailable, "unavailable", name+" unreachable")
				return
			}
		}
		returnHTTPMessage(w, http.StatusOK, "ok", "ok")
	}
}

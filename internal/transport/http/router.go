package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RouterOptions carries the optional pieces of the HTTP surface.
type RouterOptions struct {
	Logger    *zap.Logger
	Metrics   http.Handler
	StaticDir string
}

// NewRouter mounts the REST API, the live channel and health endpoints on a
// single handler.
func NewRouter(api *APIHandler, ws *WSHandler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(requestLogger(logger))
		r.Post("/ask", api.Ask)
		r.Get("/results", api.Results)
		r.Get("/add", api.Add)
	})

	r.Get("/ws", ws.ServeWS)

	var static http.Handler = http.NotFoundHandler()
	if opts.StaticDir != "" {
		static = http.FileServer(http.Dir(opts.StaticDir))
	}
	// Browser clients open the live channel on the root path.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			ws.ServeWS(w, r)
			return
		}
		static.ServeHTTP(w, r)
	})
	if opts.StaticDir != "" {
		r.Handle("/*", static)
	}
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

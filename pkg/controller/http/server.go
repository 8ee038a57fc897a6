package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/everstory-ai/everstory/pkg/usecase"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

const (
	pathTelephonyGather = "/hooks/telephony/gather"
)

type Server struct {
	router        *chi.Mux
	uc            *usecase.UseCases
	voiceAISecret string
}

type Options func(*Server)

// WithVoiceAISecret enables HMAC signature verification on the voice-AI
// webhook route. Without it the route accepts unsigned requests.
func WithVoiceAISecret(secret string) Options {
	return func(s *Server) {
		s.voiceAISecret = secret
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	// Telephony webhooks: no signature scheme from the provider, handlers
	// must always answer with executable markup
	r.Route("/hooks/telephony", func(r chi.Router) {
		r.Post("/voice", s.handleTelephonyVoice)
		r.Post("/gather", s.handleTelephonyGather)
		r.Post("/status", s.handleTelephonyStatus)
	})

	// Voice-AI webhooks: signature verification when a secret is configured
	r.Route("/hooks/voiceai", func(r chi.Router) {
		if s.voiceAISecret != "" {
			r.Use(VoiceAISignatureMiddleware(s.voiceAISecret))
		}
		r.Post("/event", s.handleVoiceAIEvent)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Default().Error("failed to write JSON response", "error", err)
	}
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

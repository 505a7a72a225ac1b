// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/orgvanize/slackline/pkg/bridge/correlate"
)

// Dedup set sizing: retried deliveries arrive within the transport's retry
// horizon, so an hour of memory over a bounded set is plenty.
const (
	dedupSize = 8192
	dedupTTL  = time.Hour
)

// Bridge owns the resolution context of the process: the identity cache,
// topology, correlation store, DM sessions, and dedup set. Handlers receive
// it explicitly; there is no ambient global state.
type Bridge struct {
	log      zerolog.Logger
	cfg      *Config
	clients  *Registry
	lines    *Lines
	resolver *Resolver
	sessions *Sessions
	store    correlate.Store
	dedup    *Deduper
}

// New wires a Bridge from configuration, registering one platform client
// per configured credential.
func New(cfg *Config, store correlate.Store, log zerolog.Logger) *Bridge {
	clients := NewRegistry()
	for domain, token := range cfg.Tokens {
		clients.Add(domain, NewSlackAPI(token))
	}
	return NewWithClients(cfg, store, clients, log)
}

// NewWithClients is New with an externally built client registry, the seam
// tests use to substitute fakes.
func NewWithClients(cfg *Config, store correlate.Store, clients *Registry, log zerolog.Logger) *Bridge {
	lines := NewLines(log)
	return &Bridge{
		log:      log,
		cfg:      cfg,
		clients:  clients,
		lines:    lines,
		resolver: NewResolver(clients, lines, log),
		sessions: NewSessions(),
		store:    store,
		dedup:    NewDeduper(dedupSize, dedupTTL),
	}
}

// Bootstrap pre-populates the identity cache for every configured
// workspace. Failures degrade; they do not halt the process.
func (b *Bridge) Bootstrap(ctx context.Context) bool {
	return b.resolver.Bootstrap(ctx)
}

// Routes builds the HTTP surface: the single webhook endpoint plus a health
// probe.
func (b *Bridge) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(b.log))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Post("/", b.handleInbound)
	return r
}

// handleInbound is the single webhook entrypoint. Commands and handshakes
// are answered synchronously; platform events are acknowledged immediately
// and processed without blocking the response.
func (b *Bridge) handleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		b.log.Warn().Err(err).Msg("Failed to read request payload")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		b.log.Warn().Msg("Empty request payload")
		w.Write([]byte("Empty request payload"))
		return
	}

	if b.dedup.Seen(body) {
		b.log.Info().Msg("Acknowledging duplicate request")
		return
	}

	payload, err := classify(body)
	if err != nil {
		b.log.Warn().Err(err).Msg("Unparseable request payload")
		w.Write([]byte("Unparseable request payload"))
		return
	}

	switch payload.kind {
	case kindHandshake:
		w.Write([]byte(payload.challenge))
	case kindCommand:
		w.Write([]byte(b.handleCommand(r.Context(), payload.command)))
	case kindEvent:
		// Fire and forget: the transport only wants an ack, and a stalled
		// external call must not stall the router.
		go b.handleEvent(context.WithoutCancel(r.Context()), payload.event)
	default:
		b.log.Warn().Str("payload", string(body)).Msg("Unhandled request type in payload")
		w.Write([]byte("Unhandled request type"))
	}
}

// requestLogger is a chi middleware that logs each request through zerolog.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("request completed")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

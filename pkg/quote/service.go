package quote

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/pricingkit/pkg/logger"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// Config configures the session store.
type Config struct {
	SessionCapacity int           `env:"QUOTE_SESSION_CAPACITY" envDefault:"10000"`
	SessionTTL      time.Duration `env:"QUOTE_SESSION_TTL" envDefault:"30m"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEngineOptions sets the options every session engine is created with.
func WithEngineOptions(opts ...pricing.Option) Option {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithSessionCapacity caps the number of live sessions. Defaults to 10000.
func WithSessionCapacity(n int) Option {
	if n <= 0 {
		panic("WithSessionCapacity: capacity must be > 0")
	}
	return func(s *Service) { s.capacity = n }
}

// WithSessionTTL drops sessions idle for longer than ttl. Zero keeps them
// until evicted by capacity.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service exposes pricing engines over HTTP: one-shot quotes and stateful
// checkout sessions.
type Service struct {
	resolver   pricing.Resolver
	engineOpts []pricing.Option
	log        *slog.Logger
	capacity   int
	ttl        time.Duration
	now        func() time.Time
	sessions   *store
}

// New creates a Service. Panics if resolver is nil.
func New(resolver pricing.Resolver, opts ...Option) *Service {
	if resolver == nil {
		panic(ErrNilResolver)
	}

	s := &Service{
		resolver: resolver,
		log:      logger.Discard(),
		capacity: 10000,
		ttl:      30 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With(logger.Component("quote"))
	s.sessions = newStore(s.capacity, s.ttl, s.now)
	s.sessions.onEvict = func(sess *Session) {
		s.log.Debug("session dropped", logger.SessionID(sess.ID))
	}
	return s
}

// NewFromConfig creates a Service using the session settings in cfg.
func NewFromConfig(resolver pricing.Resolver, cfg Config, opts ...Option) *Service {
	base := make([]Option, 0, 2+len(opts))
	if cfg.SessionCapacity > 0 {
		base = append(base, WithSessionCapacity(cfg.SessionCapacity))
	}
	base = append(base, WithSessionTTL(cfg.SessionTTL))
	return New(resolver, append(base, opts...)...)
}

// Handler returns the service routes:
//
//	POST   /quote
//	POST   /sessions
//	GET    /sessions/{id}
//	POST   /sessions/{id}/set
//	POST   /sessions/{id}/remove
//	POST   /sessions/{id}/reset
//	DELETE /sessions/{id}
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/quote", s.quote)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/set", s.set)
			r.Post("/remove", s.remove)
			r.Post("/reset", s.reset)
		})
	})
	return r
}

// Quote prices a complete selection with a throwaway engine.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (pricing.PriceSnapshot, error) {
	if details := req.validate(); details != nil {
		return pricing.PriceSnapshot{}, validationError(details)
	}

	e := s.newEngine()
	for _, item := range req.Items() {
		if _, err := e.Set(ctx, item); err != nil {
			return pricing.PriceSnapshot{}, err
		}
	}
	return e.Snapshot(), nil
}

// CreateSession starts a new checkout session.
func (s *Service) CreateSession() *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		Engine:    s.newEngine(),
		CreatedAt: s.now(),
	}
	s.sessions.put(sess)
	s.log.Debug("session created", logger.SessionID(sess.ID), logger.EngineID(sess.Engine.ID()))
	return sess
}

// Session returns a live session.
func (s *Service) Session(id string) (*Session, error) {
	sess, ok := s.sessions.get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// DeleteSession ends a session.
func (s *Service) DeleteSession(id string) error {
	if !s.sessions.delete(id) {
		return ErrSessionNotFound
	}
	return nil
}

// PruneSessions drops idle sessions and returns how many were dropped.
func (s *Service) PruneSessions() int {
	return s.sessions.prune()
}

// RunPruner prunes idle sessions every interval until ctx is done.
func (s *Service) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneSessions(); n > 0 {
				s.log.InfoContext(ctx, "pruned idle sessions", slog.Int("count", n))
			}
		}
	}
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	return s.sessions.len()
}

func (s *Service) newEngine() *pricing.Engine {
	opts := append([]pricing.Option{pricing.WithLogger(s.log)}, s.engineOpts...)
	return pricing.New(s.resolver, opts...)
}

func (s *Service) quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := s.Quote(r.Context(), req)
	if err != nil {
		s.logFailure(r.Context(), err)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "quote", snapshot)
}

func (s *Service) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.CreateSession()
	writeData(w, http.StatusCreated, "session_created", view(sess, pricing.Result{}))
}

func (s *Service) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "session", view(sess, pricing.Result{}))
}

func (s *Service) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteSession(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) set(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req SetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := logger.ContextWithAttrs(r.Context(), logger.SessionID(sess.ID))
	res, err := sess.Engine.Set(ctx, req.Item())
	if err != nil {
		s.logFailure(ctx, err)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "session_updated", view(sess, res))
}

func (s *Service) remove(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req RemoveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := logger.ContextWithAttrs(r.Context(), logger.SessionID(sess.ID))
	res, err := sess.Engine.Remove(ctx, req.Removal())
	if err != nil {
		s.logFailure(ctx, err)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "session_updated", view(sess, res))
}

func (s *Service) reset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Engine.Reset()
	writeData(w, http.StatusOK, "session_reset", view(sess, pricing.Result{}))
}

// logFailure logs upstream failures; usage errors are the caller's concern.
func (s *Service) logFailure(ctx context.Context, err error) {
	if pricing.IsUsageError(err) || pricing.IsNotFound(err) || pricing.CodeOf(err) == pricing.CodeInProgress {
		return
	}
	s.log.ErrorContext(ctx, "pricing request failed", logger.Error(err))
}

func view(sess *Session, res pricing.Result) SessionView {
	return SessionView{
		ID:         sess.ID,
		Selection:  sess.Engine.Selection(),
		Snapshot:   sess.Engine.Snapshot(),
		Superseded: res.Superseded,
	}
}

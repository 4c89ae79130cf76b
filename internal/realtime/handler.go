package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/services"
	"github.com/tbourn/go-nailo-backend/internal/sysutil"
)

// Resolver maps the path identity of a connection to an actor.
type Resolver interface {
	Resolve(ctx context.Context, kindHint, externalID string) (domain.Actor, error)
}

// Options tunes session transport. Zero values select the defaults below.
type Options struct {
	ReadLimit      int64
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	SendBuffer     int
	FrameRPS       float64
	FrameBurst     int
	AllowedOrigins []string
}

const (
	defaultReadLimit    = 64 << 10
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultSendBuffer   = 64
)

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = defaultPongTimeout
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = o.PongTimeout * 9 / 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.FrameRPS > 0 && o.FrameBurst <= 0 {
		o.FrameBurst = int(o.FrameRPS)
		if o.FrameBurst < 1 {
			o.FrameBurst = 1
		}
	}
	return o
}

// FailFunc writes an HTTP error envelope for a refused upgrade.
type FailFunc func(c *gin.Context, status int, code, msg string)

// Handler accepts WebSocket connections on /ws/:kind/:id and runs one
// session per connection until the peer leaves or Shutdown is called.
type Handler struct {
	resolver   Resolver
	registry   *Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	opts       Options

	// Fail writes refusals. It defaults to a plain {code, message} body.
	Fail FailFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHandler wires a Handler.
func NewHandler(res Resolver, reg *Registry, d *Dispatcher, opts Options) *Handler {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		resolver:   res,
		registry:   reg,
		dispatcher: d,
		opts:       opts,
		Fail:       defaultFail,
		ctx:        ctx,
		cancel:     cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin(opts.AllowedOrigins),
	}
	return h
}

func defaultFail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}

// checkOrigin allows any origin when allowed is empty. Requests without an
// Origin header come from non-browser clients and are always allowed.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

// Serve resolves the actor named by the path, upgrades the connection and
// blocks for the life of the session.
//
// @Summary      Open a realtime session
// @Description  Upgrades to a WebSocket bound to the customer or shop named in the path. Unknown kinds and ids are refused before the upgrade.
// @Tags         realtime
// @Param        kind  path  string  true  "customer or shop"
// @Param        id    path  string  true  "external id"
// @Success      101
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /ws/{kind}/{id} [get]
func (h *Handler) Serve(c *gin.Context) {
	actor, err := h.resolver.Resolve(c.Request.Context(), c.Param("kind"), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidKind):
			h.Fail(c, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, services.ErrActorNotFound):
			h.Fail(c, http.StatusNotFound, "not_found", err.Error())
		default:
			log.Error().Err(err).Str("kind", c.Param("kind")).Msg("resolve actor")
			h.Fail(c, http.StatusInternalServerError, "internal_error", "could not resolve actor")
		}
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.Fail(c, http.StatusServiceUnavailable, "unavailable", "server is shutting down")
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		log.Debug().Err(err).Str("actor_id", actor.ID).Msg("websocket upgrade failed")
		return
	}

	s := newSession(conn, actor, h.opts, sysutil.Component("realtime"))
	h.registry.Register(s, s.key)
	defer h.registry.Unregister(s, s.key)
	defer s.close()

	s.log.Info().Msg("session opened")
	start := time.Now()
	err = h.run(s)
	ev := s.log.Info()
	if err != nil && !isNormalClose(err) {
		ev = s.log.Warn().Err(err)
	}
	ev.Dur("duration", time.Since(start)).Msg("session closed")
}

// run drives one open session. The read pump feeds frames into inbound;
// the loop is the sole writer on the connection.
func (h *Handler) run(s *Session) error {
	g, ctx := errgroup.WithContext(h.ctx)
	inbound := make(chan []byte)

	g.Go(func() error { return h.readPump(ctx, s, inbound) })
	g.Go(func() error { return h.loop(ctx, s, inbound) })
	return g.Wait()
}

func (h *Handler) readPump(ctx context.Context, s *Session, inbound chan<- []byte) error {
	conn := s.conn
	conn.SetReadLimit(h.opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
		if mt != websocket.TextMessage {
			return errBinaryFrame
		}
		select {
		case inbound <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Handler) loop(ctx context.Context, s *Session, inbound <-chan []byte) (err error) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	defer func() {
		s.close()
		_ = s.conn.WriteControl(websocket.CloseMessage, closePayload(err), time.Now().Add(time.Second))
		_ = s.conn.Close()
	}()

	// Frames must finish even if the peer disconnects halfway through.
	frameCtx := s.log.WithContext(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw := <-inbound:
			var out any
			if s.allow() {
				out = h.dispatcher.Dispatch(frameCtx, s.actor, s.id, raw)
			} else {
				framesTotal.WithLabelValues("unknown", "rate_limited").Inc()
				out = errorFrame{Error: ErrRateLimited.Error()}
			}
			if err := s.writeJSON(out); err != nil {
				return err
			}

		case ev := <-s.events:
			frame := handleEvent(ev)
			if frame == nil {
				s.log.Warn().Str("event", string(ev.Type())).Msg("no frame for event")
				continue
			}
			if err := s.writeJSON(frame); err != nil {
				return err
			}

		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return err
			}
		}
	}
}

func closePayload(err error) []byte {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	case errors.Is(err, errBinaryFrame):
		return websocket.FormatCloseMessage(websocket.CloseUnsupportedData, err.Error())
	case errors.Is(err, websocket.ErrReadLimit):
		return websocket.FormatCloseMessage(websocket.CloseMessageTooBig, "")
	default:
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	}
}

func isNormalClose(err error) bool {
	return errors.Is(err, context.Canceled) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// Shutdown stops accepting sessions, closes the open ones and waits for
// them to unregister or for ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// compile-time check
var _ Subscriber = (*Session)(nil)

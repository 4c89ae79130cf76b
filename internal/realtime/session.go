package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// Session is one open WebSocket connection bound to a resolved actor.
//
// Events reach the session through Deliver, which never blocks: the registry
// hands events over from arbitrary goroutines and a slow client must not
// stall a broadcast. The session's own loop is the only writer to conn.
type Session struct {
	id    string
	actor domain.Actor
	key   domain.GroupKey

	conn         *websocket.Conn
	writeTimeout time.Duration
	limiter      *rate.Limiter
	log          zerolog.Logger

	events    chan domain.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, actor domain.Actor, opts Options, base zerolog.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		id:           id,
		actor:        actor,
		key:          actor.GroupKey(),
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
		events:       make(chan domain.Event, opts.SendBuffer),
		done:         make(chan struct{}),
	}
	if opts.FrameRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.FrameRPS), opts.FrameBurst)
	}
	s.log = base.With().
		Str("session_id", id).
		Str("actor_kind", actor.Kind.String()).
		Str("actor_id", actor.ID).
		Logger()
	return s
}

// ID implements Subscriber.
func (s *Session) ID() string { return s.id }

// Actor returns the identity the session was opened for.
func (s *Session) Actor() domain.Actor { return s.actor }

// Deliver implements Subscriber. It reports false once the session is
// closing or when its send buffer is full.
func (s *Session) Deliver(ev domain.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// close marks the session as closing. Safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// allow reports whether one more inbound frame fits the session's budget.
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

func (s *Session) writeJSON(v any) error {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteJSON(v)
}

func (s *Session) writePing() error {
	deadline := time.Now().Add(time.Second)
	if s.writeTimeout > 0 {
		deadline = time.Now().Add(s.writeTimeout)
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

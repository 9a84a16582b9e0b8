package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/nback/internal/nback"
	"github.com/kiliankoe/nback/internal/session"
)

type ConnCtx struct {
	Code  string
	Token string
	Role  string // "owner" | "viewer"
}

type Server struct {
	Sessions *session.Manager

	io *socketio.Server

	mu      sync.Mutex
	members map[string]map[string]socketio.Conn // sessionCode -> socketID -> Conn
	subs    map[string]func()                   // sessionCode -> unsubscribe
}

func New(sessions *session.Manager) *Server {
	srv := &Server{
		Sessions: sessions,
		members:  make(map[string]map[string]socketio.Conn),
		subs:     make(map[string]func()),
	}
	// sessions can also be closed over HTTP or replaced in single-session mode
	sessions.OnClose(srv.unsubscribe)
	return srv
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// session:create
	io.OnEvent("/", "session:create", func(s socketio.Conn, payload struct {
		Game    string `json:"game"`
		Profile string `json:"profile"`
	}) map[string]any {
		code, token, err := srv.Sessions.Create(payload.Game, payload.Profile)
		if err != nil {
			return srv.err(s, "bad_request", err.Error())
		}
		sess, _ := srv.Sessions.Get(code)
		srv.attach(s, sess, &ConnCtx{Code: code, Token: token, Role: "owner"})
		log.Info().Str("sid", s.ID()).Str("code", code).Str("profile", sess.Profile).Msg("session:create")
		s.Emit("nback:state", sess.Game.Snapshot())
		return map[string]any{"sessionCode": code, "ownerToken": token}
	})

	// session:resume (reconnection, or watching without a token)
	io.OnEvent("/", "session:resume", func(s socketio.Conn, payload struct {
		SessionCode string `json:"sessionCode"`
		Token       string `json:"token"`
	}) map[string]any {
		sess, err := srv.Sessions.Get(payload.SessionCode)
		if err != nil {
			return srv.err(s, "session_not_found", "Session not found")
		}
		role := "viewer"
		if payload.Token != "" {
			if payload.Token != sess.OwnerToken {
				return srv.err(s, "unauthorized", "Invalid session token")
			}
			role = "owner"
		}
		srv.attach(s, sess, &ConnCtx{Code: payload.SessionCode, Token: payload.Token, Role: role})
		log.Info().Str("sid", s.ID()).Str("code", payload.SessionCode).Str("role", role).Msg("session:resume")
		s.Emit("nback:state", sess.Game.Snapshot())
		return map[string]any{"ok": true, "role": role}
	})

	io.OnEvent("/", "nback:start", func(s socketio.Conn) map[string]any {
		return srv.act(s, "nback:start", func(sess *session.Session, token string) (map[string]any, error) {
			return map[string]any{"ok": true}, sess.Start(token)
		})
	})

	io.OnEvent("/", "nback:press", func(s socketio.Conn) map[string]any {
		return srv.act(s, "nback:press", func(sess *session.Session, token string) (map[string]any, error) {
			o, accepted, err := sess.Press(token)
			return map[string]any{"accepted": accepted, "outcome": o}, err
		})
	})

	io.OnEvent("/", "nback:stop", func(s socketio.Conn) map[string]any {
		return srv.act(s, "nback:stop", func(sess *session.Session, token string) (map[string]any, error) {
			return map[string]any{"ok": true}, sess.Stop(token)
		})
	})

	io.OnEvent("/", "session:close", func(s socketio.Conn) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if err := srv.Sessions.Close(ctx.Code, ctx.Token); err != nil {
			return srv.err(s, "bad_request", err.Error())
		}
		log.Info().Str("code", ctx.Code).Msg("session:close")
		return map[string]any{"ok": true}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if ctx, ok := s.Context().(*ConnCtx); ok && ctx.Code != "" {
			srv.removeMember(ctx.Code, s)
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	// Mount to router
	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) act(s socketio.Conn, event string, fn func(*session.Session, string) (map[string]any, error)) map[string]any {
	ctx, _ := s.Context().(*ConnCtx)
	if ctx == nil || ctx.Code == "" {
		return srv.err(s, "session_not_found", "No session joined")
	}
	sess, err := srv.Sessions.Get(ctx.Code)
	if err != nil {
		return srv.err(s, "session_not_found", "Session not found")
	}
	out, err := fn(sess, ctx.Token)
	if err != nil {
		return srv.err(s, "unauthorized", err.Error())
	}
	log.Debug().Str("code", ctx.Code).Msg(event)
	return out
}

func (srv *Server) attach(s socketio.Conn, sess *session.Session, ctx *ConnCtx) {
	s.SetContext(ctx)
	s.Join(sess.Code)
	srv.addMember(sess.Code, s)
	srv.subscribe(sess)
}

// subscribe relays engine notifications to the session's room, once per session.
func (srv *Server) subscribe(sess *session.Session) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if _, ok := srv.subs[sess.Code]; ok {
		return
	}
	code := sess.Code
	srv.subs[code] = sess.Game.Subscribe(func(snap nback.Snapshot) {
		srv.broadcast(code, snap)
	})
}

func (srv *Server) broadcast(code string, snap nback.Snapshot) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", code, "nback:state", snap)
	if snap.Status == nback.StatusResults {
		srv.io.BroadcastToRoom("/", code, "nback:result", map[string]any{
			"score":    snap.Score,
			"accuracy": snap.Accuracy,
			"counters": snap.Counters,
		})
	}
}

func (srv *Server) unsubscribe(code string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if cancel, ok := srv.subs[code]; ok {
		cancel()
		delete(srv.subs, code)
	}
}

func (srv *Server) addMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][c.ID()] = c
}

// removeMember drops the relay for a session once nobody is watching it.
func (srv *Server) removeMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	m := srv.members[code]
	if m != nil {
		delete(m, c.ID())
	}
	empty := len(m) == 0
	if empty {
		delete(srv.members, code)
	}
	srv.mu.Unlock()
	if empty {
		srv.unsubscribe(code)
	}
}

func (srv *Server) Members(code string) int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.members[code])
}

func (srv *Server) err(s socketio.Conn, code, message string) map[string]any {
	s.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message}
}

// Package httpapi exposes sessions, scores and history over JSON.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/nback/internal/catalog"
	"github.com/kiliankoe/nback/internal/config"
	"github.com/kiliankoe/nback/internal/nback"
	"github.com/kiliankoe/nback/internal/session"
	"github.com/kiliankoe/nback/internal/store"
)

const tokenHeader = "X-Session-Token"

type Server struct {
	Sessions *session.Manager
	Scores   *store.Scores
	History  *store.History
	Profiles config.Profiles
}

// AccessLog logs every request except the socket.io polling noise.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

func (srv *Server) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	api := r.Group("/api")
	api.GET("/games", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"games": catalog.All()})
	})
	api.GET("/profiles", srv.listProfiles)
	api.GET("/scores", srv.getScores)
	api.DELETE("/scores", srv.resetScores)
	api.GET("/history", srv.getHistory)

	api.GET("/session/active", func(c *gin.Context) {
		if code, sess := srv.Sessions.Active(); sess != nil {
			c.JSON(http.StatusOK, gin.H{"sessionCode": code})
			return
		}
		c.Status(http.StatusNotFound)
	})
	api.POST("/sessions", srv.createSession)
	api.GET("/sessions/:code", srv.getSession)
	api.DELETE("/sessions/:code", srv.closeSession)
	api.POST("/sessions/:code/start", srv.withSession(func(c *gin.Context, s *session.Session, token string) error {
		return s.Start(token)
	}))
	api.POST("/sessions/:code/stop", srv.withSession(func(c *gin.Context, s *session.Session, token string) error {
		return s.Stop(token)
	}))
	api.POST("/sessions/:code/press", srv.press)
}

type profileView struct {
	Name             string   `json:"name"`
	Alphabet         []string `json:"alphabet"`
	N                int      `json:"n"`
	ItemsPerBlock    int      `json:"itemsPerBlock"`
	TotalBlocks      int      `json:"totalBlocks"`
	MatchProbability float64  `json:"matchProbability"`
	InitialDelayMs   int64    `json:"initialDelayMs"`
	IntervalMs       int64    `json:"intervalMs"`
	BlockPauseMs     int64    `json:"blockPauseMs"`
}

func (srv *Server) listProfiles(c *gin.Context) {
	out := make([]profileView, 0, len(srv.Profiles))
	for _, name := range srv.Profiles.Names() {
		p := srv.Profiles[name]
		out = append(out, profileView{
			Name:             name,
			Alphabet:         p.Alphabet,
			N:                p.N,
			ItemsPerBlock:    p.ItemsPerBlock,
			TotalBlocks:      p.TotalBlocks,
			MatchProbability: p.MatchProbability,
			InitialDelayMs:   p.InitialDelay.Milliseconds(),
			IntervalMs:       p.Interval.Milliseconds(),
			BlockPauseMs:     p.BlockPause.Milliseconds(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"profiles": out})
}

func (srv *Server) getScores(c *gin.Context) {
	totals, err := srv.Scores.Totals(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": totals})
}

func (srv *Server) resetScores(c *gin.Context) {
	if err := srv.Scores.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (srv *Server) getHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	list, err := srv.History.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

func (srv *Server) createSession(c *gin.Context) {
	var req struct {
		Game    string `json:"game"`
		Profile string `json:"profile"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	code, token, err := srv.Sessions.Create(req.Game, req.Profile)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("code", code).Str("profile", req.Profile).Msg("session created")
	c.JSON(http.StatusCreated, gin.H{"sessionCode": code, "ownerToken": token})
}

func (srv *Server) getSession(c *gin.Context) {
	s, err := srv.Sessions.Get(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"session": s, "state": s.Game.Snapshot()}
	if res, ok := s.Game.Result(); ok {
		resp["result"] = res
	}
	c.JSON(http.StatusOK, resp)
}

func (srv *Server) closeSession(c *gin.Context) {
	if err := srv.Sessions.Close(c.Param("code"), c.GetHeader(tokenHeader)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (srv *Server) press(c *gin.Context) {
	s, err := srv.Sessions.Get(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	o, accepted, err := s.Press(c.GetHeader(tokenHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "outcome": o, "state": s.Game.Snapshot()})
}

func (srv *Server) withSession(fn func(c *gin.Context, s *session.Session, token string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := srv.Sessions.Get(c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		if err := fn(c, s, c.GetHeader(tokenHeader)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": s.Game.Snapshot()})
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, session.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
	case errors.Is(err, session.ErrUnknownProfile), errors.Is(err, catalog.ErrUnknownGame), errors.Is(err, nback.ErrInvalidConfig):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
	case errors.Is(err, catalog.ErrNotPlayable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_playable"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

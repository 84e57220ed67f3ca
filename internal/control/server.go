// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package control is the local HTTP surface of the publisher: it starts and
// stops the session, answers permission prompts and streams notices.
package control

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/location_publisher/internal/location"
	"github.com/relabs-tech/location_publisher/internal/logger"
	"github.com/relabs-tech/location_publisher/internal/notice"
	"github.com/relabs-tech/location_publisher/internal/session"
)

// Controller is the part of the session the API drives.
type Controller interface {
	Start(studentID string) error
	Stop()
	Status() session.Status
}

// PermissionResolver answers a pending location permission request.
type PermissionResolver interface {
	Resolve(granted bool) error
}

// BrokerStatus reports the broker connection state.
type BrokerStatus interface {
	IsConnected() bool
}

// NoticeStream hands out notice subscriptions.
type NoticeStream interface {
	Subscribe() <-chan notice.Notice
	Unsubscribe(<-chan notice.Notice)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the API listens on loopback by default
	},
}

const wsWriteTimeout = 5 * time.Second

// Server is the control API.
type Server struct {
	address  string
	session  Controller
	perm     PermissionResolver
	broker   BrokerStatus
	notices  NoticeStream
	gatherer prometheus.Gatherer
	log      logger.Logger

	router *gin.Engine

	mu    sync.Mutex
	ln    net.Listener
	inner *http.Server
}

// NewServer builds the router. A nil broker reports disconnected and a nil
// gatherer disables /metrics.
func NewServer(address string, sess Controller, perm PermissionResolver, broker BrokerStatus, notices NoticeStream, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop{}
	}
	s := &Server{
		address:  address,
		session:  sess,
		perm:     perm,
		broker:   broker,
		notices:  notices,
		gatherer: gatherer,
		log:      log,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)

	api := router.Group("/api")
	api.GET("/session", s.onStatus)
	api.POST("/session/start", s.onStart)
	api.POST("/session/stop", s.onStop)
	api.POST("/permission", s.onPermission)

	router.GET("/ws", s.onWebSocket)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start opens the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	inner := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.ln = ln
	s.inner = inner
	s.mu.Unlock()

	go func() {
		if err := inner.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("control server: %v", err)
		}
	}()

	s.log.Infof("listener opened on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close shuts the server down. Websocket streams end when the notice
// stream closes their subscriptions.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	inner := s.inner
	s.inner = nil
	s.ln = nil
	s.mu.Unlock()

	if inner == nil {
		return nil
	}
	s.log.Infof("listener is closing")
	return inner.Shutdown(ctx)
}

func (s *Server) logRequests(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()
	s.log.Debugf("%s %s %d %s", ctx.Request.Method, ctx.Request.URL.Path, ctx.Writer.Status(), time.Since(start))
}

type statusResponse struct {
	State             string `json:"state"`
	StudentID         string `json:"studentId,omitempty"`
	PermissionPending bool   `json:"permissionPending"`
	BrokerConnected   bool   `json:"brokerConnected"`
}

func (s *Server) status() statusResponse {
	st := s.session.Status()
	return statusResponse{
		State:             st.State.String(),
		StudentID:         st.StudentID,
		PermissionPending: st.PermissionPending,
		BrokerConnected:   s.broker != nil && s.broker.IsConnected(),
	}
}

type startRequest struct {
	StudentID string `json:"studentId"`
}

type permissionRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

func (s *Server) writeError(ctx *gin.Context, status int, err error) {
	ctx.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) onStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.status())
}

func (s *Server) onStart(ctx *gin.Context) {
	var req startRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.writeError(ctx, http.StatusBadRequest, err)
		return
	}

	err := s.session.Start(req.StudentID)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, s.status())
	case errors.Is(err, session.ErrPermissionPending):
		ctx.JSON(http.StatusAccepted, s.status())
	case errors.Is(err, session.ErrValidation):
		s.writeError(ctx, http.StatusBadRequest, err)
	default:
		s.writeError(ctx, http.StatusInternalServerError, err)
	}
}

func (s *Server) onStop(ctx *gin.Context) {
	s.session.Stop()
	ctx.JSON(http.StatusOK, s.status())
}

func (s *Server) onPermission(ctx *gin.Context) {
	var req permissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.writeError(ctx, http.StatusBadRequest, err)
		return
	}

	if err := s.perm.Resolve(*req.Granted); err != nil {
		if errors.Is(err, location.ErrNoPendingRequest) {
			s.writeError(ctx, http.StatusConflict, err)
			return
		}
		s.writeError(ctx, http.StatusInternalServerError, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) onWebSocket(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := s.notices.Subscribe()
	defer s.notices.Unsubscribe(sub)

	// the client never sends anything useful; reading detects its close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debugf("websocket read error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case n, ok := <-sub:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout)) //nolint:errcheck
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)) //nolint:errcheck
			if err := conn.WriteJSON(n); err != nil {
				s.log.Debugf("websocket write error: %v", err)
				return
			}
		case <-gone:
			return
		}
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/location_publisher/internal/location"
	"github.com/relabs-tech/location_publisher/internal/metrics"
	"github.com/relabs-tech/location_publisher/internal/notice"
	"github.com/relabs-tech/location_publisher/internal/session"
)

type nopPublisher struct{}

func (nopPublisher) Publish(string, []byte, byte) error { return nil }

type brokerState bool

func (b brokerState) IsConnected() bool { return bool(b) }

type env struct {
	feed *location.Feed
	gate *location.Gate
	hub  *notice.Hub
	sess *session.Session
	srv  *Server
}

func newEnv(t *testing.T, mode location.PermissionMode) *env {
	t.Helper()
	gin.SetMode(gin.ReleaseMode)

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSink(reg)
	require.NoError(t, err)

	e := &env{gate: location.NewPermission(mode), hub: notice.NewHub(nil)}
	e.feed = location.NewFeed(e.gate)
	e.sess = session.New(e.feed, e.gate, nopPublisher{},
		session.WithPolicy(location.Policy{}),
		session.WithNotifier(e.hub),
		session.WithMetrics(sink),
	)
	e.srv = NewServer("127.0.0.1:0", e.sess, e.gate, brokerState(true), e.hub, reg, nil)
	return e
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var st statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	return st
}

func TestSessionLifecycle(t *testing.T) {
	e := newEnv(t, location.PermissionGranted)

	w := e.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decodeStatus(t, w)
	assert.Equal(t, "idle", st.State)
	assert.True(t, st.BrokerConnected)

	w = e.do(t, http.MethodPost, "/api/session/start", `{"studentId":"816035483"}`)
	require.Equal(t, http.StatusOK, w.Code)
	st = decodeStatus(t, w)
	assert.Equal(t, "publishing", st.State)
	assert.Equal(t, "816035483", st.StudentID)
	assert.True(t, e.feed.Subscribed())

	w = e.do(t, http.MethodPost, "/api/session/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decodeStatus(t, w).State)
	assert.False(t, e.feed.Subscribed())
}

func TestStartRejectsBadInput(t *testing.T) {
	e := newEnv(t, location.PermissionGranted)

	w := e.do(t, http.MethodPost, "/api/session/start", `{"studentId":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "student id")

	w = e.do(t, http.MethodPost, "/api/session/start", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, session.Idle, e.sess.State())
}

func TestPermissionFlow(t *testing.T) {
	e := newEnv(t, location.PermissionPrompt)

	w := e.do(t, http.MethodPost, "/api/permission", `{"granted":true}`)
	assert.Equal(t, http.StatusConflict, w.Code, "nothing pending yet")

	w = e.do(t, http.MethodPost, "/api/session/start", `{"studentId":"s1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	st := decodeStatus(t, w)
	assert.Equal(t, "idle", st.State)
	assert.True(t, st.PermissionPending)

	w = e.do(t, http.MethodPost, "/api/permission", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/permission", `{"granted":true}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	require.Eventually(t, func() bool { return e.sess.State() == session.Publishing }, time.Second, time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, location.PermissionGranted)
	e.do(t, http.MethodPost, "/api/session/start", `{"studentId":"s1"}`)
	e.feed.Deliver(location.Reading{Latitude: 1, Longitude: 2})

	w := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "location_readings_total 1")
	assert.Contains(t, body, "location_session_publishing 1")
}

func TestWebSocketStreamsNotices(t *testing.T) {
	e := newEnv(t, location.PermissionGranted)
	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered after the upgrade; keep notifying
	// until the first notice gets through
	stop := make(chan struct{})
	pinged := make(chan struct{})
	go func() {
		defer close(pinged)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.hub.Notify(notice.Info, "ping")
			}
		}
	}()

	var got notice.Notice
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	err = conn.ReadJSON(&got)
	close(stop)
	<-pinged
	require.NoError(t, err)
	assert.Equal(t, "ping", got.Message)
	assert.Equal(t, notice.Info, got.Level)

	e.hub.Close()
	conn.SetReadDeadline(time.Now().Add(time.Second)) //nolint:errcheck
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
			break
		}
	}
}

func TestStartAndClose(t *testing.T) {
	e := newEnv(t, location.PermissionGranted)
	require.NoError(t, e.srv.Start())
	addr := e.srv.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/api/session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.srv.Close(ctx))
	assert.Empty(t, e.srv.Addr())
	require.NoError(t, e.srv.Close(ctx))
}

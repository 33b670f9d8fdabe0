package net

import (
	"context"
	"encoding/json"
	stdnet "net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeknom/udp-game-example/server"
	"github.com/jeknom/udp-game-example/server/internal/observability"
	"github.com/jeknom/udp-game-example/server/internal/sim"
)

type idleTransport struct{}

func (idleTransport) Receive(ctx context.Context) (sim.Packet, error) {
	<-ctx.Done()
	return sim.Packet{}, ctx.Err()
}

func (idleTransport) Send([]byte, stdnet.Addr) error { return nil }

func (idleTransport) LocalAddr() stdnet.Addr {
	return &stdnet.UDPAddr{IP: stdnet.IPv4zero, Port: 11000}
}

func newTestHandler(t *testing.T, cfg HTTPHandlerConfig) (*server.Hub, http.Handler) {
	t.Helper()
	hub := server.NewHub(server.DefaultHubConfig(), idleTransport{}, nil)
	return hub, NewHTTPHandler(hub, cfg)
}

func serve(handler http.Handler, method, target string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(method, target, nil))
	return resp
}

func TestHealth(t *testing.T) {
	_, handler := newTestHandler(t, HTTPHandlerConfig{})
	resp := serve(handler, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Body.String())
}

func TestDiagnosticsReportsSessionAndLoop(t *testing.T) {
	hub, handler := newTestHandler(t, HTTPHandlerConfig{})
	hub.Metrics().TelemetryAdd("intake_datagrams_received_total", 3)

	resp := serve(handler, http.MethodGet, "/diagnostics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))

	var payload diagnosticsPayload
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, 60, payload.TickRate)
	assert.Equal(t, 60, payload.SlowTickEvery)
	assert.Equal(t, hub.SessionID(), payload.Server.Session.ID)
	assert.Equal(t, "WaitingForPlayersToConnect", payload.Server.Session.State)
	assert.Equal(t, "0.0.0.0:11000", payload.Server.ListenAddr)
	assert.Equal(t, uint64(3), payload.Telemetry["intake_datagrams_received_total"])
}

func TestDiagnosticsRejectsOtherMethods(t *testing.T) {
	_, handler := newTestHandler(t, HTTPHandlerConfig{})
	resp := serve(handler, http.MethodPost, "/diagnostics")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestSessionLookup(t *testing.T) {
	hub, handler := newTestHandler(t, HTTPHandlerConfig{})

	resp := serve(handler, http.MethodGet, "/sessions/"+hub.SessionID())
	require.Equal(t, http.StatusOK, resp.Code)
	var snapshot struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snapshot))
	assert.Equal(t, hub.SessionID(), snapshot.ID)

	missing := serve(handler, http.MethodGet, "/sessions/not-a-session")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestPprofOnlyWhenEnabled(t *testing.T) {
	_, plain := newTestHandler(t, HTTPHandlerConfig{})
	assert.Equal(t, http.StatusNotFound, serve(plain, http.MethodGet, "/debug/pprof/").Code)

	_, profiled := newTestHandler(t, HTTPHandlerConfig{Observability: observability.Config{EnablePprof: true}})
	assert.Equal(t, http.StatusOK, serve(profiled, http.MethodGet, "/debug/pprof/").Code)
}

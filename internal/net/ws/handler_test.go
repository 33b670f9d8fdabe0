package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeknom/udp-game-example/server"
	"github.com/jeknom/udp-game-example/server/internal/state"
)

func websocketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func dial(t *testing.T, feed StatusFeed) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewHandler(feed, HandlerConfig{}))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) server.Status {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var status server.Status
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("failed to read status: %v", err)
	}
	return status
}

func TestHandleSendsLatestStatusOnConnect(t *testing.T) {
	feed := server.NewFeed()
	feed.Publish(server.Status{Tick: 42, Session: state.Snapshot{State: "WaitingForPlayersToConnect"}})

	conn := dial(t, feed)
	status := readStatus(t, conn)
	if status.Tick != 42 {
		t.Fatalf("expected tick 42, got %d", status.Tick)
	}
	if status.Session.State != "WaitingForPlayersToConnect" {
		t.Fatalf("unexpected state %q", status.Session.State)
	}
}

func TestHandleStreamsUpdates(t *testing.T) {
	feed := server.NewFeed()
	conn := dial(t, feed)
	readStatus(t, conn)

	feed.Publish(server.Status{Tick: 60, Session: state.Snapshot{State: "InProgress"}})
	status := readStatus(t, conn)
	if status.Tick != 60 || status.Session.State != "InProgress" {
		t.Fatalf("unexpected update %+v", status)
	}
}

func TestHandleUnsubscribesWhenPeerLeaves(t *testing.T) {
	feed := server.NewFeed()
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(feed, HandlerConfig{}).Handle))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	resp.Body.Close()
	readStatus(t, conn)
	if feed.Subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", feed.Subscribers())
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for feed.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber was not released after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

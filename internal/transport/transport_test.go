// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"featidx/internal/feature"

	"github.com/gorilla/websocket"
)

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(NewRegionsMessage([]feature.Region{{Start: 1, End: 2}})); err != nil {
		t.Fatal(err)
	}
	// Values json cannot encode are still accepted.
	if err := lt.Send(make(chan int)); err != nil {
		t.Fatal(err)
	}
	if lt.Sent() != 2 {
		t.Errorf("Sent() = %d, want 2", lt.Sent())
	}
	if err := lt.Close(); err != nil {
		t.Fatal(err)
	}
	if err := lt.Send("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, wst *WebSocketTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", wst.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport(":0")
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()
	defer wst.Close()

	a, b := dial(t, srv), dial(t, srv)
	waitForClients(t, wst, 2)

	stats := feature.Statistics{Count: 42, Modified: 3}
	if err := wst.Send(NewStatisticsMessage("tone.wav", 44100, stats)); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg StatisticsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if msg.Type != "statistics" || msg.Source != "tone.wav" || msg.Stats.Count != 42 || msg.Stats.Modified != 3 {
			t.Errorf("received %+v", msg)
		}
	}

	a.Close()
	waitForClients(t, wst, 1)
}

func TestWebSocketClose(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0")
	if err := wst.Start(); err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	if strings.HasSuffix(wst.Addr(), ":0") {
		t.Errorf("Addr() = %q, want the bound port", wst.Addr())
	}

	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := wst.Send("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

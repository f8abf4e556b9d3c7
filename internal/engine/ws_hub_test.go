package engine

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func clientCount(h *WSHub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func waitForClients(t *testing.T, h *WSHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if clientCount(h) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", clientCount(h), want)
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestWSHubBroadcast(t *testing.T) {
	h := NewWSHub()
	go h.Run()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	c1 := dialHub(t, srv)
	defer c1.Close()
	c2 := dialHub(t, srv)
	defer c2.Close()
	waitForClients(t, h, 2)

	h.Broadcast(WSMessage{Type: "settlement_fixed", SeriesID: "s1", Symbol: "OPT-1a2b3c4d-100-20260315-0", Price: 150})

	for _, c := range []*websocket.Conn{c1, c2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read broadcast: %v", err)
		}
		if !strings.Contains(string(data), `"settlement_fixed"`) {
			t.Errorf("broadcast payload = %s", data)
		}
	}
}

func TestWSHubEvictsDisconnectedClient(t *testing.T) {
	h := NewWSHub()
	go h.Run()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	c1 := dialHub(t, srv)
	c2 := dialHub(t, srv)
	defer c2.Close()
	waitForClients(t, h, 2)

	c1.Close()
	waitForClients(t, h, 1)

	// The surviving client still receives broadcasts.
	h.Broadcast(WSMessage{Type: "series_closed", SeriesID: "s1"})
	c2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c2.ReadMessage(); err != nil {
		t.Fatalf("read after eviction: %v", err)
	}
}

// Broadcasts racing connects, disconnects, and the per-connection ping
// goroutines must not corrupt the client map.
func TestWSHubConcurrentBroadcast(t *testing.T) {
	h := NewWSHub()
	go h.Run()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conns := make([]*websocket.Conn, 4)
	for i := range conns {
		conns[i] = dialHub(t, srv)
	}
	waitForClients(t, h, len(conns))

	// Drain each client until its connection dies.
	for _, c := range conns {
		go func(c *websocket.Conn) {
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}(c)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Broadcast(WSMessage{Type: "claims_burned", SeriesID: "s1", Amount: uint64(j)})
			}
		}()
	}
	// Disconnect half the clients mid-broadcast.
	wg.Add(1)
	go func() {
		defer wg.Done()
		conns[0].Close()
		conns[1].Close()
	}()
	wg.Wait()

	waitForClients(t, h, 2)
	for _, c := range conns[2:] {
		c.Close()
	}
}

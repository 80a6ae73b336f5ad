package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yieldos/yield-engine/internal/api"
)

// A client that drops mid-stream must not take the hub down with it: writes
// to the dead connection fail, the hub evicts it, and remaining clients keep
// receiving broadcasts.
func TestWSHubBroadcastSurvivesDeadClient(t *testing.T) {
	hub := api.NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	alive, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer alive.Close()

	doomed, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	doomed.Close()

	got := make(chan string, 1)
	go func() {
		_, msg, err := alive.ReadMessage()
		if err == nil {
			got <- string(msg)
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		hub.Broadcast(api.WSMessage{Type: "trade_executed", MarketplaceID: 1})
		select {
		case msg := <-got:
			if !strings.Contains(msg, "trade_executed") {
				t.Fatalf("unexpected broadcast payload: %s", msg)
			}
			return
		case <-deadline:
			t.Fatal("surviving client never received a broadcast")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

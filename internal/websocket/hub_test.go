package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastReachesOnlyOwner(t *testing.T) {
	hub := NewHub()
	owner := &Client{send: make(chan []byte, 1)}
	other := &Client{send: make(chan []byte, 1)}
	hub.Register("cust-1", owner)
	hub.Register("cust-2", other)

	hub.BroadcastBalance("cust-1", BalanceUpdate{AccountID: "a1", AccountNumber: "ACC1", Balance: "10.00"})

	select {
	case msg := <-owner.send:
		var got BalanceUpdate
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.AccountNumber != "ACC1" || got.Balance != "10.00" {
			t.Fatalf("unexpected update %+v", got)
		}
	default:
		t.Fatal("owner did not receive update")
	}
	if len(other.send) != 0 {
		t.Fatal("other customer received update")
	}
}

func TestHubBroadcastDoesNotBlockOnFullBuffer(t *testing.T) {
	hub := NewHub()
	slow := &Client{send: make(chan []byte, 1)}
	hub.Register("cust-1", slow)
	hub.BroadcastBalance("cust-1", BalanceUpdate{Balance: "1.00"})
	hub.BroadcastBalance("cust-1", BalanceUpdate{Balance: "2.00"})
	if len(slow.send) != 1 {
		t.Fatalf("expected one buffered message, got %d", len(slow.send))
	}
}

func TestHubUnregisterDropsEmptyCustomer(t *testing.T) {
	hub := NewHub()
	c := &Client{send: make(chan []byte, 1)}
	hub.Register("cust-1", c)
	if hub.Connections("cust-1") != 1 {
		t.Fatal("expected one connection")
	}
	hub.Unregister("cust-1", c)
	hub.Unregister("cust-1", c)
	if hub.Connections("cust-1") != 0 {
		t.Fatal("expected no connections")
	}
}

func TestServeWSStreamsUpdates(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(w, r, hub, "cust-1", nil)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections("cust-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	hub.BroadcastBalance("cust-1", BalanceUpdate{AccountNumber: "ACC9", Balance: "5.00"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got BalanceUpdate
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.AccountNumber != "ACC9" || got.Balance != "5.00" {
		t.Fatalf("unexpected update %+v", got)
	}
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/services"
)

func dialEventHub(t *testing.T, hub *EventHub) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	hub.SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/orders/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial event hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) OrderEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event OrderEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	return event
}

func TestEventHub_NotifySuspicious(t *testing.T) {
	hub := NewEventHub()
	conn := dialEventHub(t, hub)

	anchor := uint(4)
	order := &database.Order{ID: 9, CustomerID: 3}
	err := hub.NotifySuspicious(context.Background(), order, &services.Verdict{
		Suspicious:          true,
		IsSingleSuspicious:  true,
		Reason:              services.ReasonAfterMerge,
		LinkedMergedOrderID: &anchor,
	})
	if err != nil {
		t.Fatalf("NotifySuspicious failed: %v", err)
	}

	event := readEvent(t, conn)
	if event.Type != OrderEventSuspicious || event.OrderID != 9 || event.CustomerID != 3 {
		t.Errorf("unexpected event: %+v", event)
	}
	if !event.IsSingleSuspicious || event.LinkedMergedOrderID == nil || *event.LinkedMergedOrderID != anchor {
		t.Errorf("expected follow-up details, got %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestEventHub_NotifyMerged(t *testing.T) {
	hub := NewEventHub()
	conn := dialEventHub(t, hub)

	survivor := &database.Order{ID: 1, CustomerID: 3}
	if err := hub.NotifyMerged(context.Background(), survivor, []uint{1, 2}, "alice"); err != nil {
		t.Fatalf("NotifyMerged failed: %v", err)
	}

	event := readEvent(t, conn)
	if event.Type != OrderEventMerged || event.OrderID != 1 || event.MergedBy != "alice" {
		t.Errorf("unexpected event: %+v", event)
	}
	if len(event.MergedOrderIDs) != 2 {
		t.Errorf("expected merged ids, got %v", event.MergedOrderIDs)
	}
}

func TestEventHub_ClientDisconnect(t *testing.T) {
	hub := NewEventHub()
	conn := dialEventHub(t, hub)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Broadcast(OrderEvent{Type: OrderEventMerged}); err != nil {
		t.Errorf("Broadcast with no clients failed: %v", err)
	}
}

func TestEventHub_DropsSlowClient(t *testing.T) {
	hub := NewEventHub()
	client := &eventClient{send: make(chan []byte, 1)}
	hub.clients[client] = struct{}{}

	hub.Broadcast(OrderEvent{Type: OrderEventSuspicious, OrderID: 1})
	if hub.ClientCount() != 1 {
		t.Fatal("expected client kept while its buffer has room")
	}

	hub.Broadcast(OrderEvent{Type: OrderEventSuspicious, OrderID: 2})
	if hub.ClientCount() != 0 {
		t.Error("expected slow client dropped")
	}
	if _, ok := <-client.send; !ok {
		t.Error("expected the first event still buffered")
	}
	if _, ok := <-client.send; ok {
		t.Error("expected send channel closed")
	}
}

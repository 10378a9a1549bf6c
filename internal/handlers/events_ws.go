package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harvestlink/harvestlink/internal/database"
	"github.com/harvestlink/harvestlink/internal/services"
)

// OrderEventType represents the type of event pushed to admin dashboards
type OrderEventType string

const (
	OrderEventSuspicious OrderEventType = "suspicious_order"
	OrderEventMerged     OrderEventType = "orders_merged"
)

const (
	eventSendBuffer = 32
	eventWriteWait  = 10 * time.Second
	eventPingPeriod = 30 * time.Second
)

// OrderEvent is a message broadcast to every connected dashboard
type OrderEvent struct {
	Type                OrderEventType `json:"type"`
	OrderID             uint           `json:"order_id"`
	CustomerID          uint           `json:"customer_id"`
	Reason              string         `json:"reason,omitempty"`
	IsSingleSuspicious  bool           `json:"is_single_suspicious,omitempty"`
	LinkedMergedOrderID *uint          `json:"linked_merged_order_id,omitempty"`
	RelatedOrderIDs     []uint         `json:"related_order_ids,omitempty"`
	MergedOrderIDs      []uint         `json:"merged_order_ids,omitempty"`
	MergedBy            string         `json:"merged_by,omitempty"`
	Timestamp           time.Time      `json:"timestamp"`
}

// EventHub pushes order events to admin dashboards over WebSocket
type EventHub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*eventClient]struct{}
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

var _ services.Notifier = (*EventHub)(nil)

// NewEventHub creates a new event hub
func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // requests are already authenticated by the JWT middleware
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*eventClient]struct{}),
	}
}

// SetupRoutes configures WebSocket routes
func (h *EventHub) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orders/events", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and streams events until the client goes away
func (h *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := &eventClient{conn: conn, send: make(chan []byte, eventSendBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	log.Printf("Dashboard connected from %s", r.RemoteAddr)

	go h.writeLoop(client)

	// Reads only detect disconnects; dashboards never send anything meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}
	}

	h.remove(client)
	log.Printf("Dashboard disconnected")
}

func (h *EventHub) writeLoop(client *eventClient) {
	ticker := time.NewTicker(eventPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) remove(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// ClientCount returns the number of connected dashboards
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client. Clients whose buffer is full are dropped.
func (h *EventHub) Broadcast(event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			log.Printf("Dropping slow dashboard client")
			delete(h.clients, client)
			close(client.send)
		}
	}
	return nil
}

// NotifySuspicious implements services.Notifier
func (h *EventHub) NotifySuspicious(ctx context.Context, order *database.Order, verdict *services.Verdict) error {
	return h.Broadcast(OrderEvent{
		Type:                OrderEventSuspicious,
		OrderID:             order.ID,
		CustomerID:          order.CustomerID,
		Reason:              verdict.Reason,
		IsSingleSuspicious:  verdict.IsSingleSuspicious,
		LinkedMergedOrderID: verdict.LinkedMergedOrderID,
		RelatedOrderIDs:     verdict.RelatedOrderIDs,
		Timestamp:           time.Now().UTC(),
	})
}

// NotifyMerged implements services.Notifier
func (h *EventHub) NotifyMerged(ctx context.Context, survivor *database.Order, mergedOrderIDs []uint, mergedBy string) error {
	return h.Broadcast(OrderEvent{
		Type:           OrderEventMerged,
		OrderID:        survivor.ID,
		CustomerID:     survivor.CustomerID,
		MergedOrderIDs: mergedOrderIDs,
		MergedBy:       mergedBy,
		Timestamp:      time.Now().UTC(),
	})
}

package server

// This file contains the listing event hub. Lifecycle transitions committed by
// the listing service are fanned out to every /ws/listings subscriber.

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/logger"
)

// Hub tracks WebSocket subscribers and broadcasts listing events to them.
// It implements listing.Notifier.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan listing.Event
	mu         sync.RWMutex
	drops      atomic.Int64
	done       chan struct{}
	logger     *zap.SugaredLogger
}

// NewHub creates a hub. Call Run to start delivering events.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan listing.Event, MaxClientMessageQueueSize),
		done:       make(chan struct{}),
		logger:     log.With(logger.FieldComponent, "hub"),
	}
}

// PostChanged queues e for broadcast. It never blocks; events are dropped when the queue is full.
func (h *Hub) PostChanged(e listing.Event) {
	select {
	case h.events <- e:
	default:
		h.drops.Add(1)
		h.logger.Warnw("Event queue full, dropping listing event",
			logger.FieldEventType, e.Type,
			logger.FieldJobPostID, e.JobPostID)
	}
}

// Run processes registrations and events until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Debugw("Hub stopping due to context cancellation")
			return
		case client := <-h.register:
			h.handleClientRegister(client)
		case client := <-h.unregister:
			h.handleClientUnregister(client)
		case e := <-h.events:
			h.broadcastMessage(ListingEventMessage{
				Type:      e.Type,
				JobPostID: e.JobPostID,
				CompanyID: e.CompanyID,
				Status:    e.Status,
				Timestamp: time.Now().Unix(),
			})
		}
	}
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Drops returns how many messages were discarded for slow consumers or a full queue
func (h *Hub) Drops() int64 {
	return h.drops.Load()
}

func (h *Hub) handleClientRegister(client *Client) {
	h.mu.Lock()
	if len(h.clients) >= MaxClients {
		h.mu.Unlock()
		h.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients)
		client.close()
		return
	}
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", total)
}

func (h *Hub) handleClientUnregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	client.close()
	h.logger.Infow("Client disconnected",
		"client_id", client.id,
		"total_clients", total)
}

// broadcastMessage sends a message to all connected clients.
// Returns the number of clients that accepted the message (channel not full).
func (h *Hub) broadcastMessage(msg interface{}) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		select {
		case client.send <- msg:
			sent++
		default:
			// Channel full - skip
			h.drops.Add(1)
		}
	}
	return sent
}

// closeAll disconnects every client during shutdown
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	if len(clients) > 0 {
		h.logger.Infow("Closing client connections", logger.FieldCount, len(clients))
	}
	for _, client := range clients {
		client.close()
		client.conn.Close()
	}
}

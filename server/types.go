package server

import (
	"time"

	"github.com/teranos/vacancy/listing"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 500
	// MaxClientMessageQueueSize is the size of per-client message queues
	MaxClientMessageQueueSize = 256
	// ShutdownTimeout bounds graceful shutdown when the config does not
	ShutdownTimeout = 10 * time.Second

	// maxWebhookBody caps a payment event delivery
	maxWebhookBody = 64 * 1024
	// maxRequestBody caps JSON request bodies
	maxRequestBody = 1024 * 1024
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// ListingEventMessage is pushed to /ws/listings subscribers
type ListingEventMessage struct {
	Type      string         `json:"type"`
	JobPostID string         `json:"job_post_id"`
	CompanyID string         `json:"company_id"`
	Status    listing.Status `json:"status"`
	Timestamp int64          `json:"timestamp"`
}

// registerRequest is the body of POST /api/users
type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// statusRequest is the body of PATCH /api/applications/{id}
type statusRequest struct {
	Status string `json:"status"`
}

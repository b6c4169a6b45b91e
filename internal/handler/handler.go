// Package handler provides HTTP request handlers for the product API.
package handler

import (
	"context"

	"github.com/vyrodovalexey/productapi/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// WelcomeMessage is served as plain text on the root path.
const WelcomeMessage = "Welcome to the Product API!"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// EventPublisher receives catalog mutations after they succeed.
type EventPublisher interface {
	Publish(ctx context.Context, event model.ProductEvent)
}

// Package api holds the wire types of the HTTP API.
package api

import "time"

// HealthStatus reports whether the service is usable.
type HealthStatus string

// Health states
const (
	Healthy HealthStatus = "healthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    *int         `json:"uptime,omitempty"`
	Version   *string      `json:"version,omitempty"`
}

// ImageInfo describes an opened pyramid image.
type ImageInfo struct {
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TileWidth  int    `json:"tileWidth"`
	TileHeight int    `json:"tileHeight"`
	MinZoom    int    `json:"minZoom"`
	MaxZoom    int    `json:"maxZoom"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	RequestID *string     `json:"requestId,omitempty"`
}

// ErrorDetail carries a machine-readable code and a human-readable
// message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package apiserver

import "time"

// Server timeout constants
const (
	// RequestTimeout is the maximum time for processing a request
	RequestTimeout = 60 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout = 15 * time.Second

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request
	IdleTimeout = 60 * time.Second

	// HealthCheckTimeout bounds the backend pings of one system health request
	HealthCheckTimeout = 5 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// API version constants
const (
	APIVersion = "v1"
	APIPrefix  = "/api/" + APIVersion
)

// HighQueueDepth marks the probe queue as a warning in system health
const HighQueueDepth = 1000

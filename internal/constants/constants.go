package constants

import "time"

const (
	// Background job timeouts
	EventDispatchTimeout = 2 * time.Minute
	OfferExpiryTimeout   = 5 * time.Minute

	// HTTP server
	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 15 * time.Second

	// Request bodies above this size are rejected
	MaxRequestBodyBytes = 1 << 20

	LocalDevOrigin = "http://localhost:8080"
)

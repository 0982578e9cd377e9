package publisher

import "context"

// Publisher represents a service for publishing scraped records
type Publisher interface {
	// Publish appends one message to a stream under key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

package queue

type config struct {
	capacity int
	name     string
}

// Option applies a configuration option to an InMemoryQueue.
type Option func(*config)

// WithCapacity sets the maximum number of queued items.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithName sets the queue label used in metrics.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

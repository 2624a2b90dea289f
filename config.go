package chrono

// Config holds configuration for the Scheduler.
type Config struct {
	// MaxConcurrent is the scheduler-wide ceiling on concurrently
	// executing job instances. Zero means unbounded.
	MaxConcurrent int

	// RateLimit caps dispatch throughput in submissions per second.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the rate limiter.
	RateBurst int

	// EventBufferSize is the per-subscriber event channel capacity.
	EventBufferSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RateBurst:       1,
		EventBufferSize: 256,
	}
}

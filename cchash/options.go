package cchash

// config collects the settings New assembles from the options passed to
// it, following the teacher's functional-options shape used for cmd
// binaries' flag-derived config structs.
type config[K any, V any] struct {
	logger      Logger
	minCapacity int
}

// Option configures a Map at construction time.
type Option[K any, V any] func(*config[K, V])

// WithLogger routes a Map's growth and migration diagnostics to logger
// instead of discarding them.
func WithLogger[K any, V any](logger Logger) Option[K, V] {
	return func(c *config[K, V]) {
		c.logger = logger
	}
}

// WithMinimumCapacity preallocates enough cells to hold at least n entries
// in primary storage before the first resize, avoiding the migration churn
// of growing from the default capacity when the final size is known ahead
// of time.
func WithMinimumCapacity[K any, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		c.minCapacity = n
	}
}

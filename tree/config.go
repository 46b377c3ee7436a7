package tree

// Config holds configuration for a Repository.
type Config struct {
	// Concurrency is the number of per-root pipelines FindTrees runs at once.
	// Size it to the executor's connection capacity.
	// Default: 4
	// Max: 256
	Concurrency int

	// Orphans decides what assembly does with a node whose parent is not in
	// the fetched set.
	// Default: OrphanError
	Orphans OrphanPolicy
}

// DefaultConfig returns sensible defaults for small pools.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		Orphans:     OrphanError,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > 256 {
		c.Concurrency = 256
	}
	if c.Orphans != OrphanPromote {
		c.Orphans = OrphanError
	}
}

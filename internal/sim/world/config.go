package world

type WorldConfig struct {
	ID         string
	TickRateHz int

	// MaxQueuePerTick bounds the message queue carried into a tick; new
	// messages past the cap are dropped as unroutable.
	MaxQueuePerTick    int
	SnapshotEveryTicks int

	// StarterItems seed the world item pool used to pay required_items.
	// If nil, defaults apply; non-nil but empty means an empty pool.
	StarterItems map[string]int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.MaxQueuePerTick <= 0 {
		c.MaxQueuePerTick = 4096
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 600
	}
	if c.StarterItems == nil {
		c.StarterItems = map[string]int{}
	}
}

package detector

import "sync"

// DefaultCacheSize is the number of resolution profiles kept before eviction.
const DefaultCacheSize = 10

// ProfileCache memoizes derived profiles by exact resolution.
// When full, the oldest inserted entry is evicted first.
type ProfileCache struct {
	mu      sync.Mutex
	base    BaseThresholds
	maxSize int
	entries map[Resolution]ResolutionProfile
	order   []Resolution

	// derive is swapped in tests to count computations.
	derive func(BaseThresholds, Resolution) (ResolutionProfile, error)
}

// NewProfileCache creates a cache over base. A maxSize <= 0 uses DefaultCacheSize.
func NewProfileCache(base BaseThresholds, maxSize int) *ProfileCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &ProfileCache{
		base:    base,
		maxSize: maxSize,
		entries: make(map[Resolution]ResolutionProfile),
		derive:  DeriveProfile,
	}
}

// Get returns the profile for res, deriving and caching it on a miss.
// Derivation errors are returned and nothing is cached.
func (c *ProfileCache) Get(res Resolution) (ResolutionProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.entries[res]; ok {
		return p, nil
	}

	p, err := c.derive(c.base, res)
	if err != nil {
		return ResolutionProfile{}, err
	}

	if len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[res] = p
	c.order = append(c.order, res)

	return p, nil
}

// Contains reports whether res is cached, without deriving it.
func (c *ProfileCache) Contains(res Resolution) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[res]
	return ok
}

// Len returns the number of cached profiles.
func (c *ProfileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Resolutions returns the cached keys, oldest first.
func (c *ProfileCache) Resolutions() []Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Resolution, len(c.order))
	copy(out, c.order)
	return out
}

// Clear drops every cached profile.
func (c *ProfileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Resolution]ResolutionProfile)
	c.order = nil
}

// ProfileLookup answers profile queries from its own cache, so lookups for
// arbitrary resolutions never evict the profiles a detector is using.
type ProfileLookup struct {
	cache     *ProfileCache
	tolerance float64
}

// NewProfileLookup creates a ProfileLookup with the thresholds, cache size
// and tolerance of cfg.
func NewProfileLookup(cfg Config) *ProfileLookup {
	return &ProfileLookup{
		cache:     NewProfileCache(cfg.Base, cfg.CacheSize),
		tolerance: cfg.ResolutionTolerance,
	}
}

// Profile returns the profile for res.
func (l *ProfileLookup) Profile(res Resolution) (ResolutionProfile, error) {
	return l.cache.Get(res)
}

// IsResolutionSimilar compares a and b with the configured tolerance.
func (l *ProfileLookup) IsResolutionSimilar(a, b Resolution) bool {
	return IsResolutionSimilar(a, b, l.tolerance)
}

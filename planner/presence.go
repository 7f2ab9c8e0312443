package planner

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/Thema-AI/web-index/partition"
)

// presenceCache remembers, per partition, which URLs it has already been
// observed to contain, via a github.com/seiflotfy/cuckoofilter per
// partition. Cuckoo filters report false positives but never false
// negatives, so a miss is authoritative: the executor may skip reading a
// partition outright once its filter says a URL is definitely absent,
// pure upside for the simple/time-bounded/presence algorithms' "read the
// minimal set of partitions" requirement (spec §4.4). A hit still
// requires reading the partition, same as without the cache.
//
// Entries are populated lazily, the first time a partition is actually
// read, and dropped on any write to that partition (spec §5: "an
// optional read-through cache... invalidated on any write").
type presenceCache struct {
	mu      sync.Mutex
	filters map[string]*cuckoo.Filter
}

func newPresenceCache() *presenceCache {
	return &presenceCache{filters: make(map[string]*cuckoo.Filter)}
}

const filterCapacity = 100_000

// observe records that url appeared in key's partition (called once per
// partition read, after rows are fetched).
func (c *presenceCache) observe(key partition.Key, urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.filters[key.String()]
	if f == nil {
		f = cuckoo.NewFilter(filterCapacity)
		c.filters[key.String()] = f
	}
	for _, u := range urls {
		f.InsertUnique([]byte(u))
	}
}

// mayContain reports whether url might be present in key's partition. A
// false return is authoritative; a true return (including "no filter
// yet, so unknown") means the caller must actually read the partition.
func (c *presenceCache) mayContain(key partition.Key, url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.filters[key.String()]
	if f == nil {
		return true
	}
	return f.Lookup([]byte(url))
}

// invalidate drops key's filter; called after any append or defrag.
func (c *presenceCache) invalidate(key partition.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.filters, key.String())
}

package planner

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/Thema-AI/web-index/codec"
	"github.com/Thema-AI/web-index/partition"
	"github.com/Thema-AI/web-index/schema"
)

// batchCache reads each partition at most once per batch (spec §4.4:
// "the planner groups queries that target overlapping partitions and
// reads each partition at most once per batch"), regardless of how many
// queries in the batch ask for it concurrently.
type batchCache struct {
	mgr     *partition.Manager
	pres    *presenceCache
	metrics *Metrics

	mu   sync.Mutex
	data map[partition.Key]*dataEntry
	meta map[partition.Key]*metaEntry
}

type dataEntry struct {
	once sync.Once
	rows []schema.DataRow
	err  error
}

type metaEntry struct {
	once sync.Once
	rows []schema.MetadataRow
	err  error
}

func newBatchCache(mgr *partition.Manager, pres *presenceCache, metrics *Metrics) *batchCache {
	return &batchCache{
		mgr:     mgr,
		pres:    pres,
		metrics: metrics,
		data:    make(map[partition.Key]*dataEntry),
		meta:    make(map[partition.Key]*metaEntry),
	}
}

func (c *batchCache) dataEntryFor(key partition.Key) *dataEntry {
	c.mu.Lock()
	e, ok := c.data[key]
	if !ok {
		e = &dataEntry{}
		c.data[key] = e
	}
	c.mu.Unlock()
	return e
}

func (c *batchCache) metaEntryFor(key partition.Key) *metaEntry {
	c.mu.Lock()
	e, ok := c.meta[key]
	if !ok {
		e = &metaEntry{}
		c.meta[key] = e
	}
	c.mu.Unlock()
	return e
}

// readData loads and deduplicates every data row of key, reading the
// partition at most once across the whole batch no matter how many
// goroutines call this concurrently.
func (c *batchCache) readData(ctx context.Context, key partition.Key) ([]schema.DataRow, error) {
	e := c.dataEntryFor(key)
	e.once.Do(func() {
		glog.V(4).Infof("planner: reading partition %s", key)
		if c.metrics != nil {
			c.metrics.PartitionsReadTotal.Inc()
		}
		rows, err := c.mgr.ReadData(ctx, key, codec.DataPredicate{})
		if err != nil {
			e.err = err
			return
		}
		e.rows = Dedup(rows)
		if c.pres != nil {
			urls := make([]string, len(e.rows))
			for i, r := range e.rows {
				urls[i] = r.URL
			}
			c.pres.observe(key, urls)
		}
	})
	return e.rows, e.err
}

func (c *batchCache) readMetadata(ctx context.Context, key partition.Key) ([]schema.MetadataRow, error) {
	e := c.metaEntryFor(key)
	e.once.Do(func() {
		glog.V(4).Infof("planner: reading partition %s", key)
		if c.metrics != nil {
			c.metrics.PartitionsReadTotal.Inc()
		}
		e.rows, e.err = c.mgr.ReadMetadata(ctx, key, codec.MetadataPredicate{})
	})
	return e.rows, e.err
}

// readDataPred bypasses the once-cache and reads key directly with pred
// pushed down to the codec. Only safe for callers that already know no
// other query in the batch needs the same partition's full row set — the
// deterministic query, whose request_id predicate is unique to it.
func (c *batchCache) readDataPred(ctx context.Context, key partition.Key, pred codec.DataPredicate) ([]schema.DataRow, error) {
	glog.V(4).Infof("planner: reading partition %s (predicate push-down)", key)
	if c.metrics != nil {
		c.metrics.PartitionsReadTotal.Inc()
	}
	return c.mgr.ReadData(ctx, key, pred)
}

// readMetadataPred mirrors readDataPred for the metadata streams.
func (c *batchCache) readMetadataPred(ctx context.Context, key partition.Key, pred codec.MetadataPredicate) ([]schema.MetadataRow, error) {
	glog.V(4).Infof("planner: reading partition %s (predicate push-down)", key)
	if c.metrics != nil {
		c.metrics.PartitionsReadTotal.Inc()
	}
	return c.mgr.ReadMetadata(ctx, key, pred)
}

// skipByPresence reports whether key is known, from a prior batch's
// cached filter, to not contain url — in which case this batch need not
// read it at all.
func (c *batchCache) skipByPresence(key partition.Key, url string) bool {
	if c.pres == nil {
		return false
	}
	skip := !c.pres.mayContain(key, url)
	if skip {
		glog.V(4).Infof("planner: presence filter skips partition %s for %s", key, url)
		if c.metrics != nil {
			c.metrics.PartitionsSkippedTotal.Inc()
		}
	}
	return skip
}

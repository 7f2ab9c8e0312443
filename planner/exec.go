package planner

import (
	"context"
	"sort"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/codec"
	"github.com/Thema-AI/web-index/partition"
	"github.com/Thema-AI/web-index/schema"
)

// Executor runs batches of queries against a partition.Manager,
// implementing the four algorithms of spec §4.4.
type Executor struct {
	mgr     *partition.Manager
	cfg     *cmn.Config
	metrics *Metrics
	pres    *presenceCache
}

func NewExecutor(mgr *partition.Manager, cfg *cmn.Config, metrics *Metrics) *Executor {
	return &Executor{mgr: mgr, cfg: cfg, metrics: metrics, pres: newPresenceCache()}
}

// InvalidatePresence drops the presence cache for key; the insert
// pipeline calls this after every append, and Engine.Defrag after every
// defrag (spec §5: the
// read-through cache "is invalidated on any write").
func (e *Executor) InvalidatePresence(key partition.Key) {
	e.pres.invalidate(key)
}

// Execute runs queries as one batch: partitions that multiple queries
// target are read at most once (spec §4.4), and queries run concurrently
// up to cfg.ReadConcurrency outstanding object-store operations.
func (e *Executor) Execute(ctx context.Context, queries []Query) []Result {
	results := make([]Result, len(queries))
	batch := newBatchCache(e.mgr, e.pres, e.metrics)
	sem := semaphore.NewWeighted(int64(e.cfg.ReadConcurrency))

	g, gctx := errgroup.WithContext(ctx)
	for i := range queries {
		i, q := i, queries[i]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = Result{Err: cmn.Cancelledf("query %d: %v", i, err)}
				return nil
			}
			defer sem.Release(1)

			start := time.Now()
			results[i] = e.executeOne(gctx, batch, q)
			e.metrics.observeQuery(q.Kind, time.Since(start).Seconds())
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) executeOne(ctx context.Context, batch *batchCache, q Query) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: cmn.Cancelledf("query cancelled before start: %v", err)}
	}
	glog.V(4).Infof("planner: dispatching %s query for %s", q.Kind, q.URL)
	switch q.Kind {
	case KindDeterministic:
		return e.executeDeterministic(ctx, batch, q)
	case KindSimple:
		return e.executeSimple(ctx, batch, q)
	case KindTimeBounded:
		return e.executeTimeBounded(ctx, batch, q)
	case KindPresence:
		return e.executePresence(ctx, batch, q)
	default:
		return Result{Err: cmn.Structuralf("planner: unknown query kind %q", q.Kind)}
	}
}

// resolveCalibreStrict returns q.CalibreStrict if the caller set it
// explicitly, otherwise the per-kind default from cfg.CalibreStrictDefault
// (spec §6: false for simple, true for time-bounded).
func (e *Executor) resolveCalibreStrict(q Query) bool {
	if q.CalibreStrict != nil {
		return *q.CalibreStrict
	}
	return e.cfg.CalibreStrictDefault[q.Kind.String()]
}

// executeDeterministic implements spec §4.4.1. A single request_id never
// collides with another query's read in the same batch, so this is the
// one call site that can push its predicate (request_id == q.RequestID,
// spec.md:115) all the way down to the codec's row-group statistics
// instead of materializing the whole partition and filtering in Go.
func (e *Executor) executeDeterministic(ctx context.Context, batch *batchCache, q Query) Result {
	key, err := partition.KeyForAttempt(q.Stream, q.URL, q.Timestamp)
	if err != nil {
		return Result{Err: err}
	}

	if q.Stream.IsMetadata() {
		rows, err := batch.readMetadataPred(ctx, key, codec.MetadataPredicate{RequestID: q.RequestID})
		if err != nil {
			return Result{Err: err}
		}
		for i := range rows {
			if rows[i].RequestID == q.RequestID {
				row := rows[i]
				return Result{Metadata: &row}
			}
		}
		return Result{NoMatch: true}
	}

	chain, err := batch.readDataPred(ctx, key, codec.DataPredicate{RequestID: q.RequestID})
	if err != nil {
		return Result{Err: err}
	}
	if len(chain) == 0 {
		return Result{NoMatch: true}
	}
	page, err := AssembleChain(q.RequestID, chain)
	if err != nil {
		e.metrics.MalformedChains.Inc()
		return Result{Err: err}
	}
	return Result{Page: page}
}

// candidate is one chain surviving a simple/time-bounded scan, tracked
// by its winning hop's sort keys.
type candidate struct {
	requestID string
	timestamp time.Time
	rows      []schema.DataRow
}

func calibreOf(rows []schema.DataRow) schema.Calibre {
	var max schema.Calibre
	for _, r := range rows {
		if r.FetcherCalibre > max {
			max = r.FetcherCalibre
		}
	}
	return max
}

// executeSimple implements spec §4.4.2: walk months from the present
// back to cfg.Epoch, tracking the latest-timestamp matching chain, and
// stop at the first month with a match (no earlier month can beat it).
func (e *Executor) executeSimple(ctx context.Context, batch *batchCache, q Query) Result {
	domain, err := partition.Domain(q.URL)
	if err != nil {
		return Result{Err: err}
	}
	strict := e.resolveCalibreStrict(q)
	epoch := e.cfg.Epoch
	if epoch.IsZero() {
		epoch = cmn.DefaultEpoch
	}
	months := partition.MonthRange(time.Now().UTC(), epoch)

	var best *candidate
	for _, ym := range months {
		if ctx.Err() != nil {
			return Result{Err: cmn.Cancelledf("simple query cancelled: %v", ctx.Err())}
		}
		key := partition.Key{Stream: q.Stream, Year: ym.Year, Month: ym.Month, Domain: domain}
		if batch.skipByPresence(key, q.URL) {
			continue
		}
		rows, err := batch.readData(ctx, key)
		if err != nil {
			return Result{Err: err}
		}
		monthBest := bestChainInMonth(rows, q.URL, q.Calibre, strict)
		if monthBest != nil && (best == nil || monthBest.timestamp.After(best.timestamp) ||
			(monthBest.timestamp.Equal(best.timestamp) && monthBest.requestID > best.requestID)) {
			best = monthBest
		}
		if best != nil {
			// No earlier month can contain a later timestamp than one
			// already found in a later month.
			break
		}
	}
	if best == nil {
		return Result{NoMatch: true}
	}
	page, err := AssembleChain(best.requestID, best.rows)
	if err != nil {
		e.metrics.MalformedChains.Inc()
		return Result{Err: err}
	}
	return Result{Page: page}
}

func bestChainInMonth(rows []schema.DataRow, url string, calibre *schema.Calibre, strict bool) *candidate {
	var filtered []schema.DataRow
	for _, r := range rows {
		if r.URL != url {
			continue
		}
		if calibre != nil && !schema.CalibreMatches(r.FetcherCalibre, *calibre, strict) {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		return nil
	}
	groups := groupByRequestID(filtered)
	var best *candidate
	for rid, chainRows := range groups {
		chainCalibre := calibreOf(chainRows)
		if calibre != nil && !schema.CalibreMatches(chainCalibre, *calibre, strict) {
			continue
		}
		ts := latestTimestamp(chainRows)
		if best == nil || ts.After(best.timestamp) || (ts.Equal(best.timestamp) && rid > best.requestID) {
			best = &candidate{requestID: rid, timestamp: ts, rows: chainRows}
		}
	}
	return best
}

func latestTimestamp(rows []schema.DataRow) time.Time {
	var max time.Time
	for _, r := range rows {
		if r.Timestamp.After(max) {
			max = r.Timestamp
		}
	}
	return max
}

// executeTimeBounded implements spec §4.4.3.
func (e *Executor) executeTimeBounded(ctx context.Context, batch *batchCache, q Query) Result {
	domain, err := partition.Domain(q.URL)
	if err != nil {
		return Result{Err: err}
	}
	months := partition.OverlappingMonths(q.NotBefore, q.NotAfter)
	strict := e.resolveCalibreStrict(q)

	var allMatches []*candidate
	for _, ym := range months {
		if ctx.Err() != nil {
			return Result{Err: cmn.Cancelledf("time-bounded query cancelled: %v", ctx.Err())}
		}
		key := partition.Key{Stream: q.Stream, Year: ym.Year, Month: ym.Month, Domain: domain}
		if batch.skipByPresence(key, q.URL) {
			continue
		}
		rows, err := batch.readData(ctx, key)
		if err != nil {
			return Result{Err: err}
		}
		var filtered []schema.DataRow
		for _, r := range rows {
			if r.URL != q.URL {
				continue
			}
			if r.Timestamp.Before(q.NotBefore) || r.Timestamp.After(q.NotAfter) {
				continue
			}
			if q.Calibre != nil && !schema.CalibreMatches(r.FetcherCalibre, *q.Calibre, strict) {
				continue
			}
			filtered = append(filtered, r)
		}
		for rid, chainRows := range groupByRequestID(filtered) {
			if q.Calibre != nil && !schema.CalibreMatches(calibreOf(chainRows), *q.Calibre, strict) {
				continue
			}
			allMatches = append(allMatches, &candidate{requestID: rid, timestamp: latestTimestamp(chainRows), rows: chainRows})
		}
	}
	if len(allMatches) == 0 {
		return Result{NoMatch: true}
	}
	sort.Slice(allMatches, func(i, j int) bool {
		di := allMatches[i].timestamp.Sub(q.Target).Abs()
		dj := allMatches[j].timestamp.Sub(q.Target).Abs()
		if di != dj {
			return di < dj
		}
		if !allMatches[i].timestamp.Equal(allMatches[j].timestamp) {
			return allMatches[i].timestamp.After(allMatches[j].timestamp)
		}
		return allMatches[i].requestID > allMatches[j].requestID
	})
	winner := allMatches[0]
	page, err := AssembleChain(winner.requestID, winner.rows)
	if err != nil {
		e.metrics.MalformedChains.Inc()
		return Result{Err: err}
	}
	return Result{Page: page}
}

// executePresence implements spec §4.4.4 by running the retrieval query
// named by q.PresenceOf in full and reporting whether it matched. It
// stops no earlier than that retrieval does: a simple query stops at the
// first month with a match, a time-bounded one reads every month in its
// window and assembles the winning chain.
func (e *Executor) executePresence(ctx context.Context, batch *batchCache, q Query) Result {
	inner := q
	inner.Kind = q.PresenceOf
	res := e.executeOne(ctx, batch, inner)
	if res.Err != nil {
		return res
	}
	return Result{Present: !res.NoMatch}
}

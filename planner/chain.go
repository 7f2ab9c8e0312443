package planner

import (
	"sort"
	"strconv"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/schema"
)

// dedupKey identifies a row uniquely across a canonical file and the
// part files it may transiently overlap with after a defrag race (spec
// §4.3: "the planner must deduplicate by (request_id, retry_attempt,
// timestamp, is_final) when it sees overlap").
type dedupKey struct {
	requestID    string
	retryAttempt uint8
	timestamp    int64
	isFinal      bool
}

// Dedup removes duplicate rows that a reader can observe mid-defrag,
// when both the new canonical file and a not-yet-deleted part file are
// visible in the same read.
func Dedup(rows []schema.DataRow) []schema.DataRow {
	seen := make(map[dedupKey]bool, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		k := dedupKey{r.RequestID, r.RetryAttempt, r.Timestamp.UnixNano(), r.IsFinal}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// groupByRequestID partitions rows into per-attempt chains, preserving
// each chain's row order as encountered.
func groupByRequestID(rows []schema.DataRow) map[string][]schema.DataRow {
	groups := make(map[string][]schema.DataRow)
	for _, r := range rows {
		groups[r.RequestID] = append(groups[r.RequestID], r)
	}
	return groups
}

// AssembleChain builds a Page from every data row sharing one
// request_id, enforcing invariant D1: sorted ascending by timestamp,
// exactly one is_final row, and it must be last.
func AssembleChain(requestID string, rows []schema.DataRow) (*Page, error) {
	if len(rows) == 0 {
		return nil, cmn.MalformedChainf(requestID, "no rows")
	}
	sorted := make([]schema.DataRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	finalCount := 0
	finalIdx := -1
	for i, r := range sorted {
		if r.IsFinal {
			finalCount++
			finalIdx = i
		}
	}
	if finalCount != 1 {
		return nil, cmn.MalformedChainf(requestID, "expected exactly one is_final row, got "+strconv.Itoa(finalCount))
	}
	if finalIdx != len(sorted)-1 {
		return nil, cmn.MalformedChainf(requestID, "is_final row is not the latest by timestamp")
	}

	first := sorted[0]
	page := &Page{
		URL:            first.URL,
		RequestID:      requestID,
		FetcherName:    sorted[finalIdx].FetcherName,
		FetcherVersion: sorted[finalIdx].FetcherVersion,
		FetcherCalibre: sorted[finalIdx].FetcherCalibre,
		Hops:           make([]Hop, len(sorted)),
	}
	for i, r := range sorted {
		page.Hops[i] = Hop{
			RequestURL:   r.RequestURL,
			StatusCode:   r.StatusCode,
			Headers:      r.Headers,
			Data:         r.Data,
			Timestamp:    r.Timestamp,
			RetryAttempt: r.RetryAttempt,
			IsFinal:      r.IsFinal,
		}
	}
	return page, nil
}

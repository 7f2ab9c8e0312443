// Package insert is the insert pipeline of spec §4.5: it stamps a fresh
// opaque request_id, enforces D1/D2/M1 at submission time, and hands the
// resulting rows to the partition manager as two independent part files.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package insert

import (
	"context"
	"sort"
	"time"

	"github.com/golang/glog"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/partition"
	"github.com/Thema-AI/web-index/planner"
	"github.com/Thema-AI/web-index/schema"
)

// Attempt is one fetch attempt submitted to the pipeline: the type
// (get/head), the attempt key's url/timestamp, its outcome metadata, and
// zero or more data rows (zero for failed attempts).
type Attempt struct {
	Stream    schema.Stream // StreamGet or StreamHead
	URL       string
	Timestamp time.Time
	State     schema.AttemptState
	Logs      *string
	Traceback *string
	RunTime   *float64
	Rows      []schema.DataRow
}

// Receipt is returned on a successful insert: the request_id assigned
// and the deterministic query that now resolves to it (spec §4.5 step 6).
type Receipt struct {
	RequestID string
	DataQuery planner.Query
	MetaQuery planner.Query
}

// Pipeline wires the partition manager (and, optionally, an Executor
// whose presence cache must be invalidated after a write) into the
// insert path.
type Pipeline struct {
	mgr              *partition.Manager
	invalidatePresence func(partition.Key)
	metadataFirst    bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPresenceInvalidation wires an Executor's cache invalidation so
// writes are immediately visible to subsequent presence queries (spec
// §5: the listing/presence cache "is invalidated on any write").
func WithPresenceInvalidation(invalidate func(partition.Key)) Option {
	return func(p *Pipeline) { p.invalidatePresence = invalidate }
}

// WithMetadataFirst reverses the default data-then-metadata write order
// (spec §4.5 step 5: "implementations may write metadata first... the
// choice is fixed per deployment").
func WithMetadataFirst() Option {
	return func(p *Pipeline) { p.metadataFirst = true }
}

func NewPipeline(mgr *partition.Manager, opts ...Option) *Pipeline {
	p := &Pipeline{mgr: mgr}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Submit runs one attempt through the full pipeline: stamp request_id,
// validate D1, compute the partition, and write both part files.
func (p *Pipeline) Submit(ctx context.Context, a Attempt) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, cmn.Cancelledf("insert cancelled before start: %v", err)
	}
	if a.Stream.IsMetadata() {
		return nil, cmn.Structuralf("insert: stream %q is a metadata stream, not a data stream", a.Stream)
	}
	for i, r := range a.Rows {
		if r.RequestID != "" {
			return nil, cmn.Structuralf("insert: row %d already carries request_id %q", i, r.RequestID)
		}
	}

	requestID := cmn.GenRequestID()
	rows := make([]schema.DataRow, len(a.Rows))
	copy(rows, a.Rows)
	for i := range rows {
		rows[i].RequestID = requestID
		if rows[i].URL == "" {
			rows[i].URL = a.URL
		}
	}
	if err := validateD1(requestID, rows); err != nil {
		return nil, err
	}
	if (a.State == schema.StateSuccess) != (len(rows) > 0) {
		return nil, cmn.Structuralf("insert: state %q inconsistent with %d data rows (M2)", a.State, len(rows))
	}
	if !a.State.Valid() {
		return nil, cmn.Structuralf("insert: unrecognized state %q", a.State)
	}

	dataKey, err := partition.KeyForAttempt(a.Stream, a.URL, a.Timestamp)
	if err != nil {
		return nil, err
	}
	metaStream := a.Stream.MetadataOf()
	metaKey := dataKey
	metaKey.Stream = metaStream

	metaRow := []schema.MetadataRow{{
		State: a.State, URL: a.URL, Timestamp: a.Timestamp, RequestID: requestID,
		Logs: a.Logs, Traceback: a.Traceback, RunTime: a.RunTime,
	}}

	writeData := func() error {
		if len(rows) == 0 {
			return nil
		}
		_, err := p.mgr.AppendData(ctx, dataKey, rows)
		return err
	}
	writeMeta := func() error {
		_, err := p.mgr.AppendMetadata(ctx, metaKey, metaRow)
		return err
	}

	if p.metadataFirst {
		if err := writeMeta(); err != nil {
			return nil, err
		}
		if err := writeData(); err != nil {
			glog.Errorf("insert: data write failed after metadata for request_id %s: %v (M1 transiently violated)", requestID, err)
			return nil, err
		}
	} else {
		if err := writeData(); err != nil {
			return nil, err
		}
		if err := writeMeta(); err != nil {
			glog.Errorf("insert: metadata write failed after data for request_id %s: %v (M1 transiently violated)", requestID, err)
			return nil, err
		}
	}

	if p.invalidatePresence != nil {
		p.invalidatePresence(dataKey)
		p.invalidatePresence(metaKey)
	}

	return &Receipt{
		RequestID: requestID,
		DataQuery: planner.Query{Kind: planner.KindDeterministic, Stream: a.Stream, URL: a.URL, Timestamp: a.Timestamp, RequestID: requestID},
		MetaQuery: planner.Query{Kind: planner.KindDeterministic, Stream: metaStream, URL: a.URL, Timestamp: a.Timestamp, RequestID: requestID},
	}, nil
}

// validateD1 enforces invariant D1 on the rows about to be written:
// exactly one is_final row, and it must have the greatest timestamp
// (ties broken by insert order, so we require it be last once stable-
// sorted by timestamp preserving input order).
func validateD1(requestID string, rows []schema.DataRow) error {
	if len(rows) == 0 {
		return nil
	}
	finalCount := 0
	for _, r := range rows {
		if r.IsFinal {
			finalCount++
		}
	}
	if finalCount != 1 {
		return cmn.Structuralf("insert: request_id %s: expected exactly one is_final row, got %d", requestID, finalCount)
	}
	ordered := make([]schema.DataRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })
	if !ordered[len(ordered)-1].IsFinal {
		return cmn.Structuralf("insert: request_id %s: is_final row is not the latest by timestamp", requestID)
	}
	return nil
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/insert"
	"github.com/Thema-AI/web-index/partition"
	"github.com/Thema-AI/web-index/planner"
	"github.com/Thema-AI/web-index/schema"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := cmn.DefaultConfig("file://" + dir)
	e, err := Open(cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e
}

func TestInsertThenDeterministicReadReturnsTheSubmittedRow(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)

	receipt, err := e.Submit(ctx, insert.Attempt{
		Stream: schema.StreamGet, URL: "http://example.com/", Timestamp: ts, State: schema.StateSuccess,
		Rows: []schema.DataRow{{
			URL: "http://example.com/", RequestURL: "http://example.com/", StatusCode: 200,
			Headers: "{}", Timestamp: ts, IsFinal: true, FetcherCalibre: 50,
		}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	results := e.Query(ctx, []planner.Query{receipt.DataQuery})
	if results[0].Err != nil {
		t.Fatalf("Query: %v", results[0].Err)
	}
	if results[0].Page.Hops[0].StatusCode != 200 {
		t.Fatalf("unexpected page: %+v", results[0].Page)
	}
}

func TestRedirectChainAssemblesBothHopsInOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)

	receipt, err := e.Submit(ctx, insert.Attempt{
		Stream: schema.StreamGet, URL: "http://a/", Timestamp: ts, State: schema.StateSuccess,
		Rows: []schema.DataRow{
			{URL: "http://a/", RequestURL: "http://a/", StatusCode: 301, Headers: "{}", Timestamp: ts, IsFinal: false},
			{URL: "http://a/", RequestURL: "http://b/", StatusCode: 200, Headers: "{}", Timestamp: ts.Add(100 * time.Millisecond), IsFinal: true},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	results := e.Query(ctx, []planner.Query{receipt.DataQuery})
	page := results[0].Page
	if page == nil || len(page.Hops) != 2 {
		t.Fatalf("expected a two-hop page, got %+v", page)
	}
	if !page.Hops[1].IsFinal || page.Hops[1].StatusCode != 200 {
		t.Fatalf("final hop wrong: %+v", page.Hops[1])
	}
}

func TestFailedAttemptLeavesNoDataRowsButRecordsMetadata(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)

	receipt, err := e.Submit(ctx, insert.Attempt{
		Stream: schema.StreamGet, URL: "http://blocked.example/", Timestamp: ts, State: schema.StateBlocked,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	dataResults := e.Query(ctx, []planner.Query{receipt.DataQuery})
	if !dataResults[0].NoMatch {
		t.Fatalf("expected no-match data query for a failed attempt, got %+v", dataResults[0])
	}

	metaResults := e.Query(ctx, []planner.Query{receipt.MetaQuery})
	if metaResults[0].Err != nil {
		t.Fatalf("MetaQuery: %v", metaResults[0].Err)
	}
	if metaResults[0].Metadata == nil || metaResults[0].Metadata.State != schema.StateBlocked {
		t.Fatalf("unexpected metadata: %+v", metaResults[0].Metadata)
	}
}

func TestDefragCoalescesPartsWithoutChangingQueryResults(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	base := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	var lastReceipt *insert.Receipt
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		r, err := e.Submit(ctx, insert.Attempt{
			Stream: schema.StreamGet, URL: "http://frag.example/", Timestamp: ts, State: schema.StateSuccess,
			Rows: []schema.DataRow{{URL: "http://frag.example/", RequestURL: "http://frag.example/", StatusCode: 200, Headers: "{}", Timestamp: ts, IsFinal: true}},
		})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		lastReceipt = r
	}

	before := e.Query(ctx, []planner.Query{lastReceipt.DataQuery})

	key, err := partition.KeyForAttempt(schema.StreamGet, "http://frag.example/", base)
	if err != nil {
		t.Fatalf("KeyForAttempt: %v", err)
	}
	if err := e.Defrag(ctx, key); err != nil {
		t.Fatalf("Defrag: %v", err)
	}

	after := e.Query(ctx, []planner.Query{lastReceipt.DataQuery})
	if after[0].Err != nil {
		t.Fatalf("Query after defrag: %v", after[0].Err)
	}
	if before[0].Page.RequestID != after[0].Page.RequestID {
		t.Fatalf("defrag changed query result: before %+v after %+v", before[0].Page, after[0].Page)
	}

	infos, err := e.Backend.List(ctx, key.MonthDir())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	count := 0
	for _, info := range infos {
		if partition.ClassifyFile("frag.example", info.Key) != partition.FileUnrelated {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one file after defrag, got %d (%v)", count, infos)
	}
}

func TestSampleDiskStatsRefreshesTheGauges(t *testing.T) {
	e := newTestEngine(t)
	if e.Disk == nil {
		t.Fatalf("expected Open to construct Disk stats")
	}
	if err := e.SampleDiskStats(); err != nil {
		t.Fatalf("SampleDiskStats: %v", err)
	}
}

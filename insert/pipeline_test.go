package insert

import (
	"context"
	"testing"
	"time"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/codec"
	"github.com/Thema-AI/web-index/objstore"
	"github.com/Thema-AI/web-index/partition"
	"github.com/Thema-AI/web-index/schema"
)

func newTestPipeline(t *testing.T) (*Pipeline, *partition.Manager) {
	t.Helper()
	backend, err := objstore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	cfg := cmn.DefaultConfig("test-bucket")
	mgr, err := partition.NewManager(backend, cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return NewPipeline(mgr), mgr
}

func TestSubmitSuccessRoundTrip(t *testing.T) {
	p, mgr := newTestPipeline(t)
	ctx := context.Background()
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)

	receipt, err := p.Submit(ctx, Attempt{
		Stream: schema.StreamGet, URL: "http://example.com/", Timestamp: ts, State: schema.StateSuccess,
		Rows: []schema.DataRow{{
			URL: "http://example.com/", RequestURL: "http://example.com/", StatusCode: 200,
			Data: []byte("ok"), Headers: "{}", Timestamp: ts, IsFinal: true, FetcherCalibre: 50,
		}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.RequestID == "" {
		t.Fatalf("expected a non-empty request_id")
	}

	key, _ := partition.KeyForAttempt(schema.StreamGet, "http://example.com/", ts)
	rows, err := mgr.ReadData(ctx, key, codec.DataPredicate{RequestID: receipt.RequestID})
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if len(rows) != 1 || rows[0].StatusCode != 200 {
		t.Fatalf("ReadData = %+v", rows)
	}

	metaKey := key
	metaKey.Stream = schema.StreamGetMetadata
	metaRows, err := mgr.ReadMetadata(ctx, metaKey, codec.MetadataPredicate{RequestID: receipt.RequestID})
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(metaRows) != 1 || metaRows[0].State != schema.StateSuccess {
		t.Fatalf("ReadMetadata = %+v", metaRows)
	}
}

func TestSubmitFailedAttemptHasNoDataRows(t *testing.T) {
	p, mgr := newTestPipeline(t)
	ctx := context.Background()
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)

	receipt, err := p.Submit(ctx, Attempt{
		Stream: schema.StreamGet, URL: "http://blocked.example/", Timestamp: ts, State: schema.StateBlocked,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	key, _ := partition.KeyForAttempt(schema.StreamGet, "http://blocked.example/", ts)
	rows, err := mgr.ReadData(ctx, key, codec.DataPredicate{})
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected zero data rows for a blocked attempt, got %d", len(rows))
	}

	metaKey := key
	metaKey.Stream = schema.StreamGetMetadata
	metaRows, err := mgr.ReadMetadata(ctx, metaKey, codec.MetadataPredicate{RequestID: receipt.RequestID})
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(metaRows) != 1 || metaRows[0].State != schema.StateBlocked {
		t.Fatalf("ReadMetadata = %+v", metaRows)
	}
}

func TestSubmitRejectsPreStampedRequestID(t *testing.T) {
	p, _ := newTestPipeline(t)
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)
	_, err := p.Submit(context.Background(), Attempt{
		Stream: schema.StreamGet, URL: "http://x/", Timestamp: ts, State: schema.StateSuccess,
		Rows: []schema.DataRow{{URL: "http://x/", IsFinal: true, RequestID: "already-set", Timestamp: ts}},
	})
	if err == nil {
		t.Fatalf("expected a structural error for a pre-stamped request_id")
	}
}

func TestSubmitRejectsMultipleFinalRows(t *testing.T) {
	p, _ := newTestPipeline(t)
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)
	_, err := p.Submit(context.Background(), Attempt{
		Stream: schema.StreamGet, URL: "http://x/", Timestamp: ts, State: schema.StateSuccess,
		Rows: []schema.DataRow{
			{URL: "http://x/", IsFinal: true, Timestamp: ts},
			{URL: "http://x/", IsFinal: true, Timestamp: ts.Add(time.Second)},
		},
	})
	if err == nil {
		t.Fatalf("expected a structural error for two is_final rows")
	}
}

func TestSubmitRejectsStaleFinalRow(t *testing.T) {
	p, _ := newTestPipeline(t)
	ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)
	_, err := p.Submit(context.Background(), Attempt{
		Stream: schema.StreamGet, URL: "http://x/", Timestamp: ts, State: schema.StateSuccess,
		Rows: []schema.DataRow{
			{URL: "http://x/", IsFinal: true, Timestamp: ts},
			{URL: "http://x/", IsFinal: false, Timestamp: ts.Add(time.Second)},
		},
	})
	if err == nil {
		t.Fatalf("expected a structural error when is_final is not the latest hop")
	}
}

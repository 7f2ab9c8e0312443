package codec

import (
	"testing"
	"time"

	"github.com/Thema-AI/web-index/schema"
)

func sampleDataRows() []schema.DataRow {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	return []schema.DataRow{
		{
			URL: "https://example.com/a", RequestURL: "https://example.com/a",
			StatusCode: 200, Data: []byte("hello"), Headers: `{"content-type":"text/html"}`,
			Timestamp: now, RetryAttempt: 0, IsFinal: true, RequestID: "req-1",
			FetcherName: "fetcherA", FetcherVersion: "1.0", FetcherCalibre: 80,
		},
		{
			URL: "https://example.com/b", RequestURL: "https://example.com/b",
			StatusCode: 500, Data: nil, Headers: "{}",
			Timestamp: now.Add(time.Hour), RetryAttempt: 1, IsFinal: false, RequestID: "req-2",
			FetcherName: "fetcherB", FetcherVersion: "2.0", FetcherCalibre: 40,
		},
	}
}

func TestDataFileRoundTrip(t *testing.T) {
	rows := sampleDataRows()
	sealed, err := WriteDataFile(rows)
	if err != nil {
		t.Fatalf("WriteDataFile: %v", err)
	}
	got, err := ReadDataFile(sealed, DataPredicate{})
	if err != nil {
		t.Fatalf("ReadDataFile: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i].URL != rows[i].URL || got[i].RequestID != rows[i].RequestID {
			t.Errorf("row %d = %+v, want %+v", i, got[i], rows[i])
		}
	}
}

func TestDataFilePredicate(t *testing.T) {
	sealed, err := WriteDataFile(sampleDataRows())
	if err != nil {
		t.Fatalf("WriteDataFile: %v", err)
	}
	got, err := ReadDataFile(sealed, DataPredicate{RequestID: "req-2"})
	if err != nil {
		t.Fatalf("ReadDataFile: %v", err)
	}
	if len(got) != 1 || got[0].RequestID != "req-2" {
		t.Fatalf("ReadDataFile with predicate = %+v", got)
	}
}

func TestDataFileCorrupt(t *testing.T) {
	sealed, err := WriteDataFile(sampleDataRows())
	if err != nil {
		t.Fatalf("WriteDataFile: %v", err)
	}
	sealed[0] ^= 0xff
	if _, err := ReadDataFile(sealed, DataPredicate{}); err == nil {
		t.Fatalf("expected corrupt-file error after flipping a byte")
	}
}

func sampleMetadataRows() []schema.MetadataRow {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	logs := "ok"
	runtime := 1.5
	return []schema.MetadataRow{
		{State: schema.StateSuccess, URL: "https://example.com/a", Timestamp: now, RequestID: "req-1", Logs: &logs, RunTime: &runtime},
		{State: schema.StateTimeout, URL: "https://example.com/b", Timestamp: now.Add(time.Hour), RequestID: "req-2"},
	}
}

func TestMetadataFileRoundTrip(t *testing.T) {
	rows := sampleMetadataRows()
	sealed, err := WriteMetadataFile(rows)
	if err != nil {
		t.Fatalf("WriteMetadataFile: %v", err)
	}
	got, err := ReadMetadataFile(sealed, MetadataPredicate{})
	if err != nil {
		t.Fatalf("ReadMetadataFile: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	if got[0].Logs == nil || *got[0].Logs != "ok" {
		t.Errorf("row 0 Logs = %v, want \"ok\"", got[0].Logs)
	}
	if got[1].Logs != nil {
		t.Errorf("row 1 Logs = %v, want nil", got[1].Logs)
	}
}

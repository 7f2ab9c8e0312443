package codec

import (
	"bytes"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/schema"
)

// EncodeDataRows serializes rows as a single parquet file, one row group
// per call (the caller — partition.Manager — decides row-group
// boundaries by how it batches writes).
func EncodeDataRows(rows []schema.DataRow) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[schema.DataRow](&buf)
	if _, err := w.Write(rows); err != nil {
		return nil, cmn.Structuralf("codec: encode data rows: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, cmn.Structuralf("codec: close data writer: %v", err)
	}
	return buf.Bytes(), nil
}

// DecodeDataRows reads every row out of a data-stream parquet file,
// applying pred as row-group-level pruning followed by an exact
// per-row filter. Row groups whose column statistics cannot possibly
// satisfy pred are skipped without being materialized, per spec §6's
// push-down requirement.
func DecodeDataRows(body []byte, pred DataPredicate) ([]schema.DataRow, error) {
	file, err := parquet.OpenFile(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, cmn.CorruptPartitionf("<data file>", err)
	}

	schemaOf := parquet.SchemaOf(new(schema.DataRow))
	var out []schema.DataRow
	for _, rg := range file.RowGroups() {
		if !rowGroupMayMatch(rg, pred) {
			continue
		}
		rows, err := readRowGroup(rg, schemaOf)
		if err != nil {
			return nil, cmn.CorruptPartitionf("<data file>", err)
		}
		for i := range rows {
			if pred.matchRow(&rows[i]) {
				out = append(out, rows[i])
			}
		}
	}
	return out, nil
}

func readRowGroup(rg parquet.RowGroup, schemaOf *parquet.Schema) ([]schema.DataRow, error) {
	reader := parquet.NewGenericRowGroupReader[schema.DataRow](rg)
	defer reader.Close()
	rows := make([]schema.DataRow, rg.NumRows())
	n := 0
	for {
		m, err := reader.Read(rows[n:])
		n += m
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if m == 0 {
			break
		}
	}
	return rows[:n], nil
}

// rowGroupMayMatch consults min/max column statistics for url, timestamp,
// request_id, fetcher_calibre, and is_final (the five columns spec §6
// names), returning false only when the predicate is provably
// unsatisfiable by every row in the group. A missing or unreadable index
// is treated as "might match" — pruning is an optimization, never a
// correctness requirement.
func rowGroupMayMatch(rg parquet.RowGroup, pred DataPredicate) bool {
	cols := rg.Schema().Fields()
	for i, chunk := range rg.ColumnChunks() {
		if i >= len(cols) {
			break
		}
		name := cols[i].Name()
		idx, err := chunk.ColumnIndex()
		if err != nil || idx == nil || idx.NumPages() == 0 {
			continue
		}
		lo, hi, ok := columnBounds(idx)
		if !ok {
			continue
		}
		switch name {
		case "url":
			if pred.URL != "" && (pred.URL < lo.String() || pred.URL > hi.String()) {
				return false
			}
		case "request_id":
			if pred.RequestID != "" && (pred.RequestID < lo.String() || pred.RequestID > hi.String()) {
				return false
			}
		case "timestamp":
			if pred.hasTimeBound() {
				loT, hiT := lo.Int64(), hi.Int64()
				if !pred.NotAfter.IsZero() && loT > pred.NotAfter.UnixMilli() {
					return false
				}
				if !pred.NotBefore.IsZero() && hiT < pred.NotBefore.UnixMilli() {
					return false
				}
			}
		case "fetcher_calibre":
			if pred.MinFetcherCalibre != 0 && !pred.StrictCalibre {
				if hi.Byte() < pred.MinFetcherCalibre {
					return false
				}
			}
		case "is_final":
			if pred.FinalOnly && !lo.Boolean() && !hi.Boolean() {
				return false
			}
		}
	}
	return true
}

// columnBounds merges per-page min/max bounds from a column index into a
// single (min, max) pair for the whole row group.
func columnBounds(idx parquet.ColumnIndex) (lo, hi parquet.Value, ok bool) {
	n := idx.NumPages()
	for i := 0; i < n; i++ {
		if idx.NullPage(i) {
			continue
		}
		pageMin, pageMax := idx.MinValue(i), idx.MaxValue(i)
		if !ok {
			lo, hi, ok = pageMin, pageMax, true
			continue
		}
		if parquet.Compare(pageMin, lo) < 0 {
			lo = pageMin
		}
		if parquet.Compare(pageMax, hi) > 0 {
			hi = pageMax
		}
	}
	return lo, hi, ok
}

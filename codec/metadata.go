package codec

import (
	"bytes"

	"github.com/tinylib/msgp/msgp"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/schema"
)

// Metadata rows are few-columns-wide, append one at a time, and are only
// looked up by request_id (see planner/exec.go's executeDeterministic),
// so MessagePack via the reference pack's own tinylib/msgp runtime is a
// better fit here than parquet's columnar machinery. There is no
// row-group pruning: DecodeMetadataRows decodes every row and then
// applies the MetadataPredicate.

const metadataFieldCount = 7

// EncodeMetadataRows serializes rows as a single msgpack array of
// fixed-shape maps, one per row.
func EncodeMetadataRows(rows []schema.MetadataRow) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := w.WriteArrayHeader(uint32(len(rows))); err != nil {
		return nil, cmn.Structuralf("codec: encode metadata rows: %v", err)
	}
	for i := range rows {
		if err := writeMetadataRow(w, &rows[i]); err != nil {
			return nil, cmn.Structuralf("codec: encode metadata row %d: %v", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, cmn.Structuralf("codec: flush metadata writer: %v", err)
	}
	return buf.Bytes(), nil
}

func writeMetadataRow(w *msgp.Writer, row *schema.MetadataRow) error {
	if err := w.WriteMapHeader(metadataFieldCount); err != nil {
		return err
	}
	fields := []struct {
		name string
		fn   func() error
	}{
		{"state", func() error { return w.WriteString(string(row.State)) }},
		{"url", func() error { return w.WriteString(row.URL) }},
		{"timestamp", func() error { return w.WriteTime(row.Timestamp) }},
		{"request_id", func() error { return w.WriteString(row.RequestID) }},
		{"logs", func() error { return writeOptString(w, row.Logs) }},
		{"traceback", func() error { return writeOptString(w, row.Traceback) }},
		{"run_time", func() error { return writeOptFloat64(w, row.RunTime) }},
	}
	for _, f := range fields {
		if err := w.WriteString(f.name); err != nil {
			return err
		}
		if err := f.fn(); err != nil {
			return err
		}
	}
	return nil
}

func writeOptString(w *msgp.Writer, v *string) error {
	if v == nil {
		return w.WriteNil()
	}
	return w.WriteString(*v)
}

func writeOptFloat64(w *msgp.Writer, v *float64) error {
	if v == nil {
		return w.WriteNil()
	}
	return w.WriteFloat64(*v)
}

// DecodeMetadataRows reverses EncodeMetadataRows, then applies pred.
func DecodeMetadataRows(body []byte, pred MetadataPredicate) ([]schema.MetadataRow, error) {
	r := msgp.NewReader(bytes.NewReader(body))
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, cmn.CorruptPartitionf("<metadata file>", err)
	}
	out := make([]schema.MetadataRow, 0, n)
	for i := uint32(0); i < n; i++ {
		row, err := readMetadataRow(r)
		if err != nil {
			return nil, cmn.CorruptPartitionf("<metadata file>", err)
		}
		if pred.matchRow(row) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func readMetadataRow(r *msgp.Reader) (*schema.MetadataRow, error) {
	fieldCount, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	row := &schema.MetadataRow{}
	for i := uint32(0); i < fieldCount; i++ {
		key, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "state":
			s, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			row.State = schema.AttemptState(s)
		case "url":
			if row.URL, err = r.ReadString(); err != nil {
				return nil, err
			}
		case "timestamp":
			if row.Timestamp, err = r.ReadTime(); err != nil {
				return nil, err
			}
		case "request_id":
			if row.RequestID, err = r.ReadString(); err != nil {
				return nil, err
			}
		case "logs":
			if row.Logs, err = readOptString(r); err != nil {
				return nil, err
			}
		case "traceback":
			if row.Traceback, err = readOptString(r); err != nil {
				return nil, err
			}
		case "run_time":
			if row.RunTime, err = readOptFloat64(r); err != nil {
				return nil, err
			}
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return row, nil
}

func readOptString(r *msgp.Reader) (*string, error) {
	if r.IsNil() {
		return nil, r.ReadNil()
	}
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func readOptFloat64(r *msgp.Reader) (*float64, error) {
	if r.IsNil() {
		return nil, r.ReadNil()
	}
	f, err := r.ReadFloat64()
	if err != nil {
		return nil, err
	}
	return &f, nil
}

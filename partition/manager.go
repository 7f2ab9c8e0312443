// Manager is the only thing above objstore.Backend that knows the
// canonical/part-file convention: it turns a Key into writes (always
// PutUnique, never a direct overwrite — spec §4.1/§4.3) and reads (list
// the month, classify by domain, union canonical + every part), and owns
// defragmentation under an exclusive Lease.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package partition

import (
	"context"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/cmn/debug"
	"github.com/Thema-AI/web-index/codec"
	"github.com/Thema-AI/web-index/objstore"
	"github.com/Thema-AI/web-index/schema"
)

type Manager struct {
	backend objstore.Backend
	cache   *listCache
	cfg     *cmn.Config
}

func NewManager(backend objstore.Backend, cfg *cmn.Config) (*Manager, error) {
	cache, err := newListCache()
	if err != nil {
		return nil, cmn.StorageUnavailf("partition: list cache: %v", err)
	}
	return &Manager{backend: backend, cache: cache, cfg: cfg}, nil
}

// filesFor lists MonthDir (through the cache) and returns the keys
// belonging to key.Domain, split by FileKind.
func (m *Manager) filesFor(ctx context.Context, key Key) (canonical string, parts []string, err error) {
	monthDir := key.MonthDir()
	infos, ok := m.cache.get(monthDir)
	if !ok {
		infos, err = m.backend.List(ctx, monthDir)
		if err != nil {
			return "", nil, err
		}
		m.cache.put(monthDir, infos)
	}
	for _, info := range infos {
		switch ClassifyFile(key.Domain, info.Key) {
		case FileCanonical:
			canonical = info.Key
		case FilePart:
			parts = append(parts, info.Key)
		}
	}
	return canonical, parts, nil
}

func (m *Manager) allKeys(canonical string, parts []string) []string {
	keys := parts
	if canonical != "" {
		keys = append(keys, canonical)
	}
	return keys
}

// ReadData unions the canonical file and every part file of key's
// partition, applying pred to each before returning the merged rows.
// A missing partition (no canonical, no parts) is not an error: it
// yields zero rows, matching spec §4.2's "no record of a fetch is
// indistinguishable from a fetch that has not happened."
func (m *Manager) ReadData(ctx context.Context, key Key, pred codec.DataPredicate) ([]schema.DataRow, error) {
	debug.Assert(!key.Stream.IsMetadata(), "ReadData called on metadata stream", key.Stream)
	canonical, parts, err := m.filesFor(ctx, key)
	if err != nil {
		return nil, err
	}
	var out []schema.DataRow
	for _, k := range m.allKeys(canonical, parts) {
		body, err := m.backend.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		rows, err := codec.ReadDataFile(body, pred)
		if err != nil {
			return nil, cmn.CorruptPartitionf(k, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ReadMetadata mirrors ReadData for the metadata streams.
func (m *Manager) ReadMetadata(ctx context.Context, key Key, pred codec.MetadataPredicate) ([]schema.MetadataRow, error) {
	debug.Assert(key.Stream.IsMetadata(), "ReadMetadata called on data stream", key.Stream)
	canonical, parts, err := m.filesFor(ctx, key)
	if err != nil {
		return nil, err
	}
	var out []schema.MetadataRow
	for _, k := range m.allKeys(canonical, parts) {
		body, err := m.backend.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		rows, err := codec.ReadMetadataFile(body, pred)
		if err != nil {
			return nil, cmn.CorruptPartitionf(k, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// AppendData writes rows as a brand-new part file; it never touches the
// canonical file or any other part, so concurrent appenders to the same
// partition never contend (spec §4.1/§5).
func (m *Manager) AppendData(ctx context.Context, key Key, rows []schema.DataRow) (string, error) {
	debug.Assert(!key.Stream.IsMetadata(), "AppendData called on metadata stream", key.Stream)
	body, err := codec.WriteDataFile(rows)
	if err != nil {
		return "", err
	}
	k, err := m.backend.PutUnique(ctx, key.PartPrefix(), body)
	if err != nil {
		return "", err
	}
	m.cache.invalidate(key.MonthDir())
	return k, nil
}

// AppendMetadata mirrors AppendData for the metadata streams.
func (m *Manager) AppendMetadata(ctx context.Context, key Key, rows []schema.MetadataRow) (string, error) {
	debug.Assert(key.Stream.IsMetadata(), "AppendMetadata called on data stream", key.Stream)
	body, err := codec.WriteMetadataFile(rows)
	if err != nil {
		return "", err
	}
	k, err := m.backend.PutUnique(ctx, key.PartPrefix(), body)
	if err != nil {
		return "", err
	}
	m.cache.invalidate(key.MonthDir())
	return k, nil
}

// Defrag collapses every part file (and the existing canonical, if any)
// of key's partition into a single new canonical file, under an
// exclusive lease so a concurrent appender's part file is never lost
// (spec §4.3). It is a no-op below cfg.DefragMinParts fragments.
//
// It is a thin convenience wrapper around Defragment, for callers that
// just want the outcome and don't need to inspect the unit of work
// while it runs.
func (m *Manager) Defrag(ctx context.Context, key Key) error {
	return NewDefragment(m, key).Run(ctx)
}

func (m *Manager) defragData(ctx context.Context, keys []string) ([]byte, error) {
	var all []schema.DataRow
	for _, k := range keys {
		raw, err := m.backend.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		rows, err := codec.ReadDataFile(raw, codec.DataPredicate{})
		if err != nil {
			return nil, cmn.CorruptPartitionf(k, err)
		}
		all = append(all, rows...)
	}
	return codec.WriteDataFile(all)
}

func (m *Manager) defragMetadata(ctx context.Context, keys []string) ([]byte, error) {
	var all []schema.MetadataRow
	for _, k := range keys {
		raw, err := m.backend.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		rows, err := codec.ReadMetadataFile(raw, codec.MetadataPredicate{})
		if err != nil {
			return nil, cmn.CorruptPartitionf(k, err)
		}
		all = append(all, rows...)
	}
	return codec.WriteMetadataFile(all)
}

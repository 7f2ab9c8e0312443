// Package codec is the columnar file format: data rows are written as
// parquet (github.com/parquet-go/parquet-go, the one domain-critical
// library missing from the retrieved example pack — see SPEC_FULL.md
// §11.2), with row-group statistics consulted for predicate push-down on
// url, timestamp, request_id, fetcher_calibre, and is_final, as spec §6
// requires. Metadata rows are small and shapeless enough to encode with
// github.com/tinylib/msgp instead; see metadata.go.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package codec

import (
	"time"

	"github.com/Thema-AI/web-index/schema"
)

// DataPredicate narrows a data-row scan. A zero-value field means "no
// constraint on this column." NotBefore/NotAfter bound Timestamp
// inclusively; the rest are exact-match, applied per spec §8.3's
// calibre-ladder semantics for FetcherCalibre.
type DataPredicate struct {
	URL              string
	RequestID        string
	NotBefore        time.Time
	NotAfter          time.Time
	MinFetcherCalibre schema.Calibre
	StrictCalibre     bool
	FinalOnly         bool
}

func (p DataPredicate) hasTimeBound() bool {
	return !p.NotBefore.IsZero() || !p.NotAfter.IsZero()
}

// matchRow applies the exact (non-statistical) predicate to a decoded
// row; used both as the final filter after row-group pruning and as the
// only filter when no row-group statistics are available.
func (p DataPredicate) matchRow(row *schema.DataRow) bool {
	if p.URL != "" && row.URL != p.URL {
		return false
	}
	if p.RequestID != "" && row.RequestID != p.RequestID {
		return false
	}
	if !p.NotBefore.IsZero() && row.Timestamp.Before(p.NotBefore) {
		return false
	}
	if !p.NotAfter.IsZero() && row.Timestamp.After(p.NotAfter) {
		return false
	}
	if p.MinFetcherCalibre != 0 && !schema.CalibreMatches(row.FetcherCalibre, p.MinFetcherCalibre, p.StrictCalibre) {
		return false
	}
	if p.FinalOnly && !row.IsFinal {
		return false
	}
	return true
}

// MetadataPredicate narrows a metadata-row scan, mirroring the subset of
// DataPredicate's columns that metadata rows carry.
type MetadataPredicate struct {
	URL       string
	RequestID string
	NotBefore time.Time
	NotAfter  time.Time
}

func (p MetadataPredicate) matchRow(row *schema.MetadataRow) bool {
	if p.URL != "" && row.URL != p.URL {
		return false
	}
	if p.RequestID != "" && row.RequestID != p.RequestID {
		return false
	}
	if !p.NotBefore.IsZero() && row.Timestamp.Before(p.NotBefore) {
		return false
	}
	if !p.NotAfter.IsZero() && row.Timestamp.After(p.NotAfter) {
		return false
	}
	return true
}

// Package schema defines the two fixed row schemas (data, metadata) and
// the small set of enumerated types (Stream, AttemptState, Calibre) that
// every other package in the engine builds on. It is grounded on the
// reference engine's own style of declaring wire/storage structs in a
// single low-level package (cmn/bucket.go), kept separate here because
// these types are shared by the codec, partition, planner, and insert
// packages without any of them depending on each other.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package schema

import "time"

// Stream identifies one of the four independent append-only relations.
type Stream string

const (
	StreamGet            Stream = "get"
	StreamHead           Stream = "head"
	StreamGetMetadata    Stream = "get-metadata"
	StreamHeadMetadata   Stream = "head-metadata"
)

// IsMetadata reports whether s is one of the two *-metadata streams.
func (s Stream) IsMetadata() bool {
	return s == StreamGetMetadata || s == StreamHeadMetadata
}

// MetadataOf returns the metadata stream paired with a data stream, and
// DataOf returns the data stream paired with a metadata stream (invariant
// M1 couples exactly these pairs).
func (s Stream) MetadataOf() Stream {
	switch s {
	case StreamGet:
		return StreamGetMetadata
	case StreamHead:
		return StreamHeadMetadata
	}
	return s
}

func (s Stream) DataOf() Stream {
	switch s {
	case StreamGetMetadata:
		return StreamGet
	case StreamHeadMetadata:
		return StreamHead
	}
	return s
}

// HasBody reports whether rows in this stream carry a Data payload
// (true for "get", false for "head"; metadata streams have no rows here).
func (s Stream) HasBody() bool { return s == StreamGet }

// AttemptState enumerates the outcome of one fetch attempt. The engine
// stores the label; it never acts on retry/escalate disposition.
type AttemptState string

const (
	StateSuccess        AttemptState = "success"
	StateTimeout        AttemptState = "timeout"
	StateUnreachable    AttemptState = "unreachable"
	StateSSLError       AttemptState = "ssl-error"
	StateLowQuality     AttemptState = "low-quality"
	StateBlocked        AttemptState = "blocked"
	StateUnauthorised   AttemptState = "unauthorised"
	StateRetryableError AttemptState = "retryable-error"
	StateEscalate       AttemptState = "escalate"
	StateError          AttemptState = "error"
)

var validStates = map[AttemptState]bool{
	StateSuccess: true, StateTimeout: true, StateUnreachable: true,
	StateSSLError: true, StateLowQuality: true, StateBlocked: true,
	StateUnauthorised: true, StateRetryableError: true, StateEscalate: true,
	StateError: true,
}

func (s AttemptState) Valid() bool { return validStates[s] }

// Calibre is the unsigned 0-100 probability-of-success ladder: 0 unknown,
// 100 reserved, 1..99 an ordered ladder.
type Calibre = uint8

const (
	CalibreUnknown  Calibre = 0
	CalibreReserved Calibre = 100
)

// CalibreMatches implements the "≥ requested unless strict" rule of spec §3/§8.3.
func CalibreMatches(row, query Calibre, strict bool) bool {
	if strict {
		return row == query
	}
	return row >= query
}

// DataRow is one hop of an attempt's chain, stored in the "get"/"head"
// streams (spec §3).
type DataRow struct {
	URL            string    `json:"url" parquet:"url"`
	RequestURL     string    `json:"request_url" parquet:"request_url"`
	StatusCode     uint8     `json:"status_code" parquet:"status_code"`
	Data           []byte    `json:"data,omitempty" parquet:"data,optional"`
	Headers        string    `json:"headers" parquet:"headers"`
	Timestamp      time.Time `json:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
	RetryAttempt   uint8     `json:"retry_attempt" parquet:"retry_attempt"`
	IsFinal        bool      `json:"is_final" parquet:"is_final"`
	RequestID      string    `json:"request_id" parquet:"request_id"`
	FetcherName    string    `json:"fetcher_name" parquet:"fetcher_name"`
	FetcherVersion string    `json:"fetcher_version" parquet:"fetcher_version"`
	FetcherCalibre Calibre   `json:"fetcher_calibre" parquet:"fetcher_calibre"`
}

// MetadataRow is the single record of an attempt's outcome, stored in the
// "*-metadata" streams (spec §3).
type MetadataRow struct {
	State     AttemptState `json:"state" parquet:"state"`
	URL       string       `json:"url" parquet:"url"`
	Timestamp time.Time    `json:"timestamp" parquet:"timestamp,timestamp(millisecond)"`
	RequestID string       `json:"request_id" parquet:"request_id"`
	Logs      *string      `json:"logs,omitempty" parquet:"logs,optional"`
	Traceback *string      `json:"traceback,omitempty" parquet:"traceback,optional"`
	RunTime   *float64     `json:"run_time,omitempty" parquet:"run_time,optional"`
}

// AttemptKey is the triple that identifies an attempt uniquely across all
// streams (spec §3, "Attempt key").
type AttemptKey struct {
	URL       string
	Timestamp time.Time
	RequestID string
}

// Package planner is the query planner & executor: it turns a batch of
// queries into the minimal set of partition reads (spec §4.4), executes
// the three retrieval algorithms plus presence, and assembles rows into
// response chains.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package planner

import (
	"time"

	"github.com/Thema-AI/web-index/schema"
)

// Kind discriminates the four query shapes of spec §4.4.
type Kind string

const (
	KindDeterministic Kind = "deterministic"
	KindSimple        Kind = "simple"
	KindTimeBounded   Kind = "time_bounded"
	KindPresence      Kind = "presence"
)

// String returns the key used to look a Kind up in
// cmn.Config.CalibreStrictDefault.
func (k Kind) String() string { return string(k) }

// Query is the flat envelope of spec §6: every field relevant to any
// Kind, with the irrelevant ones left zero. Presence queries reuse the
// planning of the retrieval query they mirror — set PresenceOf to the
// Kind whose plan to reuse (Simple or TimeBounded).
type Query struct {
	Kind   Kind
	Stream schema.Stream
	URL    string

	// Deterministic
	Timestamp time.Time
	RequestID string

	// Time-bounded
	NotBefore time.Time
	NotAfter  time.Time
	Target    time.Time

	// Simple / time-bounded filter. CalibreStrict is a pointer so a nil
	// value is distinguishable from an explicit false: when nil, the
	// executor consults cmn.Config.CalibreStrictDefault for q.Kind
	// (spec §6: false for simple, true for time-bounded).
	Calibre       *schema.Calibre
	CalibreStrict *bool

	// Presence reuses Simple's or TimeBounded's plan.
	PresenceOf Kind
}

// Hop is one row of an assembled Page, in chain order.
type Hop struct {
	RequestURL   string
	StatusCode   uint8
	Headers      string
	Data         []byte
	Timestamp    time.Time
	RetryAttempt uint8
	IsFinal      bool
}

// Page is the full chain returned for a data-stream query (spec §6).
type Page struct {
	URL            string
	RequestID      string
	FetcherName    string
	FetcherVersion string
	FetcherCalibre schema.Calibre
	Hops           []Hop
}

// FinalHop returns the hop with IsFinal set; callers rely on chain
// assembly (chain.go) having already verified exactly one exists.
func (p *Page) FinalHop() *Hop {
	for i := range p.Hops {
		if p.Hops[i].IsFinal {
			return &p.Hops[i]
		}
	}
	return nil
}

// Result is one batch slot: exactly one of Page, Metadata, Present (for
// presence queries) is meaningful; NoMatch means the query found no rows
// and Err is nil.
type Result struct {
	Page     *Page
	Metadata *schema.MetadataRow
	Present  bool
	NoMatch  bool
	Err      error
}

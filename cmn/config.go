// Package cmn provides common low-level types, configuration, and error
// kinds shared by every package in the web-index engine.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package cmn

import (
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/Thema-AI/web-index/cmn/jsp"
)

// Config holds the recognized options of spec §6: bucket root, batch
// concurrency caps, the defragmentation threshold, and the per-query-kind
// calibre-strict default. It is JSON round-trippable via cmn/jsp so a
// process can snapshot and restore its last-known configuration.
type Config struct {
	// Bucket is the root prefix for all partitions, e.g.
	// "file:///var/lib/web-index" or "s3://web-index-prod".
	Bucket string `json:"bucket"`

	ReadConcurrency  int `json:"read_concurrency"`
	WriteConcurrency int `json:"write_concurrency"`

	DefragMinParts int `json:"defrag_min_parts"`

	// CalibreStrictDefault holds the default calibre_strict value applied
	// when a query omits it explicitly, keyed by query kind ("simple",
	// "time_bounded"). Per spec §6: false for simple, true for time-bounded.
	CalibreStrictDefault map[string]bool `json:"calibre_strict_default"`

	LeaseTTL time.Duration `json:"lease_ttl"`

	// Epoch bounds the simple query's "present back to the epoch of the
	// store" walk (spec §4.4.2): no partition older than this month is
	// ever consulted.
	Epoch time.Time `json:"epoch"`
}

const (
	DefaultReadConcurrency  = 32
	DefaultWriteConcurrency = 8
	DefaultDefragMinParts   = 2
	DefaultLeaseTTL         = 30 * time.Second
)

// DefaultEpoch is used when a Config does not set Epoch explicitly.
var DefaultEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns a Config populated with the spec-mandated defaults
// for everything but Bucket, which the caller must set.
func DefaultConfig(bucket string) *Config {
	return &Config{
		Bucket:           bucket,
		ReadConcurrency:  DefaultReadConcurrency,
		WriteConcurrency: DefaultWriteConcurrency,
		DefragMinParts:   DefaultDefragMinParts,
		CalibreStrictDefault: map[string]bool{
			"simple":       false,
			"time_bounded": true,
		},
		LeaseTTL: DefaultLeaseTTL,
		Epoch:    DefaultEpoch,
	}
}

// Validate checks the structural soundness of a Config; it does not dial
// any backend.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if _, err := url.Parse(c.Bucket); err != nil {
		return errors.Wrapf(err, "config: invalid bucket URL %q", c.Bucket)
	}
	if c.ReadConcurrency <= 0 {
		return errors.New("config: read_concurrency must be positive")
	}
	if c.WriteConcurrency <= 0 {
		return errors.New("config: write_concurrency must be positive")
	}
	if c.DefragMinParts < 2 {
		return errors.New("config: defrag_min_parts must be >= 2")
	}
	return nil
}

// Save persists the config snapshot to path via cmn/jsp.
func (c *Config) Save(path string) error { return jsp.Save(path, c) }

// LoadConfig restores a config snapshot written by Save.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	if err := jsp.Load(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Package objstore provides the narrow object-store contract the rest of
// the engine is built on (spec §4.1): list, get, create-unique, atomic
// replace, delete, and an exclusive-writer lease. Concrete backends
// (local filesystem, S3, GCS, Azure, HDFS, generic HTTP) each satisfy the
// same Backend interface and self-register by URL scheme, the same
// provider-registry idiom the reference engine uses for its cloud
// backends (ais/backend/ais.go, ais/backend/http.go).
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package objstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/Thema-AI/web-index/cmn"
)

// ObjectInfo describes one key returned by List.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Lease is an exclusive-writer handle on a named resource (spec §4.1,
// §4.3 defragmentation). It must be released or it expires after its TTL.
// The design explicitly treats this as an abstraction point: today it is
// an in-process advisory lock (objstore/lease.go); tomorrow it could be
// an out-of-process coordinator without any caller change (spec.md §9).
type Lease interface {
	Name() string
	Release(ctx context.Context) error
	Expired() bool
}

// Backend is the full object-store contract. All methods must tolerate
// concurrent calls from multiple tasks (spec §5).
type Backend interface {
	// List returns every key with the given prefix, in no particular
	// order. Implementations may use a read-through cache upstream of
	// this call; Backend itself always reflects current store state.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Get returns the full contents of key.
	Get(ctx context.Context, key string) ([]byte, error)

	// PutUnique creates "prefix.<fresh-uuid>.parquet" and returns the key
	// actually written. Concurrent callers with the same prefix never
	// collide. Canonical files are not written through PutUnique; the
	// partition manager publishes them with ReplaceAtomically.
	PutUnique(ctx context.Context, prefix string, body []byte) (key string, err error)

	// ReplaceAtomically makes newKey/body durably visible and then
	// deletes oldKeys, in that order (spec §4.1: "old keys must be
	// deleted only after the new key is durably visible"). Backends
	// without native multi-object transactions simulate this with
	// write-then-delete; callers (the partition manager) already tolerate
	// the transient overlap this implies.
	ReplaceAtomically(ctx context.Context, oldKeys []string, newKey string, body []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Lease acquires an exclusive lease named name for at most ttl.
	Lease(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Opener constructs a Backend from a parsed bucket URL.
type Opener func(u *url.URL) (Backend, error)

var openers = map[string]Opener{}

// Register associates a URL scheme (e.g. "file", "s3", "gs", "az",
// "hdfs", "http", "https") with an Opener. Called from each backend
// file's init(), mirroring the reference's xreg.RegisterBucketXact /
// RegisterGlobalXact self-registration pattern.
func Register(scheme string, open Opener) {
	openers[scheme] = open
}

// Open parses bucket and dispatches to the Opener registered for its
// scheme.
func Open(bucket string) (Backend, error) {
	u, err := url.Parse(bucket)
	if err != nil {
		return nil, cmn.StorageUnavailf("objstore: invalid bucket url %q: %v", bucket, err)
	}
	open, ok := openers[u.Scheme]
	if !ok {
		return nil, cmn.StorageUnavailf("objstore: no backend registered for scheme %q (registered: %v)", u.Scheme, schemes())
	}
	return open(u)
}

func schemes() []string {
	out := make([]string, 0, len(openers))
	for s := range openers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SortedKeys returns the keys of a listing in sorted order, for callers
// that want deterministic iteration over it.
func SortedKeys(infos []ObjectInfo) []string {
	keys := make([]string, len(infos))
	for i, o := range infos {
		keys[i] = o.Key
	}
	sort.Strings(keys)
	return keys
}

var errNotImplemented = fmt.Errorf("objstore: not implemented")
